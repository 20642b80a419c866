package model

import (
	"context"

	"github.com/kzaag/datastar/schema"
)

// Record tracks changes made to one entity.
type Record struct {
	m       *Model
	data    schema.Entity
	was     schema.Entity
	changed schema.Entity
	dirty   bool
}

// NewRecord wraps data, keyed either by column or by public name.
func (m *Model) NewRecord(data schema.Entity) *Record {
	if data == nil {
		data = schema.Entity{}
	}
	return &Record{
		m:       m,
		data:    m.schema.FixEntity(data),
		was:     schema.Entity{},
		changed: schema.Entity{},
	}
}

func (r *Record) Get(name string) interface{} {
	return r.m.schema.ValueToNull(r.data[r.m.schema.FixKey(name)])
}

func (r *Record) Set(name string, value interface{}) {
	key := r.m.schema.FixKey(name)
	r.dirty = true
	// only the original value is tracked across changes
	if _, ok := r.was[key]; !ok {
		r.was[key] = r.data[key]
	}
	r.data[key] = value
	r.changed[key] = value
}

// Was returns the value name had before the first change.
func (r *Record) Was(name string) interface{} {
	return r.was[r.m.schema.FixKey(name)]
}

// IsDirty reports whether the record, or the named attribute, changed.
func (r *Record) IsDirty(name ...string) bool {
	if len(name) == 0 {
		return r.dirty
	}
	_, ok := r.changed[r.m.schema.FixKey(name[0])]
	return ok
}

// Previous returns the record as it was before any change.
func (r *Record) Previous() schema.Entity {
	prev := make(schema.Entity, len(r.data))
	for k, v := range r.was {
		prev[k] = v
	}
	for k, v := range r.data {
		if _, ok := prev[k]; !ok {
			prev[k] = v
		}
	}
	return prev
}

// NeedsValidation returns the changed attributes plus every key and
// lookup key the record holds.
func (r *Record) NeedsValidation() schema.Entity {
	ret := make(schema.Entity, len(r.changed))
	for k, v := range r.changed {
		ret[k] = v
	}
	names := append(append([]string(nil), r.m.schema.Keys()...), r.m.schema.LookupKeys()...)
	for _, k := range names {
		if _, ok := ret[k]; ok {
			continue
		}
		if v, ok := r.data[k]; ok {
			ret[k] = v
		}
	}
	return ret
}

func (r *Record) Validate(mode schema.Mode) (schema.Entity, error) {
	return r.m.schema.Validate(r.NeedsValidation(), mode)
}

func (r *Record) IsValid(mode schema.Mode) bool {
	_, err := r.Validate(mode)
	return err == nil
}

// ToJSON returns the data keyed by column when snake is set, by public
// name otherwise.
func (r *Record) ToJSON(snake bool) schema.Entity {
	if snake {
		ret := make(schema.Entity, len(r.data))
		for k, v := range r.data {
			ret[k] = v
		}
		return ret
	}
	return r.m.schema.CamelEntity(r.data)
}

// Properties returns accessors for every public attribute name.
func (r *Record) Properties() map[string]schema.Property {
	return r.m.schema.BuildProperties(r)
}

// Save writes the changes of r. A record that held every key is
// validated as an update against its previous state, any other as a
// create.
func (m *Model) Save(ctx context.Context, r *Record) error {
	if !r.dirty {
		return nil
	}
	mode := schema.ModeCreate
	if r.hasKeys() {
		mode = schema.ModeUpdate
	}
	entity, err := r.Validate(mode)
	if err != nil {
		return err
	}
	opts := WriteOptions{Entities: []schema.Entity{entity}}
	if mode == schema.ModeUpdate {
		opts.Previous = []schema.Entity{r.Previous()}
	}
	if _, err := m.Update(ctx, opts); err != nil {
		return err
	}
	for k, v := range entity {
		r.data[k] = v
	}
	r.was = schema.Entity{}
	r.changed = schema.Entity{}
	r.dirty = false
	return nil
}

// hasKeys reports whether r held every key before it was changed.
func (r *Record) hasKeys() bool {
	for _, k := range r.m.schema.Keys() {
		v, changed := r.was[k]
		if !changed {
			v = r.data[k]
		}
		if v == nil {
			return false
		}
	}
	return true
}

func (m *Model) Destroy(ctx context.Context, r *Record) error {
	_, err := m.Remove(ctx, WriteOptions{Entities: []schema.Entity{r.ToJSON(false)}})
	return err
}
