package stmt

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

/*
	An update is a compound of UPDATE statements. Scalar columns and map
	merges share the first statement. Every set or list operation opens
	the next statement of its kind, since CQL refuses to add to and remove
	from the same collection in one statement.
*/
type updateStatement struct {
	s      *schema.Schema
	buffer []*partial
	index  map[schema.Kind]int
}

type partial struct {
	cql    []string
	params []schema.Param
}

func newUpdateStatement(s *schema.Schema) *updateStatement {
	return &updateStatement{s: s, index: make(map[schema.Kind]int)}
}

func (u *updateStatement) init(opts *Options, entity schema.Entity) (*resolved, error) {
	entity = u.s.FixEntity(entity)

	var previous schema.Entity
	if opts.Previous != nil {
		previous = u.s.FixEntity(opts.Previous)
	}

	table := opts.lookupTable
	var changed bool
	if u.s.HasLookups() && table != "" && previous != nil {
		key := u.s.LookupKeyFor(table)
		if v, ok := entity[key]; ok && v != nil {
			changed = !sameValue(v, previous[key])
		}
	}

	if changed {
		pd, err := u.s.DeNull(copyEntity(previous))
		if err != nil {
			return nil, err
		}
		if previous, err = u.s.Validate(pd, schema.ModeCreate); err != nil {
			return nil, err
		}
	}

	source := entity
	if previous != nil {
		source = previous
	}
	conditions, err := u.s.CreateUpdateConditions(source, table)
	if err != nil {
		return nil, err
	}

	validated, err := u.s.Validate(entity, schema.ModeUpdate)
	if err != nil {
		return nil, err
	}
	if changed {
		validated = u.entityToReplace(previous, validated)
	}
	e, err := u.s.DeNull(validated)
	if err != nil {
		return nil, err
	}

	return &resolved{
		entity:     e,
		conditions: conditions,
		table:      table,
		changed:    changed,
		ttl:        opts.TTL,
	}, nil
}

// sameValue compares with reflect.DeepEqual after bringing uuids, typed
// or textual, to their canonical string form.
func sameValue(a, b interface{}) bool {
	return reflect.DeepEqual(canonicalUUID(a), canonicalUUID(b))
}

func canonicalUUID(v interface{}) interface{} {
	switch t := v.(type) {
	case gocql.UUID:
		return t.String()
	case uuid.UUID:
		return t.String()
	case string:
		if len(t) == 36 {
			if id, err := uuid.Parse(t); err == nil {
				return id.String()
			}
		}
	}
	return v
}

func copyEntity(e schema.Entity) schema.Entity {
	ret := make(schema.Entity, len(e))
	for k, v := range e {
		ret[k] = v
	}
	return ret
}

func asSlice(v interface{}) []interface{} {
	if s, ok := v.([]interface{}); ok {
		return append([]interface{}(nil), s...)
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice {
		return nil
	}
	ret := make([]interface{}, rv.Len())
	for i := range ret {
		ret[i] = rv.Index(i).Interface()
	}
	return ret
}

func without(list []interface{}, remove []interface{}) []interface{} {
	ret := list[:0]
	for _, e := range list {
		keep := true
		for _, r := range remove {
			if sameValue(e, r) {
				keep = false
				break
			}
		}
		if keep {
			ret = append(ret, e)
		}
	}
	return ret
}

// entityToReplace applies the update on top of previous, producing the
// full row written when a lookup key moves.
func (u *updateStatement) entityToReplace(previous, entity schema.Entity) schema.Entity {
	merged := copyEntity(previous)
	for field, value := range entity {
		switch v := value.(type) {
		case schema.SetDelta:
			list := append(asSlice(previous[field]), v.Add...)
			merged[field] = without(list, v.Remove)
		case schema.ListDelta:
			list := append(append([]interface{}(nil), v.Prepend...), asSlice(previous[field])...)
			list = without(append(list, v.Append...), v.Remove)
			for i, e := range v.Index {
				if i < len(list) {
					list[i] = e
				}
			}
			merged[field] = list
		case map[string]interface{}:
			m := make(map[string]interface{})
			if prev, ok := previous[field].(map[string]interface{}); ok {
				for k, e := range prev {
					m[k] = e
				}
			}
			for k, e := range v {
				m[k] = e
			}
			merged[field] = m
		default:
			merged[field] = value
		}
	}
	return merged
}

func (u *updateStatement) build(r *resolved) (Executable, error) {
	if r.changed {
		return u.replaceLookupRecord(r)
	}

	isLookup := r.table != ""
	table := r.table
	if table == "" {
		table = u.s.Name()
	}

	for _, field := range u.s.Fields() {
		value, ok := r.entity[field]
		if !ok {
			continue
		}
		if isLookup && u.s.LookupKeyFor(table) == field ||
			!isLookup && u.s.IsKey(field) {
			continue
		}
		col := u.s.FieldMeta(field)
		var err error
		switch col.Kind {
		case schema.Map:
			err = u.mapUpdate(field, value)
		case schema.Set:
			err = u.setUpdate(field, value)
		case schema.List:
			err = u.listUpdate(field, value, col)
		default:
			u.columnUpdate(field, value)
		}
		if err != nil {
			return nil, err
		}
	}

	ret := &Compound{Table: table}
	options := driver.QueryOptions{Prepared: true, QueryName: "update-" + table}
	var ttl string
	if r.ttl > 0 {
		ttl = fmt.Sprintf(" USING TTL %d", r.ttl)
	}
	criteria := strings.Join(r.conditions.Query, " AND ")

	for _, p := range u.buffer {
		if len(p.cql) == 0 {
			continue
		}
		params := append([]schema.Param(nil), p.params...)
		params = append(params, r.conditions.Params...)
		ret.Add(&Statement{
			CQL: fmt.Sprintf("UPDATE %s%s SET %s WHERE %s",
				table, ttl, strings.Join(p.cql, ", "), criteria),
			Params:  params,
			Options: options,
			Name:    options.QueryName,
			Table:   table,
		})
	}
	u.buffer = nil
	return ret, nil
}

func (u *updateStatement) replaceLookupRecord(r *resolved) (Executable, error) {
	rm, err := (&removeStatement{s: u.s}).build(r)
	if err != nil {
		return nil, err
	}
	cr, err := (&createStatement{s: u.s}).build(r)
	if err != nil {
		return nil, err
	}
	return &Compound{Statements: []Executable{rm, cr}, Table: r.table}, nil
}

func (u *updateStatement) statement(idx int) *partial {
	for idx >= len(u.buffer) {
		u.buffer = append(u.buffer, &partial{})
	}
	return u.buffer[idx]
}

func (u *updateStatement) columnUpdate(field string, value interface{}) {
	p := u.statement(0)
	p.cql = append(p.cql, field+" = ?")
	p.params = append(p.params, u.s.ValueOf(field, value))
}

func (u *updateStatement) collectionUpdate(field string, kind schema.Kind, value interface{}, op string, suffix bool) {
	p := u.statement(u.index[kind])
	if suffix {
		p.cql = append(p.cql, fmt.Sprintf("%s = %s %s ?", field, field, op))
	} else {
		p.cql = append(p.cql, fmt.Sprintf("%s = ? %s %s", field, op, field))
	}
	p.params = append(p.params, u.s.ValueOf(field, value))
	if kind == schema.Set || kind == schema.List {
		u.index[kind]++
	}
}

func (u *updateStatement) mapUpdate(field string, value interface{}) error {
	if value == nil {
		value = map[string]interface{}{}
	}
	m, ok := value.(map[string]interface{})
	if !ok {
		return fmt.Errorf("tried to insert value %v into map %s in table %s, value should be an object",
			value, field, u.s.Name())
	}
	for k := range m {
		if strings.Contains(k, "--") {
			return fmt.Errorf("tried to insert invalid map key %q into map %s in table %s",
				k, field, u.s.Name())
		}
	}
	u.collectionUpdate(field, schema.Map, m, "+", true)
	return nil
}

func (u *updateStatement) setUpdate(field string, value interface{}) error {
	switch v := value.(type) {
	case nil, []interface{}:
		u.columnUpdate(field, v)
	case schema.SetDelta:
		if len(v.Add) > 0 {
			u.collectionUpdate(field, schema.Set, v.Add, "+", true)
		}
		if len(v.Remove) > 0 {
			u.collectionUpdate(field, schema.Set, v.Remove, "-", true)
		}
	default:
		return fmt.Errorf("invalid value %v for set update on %s", value, field)
	}
	return nil
}

func (u *updateStatement) listUpdate(field string, value interface{}, col *schema.Column) error {
	switch v := value.(type) {
	case nil, []interface{}:
		u.columnUpdate(field, v)
	case schema.ListDelta:
		if len(v.Prepend) > 0 {
			u.collectionUpdate(field, schema.List, v.Prepend, "+", false)
		}
		if len(v.Append) > 0 {
			u.collectionUpdate(field, schema.List, v.Append, "+", true)
		}
		if len(v.Remove) > 0 {
			u.collectionUpdate(field, schema.List, v.Remove, "-", true)
		}
		if len(v.Index) > 0 {
			return u.listIndexUpdate(field, v.Index, col)
		}
	default:
		return fmt.Errorf("invalid value %v for list update on %s", value, field)
	}
	return nil
}

func (u *updateStatement) listIndexUpdate(field string, index map[int]interface{}, col *schema.Column) error {
	idx := make([]int, 0, len(index))
	for i := range index {
		if i < 0 {
			return fmt.Errorf("tried to insert an invalid index %d into list %s", i, field)
		}
		idx = append(idx, i)
	}
	sort.Ints(idx)
	p := u.statement(0)
	for _, i := range idx {
		p.cql = append(p.cql, fmt.Sprintf("%s[%d] = ?", field, i))
		p.params = append(p.params, u.s.ValueOf(field, index[i], col.ValueType))
	}
	return nil
}
