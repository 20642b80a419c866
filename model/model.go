// Package model runs create, find, update and remove operations of one
// schema against a connection, with before and after hooks per phase.
package model

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kzaag/datastar/collection"
	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/stmt"
)

var (
	ErrNoEntities       = errors.New("options or entity must be passed in")
	ErrPreviousMismatch = errors.New("you must pass in the same number of entities as previous values for an update on multiple entities")
	ErrNoConditions     = errors.New("conditions must be passed to execute a find query")
	ErrInvalidFindType  = errors.New("improper find type, must be one of all, one, first, count")
)

// Write phases.
const (
	actionCreate = "create"
	actionUpdate = "update"
	actionRemove = "remove"

	phaseBuild   = ":build"
	phaseExecute = ":execute"
)

type Options struct {
	// Zero values read and write at ONE.
	ReadConsistency  gocql.Consistency
	WriteConsistency gocql.Consistency
	// Environment of the production drop guard.
	Environment  string
	LookupKeys   []string
	LookupTables map[string]string
	Validator    schema.Validator
}

type Model struct {
	schema  *schema.Schema
	builder *stmt.Builder
	conn    driver.Connection
	hooks   *hookChain
	log     *log.Entry

	readConsistency  gocql.Consistency
	writeConsistency gocql.Consistency
}

// WriteOptions configures create, update and remove.
type WriteOptions struct {
	Entities []schema.Entity
	// Previous holds one entity per entity, or none.
	Previous    []schema.Entity
	TTL         int
	Strategy    collection.Strategy
	Consistency gocql.Consistency
	// Statements, when set, receives the built statements which are then
	// left to the caller to execute.
	Statements *collection.Collection
}

func New(conn driver.Connection, def *schema.Definition, opts Options) (*Model, error) {
	b := schema.NewBuilder(def.Name, def).
		LookupKeys(opts.LookupKeys...).
		LookupTables(opts.LookupTables)
	if opts.Validator != nil {
		b = b.Validator(opts.Validator)
	}
	s, err := b.Build()
	if err != nil {
		return nil, err
	}

	entry := log.WithField("model", s.Name())
	var bopts []stmt.BuilderOption
	bopts = append(bopts, stmt.WithLogger(entry))
	if opts.Environment != "" {
		bopts = append(bopts, stmt.WithEnvironment(opts.Environment))
	}

	m := &Model{
		schema:           s,
		builder:          stmt.NewBuilder(s, bopts...),
		conn:             conn,
		hooks:            newHookChain(),
		log:              entry,
		readConsistency:  opts.ReadConsistency,
		writeConsistency: opts.WriteConsistency,
	}
	if m.readConsistency == gocql.Any {
		m.readConsistency = gocql.One
	}
	if m.writeConsistency == gocql.Any {
		m.writeConsistency = gocql.One
	}
	m.Before(actionUpdate+phaseBuild, m.fetchPrevious)
	return m, nil
}

func (m *Model) Schema() *schema.Schema {
	return m.schema
}

func (m *Model) Builder() *stmt.Builder {
	return m.builder
}

// Before registers a hook run before the phase, e.g. "update:build",
// "create:execute", "find", "find:one" or "ensure-tables:build".
func (m *Model) Before(phase string, h Hook) {
	m.hooks.add(m.hooks.before, phase, h)
}

func (m *Model) After(phase string, h Hook) {
	m.hooks.add(m.hooks.after, phase, h)
}

func (m *Model) Create(ctx context.Context, opts WriteOptions) (*collection.Collection, error) {
	return m.write(ctx, actionCreate, opts)
}

func (m *Model) Update(ctx context.Context, opts WriteOptions) (*collection.Collection, error) {
	return m.write(ctx, actionUpdate, opts)
}

func (m *Model) Remove(ctx context.Context, opts WriteOptions) (*collection.Collection, error) {
	return m.write(ctx, actionRemove, opts)
}

func (m *Model) write(ctx context.Context, action string, opts WriteOptions) (*collection.Collection, error) {
	if len(opts.Entities) == 0 {
		return nil, ErrNoEntities
	}
	shouldExecute := opts.Statements == nil
	statements := opts.Statements
	if statements == nil {
		cons := opts.Consistency
		if cons == gocql.Any {
			cons = m.writeConsistency
		}
		statements = collection.New(m.conn, opts.Strategy).Consistency(cons)
	}

	op := &Operation{Write: &opts, Statements: statements}
	err := m.hooks.perform(ctx, action+phaseBuild, op, func() error {
		previous := op.Write.Previous
		if len(previous) > 0 && len(previous) != len(op.Write.Entities) {
			return ErrPreviousMismatch
		}
		for i, e := range op.Write.Entities {
			so := stmt.Options{TTL: op.Write.TTL}
			if len(previous) > 0 {
				so.Previous = previous[i]
			}
			ex, err := m.build(action, so, e)
			if err != nil {
				return err
			}
			statements.Add(ex)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !shouldExecute {
		return statements, nil
	}

	m.log.WithFields(log.Fields{
		"action":   action,
		"entities": len(opts.Entities),
	}).Debug("executing write")
	err = m.hooks.perform(ctx, action+phaseExecute, op, func() error {
		return statements.Execute(ctx)
	})
	return statements, err
}

func (m *Model) build(action string, opts stmt.Options, e schema.Entity) (stmt.Executable, error) {
	switch action {
	case actionCreate:
		return m.builder.Create(opts, e)
	case actionUpdate:
		return m.builder.Update(opts, e)
	}
	return m.builder.Remove(opts, e)
}

// fetchPrevious loads the previous entities an update of a schema with
// lookup tables needs, one primary key lookup per entity.
func (m *Model) fetchPrevious(ctx context.Context, op *Operation) error {
	w := op.Write
	if !m.schema.HasLookups() || len(w.Entities) == len(w.Previous) {
		return nil
	}
	if len(w.Previous) != 0 {
		return ErrPreviousMismatch
	}

	previous := make([]schema.Entity, len(w.Entities))
	for i, e := range w.Entities {
		conditions := m.schema.FilterPrimaryConditions(e)
		if len(conditions) == 0 {
			return errors.Wrap(schema.ErrInsufficientConditions, "update requires the primary key")
		}
		p, err := m.FindOne(ctx, FindOptions{Conditions: conditions})
		if err != nil {
			return errors.Wrap(err, "fetch previous entity")
		}
		previous[i] = p
	}
	w.Previous = previous
	return nil
}
