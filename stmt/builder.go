package stmt

import (
	"os"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kzaag/datastar/schema"
)

// EnvironmentVariable names the process environment consulted for the
// production drop guard when no environment is configured.
const EnvironmentVariable = "DATASTAR_ENV"

// Builder creates statements for one schema. Create, update and remove
// fan out to every lookup table of the schema.
type Builder struct {
	schema *schema.Schema
	env    string
	log    *log.Entry
}

type BuilderOption func(*Builder)

func WithEnvironment(env string) BuilderOption {
	return func(b *Builder) {
		b.env = env
	}
}

func WithLogger(l *log.Entry) BuilderOption {
	return func(b *Builder) {
		b.log = l
	}
}

func NewBuilder(s *schema.Schema, opts ...BuilderOption) *Builder {
	b := &Builder{
		schema: s,
		env:    os.Getenv(EnvironmentVariable),
		log:    log.WithField("schema", s.Name()),
	}
	for _, o := range opts {
		o(b)
	}
	return b
}

func (b *Builder) Schema() *schema.Schema {
	return b.schema
}

func (b *Builder) Create(opts Options, entity schema.Entity) (Executable, error) {
	return b.run("create", func() action { return &createStatement{s: b.schema} }, true, opts, entity)
}

func (b *Builder) Update(opts Options, entity schema.Entity) (Executable, error) {
	return b.run("update", func() action { return newUpdateStatement(b.schema) }, true, opts, entity)
}

func (b *Builder) Remove(opts Options, entity schema.Entity) (Executable, error) {
	return b.run("remove", func() action { return &removeStatement{s: b.schema} }, true, opts, entity)
}

func (b *Builder) Find(opts Options, entity schema.Entity) (Executable, error) {
	return b.run("find", func() action { return &findStatement{s: b.schema} }, false, opts, entity)
}

func (b *Builder) Table(opts Options) (Executable, error) {
	return b.run("table", func() action { return &tableStatement{s: b.schema, env: b.env} }, false, opts, nil)
}

func (b *Builder) Alter(opts Options) (Executable, error) {
	return b.run("alter", func() action { return &alterStatement{s: b.schema} }, false, opts, nil)
}

func (b *Builder) run(
	name string,
	newAction func() action,
	multi bool,
	opts Options,
	entity schema.Entity,
) (Executable, error) {
	opts.lookupTable = ""
	primary, err := build(newAction(), &opts, entity)
	if err != nil {
		return nil, errors.Wrapf(err, "%s %s", name, b.schema.Name())
	}
	if !multi || !b.schema.HasLookups() {
		return primary, nil
	}

	compound := &Compound{Table: b.schema.Name()}
	compound.Add(primary)
	for _, key := range b.schema.LookupKeys() {
		table := b.schema.LookupTableFor(key)
		opts.lookupTable = table
		e, err := build(newAction(), &opts, entity)
		if err != nil {
			return nil, errors.Wrapf(err, "%s %s", name, table)
		}
		compound.Add(e)
	}

	b.log.WithFields(log.Fields{
		"action":     name,
		"statements": len(compound.Statements),
	}).Debug("built lookup table fan-out")
	return compound, nil
}

func build(a action, opts *Options, entity schema.Entity) (Executable, error) {
	r, err := a.init(opts, entity)
	if err != nil {
		return nil, err
	}
	if opts.lookupTable != "" {
		r.table = opts.lookupTable
	}
	return a.build(r)
}
