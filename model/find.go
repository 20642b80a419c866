package model

import (
	"context"
	"fmt"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/stmt"
)

type FindOptions struct {
	Type           stmt.FindType
	Conditions     schema.Entity
	Fields         []string
	Limit          int
	AllowFiltering bool
	Consistency    gocql.Consistency
	PageSize       int
}

func findPhase(t stmt.FindType) string {
	if t == stmt.FindAll {
		return "find"
	}
	return "find:" + string(t)
}

// Find runs a query and returns []schema.Entity for all, a schema.Entity
// (nil when nothing matched) for one and first, and an int64 for count.
func (m *Model) Find(ctx context.Context, opts FindOptions) (interface{}, error) {
	if opts.Type == "" {
		opts.Type = stmt.FindAll
	}
	switch opts.Type {
	case stmt.FindAll, stmt.FindOne, stmt.FindFirst, stmt.FindCount:
	default:
		return nil, errors.Wrapf(ErrInvalidFindType, "got %s", opts.Type)
	}
	if opts.Conditions == nil {
		return nil, ErrNoConditions
	}

	op := &Operation{Find: &opts}
	err := m.hooks.perform(ctx, findPhase(opts.Type), op, func() error {
		rows, err := m.query(ctx, op.Find)
		if err != nil {
			return err
		}
		var result []schema.Entity
		for {
			row, ok := rows.Next()
			if !ok {
				break
			}
			result = append(result, m.toInstance(row))
		}
		if err := rows.Close(); err != nil {
			return err
		}

		switch op.Find.Type {
		case stmt.FindAll:
			op.Result = result
		case stmt.FindCount:
			var count int64
			if len(result) > 0 {
				if count, err = countOf(result[0]); err != nil {
					return err
				}
			}
			op.Result = count
		default:
			var first schema.Entity
			if len(result) > 0 {
				first = result[0]
			}
			op.Result = first
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return op.Result, nil
}

func (m *Model) query(ctx context.Context, opts *FindOptions) (driver.Rows, error) {
	e, err := m.builder.Find(stmt.Options{
		Type:           opts.Type,
		Conditions:     opts.Conditions,
		Fields:         opts.Fields,
		Limit:          opts.Limit,
		AllowFiltering: opts.AllowFiltering,
	}, nil)
	if err != nil {
		return nil, err
	}
	st := *e.(*stmt.Statement)
	if opts.PageSize > 0 {
		st.Options.PageSize = opts.PageSize
	}
	cons := opts.Consistency
	if cons == gocql.Any {
		cons = m.readConsistency
	}
	return st.ExtendQuery(m.conn.BeginQuery()).Consistency(cons).Iter(ctx), nil
}

func countOf(row schema.Entity) (int64, error) {
	switch n := row["count"].(type) {
	case int64:
		return n, nil
	case int:
		return int64(n), nil
	case int32:
		return int64(n), nil
	}
	return 0, fmt.Errorf("unexpected count result %v", row)
}

func (m *Model) toInstance(row schema.Entity) schema.Entity {
	return m.schema.CamelEntity(m.schema.ReNull(row))
}

func (m *Model) FindAll(ctx context.Context, opts FindOptions) ([]schema.Entity, error) {
	opts.Type = stmt.FindAll
	res, err := m.Find(ctx, opts)
	if err != nil {
		return nil, err
	}
	ret, _ := res.([]schema.Entity)
	return ret, nil
}

// FindOne fails with driver.ErrNotSingle when more than one row matches.
func (m *Model) FindOne(ctx context.Context, opts FindOptions) (schema.Entity, error) {
	opts.Type = stmt.FindOne
	return m.findEntity(ctx, opts)
}

func (m *Model) FindFirst(ctx context.Context, opts FindOptions) (schema.Entity, error) {
	opts.Type = stmt.FindFirst
	return m.findEntity(ctx, opts)
}

func (m *Model) findEntity(ctx context.Context, opts FindOptions) (schema.Entity, error) {
	res, err := m.Find(ctx, opts)
	if err != nil {
		return nil, err
	}
	ret, _ := res.(schema.Entity)
	return ret, nil
}

// Get finds the entity whose single column partition key is key.
func (m *Model) Get(ctx context.Context, key interface{}) (schema.Entity, error) {
	conditions, err := m.schema.GenerateConditions(key)
	if err != nil {
		return nil, err
	}
	return m.FindOne(ctx, FindOptions{Conditions: conditions})
}

func (m *Model) Count(ctx context.Context, opts FindOptions) (int64, error) {
	opts.Type = stmt.FindCount
	res, err := m.Find(ctx, opts)
	if err != nil {
		return 0, err
	}
	n, _ := res.(int64)
	return n, nil
}

// Iterator streams the rows of a find.
type Iterator struct {
	m    *Model
	rows driver.Rows
	done bool
}

// Next returns the next entity, nil once the rows are drained. An error
// ends the iteration.
func (it *Iterator) Next() (schema.Entity, error) {
	if it.done {
		return nil, nil
	}
	if row, ok := it.rows.Next(); ok {
		return it.m.toInstance(row), nil
	}
	it.done = true
	return nil, it.rows.Close()
}

func (it *Iterator) Close() {
	if !it.done {
		it.done = true
		_ = it.rows.Close()
	}
}

// FindIter streams the rows of a find. Hooks of the "find" phase run
// before the first row is read, Result holds the iterator.
func (m *Model) FindIter(ctx context.Context, opts FindOptions) (*Iterator, error) {
	if opts.Type == "" {
		opts.Type = stmt.FindAll
	}
	if opts.Type != stmt.FindAll {
		return nil, errors.Wrapf(ErrInvalidFindType, "iterate %s", opts.Type)
	}
	if opts.Conditions == nil {
		return nil, ErrNoConditions
	}
	op := &Operation{Find: &opts}
	err := m.hooks.perform(ctx, findPhase(opts.Type), op, func() error {
		rows, err := m.query(ctx, op.Find)
		if err != nil {
			return err
		}
		op.Result = &Iterator{m: m, rows: rows}
		return nil
	})
	if err != nil {
		return nil, err
	}
	it, ok := op.Result.(*Iterator)
	if !ok {
		return nil, errors.New("find hook replaced the iterator")
	}
	return it, nil
}
