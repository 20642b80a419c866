package model

import (
	"context"

	"github.com/kzaag/datastar/collection"
	"github.com/kzaag/datastar/stmt"
)

// tables are never batched together
const tableConcurrency = 10

type TableOptions struct {
	With    map[string]interface{}
	OrderBy *stmt.OrderBy
	Force   bool
	// Statements, when set, receives the built statements which are then
	// left to the caller to execute.
	Statements *collection.Collection
}

// EnsureTables creates the table and every lookup table of the model.
func (m *Model) EnsureTables(ctx context.Context, opts TableOptions) (*collection.Collection, error) {
	return m.tables(ctx, stmt.TableEnsure, opts)
}

// DropTables drops the table and every lookup table of the model.
func (m *Model) DropTables(ctx context.Context, opts TableOptions) (*collection.Collection, error) {
	return m.tables(ctx, stmt.TableDrop, opts)
}

func (m *Model) tables(ctx context.Context, kind stmt.TableKind, opts TableOptions) (*collection.Collection, error) {
	action := string(kind) + "-tables"
	shouldExecute := opts.Statements == nil
	statements := opts.Statements
	if statements == nil {
		statements = collection.New(m.conn, collection.Concurrent(tableConcurrency))
	}

	op := &Operation{Table: &opts, Statements: statements}
	err := m.hooks.perform(ctx, action+phaseBuild, op, func() error {
		keys := append([]string{""}, m.schema.LookupKeys()...)
		for _, key := range keys {
			e, err := m.builder.Table(stmt.Options{
				Kind:      kind,
				LookupKey: key,
				With:      op.Table.With,
				OrderBy:   op.Table.OrderBy,
				Force:     op.Table.Force,
			})
			if err != nil {
				return err
			}
			statements.Add(e)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !shouldExecute {
		return statements, nil
	}
	err = m.hooks.perform(ctx, action+phaseExecute, op, func() error {
		return statements.Execute(ctx)
	})
	return statements, err
}
