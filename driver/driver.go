// Package driver declares the query executor consumed by statements and
// collections. cass implements it on top of gocql.
package driver

import (
	"context"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"

	"github.com/kzaag/datastar/schema"
)

var ErrNotSingle = errors.New("query returned more than one row")

type QueryOptions struct {
	Prepared  bool
	QueryName string
	AutoPage  bool
	PageSize  int
}

// Connection starts fluent queries and batches.
type Connection interface {
	BeginQuery() Query
	BeginBatch() Batch
}

type Query interface {
	Query(cql string) Query
	Options(opts QueryOptions) Query
	Params(params []schema.Param) Query
	Consistency(c gocql.Consistency) Query
	// First limits the result to the first row.
	First() Query
	// Single fails with ErrNotSingle when more than one row is returned.
	Single() Query
	Exec(ctx context.Context) error
	Iter(ctx context.Context) Rows
}

type Batch interface {
	Add(q Query) Batch
	AddBatch(b Batch) Batch
	Consistency(c gocql.Consistency) Batch
	Exec(ctx context.Context) error
}

// Rows iterates over a result. Next returns false when the result is
// drained or failed, Close reports the failure.
type Rows interface {
	Next() (schema.Entity, bool)
	Close() error
}
