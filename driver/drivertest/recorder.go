// Package drivertest provides an in-memory driver.Connection that records
// every executed query and batch. Results and failures are programmed
// with testify mock expectations on the methods "Exec", "Rows" and
// "ExecBatch"; a method without expectations succeeds with no rows.
package drivertest

import (
	"context"
	"sync"

	"github.com/gocql/gocql"
	"github.com/stretchr/testify/mock"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

type Mode int

const (
	All Mode = iota
	First
	Single
)

// Executed is a query as it reached the recorder.
type Executed struct {
	CQL         string
	Params      []schema.Param
	Options     driver.QueryOptions
	Consistency gocql.Consistency
	Mode        Mode
}

// ExecutedBatch is a batch with nested batches flattened.
type ExecutedBatch struct {
	Queries     []Executed
	Consistency gocql.Consistency
}

// Recorder records executions.
//
//	rec.On("Rows", mock.Anything).Return([]schema.Entity{{"id": id}}, nil)
//	rec.On("Exec", mock.Anything).Return(errors.New("timeout"))
//	rec.On("ExecBatch", mock.Anything).Return(nil)
type Recorder struct {
	mock.Mock

	mu      sync.Mutex
	Queries []Executed
	Batches []ExecutedBatch
}

func New() *Recorder {
	return &Recorder{}
}

func (r *Recorder) BeginQuery() driver.Query {
	return &query{r: r}
}

func (r *Recorder) BeginBatch() driver.Batch {
	return &batch{r: r}
}

// Reset forgets everything recorded.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queries = nil
	r.Batches = nil
}

func (r *Recorder) record(q Executed) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Queries = append(r.Queries, q)
}

func (r *Recorder) expects(method string) bool {
	for _, c := range r.ExpectedCalls {
		if c.Method == method {
			return true
		}
	}
	return false
}

func (r *Recorder) exec(q Executed) error {
	if !r.expects("Exec") {
		return nil
	}
	return r.MethodCalled("Exec", q).Error(0)
}

func (r *Recorder) rows(q Executed) ([]schema.Entity, error) {
	if !r.expects("Rows") {
		return nil, nil
	}
	args := r.MethodCalled("Rows", q)
	res, _ := args.Get(0).([]schema.Entity)
	return res, args.Error(1)
}

func (r *Recorder) execBatch(b ExecutedBatch) error {
	if !r.expects("ExecBatch") {
		return nil
	}
	return r.MethodCalled("ExecBatch", b).Error(0)
}

type query struct {
	r *Recorder
	e Executed
}

func (q *query) Query(cql string) driver.Query {
	q.e.CQL = cql
	return q
}

func (q *query) Options(opts driver.QueryOptions) driver.Query {
	q.e.Options = opts
	return q
}

func (q *query) Params(params []schema.Param) driver.Query {
	q.e.Params = params
	return q
}

func (q *query) Consistency(c gocql.Consistency) driver.Query {
	q.e.Consistency = c
	return q
}

func (q *query) First() driver.Query {
	q.e.Mode = First
	return q
}

func (q *query) Single() driver.Query {
	q.e.Mode = Single
	return q
}

func (q *query) Exec(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	q.r.record(q.e)
	return q.r.exec(q.e)
}

func (q *query) Iter(ctx context.Context) driver.Rows {
	if err := q.Exec(ctx); err != nil {
		return &rows{err: err}
	}
	res, err := q.r.rows(q.e)
	if err != nil {
		return &rows{err: err}
	}
	switch q.e.Mode {
	case First:
		if len(res) > 1 {
			res = res[:1]
		}
	case Single:
		if len(res) > 1 {
			return &rows{err: driver.ErrNotSingle}
		}
	}
	return &rows{data: res}
}

type rows struct {
	data []schema.Entity
	err  error
}

func (r *rows) Next() (schema.Entity, bool) {
	if r.err != nil || len(r.data) == 0 {
		return nil, false
	}
	row := r.data[0]
	r.data = r.data[1:]
	return row, true
}

func (r *rows) Close() error {
	return r.err
}

type batch struct {
	r       *Recorder
	queries []Executed
	cons    gocql.Consistency
}

func (b *batch) Add(q driver.Query) driver.Batch {
	b.queries = append(b.queries, q.(*query).e)
	return b
}

func (b *batch) AddBatch(nested driver.Batch) driver.Batch {
	b.queries = append(b.queries, nested.(*batch).queries...)
	return b
}

func (b *batch) Consistency(c gocql.Consistency) driver.Batch {
	b.cons = c
	return b
}

func (b *batch) Exec(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	eb := ExecutedBatch{Queries: b.queries, Consistency: b.cons}
	b.r.mu.Lock()
	b.r.Batches = append(b.r.Batches, eb)
	b.r.mu.Unlock()
	return b.r.execBatch(eb)
}
