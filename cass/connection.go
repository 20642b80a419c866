// Package cass executes statements against Cassandra through gocql and
// inspects keyspaces for schema merges.
package cass

import (
	"context"
	"time"

	"github.com/gocql/gocql"
	log "github.com/sirupsen/logrus"
	"github.com/uber-go/tally/v4"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

const unnamedQuery = "unnamed"

// Connection implements driver.Connection on a gocql session.
type Connection struct {
	Session *gocql.Session

	scope        tally.Scope
	successScope tally.Scope
	failScope    tally.Scope
}

var _ driver.Connection = (*Connection)(nil)

func NewConnection(session *gocql.Session, keyspace string, scope tally.Scope) *Connection {
	if scope == nil {
		scope = tally.NoopScope
	}
	s := scope.SubScope("cql").Tagged(map[string]string{"keyspace": keyspace})
	return &Connection{
		Session:      session,
		scope:        s,
		successScope: s.Tagged(map[string]string{"result": "success"}),
		failScope:    s.Tagged(map[string]string{"result": "fail"}),
	}
}

func (c *Connection) BeginQuery() driver.Query {
	return &query{c: c}
}

func (c *Connection) BeginBatch() driver.Batch {
	return &batch{c: c}
}

func (c *Connection) Close() {
	c.Session.Close()
}

type resultMode int

const (
	modeAll resultMode = iota
	modeFirst
	modeSingle
)

type query struct {
	c              *Connection
	cql            string
	opts           driver.QueryOptions
	params         []schema.Param
	consistency    gocql.Consistency
	hasConsistency bool
	mode           resultMode
}

func (q *query) Query(cql string) driver.Query {
	q.cql = cql
	return q
}

func (q *query) Options(opts driver.QueryOptions) driver.Query {
	q.opts = opts
	return q
}

func (q *query) Params(params []schema.Param) driver.Query {
	q.params = params
	return q
}

func (q *query) Consistency(c gocql.Consistency) driver.Query {
	q.consistency = c
	q.hasConsistency = true
	return q
}

func (q *query) First() driver.Query {
	q.mode = modeFirst
	return q
}

func (q *query) Single() driver.Query {
	q.mode = modeSingle
	return q
}

func (q *query) name() string {
	if q.opts.QueryName == "" {
		return unnamedQuery
	}
	return q.opts.QueryName
}

func (q *query) values() []interface{} {
	values := make([]interface{}, len(q.params))
	for i, p := range q.params {
		values[i] = p.Value
	}
	return values
}

func (q *query) build(ctx context.Context) *gocql.Query {
	gq := q.c.Session.Query(q.cql, q.values()...).WithContext(ctx)
	if q.hasConsistency {
		gq = gq.Consistency(q.consistency)
	}
	switch {
	case q.mode != modeAll:
		// a second row is enough to detect non single results
		gq = gq.PageSize(2)
	case q.opts.PageSize > 0:
		gq = gq.PageSize(q.opts.PageSize)
	}
	return gq
}

func (q *query) Exec(ctx context.Context) error {
	gq := q.build(ctx)
	if err := gq.Exec(); err != nil {
		sendCounters(q.c.failScope, q.name(), opExec, err)
		log.WithFields(log.Fields{
			"query": q.name(),
			"cql":   q.cql,
		}).WithError(err).Debug("query failed")
		return err
	}
	sendLatency(q.c.scope, q.name(), opExec, time.Duration(gq.Latency()))
	sendCounters(q.c.successScope, q.name(), opExec, nil)
	return nil
}

func (q *query) Iter(ctx context.Context) driver.Rows {
	gq := q.build(ctx)
	r := &rows{q: q, gq: gq, iter: gq.Iter()}
	if q.mode == modeAll {
		return r
	}

	// first and single results are read eagerly
	var buf []schema.Entity
	for len(buf) < 2 {
		row, ok := r.scan()
		if !ok {
			break
		}
		buf = append(buf, row)
	}
	if err := r.iter.Close(); err != nil {
		r.err = err
	} else if q.mode == modeSingle && len(buf) > 1 {
		r.err = driver.ErrNotSingle
	}
	r.closed = true
	if r.err == nil && len(buf) > 1 {
		buf = buf[:1]
	}
	r.buf = buf
	r.finish()
	return r
}

// rows streams a gocql iterator as entities. UUIDs are returned as
// strings.
type rows struct {
	q      *query
	gq     *gocql.Query
	iter   *gocql.Iter
	buf    []schema.Entity
	err    error
	closed bool
	done   bool
}

func (r *rows) scan() (schema.Entity, bool) {
	m := make(map[string]interface{})
	if !r.iter.MapScan(m) {
		return nil, false
	}
	for k, v := range m {
		if u, ok := v.(gocql.UUID); ok {
			m[k] = u.String()
		}
	}
	return m, true
}

func (r *rows) Next() (schema.Entity, bool) {
	if r.err != nil {
		return nil, false
	}
	if r.closed {
		if len(r.buf) == 0 {
			return nil, false
		}
		row := r.buf[0]
		r.buf = r.buf[1:]
		return row, true
	}
	if row, ok := r.scan(); ok {
		return row, true
	}
	r.err = r.iter.Close()
	r.closed = true
	r.finish()
	return nil, false
}

func (r *rows) Close() error {
	if !r.closed {
		r.err = r.iter.Close()
		r.closed = true
		r.finish()
	}
	return r.err
}

func (r *rows) finish() {
	if r.done {
		return
	}
	r.done = true
	if r.err != nil && r.err != driver.ErrNotSingle {
		sendCounters(r.q.c.failScope, r.q.name(), opIter, r.err)
		return
	}
	sendLatency(r.q.c.scope, r.q.name(), opIter, time.Duration(r.gq.Latency()))
	sendCounters(r.q.c.successScope, r.q.name(), opIter, nil)
}

// batch is always logged, nested batches are flattened into it.
type batch struct {
	c              *Connection
	queries        []*query
	consistency    gocql.Consistency
	hasConsistency bool
}

func (b *batch) Add(q driver.Query) driver.Batch {
	b.queries = append(b.queries, q.(*query))
	return b
}

func (b *batch) AddBatch(nested driver.Batch) driver.Batch {
	b.queries = append(b.queries, nested.(*batch).queries...)
	return b
}

func (b *batch) Consistency(c gocql.Consistency) driver.Batch {
	b.consistency = c
	b.hasConsistency = true
	return b
}

func (b *batch) Exec(ctx context.Context) error {
	gb := b.c.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	if b.hasConsistency {
		gb.SetConsistency(b.consistency)
	}
	for _, q := range b.queries {
		gb.Query(q.cql, q.values()...)
	}

	if err := b.c.Session.ExecuteBatch(gb); err != nil {
		sendCounters(b.c.failScope, opBatch, opBatch, err)
		log.WithField("statements", len(b.queries)).
			WithError(err).
			Debug("batch failed")
		return err
	}
	sendLatency(b.c.scope, opBatch, opBatch, time.Duration(gb.Latency()))
	sendCounters(b.c.successScope, opBatch, opBatch, nil)
	return nil
}
