// Package collection executes built statements, either as one atomic
// batch or independently with bounded concurrency.
package collection

import (
	"context"

	"github.com/gocql/gocql"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/stmt"
)

// Strategy selects how a collection executes. Batch is the zero value,
// a positive value is the number of statements allowed in flight.
type Strategy int

const (
	Batch Strategy = 0

	defaultConcurrency = 5
)

// Concurrent executes statements independently, at most n at once. A
// non-positive n falls back to the default.
func Concurrent(n int) Strategy {
	if n <= 0 {
		return Strategy(defaultConcurrency)
	}
	return Strategy(n)
}

type Collection struct {
	conn        driver.Connection
	strategy    Strategy
	consistency gocql.Consistency
	statements  []stmt.Executable
}

func New(conn driver.Connection, strategy Strategy) *Collection {
	if strategy < 0 {
		strategy = defaultConcurrency
	}
	return &Collection{
		conn:        conn,
		strategy:    strategy,
		consistency: gocql.LocalQuorum,
	}
}

func (c *Collection) Add(e ...stmt.Executable) *Collection {
	for _, s := range e {
		if s != nil {
			c.statements = append(c.statements, s)
		}
	}
	return c
}

// Consistency sets the level used by every statement of the collection.
func (c *Collection) Consistency(level gocql.Consistency) *Collection {
	c.consistency = level
	return c
}

func (c *Collection) Statements() []stmt.Executable {
	return c.statements
}

func (c *Collection) Len() int {
	return len(c.statements)
}

func (c *Collection) Execute(ctx context.Context) error {
	if len(c.statements) == 0 {
		return nil
	}
	log.WithFields(log.Fields{
		"statements":  len(c.statements),
		"strategy":    int(c.strategy),
		"consistency": c.consistency.String(),
	}).Debug("executing statement collection")

	if c.strategy == Batch {
		return c.executeBatch(ctx, c.statements)
	}
	return c.executeConcurrent(ctx)
}

func (c *Collection) executeBatch(ctx context.Context, statements []stmt.Executable) error {
	b := c.conn.BeginBatch().Consistency(c.consistency)
	if !c.fill(b, statements) {
		return nil
	}
	return b.Exec(ctx)
}

// fill adds statements to b, nesting compounds. It reports whether
// anything was added.
func (c *Collection) fill(b driver.Batch, statements []stmt.Executable) bool {
	var added bool
	for _, e := range statements {
		switch t := e.(type) {
		case *stmt.Statement:
			b.Add(t.ExtendQuery(c.conn.BeginQuery()))
			added = true
		case *stmt.Compound:
			nested := c.conn.BeginBatch()
			if c.fill(nested, t.Statements) {
				b.AddBatch(nested)
				added = true
			}
		}
	}
	return added
}

func (c *Collection) executeConcurrent(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(int(c.strategy))

	for _, e := range c.statements {
		if gctx.Err() != nil {
			break
		}
		e := e
		g.Go(func() error {
			// nothing new starts once a statement failed
			if gctx.Err() != nil {
				return nil
			}
			return c.executeOne(ctx, e)
		})
	}
	return g.Wait()
}

func (c *Collection) executeOne(ctx context.Context, e stmt.Executable) error {
	switch t := e.(type) {
	case *stmt.Statement:
		return t.ExtendQuery(c.conn.BeginQuery()).
			Consistency(c.consistency).
			Exec(ctx)
	case *stmt.Compound:
		return c.executeBatch(ctx, t.Statements)
	}
	return nil
}
