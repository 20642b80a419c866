// Package stmt builds CQL statements for a schema.
package stmt

import (
	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

// ResultMode controls how many rows a statement returns.
type ResultMode int

const (
	ResultAll ResultMode = iota
	ResultFirst
	ResultSingle
)

// Executable is either a *Statement or a *Compound.
type Executable interface {
	TableName() string
	executable()
}

type Statement struct {
	CQL     string
	Params  []schema.Param
	Options driver.QueryOptions
	Name    string
	Table   string
	Mode    ResultMode
}

func (s *Statement) TableName() string { return s.Table }

func (*Statement) executable() {}

// ExtendQuery applies the statement to a query begun on any connection.
func (s *Statement) ExtendQuery(q driver.Query) driver.Query {
	switch s.Mode {
	case ResultFirst:
		q = q.First()
	case ResultSingle:
		q = q.Single()
	}
	return q.
		Query(s.CQL).
		Options(s.Options).
		Params(s.Params)
}

// Compound groups statements that are always executed as one batch.
type Compound struct {
	Statements []Executable
	Table      string
}

func (c *Compound) TableName() string { return c.Table }

func (*Compound) executable() {}

func (c *Compound) Add(e Executable) {
	c.Statements = append(c.Statements, e)
}

// Flatten returns every statement of e, descending into compounds.
func Flatten(e Executable) []*Statement {
	switch t := e.(type) {
	case *Statement:
		return []*Statement{t}
	case *Compound:
		var ret []*Statement
		for _, s := range t.Statements {
			ret = append(ret, Flatten(s)...)
		}
		return ret
	}
	return nil
}
