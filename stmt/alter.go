package stmt

import (
	"fmt"
	"strings"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

type alterStatement struct {
	s *schema.Schema
}

func (a *alterStatement) init(opts *Options, _ schema.Entity) (*resolved, error) {
	r := &resolved{alterType: strings.ToUpper(opts.AlterType), table: opts.Table}
	if r.alterType != "TABLE" {
		return nil, fmt.Errorf("invalid type %s", opts.AlterType)
	}

	for _, cd := range opts.AddColumns {
		c, err := schema.ParseColumn(cd)
		if err != nil {
			return nil, err
		}
		r.add = append(r.add, c)
	}

	if len(opts.With) > 0 || opts.OrderBy != nil {
		if len(r.add) > 0 {
			return nil, fmt.Errorf("cannot add columns and change options in one statement")
		}
		w, err := With(opts.With, opts.OrderBy)
		if err != nil {
			return nil, err
		}
		r.with = w
	}

	if r.with == "" && len(r.add) == 0 {
		return nil, fmt.Errorf("nothing to alter")
	}
	return r, nil
}

func (a *alterStatement) build(r *resolved) (Executable, error) {
	table := r.table
	if table == "" {
		table = a.s.Name()
	}

	cql := fmt.Sprintf("ALTER %s %s ", r.alterType, table)
	switch {
	case len(r.add) == 1:
		cql += fmt.Sprintf("ADD %s %s", r.add[0].Name, r.add[0].Hint())
	case len(r.add) > 1:
		defs := make([]string, len(r.add))
		for i, c := range r.add {
			defs[i] = c.Name + " " + c.Hint()
		}
		cql += "ADD (" + strings.Join(defs, ", ") + ")"
	default:
		cql += r.with
	}

	name := "alter-table-" + table
	return &Statement{
		CQL:     cql,
		Options: driver.QueryOptions{QueryName: name},
		Name:    name,
		Table:   table,
	}, nil
}
