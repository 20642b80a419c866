package stmt

import (
	"fmt"
	"strings"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

type createStatement struct {
	s *schema.Schema
}

func (c *createStatement) init(opts *Options, entity schema.Entity) (*resolved, error) {
	validated, err := c.s.Validate(c.s.FixEntity(entity), schema.ModeCreate)
	if err != nil {
		return nil, err
	}
	e, err := c.s.DeNull(validated)
	if err != nil {
		return nil, err
	}
	return &resolved{entity: e, ttl: opts.TTL}, nil
}

func (c *createStatement) build(r *resolved) (Executable, error) {
	table := r.table
	if table == "" {
		table = c.s.Name()
	}
	fields := c.s.Fields()

	var ttl string
	if r.ttl > 0 {
		ttl = fmt.Sprintf(" USING TTL %d", r.ttl)
	}

	params := c.s.GetValues(r.entity, fields)
	for i, f := range fields {
		if _, ok := r.entity[f]; !ok {
			params[i].Value = c.s.NullToValue(c.s.FieldMeta(f), nil)
		}
	}

	return &Statement{
		CQL: fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)%s;",
			table,
			strings.Join(fields, ", "),
			strings.TrimSuffix(strings.Repeat("?, ", len(fields)), ", "),
			ttl),
		Params: params,
		Options: driver.QueryOptions{
			Prepared:  true,
			QueryName: "insert-" + table,
		},
		Name:  "insert-" + table,
		Table: table,
	}, nil
}
