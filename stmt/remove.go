package stmt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

type removeStatement struct {
	s *schema.Schema
}

func (rm *removeStatement) init(opts *Options, entity schema.Entity) (*resolved, error) {
	conditions := opts.Conditions
	if conditions == nil {
		conditions = entity
	}
	c, err := rm.s.CreateRemoveConditions(conditions, opts.lookupTable)
	if err != nil {
		return nil, err
	}
	if len(c.Query) == 0 {
		return nil, errors.Wrapf(schema.ErrInsufficientConditions, "remove %v", conditions)
	}
	return &resolved{conditions: c, table: opts.lookupTable}, nil
}

func (rm *removeStatement) build(r *resolved) (Executable, error) {
	c := r.conditions
	table := c.Table
	if table == "" {
		table = rm.s.Name()
	}

	fields := append([]string(nil), c.Fields...)
	sort.Strings(fields)
	name := "remove-" + table + "-by-" + strings.Join(fields, "-")

	return &Statement{
		CQL:    fmt.Sprintf("DELETE FROM %s WHERE %s", table, strings.Join(c.Query, " AND ")),
		Params: c.Params,
		Options: driver.QueryOptions{
			Prepared:  true,
			QueryName: name,
		},
		Name:  name,
		Table: table,
	}, nil
}
