package stmt

import (
	"fmt"
	"sort"
	"strings"

	"github.com/pkg/errors"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

var ErrUnsupported = errors.New("unsupported query")

type findStatement struct {
	s *schema.Schema
}

func (f *findStatement) init(opts *Options, entity schema.Entity) (*resolved, error) {
	conditions := opts.Conditions
	if conditions == nil {
		conditions = entity
	}

	switch opts.Type {
	case "", FindAll, FindOne, FindFirst, FindCount:
	default:
		return nil, fmt.Errorf("invalid find type %s", opts.Type)
	}

	c, err := f.s.CreateConditions(conditions)
	if err != nil {
		return nil, err
	}
	if len(c.Query) == 0 && len(conditions) > 0 {
		return nil, errors.Wrapf(schema.ErrInsufficientConditions, "find %v", conditions)
	}

	// filtering on a composite partition key by range or IN is refused
	if opts.AllowFiltering && f.s.CompositePrimary() {
		for i, field := range c.Fields {
			if isPartitionKey(f.s, field) && c.Query[i] != field+" = ?" {
				return nil, errors.Wrapf(ErrUnsupported,
					"ALLOW FILTERING with %q on composite partition key", c.Query[i])
			}
		}
	}

	t := opts.Type
	if t == "" {
		t = FindAll
	}
	return &resolved{
		conditions:     c,
		fields:         f.s.FixFields(opts.Fields),
		limit:          opts.Limit,
		findType:       t,
		allowFiltering: opts.AllowFiltering,
	}, nil
}

func isPartitionKey(s *schema.Schema, field string) bool {
	for _, k := range s.PrimaryKeys() {
		if k == field {
			return true
		}
	}
	return false
}

func (f *findStatement) build(r *resolved) (Executable, error) {
	c := r.conditions
	table := c.Table
	if table == "" {
		table = f.s.Name()
	}

	fieldsCQL := f.s.FieldString(r.fields)
	if r.findType == FindCount {
		fieldsCQL = "COUNT(*)"
	}

	sorted := append([]string(nil), r.fields...)
	sort.Strings(sorted)
	name := strings.Join(sorted, "-")
	if name == "" {
		name = string(r.findType)
	}
	name += "-from-" + table

	cql := fmt.Sprintf("SELECT %s FROM %s", fieldsCQL, table)
	if len(c.Query) > 0 {
		cql += " WHERE " + strings.Join(c.Query, " AND ")
		by := append([]string(nil), c.Fields...)
		sort.Strings(by)
		name += "-by-" + strings.Join(by, "-")
	}
	if r.limit > 0 {
		cql += fmt.Sprintf(" LIMIT %d", r.limit)
		name += fmt.Sprintf("-limit-%d", r.limit)
	}
	if r.allowFiltering {
		cql += " ALLOW FILTERING"
	}

	st := &Statement{
		CQL:    cql,
		Params: c.Params,
		Options: driver.QueryOptions{
			Prepared:  true,
			QueryName: name,
			AutoPage:  true,
		},
		Name:  name,
		Table: table,
	}
	switch r.findType {
	case FindFirst, FindCount:
		st.Mode = ResultFirst
	case FindOne:
		st.Mode = ResultSingle
	}
	return st, nil
}
