package stmt

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/pkg/errors"

	"github.com/kzaag/datastar/driver"
	"github.com/kzaag/datastar/schema"
)

var ErrProductionDrop = errors.New("please don't try and drop your prod tables without being certain")

var suffixRe = regexp.MustCompile(`_\w+$`)

type tableStatement struct {
	s   *schema.Schema
	env string
}

func (t *tableStatement) init(opts *Options, _ schema.Entity) (*resolved, error) {
	r := &resolved{kind: opts.Kind, useIndex: opts.UseIndex}
	switch opts.Kind {
	case TableEnsure, TableDrop:
	default:
		return nil, fmt.Errorf("invalid type %s", opts.Kind)
	}

	with := make(map[string]interface{}, len(opts.With))
	for k, v := range opts.With {
		with[k] = v
	}

	orderBy := opts.OrderBy
	if raw, ok := with["orderBy"]; ok {
		delete(with, "orderBy")
		if orderBy == nil {
			m, ok := raw.(map[string]interface{})
			if !ok {
				return nil, fmt.Errorf("invalid orderBy %v", raw)
			}
			key, _ := m["key"].(string)
			order, _ := m["order"].(string)
			orderBy = &OrderBy{Key: key, Order: order}
		}
	}
	if orderBy != nil {
		key, ok := t.s.Exists(orderBy.Key)
		if !ok {
			return nil, fmt.Errorf("%s does not exist for the %s schema", orderBy.Key, t.s.Name())
		}
		orderBy = &OrderBy{Key: key, Order: orderMap[strings.ToLower(orderBy.Order)]}
	}

	if opts.LookupKey != "" {
		key, ok := t.s.Exists(opts.LookupKey)
		if !ok {
			return nil, fmt.Errorf("lookup key %s does not exist for the %s schema", opts.LookupKey, t.s.Name())
		}
		col := t.s.FieldMeta(key)
		if col.Kind == schema.Map || col.Kind == schema.Set {
			return nil, fmt.Errorf("creating lookup table with type: %s", col.Kind)
		}
		r.lookupKey = key
	}

	if len(with) > 0 || orderBy != nil {
		w, err := With(with, orderBy)
		if err != nil {
			return nil, err
		}
		r.with = w
	}

	if opts.Kind == TableDrop && !opts.Force && (t.env == "prod" || t.env == "production") {
		return nil, ErrProductionDrop
	}
	return r, nil
}

// tableName resolves the physical table (or index) of a build.
func (t *tableStatement) tableName(r *resolved) string {
	if r.lookupKey == "" {
		return t.s.Name()
	}
	if table := t.s.LookupTableFor(r.lookupKey); table != "" {
		return table
	}
	if r.useIndex {
		return t.s.Name() + "_" + r.lookupKey
	}
	return t.s.Name() + "_by_" + suffixRe.ReplaceAllString(r.lookupKey, "")
}

func (t *tableStatement) build(r *resolved) (Executable, error) {
	table := t.tableName(r)
	target := "table"
	if r.useIndex {
		target = "index"
	}
	name := fmt.Sprintf("%s-%s-%s", r.kind, target, table)

	var cql string
	switch r.kind {
	case TableDrop:
		cql = fmt.Sprintf("DROP %s %s", strings.ToUpper(target), table)
	default:
		cql = t.ensure(r, table)
	}

	return &Statement{
		CQL:     cql,
		Options: driver.QueryOptions{Prepared: true, QueryName: name},
		Name:    name,
		Table:   table,
	}, nil
}

func (t *tableStatement) ensure(r *resolved, table string) string {
	primary := t.s.PrimaryKeys()
	if r.lookupKey != "" {
		primary = []string{r.lookupKey}
	}

	if r.useIndex {
		return fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s on %s(%s)",
			table, t.s.Name(), strings.Join(primary, ", "))
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", table)
	for _, f := range t.s.Fields() {
		fmt.Fprintf(&b, "  %s %s,\n", f, t.s.FieldMeta(f).Hint())
	}

	pk := strings.Join(primary, ", ")
	if len(primary) > 1 {
		pk = "(" + pk + ")"
	}
	if secondary := t.s.SecondaryKeys(); len(secondary) > 0 {
		pk += ", " + strings.Join(secondary, ", ")
	}
	fmt.Fprintf(&b, "  PRIMARY KEY (%s)\n)", pk)

	if r.with != "" {
		b.WriteString(" " + r.with)
	}
	b.WriteString(";")
	return b.String()
}
