package cass

import (
	"strings"

	"github.com/gocql/gocql"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/kzaag/datastar/schema"
	"github.com/kzaag/datastar/stmt"
)

var ErrPrimaryKeyChanged = errors.New("primary key differs from the remote table")

// PhysicalTable is one table backing a schema. LookupKey is empty for
// the primary table.
type PhysicalTable struct {
	Name      string
	LookupKey string
}

// PhysicalTables lists the primary table of s followed by its lookup
// tables in lookup key order.
func PhysicalTables(s *schema.Schema) []PhysicalTable {
	ret := []PhysicalTable{{Name: s.Name()}}
	for _, k := range s.LookupKeys() {
		ret = append(ret, PhysicalTable{Name: s.LookupTableFor(k), LookupKey: k})
	}
	return ret
}

// MergeCmdPK reports whether the remote primary key matches the local
// one of the table.
func MergeCmdPK(s *schema.Schema, t PhysicalTable, remote *PrimaryKey) bool {
	partition := s.PrimaryKeys()
	if t.LookupKey != "" {
		partition = []string{t.LookupKey}
	}
	clustering := s.SecondaryKeys()
	if remote == nil ||
		len(remote.PartitionColumns) != len(partition) ||
		len(remote.ClusteringColumns) != len(clustering) {
		return false
	}
	for i, c := range remote.PartitionColumns {
		if c.Name != partition[i] {
			return false
		}
	}
	for i, c := range remote.ClusteringColumns {
		if c.Name != clustering[i] {
			return false
		}
	}
	return true
}

func normalizeType(t string) string {
	return strings.ToLower(strings.Replace(t, " ", "", -1))
}

// MergeColumns returns an ALTER adding the local columns missing from
// remote, or nil when there is nothing to add. Columns whose type differs
// cannot be altered and are only reported.
func MergeColumns(b *stmt.Builder, table string, remote *Table) (stmt.Executable, error) {
	s := b.Schema()
	var add []schema.ColumnDef
	for _, f := range s.Fields() {
		col := s.FieldMeta(f)
		rc, ok := remote.Columns[f]
		if !ok {
			add = append(add, schema.ColumnDef{Name: f, Type: col.Hint()})
			continue
		}
		if normalizeType(rc.Type) != normalizeType(col.Hint()) {
			log.WithFields(log.Fields{
				"table":  table,
				"column": f,
				"local":  col.Hint(),
				"remote": rc.Type,
			}).Warn("column type differs from the remote table")
		}
	}
	for name := range remote.Columns {
		if s.FieldMeta(name) == nil {
			log.WithFields(log.Fields{
				"table":  table,
				"column": name,
			}).Warn("remote column is not in the schema")
		}
	}
	if len(add) == 0 {
		return nil, nil
	}
	return b.Alter(stmt.Options{
		AlterType:  "TABLE",
		Table:      table,
		AddColumns: add,
	})
}

// MergeSchema returns the statements creating the tables of b missing
// from remote and adding their missing columns.
func MergeSchema(b *stmt.Builder, remote map[string]*Table) ([]stmt.Executable, error) {
	var ret []stmt.Executable
	s := b.Schema()
	for _, t := range PhysicalTables(s) {
		rt, ok := remote[t.Name]
		if !ok {
			e, err := b.Table(stmt.Options{Kind: stmt.TableEnsure, LookupKey: t.LookupKey})
			if err != nil {
				return nil, err
			}
			ret = append(ret, e)
			continue
		}
		if !MergeCmdPK(s, t, rt.PrimaryKey) {
			return nil, errors.Wrapf(ErrPrimaryKeyChanged, "table %s", t.Name)
		}
		e, err := MergeColumns(b, t.Name, rt)
		if err != nil {
			return nil, err
		}
		if e != nil {
			ret = append(ret, e)
		}
	}
	return ret, nil
}

// Merge inspects keyspace and returns the statements bringing it in line
// with every builder's schema.
func Merge(sess *gocql.Session, keyspace string, builders []*stmt.Builder) ([]stmt.Executable, error) {
	var names []string
	for _, b := range builders {
		for _, t := range PhysicalTables(b.Schema()) {
			names = append(names, t.Name)
		}
	}
	remote, err := RemoteGetMatchingTables(sess, keyspace, names)
	if err != nil {
		return nil, errors.Wrapf(err, "inspect keyspace %s", keyspace)
	}

	var ret []stmt.Executable
	for _, b := range builders {
		e, err := MergeSchema(b, remote)
		if err != nil {
			return nil, err
		}
		ret = append(ret, e...)
	}
	return ret, nil
}
