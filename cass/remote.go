package cass

import (
	"sort"

	"github.com/gocql/gocql"
)

func RemoteGetColumns(
	sess *gocql.Session,
	db string,
	tablename string,
) (map[string]*Column, error) {
	const q = `select 
			column_name,
			type 
		from system_schema.columns 
		where keyspace_name = ? and table_name = ?`
	i := sess.Query(q, db, tablename).Iter()
	ret := make(map[string]*Column)
	col := new(Column)
	for i.Scan(&col.Name, &col.Type) {
		ret[col.Name] = col
		col = new(Column)
	}
	return ret, i.Close()
}

func RemoteGetPK(
	sess *gocql.Session,
	db string,
	tablename string,
) (*PrimaryKey, error) {
	const q = `select 
			column_name, 
			clustering_order, 
			kind, 
			position
		from system_schema.columns 
		where keyspace_name = ? and table_name = ?`
	var candidates []pkCandidate
	var tmp pkCandidate
	i := sess.Query(q, db, tablename).Iter()
	for i.Scan(&tmp.Name, &tmp.Order, &tmp.Kind, &tmp.Position) {
		candidates = append(candidates, tmp)
	}
	if err := i.Close(); err != nil {
		return nil, err
	}
	return primaryKeyFromCandidates(candidates), nil
}

type pkCandidate struct {
	Name     string
	Order    string
	Kind     string
	Position int
}

func primaryKeyFromCandidates(candidates []pkCandidate) *PrimaryKey {
	var pk PrimaryKey
	for _, c := range candidates {
		switch c.Kind {
		case "partition_key":
			pk.PartitionColumns = append(pk.PartitionColumns, PKPartitionColumn{
				Name:     c.Name,
				Position: c.Position,
			})
		case "clustering":
			pk.ClusteringColumns = append(pk.ClusteringColumns, PKClusteringColumn{
				Name:     c.Name,
				Position: c.Position,
				Order:    c.Order,
			})
		}
	}
	sort.Slice(pk.PartitionColumns, func(i, j int) bool {
		return pk.PartitionColumns[i].Position < pk.PartitionColumns[j].Position
	})
	sort.Slice(pk.ClusteringColumns, func(i, j int) bool {
		return pk.ClusteringColumns[i].Position < pk.ClusteringColumns[j].Position
	})
	return &pk
}

// RemoteGetMatchingTables reads the remote state of every table in names
// that exists in keyspace db.
func RemoteGetMatchingTables(
	sess *gocql.Session,
	db string,
	names []string,
) (map[string]*Table, error) {
	const q = "select table_name from system_schema.tables where keyspace_name = ?"
	i := sess.Query(q, db).Iter()
	var tmp string
	var tablenames []string
	for i.Scan(&tmp) {
		tablenames = append(tablenames, tmp)
	}
	if err := i.Close(); err != nil {
		return nil, err
	}

	wanted := make(map[string]struct{}, len(names))
	for _, n := range names {
		wanted[n] = struct{}{}
	}
	ret := make(map[string]*Table)
	var err error
	for _, tn := range tablenames {
		if _, ok := wanted[tn]; !ok {
			continue
		}
		t := &Table{Name: tn}
		if t.PrimaryKey, err = RemoteGetPK(sess, db, tn); err != nil {
			return nil, err
		}
		if t.Columns, err = RemoteGetColumns(sess, db, tn); err != nil {
			return nil, err
		}
		ret[t.Name] = t
	}
	return ret, nil
}
