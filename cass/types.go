package cass

// Column is a column as reported by system_schema.
type Column struct {
	Name string
	Type string
}

type PKClusteringColumn struct {
	Name     string
	Order    string
	Position int
}

type PKPartitionColumn struct {
	Name     string
	Position int
}

type PrimaryKey struct {
	PartitionColumns  []PKPartitionColumn
	ClusteringColumns []PKClusteringColumn
}

// Table is the remote state of one table.
type Table struct {
	Name       string
	Columns    map[string]*Column
	PrimaryKey *PrimaryKey
}
