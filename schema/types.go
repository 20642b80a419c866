package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// Entity is a single row, keyed by column (or public) name.
type Entity = map[string]interface{}

type Kind int

const (
	Scalar Kind = iota
	Map
	Set
	List
)

func (k Kind) String() string {
	switch k {
	case Map:
		return "map"
	case Set:
		return "set"
	case List:
		return "list"
	}
	return "scalar"
}

// default rules understood by the column validator
const (
	DefaultUUIDv4    = "uuid_v4"
	DefaultUUIDEmpty = "uuid_empty"
	DefaultDateNow   = "date_now"
	DefaultCreate    = "create"
	DefaultUpdate    = "update"
)

type ColumnDef struct {
	Name    string `yaml:"name" validate:"nonzero"`
	Type    string `yaml:"type" validate:"nonzero"`
	Default string `yaml:"default"`
	NotNull bool   `yaml:"notnull"`
}

// Definition is the user supplied description of a table family.
type Definition struct {
	Name         string            `yaml:"name"`
	Columns      []ColumnDef       `yaml:"columns" validate:"min=1"`
	Partition    []string          `yaml:"partition" validate:"min=1"`
	Clustering   []string          `yaml:"clustering"`
	Aliases      map[string]string `yaml:"aliases"`
	Lookups      []string          `yaml:"lookups"`
	LookupTables map[string]string `yaml:"lookup_tables"`
}

type Column struct {
	Name      string
	Type      string
	Kind      Kind
	KeyType   string
	ValueType string
	Default   string
	NotNull   bool
}

// Hint is the CQL type text for the column.
func (c *Column) Hint() string {
	switch c.Kind {
	case Map:
		return fmt.Sprintf("map<%s,%s>", c.KeyType, c.ValueType)
	case Set:
		return fmt.Sprintf("set<%s>", c.ValueType)
	case List:
		return fmt.Sprintf("list<%s>", c.ValueType)
	}
	return c.Type
}

// IsCollection reports whether column is a map, set or list.
func (c *Column) IsCollection() bool {
	return c.Kind != Scalar
}

var collectionRe = regexp.MustCompile(`^(map|set|list)\s*<\s*([a-z0-9_]+)\s*(?:,\s*([a-z0-9_]+)\s*)?>$`)
var scalarRe = regexp.MustCompile(`^[a-z0-9_]+$`)

// ParseColumn resolves the CQL type of a column definition.
func ParseColumn(def ColumnDef) (*Column, error) {
	t := strings.ToLower(strings.TrimSpace(def.Type))
	c := &Column{
		Name:    def.Name,
		Type:    t,
		Default: def.Default,
		NotNull: def.NotNull,
	}
	if scalarRe.MatchString(t) {
		return c, nil
	}
	m := collectionRe.FindStringSubmatch(t)
	if m == nil {
		return nil, fmt.Errorf("column %s: unsupported type %q", def.Name, def.Type)
	}
	switch m[1] {
	case "map":
		if m[3] == "" {
			return nil, fmt.Errorf("column %s: map requires key and value types", def.Name)
		}
		c.Kind = Map
		c.KeyType = m[2]
		c.ValueType = m[3]
	case "set", "list":
		if m[3] != "" {
			return nil, fmt.Errorf("column %s: %s takes one element type", def.Name, m[1])
		}
		c.Kind = Set
		if m[1] == "list" {
			c.Kind = List
		}
		c.ValueType = m[2]
	}
	c.Type = m[1]
	return c, nil
}

// Param is a single bound value of a statement.
type Param struct {
	Value        interface{}
	Hint         string
	IsRoutingKey bool
}

// Conditions are the WHERE clauses of a statement, with their bound values.
type Conditions struct {
	Query          []string
	Params         []Param
	Fields         []string
	Table          string
	RoutingIndexes []int
}

// SetDelta adds and removes elements of a set column.
type SetDelta struct {
	Add    []interface{}
	Remove []interface{}
}

// ListDelta modifies a list column in place.
type ListDelta struct {
	Prepend []interface{}
	Append  []interface{}
	Remove  []interface{}
	Index   map[int]interface{}
}
