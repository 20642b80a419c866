package stmt

import (
	"github.com/kzaag/datastar/schema"
)

type FindType string

const (
	FindAll   FindType = "all"
	FindOne   FindType = "one"
	FindFirst FindType = "first"
	FindCount FindType = "count"
)

type TableKind string

const (
	TableEnsure TableKind = "ensure"
	TableDrop   TableKind = "drop"
)

type OrderBy struct {
	Key   string
	Order string
}

// Options configures a single build. Each action reads only the fields
// that concern it.
type Options struct {
	// find, remove
	Conditions     schema.Entity
	Fields         []string
	Type           FindType
	Limit          int
	AllowFiltering bool

	// create, update
	TTL      int
	Previous schema.Entity

	// table, alter
	Kind       TableKind
	LookupKey  string
	UseIndex   bool
	Force      bool
	With       map[string]interface{}
	OrderBy    *OrderBy
	AlterType  string
	Table      string
	AddColumns []schema.ColumnDef

	// set during lookup table fan-out
	lookupTable string
}

// resolved is the validated outcome of an action's init phase.
type resolved struct {
	entity     schema.Entity
	conditions *schema.Conditions
	table      string
	ttl        int
	changed    bool

	fields         []string
	limit          int
	findType       FindType
	allowFiltering bool

	kind      TableKind
	lookupKey string
	useIndex  bool
	with      string
	alterType string
	add       []*schema.Column
}

type action interface {
	init(opts *Options, entity schema.Entity) (*resolved, error)
	build(r *resolved) (Executable, error)
}
