package schema

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/iancoleman/strcase"
	"github.com/pkg/errors"
	validator "gopkg.in/validator.v2"
)

var (
	ErrInvalidName            = errors.New("invalid character in schema name, use snake_case")
	ErrNoPartitionKey         = errors.New("you must define a partition key on your schema")
	ErrCompositeLookup        = errors.New("you cannot create a lookup table with a compound key")
	ErrInsufficientConditions = errors.New("insufficient conditions")
	ErrMultiplePrimary        = errors.New("there can only be 1 primary key in a query")
)

var invalidChar = regexp.MustCompile(`\W`)

/*
	Schema is the denormalized, read only view of a Definition.
	Everything is resolved once in Builder.Build so the statement builders
	can ask cheap questions (is this a key, what type is this column,
	which lookup table holds this key).
*/
type Schema struct {
	name    string
	columns map[string]*Column
	fields  []string

	aliases        map[string]string
	aliasesReverse map[string]string

	primaryKeys      []string
	secondaryKeys    []string
	keys             []string
	keysLookup       map[string]bool
	primaryLookup    map[string]bool
	secondaryLookup  map[string]bool
	compositePrimary bool

	lookupTables  map[string]string
	reverseLookup map[string]string
	requiredKeys  []string

	validator Validator

	mappedOnce sync.Once
	mapped     []string
}

// Builder assembles a Schema in two phases: columns and keys first,
// lookup tables second. Build validates both.
type Builder struct {
	name         string
	def          *Definition
	validator    Validator
	lookupKeys   []string
	lookupTables map[string]string
}

func NewBuilder(name string, def *Definition) *Builder {
	if name == "" && def != nil {
		name = def.Name
	}
	b := &Builder{name: name, def: def}
	if def != nil {
		b.lookupKeys = append(b.lookupKeys, def.Lookups...)
		if len(def.LookupTables) > 0 {
			b.lookupTables = make(map[string]string, len(def.LookupTables))
			for k, v := range def.LookupTables {
				b.lookupTables[k] = v
			}
		}
	}
	return b
}

func (b *Builder) Validator(v Validator) *Builder {
	b.validator = v
	return b
}

// LookupKeys adds lookup tables named <schema>_by_<key>.
func (b *Builder) LookupKeys(keys ...string) *Builder {
	b.lookupKeys = append(b.lookupKeys, keys...)
	return b
}

// LookupTables adds lookup tables with explicit names, key -> table.
func (b *Builder) LookupTables(tables map[string]string) *Builder {
	if b.lookupTables == nil {
		b.lookupTables = make(map[string]string, len(tables))
	}
	for k, v := range tables {
		b.lookupTables[k] = v
	}
	return b
}

func (b *Builder) Build() (*Schema, error) {
	if b.def == nil {
		return nil, errors.New("schema definition is required")
	}
	if b.name == "" || invalidChar.MatchString(b.name) {
		return nil, errors.Wrapf(ErrInvalidName, "schema %q", b.name)
	}
	if len(b.def.Partition) == 0 {
		return nil, errors.Wrapf(ErrNoPartitionKey, "schema %s", b.name)
	}
	if err := validator.Validate(b.def); err != nil {
		return nil, errors.Wrapf(err, "schema %s", b.name)
	}

	s := &Schema{
		name:           strings.ToLower(b.name),
		columns:        make(map[string]*Column, len(b.def.Columns)),
		aliases:        make(map[string]string, len(b.def.Aliases)),
		aliasesReverse: make(map[string]string, len(b.def.Aliases)),
		validator:      b.validator,
	}
	if s.validator == nil {
		s.validator = ColumnValidator{}
	}

	for _, cd := range b.def.Columns {
		if _, ok := s.columns[cd.Name]; ok {
			return nil, fmt.Errorf("schema %s: duplicate column %s", s.name, cd.Name)
		}
		c, err := ParseColumn(cd)
		if err != nil {
			return nil, errors.Wrapf(err, "schema %s", s.name)
		}
		s.columns[c.Name] = c
		s.fields = append(s.fields, c.Name)
	}

	for public, real := range b.def.Aliases {
		s.aliases[strcase.ToSnake(public)] = real
		s.aliasesReverse[real] = public
	}

	s.primaryKeys = append([]string(nil), b.def.Partition...)
	s.secondaryKeys = append([]string(nil), b.def.Clustering...)
	s.keys = append(append([]string(nil), s.primaryKeys...), s.secondaryKeys...)
	for _, k := range s.keys {
		if _, ok := s.columns[k]; !ok {
			return nil, fmt.Errorf("schema %s: key %s is not a column", s.name, k)
		}
	}
	s.compositePrimary = len(s.primaryKeys) >= 2
	s.keysLookup = createLookup(s.keys)
	s.primaryLookup = createLookup(s.primaryKeys)
	s.secondaryLookup = createLookup(s.secondaryKeys)

	if err := s.setLookupTables(b.lookupKeys, b.lookupTables); err != nil {
		return nil, err
	}
	return s, nil
}

// New builds a schema from its definition in one call.
func New(name string, def *Definition) (*Schema, error) {
	return NewBuilder(name, def).Build()
}

func (s *Schema) setLookupTables(keys []string, tables map[string]string) error {
	if s.compositePrimary && (len(keys) > 0 || len(tables) > 0) {
		return errors.Wrapf(ErrCompositeLookup, "schema %s", s.name)
	}

	s.lookupTables = make(map[string]string, len(keys)+len(tables))
	for _, k := range keys {
		k = s.FixKey(k)
		s.lookupTables[k] = s.name + "_by_" + k
	}
	for k, t := range tables {
		s.lookupTables[s.FixKey(k)] = t
	}

	var missing []string
	for _, k := range s.LookupKeys() {
		if _, ok := s.columns[k]; !ok {
			missing = append(missing, k)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("invalid lookup keys: %s", strings.Join(missing, ", "))
	}

	s.reverseLookup = make(map[string]string, len(s.lookupTables))
	for k, t := range s.lookupTables {
		s.reverseLookup[t] = k
	}

	seen := make(map[string]bool)
	for _, k := range append(s.LookupKeys(), s.keys...) {
		if !seen[k] {
			seen[k] = true
			s.requiredKeys = append(s.requiredKeys, k)
		}
	}
	return nil
}

func createLookup(keys []string) map[string]bool {
	ret := make(map[string]bool, len(keys))
	for _, k := range keys {
		ret[k] = true
	}
	return ret
}

func (s *Schema) Name() string { return s.name }

func (s *Schema) PrimaryKeys() []string { return s.primaryKeys }

func (s *Schema) SecondaryKeys() []string { return s.secondaryKeys }

// Keys returns partition keys followed by clustering keys.
func (s *Schema) Keys() []string { return s.keys }

func (s *Schema) IsKey(key string) bool { return s.keysLookup[key] }

func (s *Schema) CompositePrimary() bool { return s.compositePrimary }

func (s *Schema) HasLookups() bool { return len(s.lookupTables) > 0 }

// RequiredKeys are the columns a create must carry: lookup keys and all keys.
func (s *Schema) RequiredKeys() []string { return s.requiredKeys }

// LookupKeys returns the lookup key columns in sorted order.
func (s *Schema) LookupKeys() []string {
	ret := make([]string, 0, len(s.lookupTables))
	for k := range s.lookupTables {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

func (s *Schema) LookupTables() map[string]string {
	ret := make(map[string]string, len(s.lookupTables))
	for k, v := range s.lookupTables {
		ret[k] = v
	}
	return ret
}

// LookupTableFor returns the lookup table holding key, or "".
func (s *Schema) LookupTableFor(key string) string { return s.lookupTables[key] }

// LookupKeyFor returns the key column of a lookup table, or "".
func (s *Schema) LookupKeyFor(table string) string { return s.reverseLookup[table] }

func (s *Schema) FieldMeta(field string) *Column { return s.columns[field] }

// Fields returns the column names in definition order.
func (s *Schema) Fields() []string { return s.fields }

func (s *Schema) FieldString(fields []string) string {
	if len(fields) == 0 {
		fields = s.fields
	}
	quoted := make([]string, 0, len(fields))
	for _, f := range fields {
		if f != "" {
			quoted = append(quoted, `"`+f+`"`)
		}
	}
	return strings.Join(quoted, ", ")
}

// MappedFields are the public (camelCase, unaliased) column names.
func (s *Schema) MappedFields() []string {
	s.mappedOnce.Do(func() {
		s.mapped = s.CamelFields(s.fields)
	})
	return s.mapped
}

// Exists returns the column name key maps to and whether it is a column.
func (s *Schema) Exists(key string) (string, bool) {
	t := s.FixKey(key)
	_, ok := s.columns[t]
	return t, ok
}

func (s *Schema) FixKey(key string) string {
	mapped := strcase.ToSnake(key)
	if alias, ok := s.aliases[mapped]; ok {
		return alias
	}
	if mapped == "" {
		return key
	}
	return mapped
}

func (s *Schema) FixFields(fields []string) []string {
	ret := make([]string, len(fields))
	for i, f := range fields {
		ret[i] = s.FixKey(f)
	}
	return ret
}

func (s *Schema) FixEntity(entity Entity) Entity {
	ret := make(Entity, len(entity))
	for k, v := range entity {
		ret[s.FixKey(k)] = v
	}
	return ret
}

// FixKeys maps public names to column names for an entity, a field list
// or a single key. Anything else is returned unchanged.
func (s *Schema) FixKeys(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return Entity{}
	case Entity:
		return s.FixEntity(t)
	case []string:
		return s.FixFields(t)
	case string:
		return s.FixKey(t)
	}
	return v
}

func (s *Schema) CamelKey(key string) string {
	if public, ok := s.aliasesReverse[key]; ok {
		key = public
	}
	return strcase.ToLowerCamel(key)
}

func (s *Schema) CamelFields(fields []string) []string {
	ret := make([]string, len(fields))
	for i, f := range fields {
		ret[i] = s.CamelKey(f)
	}
	return ret
}

func (s *Schema) CamelEntity(entity Entity) Entity {
	ret := make(Entity, len(entity))
	for k, v := range entity {
		ret[s.CamelKey(k)] = v
	}
	return ret
}

// ToCamelCase is the inverse of FixKeys.
func (s *Schema) ToCamelCase(v interface{}) interface{} {
	switch t := v.(type) {
	case nil:
		return Entity{}
	case Entity:
		return s.CamelEntity(t)
	case []string:
		return s.CamelFields(t)
	case string:
		return s.CamelKey(t)
	}
	return v
}

// GenerateConditions turns a bare primary key value into conditions.
func (s *Schema) GenerateConditions(value interface{}) (Entity, error) {
	if len(s.primaryKeys) > 1 {
		return nil, errors.Wrapf(ErrInsufficientConditions,
			"more conditions required %s", strings.Join(s.primaryKeys, ", "))
	}
	return Entity{s.CamelKey(s.primaryKeys[0]): value}, nil
}

// FilterConditions keeps keys and lookup keys of already fixed
// conditions and reports the lookup table they point at.
func (s *Schema) FilterConditions(conditions Entity) (Entity, string, error) {
	var table string
	var primaries []string
	filtered := make(Entity)

	for _, f := range s.fields {
		v, ok := conditions[f]
		if !ok {
			continue
		}
		exists := s.keysLookup[f]
		if s.primaryLookup[f] {
			primaries = append(primaries, f)
		}
		lt, isLookup := s.lookupTables[f]
		if isLookup {
			table = lt
			primaries = append(primaries, f)
		}
		if exists || isLookup {
			filtered[f] = v
		}
	}

	if len(primaries) > 1 && !s.compositePrimary {
		return nil, "", errors.Wrapf(ErrMultiplePrimary,
			"found %d %s", len(primaries), strings.Join(primaries, ","))
	}
	return filtered, table, nil
}

// CreateConditions builds the WHERE clauses for a find.
func (s *Schema) CreateConditions(conditions Entity) (*Conditions, error) {
	filtered, table, err := s.FilterConditions(s.FixEntity(conditions))
	if err != nil {
		return nil, err
	}
	c, err := s.parseConditions(filtered)
	if err != nil {
		return nil, err
	}
	c.Table = table
	return c, nil
}

// FilterRemoveConditions keeps the key addressing table (the primary keys
// when table is empty) plus the clustering keys.
func (s *Schema) FilterRemoveConditions(conditions Entity, table string) Entity {
	ret := make(Entity)
	for k, v := range conditions {
		var keep bool
		if table != "" {
			keep = s.reverseLookup[table] == k
		} else {
			keep = s.primaryLookup[k]
		}
		if keep || s.secondaryLookup[k] {
			ret[k] = v
		}
	}
	return ret
}

// FilterPrimaryConditions returns the public conditions addressing the
// primary table.
func (s *Schema) FilterPrimaryConditions(conditions Entity) Entity {
	return s.CamelEntity(s.FilterRemoveConditions(s.FixEntity(conditions), ""))
}

func (s *Schema) CreateRemoveConditions(conditions Entity, table string) (*Conditions, error) {
	transformed := s.FixEntity(conditions)
	required := s.primaryKeys
	if s.HasLookups() {
		required = append(s.LookupKeys(), s.primaryKeys...)
	}
	if !allPresent(transformed, required) {
		return nil, errors.Wrap(ErrInsufficientConditions,
			"must pass in all primary keys when using lookup tables")
	}
	return s.tableConditions(transformed, table)
}

func (s *Schema) CreateUpdateConditions(conditions Entity, table string) (*Conditions, error) {
	transformed := s.FixEntity(conditions)
	required := s.keys
	if s.HasLookups() {
		required = append(append([]string(nil), s.keys...), s.LookupKeys()...)
	}
	if !allPresent(transformed, required) {
		return nil, errors.Wrapf(ErrInsufficientConditions,
			"all necessary primary keys must be passed in, given: %v", conditions)
	}
	return s.tableConditions(transformed, table)
}

func (s *Schema) tableConditions(transformed Entity, table string) (*Conditions, error) {
	c, err := s.parseConditions(s.FilterRemoveConditions(transformed, table))
	if err != nil {
		return nil, err
	}
	c.Table = table
	return c, nil
}

func allPresent(e Entity, keys []string) bool {
	for _, k := range keys {
		v, ok := e[k]
		if !ok || v == nil {
			return false
		}
		if str, ok := v.(string); ok && str == "" {
			return false
		}
	}
	return true
}

// GetValues binds entity values for fields (all columns by default).
// Missing fields are bound as nil.
func (s *Schema) GetValues(entity Entity, fields []string) []Param {
	if len(fields) == 0 {
		fields = s.fields
	}
	ret := make([]Param, len(fields))
	for i, f := range fields {
		ret[i] = s.ValueOf(f, entity[f])
	}
	return ret
}

// ValueOf binds value to field. An explicit hint overrides the column type.
func (s *Schema) ValueOf(field string, value interface{}, hint ...string) Param {
	p := Param{Value: value, IsRoutingKey: s.primaryLookup[field]}
	if len(hint) > 0 && hint[0] != "" {
		p.Hint = hint[0]
	} else if c := s.columns[field]; c != nil {
		p.Hint = c.Hint()
	}
	return p
}

// AttributeStore is the backing storage of a modeled record.
type AttributeStore interface {
	Get(name string) interface{}
	Set(name string, value interface{})
}

type Property struct {
	Get func() interface{}
	Set func(value interface{})
}

// BuildProperties returns accessors keyed by public column name.
func (s *Schema) BuildProperties(store AttributeStore) map[string]Property {
	ret := make(map[string]Property, len(s.fields))
	for _, name := range s.MappedFields() {
		name := name
		ret[name] = Property{
			Get: func() interface{} { return store.Get(name) },
			Set: func(v interface{}) { store.Set(name, v) },
		}
	}
	return ret
}
