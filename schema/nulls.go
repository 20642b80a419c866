package schema

import (
	"fmt"
	"reflect"
	"time"

	"github.com/gocql/gocql"
)

/*
	Writing a null creates a tombstone. Nulls of text, uuid and timestamp
	columns are written as these sentinels instead and turned back into
	nil when rows are read.
*/
const (
	NullText = "\x00"
	NullUUID = "00000000-0000-0000-0000-000000000000"
)

var NullTime = time.Unix(0, 0).UTC()

func isBadUUID(v interface{}) bool {
	if v == nil {
		return true
	}
	s, ok := v.(string)
	return ok && s == ""
}

// NullToValue replaces nulls with sentinels according to the column type.
// Collections are converted element by element, including deltas.
func (s *Schema) NullToValue(col *Column, value interface{}) interface{} {
	switch col.Kind {
	case Map:
		return s.mapNullToValue(col, value)
	case Set, List:
		return s.collectionNullToValue(col, value)
	}
	return scalarNullToValue(col.Type, value)
}

func scalarNullToValue(typ string, value interface{}) interface{} {
	switch typ {
	case "text", "ascii", "varchar":
		if value == nil {
			return NullText
		}
	case "uuid", "timeuuid":
		if isBadUUID(value) {
			return NullUUID
		}
	case "timestamp":
		if value == nil {
			return NullTime
		}
	}
	return value
}

func (s *Schema) mapNullToValue(col *Column, value interface{}) interface{} {
	if value == nil {
		return nil
	}
	m, ok := toInterfaceMap(value)
	if !ok {
		return value
	}
	ret := make(map[string]interface{}, len(m))
	for k, v := range m {
		ret[k] = scalarNullToValue(col.ValueType, v)
	}
	return ret
}

func elementsNullToValue(typ string, elems []interface{}) []interface{} {
	if elems == nil {
		return nil
	}
	ret := make([]interface{}, len(elems))
	for i, v := range elems {
		ret[i] = scalarNullToValue(typ, v)
	}
	return ret
}

func (s *Schema) collectionNullToValue(col *Column, value interface{}) interface{} {
	typ := col.ValueType
	switch v := value.(type) {
	case nil:
		return nil
	case SetDelta:
		return SetDelta{
			Add:    elementsNullToValue(typ, v.Add),
			Remove: elementsNullToValue(typ, v.Remove),
		}
	case *SetDelta:
		d := s.collectionNullToValue(col, *v).(SetDelta)
		return &d
	case ListDelta:
		d := ListDelta{
			Prepend: elementsNullToValue(typ, v.Prepend),
			Append:  elementsNullToValue(typ, v.Append),
			Remove:  elementsNullToValue(typ, v.Remove),
		}
		if v.Index != nil {
			d.Index = make(map[int]interface{}, len(v.Index))
			for i, e := range v.Index {
				d.Index[i] = scalarNullToValue(typ, e)
			}
		}
		return d
	case *ListDelta:
		d := s.collectionNullToValue(col, *v).(ListDelta)
		return &d
	case map[string]interface{}:
		ret := make(map[string]interface{}, len(v))
		for op, elems := range v {
			if list, ok := toInterfaceSlice(elems); ok {
				ret[op] = elementsNullToValue(typ, list)
			} else {
				ret[op] = elems
			}
		}
		return ret
	}
	if list, ok := toInterfaceSlice(value); ok {
		return elementsNullToValue(typ, list)
	}
	return value
}

// DeNull replaces nulls of a column keyed entity in place. Keys of the
// table and of its lookup tables are left untouched.
func (s *Schema) DeNull(entity Entity) (Entity, error) {
	for k, v := range entity {
		col := s.columns[k]
		if col == nil {
			return nil, fmt.Errorf("%s is not found in the schema", k)
		}
		if s.isTableKey(k) {
			continue
		}
		entity[k] = s.NullToValue(col, v)
	}
	return entity, nil
}

// ReNull turns sentinels of a read row back into nil, in place. Keys are
// returned as read.
func (s *Schema) ReNull(entity Entity) Entity {
	visited := make(map[uintptr]bool)
	for k, v := range entity {
		if s.isTableKey(k) {
			continue
		}
		entity[k] = valueToNull(v, visited)
	}
	return entity
}

// isTableKey reports whether field keys the table or one of its lookup
// tables.
func (s *Schema) isTableKey(field string) bool {
	_, lookup := s.lookupTables[field]
	return s.keysLookup[field] || lookup
}

// isNullKey reports whether v cannot be written as a key.
func isNullKey(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return t == "" || t == NullText || t == NullUUID
	case gocql.UUID:
		return t == gocql.UUID{}
	}
	return false
}

// ValueToNull turns sentinels into nil, descending into maps and slices.
// Containers are rewritten in place and visited at most once.
func (s *Schema) ValueToNull(value interface{}) interface{} {
	return valueToNull(value, make(map[uintptr]bool))
}

func valueToNull(value interface{}, visited map[uintptr]bool) interface{} {
	switch v := value.(type) {
	case nil:
		return nil
	case string:
		if v == NullText || v == NullUUID {
			return nil
		}
		return v
	case gocql.UUID:
		if v == (gocql.UUID{}) {
			return nil
		}
		return v
	case time.Time:
		if v.Unix() == 0 && v.Nanosecond() == 0 {
			return nil
		}
		return v
	case []interface{}:
		if len(v) == 0 {
			return v
		}
		p := reflect.ValueOf(v).Pointer()
		if visited[p] {
			return v
		}
		visited[p] = true
		for i := range v {
			v[i] = valueToNull(v[i], visited)
		}
		return v
	case map[string]interface{}:
		p := reflect.ValueOf(v).Pointer()
		if visited[p] {
			return v
		}
		visited[p] = true
		for k := range v {
			v[k] = valueToNull(v[k], visited)
		}
		return v
	}

	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Slice:
		if rv.Type().Elem().Kind() == reflect.Uint8 || !hasSentinel(rv) {
			return value
		}
		list, _ := toInterfaceSlice(value)
		return valueToNull(list, visited)
	case reflect.Map:
		if !hasSentinel(rv) {
			return value
		}
		m, _ := toInterfaceMap(value)
		return valueToNull(m, visited)
	}
	return value
}

// hasSentinel reports whether a typed slice or map holds a sentinel element.
func hasSentinel(rv reflect.Value) bool {
	check := func(e reflect.Value) bool {
		return e.CanInterface() && valueToNull(e.Interface(), map[uintptr]bool{}) == nil
	}
	if rv.Kind() == reflect.Map {
		iter := rv.MapRange()
		for iter.Next() {
			if check(iter.Value()) {
				return true
			}
		}
		return false
	}
	for i := 0; i < rv.Len(); i++ {
		if check(rv.Index(i)) {
			return true
		}
	}
	return false
}
