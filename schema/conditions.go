package schema

import (
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// range operators in the order they are rendered
var operators = []struct {
	name string
	op   string
	max  bool
}{
	{"gt", ">", false},
	{"gte", ">=", false},
	{"lt", "<", true},
	{"lte", "<=", true},
}

func (s *Schema) parseConditions(conditions Entity) (*Conditions, error) {
	c := &Conditions{}
	for _, field := range s.fields {
		value, ok := conditions[field]
		if !ok {
			continue
		}
		query, values, err := s.condition(field, value)
		if err != nil {
			return nil, err
		}
		if query == "" {
			continue
		}
		c.Fields = append(c.Fields, field)
		c.Query = append(c.Query, query)
		for _, v := range values {
			p := s.ValueOf(field, v)
			if p.IsRoutingKey {
				c.RoutingIndexes = append(c.RoutingIndexes, len(c.Params))
			}
			c.Params = append(c.Params, p)
		}
	}
	return c, nil
}

// condition renders one WHERE clause. An empty query means the value
// cannot be expressed as a condition and is skipped.
func (s *Schema) condition(field string, value interface{}) (string, []interface{}, error) {
	if value == nil {
		return "", nil, nil
	}
	if elems, ok := toInterfaceSlice(value); ok {
		switch len(elems) {
		case 0:
			return "", nil, nil
		case 1:
			value = elems[0]
		default:
			return fmt.Sprintf("%s IN (%s)", field, placeholders(len(elems))),
				elems, nil
		}
	}
	if ranges, ok := value.(map[string]interface{}); ok {
		return s.rangeCondition(field, ranges)
	}
	if isConditionScalar(value) {
		return fmt.Sprintf("%s = ?", field), []interface{}{value}, nil
	}
	return "", nil, nil
}

func (s *Schema) rangeCondition(field string, ranges map[string]interface{}) (string, []interface{}, error) {
	var parts []string
	var values []interface{}
	col := s.columns[field]
	for _, o := range operators {
		v, ok := ranges[o.name]
		if !ok {
			continue
		}
		if col != nil && col.Type == "timeuuid" {
			bound, err := timeUUIDBound(v, o.max)
			if err != nil {
				return "", nil, errors.Wrapf(err, "range on %s", field)
			}
			v = bound
		}
		parts = append(parts, fmt.Sprintf("%s %s ?", field, o.op))
		values = append(values, v)
	}
	return strings.Join(parts, " AND "), values, nil
}

// timeUUIDBound widens a timeuuid range bound to the smallest or largest
// timeuuid sharing its timestamp.
func timeUUIDBound(v interface{}, max bool) (gocql.UUID, error) {
	var t time.Time
	switch b := v.(type) {
	case time.Time:
		t = b
	case gocql.UUID:
		t = b.Time()
	case string:
		u, err := gocql.ParseUUID(b)
		if err != nil {
			return gocql.UUID{}, err
		}
		t = u.Time()
	default:
		return gocql.UUID{}, fmt.Errorf("unsupported timeuuid bound %T", v)
	}
	if max {
		return gocql.MaxTimeUUID(t), nil
	}
	return gocql.MinTimeUUID(t), nil
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func isConditionScalar(v interface{}) bool {
	switch v.(type) {
	case string, bool,
		int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64,
		time.Time, gocql.UUID, uuid.UUID:
		return true
	}
	return false
}

// toInterfaceSlice converts any slice except []byte and uuid arrays.
func toInterfaceSlice(v interface{}) ([]interface{}, bool) {
	if s, ok := v.([]interface{}); ok {
		return s, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	ret := make([]interface{}, rv.Len())
	for i := range ret {
		ret[i] = rv.Index(i).Interface()
	}
	return ret, true
}

// toInterfaceMap converts any map into a string keyed map.
func toInterfaceMap(v interface{}) (map[string]interface{}, bool) {
	if m, ok := v.(map[string]interface{}); ok {
		return m, true
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Map {
		return nil, false
	}
	ret := make(map[string]interface{}, rv.Len())
	iter := rv.MapRange()
	for iter.Next() {
		ret[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
	}
	return ret, true
}
