package schema

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	multierror "github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Validator checks and coerces a column keyed entity. It returns the
// entity to write, with defaults applied.
type Validator interface {
	Validate(s *Schema, entity Entity, mode Mode) (Entity, error)
}

type ValidatorFunc func(s *Schema, entity Entity, mode Mode) (Entity, error)

func (f ValidatorFunc) Validate(s *Schema, entity Entity, mode Mode) (Entity, error) {
	return f(s, entity, mode)
}

// Validate runs the configured validator. Creates must additionally
// carry a non empty value for every key and lookup key, defaults applied.
func (s *Schema) Validate(entity Entity, mode Mode) (Entity, error) {
	out, err := s.validator.Validate(s, entity, mode)
	if err != nil {
		return nil, err
	}
	if mode != ModeCreate {
		return out, nil
	}
	if out == nil {
		out = Entity{}
	}
	var result *multierror.Error
	for _, k := range s.requiredKeys {
		if _, ok := out[k]; !ok {
			if v, ok := defaultValue(s.columns[k].Default, mode); ok {
				out[k] = v
			}
		}
		if isNullKey(out[k]) {
			result = multierror.Append(result, fmt.Errorf("%s is required", k))
		}
	}
	if err := result.ErrorOrNil(); err != nil {
		return nil, err
	}
	return out, nil
}

// HasAllRequiredKeys reports whether entity merged with previous passes
// update validation.
func (s *Schema) HasAllRequiredKeys(entity, previous Entity) bool {
	if entity == nil {
		return false
	}
	merged := s.FixEntity(entity)
	for k, v := range s.FixEntity(previous) {
		merged[k] = v
	}
	_, err := s.Validate(merged, ModeUpdate)
	return err == nil
}

// ColumnValidator coerces values to their CQL column types and applies
// column defaults.
type ColumnValidator struct{}

func (ColumnValidator) Validate(s *Schema, entity Entity, mode Mode) (Entity, error) {
	var result *multierror.Error
	out := make(Entity, len(entity))
	for k, v := range entity {
		col := s.columns[k]
		if col == nil {
			result = multierror.Append(result, fmt.Errorf("%s is not allowed", k))
			continue
		}
		cv, err := coerce(col, v, mode)
		if err != nil {
			result = multierror.Append(result, errors.Wrap(err, k))
			continue
		}
		out[k] = cv
	}

	for _, f := range s.fields {
		if _, ok := out[f]; ok {
			continue
		}
		if v, ok := defaultValue(s.columns[f].Default, mode); ok {
			out[f] = v
		}
	}
	return out, result.ErrorOrNil()
}

func defaultValue(rule string, mode Mode) (interface{}, bool) {
	switch rule {
	case DefaultUUIDv4:
		if mode == ModeCreate {
			return uuid.New().String(), true
		}
	case DefaultUUIDEmpty:
		if mode == ModeCreate {
			return NullUUID, true
		}
	case DefaultDateNow, DefaultCreate:
		if mode == ModeCreate {
			return time.Now().UTC(), true
		}
	case DefaultUpdate:
		return time.Now().UTC(), true
	}
	return nil, false
}

func coerce(col *Column, v interface{}, mode Mode) (interface{}, error) {
	if v == nil {
		if col.NotNull {
			return nil, errors.New("may not be null")
		}
		return nil, nil
	}
	switch col.Kind {
	case Map:
		m, ok := toInterfaceMap(v)
		if !ok {
			return nil, fmt.Errorf("expected map, got %T", v)
		}
		ret := make(map[string]interface{}, len(m))
		for k, e := range m {
			ce, err := coerceScalar(col.ValueType, e)
			if err != nil {
				return nil, errors.Wrapf(err, "key %s", k)
			}
			ret[k] = ce
		}
		return ret, nil
	case Set, List:
		return coerceCollection(col, v, mode)
	}
	return coerceScalar(col.Type, v)
}

func coerceElements(typ string, elems []interface{}) ([]interface{}, error) {
	if elems == nil {
		return nil, nil
	}
	ret := make([]interface{}, len(elems))
	for i, e := range elems {
		ce, err := coerceScalar(typ, e)
		if err != nil {
			return nil, errors.Wrapf(err, "element %d", i)
		}
		ret[i] = ce
	}
	return ret, nil
}

func coerceCollection(col *Column, v interface{}, mode Mode) (interface{}, error) {
	if elems, ok := toInterfaceSlice(v); ok {
		return coerceElements(col.ValueType, elems)
	}
	if mode == ModeCreate {
		return nil, fmt.Errorf("%s deltas are only allowed on update", col.Kind)
	}

	switch d := v.(type) {
	case *SetDelta:
		v = *d
	case *ListDelta:
		v = *d
	case map[string]interface{}:
		var err error
		if v, err = deltaFromMap(col, d); err != nil {
			return nil, err
		}
	}

	var err error
	switch d := v.(type) {
	case SetDelta:
		if col.Kind != Set {
			return nil, errors.New("set delta on a list column")
		}
		if d.Add, err = coerceElements(col.ValueType, d.Add); err != nil {
			return nil, err
		}
		if d.Remove, err = coerceElements(col.ValueType, d.Remove); err != nil {
			return nil, err
		}
		return d, nil
	case ListDelta:
		if col.Kind != List {
			return nil, errors.New("list delta on a set column")
		}
		if d.Prepend, err = coerceElements(col.ValueType, d.Prepend); err != nil {
			return nil, err
		}
		if d.Append, err = coerceElements(col.ValueType, d.Append); err != nil {
			return nil, err
		}
		if d.Remove, err = coerceElements(col.ValueType, d.Remove); err != nil {
			return nil, err
		}
		if d.Index != nil {
			index := make(map[int]interface{}, len(d.Index))
			for i, e := range d.Index {
				if i < 0 {
					return nil, fmt.Errorf("invalid list index %d", i)
				}
				if index[i], err = coerceScalar(col.ValueType, e); err != nil {
					return nil, errors.Wrapf(err, "index %d", i)
				}
			}
			d.Index = index
		}
		return d, nil
	}
	return nil, fmt.Errorf("expected %s, got %T", col.Kind, v)
}

func deltaFromMap(col *Column, m map[string]interface{}) (interface{}, error) {
	list := func(op string) ([]interface{}, error) {
		raw, ok := m[op]
		if !ok || raw == nil {
			return nil, nil
		}
		elems, ok := toInterfaceSlice(raw)
		if !ok {
			return nil, fmt.Errorf("%s expects an array, got %T", op, raw)
		}
		return elems, nil
	}
	var err error
	if col.Kind == Set {
		var d SetDelta
		for op := range m {
			if op != "add" && op != "remove" {
				return nil, fmt.Errorf("unknown set operation %s", op)
			}
		}
		if d.Add, err = list("add"); err != nil {
			return nil, err
		}
		if d.Remove, err = list("remove"); err != nil {
			return nil, err
		}
		return d, nil
	}

	var d ListDelta
	for op := range m {
		switch op {
		case "prepend", "append", "remove", "index":
		default:
			return nil, fmt.Errorf("unknown list operation %s", op)
		}
	}
	if d.Prepend, err = list("prepend"); err != nil {
		return nil, err
	}
	if d.Append, err = list("append"); err != nil {
		return nil, err
	}
	if d.Remove, err = list("remove"); err != nil {
		return nil, err
	}
	if raw, ok := m["index"]; ok && raw != nil {
		idx, ok := toInterfaceMap(raw)
		if !ok {
			return nil, fmt.Errorf("index expects an object, got %T", raw)
		}
		d.Index = make(map[int]interface{}, len(idx))
		for k, e := range idx {
			i, err := strconv.Atoi(k)
			if err != nil || i < 0 {
				return nil, fmt.Errorf("invalid list index %q", k)
			}
			d.Index[i] = e
		}
	}
	return d, nil
}

func coerceScalar(typ string, v interface{}) (interface{}, error) {
	if v == nil {
		return nil, nil
	}
	switch typ {
	case "text", "ascii", "varchar", "inet":
		if s, ok := v.(string); ok {
			return s, nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)
	case "uuid", "timeuuid":
		return coerceUUID(v)
	case "timestamp", "date":
		return coerceTime(v)
	case "int", "bigint", "smallint", "tinyint", "varint", "counter":
		return coerceInt(v)
	case "float", "double", "decimal":
		return coerceFloat(v)
	case "boolean":
		if b, ok := v.(bool); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected boolean, got %T", v)
	case "blob":
		switch b := v.(type) {
		case []byte:
			return b, nil
		case string:
			return []byte(b), nil
		}
		return nil, fmt.Errorf("expected bytes, got %T", v)
	}
	return v, nil
}

func coerceUUID(v interface{}) (interface{}, error) {
	switch u := v.(type) {
	case string:
		if u == "" {
			return u, nil
		}
		parsed, err := gocql.ParseUUID(u)
		if err != nil {
			return nil, err
		}
		return parsed.String(), nil
	case gocql.UUID:
		return u.String(), nil
	case uuid.UUID:
		return u.String(), nil
	case [16]byte:
		return gocql.UUID(u).String(), nil
	}
	return nil, fmt.Errorf("expected uuid, got %T", v)
}

func coerceTime(v interface{}) (interface{}, error) {
	switch t := v.(type) {
	case time.Time:
		return t, nil
	case string:
		parsed, err := time.Parse(time.RFC3339Nano, t)
		if err != nil {
			return nil, err
		}
		return parsed, nil
	}
	ms, err := coerceInt(v)
	if err != nil {
		return nil, fmt.Errorf("expected timestamp, got %T", v)
	}
	return time.UnixMilli(ms.(int64)).UTC(), nil
}

func coerceInt(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case int:
		return int64(n), nil
	case int8:
		return int64(n), nil
	case int16:
		return int64(n), nil
	case int32:
		return int64(n), nil
	case int64:
		return n, nil
	case uint:
		return int64(n), nil
	case uint8:
		return int64(n), nil
	case uint16:
		return int64(n), nil
	case uint32:
		return int64(n), nil
	case uint64:
		if n > math.MaxInt64 {
			return nil, fmt.Errorf("%d overflows int64", n)
		}
		return int64(n), nil
	case float32:
		return coerceInt(float64(n))
	case float64:
		if n != math.Trunc(n) {
			return nil, fmt.Errorf("expected integer, got %v", n)
		}
		if n < math.MinInt64 || n >= math.MaxInt64 {
			return nil, fmt.Errorf("%v overflows int64", n)
		}
		return int64(n), nil
	}
	return nil, fmt.Errorf("expected integer, got %T", v)
}

func coerceFloat(v interface{}) (interface{}, error) {
	switch n := v.(type) {
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	}
	i, err := coerceInt(v)
	if err != nil {
		return nil, fmt.Errorf("expected number, got %T", v)
	}
	return float64(i.(int64)), nil
}
