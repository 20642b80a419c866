package stmt

import (
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/iancoleman/strcase"
)

var orderMap = map[string]string{
	"asc":        "ASC",
	"ascending":  "ASC",
	"desc":       "DESC",
	"descending": "DESC",
}

// With renders a WITH clause. Option names are snake_cased, string values
// quoted, numbers left bare and maps rendered as CQL map literals.
func With(opts map[string]interface{}, orderBy *OrderBy) (string, error) {
	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys)+1)
	for _, k := range keys {
		part, err := withOption(strcase.ToSnake(k), opts[k])
		if err != nil {
			return "", err
		}
		parts = append(parts, part)
	}
	if orderBy != nil {
		cql := fmt.Sprintf("CLUSTERING ORDER BY (%s", orderBy.Key)
		if orderBy.Order != "" {
			cql += " " + orderBy.Order
		}
		parts = append(parts, cql+")")
	}
	return "WITH " + strings.Join(parts, " AND "), nil
}

func withOption(name string, v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return fmt.Sprintf("%s = '%s'", name, t), nil
	case int, int8, int16, int32, int64,
		uint, uint8, uint16, uint32, uint64,
		float32, float64:
		return fmt.Sprintf("%s = %v", name, t), nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() == reflect.Map && rv.Type().Key().Kind() == reflect.String {
		return name + " = " + withObject(rv), nil
	}
	return "", fmt.Errorf("cannot create with statement with %T %v", v, v)
}

func withObject(rv reflect.Value) string {
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	sort.Strings(keys)

	lines := make([]string, len(keys))
	for i, k := range keys {
		sep := "  "
		if i != 0 {
			sep = " ,"
		}
		v := rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
		lines[i] = sep + fmt.Sprintf("  '%s' : '%v'", strcase.ToSnake(k), v)
	}
	return "{ \n" + strings.Join(lines, "\n") + " }"
}
