package memory

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/tablequery/tablequery/internal/query"
	"github.com/tablequery/tablequery/internal/table"
)

func toFloat(value any) (float64, bool) {
	switch typed := value.(type) {
	case int64:
		return float64(typed), true
	case float64:
		return typed, true
	case int:
		return float64(typed), true
	default:
		return 0, false
	}
}

// compareValues orders two non-nil values. ok is false when the values are
// not comparable with each other.
func compareValues(a, b any) (int, bool) {
	if af, ok := toFloat(a); ok {
		bf, ok := toFloat(b)
		if !ok {
			return 0, false
		}
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	switch x := a.(type) {
	case string:
		y, ok := b.(string)
		if !ok {
			return 0, false
		}
		return strings.Compare(x, y), true
	case time.Time:
		y, ok := b.(time.Time)
		if !ok {
			return 0, false
		}
		return x.Compare(y), true
	case bool:
		y, ok := b.(bool)
		if !ok {
			return 0, false
		}
		switch {
		case x == y:
			return 0, true
		case !x:
			return -1, true
		default:
			return 1, true
		}
	}
	return 0, false
}

// lessNullsLast orders values ascending or descending with missing values
// always at the end.
func lessNullsLast(a, b any, descending bool) bool {
	if a == nil || b == nil {
		return a != nil && b == nil
	}
	c, _ := compareValues(a, b)
	if descending {
		return c > 0
	}
	return c < 0
}

// keyString identifies a tuple of values for grouping and deduplication.
func keyString(values []any) string {
	var b strings.Builder
	for i, value := range values {
		if i > 0 {
			b.WriteByte(0x1f)
		}
		fmt.Fprintf(&b, "%T:", value)
		switch typed := value.(type) {
		case time.Time:
			b.WriteString(typed.UTC().Format(time.RFC3339Nano))
		case float64:
			b.WriteString(strconv.FormatFloat(typed, 'g', -1, 64))
		default:
			fmt.Fprint(&b, typed)
		}
	}
	return b.String()
}

// coerce converts a literal from the plan into a value comparable with cells
// of typ.
func coerce(typ table.Type, column string, raw any) (any, *query.ExprError) {
	switch typ {
	case table.TypeInt64, table.TypeFloat64:
		switch typed := raw.(type) {
		case json.Number:
			f, err := typed.Float64()
			if err != nil {
				return nil, query.Errorf(query.CodeTypeMismatch, "invalid number %q for column %q", typed.String(), column)
			}
			return f, nil
		case float64:
			return typed, nil
		case int:
			return float64(typed), nil
		case int64:
			return float64(typed), nil
		case string:
			f, err := strconv.ParseFloat(strings.TrimSpace(typed), 64)
			if err != nil {
				return nil, query.Errorf(query.CodeTypeMismatch, "cannot compare numeric column %q with %q", column, typed)
			}
			return f, nil
		}
	case table.TypeString:
		switch typed := raw.(type) {
		case string:
			return typed, nil
		case json.Number:
			return typed.String(), nil
		case float64:
			return table.FormatFloat(typed), nil
		case int:
			return strconv.Itoa(typed), nil
		case int64:
			return strconv.FormatInt(typed, 10), nil
		}
	case table.TypeDatetime:
		switch typed := raw.(type) {
		case string:
			ts, ok := table.ParseDatetime(typed)
			if !ok {
				return nil, query.Errorf(query.CodeTypeMismatch, "cannot compare datetime column %q with %q", column, typed)
			}
			return ts, nil
		case time.Time:
			return typed, nil
		}
	case table.TypeBool:
		switch typed := raw.(type) {
		case bool:
			return typed, nil
		case string:
			if strings.EqualFold(typed, "true") {
				return true, nil
			}
			if strings.EqualFold(typed, "false") {
				return false, nil
			}
		}
	}
	return nil, query.Errorf(query.CodeTypeMismatch, "cannot compare %s column %q with %v", typ, column, raw)
}
