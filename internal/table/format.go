package table

import (
	"math"
	"strconv"
	"time"
)

const DatetimeFormat = "2006-01-02 15:04:05"

// FormatValue renders one cell the way results are displayed.
func FormatValue(value any) string {
	switch typed := value.(type) {
	case nil:
		return "NaN"
	case string:
		return typed
	case int64:
		return strconv.FormatInt(typed, 10)
	case int:
		return strconv.Itoa(typed)
	case float64:
		return FormatFloat(typed)
	case bool:
		if typed {
			return "True"
		}
		return "False"
	case time.Time:
		return typed.Format(DatetimeFormat)
	default:
		return "<unsupported>"
	}
}

func FormatFloat(value float64) string {
	switch {
	case math.IsNaN(value):
		return "NaN"
	case math.IsInf(value, 1):
		return "inf"
	case math.IsInf(value, -1):
		return "-inf"
	}
	return strconv.FormatFloat(value, 'f', -1, 64)
}
