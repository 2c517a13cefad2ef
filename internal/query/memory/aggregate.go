package memory

import (
	"math"
	"sort"

	"github.com/tablequery/tablequery/internal/query"
	"github.com/tablequery/tablequery/internal/table"
)

// aggregateType is the type of the value fn produces from a column of typ.
func aggregateType(fn query.AggFunc, typ table.Type) table.Type {
	switch fn {
	case query.AggCount, query.AggSize, query.AggNUnique:
		return table.TypeInt64
	case query.AggMean, query.AggMedian, query.AggStd:
		return table.TypeFloat64
	default:
		return typ
	}
}

func checkAggregate(fn query.AggFunc, column string, typ table.Type) *query.ExprError {
	switch fn {
	case query.AggSum, query.AggMean, query.AggMedian, query.AggStd:
		if !typ.Numeric() {
			return query.Errorf(query.CodeTypeMismatch, "cannot compute %s of %s column %q", fn, typ, column)
		}
	}
	return nil
}

// aggregate reduces values with fn. Missing values are skipped except by size.
// An int64 sum that leaves the int64 range is a TYPE_MISMATCH.
func aggregate(fn query.AggFunc, typ table.Type, values []any) (any, *query.ExprError) {
	if fn == query.AggSum && typ == table.TypeInt64 {
		return sumInt64(values)
	}
	return reduce(fn, values), nil
}

func sumInt64(values []any) (any, *query.ExprError) {
	var total int64
	for _, value := range values {
		v, ok := value.(int64)
		if !ok {
			continue
		}
		if (v > 0 && total > math.MaxInt64-v) || (v < 0 && total < math.MinInt64-v) {
			return nil, query.Errorf(query.CodeTypeMismatch, "sum of int64 values overflows")
		}
		total += v
	}
	return total, nil
}

func reduce(fn query.AggFunc, values []any) any {
	present := make([]any, 0, len(values))
	for _, value := range values {
		if value != nil {
			present = append(present, value)
		}
	}

	switch fn {
	case query.AggSize:
		return int64(len(values))
	case query.AggCount:
		return int64(len(present))
	case query.AggNUnique:
		seen := make(map[string]struct{}, len(present))
		for _, value := range present {
			seen[keyString([]any{value})] = struct{}{}
		}
		return int64(len(seen))
	case query.AggSum:
		total := 0.0
		for _, value := range present {
			f, _ := toFloat(value)
			total += f
		}
		return total
	case query.AggMean:
		if len(present) == 0 {
			return nil
		}
		total := 0.0
		for _, value := range present {
			f, _ := toFloat(value)
			total += f
		}
		return total / float64(len(present))
	case query.AggMedian:
		if len(present) == 0 {
			return nil
		}
		sorted := floats(present)
		sort.Float64s(sorted)
		mid := len(sorted) / 2
		if len(sorted)%2 == 1 {
			return sorted[mid]
		}
		return (sorted[mid-1] + sorted[mid]) / 2
	case query.AggStd:
		if len(present) < 2 {
			return nil
		}
		samples := floats(present)
		mean := 0.0
		for _, f := range samples {
			mean += f
		}
		mean /= float64(len(samples))
		variance := 0.0
		for _, f := range samples {
			variance += (f - mean) * (f - mean)
		}
		return math.Sqrt(variance / float64(len(samples)-1))
	case query.AggMin, query.AggMax:
		var best any
		for _, value := range present {
			if best == nil {
				best = value
				continue
			}
			c, ok := compareValues(value, best)
			if !ok {
				continue
			}
			if (fn == query.AggMin && c < 0) || (fn == query.AggMax && c > 0) {
				best = value
			}
		}
		return best
	}
	return nil
}

func floats(values []any) []float64 {
	out := make([]float64, 0, len(values))
	for _, value := range values {
		if f, ok := toFloat(value); ok {
			out = append(out, f)
		}
	}
	return out
}
