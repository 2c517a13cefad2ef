package memory

import (
	"sort"
	"strings"

	"github.com/tablequery/tablequery/internal/query"
	"github.com/tablequery/tablequery/internal/table"
)

type predicate func(value any) bool

func filterFrame(frame *query.Frame, step query.Step) (*query.Frame, *query.ExprError) {
	type bound struct {
		col  int
		test predicate
	}
	bounds := make([]bound, len(step.Conditions))
	for i, condition := range step.Conditions {
		idx, ok := frame.Lookup(condition.Column)
		if !ok {
			return nil, query.UnknownColumn(condition.Column)
		}
		test, err := buildPredicate(frame.Columns[idx], condition)
		if err != nil {
			return nil, err
		}
		bounds[i] = bound{col: idx, test: test}
	}

	matchAny := step.Match == query.MatchAny
	out := &query.Frame{Columns: frame.Columns}
	for r, row := range frame.Rows {
		keep := !matchAny
		for _, b := range bounds {
			hit := b.test(row[b.col])
			if matchAny && hit {
				keep = true
				break
			}
			if !matchAny && !hit {
				keep = false
				break
			}
		}
		if keep {
			out.Index = append(out.Index, frame.Index[r])
			out.Rows = append(out.Rows, row)
		}
	}
	return out, nil
}

func buildPredicate(column table.Column, condition query.Condition) (predicate, *query.ExprError) {
	switch condition.Cmp {
	case query.CmpIsNull:
		return func(value any) bool { return value == nil }, nil
	case query.CmpNotNull:
		return func(value any) bool { return value != nil }, nil
	case query.CmpContains, query.CmpStartsWith, query.CmpEndsWith:
		if column.Type != table.TypeString {
			return nil, query.Errorf(query.CodeTypeMismatch, "%s requires a string column, %q is %s", condition.Cmp, column.Name, column.Type)
		}
		needle, ok := condition.Value.(string)
		if !ok {
			return nil, query.Errorf(query.CodeTypeMismatch, "%s requires a string value", condition.Cmp)
		}
		match := strings.Contains
		switch condition.Cmp {
		case query.CmpStartsWith:
			match = strings.HasPrefix
		case query.CmpEndsWith:
			match = strings.HasSuffix
		}
		return func(value any) bool {
			s, ok := value.(string)
			return ok && match(s, needle)
		}, nil
	case query.CmpIn, query.CmpNotIn:
		targets := make([]any, len(condition.Values))
		for i, raw := range condition.Values {
			target, err := coerce(column.Type, column.Name, raw)
			if err != nil {
				return nil, err
			}
			targets[i] = target
		}
		negate := condition.Cmp == query.CmpNotIn
		return func(value any) bool {
			found := false
			if value != nil {
				for _, target := range targets {
					if c, ok := compareValues(value, target); ok && c == 0 {
						found = true
						break
					}
				}
			}
			return found != negate
		}, nil
	case query.CmpBetween:
		lo, err := coerce(column.Type, column.Name, condition.Values[0])
		if err != nil {
			return nil, err
		}
		hi, err := coerce(column.Type, column.Name, condition.Values[1])
		if err != nil {
			return nil, err
		}
		return func(value any) bool {
			if value == nil {
				return false
			}
			low, ok := compareValues(value, lo)
			if !ok {
				return false
			}
			high, _ := compareValues(value, hi)
			return low >= 0 && high <= 0
		}, nil
	}

	target, err := coerce(column.Type, column.Name, condition.Value)
	if err != nil {
		return nil, err
	}
	var accept func(c int) bool
	switch condition.Cmp {
	case query.CmpEq:
		accept = func(c int) bool { return c == 0 }
	case query.CmpNe:
		return func(value any) bool {
			if value == nil {
				return true
			}
			c, ok := compareValues(value, target)
			return !ok || c != 0
		}, nil
	case query.CmpGt:
		accept = func(c int) bool { return c > 0 }
	case query.CmpGe:
		accept = func(c int) bool { return c >= 0 }
	case query.CmpLt:
		accept = func(c int) bool { return c < 0 }
	case query.CmpLe:
		accept = func(c int) bool { return c <= 0 }
	default:
		return nil, query.Errorf(query.CodeUnknownOp, "unknown comparator %q", condition.Cmp)
	}
	return func(value any) bool {
		if value == nil {
			return false
		}
		c, ok := compareValues(value, target)
		return ok && accept(c)
	}, nil
}

func sortFrame(frame *query.Frame, keys []query.SortKey) (*query.Frame, *query.ExprError) {
	if len(keys) == 0 {
		return nil, query.Errorf(query.CodeInvalidPlan, "sort on a frame requires by")
	}
	names := make([]string, len(keys))
	for i, key := range keys {
		names[i] = key.Column
	}
	indexes, err := resolve(frame, names)
	if err != nil {
		return nil, err
	}

	order := identity(len(frame.Rows))
	sort.SliceStable(order, func(i, j int) bool {
		a, b := frame.Rows[order[i]], frame.Rows[order[j]]
		for k, idx := range indexes {
			if lessNullsLast(a[idx], b[idx], keys[k].Descending) {
				return true
			}
			if lessNullsLast(b[idx], a[idx], keys[k].Descending) {
				return false
			}
		}
		return false
	})

	out := &query.Frame{
		Columns: frame.Columns,
		Index:   make([]int64, len(order)),
		Rows:    make([][]any, len(order)),
	}
	for i, r := range order {
		out.Index[i] = frame.Index[r]
		out.Rows[i] = frame.Rows[r]
	}
	return out, nil
}

func sortSeries(series *query.Series, descending bool) *query.Series {
	order := identity(series.Len())
	sort.SliceStable(order, func(i, j int) bool {
		return lessNullsLast(series.Values[order[i]], series.Values[order[j]], descending)
	})
	return reorder(series, order)
}

func reorder(series *query.Series, order []int) *query.Series {
	out := &query.Series{
		Name:      series.Name,
		IndexName: series.IndexName,
		Type:      series.Type,
		Labels:    make([]any, len(order)),
		Values:    make([]any, len(order)),
	}
	for i, r := range order {
		out.Labels[i] = series.Labels[r]
		out.Values[i] = series.Values[r]
	}
	return out
}

func identity(n int) []int {
	order := make([]int, n)
	for i := range order {
		order[i] = i
	}
	return order
}

type group struct {
	key  []any
	rows []int
}

// groupRows partitions rows by the values at keyIdx. Rows with a missing key
// are dropped and groups are ordered by key ascending.
func groupRows(frame *query.Frame, keyIdx []int) []*group {
	byKey := make(map[string]*group)
	var groups []*group
	for r, row := range frame.Rows {
		key := make([]any, len(keyIdx))
		missing := false
		for i, idx := range keyIdx {
			key[i] = row[idx]
			missing = missing || key[i] == nil
		}
		if missing {
			continue
		}
		id := keyString(key)
		g, ok := byKey[id]
		if !ok {
			g = &group{key: key}
			byKey[id] = g
			groups = append(groups, g)
		}
		g.rows = append(g.rows, r)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		for k := range groups[i].key {
			c, _ := compareValues(groups[i].key[k], groups[j].key[k])
			if c != 0 {
				return c < 0
			}
		}
		return false
	})
	return groups
}

func gather(frame *query.Frame, rows []int, col int) []any {
	values := make([]any, len(rows))
	for i, r := range rows {
		if col >= 0 {
			values[i] = frame.Rows[r][col]
		}
	}
	return values
}

func groupBy(frame *query.Frame, names []string, aggregates []query.Aggregate) (*query.Frame, *query.ExprError) {
	keyIdx, err := resolve(frame, names)
	if err != nil {
		return nil, err
	}

	aggCols := make([]int, len(aggregates))
	columns := make([]table.Column, 0, len(keyIdx)+len(aggregates))
	for _, idx := range keyIdx {
		columns = append(columns, frame.Columns[idx])
	}
	for i, agg := range aggregates {
		aggCols[i] = -1
		source := table.Column{Name: string(agg.Func), Type: table.TypeInt64}
		if agg.Column != "" {
			idx, ok := frame.Lookup(agg.Column)
			if !ok {
				return nil, query.UnknownColumn(agg.Column)
			}
			if err := checkAggregate(agg.Func, agg.Column, frame.Columns[idx].Type); err != nil {
				return nil, err
			}
			aggCols[i] = idx
			source = frame.Columns[idx]
		}
		name, err := aggregateName(columns, agg, source.Name)
		if err != nil {
			return nil, err
		}
		columns = append(columns, table.Column{Name: name, Type: aggregateType(agg.Func, source.Type)})
	}

	groups := groupRows(frame, keyIdx)
	out := &query.Frame{
		Columns: columns,
		Index:   make([]int64, len(groups)),
		Rows:    make([][]any, len(groups)),
	}
	for g, grp := range groups {
		row := make([]any, 0, len(columns))
		row = append(row, grp.key...)
		for i, agg := range aggregates {
			typ := table.TypeInt64
			if aggCols[i] >= 0 {
				typ = frame.Columns[aggCols[i]].Type
			}
			value, err := aggregate(agg.Func, typ, gather(frame, grp.rows, aggCols[i]))
			if err != nil {
				return nil, err
			}
			row = append(row, value)
		}
		out.Index[g] = int64(g)
		out.Rows[g] = row
	}
	return out, nil
}

// aggregateName picks the output column name for agg. An unaliased aggregate
// whose source name is taken becomes "<column>_<func>"; an alias that clashes
// with an earlier output column is rejected.
func aggregateName(columns []table.Column, agg query.Aggregate, source string) (string, *query.ExprError) {
	taken := func(name string) bool {
		for _, col := range columns {
			if col.Name == name {
				return true
			}
		}
		return false
	}
	name := agg.As
	if name == "" {
		name = source
		if taken(name) && agg.Column != "" {
			name = agg.Column + "_" + string(agg.Func)
		}
	}
	if taken(name) {
		return "", query.Errorf(query.CodeInvalidPlan, "duplicate output column %q in group_by", name)
	}
	return name, nil
}

func aggregateStep(input query.Value, step query.Step) (query.Value, *query.ExprError) {
	switch typed := input.(type) {
	case *query.Series:
		if len(step.GroupBy) > 0 {
			return nil, query.Errorf(query.CodeTypeMismatch, "aggregate with group_by cannot be applied to a series")
		}
		if step.Column != "" && step.Column != typed.Name {
			return nil, query.UnknownColumn(step.Column)
		}
		if err := checkAggregate(step.Func, typed.Name, typed.Type); err != nil {
			return nil, err
		}
		return scalarAggregate(step.Func, typed.Type, typed.Values)
	case *query.Frame:
		return aggregateFrame(typed, step)
	}
	return nil, shapeMismatch(step.Op, input)
}

func aggregateFrame(frame *query.Frame, step query.Step) (query.Value, *query.ExprError) {
	col := -1
	typ := table.TypeInt64
	name := string(step.Func)
	if step.Column == "" {
		if step.Func != query.AggSize {
			return nil, query.Errorf(query.CodeInvalidPlan, "aggregate %s on a frame requires a column", step.Func)
		}
	} else {
		idx, ok := frame.Lookup(step.Column)
		if !ok {
			return nil, query.UnknownColumn(step.Column)
		}
		col, typ, name = idx, frame.Columns[idx].Type, step.Column
		if err := checkAggregate(step.Func, step.Column, typ); err != nil {
			return nil, err
		}
	}

	all := identity(len(frame.Rows))
	if len(step.GroupBy) == 0 {
		return scalarAggregate(step.Func, typ, gather(frame, all, col))
	}

	keyIdx, err := resolve(frame, step.GroupBy)
	if err != nil {
		return nil, err
	}
	groups := groupRows(frame, keyIdx)
	series := &query.Series{
		Name:      name,
		IndexName: strings.Join(step.GroupBy, ", "),
		Type:      aggregateType(step.Func, typ),
		Labels:    make([]any, len(groups)),
		Values:    make([]any, len(groups)),
	}
	for g, grp := range groups {
		series.Labels[g] = groupLabel(grp.key)
		value, err := aggregate(step.Func, typ, gather(frame, grp.rows, col))
		if err != nil {
			return nil, err
		}
		series.Values[g] = value
	}
	return series, nil
}

func scalarAggregate(fn query.AggFunc, typ table.Type, values []any) (query.Value, *query.ExprError) {
	value, err := aggregate(fn, typ, values)
	if err != nil {
		return nil, err
	}
	return query.Scalar{Value: value}, nil
}

// valueCounts counts the non-missing values of a series, or of a frame
// column, most frequent first. Ties keep first-seen order.
func valueCounts(input query.Value, column string) (query.Value, *query.ExprError) {
	var values []any
	var name string
	switch typed := input.(type) {
	case *query.Series:
		values, name = typed.Values, typed.Name
	case *query.Frame:
		if column == "" {
			return nil, query.Errorf(query.CodeInvalidPlan, "value_counts on a frame requires a column")
		}
		series, err := columnSeries(typed, column)
		if err != nil {
			return nil, err
		}
		values, name = series.Values, series.Name
	default:
		return nil, shapeMismatch(query.OpValueCounts, input)
	}

	positions := make(map[string]int)
	var labels []any
	var counts []int64
	for _, value := range values {
		if value == nil {
			continue
		}
		id := keyString([]any{value})
		pos, ok := positions[id]
		if !ok {
			pos = len(labels)
			positions[id] = pos
			labels = append(labels, value)
			counts = append(counts, 0)
		}
		counts[pos]++
	}

	order := identity(len(labels))
	sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
	series := &query.Series{
		Name:      "count",
		IndexName: name,
		Type:      table.TypeInt64,
		Labels:    make([]any, len(order)),
		Values:    make([]any, len(order)),
	}
	for i, pos := range order {
		series.Labels[i] = labels[pos]
		series.Values[i] = counts[pos]
	}
	return series, nil
}

// argExtreme returns the label of the first maximum (or minimum) value.
func argExtreme(series *query.Series, max bool) (query.Value, *query.ExprError) {
	if !series.Type.Numeric() && series.Type != table.TypeDatetime {
		op := query.OpIdxMin
		if max {
			op = query.OpIdxMax
		}
		return nil, query.Errorf(query.CodeTypeMismatch, "%s requires numeric or datetime values, %q is %s", op, series.Name, series.Type)
	}
	best := -1
	for i, value := range series.Values {
		if value == nil {
			continue
		}
		if best < 0 {
			best = i
			continue
		}
		c, _ := compareValues(value, series.Values[best])
		if (max && c > 0) || (!max && c < 0) {
			best = i
		}
	}
	if best < 0 {
		if max {
			return nil, query.Errorf(query.CodeEmptySequence, "attempt to get argmax of an empty sequence")
		}
		return nil, query.Errorf(query.CodeEmptySequence, "attempt to get argmin of an empty sequence")
	}
	return query.Scalar{Value: series.Labels[best]}, nil
}
