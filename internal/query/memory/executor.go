// Package memory evaluates query plans against an in-memory table.
package memory

import (
	"context"
	"strings"

	"github.com/tablequery/tablequery/internal/query"
	"github.com/tablequery/tablequery/internal/table"
)

// Executor interprets plans step by step. It never modifies the input table.
type Executor struct{}

func NewExecutor() *Executor {
	return &Executor{}
}

func (e *Executor) Execute(ctx context.Context, tbl *table.Table, plan query.Plan) query.Result {
	var current query.Value = frameFromTable(tbl)
	for _, step := range plan.Steps {
		if err := ctx.Err(); err != nil {
			return query.Failure(query.Errorf(query.CodeInternal, "evaluation cancelled: %v", err))
		}
		next, exprErr := apply(step, current)
		if exprErr != nil {
			return query.Failure(exprErr)
		}
		current = next
	}
	return query.Success(current)
}

func frameFromTable(tbl *table.Table) *query.Frame {
	frame := &query.Frame{
		Columns: tbl.Columns(),
		Index:   make([]int64, tbl.NumRows()),
		Rows:    make([][]any, tbl.NumRows()),
	}
	for i := range frame.Rows {
		frame.Index[i] = int64(i)
		frame.Rows[i] = tbl.Row(i)
	}
	return frame
}

func apply(step query.Step, input query.Value) (query.Value, *query.ExprError) {
	switch step.Op {
	case query.OpFilter:
		frame, err := asFrame(step.Op, input)
		if err != nil {
			return nil, err
		}
		return filterFrame(frame, step)
	case query.OpSelect:
		frame, err := asFrame(step.Op, input)
		if err != nil {
			return nil, err
		}
		return selectColumns(frame, step.Columns)
	case query.OpSort:
		switch typed := input.(type) {
		case *query.Frame:
			return sortFrame(typed, step.By)
		case *query.Series:
			descending := step.Descending || (len(step.By) == 1 && step.By[0].Descending)
			return sortSeries(typed, descending), nil
		}
	case query.OpHead, query.OpTail:
		return slice(step.Op, input, step.Limit())
	case query.OpDistinct:
		frame, err := asFrame(step.Op, input)
		if err != nil {
			return nil, err
		}
		return distinct(frame, step.Columns)
	case query.OpGroupBy:
		frame, err := asFrame(step.Op, input)
		if err != nil {
			return nil, err
		}
		return groupBy(frame, step.Columns, step.Aggregates)
	case query.OpAggregate:
		return aggregateStep(input, step)
	case query.OpColumn:
		frame, err := asFrame(step.Op, input)
		if err != nil {
			return nil, err
		}
		return columnSeries(frame, step.Column)
	case query.OpValueCounts:
		return valueCounts(input, step.Column)
	case query.OpIdxMax, query.OpIdxMin:
		series, ok := input.(*query.Series)
		if !ok {
			return nil, shapeMismatch(step.Op, input)
		}
		return argExtreme(series, step.Op == query.OpIdxMax)
	case query.OpCount:
		switch typed := input.(type) {
		case *query.Frame:
			return query.Scalar{Value: int64(len(typed.Rows))}, nil
		case *query.Series:
			return scalarAggregate(query.AggCount, typed.Type, typed.Values)
		}
	default:
		return nil, query.Errorf(query.CodeUnknownOp, "unknown op %q", step.Op)
	}
	return nil, shapeMismatch(step.Op, input)
}

func asFrame(op query.Op, input query.Value) (*query.Frame, *query.ExprError) {
	frame, ok := input.(*query.Frame)
	if !ok {
		return nil, shapeMismatch(op, input)
	}
	return frame, nil
}

func shapeMismatch(op query.Op, input query.Value) *query.ExprError {
	return query.Errorf(query.CodeTypeMismatch, "%s cannot be applied to a %s", op, input.Shape())
}

func resolve(frame *query.Frame, names []string) ([]int, *query.ExprError) {
	indexes := make([]int, len(names))
	for i, name := range names {
		idx, ok := frame.Lookup(name)
		if !ok {
			return nil, query.UnknownColumn(name)
		}
		indexes[i] = idx
	}
	return indexes, nil
}

func selectColumns(frame *query.Frame, names []string) (*query.Frame, *query.ExprError) {
	indexes, err := resolve(frame, names)
	if err != nil {
		return nil, err
	}
	out := &query.Frame{
		Columns: make([]table.Column, len(indexes)),
		Index:   frame.Index,
		Rows:    make([][]any, len(frame.Rows)),
	}
	for i, idx := range indexes {
		out.Columns[i] = frame.Columns[idx]
	}
	for r, row := range frame.Rows {
		projected := make([]any, len(indexes))
		for i, idx := range indexes {
			projected[i] = row[idx]
		}
		out.Rows[r] = projected
	}
	return out, nil
}

func slice(op query.Op, input query.Value, n int) (query.Value, *query.ExprError) {
	bounds := func(length int) (int, int) {
		if n > length {
			n = length
		}
		if op == query.OpHead {
			return 0, n
		}
		return length - n, length
	}
	switch typed := input.(type) {
	case *query.Frame:
		from, to := bounds(len(typed.Rows))
		return &query.Frame{
			Columns: typed.Columns,
			Index:   typed.Index[from:to],
			Rows:    typed.Rows[from:to],
		}, nil
	case *query.Series:
		from, to := bounds(typed.Len())
		return &query.Series{
			Name:      typed.Name,
			IndexName: typed.IndexName,
			Type:      typed.Type,
			Labels:    typed.Labels[from:to],
			Values:    typed.Values[from:to],
		}, nil
	}
	return nil, shapeMismatch(op, input)
}

func distinct(frame *query.Frame, names []string) (*query.Frame, *query.ExprError) {
	indexes := make([]int, len(frame.Columns))
	for i := range indexes {
		indexes[i] = i
	}
	if len(names) > 0 {
		resolved, err := resolve(frame, names)
		if err != nil {
			return nil, err
		}
		indexes = resolved
	}

	out := &query.Frame{Columns: frame.Columns}
	seen := make(map[string]struct{}, len(frame.Rows))
	key := make([]any, len(indexes))
	for r, row := range frame.Rows {
		for i, idx := range indexes {
			key[i] = row[idx]
		}
		id := keyString(key)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		out.Index = append(out.Index, frame.Index[r])
		out.Rows = append(out.Rows, row)
	}
	return out, nil
}

func columnSeries(frame *query.Frame, name string) (*query.Series, *query.ExprError) {
	idx, ok := frame.Lookup(name)
	if !ok {
		return nil, query.UnknownColumn(name)
	}
	series := &query.Series{
		Name:   name,
		Type:   frame.Columns[idx].Type,
		Labels: make([]any, len(frame.Rows)),
		Values: make([]any, len(frame.Rows)),
	}
	for r, row := range frame.Rows {
		series.Labels[r] = frame.Index[r]
		series.Values[r] = row[idx]
	}
	return series, nil
}

// groupLabel renders a group key as a series label. Compound keys render as
// "(a, b)".
func groupLabel(key []any) any {
	if len(key) == 1 {
		return key[0]
	}
	parts := make([]string, len(key))
	for i, value := range key {
		parts[i] = table.FormatValue(value)
	}
	return "(" + strings.Join(parts, ", ") + ")"
}
