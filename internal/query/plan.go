package query

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

type Op string

const (
	OpFilter      Op = "filter"
	OpSelect      Op = "select"
	OpSort        Op = "sort"
	OpHead        Op = "head"
	OpTail        Op = "tail"
	OpDistinct    Op = "distinct"
	OpGroupBy     Op = "group_by"
	OpAggregate   Op = "aggregate"
	OpColumn      Op = "column"
	OpValueCounts Op = "value_counts"
	OpIdxMax      Op = "idxmax"
	OpIdxMin      Op = "idxmin"
	OpCount       Op = "count"
)

var Ops = []Op{
	OpFilter, OpSelect, OpSort, OpHead, OpTail, OpDistinct, OpGroupBy,
	OpAggregate, OpColumn, OpValueCounts, OpIdxMax, OpIdxMin, OpCount,
}

type Comparator string

const (
	CmpEq         Comparator = "eq"
	CmpNe         Comparator = "ne"
	CmpGt         Comparator = "gt"
	CmpGe         Comparator = "ge"
	CmpLt         Comparator = "lt"
	CmpLe         Comparator = "le"
	CmpIn         Comparator = "in"
	CmpNotIn      Comparator = "not_in"
	CmpContains   Comparator = "contains"
	CmpStartsWith Comparator = "startswith"
	CmpEndsWith   Comparator = "endswith"
	CmpIsNull     Comparator = "isnull"
	CmpNotNull    Comparator = "notnull"
	CmpBetween    Comparator = "between"
)

var Comparators = []Comparator{
	CmpEq, CmpNe, CmpGt, CmpGe, CmpLt, CmpLe, CmpIn, CmpNotIn,
	CmpContains, CmpStartsWith, CmpEndsWith, CmpIsNull, CmpNotNull, CmpBetween,
}

type AggFunc string

const (
	AggSum     AggFunc = "sum"
	AggMean    AggFunc = "mean"
	AggMedian  AggFunc = "median"
	AggMin     AggFunc = "min"
	AggMax     AggFunc = "max"
	AggCount   AggFunc = "count"
	AggSize    AggFunc = "size"
	AggNUnique AggFunc = "nunique"
	AggStd     AggFunc = "std"
)

var AggFuncs = []AggFunc{AggSum, AggMean, AggMedian, AggMin, AggMax, AggCount, AggSize, AggNUnique, AggStd}

const (
	MatchAll = "all"
	MatchAny = "any"
)

// DefaultLimit is used by head and tail when n is omitted.
const DefaultLimit = 5

// Plan is a pipeline of steps applied to the table in order.
type Plan struct {
	Steps []Step `json:"steps"`
}

// Step is one operation of a Plan, tagged by Op. Only the fields an op reads
// are meaningful for it.
type Step struct {
	Op         Op          `json:"op"`
	Column     string      `json:"column,omitempty"`
	Columns    []string    `json:"columns,omitempty"`
	Conditions []Condition `json:"conditions,omitempty"`
	Match      string      `json:"match,omitempty"`
	By         []SortKey   `json:"by,omitempty"`
	Descending bool        `json:"descending,omitempty"`
	N          *int        `json:"n,omitempty"`
	Func       AggFunc     `json:"func,omitempty"`
	GroupBy    []string    `json:"group_by,omitempty"`
	Aggregates []Aggregate `json:"aggregates,omitempty"`
}

type Condition struct {
	Column string     `json:"column"`
	Cmp    Comparator `json:"cmp"`
	Value  any        `json:"value,omitempty"`
	Values []any      `json:"values,omitempty"`
}

type SortKey struct {
	Column     string `json:"column"`
	Descending bool   `json:"descending,omitempty"`
}

type Aggregate struct {
	Column string  `json:"column,omitempty"`
	Func   AggFunc `json:"func"`
	As     string  `json:"as,omitempty"`
}

// Limit returns the row count for head and tail.
func (s Step) Limit() int {
	if s.N == nil {
		return DefaultLimit
	}
	return *s.N
}

// ParsePlan decodes the plan text produced by the model. Markdown fences are
// tolerated and a bare array is read as the step list. Unknown fields are
// rejected.
func ParsePlan(code string) (Plan, error) {
	text := stripMarkdownFence(code)
	if text == "" {
		return Plan{}, Errorf(CodeInvalidPlan, "plan is empty")
	}

	var plan Plan
	var err error
	if strings.HasPrefix(text, "[") {
		err = decodeStrict(text, &plan.Steps)
	} else {
		err = decodeStrict(text, &plan)
	}
	if err != nil {
		return Plan{}, Errorf(CodeInvalidPlan, "decode plan: %v", err)
	}
	if err := plan.Validate(); err != nil {
		return Plan{}, err
	}
	return plan, nil
}

func decodeStrict(text string, dst any) error {
	decoder := json.NewDecoder(strings.NewReader(text))
	decoder.DisallowUnknownFields()
	decoder.UseNumber()
	if err := decoder.Decode(dst); err != nil {
		return err
	}
	if err := decoder.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return fmt.Errorf("unexpected data after plan")
	}
	return nil
}

// Validate checks op names and the fields each op requires. Column names are
// checked against the table at execution time.
func (p Plan) Validate() error {
	if len(p.Steps) == 0 {
		return Errorf(CodeInvalidPlan, "plan has no steps")
	}
	for i, step := range p.Steps {
		if err := step.validate(); err != nil {
			var exprErr *ExprError
			if errors.As(err, &exprErr) {
				exprErr.Message = fmt.Sprintf("step %d (%s): %s", i+1, step.Op, exprErr.Message)
				return exprErr
			}
			return err
		}
	}
	return nil
}

func (s Step) validate() error {
	switch s.Op {
	case OpFilter:
		if len(s.Conditions) == 0 {
			return Errorf(CodeInvalidPlan, "conditions are required")
		}
		if s.Match != "" && s.Match != MatchAll && s.Match != MatchAny {
			return Errorf(CodeInvalidPlan, "match must be %q or %q", MatchAll, MatchAny)
		}
		for _, condition := range s.Conditions {
			if err := condition.validate(); err != nil {
				return err
			}
		}
	case OpSelect:
		if len(s.Columns) == 0 {
			return Errorf(CodeInvalidPlan, "columns are required")
		}
	case OpSort:
		for _, key := range s.By {
			if key.Column == "" {
				return Errorf(CodeInvalidPlan, "sort key column is required")
			}
		}
	case OpHead, OpTail:
		if s.Limit() < 0 {
			return Errorf(CodeInvalidPlan, "n must not be negative")
		}
	case OpDistinct, OpIdxMax, OpIdxMin, OpCount, OpValueCounts:
	case OpGroupBy:
		if len(s.Columns) == 0 {
			return Errorf(CodeInvalidPlan, "columns are required")
		}
		if len(s.Aggregates) == 0 {
			return Errorf(CodeInvalidPlan, "aggregates are required")
		}
		for _, aggregate := range s.Aggregates {
			if err := validateAggFunc(aggregate.Func); err != nil {
				return err
			}
			if aggregate.Column == "" && aggregate.Func != AggSize {
				return Errorf(CodeInvalidPlan, "aggregate %s requires a column", aggregate.Func)
			}
		}
	case OpAggregate:
		if err := validateAggFunc(s.Func); err != nil {
			return err
		}
	case OpColumn:
		if s.Column == "" {
			return Errorf(CodeInvalidPlan, "column is required")
		}
	default:
		return Errorf(CodeUnknownOp, "unknown op %q", s.Op)
	}
	return nil
}

func validateAggFunc(fn AggFunc) error {
	for _, candidate := range AggFuncs {
		if fn == candidate {
			return nil
		}
	}
	return Errorf(CodeUnknownOp, "unknown aggregate func %q", fn)
}

func (c Condition) validate() error {
	if c.Column == "" {
		return Errorf(CodeInvalidPlan, "condition column is required")
	}
	switch c.Cmp {
	case CmpEq, CmpNe, CmpGt, CmpGe, CmpLt, CmpLe, CmpContains, CmpStartsWith, CmpEndsWith:
		if c.Value == nil {
			return Errorf(CodeInvalidPlan, "comparator %s requires a value", c.Cmp)
		}
	case CmpIn, CmpNotIn:
		if len(c.Values) == 0 {
			return Errorf(CodeInvalidPlan, "comparator %s requires values", c.Cmp)
		}
	case CmpBetween:
		if len(c.Values) != 2 {
			return Errorf(CodeInvalidPlan, "comparator between requires exactly two values")
		}
	case CmpIsNull, CmpNotNull:
	default:
		return Errorf(CodeUnknownOp, "unknown comparator %q", c.Cmp)
	}
	return nil
}

func stripMarkdownFence(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	trimmed = strings.TrimPrefix(trimmed, "```")
	if newline := strings.IndexByte(trimmed, '\n'); newline >= 0 {
		trimmed = trimmed[newline+1:]
	} else {
		trimmed = strings.TrimPrefix(strings.TrimSpace(trimmed), "json")
	}
	trimmed = strings.TrimSpace(trimmed)
	trimmed = strings.TrimSuffix(trimmed, "```")
	return strings.TrimSpace(trimmed)
}

// Compact re-encodes the plan without whitespace.
func (p Plan) Compact() string {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(p); err != nil {
		return ""
	}
	return strings.TrimSpace(buf.String())
}
