package query

import (
	"encoding/json"
	"fmt"

	"github.com/tablequery/tablequery/internal/table"
)

type ErrorCode string

const (
	CodeInvalidPlan   ErrorCode = "INVALID_PLAN"
	CodeUnknownOp     ErrorCode = "UNKNOWN_OP"
	CodeUnknownColumn ErrorCode = "UNKNOWN_COLUMN"
	CodeTypeMismatch  ErrorCode = "TYPE_MISMATCH"
	CodeEmptySequence ErrorCode = "EMPTY_SEQUENCE"
	CodeInternal      ErrorCode = "INTERNAL"
)

// ExprError is a failure to parse or evaluate a plan.
type ExprError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

func (e *ExprError) Error() string {
	return e.Message
}

func Errorf(code ErrorCode, format string, args ...any) *ExprError {
	return &ExprError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// UnknownColumn reports a column that is not in the input. The message is the
// quoted name.
func UnknownColumn(name string) *ExprError {
	return &ExprError{Code: CodeUnknownColumn, Message: fmt.Sprintf("'%s'", name)}
}

// Value is the output of a plan step.
type Value interface {
	Shape() string
}

// Frame is a row-major table. Index holds the source row position of each row.
type Frame struct {
	Columns []table.Column
	Index   []int64
	Rows    [][]any
}

func (f *Frame) Shape() string { return "frame" }

func (f *Frame) Lookup(name string) (int, bool) {
	for i, column := range f.Columns {
		if column.Name == name {
			return i, true
		}
	}
	return 0, false
}

// Series is a labelled sequence of values.
type Series struct {
	Name      string
	IndexName string
	Type      table.Type
	Labels    []any
	Values    []any
}

func (s *Series) Shape() string { return "series" }

func (s *Series) Len() int { return len(s.Values) }

type Scalar struct {
	Value any
}

func (s Scalar) Shape() string { return "scalar" }

// Result is either a Value or an ExprError, never both.
type Result struct {
	Value Value
	Err   *ExprError
}

func Success(value Value) Result {
	return Result{Value: value}
}

func Failure(err *ExprError) Result {
	if err == nil {
		err = Errorf(CodeInternal, "unknown failure")
	}
	return Result{Err: err}
}

func (r Result) OK() bool {
	return r.Err == nil
}

// Text renders the result for display. Failures render as "Error: <message>".
func (r Result) Text() string {
	if r.Err != nil {
		return "Error: " + r.Err.Message
	}
	return Format(r.Value)
}

func (r Result) MarshalJSON() ([]byte, error) {
	payload := map[string]any{"ok": r.OK(), "text": r.Text()}
	if r.Err != nil {
		payload["error"] = r.Err
	} else if r.Value != nil {
		payload["shape"] = r.Value.Shape()
	}
	return json.Marshal(payload)
}
