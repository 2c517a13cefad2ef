package observability

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveQuestionCountsByOutcome(t *testing.T) {
	before := testutil.ToFloat64(questionsTotal.WithLabelValues("no_tool_call"))
	ObserveQuestion("no_tool_call", 40*time.Millisecond)
	ObserveQuestion("no_tool_call", 10*time.Millisecond)
	if got := testutil.ToFloat64(questionsTotal.WithLabelValues("no_tool_call")); got != before+2 {
		t.Fatalf("questions_total{no_tool_call} = %v, want %v", got, before+2)
	}
}

func TestObserveModelCallLabelsErrors(t *testing.T) {
	beforeOK := testutil.ToFloat64(modelCallsTotal.WithLabelValues("ok"))
	beforeErr := testutil.ToFloat64(modelCallsTotal.WithLabelValues("error"))
	ObserveModelCall(time.Second, nil)
	ObserveModelCall(time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(modelCallsTotal.WithLabelValues("ok")); got != beforeOK+1 {
		t.Fatalf("model_calls_total{ok} = %v", got)
	}
	if got := testutil.ToFloat64(modelCallsTotal.WithLabelValues("error")); got != beforeErr+1 {
		t.Fatalf("model_calls_total{error} = %v", got)
	}
}

func TestAddIgnoredToolCallsSkipsNonPositive(t *testing.T) {
	before := testutil.ToFloat64(toolCallsIgnoredTotal)
	AddIgnoredToolCalls(0)
	AddIgnoredToolCalls(-3)
	AddIgnoredToolCalls(2)
	if got := testutil.ToFloat64(toolCallsIgnoredTotal); got != before+2 {
		t.Fatalf("tool_calls_ignored_total = %v, want %v", got, before+2)
	}
}

func TestSetTableShape(t *testing.T) {
	SetTableShape(1000, 17)
	if got := testutil.ToFloat64(tableRows); got != 1000 {
		t.Fatalf("table_rows = %v", got)
	}
	if got := testutil.ToFloat64(tableColumns); got != 17 {
		t.Fatalf("table_columns = %v", got)
	}
}

func TestIncrementPlanErrorDefaultsCode(t *testing.T) {
	before := testutil.ToFloat64(planErrorsTotal.WithLabelValues("unknown"))
	IncrementPlanError("")
	if got := testutil.ToFloat64(planErrorsTotal.WithLabelValues("unknown")); got != before+1 {
		t.Fatalf("plan_errors_total{unknown} = %v", got)
	}
}
