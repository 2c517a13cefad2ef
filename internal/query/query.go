// Package query defines query plans, their results and how results are
// displayed.
package query

import (
	"context"
	"errors"
	"log/slog"

	"github.com/tablequery/tablequery/internal/table"
)

// Executor evaluates a validated plan against a read-only table snapshot.
// Implementations report every failure through the returned Result.
type Executor interface {
	Execute(ctx context.Context, tbl *table.Table, plan Plan) Result
}

// Run parses code and executes it. It never returns a failure other than
// through the Result, including a panic inside the executor.
func Run(ctx context.Context, exec Executor, tbl *table.Table, code string, logger *slog.Logger) (result Result) {
	defer func() {
		if recovered := recover(); recovered != nil {
			result = Failure(Errorf(CodeInternal, "evaluation panicked: %v", recovered))
		}
		if !result.OK() && logger != nil {
			logger.WarnContext(ctx, "query plan failed",
				slog.String("code", string(result.Err.Code)),
				slog.String("error", result.Err.Message),
				slog.String("expression", code),
			)
		}
	}()

	plan, err := ParsePlan(code)
	if err != nil {
		return Failure(asExprError(err))
	}
	if exec == nil {
		return Failure(Errorf(CodeInternal, "no executor configured"))
	}
	if tbl == nil {
		return Failure(Errorf(CodeInternal, "no table loaded"))
	}
	return exec.Execute(ctx, tbl, plan)
}

func asExprError(err error) *ExprError {
	var exprErr *ExprError
	if errors.As(err, &exprErr) {
		return exprErr
	}
	return Errorf(CodeInternal, "%v", err)
}
