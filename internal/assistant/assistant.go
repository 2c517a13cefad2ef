// Package assistant answers one question at a time: it prompts the model,
// extracts the plan from its tool call and runs the plan on the table.
package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/tablequery/tablequery/internal/history"
	"github.com/tablequery/tablequery/internal/nl2query"
	"github.com/tablequery/tablequery/internal/observability"
	"github.com/tablequery/tablequery/internal/prompt"
	"github.com/tablequery/tablequery/internal/query"
	"github.com/tablequery/tablequery/internal/schema"
	"github.com/tablequery/tablequery/internal/table"
)

type State string

const (
	StateStart             State = "start"
	StatePromptBuilt       State = "prompt_built"
	StateModelInvoked      State = "model_invoked"
	StateToolCallExtracted State = "tool_call_extracted"
	StateNoToolCall        State = "no_tool_call"
	StateExecuted          State = "executed"
	StateSuccess           State = "success"
	StateFailure           State = "failure"
)

// NoToolCallError is reported when the model answers without calling the
// query tool.
const NoToolCallError = "Failed to generate executable pandas code"

// Outcome is the terminal result of Ask. A successful outcome carries the
// executor Result even when that Result is itself a failure.
type Outcome struct {
	Question   string
	Expression string
	Result     query.Result
	Error      string
	Message    string
	State      State
	Trace      []State
	Elapsed    time.Duration
}

func (o Outcome) Succeeded() bool {
	return o.State == StateSuccess
}

// Payload is the outward shape of the outcome:
// {question, expression, result} on success and {question, error[, message]}
// on failure.
func (o Outcome) Payload() map[string]any {
	if o.Succeeded() {
		return map[string]any{
			"question":   o.Question,
			"expression": o.Expression,
			"result":     o.Result.Text(),
		}
	}
	payload := map[string]any{
		"question": o.Question,
		"error":    o.Error,
	}
	if o.Message != "" {
		payload["message"] = o.Message
	}
	return payload
}

func (o Outcome) MarshalJSON() ([]byte, error) {
	return json.Marshal(o.Payload())
}

type Options struct {
	Table    *table.Table
	Executor query.Executor
	Model    nl2query.Model
	// ModelName is stored with recorded turns.
	ModelName string
	Recorder  history.Recorder
	Logger    *slog.Logger
}

type Assistant struct {
	table     *table.Table
	summary   schema.Summary
	executor  query.Executor
	model     nl2query.Model
	modelName string
	recorder  history.Recorder
	logger    *slog.Logger
}

func New(opts Options) (*Assistant, error) {
	if opts.Table == nil {
		return nil, fmt.Errorf("table is required")
	}
	if opts.Executor == nil {
		return nil, fmt.Errorf("executor is required")
	}
	if opts.Model == nil {
		return nil, fmt.Errorf("model is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = observability.DiscardLogger()
	}
	return &Assistant{
		table:     opts.Table,
		summary:   schema.Summarize(opts.Table),
		executor:  opts.Executor,
		model:     opts.Model,
		modelName: opts.ModelName,
		recorder:  opts.Recorder,
		logger:    logger,
	}, nil
}

func (a *Assistant) Summary() schema.Summary {
	return a.summary
}

// Query runs a plan without consulting the model.
func (a *Assistant) Query(ctx context.Context, code string) query.Result {
	result := query.Run(ctx, a.executor, a.table, code, observability.WithTrace(ctx, a.logger))
	if !result.OK() {
		observability.IncrementPlanError(string(result.Err.Code))
	}
	return result
}

type run struct {
	outcome Outcome
	started time.Time
	logger  *slog.Logger
}

func (r *run) enter(state State) {
	r.outcome.Trace = append(r.outcome.Trace, state)
	r.logger.Debug("assistant state", slog.String("state", string(state)))
}

// Ask answers question. Every failure is reported through the Outcome.
func (a *Assistant) Ask(ctx context.Context, question string) Outcome {
	r := &run{
		outcome: Outcome{Question: question},
		started: time.Now(),
		logger:  observability.WithTrace(ctx, a.logger).With(slog.String("question", question)),
	}
	r.enter(StateStart)

	messages, err := prompt.Build(a.summary, question)
	if err != nil {
		return a.fail(ctx, r, err.Error(), "")
	}
	r.enter(StatePromptBuilt)

	callStarted := time.Now()
	resp, err := a.model.Complete(ctx, messages)
	observability.ObserveModelCall(time.Since(callStarted), err)
	if err != nil {
		r.logger.Error("model invocation failed", slog.Any("error", err))
		return a.fail(ctx, r, err.Error(), "")
	}
	r.enter(StateModelInvoked)

	if len(resp.ToolCalls) == 0 {
		r.enter(StateNoToolCall)
		r.logger.Warn("model answered without a tool call", slog.String("content", resp.Content))
		return a.fail(ctx, r, NoToolCallError, resp.Content)
	}
	if extra := len(resp.ToolCalls) - 1; extra > 0 {
		ignored := make([]string, 0, extra)
		for _, call := range resp.ToolCalls[1:] {
			ignored = append(ignored, call.Function.Name)
		}
		r.logger.Warn("ignoring extra tool calls", slog.Int("count", extra), slog.Any("tools", ignored))
		observability.AddIgnoredToolCalls(extra)
	}

	call := resp.ToolCalls[0]
	if call.Function.Name != nl2query.QueryToolName {
		return a.fail(ctx, r, fmt.Sprintf("model called unknown tool %q", call.Function.Name), "")
	}
	code, err := call.Argument(nl2query.CodeArgument)
	if err != nil {
		return a.fail(ctx, r, err.Error(), "")
	}
	r.outcome.Expression = code
	r.enter(StateToolCallExtracted)

	r.outcome.Result = a.Query(ctx, code)
	r.enter(StateExecuted)
	return a.finish(ctx, r, StateSuccess)
}

func (a *Assistant) fail(ctx context.Context, r *run, message, diagnostic string) Outcome {
	r.outcome.Error = message
	r.outcome.Message = diagnostic
	return a.finish(ctx, r, StateFailure)
}

func (a *Assistant) finish(ctx context.Context, r *run, terminal State) Outcome {
	r.enter(terminal)
	r.outcome.State = terminal
	r.outcome.Elapsed = time.Since(r.started)
	observability.ObserveQuestion(string(terminal), r.outcome.Elapsed)

	attrs := []any{
		slog.String("state", string(terminal)),
		slog.Duration("elapsed", r.outcome.Elapsed),
	}
	if terminal == StateSuccess {
		attrs = append(attrs, slog.String("expression", r.outcome.Expression), slog.Bool("result_ok", r.outcome.Result.OK()))
	} else {
		attrs = append(attrs, slog.String("error", r.outcome.Error))
	}
	r.logger.Info("question answered", attrs...)

	a.record(ctx, r)
	return r.outcome
}

func (a *Assistant) record(ctx context.Context, r *run) {
	if a.recorder == nil {
		return
	}
	turn := history.Turn{
		Question:   r.outcome.Question,
		Expression: r.outcome.Expression,
		Outcome:    history.OutcomeFailure,
		Error:      r.outcome.Error,
		Message:    r.outcome.Message,
		Model:      a.modelName,
		Duration:   r.outcome.Elapsed,
	}
	if r.outcome.Succeeded() {
		turn.Outcome = history.OutcomeSuccess
		turn.Result = r.outcome.Result.Text()
		if !r.outcome.Result.OK() {
			turn.ErrorCode = string(r.outcome.Result.Err.Code)
		}
	}
	if _, err := a.recorder.Record(context.WithoutCancel(ctx), turn); err != nil {
		r.logger.Warn("record history turn failed", slog.Any("error", err))
	}
}
