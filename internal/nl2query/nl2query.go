// Package nl2query asks a chat-completion model to translate a question into
// a query plan delivered through a tool call.
package nl2query

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// QueryToolName is the tool the model calls with a plan in its code argument.
const QueryToolName = "run_table_query"

// CodeArgument is the tool argument carrying the plan.
const CodeArgument = "code"

var ErrAPIKeyRequired = errors.New("api key is required")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ToolCall struct {
	ID       string       `json:"id"`
	Type     string       `json:"type"`
	Function FunctionCall `json:"function"`
}

// FunctionCall arguments are a JSON-encoded object.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// Argument returns the named argument as text. String values are returned as
// is; any other JSON value is returned in its raw encoding.
func (c ToolCall) Argument(name string) (string, error) {
	var args map[string]json.RawMessage
	if err := json.Unmarshal([]byte(c.Function.Arguments), &args); err != nil {
		return "", fmt.Errorf("decode %s arguments: %w", c.Function.Name, err)
	}
	raw, ok := args[name]
	if !ok {
		return "", fmt.Errorf("tool call %s has no %q argument", c.Function.Name, name)
	}
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		if strings.TrimSpace(text) == "" {
			return "", fmt.Errorf("tool call %s has an empty %q argument", c.Function.Name, name)
		}
		return text, nil
	}
	return string(raw), nil
}

type Tool struct {
	Type     string       `json:"type"`
	Function ToolFunction `json:"function"`
}

type ToolFunction struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// QueryTool describes the query executor to the model.
func QueryTool() Tool {
	return Tool{
		Type: "function",
		Function: ToolFunction{
			Name:        QueryToolName,
			Description: "Run a JSON query plan against the loaded table and return the formatted result.",
			Parameters: map[string]any{
				"type": "object",
				"properties": map[string]any{
					CodeArgument: map[string]any{
						"type":        "string",
						"description": "The JSON query plan to execute.",
					},
				},
				"required": []string{CodeArgument},
			},
		},
	}
}

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is the first choice of a completion.
type Response struct {
	Content      string
	ToolCalls    []ToolCall
	FinishReason string
	Model        string
	Usage        *Usage
}

// Model completes a conversation.
type Model interface {
	Complete(ctx context.Context, messages []Message) (Response, error)
}

// InvocationError reports a failed model call.
type InvocationError struct {
	StatusCode int
	Message    string
	Err        error
}

func (e *InvocationError) Error() string {
	switch {
	case e.StatusCode > 0:
		return fmt.Sprintf("model invocation failed status=%d: %s", e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("model invocation failed: %s: %v", e.Message, e.Err)
	default:
		return "model invocation failed: " + e.Message
	}
}

func (e *InvocationError) Unwrap() error {
	return e.Err
}
