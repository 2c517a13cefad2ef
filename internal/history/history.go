// Package history records answered questions.
package history

import (
	"context"
	"errors"
	"time"
)

const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// DefaultListLimit and MaxListLimit bound List.
const (
	DefaultListLimit = 20
	MaxListLimit     = 500
)

var ErrNotFound = errors.New("history entry not found")

// Turn is one question and what came of it.
type Turn struct {
	ID         int64         `json:"id"`
	Question   string        `json:"question"`
	Expression string        `json:"expression,omitempty"`
	Outcome    string        `json:"outcome"`
	Result     string        `json:"result,omitempty"`
	ErrorCode  string        `json:"error_code,omitempty"`
	Error      string        `json:"error,omitempty"`
	Message    string        `json:"message,omitempty"`
	Model      string        `json:"model,omitempty"`
	Duration   time.Duration `json:"duration_ns"`
	CreatedAt  time.Time     `json:"created_at"`
}

type Recorder interface {
	Record(ctx context.Context, turn Turn) (Turn, error)
}

type Store interface {
	Recorder
	List(ctx context.Context, limit int) ([]Turn, error)
	Get(ctx context.Context, id int64) (Turn, error)
}

// ClampLimit maps a requested page size into [1, MaxListLimit].
func ClampLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultListLimit
	case limit > MaxListLimit:
		return MaxListLimit
	default:
		return limit
	}
}
