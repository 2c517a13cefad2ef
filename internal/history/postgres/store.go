package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tablequery/tablequery/internal/history"
)

const turnColumns = `turn_id, question, expression, outcome, result_text, error_code, error_message, diagnostic, model, duration_ms, created_at`

// Store implements history.Store on the query_history table.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) HealthCheck(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping history db: %w", err)
	}
	return nil
}

func (s *Store) Record(ctx context.Context, turn history.Turn) (history.Turn, error) {
	query := `
INSERT INTO query_history (question, expression, outcome, result_text, error_code, error_message, diagnostic, model, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING turn_id, created_at`
	if err := s.db.QueryRowContext(ctx, query,
		turn.Question,
		turn.Expression,
		turn.Outcome,
		turn.Result,
		turn.ErrorCode,
		turn.Error,
		turn.Message,
		turn.Model,
		turn.Duration.Milliseconds(),
	).Scan(&turn.ID, &turn.CreatedAt); err != nil {
		return history.Turn{}, fmt.Errorf("record history turn: %w", err)
	}
	return turn, nil
}

func (s *Store) List(ctx context.Context, limit int) ([]history.Turn, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+turnColumns+`
FROM query_history
ORDER BY turn_id DESC
LIMIT $1`, history.ClampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("list history: %w", err)
	}
	defer func() { _ = rows.Close() }()

	turns := make([]history.Turn, 0)
	for rows.Next() {
		turn, err := scanTurn(rows)
		if err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		turns = append(turns, turn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return turns, nil
}

func (s *Store) Get(ctx context.Context, id int64) (history.Turn, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+turnColumns+`
FROM query_history
WHERE turn_id = $1`, id)
	turn, err := scanTurn(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return history.Turn{}, history.ErrNotFound
		}
		return history.Turn{}, fmt.Errorf("get history turn: %w", err)
	}
	return turn, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTurn(row scanner) (history.Turn, error) {
	var turn history.Turn
	var durationMS int64
	if err := row.Scan(
		&turn.ID,
		&turn.Question,
		&turn.Expression,
		&turn.Outcome,
		&turn.Result,
		&turn.ErrorCode,
		&turn.Error,
		&turn.Message,
		&turn.Model,
		&durationMS,
		&turn.CreatedAt,
	); err != nil {
		return history.Turn{}, err
	}
	turn.Duration = time.Duration(durationMS) * time.Millisecond
	return turn, nil
}
