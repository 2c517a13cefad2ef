package postgres

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"

	"github.com/tablequery/tablequery/internal/history"
)

func TestRecordReturnsIDAndCreatedAt(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)
	now := time.Now().UTC()

	mock.ExpectQuery(regexp.QuoteMeta(`
INSERT INTO query_history (question, expression, outcome, result_text, error_code, error_message, diagnostic, model, duration_ms)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
RETURNING turn_id, created_at`)).
		WithArgs("which branch?", `[{"op":"count"}]`, history.OutcomeSuccess, "C", "", "", "", "gpt-4o", int64(1500)).
		WillReturnRows(sqlmock.NewRows([]string{"turn_id", "created_at"}).AddRow(int64(9), now))

	turn, err := store.Record(context.Background(), history.Turn{
		Question:   "which branch?",
		Expression: `[{"op":"count"}]`,
		Outcome:    history.OutcomeSuccess,
		Result:     "C",
		Model:      "gpt-4o",
		Duration:   1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if turn.ID != 9 || !turn.CreatedAt.Equal(now) {
		t.Fatalf("Record() = %+v", turn)
	}
	assertSQLMock(t, mock)
}

func TestListClampsLimitAndScansRows(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)
	now := time.Now().UTC()

	columns := []string{"turn_id", "question", "expression", "outcome", "result_text", "error_code", "error_message", "diagnostic", "model", "duration_ms", "created_at"}
	mock.ExpectQuery(regexp.QuoteMeta(`FROM query_history
ORDER BY turn_id DESC
LIMIT $1`)).
		WithArgs(history.MaxListLimit).
		WillReturnRows(sqlmock.NewRows(columns).
			AddRow(int64(2), "q2", "", history.OutcomeFailure, "", "", "Failed to generate executable pandas code", "I cannot", "gpt-4o", int64(20), now).
			AddRow(int64(1), "q1", "[]", history.OutcomeSuccess, "42", "", "", "", "gpt-4o", int64(10), now))

	turns, err := store.List(context.Background(), 100000)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(turns) != 2 {
		t.Fatalf("len(turns) = %d", len(turns))
	}
	if turns[0].ID != 2 || turns[0].Message != "I cannot" || turns[0].Duration != 20*time.Millisecond {
		t.Fatalf("turns[0] = %+v", turns[0])
	}
	assertSQLMock(t, mock)
}

func TestGetReturnsNotFound(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)

	mock.ExpectQuery(regexp.QuoteMeta(`WHERE turn_id = $1`)).
		WithArgs(int64(404)).
		WillReturnError(sql.ErrNoRows)

	_, err := store.Get(context.Background(), 404)
	if !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("Get() error = %v, want ErrNotFound", err)
	}
	assertSQLMock(t, mock)
}

func TestRecordWrapsDriverErrors(t *testing.T) {
	db, mock := newSQLMock(t)
	store := NewStore(db)
	boom := errors.New("connection reset")

	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO query_history`)).WillReturnError(boom)

	_, err := store.Record(context.Background(), history.Turn{Question: "q", Outcome: history.OutcomeFailure})
	if !errors.Is(err, boom) {
		t.Fatalf("Record() error = %v, want wrapped %v", err, boom)
	}
	assertSQLMock(t, mock)
}

func TestHealthCheck(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	mock.ExpectPing().WillReturnError(errors.New("down"))

	if err := NewStore(db).HealthCheck(context.Background()); err == nil {
		t.Fatal("expected ping error")
	}
	assertSQLMock(t, mock)
}

func newSQLMock(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db, mock
}

func assertSQLMock(t *testing.T, mock sqlmock.Sqlmock) {
	t.Helper()
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet sql expectations: %v", err)
	}
}
