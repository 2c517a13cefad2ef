//go:build integration

package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/tablequery/tablequery/internal/history"
	"github.com/tablequery/tablequery/internal/migrations"
)

func TestStoreAgainstMigratedSchema(t *testing.T) {
	baseDSN := strings.TrimSpace(os.Getenv("TABLEQUERY_TEST_HISTORY_DSN"))
	if baseDSN == "" {
		t.Skip("TABLEQUERY_TEST_HISTORY_DSN is not set")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db := openIsolatedSchema(ctx, t, baseDSN)

	runner := migrations.NewRunner()
	if _, err := runner.Up(ctx, db, 0); err != nil {
		t.Fatalf("runner.Up() error = %v", err)
	}
	status, err := runner.Status(ctx, db)
	if err != nil {
		t.Fatalf("runner.Status() error = %v", err)
	}
	if len(status.Pending) != 0 {
		t.Fatalf("pending migrations = %v", status.Pending)
	}

	store := NewStore(db)
	if err := store.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v", err)
	}
	first, err := store.Record(ctx, history.Turn{
		Question:   "Which branch has the highest total for cash payments?",
		Expression: `[{"op":"idxmax"}]`,
		Outcome:    history.OutcomeSuccess,
		Result:     "C",
		Model:      "gpt-4o",
		Duration:   1500 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	second, err := store.Record(ctx, history.Turn{
		Question: "hello",
		Outcome:  history.OutcomeFailure,
		Error:    "Failed to generate executable pandas code",
		Message:  "Hi there",
	})
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if second.ID <= first.ID {
		t.Fatalf("turn ids = %d then %d", first.ID, second.ID)
	}

	turns, err := store.List(ctx, 10)
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(turns) != 2 || turns[0].ID != second.ID {
		t.Fatalf("List() = %+v", turns)
	}

	got, err := store.Get(ctx, first.ID)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Result != "C" || got.Duration != 1500*time.Millisecond {
		t.Fatalf("Get() = %+v", got)
	}
	if _, err := store.Get(ctx, second.ID+100); !errors.Is(err, history.ErrNotFound) {
		t.Fatalf("Get(missing) error = %v", err)
	}

	if _, err := db.ExecContext(ctx, `INSERT INTO query_history (question, outcome) VALUES ('q', 'maybe')`); err == nil {
		t.Fatal("outcome check constraint did not reject an unknown outcome")
	}

	if rolledBack, err := runner.Down(ctx, db, 0); err != nil || rolledBack < 1 {
		t.Fatalf("runner.Down() = %d, %v", rolledBack, err)
	}
}

// openIsolatedSchema gives the test its own schema through search_path and
// drops it on cleanup.
func openIsolatedSchema(ctx context.Context, t *testing.T, baseDSN string) *sql.DB {
	t.Helper()

	admin, err := Open(ctx, DBConfig{DSN: baseDSN})
	if err != nil {
		t.Fatalf("Open(admin) error = %v", err)
	}
	schema := fmt.Sprintf("tablequery_it_%d", time.Now().UnixNano())
	if _, err := admin.ExecContext(ctx, `CREATE SCHEMA `+schema); err != nil {
		t.Fatalf("CREATE SCHEMA error = %v", err)
	}

	parsed, err := url.Parse(baseDSN)
	if err != nil {
		t.Fatalf("url.Parse(dsn) error = %v", err)
	}
	query := parsed.Query()
	query.Set("search_path", schema)
	parsed.RawQuery = query.Encode()

	db, err := Open(ctx, DBConfig{DSN: parsed.String(), MaxOpenConns: 2})
	if err != nil {
		t.Fatalf("Open(test) error = %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
		if _, err := admin.Exec(`DROP SCHEMA ` + schema + ` CASCADE`); err != nil {
			t.Errorf("DROP SCHEMA error = %v", err)
		}
		_ = admin.Close()
	})
	return db
}
