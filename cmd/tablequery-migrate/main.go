package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/tablequery/tablequery/internal/config"
	historypg "github.com/tablequery/tablequery/internal/history/postgres"
	"github.com/tablequery/tablequery/internal/migrations"
	"github.com/tablequery/tablequery/internal/observability"
)

func main() {
	direction := flag.String("direction", "up", "migration direction: up|down|status")
	steps := flag.Int("steps", 0, "number of migration steps; 0 means all for up, 1 for down")
	flag.Parse()

	cfg, err := config.LoadFromEnv("tablequery-migrate")
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stdout)
	if err := cfg.RequireHistory(); err != nil {
		logger.Error("history database is not configured", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	db, err := historypg.Open(ctx, historypg.DBConfig{DSN: cfg.History.DSN, MaxOpenConns: 1})
	if err != nil {
		logger.Error("open history database", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = db.Close() }()

	runner := migrations.NewRunner()
	switch *direction {
	case "up":
		applied, err := runner.Up(ctx, db, *steps)
		if err != nil {
			logger.Error("migration up failed", slog.Int("applied", applied), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations applied", slog.Int("count", applied))
	case "down":
		rolledBack, err := runner.Down(ctx, db, *steps)
		if err != nil {
			logger.Error("migration down failed", slog.Int("rolled_back", rolledBack), slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migrations rolled back", slog.Int("count", rolledBack))
	case "status":
		status, err := runner.Status(ctx, db)
		if err != nil {
			logger.Error("migration status failed", slog.Any("error", err))
			os.Exit(1)
		}
		logger.Info("migration status", slog.Any("applied", status.Applied), slog.Any("pending", status.Pending))
	default:
		logger.Error("invalid direction", slog.String("direction", *direction))
		os.Exit(1)
	}
}
