package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/tablequery/tablequery/internal/app"
	"github.com/tablequery/tablequery/internal/config"
	"github.com/tablequery/tablequery/internal/observability"
	"github.com/tablequery/tablequery/internal/repl"
)

func main() {
	cfg, err := config.LoadFromEnv("tablequery")
	if err != nil {
		slog.Error("failed to load config", slog.Any("error", err))
		os.Exit(1)
	}
	logger := observability.NewLogger(cfg, os.Stderr)
	if err := cfg.RequireAssistant(); err != nil {
		logger.Error("assistant is not configured", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM)
	defer stop()

	rt, err := app.Bootstrap(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to start", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rt.Close() }()

	rl, err := repl.NewReadline(cfg.REPL.HistoryFile, rt.Table.ColumnNames())
	if err != nil {
		logger.Error("failed to start line editor", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() { _ = rl.Close() }()

	if err := repl.Run(ctx, repl.Options{
		Reader:    rl,
		Out:       rl.Stdout(),
		Assistant: rt.Assistant,
		Summary:   rt.Assistant.Summary(),
	}); err != nil {
		logger.Error("interactive loop failed", slog.Any("error", err))
		os.Exit(1)
	}
}
