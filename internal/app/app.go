// Package app wires configuration into a ready assistant.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/tablequery/tablequery/internal/assistant"
	"github.com/tablequery/tablequery/internal/config"
	"github.com/tablequery/tablequery/internal/history"
	historypg "github.com/tablequery/tablequery/internal/history/postgres"
	"github.com/tablequery/tablequery/internal/nl2query"
	"github.com/tablequery/tablequery/internal/observability"
	"github.com/tablequery/tablequery/internal/query/memory"
	"github.com/tablequery/tablequery/internal/storage"
	s3store "github.com/tablequery/tablequery/internal/storage/s3"
	"github.com/tablequery/tablequery/internal/table"
	duckdbdecoder "github.com/tablequery/tablequery/internal/table/duckdb"
)

type Runtime struct {
	Config    config.Config
	Table     *table.Table
	Assistant *assistant.Assistant
	// History is nil when no history database is configured.
	History history.Store

	healthChecks []func(context.Context) error
	closers      []func() error
}

// Bootstrap checks the configuration before touching the source, then loads
// the table and builds the assistant.
func Bootstrap(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	if err := cfg.RequireAssistant(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = observability.DiscardLogger()
	}

	model, err := nl2query.NewOpenAIClient(nl2query.OpenAIConfig{
		BaseURL:     cfg.AI.BaseURL,
		APIKey:      cfg.AI.APIKey,
		Model:       cfg.AI.Model,
		Temperature: cfg.AI.Temperature,
		MaxTokens:   cfg.AI.MaxTokens,
		Timeout:     cfg.AI.Timeout,
	}, nl2query.QueryTool())
	if err != nil {
		if errors.Is(err, nl2query.ErrAPIKeyRequired) {
			return nil, &config.ConfigError{Key: config.KeyAIAPIKey, Reason: "is required"}
		}
		return nil, fmt.Errorf("initialize model client: %w", err)
	}

	tbl, err := table.Load(ctx, LoadOptions(cfg, logger))
	if err != nil {
		return nil, err
	}
	observability.SetTableShape(tbl.NumRows(), tbl.NumColumns())

	rt := &Runtime{Config: cfg, Table: tbl}
	var recorder history.Recorder
	if cfg.History.DSN != "" {
		db, err := historypg.Open(ctx, historypg.DBConfig{
			DSN:             cfg.History.DSN,
			MaxOpenConns:    cfg.History.MaxOpenConns,
			MaxIdleConns:    cfg.History.MaxIdleConns,
			ConnMaxIdleTime: cfg.History.ConnMaxIdleTime,
			ConnMaxLifetime: cfg.History.ConnMaxLifetime,
		})
		if err != nil {
			return nil, err
		}
		store := historypg.NewStore(db)
		rt.History = store
		rt.healthChecks = append(rt.healthChecks, store.HealthCheck)
		rt.closers = append(rt.closers, db.Close)
		recorder = store
	}

	rt.Assistant, err = assistant.New(assistant.Options{
		Table:     tbl,
		Executor:  memory.NewExecutor(),
		Model:     model,
		ModelName: model.Model(),
		Recorder:  recorder,
		Logger:    logger,
	})
	if err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("initialize assistant: %w", err)
	}
	return rt, nil
}

// LoadOptions maps the source settings onto table.Load.
func LoadOptions(cfg config.Config, logger *slog.Logger) table.LoadOptions {
	var decoder table.Decoder = table.NativeDecoder{}
	if cfg.Source.Loader == config.LoaderDuckDB {
		decoder = duckdbdecoder.NewDecoder()
	}
	objectStore := cfg.ObjectStore
	return table.LoadOptions{
		Path:      cfg.Source.Path,
		Delimiter: cfg.Source.Delimiter,
		MaxBytes:  cfg.Source.MaxBytes,
		Decoder:   decoder,
		Logger:    logger,
		Stores: func(bucket string) (storage.ObjectStore, error) {
			store, err := s3store.New(s3store.Config{
				Endpoint:        objectStore.Endpoint,
				Region:          objectStore.Region,
				AccessKeyID:     objectStore.AccessKeyID,
				SecretAccessKey: objectStore.SecretAccessKey,
				UseSSL:          objectStore.UseSSL,
			}, bucket)
			if err != nil {
				return nil, err
			}
			return store, nil
		},
	}
}

// Ready reports whether every configured dependency answers.
func (r *Runtime) Ready(ctx context.Context) error {
	for _, check := range r.healthChecks {
		if err := check(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) Close() error {
	var errs []error
	for _, closer := range r.closers {
		if err := closer(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
