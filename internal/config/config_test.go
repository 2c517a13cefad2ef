package config

import (
	"errors"
	"log/slog"
	"testing"
	"time"
)

func TestLoadDefaultsForDevProfile(t *testing.T) {
	cfg, err := Load("tablequery", mapLookup(map[string]string{}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileDev {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileDev)
	}
	if cfg.HTTP.Address != ":8080" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.Observability.LogLevel != slog.LevelDebug {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if cfg.Source.Loader != LoaderNative {
		t.Fatalf("Source.Loader = %q", cfg.Source.Loader)
	}
	if cfg.Source.Delimiter != ',' {
		t.Fatalf("Source.Delimiter = %q", cfg.Source.Delimiter)
	}
	if cfg.Source.MaxBytes != 512<<20 {
		t.Fatalf("Source.MaxBytes = %d", cfg.Source.MaxBytes)
	}
	if cfg.AI.Model != "gpt-4o" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 1000 {
		t.Fatalf("AI.MaxTokens = %d", cfg.AI.MaxTokens)
	}
	if cfg.History.DSN != "" {
		t.Fatalf("History.DSN = %q, want empty", cfg.History.DSN)
	}
	if cfg.REPL.HistoryFile != ".tablequery_history" {
		t.Fatalf("REPL.HistoryFile = %q", cfg.REPL.HistoryFile)
	}
}

func TestLoadProdProfileDefaults(t *testing.T) {
	cfg, err := Load("tablequery", mapLookup(map[string]string{"TABLEQUERY_PROFILE": "prod"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Profile != ProfileProd {
		t.Fatalf("Profile = %q, want %q", cfg.Profile, ProfileProd)
	}
	if cfg.Observability.LogLevel != slog.LevelInfo {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON should default to true in prod")
	}
	if !cfg.ObjectStore.UseSSL {
		t.Fatal("ObjectStore.UseSSL should default to true in prod")
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	lookup := mapLookup(map[string]string{
		"TABLEQUERY_PROFILE":                   "test",
		"TABLEQUERY_SERVICE_NAME":              "tablequery-custom",
		"TABLEQUERY_HTTP_ADDR":                 ":9999",
		"TABLEQUERY_HTTP_READ_TIMEOUT":         "2s",
		"TABLEQUERY_SOURCE_PATH":               " s3://sales/supermarket.csv ",
		"TABLEQUERY_SOURCE_LOADER":             "DuckDB",
		"TABLEQUERY_SOURCE_DELIMITER":          `\t`,
		"TABLEQUERY_SOURCE_MAX_BYTES":          "1048576",
		"TABLEQUERY_OBJECTSTORE_ENDPOINT":      "s3.example.com",
		"TABLEQUERY_OBJECTSTORE_USE_SSL":       "true",
		"TABLEQUERY_AI_BASE_URL":               "https://llm.example.com",
		"TABLEQUERY_AI_API_KEY":                "secret-key",
		"TABLEQUERY_AI_MODEL":                  "gpt-4.1",
		"TABLEQUERY_AI_TEMPERATURE":            "0.3",
		"TABLEQUERY_AI_MAX_TOKENS":             "512",
		"TABLEQUERY_AI_TIMEOUT":                "21s",
		"TABLEQUERY_HISTORY_DSN":               "postgres://example",
		"TABLEQUERY_HISTORY_MAX_OPEN_CONNS":    "7",
		"TABLEQUERY_HISTORY_CONN_MAX_LIFETIME": "1h",
		"TABLEQUERY_REPL_HISTORY_FILE":         "/tmp/tq_history",
		"TABLEQUERY_LOG_LEVEL":                 "error",
		"TABLEQUERY_LOG_JSON":                  "true",
	})
	cfg, err := Load("tablequery", lookup)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Service.Name != "tablequery-custom" {
		t.Fatalf("Service.Name = %q", cfg.Service.Name)
	}
	if cfg.HTTP.Address != ":9999" {
		t.Fatalf("HTTP.Address = %q", cfg.HTTP.Address)
	}
	if cfg.HTTP.ReadTimeout != 2*time.Second {
		t.Fatalf("HTTP.ReadTimeout = %s", cfg.HTTP.ReadTimeout)
	}
	if cfg.Source.Path != "s3://sales/supermarket.csv" {
		t.Fatalf("Source.Path = %q", cfg.Source.Path)
	}
	if cfg.Source.Loader != LoaderDuckDB {
		t.Fatalf("Source.Loader = %q", cfg.Source.Loader)
	}
	if cfg.Source.Delimiter != '\t' {
		t.Fatalf("Source.Delimiter = %q", cfg.Source.Delimiter)
	}
	if cfg.Source.MaxBytes != 1<<20 {
		t.Fatalf("Source.MaxBytes = %d", cfg.Source.MaxBytes)
	}
	if cfg.ObjectStore.Endpoint != "s3.example.com" || !cfg.ObjectStore.UseSSL {
		t.Fatalf("ObjectStore = %+v", cfg.ObjectStore)
	}
	if cfg.AI.BaseURL != "https://llm.example.com" {
		t.Fatalf("AI.BaseURL = %q", cfg.AI.BaseURL)
	}
	if cfg.AI.APIKey != "secret-key" {
		t.Fatalf("AI.APIKey = %q", cfg.AI.APIKey)
	}
	if cfg.AI.Model != "gpt-4.1" {
		t.Fatalf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Fatalf("AI.Temperature = %f", cfg.AI.Temperature)
	}
	if cfg.AI.MaxTokens != 512 {
		t.Fatalf("AI.MaxTokens = %d", cfg.AI.MaxTokens)
	}
	if cfg.AI.Timeout != 21*time.Second {
		t.Fatalf("AI.Timeout = %s", cfg.AI.Timeout)
	}
	if cfg.History.DSN != "postgres://example" {
		t.Fatalf("History.DSN = %q", cfg.History.DSN)
	}
	if cfg.History.MaxOpenConns != 7 {
		t.Fatalf("History.MaxOpenConns = %d", cfg.History.MaxOpenConns)
	}
	if cfg.History.ConnMaxLifetime != time.Hour {
		t.Fatalf("History.ConnMaxLifetime = %s", cfg.History.ConnMaxLifetime)
	}
	if cfg.REPL.HistoryFile != "/tmp/tq_history" {
		t.Fatalf("REPL.HistoryFile = %q", cfg.REPL.HistoryFile)
	}
	if cfg.Observability.LogLevel != slog.LevelError {
		t.Fatalf("LogLevel = %v", cfg.Observability.LogLevel)
	}
	if !cfg.Observability.LogJSON {
		t.Fatal("LogJSON = false, want true")
	}
}

func TestLoadErrorsOnInvalidValues(t *testing.T) {
	tests := []map[string]string{
		{"TABLEQUERY_PROFILE": "oops"},
		{"TABLEQUERY_HTTP_READ_TIMEOUT": "NaN"},
		{"TABLEQUERY_SOURCE_LOADER": "pandas"},
		{"TABLEQUERY_SOURCE_DELIMITER": ";;"},
		{"TABLEQUERY_SOURCE_MAX_BYTES": "-1"},
		{"TABLEQUERY_AI_TEMPERATURE": "bad"},
		{"TABLEQUERY_AI_MAX_TOKENS": "0"},
		{"TABLEQUERY_HISTORY_MAX_OPEN_CONNS": "oops"},
		{"TABLEQUERY_OBJECTSTORE_USE_SSL": "not-bool"},
		{"TABLEQUERY_LOG_LEVEL": "verbose"},
	}
	for _, env := range tests {
		_, err := Load("tablequery", mapLookup(env))
		if err == nil {
			t.Fatalf("Load() expected error for env %#v", env)
		}
	}
}

func TestRequireAssistantReportsMissingSettings(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		wantKey string
	}{
		{name: "missing source", env: map[string]string{KeyAIAPIKey: "k"}, wantKey: KeySourcePath},
		{name: "missing api key", env: map[string]string{KeySourcePath: "data.csv"}, wantKey: KeyAIAPIKey},
		{name: "blank api key", env: map[string]string{KeySourcePath: "data.csv", KeyAIAPIKey: "   "}, wantKey: KeyAIAPIKey},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load("tablequery", mapLookup(tc.env))
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			err = cfg.RequireAssistant()
			var cfgErr *ConfigError
			if !errors.As(err, &cfgErr) {
				t.Fatalf("RequireAssistant() error = %v, want *ConfigError", err)
			}
			if cfgErr.Key != tc.wantKey {
				t.Fatalf("ConfigError.Key = %q, want %q", cfgErr.Key, tc.wantKey)
			}
		})
	}

	cfg, err := Load("tablequery", mapLookup(map[string]string{KeySourcePath: "data.csv", KeyAIAPIKey: "k"}))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if err := cfg.RequireAssistant(); err != nil {
		t.Fatalf("RequireAssistant() error = %v", err)
	}
}

func TestRequireHistory(t *testing.T) {
	cfg, err := Load("tablequery-migrate", mapLookup(nil))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	var cfgErr *ConfigError
	if err := cfg.RequireHistory(); !errors.As(err, &cfgErr) {
		t.Fatalf("RequireHistory() error = %v, want *ConfigError", err)
	}
}

func mapLookup(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}
