//go:build integration

package s3

import (
	"context"
	"io"
	"os"
	"strings"
	"testing"
	"time"
)

func TestStoreReadsObjectFromMinIO(t *testing.T) {
	endpoint := envOr("TABLEQUERY_TEST_S3_ENDPOINT", "")
	object := envOr("TABLEQUERY_TEST_S3_OBJECT", "")
	if endpoint == "" || object == "" {
		t.Skip("TABLEQUERY_TEST_S3_ENDPOINT or TABLEQUERY_TEST_S3_OBJECT is not set")
	}

	cfg := Config{
		Endpoint:        endpoint,
		Region:          envOr("TABLEQUERY_TEST_S3_REGION", "us-east-1"),
		AccessKeyID:     envOr("TABLEQUERY_TEST_S3_ACCESS_KEY", "minio"),
		SecretAccessKey: envOr("TABLEQUERY_TEST_S3_SECRET_KEY", "miniostorage"),
	}
	store, err := New(cfg, envOr("TABLEQUERY_TEST_S3_BUCKET", "tablequery-it"))
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancel()

	stat, err := store.Stat(ctx, object)
	if err != nil {
		t.Fatalf("Stat() error = %v", err)
	}
	reader, err := store.Get(ctx, object)
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	defer func() { _ = reader.Close() }()
	payload, err := io.ReadAll(reader)
	if err != nil {
		t.Fatalf("io.ReadAll() error = %v", err)
	}
	if int64(len(payload)) != stat.Size {
		t.Fatalf("payload size = %d, want %d", len(payload), stat.Size)
	}
}

func envOr(key, fallback string) string {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return fallback
	}
	return value
}
