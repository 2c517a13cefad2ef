package table

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/tablequery/tablequery/internal/storage"
)

// LoadError reports a source that could not be read or parsed.
type LoadError struct {
	Path string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load table %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Source is the raw content of a table source.
type Source struct {
	Location  storage.Location
	Data      []byte
	Delimiter rune
}

// Decoder turns raw source bytes into a Table.
type Decoder interface {
	Decode(ctx context.Context, src Source) (*Table, error)
}

// StoreFactory opens the object store serving a bucket.
type StoreFactory func(bucket string) (storage.ObjectStore, error)

type LoadOptions struct {
	Path      string
	Delimiter rune
	// MaxBytes rejects larger sources. Zero means no limit.
	MaxBytes int64
	Decoder  Decoder
	Stores   StoreFactory
	Logger   *slog.Logger
}

// NativeDecoder parses CSV with encoding/csv and Parquet with parquet-go.
type NativeDecoder struct{}

func (NativeDecoder) Decode(_ context.Context, src Source) (*Table, error) {
	switch src.Location.Format {
	case storage.FormatParquet:
		return ReadParquet(bytes.NewReader(src.Data), int64(len(src.Data)), src.Location.Raw)
	default:
		return ReadCSV(bytes.NewReader(src.Data), src.Delimiter, src.Location.Raw)
	}
}

// Load fetches the configured source and decodes it. Every failure is a
// *LoadError.
func Load(ctx context.Context, opts LoadOptions) (*Table, error) {
	location, err := storage.ParseLocation(opts.Path)
	if err != nil {
		return nil, &LoadError{Path: opts.Path, Err: err}
	}
	data, err := fetch(ctx, location, opts.Stores, opts.MaxBytes)
	if err != nil {
		return nil, &LoadError{Path: location.Raw, Err: err}
	}

	decoder := opts.Decoder
	if decoder == nil {
		decoder = NativeDecoder{}
	}
	delimiter := opts.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	t, err := decoder.Decode(ctx, Source{Location: location, Data: data, Delimiter: delimiter})
	if err != nil {
		return nil, &LoadError{Path: location.Raw, Err: err}
	}

	if opts.Logger != nil {
		opts.Logger.Info("table loaded",
			slog.String("source", location.Raw),
			slog.String("format", string(location.Format)),
			slog.Int("rows", t.NumRows()),
			slog.Int("columns", t.NumColumns()),
			slog.Any("column_names", t.ColumnNames()),
		)
	}
	return t, nil
}

func fetch(ctx context.Context, location storage.Location, stores StoreFactory, maxBytes int64) ([]byte, error) {
	switch location.Scheme {
	case storage.SchemeS3:
		if stores == nil {
			return nil, fmt.Errorf("no object store configured for %s", location.Raw)
		}
		store, err := stores(location.Bucket)
		if err != nil {
			return nil, fmt.Errorf("open object store: %w", err)
		}
		info, err := store.Stat(ctx, location.Key)
		if err != nil {
			return nil, err
		}
		if err := checkSize(info.Size, maxBytes); err != nil {
			return nil, err
		}
		reader, err := store.Get(ctx, location.Key)
		if err != nil {
			return nil, err
		}
		defer func() { _ = reader.Close() }()
		data, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read object: %w", err)
		}
		return data, nil
	default:
		info, err := os.Stat(location.Path)
		if err != nil {
			return nil, err
		}
		if err := checkSize(info.Size(), maxBytes); err != nil {
			return nil, err
		}
		return os.ReadFile(location.Path)
	}
}

func checkSize(size, maxBytes int64) error {
	if maxBytes > 0 && size > maxBytes {
		return fmt.Errorf("source is %d bytes, limit is %d", size, maxBytes)
	}
	return nil
}
