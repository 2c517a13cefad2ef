package table

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"io"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/parquet-go/parquet-go"

	"github.com/tablequery/tablequery/internal/storage"
)

const salesCSV = `Invoice ID,Branch,City,Payment,Total,Rating,Date,Member
750-67-8428,A,Yangon,Ewallet,548.9715,9.1,1/5/2019,true
226-31-3081,C,Naypyitaw,Cash,80.22,9.6,3/8/2019,false
631-41-3108,A,Yangon,Credit card,340.5255,,3/3/2019,true
123-19-1176,A,Yangon,Ewallet,489.048,8.4,1/27/2019,true
373-73-7910,A,Yangon,Ewallet,634.3785,5.3,2/8/2019,false
`

func TestLoadCSVMatchesReferenceParse(t *testing.T) {
	path := writeTempFile(t, "sales.csv", salesCSV)
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	tbl, err := Load(context.Background(), LoadOptions{Path: path, Logger: logger})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	reference, err := csv.NewReader(strings.NewReader(salesCSV)).ReadAll()
	if err != nil {
		t.Fatalf("reference parse error = %v", err)
	}
	if tbl.NumRows() != len(reference)-1 {
		t.Fatalf("NumRows() = %d, want %d", tbl.NumRows(), len(reference)-1)
	}
	if tbl.NumColumns() != len(reference[0]) {
		t.Fatalf("NumColumns() = %d, want %d", tbl.NumColumns(), len(reference[0]))
	}

	wantTypes := map[string]Type{
		"Invoice ID": TypeString,
		"Branch":     TypeString,
		"Total":      TypeFloat64,
		"Rating":     TypeFloat64,
		"Date":       TypeDatetime,
		"Member":     TypeBool,
	}
	for name, want := range wantTypes {
		col, ok := tbl.Lookup(name)
		if !ok {
			t.Fatalf("column %q missing", name)
		}
		if got := tbl.Column(col).Type; got != want {
			t.Fatalf("column %q type = %q, want %q", name, got, want)
		}
	}
	rating, _ := tbl.Lookup("Rating")
	if tbl.Value(2, rating) != nil {
		t.Fatalf("missing rating = %#v, want nil", tbl.Value(2, rating))
	}
	if !strings.Contains(logs.String(), "rows=5") || !strings.Contains(logs.String(), "columns=8") {
		t.Fatalf("log output = %q", logs.String())
	}
}

func TestLoadCSVWithCustomDelimiter(t *testing.T) {
	path := writeTempFile(t, "sales.tsv", "Branch\tTotal\nA\t1\nB\t2\n")
	tbl, err := Load(context.Background(), LoadOptions{Path: path, Delimiter: '\t'})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tbl.NumColumns() != 2 || tbl.NumRows() != 2 {
		t.Fatalf("shape = %dx%d", tbl.NumRows(), tbl.NumColumns())
	}
}

func TestLoadReturnsLoadError(t *testing.T) {
	tests := []struct {
		name string
		path string
	}{
		{name: "unset path", path: ""},
		{name: "missing file", path: filepath.Join(t.TempDir(), "missing.csv")},
		{name: "empty file", path: writeTempFile(t, "empty.csv", "")},
		{name: "ragged rows", path: writeTempFile(t, "ragged.csv", "a,b\n1,2\n3\n")},
		{name: "bad parquet", path: writeTempFile(t, "bad.parquet", "not parquet")},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load(context.Background(), LoadOptions{Path: tc.path})
			var loadErr *LoadError
			if !errors.As(err, &loadErr) {
				t.Fatalf("Load() error = %v, want *LoadError", err)
			}
		})
	}
}

func TestLoadHeaderOnlyCSV(t *testing.T) {
	path := writeTempFile(t, "header.csv", "Branch,Total\n")
	tbl, err := Load(context.Background(), LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tbl.NumRows() != 0 || tbl.NumColumns() != 2 {
		t.Fatalf("shape = %dx%d", tbl.NumRows(), tbl.NumColumns())
	}
}

func TestLoadFromObjectStore(t *testing.T) {
	store := &memoryStore{objects: map[string][]byte{"exports/sales.csv": []byte(salesCSV)}}
	var openedBucket string
	tbl, err := Load(context.Background(), LoadOptions{
		Path: "s3://sales-data/exports/sales.csv",
		Stores: func(bucket string) (storage.ObjectStore, error) {
			openedBucket = bucket
			return store, nil
		},
	})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if openedBucket != "sales-data" {
		t.Fatalf("bucket = %q", openedBucket)
	}
	if tbl.NumRows() != 5 {
		t.Fatalf("NumRows() = %d", tbl.NumRows())
	}
	if tbl.Source() != "s3://sales-data/exports/sales.csv" {
		t.Fatalf("Source() = %q", tbl.Source())
	}

	_, err = Load(context.Background(), LoadOptions{Path: "s3://sales-data/exports/sales.csv"})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() without store error = %v, want *LoadError", err)
	}
	_, err = Load(context.Background(), LoadOptions{
		Path:   "s3://sales-data/missing.csv",
		Stores: func(string) (storage.ObjectStore, error) { return store, nil },
	})
	if !errors.Is(err, storage.ErrObjectNotFound) {
		t.Fatalf("Load() missing object error = %v, want ErrObjectNotFound", err)
	}
}

type saleRow struct {
	Branch string   `parquet:"branch"`
	Units  int64    `parquet:"units"`
	Total  float64  `parquet:"total"`
	Member bool     `parquet:"member"`
	Rating *float64 `parquet:"rating,optional"`
}

func TestLoadParquet(t *testing.T) {
	rating := 9.1
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[saleRow](&buf)
	if _, err := writer.Write([]saleRow{
		{Branch: "A", Units: 7, Total: 548.97, Member: true, Rating: &rating},
		{Branch: "C", Units: 2, Total: 80.22, Member: false},
	}); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	path := writeTempFile(t, "sales.parquet", buf.String())

	tbl, err := Load(context.Background(), LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if tbl.NumRows() != 2 || tbl.NumColumns() != 5 {
		t.Fatalf("shape = %dx%d", tbl.NumRows(), tbl.NumColumns())
	}
	wantTypes := map[string]Type{
		"branch": TypeString,
		"units":  TypeInt64,
		"total":  TypeFloat64,
		"member": TypeBool,
		"rating": TypeFloat64,
	}
	for name, want := range wantTypes {
		col, ok := tbl.Lookup(name)
		if !ok {
			t.Fatalf("column %q missing", name)
		}
		if got := tbl.Column(col).Type; got != want {
			t.Fatalf("column %q type = %q, want %q", name, got, want)
		}
	}
	branch, _ := tbl.Lookup("branch")
	units, _ := tbl.Lookup("units")
	ratingCol, _ := tbl.Lookup("rating")
	if tbl.Value(1, branch) != "C" || tbl.Value(0, units) != int64(7) {
		t.Fatalf("row values = %v / %v", tbl.Row(0), tbl.Row(1))
	}
	if tbl.Value(0, ratingCol) != 9.1 || tbl.Value(1, ratingCol) != nil {
		t.Fatalf("rating values = %#v / %#v", tbl.Value(0, ratingCol), tbl.Value(1, ratingCol))
	}
}

type readingRow struct {
	Sensor string  `parquet:"sensor"`
	Single float32 `parquet:"single"`
	Double float64 `parquet:"double"`
}

func TestLoadParquetTreatsNaNAsMissing(t *testing.T) {
	var buf bytes.Buffer
	writer := parquet.NewGenericWriter[readingRow](&buf)
	if _, err := writer.Write([]readingRow{
		{Sensor: "a", Single: float32(math.NaN()), Double: math.NaN()},
		{Sensor: "b", Single: 1.5, Double: 2.25},
	}); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("close parquet writer: %v", err)
	}
	path := writeTempFile(t, "readings.parquet", buf.String())

	tbl, err := Load(context.Background(), LoadOptions{Path: path})
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	single, _ := tbl.Lookup("single")
	double, _ := tbl.Lookup("double")
	if tbl.Value(0, single) != nil || tbl.Value(0, double) != nil {
		t.Fatalf("NaN row = %#v", tbl.Row(0))
	}
	if tbl.Value(1, single) != 1.5 || tbl.Value(1, double) != 2.25 {
		t.Fatalf("finite row = %#v", tbl.Row(1))
	}
}

func writeTempFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

type memoryStore struct {
	objects map[string][]byte
}

func (m *memoryStore) Get(_ context.Context, key string) (io.ReadCloser, error) {
	payload, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(payload)), nil
}

func (m *memoryStore) Stat(_ context.Context, key string) (storage.ObjectInfo, error) {
	payload, ok := m.objects[key]
	if !ok {
		return storage.ObjectInfo{}, storage.ErrObjectNotFound
	}
	return storage.ObjectInfo{Key: key, Size: int64(len(payload))}, nil
}

func TestLoadRejectsOversizedSource(t *testing.T) {
	path := writeTempFile(t, "sales.csv", salesCSV)
	_, err := Load(context.Background(), LoadOptions{Path: path, MaxBytes: 10})
	var loadErr *LoadError
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() error = %v, want *LoadError", err)
	}

	store := &memoryStore{objects: map[string][]byte{"sales.csv": []byte(salesCSV)}}
	_, err = Load(context.Background(), LoadOptions{
		Path:     "s3://bucket/sales.csv",
		MaxBytes: 10,
		Stores:   func(string) (storage.ObjectStore, error) { return store, nil },
	})
	if !errors.As(err, &loadErr) {
		t.Fatalf("Load() object error = %v, want *LoadError", err)
	}

	if _, err := Load(context.Background(), LoadOptions{Path: path, MaxBytes: int64(len(salesCSV))}); err != nil {
		t.Fatalf("Load() at limit error = %v", err)
	}
}
