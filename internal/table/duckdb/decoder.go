package duckdb

import (
	"context"
	"database/sql"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/marcboeker/go-duckdb/v2"

	"github.com/tablequery/tablequery/internal/storage"
	"github.com/tablequery/tablequery/internal/table"
)

// Decoder reads sources through DuckDB's read_csv_auto and read_parquet.
type Decoder struct{}

func NewDecoder() *Decoder {
	return &Decoder{}
}

func (d *Decoder) Decode(ctx context.Context, src table.Source) (*table.Table, error) {
	workDir, err := os.MkdirTemp("", "tablequery-load-")
	if err != nil {
		return nil, fmt.Errorf("create load temp dir: %w", err)
	}
	defer func() { _ = os.RemoveAll(workDir) }()

	extension := ".csv"
	if src.Location.Format == storage.FormatParquet {
		extension = ".parquet"
	}
	localPath := filepath.Join(workDir, "source"+extension)
	if err := os.WriteFile(localPath, src.Data, 0o600); err != nil {
		return nil, fmt.Errorf("write local source file %q: %w", localPath, err)
	}

	db, err := sql.Open("duckdb", "")
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}
	defer func() { _ = db.Close() }()

	rows, err := db.QueryContext(ctx, sourceQuery(localPath, src))
	if err != nil {
		return nil, fmt.Errorf("read source: %w", err)
	}
	defer func() { _ = rows.Close() }()

	columnTypes, err := rows.ColumnTypes()
	if err != nil {
		return nil, fmt.Errorf("query columns: %w", err)
	}
	columns := make([]table.Column, len(columnTypes))
	for i, columnType := range columnTypes {
		columns[i] = table.Column{Name: columnType.Name(), Type: mapDatabaseType(columnType.DatabaseTypeName())}
	}

	data := make([][]any, len(columns))
	for rows.Next() {
		values := make([]any, len(columns))
		scanTargets := make([]any, len(columns))
		for i := range values {
			scanTargets[i] = &values[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		for i, value := range values {
			data[i] = append(data[i], normalizeValue(columns[i].Type, value))
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	for i := range data {
		if data[i] == nil {
			data[i] = []any{}
		}
	}
	return table.New(src.Location.Raw, columns, data)
}

func sourceQuery(localPath string, src table.Source) string {
	if src.Location.Format == storage.FormatParquet {
		return fmt.Sprintf("SELECT * FROM read_parquet(%s)", quoteString(localPath))
	}
	delimiter := src.Delimiter
	if delimiter == 0 {
		delimiter = ','
	}
	return fmt.Sprintf("SELECT * FROM read_csv_auto(%s, header = true, delim = %s)", quoteString(localPath), quoteString(string(delimiter)))
}

func mapDatabaseType(name string) table.Type {
	name = strings.ToUpper(name)
	switch {
	case name == "BOOLEAN":
		return table.TypeBool
	case name == "TINYINT", name == "SMALLINT", name == "INTEGER", name == "BIGINT",
		name == "UTINYINT", name == "USMALLINT", name == "UINTEGER", name == "UBIGINT":
		return table.TypeInt64
	case name == "FLOAT", name == "DOUBLE", name == "HUGEINT", strings.HasPrefix(name, "DECIMAL"):
		return table.TypeFloat64
	case name == "DATE", strings.HasPrefix(name, "TIMESTAMP"):
		return table.TypeDatetime
	default:
		return table.TypeString
	}
}

func normalizeValue(typ table.Type, value any) any {
	if value == nil {
		return nil
	}
	switch typ {
	case table.TypeInt64:
		switch typed := value.(type) {
		case int8:
			return int64(typed)
		case int16:
			return int64(typed)
		case int32:
			return int64(typed)
		case int64:
			return typed
		case uint8:
			return int64(typed)
		case uint16:
			return int64(typed)
		case uint32:
			return int64(typed)
		case uint64:
			return int64(typed)
		}
	case table.TypeFloat64:
		switch typed := value.(type) {
		case float32:
			return float64(typed)
		case float64:
			return typed
		case *big.Int:
			f, _ := new(big.Float).SetInt(typed).Float64()
			return f
		case duckdb.Decimal:
			return typed.Float64()
		}
	case table.TypeDatetime:
		if ts, ok := value.(time.Time); ok {
			return ts.UTC()
		}
	case table.TypeBool:
		if b, ok := value.(bool); ok {
			return b
		}
	}
	switch typed := value.(type) {
	case []byte:
		return string(typed)
	case string:
		return typed
	default:
		return fmt.Sprint(typed)
	}
}

func quoteString(value string) string {
	return `'` + strings.ReplaceAll(value, `'`, `''`) + `'`
}
