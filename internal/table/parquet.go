package table

import (
	"errors"
	"fmt"
	"io"
	"math"
	"time"

	"github.com/parquet-go/parquet-go"
)

const parquetBatchSize = 256

// ReadParquet reads a flat Parquet file. Nested columns are rejected.
func ReadParquet(r io.ReaderAt, size int64, source string) (*Table, error) {
	file, err := parquet.OpenFile(r, size)
	if err != nil {
		return nil, fmt.Errorf("open parquet: %w", err)
	}

	schema := file.Schema()
	fields := make(map[string]parquet.Field, len(schema.Fields()))
	for _, field := range schema.Fields() {
		fields[field.Name()] = field
	}

	paths := schema.Columns()
	columns := make([]Column, len(paths))
	decoders := make([]func(parquet.Value) any, len(paths))
	for i, path := range paths {
		if len(path) != 1 {
			return nil, fmt.Errorf("nested column %v is not supported", path)
		}
		field, ok := fields[path[0]]
		if !ok || !field.Leaf() || field.Repeated() {
			return nil, fmt.Errorf("column %q is not a flat leaf column", path[0])
		}
		typ, decode := parquetColumnType(field.Type())
		columns[i] = Column{Name: path[0], Type: typ}
		decoders[i] = decode
	}

	data := make([][]any, len(columns))
	for i := range data {
		data[i] = make([]any, 0, file.NumRows())
	}

	reader := parquet.NewReader(file)
	defer func() { _ = reader.Close() }()

	buf := make([]parquet.Row, parquetBatchSize)
	for {
		n, err := reader.ReadRows(buf)
		for _, row := range buf[:n] {
			cells := make([]any, len(columns))
			for _, value := range row {
				col := value.Column()
				if col < 0 || col >= len(columns) || value.IsNull() {
					continue
				}
				cells[col] = decoders[col](value)
			}
			for col, cell := range cells {
				data[col] = append(data[col], cell)
			}
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read parquet rows: %w", err)
		}
		if n == 0 {
			break
		}
	}
	return New(source, columns, data)
}

func parquetColumnType(typ parquet.Type) (Type, func(parquet.Value) any) {
	logical := typ.LogicalType()
	switch typ.Kind() {
	case parquet.Boolean:
		return TypeBool, func(v parquet.Value) any { return v.Boolean() }
	case parquet.Int32:
		if logical != nil && logical.Date != nil {
			return TypeDatetime, func(v parquet.Value) any {
				return time.Unix(int64(v.Int32())*86400, 0).UTC()
			}
		}
		return TypeInt64, func(v parquet.Value) any { return int64(v.Int32()) }
	case parquet.Int64:
		if logical != nil && logical.Timestamp != nil {
			unit := logical.Timestamp.Unit
			return TypeDatetime, func(v parquet.Value) any {
				raw := v.Int64()
				switch {
				case unit.Millis != nil:
					return time.UnixMilli(raw).UTC()
				case unit.Micros != nil:
					return time.UnixMicro(raw).UTC()
				default:
					return time.Unix(0, raw).UTC()
				}
			}
		}
		return TypeInt64, func(v parquet.Value) any { return v.Int64() }
	case parquet.Float:
		return TypeFloat64, func(v parquet.Value) any { return floatOrMissing(float64(v.Float())) }
	case parquet.Double:
		return TypeFloat64, func(v parquet.Value) any { return floatOrMissing(v.Double()) }
	default:
		return TypeString, func(v parquet.Value) any { return string(v.ByteArray()) }
	}
}

// floatOrMissing maps NaN to nil so it is treated like a CSV "NaN" cell.
func floatOrMissing(f float64) any {
	if math.IsNaN(f) {
		return nil
	}
	return f
}
