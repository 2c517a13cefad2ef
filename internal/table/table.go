package table

import (
	"fmt"
	"time"
)

// Type is the storage type label of a column.
type Type string

const (
	TypeInt64    Type = "int64"
	TypeFloat64  Type = "float64"
	TypeString   Type = "string"
	TypeDatetime Type = "datetime"
	TypeBool     Type = "bool"
)

// Kind groups column types for schema summaries. Bool columns have no kind.
type Kind string

const (
	KindNone        Kind = ""
	KindNumeric     Kind = "numeric"
	KindCategorical Kind = "categorical"
	KindDatetime    Kind = "datetime"
)

func (t Type) Kind() Kind {
	switch t {
	case TypeInt64, TypeFloat64:
		return KindNumeric
	case TypeString:
		return KindCategorical
	case TypeDatetime:
		return KindDatetime
	default:
		return KindNone
	}
}

func (t Type) Numeric() bool {
	return t == TypeInt64 || t == TypeFloat64
}

type Column struct {
	Name string
	Type Type
}

// Table is an immutable columnar dataset. Cells hold int64, float64, string,
// time.Time, bool or nil for a missing value.
type Table struct {
	source  string
	columns []Column
	data    [][]any
	rows    int
	index   map[string]int
}

// New copies columns and column-major data into a Table.
func New(source string, columns []Column, data [][]any) (*Table, error) {
	if len(columns) != len(data) {
		return nil, fmt.Errorf("table has %d columns but %d data vectors", len(columns), len(data))
	}
	t := &Table{
		source:  source,
		columns: make([]Column, len(columns)),
		data:    make([][]any, len(data)),
		index:   make(map[string]int, len(columns)),
	}
	copy(t.columns, columns)
	for i, column := range columns {
		if column.Name == "" {
			return nil, fmt.Errorf("column %d has no name", i)
		}
		if _, exists := t.index[column.Name]; exists {
			return nil, fmt.Errorf("duplicate column %q", column.Name)
		}
		t.index[column.Name] = i
		if i == 0 {
			t.rows = len(data[i])
		} else if len(data[i]) != t.rows {
			return nil, fmt.Errorf("column %q has %d values, want %d", column.Name, len(data[i]), t.rows)
		}
		for row, value := range data[i] {
			if !valueMatches(column.Type, value) {
				return nil, fmt.Errorf("column %q row %d: value %T does not match type %s", column.Name, row, value, column.Type)
			}
		}
		t.data[i] = append([]any(nil), data[i]...)
	}
	return t, nil
}

func valueMatches(typ Type, value any) bool {
	if value == nil {
		return true
	}
	switch typ {
	case TypeInt64:
		_, ok := value.(int64)
		return ok
	case TypeFloat64:
		_, ok := value.(float64)
		return ok
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeDatetime:
		_, ok := value.(time.Time)
		return ok
	case TypeBool:
		_, ok := value.(bool)
		return ok
	default:
		return false
	}
}

func (t *Table) Source() string {
	return t.source
}

func (t *Table) NumRows() int {
	return t.rows
}

func (t *Table) NumColumns() int {
	return len(t.columns)
}

func (t *Table) Columns() []Column {
	return append([]Column(nil), t.columns...)
}

func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.columns))
	for i, column := range t.columns {
		names[i] = column.Name
	}
	return names
}

// Lookup returns the position of the named column.
func (t *Table) Lookup(name string) (int, bool) {
	i, ok := t.index[name]
	return i, ok
}

func (t *Table) Column(i int) Column {
	return t.columns[i]
}

func (t *Table) Value(row, col int) any {
	return t.data[col][row]
}

// Row returns a copy of one row in column order.
func (t *Table) Row(i int) []any {
	row := make([]any, len(t.columns))
	for col := range t.columns {
		row[col] = t.data[col][i]
	}
	return row
}

// ColumnValues returns a copy of one column.
func (t *Table) ColumnValues(col int) []any {
	return append([]any(nil), t.data[col]...)
}
