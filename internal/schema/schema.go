// Package schema derives the description of a table that is shown to the
// model and to users.
package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/tablequery/tablequery/internal/table"
)

// MaxSampleRows bounds the sample rows included in a Summary.
const MaxSampleRows = 3

type Record struct {
	Column string
	Value  any
}

// SampleRow keeps column order when encoded as a JSON object.
type SampleRow []Record

func (r SampleRow) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, record := range r {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(record.Column)
		if err != nil {
			return nil, err
		}
		value, err := json.Marshal(jsonValue(record.Value))
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func jsonValue(value any) any {
	switch typed := value.(type) {
	case nil, string, int64, bool:
		return typed
	case float64:
		if math.IsNaN(typed) || math.IsInf(typed, 0) {
			return nil
		}
		return typed
	default:
		return table.FormatValue(typed)
	}
}

type Summary struct {
	Source      string            `json:"source"`
	Rows        int               `json:"rows"`
	Columns     []string          `json:"columns"`
	Types       map[string]string `json:"types"`
	SampleRows  []SampleRow       `json:"sample_rows"`
	Numeric     []string          `json:"numeric_columns"`
	Categorical []string          `json:"categorical_columns"`
	Datetime    []string          `json:"datetime_columns"`
}

// Summarize projects t into a Summary. It does not retain t.
func Summarize(t *table.Table) Summary {
	summary := Summary{
		Source:      t.Source(),
		Rows:        t.NumRows(),
		Columns:     t.ColumnNames(),
		Types:       make(map[string]string, t.NumColumns()),
		SampleRows:  []SampleRow{},
		Numeric:     []string{},
		Categorical: []string{},
		Datetime:    []string{},
	}
	for _, column := range t.Columns() {
		summary.Types[column.Name] = string(column.Type)
		switch column.Type.Kind() {
		case table.KindNumeric:
			summary.Numeric = append(summary.Numeric, column.Name)
		case table.KindCategorical:
			summary.Categorical = append(summary.Categorical, column.Name)
		case table.KindDatetime:
			summary.Datetime = append(summary.Datetime, column.Name)
		}
	}

	samples := min(MaxSampleRows, t.NumRows())
	for i := 0; i < samples; i++ {
		values := t.Row(i)
		row := make(SampleRow, len(values))
		for col, value := range values {
			row[col] = Record{Column: summary.Columns[col], Value: value}
		}
		summary.SampleRows = append(summary.SampleRows, row)
	}
	return summary
}

// Describe renders the summary as plain text.
func (s Summary) Describe() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Rows: %d\n", s.Rows)
	fmt.Fprintf(&b, "Columns: %s\n", strings.Join(s.Columns, ", "))
	b.WriteString("Column types:\n")
	for _, name := range s.Columns {
		fmt.Fprintf(&b, "- %s: %s\n", name, s.Types[name])
	}
	b.WriteString("Sample rows:\n")
	if len(s.SampleRows) == 0 {
		b.WriteString("(table is empty)\n")
	}
	for i, row := range s.SampleRows {
		fields := make([]string, len(row))
		for j, record := range row {
			fields[j] = fmt.Sprintf("%s=%s", record.Column, table.FormatValue(record.Value))
		}
		fmt.Fprintf(&b, "%d. %s\n", i+1, strings.Join(fields, ", "))
	}
	fmt.Fprintf(&b, "Numeric columns: %s\n", joinOrNone(s.Numeric))
	fmt.Fprintf(&b, "Categorical columns: %s\n", joinOrNone(s.Categorical))
	fmt.Fprintf(&b, "Datetime columns: %s\n", joinOrNone(s.Datetime))
	return b.String()
}

func joinOrNone(names []string) string {
	if len(names) == 0 {
		return "(none)"
	}
	return strings.Join(names, ", ")
}
