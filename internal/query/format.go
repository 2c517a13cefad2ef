package query

import (
	"fmt"

	prettytable "github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/tablequery/tablequery/internal/table"
)

const (
	// TruncateAbove is the largest row or element count rendered in full.
	TruncateAbove = 10
	// PreviewRows is how many rows or elements a truncated rendering shows.
	PreviewRows = 5
)

// Format renders a value. Frames and series longer than TruncateAbove are cut
// to PreviewRows with a note carrying the true length.
func Format(value Value) string {
	switch typed := value.(type) {
	case *Frame:
		total := len(typed.Rows)
		if total > TruncateAbove {
			preview := &Frame{Columns: typed.Columns, Rows: typed.Rows[:PreviewRows]}
			return fmt.Sprintf("Result has %d rows. Showing first %d:\n%s\n... %d more rows not shown",
				total, PreviewRows, renderFrame(preview), total-PreviewRows)
		}
		return renderFrame(typed)
	case *Series:
		total := typed.Len()
		if total > TruncateAbove {
			preview := &Series{
				Name:      typed.Name,
				IndexName: typed.IndexName,
				Type:      typed.Type,
				Labels:    typed.Labels[:PreviewRows],
				Values:    typed.Values[:PreviewRows],
			}
			return fmt.Sprintf("Result has %d elements. Showing first %d:\n%s\n... %d more elements not shown",
				total, PreviewRows, renderSeries(preview), total-PreviewRows)
		}
		return renderSeries(typed)
	case Scalar:
		return table.FormatValue(typed.Value)
	case nil:
		return "None"
	default:
		return fmt.Sprint(typed)
	}
}

func newWriter() prettytable.Writer {
	writer := prettytable.NewWriter()
	style := prettytable.StyleLight
	style.Format.Header = text.FormatDefault
	writer.SetStyle(style)
	return writer
}

func renderFrame(frame *Frame) string {
	writer := newWriter()
	header := make(prettytable.Row, len(frame.Columns))
	for i, column := range frame.Columns {
		header[i] = column.Name
	}
	writer.AppendHeader(header)
	for _, row := range frame.Rows {
		cells := make(prettytable.Row, len(row))
		for i, value := range row {
			cells[i] = table.FormatValue(value)
		}
		writer.AppendRow(cells)
	}
	return writer.Render()
}

func renderSeries(series *Series) string {
	writer := newWriter()
	name := series.Name
	if name == "" {
		name = "value"
	}
	writer.AppendHeader(prettytable.Row{series.IndexName, name})
	for i, value := range series.Values {
		writer.AppendRow(prettytable.Row{table.FormatValue(series.Labels[i]), table.FormatValue(value)})
	}
	return writer.Render()
}
