package schema

import (
	"encoding/json"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/tablequery/tablequery/internal/table"
)

func TestSummarizeGroupsColumnsByKind(t *testing.T) {
	tbl := salesTable(t, 5)
	summary := Summarize(tbl)

	if !reflect.DeepEqual(summary.Columns, []string{"Branch", "Total", "Date", "Member"}) {
		t.Fatalf("Columns = %q", summary.Columns)
	}
	if summary.Types["Total"] != "float64" || summary.Types["Member"] != "bool" {
		t.Fatalf("Types = %v", summary.Types)
	}
	if !reflect.DeepEqual(summary.Numeric, []string{"Total"}) {
		t.Fatalf("Numeric = %q", summary.Numeric)
	}
	if !reflect.DeepEqual(summary.Categorical, []string{"Branch"}) {
		t.Fatalf("Categorical = %q", summary.Categorical)
	}
	if !reflect.DeepEqual(summary.Datetime, []string{"Date"}) {
		t.Fatalf("Datetime = %q", summary.Datetime)
	}
	for _, list := range [][]string{summary.Numeric, summary.Categorical, summary.Datetime} {
		for _, name := range list {
			if name == "Member" {
				t.Fatal("bool column must not appear in any kind list")
			}
		}
	}
}

func TestSummarizeSampleRowsBounded(t *testing.T) {
	for _, rows := range []int{0, 1, 3, 10} {
		summary := Summarize(salesTable(t, rows))
		want := min(rows, MaxSampleRows)
		if len(summary.SampleRows) != want {
			t.Fatalf("rows=%d: len(SampleRows) = %d, want %d", rows, len(summary.SampleRows), want)
		}
		if summary.Rows != rows {
			t.Fatalf("Rows = %d, want %d", summary.Rows, rows)
		}
	}
}

func TestSummarizeIsPure(t *testing.T) {
	tbl := salesTable(t, 4)
	first := Summarize(tbl)
	second := Summarize(tbl)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("Summarize() not deterministic:\n%+v\n%+v", first, second)
	}
	if first.Describe() != second.Describe() {
		t.Fatal("Describe() not deterministic")
	}
}

func TestSampleRowJSONKeepsColumnOrder(t *testing.T) {
	summary := Summarize(salesTable(t, 1))
	payload, err := json.Marshal(summary.SampleRows[0])
	if err != nil {
		t.Fatalf("json.Marshal() error = %v", err)
	}
	want := `{"Branch":"A","Total":0.5,"Date":"2019-01-01 00:00:00","Member":true}`
	if string(payload) != want {
		t.Fatalf("sample row JSON = %s, want %s", payload, want)
	}
}

func TestDescribe(t *testing.T) {
	text := Summarize(salesTable(t, 2)).Describe()
	for _, want := range []string{
		"Rows: 2",
		"Columns: Branch, Total, Date, Member",
		"- Total: float64",
		"1. Branch=A, Total=0.5, Date=2019-01-01 00:00:00, Member=True",
		"Numeric columns: Total",
		"Datetime columns: Date",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("Describe() missing %q:\n%s", want, text)
		}
	}
	empty := Summarize(salesTable(t, 0)).Describe()
	if !strings.Contains(empty, "(table is empty)") {
		t.Fatalf("Describe() for empty table:\n%s", empty)
	}
}

func salesTable(t *testing.T, rows int) *table.Table {
	t.Helper()
	branches := []string{"A", "B", "C"}
	data := make([][]any, 4)
	for i := 0; i < rows; i++ {
		data[0] = append(data[0], branches[i%len(branches)])
		data[1] = append(data[1], float64(i)+0.5)
		data[2] = append(data[2], time.Date(2019, 1, 1+i, 0, 0, 0, 0, time.UTC))
		data[3] = append(data[3], i%2 == 0)
	}
	for i := range data {
		if data[i] == nil {
			data[i] = []any{}
		}
	}
	tbl, err := table.New("sales.csv", []table.Column{
		{Name: "Branch", Type: table.TypeString},
		{Name: "Total", Type: table.TypeFloat64},
		{Name: "Date", Type: table.TypeDatetime},
		{Name: "Member", Type: table.TypeBool},
	}, data)
	if err != nil {
		t.Fatalf("table.New() error = %v", err)
	}
	return tbl
}
