package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

var missingTokens = map[string]struct{}{
	"":     {},
	"na":   {},
	"n/a":  {},
	"#n/a": {},
	"nan":  {},
	"null": {},
	"none": {},
}

// DatetimeLayouts are tried in order when inferring datetime columns.
var DatetimeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	time.RFC3339,
	"1/2/2006",
	"01/02/2006",
	"1/2/2006 15:04",
	"1/2/2006 15:04:05",
}

func IsMissing(raw string) bool {
	_, ok := missingTokens[strings.ToLower(strings.TrimSpace(raw))]
	return ok
}

// ParseDatetime parses raw with the first matching layout.
func ParseDatetime(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range DatetimeLayouts {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts, true
		}
	}
	return time.Time{}, false
}

// InferType picks the narrowest type that every non-missing cell parses as.
func InferType(cells []string) Type {
	isInt, isFloat, isBool, isDatetime := true, true, true, true
	seen := 0
	for _, raw := range cells {
		if IsMissing(raw) {
			continue
		}
		seen++
		trimmed := strings.TrimSpace(raw)
		if isInt {
			if _, err := strconv.ParseInt(trimmed, 10, 64); err != nil {
				isInt = false
			}
		}
		if isFloat && !isInt {
			if _, err := strconv.ParseFloat(trimmed, 64); err != nil {
				isFloat = false
			}
		}
		if isBool {
			if !strings.EqualFold(trimmed, "true") && !strings.EqualFold(trimmed, "false") {
				isBool = false
			}
		}
		if isDatetime {
			if _, ok := ParseDatetime(trimmed); !ok {
				isDatetime = false
			}
		}
		if !isInt && !isFloat && !isBool && !isDatetime {
			return TypeString
		}
	}
	switch {
	case seen == 0:
		return TypeString
	case isInt:
		return TypeInt64
	case isFloat:
		return TypeFloat64
	case isBool:
		return TypeBool
	case isDatetime:
		return TypeDatetime
	default:
		return TypeString
	}
}

// ParseCell converts raw into a value of typ. Missing cells become nil.
func ParseCell(typ Type, raw string) (any, error) {
	if IsMissing(raw) {
		return nil, nil
	}
	trimmed := strings.TrimSpace(raw)
	switch typ {
	case TypeInt64:
		return strconv.ParseInt(trimmed, 10, 64)
	case TypeFloat64:
		return strconv.ParseFloat(trimmed, 64)
	case TypeBool:
		return strings.EqualFold(trimmed, "true"), nil
	case TypeDatetime:
		ts, ok := ParseDatetime(trimmed)
		if !ok {
			return nil, fmt.Errorf("parse datetime %q", raw)
		}
		return ts, nil
	case TypeString:
		return raw, nil
	default:
		return nil, fmt.Errorf("unsupported type %q", typ)
	}
}

// FromRecords builds a Table from a header and string records, inferring one
// type per column.
func FromRecords(source string, header []string, records [][]string) (*Table, error) {
	names := normalizeHeader(header)
	columns := make([]Column, len(names))
	data := make([][]any, len(names))
	cells := make([]string, len(records))
	for col, name := range names {
		for row, record := range records {
			if col >= len(record) {
				return nil, fmt.Errorf("row %d has %d fields, want %d", row+1, len(record), len(names))
			}
			cells[row] = record[col]
		}
		typ := InferType(cells)
		values := make([]any, len(records))
		for row, raw := range cells {
			value, err := ParseCell(typ, raw)
			if err != nil {
				return nil, fmt.Errorf("column %q row %d: %w", name, row+1, err)
			}
			values[row] = value
		}
		columns[col] = Column{Name: name, Type: typ}
		data[col] = values
	}
	return New(source, columns, data)
}

func normalizeHeader(header []string) []string {
	names := make([]string, len(header))
	used := make(map[string]struct{}, len(header))
	for _, raw := range header {
		used[strings.TrimSpace(raw)] = struct{}{}
	}
	taken := make(map[string]struct{}, len(header))
	suffix := make(map[string]int, len(header))
	for i, raw := range header {
		name := strings.TrimSpace(raw)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = fmt.Sprintf("Unnamed: %d", i)
		}
		if _, dup := taken[name]; dup {
			base := name
			for {
				suffix[base]++
				name = fmt.Sprintf("%s.%d", base, suffix[base])
				_, inHeader := used[name]
				_, inUse := taken[name]
				if !inHeader && !inUse {
					break
				}
			}
		}
		taken[name] = struct{}{}
		names[i] = name
	}
	return names
}
