package table

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
)

// ReadCSV parses a delimited file whose first record is the header.
func ReadCSV(r io.Reader, delimiter rune, source string) (*Table, error) {
	reader := csv.NewReader(r)
	if delimiter != 0 {
		reader.Comma = delimiter
	}
	reader.ReuseRecord = false

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	records := make([][]string, 0, 64)
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read record: %w", err)
		}
		records = append(records, record)
	}
	return FromRecords(source, header, records)
}
