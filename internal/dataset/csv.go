// Package dataset parses the comma-delimited documents produced by the roster optimizer.
//
// Every document follows the same grammar: a header row whose first cell is a
// label that is discarded, followed by data rows whose first cell is a key.
// Parsing never fails on malformed rows; short rows are padded, long rows are
// truncated, and unreadable lines are skipped with a warning.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// Row represents a single CSV row with column name to value mapping.
type Row map[string]string

// Table is the header-keyed form of a document.
type Table struct {
	// Label is the discarded first header cell ("Date", "Doctor_Name", ...).
	Label   string
	Columns []string
	Rows    []TableRow
	// Warnings lists lines that were skipped or repaired.
	Warnings []string
}

// TableRow is one data row: its key cell and exactly len(Columns) value cells.
type TableRow struct {
	Key   string
	Cells []string
}

// Record returns the row as a map of column to value.
func (t *Table) Record(i int) Row {
	row := make(Row, len(t.Columns))
	for j, c := range t.Columns {
		row[c] = t.Rows[i].Cells[j]
	}
	return row
}

// ParseTable reads a header-plus-rows document. An empty document yields an
// empty table. Only I/O failures of the underlying reader are returned.
func ParseTable(r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	t := &Table{}
	line := 0
	headerSeen := false
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: %v", pe.Line, pe.Err))
				continue
			}
			return nil, fmt.Errorf("csv: read: %w", err)
		}
		if isBlankRecord(record) {
			continue
		}
		if !headerSeen {
			headerSeen = true
			t.Label = strings.TrimSpace(record[0])
			for _, h := range record[1:] {
				t.Columns = append(t.Columns, strings.TrimSpace(h))
			}
			continue
		}

		key := strings.TrimSpace(record[0])
		if key == "" {
			t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: row has no key, skipped", line))
			continue
		}
		cells := make([]string, len(t.Columns))
		values := record[1:]
		if len(values) > len(cells) {
			t.Warnings = append(t.Warnings, fmt.Sprintf("line %d: %d extra cells ignored", line, len(values)-len(cells)))
			values = values[:len(cells)]
		}
		for j, v := range values {
			cells[j] = strings.TrimSpace(v)
		}
		t.Rows = append(t.Rows, TableRow{Key: key, Cells: cells})
	}
	return t, nil
}

// ParseTableString is ParseTable over an in-memory document.
func ParseTableString(doc string) *Table {
	// strings.Reader never returns a non-EOF error.
	t, _ := ParseTable(strings.NewReader(doc))
	return t
}

// LoadCSV reads a CSV file and returns rows as maps of column to value.
// The first column of every row is exposed under the header's first label.
func LoadCSV(path string) ([]Row, error) {
	t, err := LoadTable(path)
	if err != nil {
		return nil, err
	}
	rows := make([]Row, 0, len(t.Rows))
	for i := range t.Rows {
		row := t.Record(i)
		row[t.Label] = t.Rows[i].Key
		rows = append(rows, row)
	}
	return rows, nil
}

// LoadTable opens path and parses it with ParseTable.
func LoadTable(path string) (*Table, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("csv: open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck

	t, err := ParseTable(f)
	if err != nil {
		return nil, fmt.Errorf("csv: parse %s: %w", path, err)
	}
	return t, nil
}

// ReadDocument returns the raw contents of a document file.
func ReadDocument(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("csv: read %s: %w", path, err)
	}
	return string(data), nil
}

func isBlankRecord(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}
