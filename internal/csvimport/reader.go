// Package csvimport reads webinar platform exports (attendance and chat logs)
// into canonical rows, tolerating header variants and sloppy values.
package csvimport

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

var (
	// ErrMissingColumn is returned when a required column has no matching header.
	ErrMissingColumn = errors.New("missing required column")
	// ErrMalformed is returned when the file cannot be read as CSV.
	ErrMalformed = errors.New("malformed csv")
)

// table is a header-indexed view over CSV records.
type table struct {
	reader  *csv.Reader
	columns map[string]int
}

func newTable(r io.Reader) (*table, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("%w: empty file", ErrMalformed)
		}
		return nil, fmt.Errorf("%w: read header: %v", ErrMalformed, err)
	}
	if len(headers) > 0 {
		headers[0] = strings.TrimPrefix(headers[0], "\ufeff")
	}
	columns := make(map[string]int, len(headers))
	for idx, h := range headers {
		key := normalizeHeader(h)
		if _, exists := columns[key]; !exists {
			columns[key] = idx
		}
	}
	return &table{reader: reader, columns: columns}, nil
}

// find returns the column index of the first alias that matches a header.
func (t *table) find(aliases []string) int {
	for _, name := range aliases {
		if idx, ok := t.columns[normalizeHeader(name)]; ok {
			return idx
		}
	}
	return -1
}

func (t *table) require(field string, aliases []string) (int, error) {
	idx := t.find(aliases)
	if idx < 0 {
		return -1, fmt.Errorf("%w: %s (expected one of %s)", ErrMissingColumn, field, strings.Join(aliases, ", "))
	}
	return idx, nil
}

// next returns the next non-blank record, or io.EOF.
func (t *table) next() ([]string, error) {
	for {
		record, err := t.reader.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, io.EOF
			}
			return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
		}
		if !blank(record) {
			return record, nil
		}
	}
}

func blank(record []string) bool {
	for _, v := range record {
		if strings.TrimSpace(v) != "" {
			return false
		}
	}
	return true
}

func normalizeHeader(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	value = strings.ReplaceAll(value, " ", "")
	value = strings.ReplaceAll(value, "_", "")
	value = strings.ReplaceAll(value, "-", "")
	return value
}

func getValue(record []string, idx int) string {
	if idx < 0 || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}
