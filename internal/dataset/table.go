// Package dataset loads uploaded CSV/Excel files into an in-memory
// table with per-column type classification, and caches parse results
// keyed by content hash.
package dataset

import (
	"strconv"
	"strings"
	"time"

	apperrors "reportlab/internal/errors"
)

// ColumnType classifies a column by its content.
type ColumnType string

const (
	TypeNumeric     ColumnType = "numeric"
	TypeCategorical ColumnType = "categorical"
	TypeTemporal    ColumnType = "temporal"
	TypeOther       ColumnType = "other"
)

// timeLayouts are the accepted temporal formats, tried in order.
var timeLayouts = []string{
	"2006-01-02",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006/01/02",
	"01/02/2006",
	"02.01.2006",
}

// missingTokens are treated as missing values in addition to the empty
// string.
var missingTokens = map[string]bool{
	"na": true, "n/a": true, "nan": true, "null": true, "none": true,
}

// Table is the in-memory representation of an uploaded file: rows by
// named columns, with a type classification per column. Classification
// is a pure function of column content, computed once at load.
type Table struct {
	Name    string
	Header  []string
	Types   []ColumnType
	Records [][]string
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Records) }

// NumCols returns the number of columns.
func (t *Table) NumCols() int { return len(t.Header) }

// ColumnIndex returns the position of a named column.
func (t *Table) ColumnIndex(name string) (int, bool) {
	for i, h := range t.Header {
		if h == name {
			return i, true
		}
	}
	return 0, false
}

// ColumnType returns the classified type of a named column.
func (t *Table) ColumnType(name string) (ColumnType, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return TypeOther, apperrors.UnknownColumn(name)
	}
	return t.Types[idx], nil
}

// RawColumn returns all cell values of a column, including missing ones.
func (t *Table) RawColumn(name string) ([]string, error) {
	idx, ok := t.ColumnIndex(name)
	if !ok {
		return nil, apperrors.UnknownColumn(name)
	}
	out := make([]string, len(t.Records))
	for i, row := range t.Records {
		out[i] = row[idx]
	}
	return out, nil
}

// StringValues returns the non-missing values of a column, preserving
// row order.
func (t *Table) StringValues(name string) ([]string, error) {
	raw, err := t.RawColumn(name)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(raw))
	for _, v := range raw {
		if !isMissing(v) {
			out = append(out, v)
		}
	}
	return out, nil
}

// NumericValues returns the non-missing values of a numeric column as
// floats, preserving row order.
func (t *Table) NumericValues(name string) ([]float64, error) {
	vals, err := t.StringValues(name)
	if err != nil {
		return nil, err
	}
	out := make([]float64, 0, len(vals))
	for _, v := range vals {
		f, err := parseNumeric(v)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out, nil
}

// TimePoint pairs a timestamp with a numeric measure from the same row.
type TimePoint struct {
	At    time.Time
	Value float64
}

// TimeNumericPairs returns (timestamp, measure) pairs for rows where
// both columns are non-missing and parseable.
func (t *Table) TimeNumericPairs(timeCol, measureCol string) ([]TimePoint, error) {
	ti, ok := t.ColumnIndex(timeCol)
	if !ok {
		return nil, apperrors.UnknownColumn(timeCol)
	}
	mi, ok := t.ColumnIndex(measureCol)
	if !ok {
		return nil, apperrors.UnknownColumn(measureCol)
	}

	out := make([]TimePoint, 0, len(t.Records))
	for _, row := range t.Records {
		if isMissing(row[ti]) || isMissing(row[mi]) {
			continue
		}
		at, err := parseTime(row[ti])
		if err != nil {
			continue
		}
		v, err := parseNumeric(row[mi])
		if err != nil {
			continue
		}
		out = append(out, TimePoint{At: at, Value: v})
	}
	return out, nil
}

// MissingCells counts missing cells across the whole table.
func (t *Table) MissingCells() int {
	n := 0
	for _, row := range t.Records {
		for _, v := range row {
			if isMissing(v) {
				n++
			}
		}
	}
	return n
}

// MissingInColumn counts missing cells in one column.
func (t *Table) MissingInColumn(name string) (int, error) {
	raw, err := t.RawColumn(name)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, v := range raw {
		if isMissing(v) {
			n++
		}
	}
	return n, nil
}

// SampleRows returns up to n leading data rows.
func (t *Table) SampleRows(n int) [][]string {
	if n > len(t.Records) {
		n = len(t.Records)
	}
	out := make([][]string, n)
	for i := 0; i < n; i++ {
		row := make([]string, len(t.Records[i]))
		copy(row, t.Records[i])
		out[i] = row
	}
	return out
}

// classify assigns a type to every column. A column is numeric when all
// non-missing values parse as floats, temporal when all parse as one of
// the accepted layouts, categorical otherwise. Columns with no values
// at all are classified as other.
func (t *Table) classify() {
	t.Types = make([]ColumnType, len(t.Header))
	for i := range t.Header {
		t.Types[i] = inferType(t.columnAt(i))
	}
}

func (t *Table) columnAt(idx int) []string {
	out := make([]string, 0, len(t.Records))
	for _, row := range t.Records {
		out = append(out, row[idx])
	}
	return out
}

func inferType(values []string) ColumnType {
	present := 0
	numeric := 0
	temporal := 0
	for _, v := range values {
		if isMissing(v) {
			continue
		}
		present++
		if _, err := parseNumeric(v); err == nil {
			numeric++
			continue
		}
		if _, err := parseTime(v); err == nil {
			temporal++
		}
	}

	switch {
	case present == 0:
		return TypeOther
	case numeric == present:
		return TypeNumeric
	case temporal == present:
		return TypeTemporal
	default:
		return TypeCategorical
	}
}

func isMissing(v string) bool {
	s := strings.TrimSpace(v)
	if s == "" {
		return true
	}
	return missingTokens[strings.ToLower(s)]
}

func parseNumeric(v string) (float64, error) {
	return strconv.ParseFloat(strings.TrimSpace(v), 64)
}

func parseTime(v string) (time.Time, error) {
	s := strings.TrimSpace(v)
	var lastErr error
	for _, layout := range timeLayouts {
		at, err := time.Parse(layout, s)
		if err == nil {
			return at, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}
