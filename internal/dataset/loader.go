package dataset

import (
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apperrors "reportlab/internal/errors"
)

// Load reads an uploaded file into a Table, dispatching on the declared
// extension. CSV requires a header row; Excel workbooks are read from
// their first sheet.
func Load(name string, r io.Reader) (*Table, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv":
		return loadCSV(name, r)
	case ".xlsx", ".xls":
		return loadExcel(name, r)
	default:
		return nil, apperrors.UnsupportedFormat(filepath.Ext(name))
	}
}

func loadCSV(name string, r io.Reader) (*Table, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	records, err := reader.ReadAll()
	if err != nil {
		return nil, apperrors.Parse(err)
	}
	return buildTable(name, records)
}

func loadExcel(name string, r io.Reader) (*Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apperrors.Parse(err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("%w: workbook has no sheets", apperrors.ErrEmptyData)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apperrors.Parse(err)
	}
	return buildTable(name, rows)
}

// buildTable turns raw rows into a classified Table. The first row is
// the header; short rows are padded so every record has one cell per
// column.
func buildTable(name string, rows [][]string) (*Table, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrEmptyData, name)
	}

	header := rows[0]
	if len(header) == 0 {
		return nil, fmt.Errorf("%w: %s has no columns", apperrors.ErrEmptyData, name)
	}
	if len(rows) < 2 {
		return nil, fmt.Errorf("%w: %s has a header but no data rows", apperrors.ErrEmptyData, name)
	}

	records := make([][]string, 0, len(rows)-1)
	for _, row := range rows[1:] {
		rec := make([]string, len(header))
		copy(rec, row)
		records = append(records, rec)
	}

	t := &Table{
		Name:    name,
		Header:  append([]string(nil), header...),
		Records: records,
	}
	t.classify()
	return t, nil
}
