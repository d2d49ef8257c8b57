// Package importer reads the clinic exports (exam sheet, movements,
// hospitalizations) into raw rows. It knows file formats and column
// labels; cleaning is left to the normalize package.
package importer

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nefron/examcheck/internal/normalize"
)

// ErrUnsupportedFormat is returned for files that are not CSV, XLSX or Parquet.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// ErrMissingColumn is returned when a required column is absent.
var ErrMissingColumn = errors.New("missing required column")

// Format is the kind of file a Source holds.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatXLSX    Format = "xlsx"
	FormatParquet Format = "parquet"
)

// DetectFormat picks the format from the file extension.
func DetectFormat(name string) (Format, error) {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".csv", ".txt":
		return FormatCSV, nil
	case ".xlsx", ".xlsm":
		return FormatXLSX, nil
	case ".parquet", ".pq":
		return FormatParquet, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, name)
}

// Table is a header plus data rows, as read from a sheet.
type Table struct {
	Header []string
	Rows   [][]string
	// excel is set when cells come from a workbook, where dates may be
	// serial numbers.
	excel bool
	index map[string]int
}

func newTable(header []string, rows [][]string, excel bool) *Table {
	t := &Table{Header: header, Rows: rows, excel: excel, index: make(map[string]int, len(header))}
	for i, h := range header {
		k := headerKey(h)
		if _, dup := t.index[k]; !dup {
			t.index[k] = i
		}
	}
	return t
}

// headerKey folds a column label: "Data Exame", " data  exame" and
// "DATA EXAME" match.
func headerKey(h string) string {
	return normalize.Fold(strings.TrimPrefix(h, "\ufeff"))
}

// Column returns the index of the first label found, or -1.
func (t *Table) Column(labels ...string) int {
	for _, l := range labels {
		if i, ok := t.index[headerKey(l)]; ok {
			return i
		}
	}
	return -1
}

func (t *Table) require(what string, labels ...string) (int, error) {
	i := t.Column(labels...)
	if i < 0 {
		return -1, fmt.Errorf("%w: %s (accepted labels: %s)", ErrMissingColumn, what, strings.Join(labels, ", "))
	}
	return i, nil
}

// cell returns row[i], or "" when the column is absent or the row short.
func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// idCell is cell for identifier columns: workbooks may store a CNS as a
// number and return it in scientific notation.
func (t *Table) idCell(row []string, i int) string {
	v := cell(row, i)
	if t.excel && strings.ContainsAny(v, "eE") {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return strconv.FormatFloat(f, 'f', 0, 64)
		}
	}
	return v
}

// dateCell is cell for date columns: workbook serial numbers are turned
// into day-first text.
func (t *Table) dateCell(row []string, i int) string {
	v := cell(row, i)
	if t.excel {
		return excelDate(v)
	}
	return v
}
