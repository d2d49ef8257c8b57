package importer

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"
)

// DefaultComma is the separator of the clinic exports.
const DefaultComma = ';'

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// decode returns data as UTF-8. Valid UTF-8 (with or without BOM) is kept;
// anything else is read as Windows-1252, a superset of Latin-1.
func decode(data []byte) ([]byte, error) {
	data = bytes.TrimPrefix(data, utf8BOM)
	if utf8.Valid(data) {
		return data, nil
	}
	out, _, err := transform.Bytes(charmap.Windows1252.NewDecoder(), data)
	if err != nil {
		return nil, fmt.Errorf("decode windows-1252: %w", err)
	}
	return out, nil
}

// ReadCSV parses a delimited file. The first record is the header; blank
// lines are skipped and short rows are allowed.
func ReadCSV(data []byte, comma rune) (*Table, error) {
	text, err := decode(data)
	if err != nil {
		return nil, err
	}
	if comma == 0 {
		comma = DefaultComma
	}
	r := csv.NewReader(bytes.NewReader(text))
	r.Comma = comma
	r.FieldsPerRecord = -1
	r.LazyQuotes = true
	r.TrimLeadingSpace = true

	records, err := r.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: file is empty")
	}
	return newTable(records[0], records[1:], false), nil
}
