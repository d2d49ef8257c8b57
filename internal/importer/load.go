package importer

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/normalize"
	"github.com/nefron/examcheck/internal/parquetread"
)

// Source is one input file held in memory.
type Source struct {
	Name string
	Data []byte
}

// ReadSource loads path into a Source. An empty path yields a nil Source.
func ReadSource(path string) (*Source, error) {
	if path == "" {
		return nil, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return &Source{Name: filepath.Base(path), Data: data}, nil
}

// Sources are the files of one analysis. Only Exams is required.
type Sources struct {
	Exams            *Source
	Movements        *Source
	Hospitalizations *Source
}

// Hash fingerprints the inputs.
func (s Sources) Hash() string {
	var parts [][]byte
	for _, src := range []*Source{s.Exams, s.Movements, s.Hospitalizations} {
		if src == nil {
			parts = append(parts, nil)
			continue
		}
		parts = append(parts, src.Data)
	}
	return normalize.BytesHash(parts...)
}

// Options controls parsing.
type Options struct {
	// Comma is the CSV separator; 0 means DefaultComma.
	Comma rune
}

// Dataset is the raw content of a set of sources.
type Dataset struct {
	Exams            []model.RawExam
	ExamColumns      []string
	HasClinic        bool
	Movements        []model.RawMovement
	Hospitalizations []model.RawHospitalization
	Format           Format
}

// Load parses every present source.
func Load(src Sources, opts Options) (*Dataset, error) {
	if src.Exams == nil {
		return nil, fmt.Errorf("exam file is required")
	}
	ds := &Dataset{}

	format, err := DetectFormat(src.Exams.Name)
	if err != nil {
		return nil, err
	}
	ds.Format = format
	if format == FormatParquet {
		rows, err := readParquet(src.Exams.Data)
		if err != nil {
			return nil, fmt.Errorf("exams %s: %w", src.Exams.Name, err)
		}
		ds.Exams = rows
		for _, r := range rows {
			if r.Clinic != "" {
				ds.HasClinic = true
				break
			}
		}
	} else {
		t, err := readTable(src.Exams, opts)
		if err != nil {
			return nil, fmt.Errorf("exams %s: %w", src.Exams.Name, err)
		}
		sheet, err := WideExams(t)
		if err != nil {
			return nil, fmt.Errorf("exams %s: %w", src.Exams.Name, err)
		}
		ds.Exams, ds.ExamColumns, ds.HasClinic = sheet.Exams, sheet.Columns, sheet.HasClinic
	}

	if src.Movements != nil {
		t, err := readTable(src.Movements, opts)
		if err != nil {
			return nil, fmt.Errorf("movements %s: %w", src.Movements.Name, err)
		}
		if ds.Movements, err = Movements(t); err != nil {
			return nil, fmt.Errorf("movements %s: %w", src.Movements.Name, err)
		}
	}
	if src.Hospitalizations != nil {
		t, err := readTable(src.Hospitalizations, opts)
		if err != nil {
			return nil, fmt.Errorf("hospitalizations %s: %w", src.Hospitalizations.Name, err)
		}
		if ds.Hospitalizations, err = Hospitalizations(t); err != nil {
			return nil, fmt.Errorf("hospitalizations %s: %w", src.Hospitalizations.Name, err)
		}
	}
	return ds, nil
}

// readTable parses a CSV or XLSX source.
func readTable(src *Source, opts Options) (*Table, error) {
	format, err := DetectFormat(src.Name)
	if err != nil {
		return nil, err
	}
	switch format {
	case FormatCSV:
		return ReadCSV(src.Data, opts.Comma)
	case FormatXLSX:
		return ReadXLSX(src.Data)
	}
	return nil, fmt.Errorf("%w: %s is only supported for exam files", ErrUnsupportedFormat, format)
}

func readParquet(data []byte) ([]model.RawExam, error) {
	r, err := parquetread.FromBytes(data)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	if err := parquetread.ValidateSchema(r.Schema()); err != nil {
		return nil, err
	}
	return r.ReadAll()
}
