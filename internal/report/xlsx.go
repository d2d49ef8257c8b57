package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/nefron/examcheck/internal/model"
)

// Workbook sheet names.
const (
	SheetSummary  = "Summary"
	SheetPatients = "Patients"
	SheetPending  = "Pending"
)

var patientsHeader = []string{
	"Patient",
	"CNS",
	"Status",
	"Cycle month",
	"Cycle start",
	"Start approximated",
	"Mandatory pending",
	"Optional pending",
	"Manually resolved",
	"Summary",
}

var patientsWidths = []float64{40, 18, 20, 12, 14, 18, 50, 40, 30, 50}

var pendingHeader = []string{
	"Patient",
	"CNS",
	"Exam",
	"Kind",
	"Frequency",
	"Last performed",
	"Next due",
}

var pendingWidths = []float64{40, 18, 35, 12, 12, 16, 16}

// WriteXLSX writes the report as a workbook with a summary sheet, one row
// per patient and one row per pending exam.
func WriteXLSX(w io.Writer, r *Report) error {
	f, err := buildWorkbook(r)
	if err != nil {
		return err
	}
	defer f.Close()
	if _, err := f.WriteTo(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func buildWorkbook(r *Report) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName("Sheet1", SheetSummary); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename default sheet: %w", err)
	}
	for _, name := range []string{SheetPatients, SheetPending} {
		if _, err := f.NewSheet(name); err != nil {
			f.Close()
			return nil, fmt.Errorf("create sheet %s: %w", name, err)
		}
	}

	header, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"#E6F3FF"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
		},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	steps := []func(*excelize.File, *Report, int) error{
		writeSummarySheet,
		writePatientsSheet,
		writePendingSheet,
	}
	for _, step := range steps {
		if err := step(f, r, header); err != nil {
			f.Close()
			return nil, err
		}
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeSummarySheet(f *excelize.File, r *Report, header int) error {
	sum := r.Summary
	c := sum.StatusCounts
	rows := [][]any{
		{"Run", r.RunID},
		{"Period", sum.Period.String()},
		{"Profile", sum.Profile},
		{"Routine", sum.Routine},
		{"Rows read", sum.RowsRead},
		{"Rows analysed", sum.RowsAnalysed},
		{"Rows dropped", sum.RowsDropped},
		{"Rows from other clinics", sum.RowsFilteredClinic},
		{"Rows with unknown exam", sum.RowsUnknownExam},
		{"Total patients", sum.TotalPatients},
		{"Active patients", sum.ActivePatients},
		{model.StatusCompliant.Label(), c[model.StatusCompliant]},
		{model.StatusPending.Label(), c[model.StatusPending]},
		{model.StatusCollectionPending.Label(), c[model.StatusCollectionPending]},
		{model.StatusHospitalized.Label(), c[model.StatusHospitalized]},
		{model.StatusInactive.Label(), c[model.StatusInactive]},
		{"Approximated cycle starts", sum.ApproximatedStarts},
	}
	if len(r.UnknownExams) > 0 {
		rows = append(rows, []any{"Unknown exams", strings.Join(r.UnknownExams, ", ")})
	}
	if err := setRow(f, SheetSummary, 1, []any{"Metric", "Value"}); err != nil {
		return err
	}
	if err := f.SetCellStyle(SheetSummary, "A1", "B1", header); err != nil {
		return fmt.Errorf("style summary header: %w", err)
	}
	for i, row := range rows {
		if err := setRow(f, SheetSummary, i+2, row); err != nil {
			return err
		}
	}
	return setWidths(f, SheetSummary, []float64{28, 40})
}

func writePatientsSheet(f *excelize.File, r *Report, header int) error {
	if err := writeHeader(f, SheetPatients, patientsHeader, patientsWidths, header); err != nil {
		return err
	}
	for i, res := range r.Results {
		start := formatDate(res.CycleStart)
		row := []any{
			res.Patient.Name,
			res.Patient.ID,
			res.Status.Label(),
			res.CycleMonth,
			start,
			res.CycleStartApproximated,
			strings.Join(examNames(res.MandatoryPending), ", "),
			strings.Join(examNames(res.OptionalPending), ", "),
			strings.Join(resolvedNames(res.ManuallyResolved), ", "),
			res.Summary,
		}
		if res.CycleMonth == 0 {
			row[3] = ""
		}
		if err := setRow(f, SheetPatients, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func writePendingSheet(f *excelize.File, r *Report, header int) error {
	if err := writeHeader(f, SheetPending, pendingHeader, pendingWidths, header); err != nil {
		return err
	}
	line := 2
	for _, res := range r.Results {
		groups := []struct {
			kind string
			list []model.PendingExam
		}{
			{"mandatory", res.MandatoryPending},
			{"optional", res.OptionalPending},
		}
		for _, g := range groups {
			for _, p := range g.list {
				row := []any{
					res.Patient.Name,
					res.Patient.ID,
					p.Exam,
					g.kind,
					p.Frequency.String(),
					formatDate(p.LastPerformed),
					formatDate(p.NextDue),
				}
				if err := setRow(f, SheetPending, line, row); err != nil {
					return err
				}
				line++
			}
		}
	}
	return nil
}

func writeHeader(f *excelize.File, sheet string, header []string, widths []float64, style int) error {
	row := make([]any, len(header))
	for i, h := range header {
		row[i] = h
	}
	if err := setRow(f, sheet, 1, row); err != nil {
		return err
	}
	last, err := excelize.CoordinatesToCellName(len(header), 1)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", last, style); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		return fmt.Errorf("freeze %s header: %w", sheet, err)
	}
	return setWidths(f, sheet, widths)
}

func setRow(f *excelize.File, sheet string, line int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, line)
	if err != nil {
		return fmt.Errorf("convert coordinates: %w", err)
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("write %s row %d: %w", sheet, line, err)
	}
	return nil
}

func setWidths(f *excelize.File, sheet string, widths []float64) error {
	for i, w := range widths {
		col, err := excelize.ColumnNumberToName(i + 1)
		if err != nil {
			return fmt.Errorf("convert column number: %w", err)
		}
		if err := f.SetColWidth(sheet, col, col, w); err != nil {
			return fmt.Errorf("set %s column width: %w", sheet, err)
		}
	}
	return nil
}
