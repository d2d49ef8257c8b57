// Package report renders an analysis as a text listing, a JSON document or
// an XLSX workbook.
package report

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/nefron/examcheck/internal/analysis"
	"github.com/nefron/examcheck/internal/model"
)

// Format is an output format.
type Format string

const (
	FormatText Format = "text"
	FormatJSON Format = "json"
	FormatXLSX Format = "xlsx"
)

// ErrUnknownFormat is returned by ParseFormat.
var ErrUnknownFormat = errors.New("unknown report format")

func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatText, FormatJSON, FormatXLSX:
		return f, nil
	case "":
		return FormatText, nil
	}
	return "", fmt.Errorf("%w: %q (want text, json or xlsx)", ErrUnknownFormat, s)
}

// Filter selects the patients listed in a report. Empty fields select all.
type Filter struct {
	Statuses []model.Status
	Query    string
}

// ParseStatuses parses a comma separated status list.
func ParseStatuses(s string) ([]model.Status, error) {
	var out []model.Status
	for _, part := range strings.Split(s, ",") {
		if strings.TrimSpace(part) == "" {
			continue
		}
		st, err := model.ParseStatus(part)
		if err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}

// Report is the data every renderer consumes.
type Report struct {
	RunID        string
	Summary      model.RunSummary
	Results      []*model.AnalysisResult
	UnknownExams []string
	Filter       Filter
}

// FromAnalysis builds a report of the patients of a matching f. Summary
// counts always cover the whole run.
func FromAnalysis(a *analysis.Analysis, f Filter) *Report {
	return &Report{
		RunID:        a.ID.String(),
		Summary:      a.Summary,
		Results:      a.Output.Filter(f.Statuses, f.Query),
		UnknownExams: a.UnknownExams,
		Filter:       f,
	}
}

// Write renders r in format.
func Write(w io.Writer, format Format, r *Report) error {
	switch format {
	case FormatText, "":
		return WriteText(w, r)
	case FormatJSON:
		return WriteJSON(w, r)
	case FormatXLSX:
		return WriteXLSX(w, r)
	}
	return fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// MetricsLine is the one-line run overview shown above every listing.
func MetricsLine(sum model.RunSummary) string {
	c := sum.StatusCounts
	return fmt.Sprintf("Patients: %d | Active: %d | Compliant: %d | Pending: %d | Collection pending: %d | Hospitalized: %d | Inactive: %d",
		sum.TotalPatients,
		sum.ActivePatients,
		c[model.StatusCompliant],
		c[model.StatusPending],
		c[model.StatusCollectionPending],
		c[model.StatusHospitalized],
		c[model.StatusInactive],
	)
}

func examNames(list []model.PendingExam) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Exam
	}
	return out
}

func resolvedNames(list []model.ResolvedExam) []string {
	out := make([]string, len(list))
	for i, p := range list {
		out[i] = p.Exam
	}
	return out
}

// formatDate renders t the way the clinic sheets write dates.
func formatDate(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.Format("02/01/2006")
}
