package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/xuri/excelize/v2"

	"github.com/nefron/examcheck/internal/analysis"
	"github.com/nefron/examcheck/internal/engine"
	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/rules"
)

func ptr(t time.Time) *time.Time { return &t }

func testAnalysis() *analysis.Analysis {
	ana := &model.AnalysisResult{
		Patient:    model.PatientKey{Name: "Ana Lima", ID: "000000000012345"},
		Status:     model.StatusPending,
		Summary:    "1 mandatory exam(s) pending. 1 optional suggested.",
		CycleMonth: 4,
		CycleStart: ptr(time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
		MandatoryPending: []model.PendingExam{{
			Exam:          "PTH",
			Frequency:     rules.Quarterly,
			LastPerformed: ptr(time.Date(2023, 1, 10, 0, 0, 0, 0, time.UTC)),
			NextDue:       ptr(time.Date(2023, 4, 10, 0, 0, 0, 0, time.UTC)),
		}},
		OptionalPending:  []model.PendingExam{{Exam: "Hemograma", Frequency: rules.Quarterly}},
		ManuallyResolved: []model.ResolvedExam{{Exam: "Potassio"}},
	}
	bruno := &model.AnalysisResult{
		Patient: model.PatientKey{Name: "Bruno Reis", ID: "000000000067890"},
		Status:  model.StatusInactive,
		Reason:  "deceased",
		Summary: "Patient inactive: deceased.",
	}
	out := &engine.Output{
		Period: model.Period{Year: 2023, Month: time.April},
		Results: map[model.PatientKey]*model.AnalysisResult{
			ana.Patient:   ana,
			bruno.Patient: bruno,
		},
		TotalPatients:  2,
		ActivePatients: 1,
	}
	return &analysis.Analysis{
		ID: uuid.MustParse("6f1c2d3e-0000-4000-8000-000000000001"),
		Summary: model.RunSummary{
			Period:         out.Period,
			Profile:        "Padrão",
			Routine:        "Padrão",
			RowsRead:       10,
			RowsAnalysed:   8,
			TotalPatients:  2,
			ActivePatients: 1,
			StatusCounts:   out.Counts(),
		},
		Output:       out,
		UnknownExams: []string{"XYZ"},
	}
}

func TestParseFormat(t *testing.T) {
	for in, want := range map[string]Format{"": FormatText, "JSON": FormatJSON, " xlsx ": FormatXLSX} {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("pdf"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestParseStatuses(t *testing.T) {
	got, err := ParseStatuses("pending, Collection pending,")
	if err != nil {
		t.Fatalf("ParseStatuses: %v", err)
	}
	if len(got) != 2 || got[0] != model.StatusPending || got[1] != model.StatusCollectionPending {
		t.Errorf("got %v", got)
	}
	if _, err := ParseStatuses("late"); err == nil {
		t.Error("expected error for unknown status")
	}
}

func TestMetricsLine(t *testing.T) {
	got := MetricsLine(testAnalysis().Summary)
	want := "Patients: 2 | Active: 1 | Compliant: 0 | Pending: 1 | Collection pending: 0 | Hospitalized: 0 | Inactive: 1"
	if got != want {
		t.Errorf("got  %q\nwant %q", got, want)
	}
}

func TestFromAnalysisFilter(t *testing.T) {
	a := testAnalysis()
	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"all", Filter{}, []string{"Ana Lima", "Bruno Reis"}},
		{"status", Filter{Statuses: []model.Status{model.StatusInactive}}, []string{"Bruno Reis"}},
		{"name", Filter{Query: "ana"}, []string{"Ana Lima"}},
		{"id", Filter{Query: "67890"}, []string{"Bruno Reis"}},
		{"none", Filter{Statuses: []model.Status{model.StatusPending}, Query: "bruno"}, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := FromAnalysis(a, tt.filter)
			var got []string
			for _, res := range r.Results {
				got = append(got, res.Patient.Name)
			}
			if strings.Join(got, ",") != strings.Join(tt.want, ",") {
				t.Errorf("got %v, want %v", got, tt.want)
			}
			if r.Summary.TotalPatients != 2 {
				t.Error("summary must cover the whole run")
			}
		})
	}
}

func TestWriteText(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatText, FromAnalysis(testAnalysis(), Filter{})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	out := buf.String()
	for _, want := range []string{
		"=== examcheck 2023-04 ===",
		"Unknown exams: XYZ",
		"Patients: 2 | Active: 1",
		"cycle month 4, start 01/01/2023",
		"[mandatory] PTH (Quarterly, last 10/01/2023, due 10/04/2023)",
		"[optional]  Hemograma (Quarterly, never performed)",
		"[resolved]  Potassio",
		"reason: deceased",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	buf.Reset()
	r := FromAnalysis(testAnalysis(), Filter{Query: "ana"})
	if err := WriteText(&buf, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `Showing 1 patient(s) with matching "ana"`) {
		t.Errorf("filter line missing:\n%s", buf.String())
	}
	if strings.Contains(buf.String(), "Bruno") {
		t.Error("filtered patient listed")
	}
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatJSON, FromAnalysis(testAnalysis(), Filter{})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	var doc struct {
		RunID   string `json:"run_id"`
		Period  string `json:"period"`
		Metrics struct {
			Pending  int `json:"pending"`
			Inactive int `json:"inactive"`
		} `json:"metrics"`
		Results []struct {
			Status           string `json:"status"`
			MandatoryPending []struct {
				Exam      string `json:"exam"`
				Frequency string `json:"frequency"`
			} `json:"mandatory_pending"`
		} `json:"results"`
	}
	if err := json.Unmarshal(buf.Bytes(), &doc); err != nil {
		t.Fatalf("decode: %v\n%s", err, buf.String())
	}
	if doc.Period != "2023-04" || doc.RunID == "" {
		t.Errorf("header = %+v", doc)
	}
	if doc.Metrics.Pending != 1 || doc.Metrics.Inactive != 1 {
		t.Errorf("metrics = %+v", doc.Metrics)
	}
	if len(doc.Results) != 2 || doc.Results[0].Status != "pending" {
		t.Fatalf("results = %+v", doc.Results)
	}
	if p := doc.Results[0].MandatoryPending; len(p) != 1 || p[0].Exam != "PTH" || p[0].Frequency != "Quarterly" {
		t.Errorf("pending = %+v", p)
	}
}

func TestWriteJSONEmptyResults(t *testing.T) {
	var buf bytes.Buffer
	r := FromAnalysis(testAnalysis(), Filter{Query: "nobody"})
	if err := WriteJSON(&buf, r); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(buf.String(), `"results": []`) {
		t.Errorf("empty results must encode as an array:\n%s", buf.String())
	}
}

func TestWriteXLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, FormatXLSX, FromAnalysis(testAnalysis(), Filter{})); err != nil {
		t.Fatalf("Write: %v", err)
	}
	f, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer f.Close()

	if got := f.GetSheetList(); strings.Join(got, ",") != "Summary,Patients,Pending" {
		t.Errorf("sheets = %v", got)
	}

	patients, err := f.GetRows(SheetPatients)
	if err != nil {
		t.Fatal(err)
	}
	if len(patients) != 3 {
		t.Fatalf("patients rows = %d, want 3", len(patients))
	}
	if patients[0][0] != "Patient" || patients[1][0] != "Ana Lima" || patients[1][2] != "Pending" {
		t.Errorf("patients = %v", patients[:2])
	}
	if patients[1][6] != "PTH" || patients[1][8] != "Potassio" {
		t.Errorf("pending columns = %v", patients[1])
	}

	pending, err := f.GetRows(SheetPending)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 3 {
		t.Fatalf("pending rows = %d, want 3", len(pending))
	}
	if pending[1][2] != "PTH" || pending[1][3] != "mandatory" || pending[1][6] != "10/04/2023" {
		t.Errorf("pending row = %v", pending[1])
	}
	if pending[2][2] != "Hemograma" || pending[2][3] != "optional" {
		t.Errorf("pending row = %v", pending[2])
	}

	v, err := f.GetCellValue(SheetSummary, "B3")
	if err != nil || v != "2023-04" {
		t.Errorf("summary period = %q, %v", v, err)
	}
}
