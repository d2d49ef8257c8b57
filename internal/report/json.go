package report

import (
	"encoding/json"
	"io"

	"github.com/nefron/examcheck/internal/model"
)

// Document is the JSON form of a report.
type Document struct {
	RunID        string                  `json:"run_id"`
	Period       model.Period            `json:"period"`
	Profile      string                  `json:"profile"`
	Routine      string                  `json:"routine"`
	InputSHA256  string                  `json:"input_sha256,omitempty"`
	Rows         RowCounts               `json:"rows"`
	Metrics      Metrics                 `json:"metrics"`
	UnknownExams []string                `json:"unknown_exams,omitempty"`
	DurationMS   int64                   `json:"duration_ms"`
	Results      []*model.AnalysisResult `json:"results"`
}

type RowCounts struct {
	Read           int64 `json:"read"`
	Analysed       int64 `json:"analysed"`
	Dropped        int64 `json:"dropped"`
	FilteredClinic int64 `json:"filtered_clinic"`
	UnknownExam    int64 `json:"unknown_exam"`
}

// Metrics mirrors MetricsLine.
type Metrics struct {
	TotalPatients      int `json:"total_patients"`
	ActivePatients     int `json:"active_patients"`
	Compliant          int `json:"compliant"`
	Pending            int `json:"pending"`
	CollectionPending  int `json:"collection_pending"`
	Hospitalized       int `json:"hospitalized"`
	Inactive           int `json:"inactive"`
	ApproximatedStarts int `json:"approximated_starts"`
}

// NewDocument converts r for JSON encoding.
func NewDocument(r *Report) *Document {
	sum := r.Summary
	c := sum.StatusCounts
	results := r.Results
	if results == nil {
		results = []*model.AnalysisResult{}
	}
	return &Document{
		RunID:       r.RunID,
		Period:      sum.Period,
		Profile:     sum.Profile,
		Routine:     sum.Routine,
		InputSHA256: sum.InputSHA256,
		Rows: RowCounts{
			Read:           sum.RowsRead,
			Analysed:       sum.RowsAnalysed,
			Dropped:        sum.RowsDropped,
			FilteredClinic: sum.RowsFilteredClinic,
			UnknownExam:    sum.RowsUnknownExam,
		},
		Metrics: Metrics{
			TotalPatients:      sum.TotalPatients,
			ActivePatients:     sum.ActivePatients,
			Compliant:          c[model.StatusCompliant],
			Pending:            c[model.StatusPending],
			CollectionPending:  c[model.StatusCollectionPending],
			Hospitalized:       c[model.StatusHospitalized],
			Inactive:           c[model.StatusInactive],
			ApproximatedStarts: sum.ApproximatedStarts,
		},
		UnknownExams: r.UnknownExams,
		DurationMS:   sum.DurationTotal.Milliseconds(),
		Results:      results,
	}
}

func WriteJSON(w io.Writer, r *Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(NewDocument(r))
}
