package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/nefron/examcheck/internal/rules"
)

// Status is the verdict for one patient in one period.
type Status int

const (
	StatusCompliant Status = iota
	StatusPending
	StatusCollectionPending
	StatusHospitalized
	StatusInactive
)

var statusNames = []string{"compliant", "pending", "collection_pending", "hospitalized", "inactive"}

var statusLabels = []string{"Compliant", "Pending", "Collection pending", "Hospitalized", "Inactive"}

// AllStatuses lists every status in display order.
var AllStatuses = []Status{StatusPending, StatusCollectionPending, StatusHospitalized, StatusCompliant, StatusInactive}

func (s Status) String() string {
	if s < 0 || int(s) >= len(statusNames) {
		return fmt.Sprintf("Status(%d)", int(s))
	}
	return statusNames[s]
}

// Label is the human readable form used in reports.
func (s Status) Label() string {
	if s < 0 || int(s) >= len(statusLabels) {
		return s.String()
	}
	return statusLabels[s]
}

// ParseStatus accepts the snake_case name or the label, case-insensitively.
func ParseStatus(v string) (Status, error) {
	key := strings.ToLower(strings.TrimSpace(v))
	for i := range statusNames {
		if key == statusNames[i] || key == strings.ToLower(statusLabels[i]) {
			return Status(i), nil
		}
	}
	return 0, fmt.Errorf("unknown status %q", v)
}

func (s Status) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *Status) UnmarshalText(b []byte) error {
	v, err := ParseStatus(string(b))
	if err != nil {
		return err
	}
	*s = v
	return nil
}

// PendingExam is an exam the patient still owes for the period.
// LastPerformed and NextDue are nil when the exam was never performed.
type PendingExam struct {
	Exam          string          `json:"exam"`
	Frequency     rules.Frequency `json:"frequency"`
	LastPerformed *time.Time      `json:"last_performed,omitempty"`
	NextDue       *time.Time      `json:"next_due,omitempty"`
}

// ResolvedExam is a due exam suppressed by a manual override.
type ResolvedExam struct {
	Exam string `json:"exam"`
}

// AnalysisResult is the verdict for one patient and one reference period.
type AnalysisResult struct {
	Patient                PatientKey     `json:"patient"`
	Status                 Status         `json:"status"`
	Reason                 string         `json:"reason,omitempty"`
	Summary                string         `json:"summary"`
	CycleMonth             int            `json:"cycle_month,omitempty"`
	CycleStart             *time.Time     `json:"cycle_start,omitempty"`
	CycleStartApproximated bool           `json:"cycle_start_approximated,omitempty"`
	MandatoryPending       []PendingExam  `json:"mandatory_pending"`
	OptionalPending        []PendingExam  `json:"optional_pending"`
	ManuallyResolved       []ResolvedExam `json:"manually_resolved"`
}

// Active reports whether the patient took part in the analysis.
func (r *AnalysisResult) Active() bool {
	return r.Status != StatusInactive
}

// Matches reports whether the patient name or identifier contains q,
// case-insensitively. An empty q matches everything.
func (r *AnalysisResult) Matches(q string) bool {
	q = strings.ToLower(strings.TrimSpace(q))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(r.Patient.Name), q) ||
		strings.Contains(strings.ToLower(r.Patient.ID), q)
}
