package model

import (
	"sort"
	"time"
)

// ManualOverride marks an exam as resolved for one patient and period.
// The (PatientID, Exam, Period) triple is unique.
type ManualOverride struct {
	PatientID string    `json:"patient_id"`
	Exam      string    `json:"exam"`
	Period    Period    `json:"period"`
	MarkedBy  string    `json:"marked_by,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// OverrideKey is the identity of an override within a single period.
type OverrideKey struct {
	PatientID string
	Exam      string
}

// OverrideSet holds the overrides of one period. Adding the same key twice
// is a no-op.
type OverrideSet map[OverrideKey]struct{}

// NewOverrideSet keeps the overrides of list that belong to period.
func NewOverrideSet(period Period, list []ManualOverride) OverrideSet {
	s := make(OverrideSet, len(list))
	for _, o := range list {
		if o.Period == period {
			s.Add(o.PatientID, o.Exam)
		}
	}
	return s
}

func (s OverrideSet) Add(patientID, exam string) {
	s[OverrideKey{PatientID: patientID, Exam: exam}] = struct{}{}
}

func (s OverrideSet) Remove(patientID, exam string) {
	delete(s, OverrideKey{PatientID: patientID, Exam: exam})
}

func (s OverrideSet) Has(patientID, exam string) bool {
	_, ok := s[OverrideKey{PatientID: patientID, Exam: exam}]
	return ok
}

// Clone returns an independent copy; a nil set clones to an empty one.
func (s OverrideSet) Clone() OverrideSet {
	out := make(OverrideSet, len(s))
	for k := range s {
		out[k] = struct{}{}
	}
	return out
}

// Keys returns the keys ordered by patient then exam.
func (s OverrideSet) Keys() []OverrideKey {
	keys := make([]OverrideKey, 0, len(s))
	for k := range s {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].PatientID != keys[j].PatientID {
			return keys[i].PatientID < keys[j].PatientID
		}
		return keys[i].Exam < keys[j].Exam
	})
	return keys
}
