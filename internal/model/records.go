package model

import "time"

// PatientKey identifies a patient within one analysis run.
type PatientKey struct {
	Name string `json:"name"`
	ID   string `json:"id"`
}

func (k PatientKey) String() string {
	return k.Name + " (" + k.ID + ")"
}

// RawExam is one exam cell of an input sheet before normalization.
// Dates are kept as the text found in the file.
type RawExam struct {
	Name         string
	ID           string
	Date         string
	Exam         string
	Result       string
	Clinic       string
	ProgramStart string
}

// ExamRecord is a normalized exam. Records with a missing name, identifier
// or date never get this far.
type ExamRecord struct {
	PatientName  string
	PatientID    string
	Exam         string
	Date         time.Time
	Result       string
	Clinic       string
	ProgramStart *time.Time
}

// Key returns the patient the record belongs to.
func (r ExamRecord) Key() PatientKey {
	return PatientKey{Name: r.PatientName, ID: r.PatientID}
}

// MovementKind classifies an admission/discharge event.
type MovementKind int

const (
	MovementOther MovementKind = iota
	// MovementEntry restarts the treatment cycle (program start, return).
	MovementEntry
	// MovementExit removes the patient from the clinic (discharge, death,
	// transfer, transplant).
	MovementExit
)

func (k MovementKind) String() string {
	switch k {
	case MovementEntry:
		return "entry"
	case MovementExit:
		return "exit"
	}
	return "other"
}

// RawMovement is one row of the movements sheet.
type RawMovement struct {
	Name string
	ID   string
	Date string
	Type string
}

// MovementRecord is a normalized movement. Type keeps the label found in
// the file; Kind is its classification.
type MovementRecord struct {
	PatientName string
	PatientID   string
	Date        time.Time
	Type        string
	Kind        MovementKind
}

// RawHospitalization is one row of the hospitalizations sheet.
type RawHospitalization struct {
	Name      string
	Admission string
	Discharge string
	Type      string
}

// Hospitalization is a normalized stay. A nil Discharge means the patient
// is still admitted.
type Hospitalization struct {
	PatientName string
	Admission   time.Time
	Discharge   *time.Time
	Reason      string
}

// Covers reports whether the stay overlaps day.
func (h Hospitalization) Covers(day time.Time) bool {
	if h.Admission.After(day) {
		return false
	}
	return h.Discharge == nil || !h.Discharge.Before(day)
}
