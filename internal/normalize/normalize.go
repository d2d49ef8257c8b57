package normalize

import (
	"strings"

	"github.com/nefron/examcheck/internal/model"
)

// Movement labels as written by the clinic system, folded.
var (
	exitMovements = []string{
		"obito",
		"transferencia de centro",
		"alta ambulatorial",
		"transplante",
	}
	entryMovements = []string{
		"inicio de programa",
		"retorno",
	}
)

// MovementKind classifies a movement label. Matching is accent and case
// insensitive; unknown labels are MovementOther.
func MovementKind(label string) model.MovementKind {
	key := Fold(label)
	for _, m := range exitMovements {
		if key == m {
			return model.MovementExit
		}
	}
	for _, m := range entryMovements {
		if key == m {
			return model.MovementEntry
		}
	}
	return model.MovementOther
}

// Exams converts raw exam cells into records. Cells without a patient
// name, identifier, exam name, valid date or result are dropped and
// counted; no error is raised for them.
func Exams(raw []model.RawExam) (out []model.ExamRecord, dropped int) {
	out = make([]model.ExamRecord, 0, len(raw))
	for _, r := range raw {
		name := Name(r.Name)
		id := PatientID(r.ID)
		exam := Name(r.Exam)
		date := ParseDate(r.Date)
		result := strings.TrimSpace(r.Result)
		if name == "" || id == "" || exam == "" || date == nil || result == "" {
			dropped++
			continue
		}
		out = append(out, model.ExamRecord{
			PatientName:  name,
			PatientID:    id,
			Exam:         exam,
			Date:         *date,
			Result:       result,
			Clinic:       Name(r.Clinic),
			ProgramStart: ParseDate(r.ProgramStart),
		})
	}
	return out, dropped
}

// Movements converts raw movement rows, dropping rows without a patient
// name, identifier or valid date.
func Movements(raw []model.RawMovement) (out []model.MovementRecord, dropped int) {
	out = make([]model.MovementRecord, 0, len(raw))
	for _, r := range raw {
		name := Name(r.Name)
		id := PatientID(r.ID)
		date := ParseDate(r.Date)
		if name == "" || id == "" || date == nil {
			dropped++
			continue
		}
		label := Name(r.Type)
		out = append(out, model.MovementRecord{
			PatientName: name,
			PatientID:   id,
			Date:        *date,
			Type:        label,
			Kind:        MovementKind(label),
		})
	}
	return out, dropped
}

// Hospitalizations converts raw stay rows, dropping rows without a patient
// name or a valid admission date. An unparseable discharge date is treated
// as an ongoing stay.
func Hospitalizations(raw []model.RawHospitalization) (out []model.Hospitalization, dropped int) {
	out = make([]model.Hospitalization, 0, len(raw))
	for _, r := range raw {
		name := Name(r.Name)
		admission := ParseDate(r.Admission)
		if name == "" || admission == nil {
			dropped++
			continue
		}
		out = append(out, model.Hospitalization{
			PatientName: name,
			Admission:   *admission,
			Discharge:   ParseDate(r.Discharge),
			Reason:      Name(r.Type),
		})
	}
	return out, dropped
}
