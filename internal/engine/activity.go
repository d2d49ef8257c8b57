package engine

import (
	"sort"
	"time"

	"github.com/nefron/examcheck/internal/model"
)

// ReasonNotStarted is the Inactive reason of a patient whose cycle starts
// after the reference month.
const ReasonNotStarted = "program not started"

// indexMovements groups movements by patient identifier, sorted by date.
// Rows of the same day keep their input order.
func indexMovements(movs []model.MovementRecord) map[string][]model.MovementRecord {
	idx := make(map[string][]model.MovementRecord)
	for _, m := range movs {
		idx[m.PatientID] = append(idx[m.PatientID], m)
	}
	for _, list := range idx {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Date.Before(list[j].Date)
		})
	}
	return idx
}

// lastMovement returns the latest movement dated on or before ref. When
// several share that date the last one in input order wins.
func lastMovement(movs []model.MovementRecord, ref time.Time) (model.MovementRecord, bool) {
	var last model.MovementRecord
	found := false
	for _, m := range movs {
		if m.Date.After(ref) {
			break
		}
		last, found = m, true
	}
	return last, found
}

// activity is the outcome of the activity resolver for one patient.
type activity struct {
	active       bool
	reason       string
	start        time.Time
	approximated bool
}

// resolveActivity decides whether the patient is active at ref and where
// the treatment cycle starts. exams must be sorted by date.
func resolveActivity(exams []model.ExamRecord, movs []model.MovementRecord, ref time.Time) activity {
	if m, ok := lastMovement(movs, ref); ok && m.Kind == model.MovementExit {
		return activity{active: false, reason: m.Type}
	}

	start, approximated := cycleStart(exams, ref)
	a := activity{active: true, start: start, approximated: approximated}
	if model.PeriodOf(ref).Before(model.PeriodOf(start)) {
		a.active = false
		a.reason = ReasonNotStarted
	}
	return a
}

// cycleStart reads the program start of the most recent exam row dated on
// or before ref that carries one; without any it falls back to the earliest
// exam date and reports the start as approximated. exams must be sorted by
// date and non-empty.
func cycleStart(exams []model.ExamRecord, ref time.Time) (time.Time, bool) {
	for i := len(exams) - 1; i >= 0; i-- {
		if exams[i].Date.After(ref) {
			continue
		}
		if ps := exams[i].ProgramStart; ps != nil {
			return *ps, false
		}
	}
	return exams[0].Date, true
}
