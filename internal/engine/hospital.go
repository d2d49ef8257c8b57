package engine

import (
	"sort"
	"time"

	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/normalize"
)

// indexStays groups stays by folded patient name, most recent admission
// first.
func indexStays(stays []model.Hospitalization) map[string][]model.Hospitalization {
	idx := make(map[string][]model.Hospitalization)
	for _, h := range stays {
		k := normalize.Fold(h.PatientName)
		idx[k] = append(idx[k], h)
	}
	for _, list := range idx {
		sort.SliceStable(list, func(i, j int) bool {
			return list[i].Admission.After(list[j].Admission)
		})
	}
	return idx
}

// currentStay returns the most recent stay covering ref.
func currentStay(stays []model.Hospitalization, ref time.Time) (model.Hospitalization, bool) {
	for _, h := range stays {
		if h.Covers(ref) {
			return h, true
		}
	}
	return model.Hospitalization{}, false
}
