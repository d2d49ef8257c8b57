package engine

import (
	"fmt"
	"sort"
	"time"

	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/rules"
)

// MsgCollectionPending is the summary of a Collection-Pending verdict.
const MsgCollectionPending = "No mandatory monthly exam found in the reference month. Confirm status."

// evaluation holds the read-only inputs shared by every patient of a run.
type evaluation struct {
	period    model.Period
	ref       time.Time
	rules     rules.Set
	overrides model.OverrideSet
}

// dueExam is an exam whose resolved rule is billed this cycle month.
type dueExam struct {
	name string
	rule rules.Rule
}

// patient runs the whole per-patient chain: activity, hospitalization
// gate, cycle and tiers, collection gate, pendency.
func (ev *evaluation) patient(p patient, movs []model.MovementRecord, stays []model.Hospitalization) (*model.AnalysisResult, error) {
	if len(p.exams) == 0 {
		return nil, fmt.Errorf("patient has no exam rows")
	}
	res := &model.AnalysisResult{
		Patient:          p.key,
		MandatoryPending: []model.PendingExam{},
		OptionalPending:  []model.PendingExam{},
		ManuallyResolved: []model.ResolvedExam{},
	}

	act := resolveActivity(p.exams, movs, ev.ref)
	start := act.start
	if !start.IsZero() {
		res.CycleStart = &start
		res.CycleStartApproximated = act.approximated
	}
	if !act.active {
		res.Status = model.StatusInactive
		res.Reason = act.reason
		res.Summary = Summarize(res)
		return res, nil
	}

	if h, ok := currentStay(stays, ev.ref); ok {
		res.Status = model.StatusHospitalized
		res.Reason = h.Reason
		res.Summary = Summarize(res)
		return res, nil
	}

	month := rules.CycleMonth(start, ev.ref)
	res.CycleMonth = month
	tiers := rules.DueTiers(month)

	// Only rows up to the reference date count.
	exams := p.exams
	for i, e := range exams {
		if e.Date.After(ev.ref) {
			exams = exams[:i]
			break
		}
	}
	collected := make(map[string]bool)
	last := make(map[string]time.Time)
	for _, e := range exams {
		if ev.period.Contains(e.Date) {
			collected[e.Exam] = true
		}
		last[e.Exam] = e.Date
	}

	resolved := ev.rules.ResolveAll(month)

	if month > 1 && !monthlyCollected(resolved, collected) {
		res.Status = model.StatusCollectionPending
		res.Reason = MsgCollectionPending
		res.Summary = Summarize(res)
		return res, nil
	}

	for _, d := range orderDue(resolved, tiers) {
		if collected[d.name] {
			continue
		}
		if ev.overrides.Has(p.key.ID, d.name) {
			res.ManuallyResolved = append(res.ManuallyResolved, model.ResolvedExam{Exam: d.name})
			continue
		}
		pe := model.PendingExam{Exam: d.name, Frequency: d.rule.Frequency}
		if lp, ok := last[d.name]; ok {
			next, _ := rules.NextDue(lp, d.rule.Frequency)
			if next.After(ev.ref) {
				continue
			}
			pe.LastPerformed = &lp
			pe.NextDue = &next
		}
		if d.rule.Kind == rules.Mandatory {
			res.MandatoryPending = append(res.MandatoryPending, pe)
		} else {
			res.OptionalPending = append(res.OptionalPending, pe)
		}
	}

	res.Status = model.StatusCompliant
	if len(res.MandatoryPending) > 0 {
		res.Status = model.StatusPending
	}
	res.Summary = Summarize(res)
	return res, nil
}

// monthlyCollected reports whether the collection gate passes: at least one
// exam the routine resolves as mandatory monthly was collected in the
// reference month. A routine without such exams never passes.
func monthlyCollected(resolved map[string]rules.Rule, collected map[string]bool) bool {
	for exam, r := range resolved {
		if r.Frequency == rules.Monthly && r.Kind == rules.Mandatory && collected[exam] {
			return true
		}
	}
	return false
}

// orderDue keeps the exams whose tier is due and orders them Annual first,
// then by exam name.
func orderDue(resolved map[string]rules.Rule, tiers rules.Tiers) []dueExam {
	out := make([]dueExam, 0, len(resolved))
	for name, r := range resolved {
		if tiers.Has(r.Frequency) {
			out = append(out, dueExam{name: name, rule: r})
		}
	}
	sort.Slice(out, func(i, j int) bool {
		pi, pj := rules.Priority(out[i].rule.Frequency), rules.Priority(out[j].rule.Frequency)
		if pi != pj {
			return pi < pj
		}
		return out[i].name < out[j].name
	})
	return out
}
