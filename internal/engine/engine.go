// Package engine computes the exam verdict of every patient for one
// reference period. It is a pure batch computation: no I/O, no clock, no
// shared mutable state. Patients are evaluated independently and in
// parallel.
package engine

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/normalize"
	"github.com/nefron/examcheck/internal/rules"
)

// ErrNoPeriod is returned when Input.Period is unset.
var ErrNoPeriod = errors.New("reference period is required")

// Input is everything one run reads. None of it is modified.
type Input struct {
	Period           model.Period
	Exams            []model.ExamRecord
	Movements        []model.MovementRecord
	Hospitalizations []model.Hospitalization
	// Rules must already carry the default rule for dictionary exams
	// without configuration (see rules.Set.WithDefaults).
	Rules     rules.Set
	Overrides model.OverrideSet
}

// Options tunes a run without changing its result.
type Options struct {
	// Workers bounds parallel patient evaluations; <= 0 means GOMAXPROCS.
	Workers int
}

// Output is the result of a run.
type Output struct {
	Period  model.Period
	Results map[model.PatientKey]*model.AnalysisResult
	// TotalPatients counts distinct (name, identifier) pairs in the exams.
	TotalPatients int
	// ActivePatients counts patients that were not Inactive.
	ActivePatients int
	// ApproximatedStarts counts active patients whose cycle start fell back
	// to their earliest exam date.
	ApproximatedStarts int
}

// RunError reports a failure while evaluating one patient. It aborts the
// whole run.
type RunError struct {
	Patient model.PatientKey
	Err     error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("evaluate patient %s: %s", e.Patient, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// patient groups the input rows of one patient.
type patient struct {
	key   model.PatientKey
	exams []model.ExamRecord
}

// Run evaluates every patient found in in.Exams. On any failure the partial
// results are discarded and the error is returned. ctx is checked between
// patients only.
func Run(ctx context.Context, in Input, opts Options) (*Output, error) {
	if in.Period.IsZero() {
		return nil, ErrNoPeriod
	}
	if err := in.Rules.Validate(); err != nil {
		return nil, fmt.Errorf("routine rules: %w", err)
	}

	patients := groupPatients(in.Exams)
	movements := indexMovements(in.Movements)
	stays := indexStays(in.Hospitalizations)
	overrides := in.Overrides
	if overrides == nil {
		overrides = model.OverrideSet{}
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	results := make([]*model.AnalysisResult, len(patients))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for i := range patients {
		if err := gCtx.Err(); err != nil {
			break
		}
		g.Go(func() (err error) {
			p := patients[i]
			defer func() {
				if r := recover(); r != nil {
					err = &RunError{Patient: p.key, Err: fmt.Errorf("panic: %v", r)}
				}
			}()
			if err := gCtx.Err(); err != nil {
				return err
			}
			ev := evaluation{
				period:    in.Period,
				ref:       in.Period.ReferenceDate(),
				rules:     in.Rules,
				overrides: overrides,
			}
			res, err := ev.patient(p, movements[p.key.ID], stays[normalize.Fold(p.key.Name)])
			if err != nil {
				return &RunError{Patient: p.key, Err: err}
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := &Output{
		Period:        in.Period,
		Results:       make(map[model.PatientKey]*model.AnalysisResult, len(results)),
		TotalPatients: len(patients),
	}
	for _, r := range results {
		out.Results[r.Patient] = r
		if r.Active() {
			out.ActivePatients++
			if r.CycleStartApproximated {
				out.ApproximatedStarts++
			}
		}
	}
	return out, nil
}

// groupPatients splits exams by patient, ordered by name then identifier.
// Each patient's exams are sorted by date.
func groupPatients(exams []model.ExamRecord) []patient {
	byKey := make(map[model.PatientKey]*patient)
	for _, e := range exams {
		k := e.Key()
		p, ok := byKey[k]
		if !ok {
			p = &patient{key: k}
			byKey[k] = p
		}
		p.exams = append(p.exams, e)
	}
	out := make([]patient, 0, len(byKey))
	for _, p := range byKey {
		sort.SliceStable(p.exams, func(i, j int) bool {
			return p.exams[i].Date.Before(p.exams[j].Date)
		})
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].key.Name != out[j].key.Name {
			return out[i].key.Name < out[j].key.Name
		}
		return out[i].key.ID < out[j].key.ID
	})
	return out
}

// Sorted returns the results ordered by patient name then identifier.
func (o *Output) Sorted() []*model.AnalysisResult {
	out := make([]*model.AnalysisResult, 0, len(o.Results))
	for _, r := range o.Results {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Patient.Name != out[j].Patient.Name {
			return out[i].Patient.Name < out[j].Patient.Name
		}
		return out[i].Patient.ID < out[j].Patient.ID
	})
	return out
}

// Counts returns the number of patients per status.
func (o *Output) Counts() map[model.Status]int {
	c := make(map[model.Status]int, len(model.AllStatuses))
	for _, r := range o.Results {
		c[r.Status]++
	}
	return c
}

// Filter returns the sorted results whose status is in statuses (all when
// empty) and that match the name/identifier query q.
func (o *Output) Filter(statuses []model.Status, q string) []*model.AnalysisResult {
	want := make(map[model.Status]bool, len(statuses))
	for _, s := range statuses {
		want[s] = true
	}
	var out []*model.AnalysisResult
	for _, r := range o.Sorted() {
		if len(want) > 0 && !want[r.Status] {
			continue
		}
		if !r.Matches(q) {
			continue
		}
		out = append(out, r)
	}
	return out
}
