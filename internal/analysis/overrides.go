package analysis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/nefron/examcheck/internal/engine"
	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/normalize"
)

// MarkResolved records that exam is resolved for the patient in the run's
// period, then re-evaluates the run. It returns the patient's new result.
// Marking an already resolved exam is a no-op that still returns the result.
func (s *Service) MarkResolved(ctx context.Context, runID uuid.UUID, patientID, exam, markedBy string) (*model.AnalysisResult, error) {
	return s.changeOverride(ctx, runID, patientID, exam, func(a *Analysis, id string) (bool, error) {
		return s.overrides.AddOverride(ctx, model.ManualOverride{
			PatientID: id,
			Exam:      exam,
			Period:    a.input.Period,
			MarkedBy:  markedBy,
		})
	}, func(set model.OverrideSet, id string) { set.Add(id, exam) }, "added")
}

// Unresolve removes a manual override and re-evaluates the run.
func (s *Service) Unresolve(ctx context.Context, runID uuid.UUID, patientID, exam string) (*model.AnalysisResult, error) {
	return s.changeOverride(ctx, runID, patientID, exam, func(a *Analysis, id string) (bool, error) {
		return s.overrides.RemoveOverride(ctx, id, exam, a.input.Period)
	}, func(set model.OverrideSet, id string) { set.Remove(id, exam) }, "removed")
}

func (s *Service) changeOverride(
	ctx context.Context,
	runID uuid.UUID,
	patientID, exam string,
	persist func(a *Analysis, id string) (bool, error),
	apply func(set model.OverrideSet, id string),
	action string,
) (*model.AnalysisResult, error) {
	s.reevalMu.Lock()
	defer s.reevalMu.Unlock()

	a, err := s.Get(runID)
	if err != nil {
		return nil, err
	}
	id := normalize.PatientID(patientID)
	key, ok := findPatient(a.Output, id)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPatientNotFound, patientID)
	}
	if _, ok := a.input.Rules[exam]; !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownExam, exam)
	}

	changed, err := persist(a, id)
	if err != nil {
		return nil, fmt.Errorf("%s override: %w", action, err)
	}
	if changed {
		s.metrics.ObserveOverride(action)
	}

	in := a.input
	in.Overrides = a.input.Overrides.Clone()
	apply(in.Overrides, id)

	start := time.Now()
	out, err := engine.Run(ctx, in, engine.Options{Workers: s.cfg.Workers})
	if err != nil {
		return nil, &PhaseError{Phase: PhaseEvaluate, Err: err}
	}

	next := *a
	next.input = in
	next.Output = out
	next.Summary.DurationEvaluate = time.Since(start)
	fillCounts(&next.Summary, out)
	s.cache.Put(&next)
	s.metrics.SetPatients(next.Summary.StatusCounts)

	s.log.Info().
		Str("run_id", runID.String()).
		Str("patient_id", id).
		Str("exam", exam).
		Str("action", action).
		Bool("changed", changed).
		Str("status", out.Results[key].Status.String()).
		Msg("override applied, run re-evaluated")
	return out.Results[key], nil
}

// findPatient returns the first patient (by name) carrying id.
func findPatient(out *engine.Output, id string) (model.PatientKey, bool) {
	for _, r := range out.Sorted() {
		if r.Patient.ID == id {
			return r.Patient, true
		}
	}
	return model.PatientKey{}, false
}

// MemoryOverrides is an OverrideStore kept in process memory, used when
// no database is configured.
type MemoryOverrides struct {
	mu   sync.Mutex
	list []model.ManualOverride
}

func (m *MemoryOverrides) Overrides(ctx context.Context, period model.Period) (model.OverrideSet, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return model.NewOverrideSet(period, m.list), nil
}

func (m *MemoryOverrides) AddOverride(ctx context.Context, o model.ManualOverride) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.list {
		if e.PatientID == o.PatientID && e.Exam == o.Exam && e.Period == o.Period {
			return false, nil
		}
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	m.list = append(m.list, o)
	return true, nil
}

func (m *MemoryOverrides) RemoveOverride(ctx context.Context, patientID, exam string, period model.Period) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, e := range m.list {
		if e.PatientID == patientID && e.Exam == exam && e.Period == period {
			m.list = append(m.list[:i], m.list[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}
