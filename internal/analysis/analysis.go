// Package analysis runs the monthly exam check end to end: it loads the
// profile and routine, imports and prepares the clinic files, reads the
// manual overrides, evaluates every patient and keeps the run in memory for
// later overrides.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/nefron/examcheck/internal/engine"
	"github.com/nefron/examcheck/internal/importer"
	"github.com/nefron/examcheck/internal/metrics"
	"github.com/nefron/examcheck/internal/model"
)

// Phases reported in PhaseError.
const (
	PhaseInput     = "input"
	PhaseCatalog   = "catalog"
	PhaseImport    = "import"
	PhaseOverrides = "overrides"
	PhaseEvaluate  = "evaluate"
)

var (
	// ErrNoRoutine means the profile has no usable routine.
	ErrNoRoutine = errors.New("profile has no routine")
	// ErrRunNotFound means the run is not (or no longer) cached.
	ErrRunNotFound = errors.New("analysis run not found")
	// ErrPatientNotFound means the run has no patient with that identifier.
	ErrPatientNotFound = errors.New("patient not found in run")
	// ErrUnknownExam means the exam is not part of the run's routine.
	ErrUnknownExam = errors.New("exam not in routine")
)

// PhaseError wraps an error with the phase where it occurred.
type PhaseError struct {
	Phase string
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("%s: %s", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error {
	return e.Err
}

// Catalog is the reference data an analysis reads.
type Catalog interface {
	ListExams(ctx context.Context) ([]model.Exam, error)
	GetRoutine(ctx context.Context, name string) (*model.Routine, error)
	GetProfile(ctx context.Context, name string) (*model.Profile, error)
}

// OverrideStore persists manual overrides.
type OverrideStore interface {
	Overrides(ctx context.Context, period model.Period) (model.OverrideSet, error)
	AddOverride(ctx context.Context, o model.ManualOverride) (bool, error)
	RemoveOverride(ctx context.Context, patientID, exam string, period model.Period) (bool, error)
}

// RunRecorder keeps the audit trail of runs.
type RunRecorder interface {
	StartRun(ctx context.Context, runID uuid.UUID, sum *model.RunSummary) error
	FinishRun(ctx context.Context, runID uuid.UUID, sum *model.RunSummary, runErr error) error
	SaveResults(ctx context.Context, runID uuid.UUID, results []*model.AnalysisResult) (int64, error)
}

// Config tunes the service.
type Config struct {
	Workers   int
	CacheSize int
}

// Request describes one analysis.
type Request struct {
	Period  model.Period
	Profile string
	Sources importer.Sources
	Import  importer.Options
}

// Analysis is a finished run. It is never modified once returned; a
// re-evaluation produces a new value under the same ID.
type Analysis struct {
	ID           uuid.UUID
	Profile      model.Profile
	Summary      model.RunSummary
	Output       *engine.Output
	UnknownExams []string

	input engine.Input
}

// Service runs analyses. runs and m may be nil.
type Service struct {
	catalog   Catalog
	overrides OverrideStore
	runs      RunRecorder
	metrics   *metrics.Metrics
	cache     *RunCache
	log       zerolog.Logger
	cfg       Config

	// reevalMu serializes re-evaluations of cached runs.
	reevalMu sync.Mutex
}

func NewService(cat Catalog, overrides OverrideStore, runs RunRecorder, m *metrics.Metrics, log zerolog.Logger, cfg Config) *Service {
	return &Service{
		catalog:   cat,
		overrides: overrides,
		runs:      runs,
		metrics:   m,
		cache:     NewRunCache(cfg.CacheSize),
		log:       log,
		cfg:       cfg,
	}
}

// Run executes a full analysis: catalog → import → prepare → overrides →
// evaluate.
func (s *Service) Run(ctx context.Context, req Request) (*Analysis, error) {
	totalStart := time.Now()
	if req.Period.IsZero() {
		return nil, &PhaseError{Phase: PhaseInput, Err: engine.ErrNoPeriod}
	}

	id := uuid.New()
	log := s.log.With().
		Str("run_id", id.String()).
		Str("period", req.Period.String()).
		Str("profile", req.Profile).
		Logger()

	// Phase 1: Catalog
	profile, routine, dictionary, err := s.loadCatalog(ctx, req.Profile)
	if err != nil {
		s.metrics.ObserveRun(nil, err)
		return nil, &PhaseError{Phase: PhaseCatalog, Err: err}
	}

	sum := &model.RunSummary{
		RunID:       id.String(),
		Period:      req.Period,
		Profile:     profile.Name,
		Routine:     routine.Name,
		InputSHA256: req.Sources.Hash(),
	}
	s.startRun(ctx, id, sum, log)

	fail := func(phase string, err error) error {
		sum.DurationTotal = time.Since(totalStart)
		s.finishRun(ctx, id, sum, err, nil, log)
		s.metrics.ObserveRun(sum, err)
		return &PhaseError{Phase: phase, Err: err}
	}

	// Phase 2: Import
	log.Info().Msg("importing files")
	importStart := time.Now()
	ds, err := importer.Load(req.Sources, req.Import)
	if err != nil {
		return nil, fail(PhaseImport, err)
	}
	sum.DurationImport = time.Since(importStart)

	// Phase 3: Prepare
	prepareStart := time.Now()
	prep := Prepare(ds, *profile, dictionary, log)
	sum.RowsRead = prep.RowsRead
	sum.RowsDropped = prep.RowsDropped
	sum.RowsFilteredClinic = prep.RowsFilteredClinic
	sum.RowsUnknownExam = prep.RowsUnknownExam
	sum.RowsAnalysed = int64(len(prep.Exams))
	sum.DurationPrepare = time.Since(prepareStart)

	// Phase 4: Overrides
	overrides, err := s.overrides.Overrides(ctx, req.Period)
	if err != nil {
		return nil, fail(PhaseOverrides, err)
	}

	// Phase 5: Evaluate
	in := engine.Input{
		Period:           req.Period,
		Exams:            prep.Exams,
		Movements:        prep.Movements,
		Hospitalizations: prep.Hospitalizations,
		Rules:            routine.Rules.WithDefaults(model.ExamNames(dictionary)),
		Overrides:        overrides,
	}
	evalStart := time.Now()
	out, err := engine.Run(ctx, in, engine.Options{Workers: s.cfg.Workers})
	if err != nil {
		return nil, fail(PhaseEvaluate, err)
	}
	sum.DurationEvaluate = time.Since(evalStart)
	fillCounts(sum, out)
	sum.DurationTotal = time.Since(totalStart)

	a := &Analysis{
		ID:           id,
		Profile:      *profile,
		Summary:      *sum,
		Output:       out,
		UnknownExams: prep.UnknownExams,
		input:        in,
	}
	s.finishRun(ctx, id, sum, nil, out, log)
	s.metrics.ObserveRun(sum, nil)
	s.cache.Put(a)

	log.Info().
		Int("patients", sum.TotalPatients).
		Int("active", sum.ActivePatients).
		Int("compliant", sum.StatusCounts[model.StatusCompliant]).
		Int("pending", sum.StatusCounts[model.StatusPending]).
		Int("collection_pending", sum.StatusCounts[model.StatusCollectionPending]).
		Int("hospitalized", sum.StatusCounts[model.StatusHospitalized]).
		Int("inactive", sum.StatusCounts[model.StatusInactive]).
		Int("approximated_starts", sum.ApproximatedStarts).
		Dur("duration", sum.DurationTotal).
		Msg("analysis complete")
	return a, nil
}

func (s *Service) loadCatalog(ctx context.Context, profileName string) (*model.Profile, *model.Routine, []model.Exam, error) {
	profile, err := s.catalog.GetProfile(ctx, profileName)
	if err != nil {
		return nil, nil, nil, err
	}
	if profile.Routine == "" {
		return nil, nil, nil, fmt.Errorf("%w: %q", ErrNoRoutine, profile.Name)
	}
	routine, err := s.catalog.GetRoutine(ctx, profile.Routine)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("%w: profile %q: %w", ErrNoRoutine, profile.Name, err)
	}
	dictionary, err := s.catalog.ListExams(ctx)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("load exam dictionary: %w", err)
	}
	return profile, routine, dictionary, nil
}

func fillCounts(sum *model.RunSummary, out *engine.Output) {
	sum.TotalPatients = out.TotalPatients
	sum.ActivePatients = out.ActivePatients
	sum.ApproximatedStarts = out.ApproximatedStarts
	sum.StatusCounts = out.Counts()
}

// startRun and finishRun write the audit trail. Failures are logged and do
// not fail the analysis.
func (s *Service) startRun(ctx context.Context, id uuid.UUID, sum *model.RunSummary, log zerolog.Logger) {
	if s.runs == nil {
		return
	}
	if err := s.runs.StartRun(ctx, id, sum); err != nil {
		log.Warn().Err(err).Msg("run audit start failed (non-fatal)")
	}
}

func (s *Service) finishRun(ctx context.Context, id uuid.UUID, sum *model.RunSummary, runErr error, out *engine.Output, log zerolog.Logger) {
	if s.runs == nil {
		return
	}
	if out != nil {
		n, err := s.runs.SaveResults(ctx, id, out.Sorted())
		if err != nil {
			log.Warn().Err(err).Msg("saving run results failed (non-fatal)")
		} else {
			log.Debug().Int64("rows", n).Msg("run results saved")
		}
	}
	if err := s.runs.FinishRun(ctx, id, sum, runErr); err != nil {
		log.Warn().Err(err).Msg("run audit finish failed (non-fatal)")
	}
}

// Get returns a cached analysis.
func (s *Service) Get(id uuid.UUID) (*Analysis, error) {
	a, ok := s.cache.Get(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return a, nil
}
