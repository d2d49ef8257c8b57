package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/nefron/examcheck/internal/db"
	"github.com/nefron/examcheck/internal/model"
	embedsql "github.com/nefron/examcheck/internal/sql"
)

// Run status values stored in analysis.runs.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// RunRecord is one row of the run audit trail.
type RunRecord struct {
	RunID          uuid.UUID  `json:"run_id"`
	Period         string     `json:"period"`
	Profile        string     `json:"profile"`
	Routine        string     `json:"routine"`
	InputSHA256    string     `json:"input_sha256"`
	Status         string     `json:"status"`
	RowsRead       int64      `json:"rows_read"`
	RowsAnalysed   int64      `json:"rows_analysed"`
	TotalPatients  int        `json:"total_patients"`
	ActivePatients int        `json:"active_patients"`
	Error          string     `json:"error,omitempty"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
}

// StartRun registers a run in the running state.
func (s *Store) StartRun(ctx context.Context, runID uuid.UUID, sum *model.RunSummary) error {
	_, err := s.pool.Exec(ctx, embedsql.StartRun,
		runID, sum.Period.String(), sum.Profile, sum.Routine, sum.InputSHA256)
	if err != nil {
		return fmt.Errorf("start run: %w", err)
	}
	return nil
}

// FinishRun records the outcome of a run. A non-nil runErr marks it failed.
func (s *Store) FinishRun(ctx context.Context, runID uuid.UUID, sum *model.RunSummary, runErr error) error {
	status := RunCompleted
	var errText *string
	if runErr != nil {
		status = RunFailed
		msg := runErr.Error()
		errText = &msg
	}
	_, err := s.pool.Exec(ctx, embedsql.FinishRun,
		runID, status, sum.RowsRead, sum.RowsAnalysed, sum.TotalPatients, sum.ActivePatients, errText)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	return nil
}

// SaveResults streams the per-patient outcome of a run into
// analysis.run_results with COPY.
func (s *Store) SaveResults(ctx context.Context, runID uuid.UUID, results []*model.AnalysisResult) (int64, error) {
	ch := make(chan *model.AnalysisResult, 256)
	go func() {
		defer close(ch)
		for _, r := range results {
			select {
			case ch <- r:
			case <-ctx.Done():
				return
			}
		}
	}()

	src := db.NewChannelSource(ch, func(r *model.AnalysisResult) []any {
		return []any{
			runID, r.Patient.ID, r.Patient.Name, r.Status.String(), r.CycleMonth,
			len(r.MandatoryPending), len(r.OptionalPending), r.Summary,
		}
	})
	n, err := s.pool.CopyFrom(ctx,
		pgx.Identifier{"analysis", "run_results"},
		[]string{"run_id", "patient_id", "patient_name", "status", "cycle_month",
			"mandatory_pending", "optional_pending", "summary"},
		src)
	if err != nil {
		// Drain so the producer goroutine exits.
		for range ch {
		}
		return n, fmt.Errorf("copy run results: %w", err)
	}
	return n, nil
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]RunRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx, embedsql.ListRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord
	for rows.Next() {
		var r RunRecord
		if err := rows.Scan(&r.RunID, &r.Period, &r.Profile, &r.Routine, &r.InputSHA256, &r.Status,
			&r.RowsRead, &r.RowsAnalysed, &r.TotalPatients, &r.ActivePatients, &r.Error,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
