package store

import (
	"context"
	"fmt"

	"github.com/nefron/examcheck/internal/model"
	embedsql "github.com/nefron/examcheck/internal/sql"
)

// DefaultMarkedBy is recorded when no author is given.
const DefaultMarkedBy = "default"

// AddOverride records that exam is resolved for the patient in period.
// Adding an existing override is a no-op; added reports whether a row was
// written.
func (s *Store) AddOverride(ctx context.Context, o model.ManualOverride) (added bool, err error) {
	if o.MarkedBy == "" {
		o.MarkedBy = DefaultMarkedBy
	}
	tag, err := s.pool.Exec(ctx, embedsql.AddOverride, o.PatientID, o.Exam, o.Period.String(), o.MarkedBy)
	if err != nil {
		return false, fmt.Errorf("add override: %w", err)
	}
	s.log.Info().
		Str("patient_id", o.PatientID).
		Str("exam", o.Exam).
		Str("period", o.Period.String()).
		Bool("added", tag.RowsAffected() > 0).
		Msg("override recorded")
	return tag.RowsAffected() > 0, nil
}

// RemoveOverride deletes an override. Removing a missing one is a no-op.
func (s *Store) RemoveOverride(ctx context.Context, patientID, exam string, period model.Period) (removed bool, err error) {
	tag, err := s.pool.Exec(ctx, embedsql.RemoveOverride, patientID, exam, period.String())
	if err != nil {
		return false, fmt.Errorf("remove override: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// ListOverrides returns the overrides recorded for period.
func (s *Store) ListOverrides(ctx context.Context, period model.Period) ([]model.ManualOverride, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListOverrides, period.String())
	if err != nil {
		return nil, fmt.Errorf("list overrides: %w", err)
	}
	defer rows.Close()

	var out []model.ManualOverride
	for rows.Next() {
		var o model.ManualOverride
		var p string
		if err := rows.Scan(&o.PatientID, &o.Exam, &p, &o.MarkedBy, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan override: %w", err)
		}
		if o.Period, err = model.ParsePeriod(p); err != nil {
			return nil, fmt.Errorf("override period: %w", err)
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Overrides returns the override set of period, ready for the engine.
func (s *Store) Overrides(ctx context.Context, period model.Period) (model.OverrideSet, error) {
	list, err := s.ListOverrides(ctx, period)
	if err != nil {
		return nil, err
	}
	return model.NewOverrideSet(period, list), nil
}

// PruneOverrides deletes overrides created more than months ago and returns
// how many were removed.
func (s *Store) PruneOverrides(ctx context.Context, months int) (int64, error) {
	if months < 1 {
		return 0, fmt.Errorf("retention must be at least one month, got %d", months)
	}
	tag, err := s.pool.Exec(ctx, embedsql.PruneOverrides, months)
	if err != nil {
		return 0, fmt.Errorf("prune overrides: %w", err)
	}
	s.log.Info().Int64("deleted", tag.RowsAffected()).Int("months_kept", months).Msg("old overrides pruned")
	return tag.RowsAffected(), nil
}
