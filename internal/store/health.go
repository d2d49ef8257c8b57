package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	embedsql "github.com/nefron/examcheck/internal/sql"
)

// RequiredTables lists the tables the migrations create.
var RequiredTables = []string{
	"catalog.clinics",
	"catalog.exams",
	"catalog.exam_aliases",
	"catalog.routines",
	"catalog.routine_rules",
	"catalog.profiles",
	"catalog.profile_clinics",
	"analysis.manual_overrides",
	"analysis.runs",
	"analysis.run_results",
}

// Stats holds row counts of the main tables.
type Stats struct {
	Clinics   int64 `json:"clinics"`
	Exams     int64 `json:"exams"`
	Aliases   int64 `json:"aliases"`
	Routines  int64 `json:"routines"`
	Profiles  int64 `json:"profiles"`
	Overrides int64 `json:"overrides"`
	Runs      int64 `json:"runs"`
}

// CheckIntegrity returns the required tables that are missing.
func (s *Store) CheckIntegrity(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, embedsql.RequiredTables)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	present, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, fmt.Errorf("scan tables: %w", err)
	}
	have := make(map[string]bool, len(present))
	for _, t := range present {
		have[t] = true
	}
	var missing []string
	for _, t := range RequiredTables {
		if !have[t] {
			missing = append(missing, t)
		}
	}
	if len(missing) > 0 {
		s.log.Warn().Strs("missing", missing).Msg("integrity check failed")
	}
	return missing, nil
}

// Stats counts the rows of the catalog and analysis tables.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	var st Stats
	err := s.pool.QueryRow(ctx, embedsql.Stats).Scan(
		&st.Clinics, &st.Exams, &st.Aliases, &st.Routines, &st.Profiles, &st.Overrides, &st.Runs)
	if err != nil {
		return nil, fmt.Errorf("stats: %w", err)
	}
	return &st, nil
}
