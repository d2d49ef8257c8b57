package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nefron/examcheck/internal/catalog"
	embedsql "github.com/nefron/examcheck/internal/sql"
)

// SeedIfEmpty loads cat when the store holds no exam and no routine.
// It reports whether anything was written.
func (s *Store) SeedIfEmpty(ctx context.Context, cat *catalog.Catalog) (bool, error) {
	seeded := false
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var exams, routines int64
		if err := tx.QueryRow(ctx, embedsql.CountCatalog).Scan(&exams, &routines); err != nil {
			return fmt.Errorf("count catalog: %w", err)
		}
		if exams > 0 || routines > 0 {
			s.log.Info().Int64("exams", exams).Int64("routines", routines).Msg("catalog already populated, skipping seed")
			return nil
		}

		if _, err := tx.Exec(ctx, embedsql.InsertClinics, cat.Clinics); err != nil {
			return fmt.Errorf("seed clinics: %w", err)
		}
		if err := saveExams(ctx, tx, cat.Exams); err != nil {
			return fmt.Errorf("seed exams: %w", err)
		}
		for _, r := range cat.Routines {
			if err := saveRoutine(ctx, tx, r); err != nil {
				return fmt.Errorf("seed routine %q: %w", r.Name, err)
			}
		}
		for _, p := range cat.Profiles {
			if err := s.saveProfile(ctx, tx, p.Name, p); err != nil {
				return fmt.Errorf("seed profile %q: %w", p.Name, err)
			}
		}
		seeded = true
		s.log.Info().
			Int("clinics", len(cat.Clinics)).
			Int("exams", len(cat.Exams)).
			Int("routines", len(cat.Routines)).
			Int("profiles", len(cat.Profiles)).
			Msg("catalog seeded")
		return nil
	})
	return seeded, err
}

// ImportRoutines saves every routine of cat, replacing routines with the
// same name.
func (s *Store) ImportRoutines(ctx context.Context, cat *catalog.Catalog) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		for _, r := range cat.Routines {
			if err := r.Rules.Validate(); err != nil {
				return fmt.Errorf("routine %q: %w", r.Name, err)
			}
			if err := saveRoutine(ctx, tx, r); err != nil {
				return fmt.Errorf("import routine %q: %w", r.Name, err)
			}
		}
		return nil
	})
}

// Export reads the whole catalog back.
func (s *Store) Export(ctx context.Context) (*catalog.Catalog, error) {
	cat := &catalog.Catalog{}
	var err error
	if cat.Clinics, err = s.ListClinics(ctx); err != nil {
		return nil, err
	}
	if cat.Exams, err = s.ListExams(ctx); err != nil {
		return nil, err
	}
	names, err := s.ListRoutines(ctx)
	if err != nil {
		return nil, err
	}
	for _, n := range names {
		r, err := s.GetRoutine(ctx, n)
		if err != nil {
			return nil, err
		}
		cat.Routines = append(cat.Routines, *r)
	}
	if cat.Profiles, err = s.ListProfiles(ctx); err != nil {
		return nil, err
	}
	return cat, nil
}
