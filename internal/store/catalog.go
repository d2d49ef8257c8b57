package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/rules"
	embedsql "github.com/nefron/examcheck/internal/sql"
)

// ListClinics returns the clinic names in alphabetical order.
func (s *Store) ListClinics(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListClinics)
	if err != nil {
		return nil, fmt.Errorf("list clinics: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// SaveClinics replaces the clinic list. Profiles keep the clinics that
// survive and lose the removed ones.
func (s *Store) SaveClinics(ctx context.Context, names []string) error {
	if names == nil {
		names = []string{}
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, embedsql.DeleteOtherClinics, names); err != nil {
			return fmt.Errorf("delete clinics: %w", err)
		}
		if _, err := tx.Exec(ctx, embedsql.InsertClinics, names); err != nil {
			return fmt.Errorf("insert clinics: %w", err)
		}
		s.log.Info().Int("clinics", len(names)).Msg("clinics saved")
		return nil
	})
}

// ListExams returns the exam dictionary ordered by name.
func (s *Store) ListExams(ctx context.Context) ([]model.Exam, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListExams)
	if err != nil {
		return nil, fmt.Errorf("list exams: %w", err)
	}
	defer rows.Close()

	var out []model.Exam
	for rows.Next() {
		var e model.Exam
		if err := rows.Scan(&e.Name, &e.Aliases); err != nil {
			return nil, fmt.Errorf("scan exam: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// SaveExams replaces the exam dictionary.
func (s *Store) SaveExams(ctx context.Context, exams []model.Exam) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return saveExams(ctx, tx, exams)
	})
}

func saveExams(ctx context.Context, tx pgx.Tx, exams []model.Exam) error {
	if _, err := tx.Exec(ctx, embedsql.DeleteExams); err != nil {
		return fmt.Errorf("delete exams: %w", err)
	}
	var aliases [][]any
	for _, e := range exams {
		var id int64
		if err := tx.QueryRow(ctx, embedsql.InsertExam, e.Name).Scan(&id); err != nil {
			return fmt.Errorf("insert exam %q: %w", e.Name, err)
		}
		seen := make(map[string]bool, len(e.Aliases))
		for _, a := range e.Aliases {
			if a == "" || seen[a] {
				continue
			}
			seen[a] = true
			aliases = append(aliases, []any{id, a})
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"catalog", "exam_aliases"},
		[]string{"exam_id", "alias"},
		pgx.CopyFromRows(aliases)); err != nil {
		return fmt.Errorf("copy aliases: %w", err)
	}
	return nil
}

// ListRoutines returns the routine names in alphabetical order.
func (s *Store) ListRoutines(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListRoutines)
	if err != nil {
		return nil, fmt.Errorf("list routines: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// GetRoutine loads a routine with each exam's rules in position order.
func (s *Store) GetRoutine(ctx context.Context, name string) (*model.Routine, error) {
	if _, err := s.routineID(ctx, s.pool, name); err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, embedsql.RoutineRules, name)
	if err != nil {
		return nil, fmt.Errorf("load routine rules: %w", err)
	}
	defer rows.Close()

	r := &model.Routine{Name: name, Rules: rules.Set{}}
	for rows.Next() {
		var exam, period, freq, kind string
		if err := rows.Scan(&exam, &period, &freq, &kind); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		rule, err := parseRule(period, freq, kind)
		if err != nil {
			return nil, fmt.Errorf("routine %q exam %q: %w", name, exam, err)
		}
		r.Rules[exam] = append(r.Rules[exam], rule)
	}
	return r, rows.Err()
}

func parseRule(period, freq, kind string) (rules.Rule, error) {
	var r rules.Rule
	var err error
	if r.Period, err = rules.ParsePeriod(period); err != nil {
		return r, err
	}
	if r.Frequency, err = rules.ParseFrequency(freq); err != nil {
		return r, err
	}
	if r.Kind, err = rules.ParseKind(kind); err != nil {
		return r, err
	}
	return r, nil
}

type queryRower interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

func (s *Store) routineID(ctx context.Context, q queryRower, name string) (int64, error) {
	var id int64
	err := q.QueryRow(ctx, embedsql.RoutineID, name).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("%w: %q", ErrRoutineNotFound, name)
	}
	if err != nil {
		return 0, fmt.Errorf("lookup routine: %w", err)
	}
	return id, nil
}

// SaveRoutine creates or replaces a routine. The rule set must be valid.
func (s *Store) SaveRoutine(ctx context.Context, r model.Routine) error {
	if err := r.Rules.Validate(); err != nil {
		return fmt.Errorf("routine %q: %w", r.Name, err)
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return saveRoutine(ctx, tx, r)
	})
}

func saveRoutine(ctx context.Context, tx pgx.Tx, r model.Routine) error {
	var id int64
	if err := tx.QueryRow(ctx, embedsql.UpsertRoutine, r.Name).Scan(&id); err != nil {
		return fmt.Errorf("upsert routine: %w", err)
	}
	if _, err := tx.Exec(ctx, embedsql.ClearRoutineRules, id); err != nil {
		return fmt.Errorf("clear routine rules: %w", err)
	}

	var rows [][]any
	for _, exam := range r.Rules.Exams() {
		for pos, rule := range r.Rules[exam] {
			rows = append(rows, []any{id, exam, pos, rule.Period.String(), rule.Frequency.String(), rule.Kind.String()})
		}
	}
	if _, err := tx.CopyFrom(ctx,
		pgx.Identifier{"catalog", "routine_rules"},
		[]string{"routine_id", "exam", "position", "period", "frequency", "kind"},
		pgx.CopyFromRows(rows)); err != nil {
		return fmt.Errorf("copy routine rules: %w", err)
	}
	return nil
}

// CopyRoutine creates routine name with the rules of base.
func (s *Store) CopyRoutine(ctx context.Context, name, base string) error {
	return s.inTx(ctx, func(tx pgx.Tx) error {
		baseID, err := s.routineID(ctx, tx, base)
		if err != nil {
			return err
		}
		var id int64
		err = tx.QueryRow(ctx, embedsql.InsertRoutine, name).Scan(&id)
		if pgCode(err) == pgUniqueViolation {
			return fmt.Errorf("%w: %q", ErrRoutineExists, name)
		}
		if err != nil {
			return fmt.Errorf("insert routine: %w", err)
		}
		if _, err := tx.Exec(ctx, embedsql.CopyRoutine, id, baseID); err != nil {
			return fmt.Errorf("copy rules: %w", err)
		}
		s.log.Info().Str("routine", name).Str("base", base).Msg("routine created")
		return nil
	})
}

// DeleteRoutine removes a routine. Routines used by a profile are kept.
func (s *Store) DeleteRoutine(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, embedsql.DeleteRoutine, name)
	if pgCode(err) == pgForeignKeyViolation {
		return fmt.Errorf("%w: %q", ErrRoutineInUse, name)
	}
	if err != nil {
		return fmt.Errorf("delete routine: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrRoutineNotFound, name)
	}
	s.log.Info().Str("routine", name).Msg("routine deleted")
	return nil
}

// ListProfiles returns every profile with its routine and clinics.
func (s *Store) ListProfiles(ctx context.Context) ([]model.Profile, error) {
	return s.profiles(ctx, nil)
}

// GetProfile returns the profile called name.
func (s *Store) GetProfile(ctx context.Context, name string) (*model.Profile, error) {
	list, err := s.profiles(ctx, &name)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return &list[0], nil
}

func (s *Store) profiles(ctx context.Context, name *string) ([]model.Profile, error) {
	rows, err := s.pool.Query(ctx, embedsql.ListProfiles, name)
	if err != nil {
		return nil, fmt.Errorf("list profiles: %w", err)
	}
	defer rows.Close()

	var out []model.Profile
	for rows.Next() {
		var p model.Profile
		if err := rows.Scan(&p.Name, &p.Routine, &p.Clinics); err != nil {
			return nil, fmt.Errorf("scan profile: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveProfile creates a profile, or updates the one called original
// (renaming it to p.Name). Clinics not in the clinic list are ignored.
func (s *Store) SaveProfile(ctx context.Context, original string, p model.Profile) error {
	if original == "" {
		original = p.Name
	}
	return s.inTx(ctx, func(tx pgx.Tx) error {
		return s.saveProfile(ctx, tx, original, p)
	})
}

func (s *Store) saveProfile(ctx context.Context, tx pgx.Tx, original string, p model.Profile) error {
	routineID, err := s.routineID(ctx, tx, p.Routine)
	if err != nil {
		return err
	}
	var id int64
	if err := tx.QueryRow(ctx, embedsql.SaveProfile, original, p.Name, routineID).Scan(&id); err != nil {
		return fmt.Errorf("save profile: %w", err)
	}
	if _, err := tx.Exec(ctx, embedsql.ClearProfileClinics, id); err != nil {
		return fmt.Errorf("clear profile clinics: %w", err)
	}
	if _, err := tx.Exec(ctx, embedsql.SetProfileClinics, id, p.Clinics); err != nil {
		return fmt.Errorf("set profile clinics: %w", err)
	}
	s.log.Info().Str("profile", p.Name).Str("routine", p.Routine).Int("clinics", len(p.Clinics)).Msg("profile saved")
	return nil
}

// DeleteProfile removes a profile.
func (s *Store) DeleteProfile(ctx context.Context, name string) error {
	tag, err := s.pool.Exec(ctx, embedsql.DeleteProfile, name)
	if err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return nil
}
