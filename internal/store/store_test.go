package store_test

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"
	"time"

	embeddedpostgres "github.com/fergusstrange/embedded-postgres"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/errgroup"

	"github.com/nefron/examcheck/internal/catalog"
	"github.com/nefron/examcheck/internal/db"
	"github.com/nefron/examcheck/internal/logging"
	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/rules"
	"github.com/nefron/examcheck/internal/store"
)

const (
	testPort     = 15433
	testDB       = "examchecktest"
	testUser     = "postgres"
	testPassword = "postgres"
)

var testDSN string

func TestMain(m *testing.M) {
	if os.Getenv("EXAMCHECK_SKIP_PG") == "1" {
		fmt.Fprintln(os.Stderr, "SKIP: EXAMCHECK_SKIP_PG=1")
		os.Exit(0)
	}

	testDSN = fmt.Sprintf("postgresql://%s:%s@localhost:%d/%s?sslmode=disable",
		testUser, testPassword, testPort, testDB)

	pg := embeddedpostgres.NewDatabase(
		embeddedpostgres.DefaultConfig().
			Port(uint32(testPort)).
			Database(testDB).
			Username(testUser).
			Password(testPassword).
			Version(embeddedpostgres.V16).
			StartTimeout(30*time.Second),
	)

	if err := pg.Start(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to start embedded postgres: %v\n", err)
		os.Exit(1)
	}

	code := m.Run()

	if err := pg.Stop(); err != nil {
		fmt.Fprintf(os.Stderr, "failed to stop embedded postgres: %v\n", err)
	}

	os.Exit(code)
}

// setupStore recreates the schemas and returns a seeded store.
func setupStore(t *testing.T) (*store.Store, *pgxpool.Pool) {
	t.Helper()
	ctx := context.Background()

	pool, err := db.NewPool(ctx, testDSN, db.PoolOptions{MaxConns: 4})
	if err != nil {
		t.Fatalf("connect: %v", err)
	}

	for _, schema := range []string{"catalog", "analysis"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Fatalf("drop schema %s: %v", schema, err)
		}
	}

	log := logging.Setup("text", "warn")
	if err := db.ApplyMigrations(ctx, pool, log); err != nil {
		pool.Close()
		t.Fatalf("migrations: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	s := store.New(pool, log)
	seeded, err := s.SeedIfEmpty(ctx, catalog.Default())
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if !seeded {
		t.Fatal("expected a fresh store to be seeded")
	}
	return s, pool
}

func TestMigrationsIdempotent(t *testing.T) {
	_, pool := setupStore(t)
	if err := db.ApplyMigrations(context.Background(), pool, logging.Setup("text", "warn")); err != nil {
		t.Fatalf("second ApplyMigrations: %v", err)
	}
}

func TestMigrationsConcurrent(t *testing.T) {
	s, pool := setupStore(t)
	ctx := context.Background()
	for _, schema := range []string{"catalog", "analysis"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf("DROP SCHEMA IF EXISTS %s CASCADE", schema)); err != nil {
			t.Fatalf("drop schema %s: %v", schema, err)
		}
	}

	log := logging.Setup("text", "warn")
	var g errgroup.Group
	for i := 0; i < 3; i++ {
		g.Go(func() error { return db.ApplyMigrations(ctx, pool, log) })
	}
	if err := g.Wait(); err != nil {
		t.Fatalf("concurrent ApplyMigrations: %v", err)
	}
	missing, err := s.CheckIntegrity(ctx)
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing tables after concurrent migrations: %v", missing)
	}
}

func TestSeed(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	again, err := s.SeedIfEmpty(ctx, catalog.Default())
	if err != nil {
		t.Fatalf("second seed: %v", err)
	}
	if again {
		t.Error("seeding a populated store must be a no-op")
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Clinics != 2 || st.Exams != 49 || st.Routines != 1 || st.Profiles != 1 {
		t.Errorf("stats = %+v", st)
	}

	missing, err := s.CheckIntegrity(ctx)
	if err != nil {
		t.Fatalf("CheckIntegrity: %v", err)
	}
	if len(missing) != 0 {
		t.Errorf("missing tables: %v", missing)
	}
}

func TestRoutines(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	r, err := s.GetRoutine(ctx, "Padrão")
	if err != nil {
		t.Fatalf("GetRoutine: %v", err)
	}
	want := catalog.Default().Routines[0].Rules
	if len(r.Rules) != len(want) {
		t.Fatalf("expected %d exams, got %d", len(want), len(r.Rules))
	}
	if got := r.Rules["PTH"][0]; got != want["PTH"][0] {
		t.Errorf("PTH = %v, want %v", got, want["PTH"][0])
	}

	t.Run("save_keeps_rule_order", func(t *testing.T) {
		custom := model.Routine{Name: "Local", Rules: rules.Set{
			"PTH": {
				{Period: rules.FirstYear, Frequency: rules.Monthly, Kind: rules.Mandatory},
				{Period: rules.Always, Frequency: rules.Quarterly, Kind: rules.Optional},
			},
		}}
		if err := s.SaveRoutine(ctx, custom); err != nil {
			t.Fatalf("SaveRoutine: %v", err)
		}
		got, err := s.GetRoutine(ctx, "Local")
		if err != nil {
			t.Fatalf("GetRoutine: %v", err)
		}
		list := got.Rules["PTH"]
		if len(list) != 2 || list[0] != custom.Rules["PTH"][0] || list[1] != custom.Rules["PTH"][1] {
			t.Errorf("PTH rules = %v", list)
		}
	})

	t.Run("save_rejects_invalid", func(t *testing.T) {
		err := s.SaveRoutine(ctx, model.Routine{Name: "Empty"})
		if !errors.Is(err, rules.ErrEmptyRuleSet) {
			t.Errorf("expected ErrEmptyRuleSet, got %v", err)
		}
	})

	t.Run("copy", func(t *testing.T) {
		if err := s.CopyRoutine(ctx, "Cópia", "Padrão"); err != nil {
			t.Fatalf("CopyRoutine: %v", err)
		}
		cp, err := s.GetRoutine(ctx, "Cópia")
		if err != nil {
			t.Fatalf("GetRoutine: %v", err)
		}
		if len(cp.Rules) != len(want) {
			t.Errorf("copy has %d exams, want %d", len(cp.Rules), len(want))
		}
		if err := s.CopyRoutine(ctx, "Cópia", "Padrão"); !errors.Is(err, store.ErrRoutineExists) {
			t.Errorf("expected ErrRoutineExists, got %v", err)
		}
		if err := s.CopyRoutine(ctx, "X", "missing"); !errors.Is(err, store.ErrRoutineNotFound) {
			t.Errorf("expected ErrRoutineNotFound, got %v", err)
		}
	})

	t.Run("delete", func(t *testing.T) {
		if err := s.DeleteRoutine(ctx, "Padrão"); !errors.Is(err, store.ErrRoutineInUse) {
			t.Errorf("expected ErrRoutineInUse, got %v", err)
		}
		if err := s.DeleteRoutine(ctx, "Cópia"); err != nil {
			t.Errorf("DeleteRoutine: %v", err)
		}
		if _, err := s.GetRoutine(ctx, "Cópia"); !errors.Is(err, store.ErrRoutineNotFound) {
			t.Errorf("expected ErrRoutineNotFound after delete, got %v", err)
		}
	})
}

func TestProfiles(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	p, err := s.GetProfile(ctx, "Padrão")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if p.Routine != "Padrão" || len(p.Clinics) != 2 {
		t.Errorf("profile = %+v", p)
	}

	// Rename, narrow the clinics and ignore an unknown one.
	err = s.SaveProfile(ctx, "Padrão", model.Profile{
		Name: "Rim", Routine: "Padrão", Clinics: []string{"Clinica do Rim", "Nowhere"},
	})
	if err != nil {
		t.Fatalf("SaveProfile: %v", err)
	}
	if _, err := s.GetProfile(ctx, "Padrão"); !errors.Is(err, store.ErrProfileNotFound) {
		t.Errorf("old name should be gone, got %v", err)
	}
	p, err = s.GetProfile(ctx, "Rim")
	if err != nil {
		t.Fatalf("GetProfile: %v", err)
	}
	if len(p.Clinics) != 1 || p.Clinics[0] != "Clinica do Rim" {
		t.Errorf("clinics = %v", p.Clinics)
	}

	if err := s.SaveProfile(ctx, "", model.Profile{Name: "X", Routine: "missing"}); !errors.Is(err, store.ErrRoutineNotFound) {
		t.Errorf("expected ErrRoutineNotFound, got %v", err)
	}

	// Removing a clinic removes it from profiles.
	if err := s.SaveClinics(ctx, []string{"Instituto do Rim"}); err != nil {
		t.Fatalf("SaveClinics: %v", err)
	}
	p, _ = s.GetProfile(ctx, "Rim")
	if len(p.Clinics) != 0 {
		t.Errorf("clinics after removal = %v", p.Clinics)
	}

	if err := s.DeleteProfile(ctx, "Rim"); err != nil {
		t.Fatalf("DeleteProfile: %v", err)
	}
	if err := s.DeleteProfile(ctx, "Rim"); !errors.Is(err, store.ErrProfileNotFound) {
		t.Errorf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestExams(t *testing.T) {
	s, _ := setupStore(t)
	ctx := context.Background()

	err := s.SaveExams(ctx, []model.Exam{
		{Name: "Calcio", Aliases: []string{"Ca", "Ca", "Cálcio"}},
		{Name: "PTH"},
	})
	if err != nil {
		t.Fatalf("SaveExams: %v", err)
	}
	exams, err := s.ListExams(ctx)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(exams) != 2 {
		t.Fatalf("expected 2 exams, got %+v", exams)
	}
	if exams[0].Name != "Calcio" || len(exams[0].Aliases) != 2 {
		t.Errorf("Calcio = %+v", exams[0])
	}
	if len(exams[1].Aliases) != 0 {
		t.Errorf("PTH aliases = %v", exams[1].Aliases)
	}
}

func TestOverrides(t *testing.T) {
	s, pool := setupStore(t)
	ctx := context.Background()
	apr := model.Period{Year: 2023, Month: time.April}

	o := model.ManualOverride{PatientID: "000000000012345", Exam: "PTH", Period: apr}
	added, err := s.AddOverride(ctx, o)
	if err != nil || !added {
		t.Fatalf("AddOverride: added=%v err=%v", added, err)
	}
	added, err = s.AddOverride(ctx, o)
	if err != nil || added {
		t.Fatalf("second AddOverride must be a no-op: added=%v err=%v", added, err)
	}

	list, err := s.ListOverrides(ctx, apr)
	if err != nil {
		t.Fatalf("ListOverrides: %v", err)
	}
	if len(list) != 1 || list[0].MarkedBy != store.DefaultMarkedBy || list[0].Period != apr {
		t.Errorf("overrides = %+v", list)
	}

	set, err := s.Overrides(ctx, apr)
	if err != nil {
		t.Fatalf("Overrides: %v", err)
	}
	if !set.Has(o.PatientID, "PTH") {
		t.Error("override set missing PTH")
	}
	other, _ := s.Overrides(ctx, apr.AddMonths(1))
	if len(other) != 0 {
		t.Errorf("overrides must not leak across periods: %v", other)
	}

	t.Run("prune", func(t *testing.T) {
		old := model.ManualOverride{PatientID: "1", Exam: "Calcio", Period: apr}
		s.AddOverride(ctx, old)
		if _, err := pool.Exec(ctx,
			"UPDATE analysis.manual_overrides SET created_at = now() - interval '13 months' WHERE patient_id = '1'"); err != nil {
			t.Fatal(err)
		}
		n, err := s.PruneOverrides(ctx, 12)
		if err != nil {
			t.Fatalf("PruneOverrides: %v", err)
		}
		if n != 1 {
			t.Errorf("pruned %d, want 1", n)
		}
		if _, err := s.PruneOverrides(ctx, 0); err == nil {
			t.Error("expected error for zero retention")
		}
	})

	removed, err := s.RemoveOverride(ctx, o.PatientID, "PTH", apr)
	if err != nil || !removed {
		t.Fatalf("RemoveOverride: removed=%v err=%v", removed, err)
	}
	removed, _ = s.RemoveOverride(ctx, o.PatientID, "PTH", apr)
	if removed {
		t.Error("second remove should report nothing removed")
	}
}

func TestRuns(t *testing.T) {
	s, pool := setupStore(t)
	ctx := context.Background()

	id := uuid.New()
	sum := &model.RunSummary{Period: model.Period{Year: 2023, Month: time.April}, Profile: "Padrão", Routine: "Padrão"}
	if err := s.StartRun(ctx, id, sum); err != nil {
		t.Fatalf("StartRun: %v", err)
	}

	results := []*model.AnalysisResult{
		{Patient: model.PatientKey{Name: "Ana", ID: "1"}, Status: model.StatusPending, CycleMonth: 4, Summary: "1 mandatory exam(s) pending."},
		{Patient: model.PatientKey{Name: "Bia", ID: "2"}, Status: model.StatusInactive, Summary: "Inactive."},
	}
	n, err := s.SaveResults(ctx, id, results)
	if err != nil {
		t.Fatalf("SaveResults: %v", err)
	}
	if n != 2 {
		t.Errorf("copied %d rows, want 2", n)
	}

	sum.TotalPatients, sum.ActivePatients = 2, 1
	if err := s.FinishRun(ctx, id, sum, nil); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}

	runs, err := s.ListRuns(ctx, 10)
	if err != nil {
		t.Fatalf("ListRuns: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != id || runs[0].Status != store.RunCompleted || runs[0].FinishedAt == nil {
		t.Errorf("runs = %+v", runs)
	}

	var pending int
	if err := pool.QueryRow(ctx,
		"SELECT count(*) FROM analysis.run_results WHERE run_id = $1 AND status = 'pending'", id).Scan(&pending); err != nil {
		t.Fatal(err)
	}
	if pending != 1 {
		t.Errorf("pending rows = %d, want 1", pending)
	}

	failed := uuid.New()
	s.StartRun(ctx, failed, sum)
	if err := s.FinishRun(ctx, failed, sum, errors.New("boom")); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	runs, _ = s.ListRuns(ctx, 10)
	if runs[0].RunID != failed || runs[0].Status != store.RunFailed || runs[0].Error != "boom" {
		t.Errorf("latest run = %+v", runs[0])
	}
}
