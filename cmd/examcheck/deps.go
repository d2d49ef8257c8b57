package main

import (
	"context"
	"errors"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/nefron/examcheck/internal/analysis"
	"github.com/nefron/examcheck/internal/catalog"
	"github.com/nefron/examcheck/internal/db"
	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/importer"
	"github.com/nefron/examcheck/internal/store"
)

// openStore connects to the configured database or exits.
func openStore(ctx context.Context, log zerolog.Logger) (*pgxpool.Pool, *store.Store) {
	if err := cfg.ValidateDSN(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	pool, err := db.NewPool(ctx, cfg.DSN, db.PoolOptions{})
	if err != nil {
		log.Error().Err(err).Msg("database connection failed")
		os.Exit(exitcode.DBConnError)
	}
	return pool, store.New(pool, log)
}

// fileCatalog returns the --catalog file or the built-in catalog.
func fileCatalog(log zerolog.Logger) *catalog.Catalog {
	if cfg.CatalogPath == "" {
		return catalog.Default()
	}
	cat, err := catalog.LoadFile(cfg.CatalogPath)
	if err != nil {
		log.Error().Err(err).Str("path", cfg.CatalogPath).Msg("failed to load catalog")
		os.Exit(exitcode.CatalogError)
	}
	return cat
}

// readSources reads the input files named in the configuration.
func readSources(log zerolog.Logger) importer.Sources {
	var src importer.Sources
	var err error
	for _, f := range []struct {
		path string
		dst  **importer.Source
	}{
		{cfg.ExamsPath, &src.Exams},
		{cfg.MovementsPath, &src.Movements},
		{cfg.HospitalizationsPath, &src.Hospitalizations},
	} {
		if *f.dst, err = importer.ReadSource(f.path); err != nil {
			log.Error().Err(err).Str("path", f.path).Msg("failed to read input file")
			os.Exit(exitcode.ValidationError)
		}
	}
	return src
}

// exitForAnalysis logs err and exits with the code of the failed phase.
func exitForAnalysis(log zerolog.Logger, err error) {
	var pe *analysis.PhaseError
	if errors.As(err, &pe) {
		log.Error().Err(pe.Err).Str("phase", pe.Phase).Msg("analysis failed")
		switch pe.Phase {
		case analysis.PhaseInput, analysis.PhaseImport:
			os.Exit(exitcode.ValidationError)
		case analysis.PhaseCatalog:
			os.Exit(exitcode.CatalogError)
		case analysis.PhaseOverrides:
			os.Exit(exitcode.StoreError)
		default:
			os.Exit(exitcode.EvaluateError)
		}
	}
	log.Error().Err(err).Msg("analysis failed")
	os.Exit(exitcode.EvaluateError)
}

// exitOnStoreError logs and exits when err is set.
func exitOnStoreError(log zerolog.Logger, err error, msg string) {
	if err == nil {
		return
	}
	log.Error().Err(err).Msg(msg)
	switch {
	case errors.Is(err, store.ErrRoutineNotFound),
		errors.Is(err, store.ErrProfileNotFound),
		errors.Is(err, store.ErrRoutineInUse),
		errors.Is(err, store.ErrRoutineExists):
		os.Exit(exitcode.CatalogError)
	}
	os.Exit(exitcode.StoreError)
}
