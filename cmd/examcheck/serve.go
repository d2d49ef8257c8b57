package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/analysis"
	"github.com/nefron/examcheck/internal/db"
	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/httpapi"
	"github.com/nefron/examcheck/internal/logging"
	"github.com/nefron/examcheck/internal/metrics"
	"github.com/nefron/examcheck/internal/store"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API",
	Long: "Serves analyses, overrides and the catalog over HTTP. With a database configured " +
		"the catalog, overrides and run audit come from Postgres; otherwise the built-in (or " +
		"--catalog) catalog is used and overrides live in memory.",
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.String("listen", ":8080", "Listen address")
	f.String("profile", "Padrão", "Profile used when a request names none")
	f.String("csv-separator", ";", "Default CSV field separator")
	f.Int("workers", 0, "Parallel patient evaluations (0 = GOMAXPROCS)")
	f.Int("run-cache-size", analysis.DefaultCacheSize, "Analyses kept in memory for overrides")
	f.String("marked-by", store.DefaultMarkedBy, "Author recorded on overrides that name none")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	comma, err := cfg.Comma()
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}

	m := metrics.New()
	svcCfg := analysis.Config{Workers: cfg.Workers, CacheSize: cfg.RunCacheSize}
	var (
		svc *analysis.Service
		h   *httpapi.Handler
	)
	opts := httpapi.Options{DefaultProfile: cfg.Profile, MarkedBy: cfg.MarkedBy, Comma: comma}
	if cfg.DSN != "" {
		pool, st := openStore(ctx, log)
		defer pool.Close()
		if err := db.ApplyMigrations(ctx, pool, log); err != nil {
			log.Error().Err(err).Msg("migration failed")
			os.Exit(exitcode.StoreError)
		}
		svc = analysis.NewService(st, st, st, m, log, svcCfg)
		h = httpapi.NewHandler(svc, st, pool, m, log, opts)
	} else {
		log.Warn().Msg("no database configured, overrides are kept in memory only")
		cat := fileCatalog(log)
		svc = analysis.NewService(cat, &analysis.MemoryOverrides{}, nil, m, log, svcCfg)
		h = httpapi.NewHandler(svc, cat, nil, m, log, opts)
	}

	e := httpapi.NewServer(log)
	h.RegisterRoutes(e)

	errc := make(chan error, 1)
	go func() {
		log.Info().Str("addr", cfg.Listen).Msg("starting server")
		if err := e.Start(cfg.Listen); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-quit:
	case err := <-errc:
		log.Error().Err(err).Msg("server error")
		os.Exit(exitcode.ServeError)
	}

	log.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server shutdown failed")
		os.Exit(exitcode.ServeError)
	}
	log.Info().Msg("server stopped")
	return nil
}
