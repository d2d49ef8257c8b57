package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/analysis"
	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/importer"
	"github.com/nefron/examcheck/internal/logging"
	"github.com/nefron/examcheck/internal/report"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Evaluate every patient of the input files for the reference month",
	Long: "Runs the full analysis. With a database configured the catalog, manual overrides " +
		"and run audit trail come from Postgres; otherwise the built-in (or --catalog) catalog " +
		"is used and no override applies.",
	RunE: runAnalyze,
}

func init() {
	analysisFlags(analyzeCmd)
	f := analyzeCmd.Flags()
	f.String("format", "text", "Report format: text, json or xlsx")
	f.StringP("output", "o", "", "Write the report to this file instead of stdout")
	f.String("status", "", "Only list patients with these statuses (comma separated)")
	f.StringP("query", "q", "", "Only list patients whose name or CNS contains this text")
	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.ValidateInputs(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	format, err := report.ParseFormat(cfg.Format)
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	if format == report.FormatXLSX && cfg.Output == "" {
		log.Error().Msg("--output is required for xlsx reports")
		os.Exit(exitcode.UsageError)
	}
	statuses, err := report.ParseStatuses(cfg.Status)
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	period, _ := cfg.ParsedPeriod()
	comma, _ := cfg.Comma()

	var svc *analysis.Service
	svcCfg := analysis.Config{Workers: cfg.Workers, CacheSize: 1}
	if cfg.DSN != "" {
		pool, st := openStore(ctx, log)
		defer pool.Close()
		svc = analysis.NewService(st, st, st, nil, log, svcCfg)
	} else {
		log.Info().Msg("no database configured, using file catalog without overrides")
		svc = analysis.NewService(fileCatalog(log), &analysis.MemoryOverrides{}, nil, nil, log, svcCfg)
	}

	a, err := svc.Run(ctx, analysis.Request{
		Period:  period,
		Profile: cfg.Profile,
		Sources: readSources(log),
		Import:  importer.Options{Comma: comma},
	})
	if err != nil {
		exitForAnalysis(log, err)
	}

	var w io.Writer = os.Stdout
	if cfg.Output != "" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			log.Error().Err(err).Msg("failed to create output file")
			os.Exit(exitcode.ValidationError)
		}
		defer f.Close()
		w = f
	}
	rep := report.FromAnalysis(a, report.Filter{Statuses: statuses, Query: cfg.Query})
	if err := report.Write(w, format, rep); err != nil {
		log.Error().Err(err).Msg("failed to write report")
		os.Exit(exitcode.EvaluateError)
	}
	if cfg.Output != "" {
		fmt.Fprintf(os.Stderr, "%s\nReport written to %s\n", report.MetricsLine(a.Summary), cfg.Output)
	}
	return nil
}
