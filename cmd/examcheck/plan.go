package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/analysis"
	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/importer"
	"github.com/nefron/examcheck/internal/logging"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Dry-run: parse and prepare the input files and print counts (no database)",
	RunE:  runPlan,
}

func init() {
	analysisFlags(planCmd)
	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	if err := cfg.ValidateInputs(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	period, _ := cfg.ParsedPeriod()
	comma, _ := cfg.Comma()

	src := readSources(log)
	ds, err := importer.Load(src, importer.Options{Comma: comma})
	if err != nil {
		log.Error().Err(err).Msg("failed to import input files")
		os.Exit(exitcode.ValidationError)
	}

	cat := fileCatalog(log)
	profile, err := cat.GetProfile(ctx, cfg.Profile)
	if err != nil {
		log.Error().Err(err).Msg("failed to load profile")
		os.Exit(exitcode.CatalogError)
	}
	dictionary, _ := cat.ListExams(ctx)
	prep := analysis.Prepare(ds, *profile, dictionary, log)

	patients := make(map[string]bool)
	for _, e := range prep.Exams {
		patients[e.PatientName+"\x00"+e.PatientID] = true
	}

	// Print report
	fmt.Println("=== examcheck plan ===")
	fmt.Printf("Period:     %s\n", period)
	fmt.Printf("Profile:    %s (routine %s)\n", profile.Name, profile.Routine)
	fmt.Printf("Exams:      %s (%s)\n", src.Exams.Name, ds.Format)
	fmt.Printf("SHA-256:    %s\n", src.Hash())
	fmt.Printf("Rows read:  %d\n", prep.RowsRead)
	fmt.Printf("Dropped:    %d (missing name, identifier, date or result)\n", prep.RowsDropped)
	if ds.HasClinic {
		fmt.Printf("Clinics:    %d rows outside %s\n", prep.RowsFilteredClinic, strings.Join(profile.Clinics, ", "))
	} else {
		fmt.Println("Clinics:    no clinic column, every row kept")
	}
	fmt.Printf("Unknown:    %d rows\n", prep.RowsUnknownExam)
	fmt.Printf("Analysed:   %d rows, %d patients\n", len(prep.Exams), len(patients))
	fmt.Printf("Movements:  %d\n", len(prep.Movements))
	fmt.Printf("Stays:      %d\n", len(prep.Hospitalizations))
	if len(ds.ExamColumns) > 0 {
		fmt.Printf("\nExam columns (%d): %s\n", len(ds.ExamColumns), strings.Join(ds.ExamColumns, ", "))
	}
	if len(prep.UnknownExams) > 0 {
		fmt.Printf("\nNot in dictionary: %s\n", strings.Join(prep.UnknownExams, ", "))
	}
	fmt.Println("Input validation: OK")
	return nil
}
