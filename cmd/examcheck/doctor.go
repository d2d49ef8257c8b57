package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/logging"
)

var doctorRuns int

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check the database schema and print catalog statistics and recent runs",
	Args:  cobra.NoArgs,
	RunE:  runDoctor,
}

func init() {
	doctorCmd.Flags().IntVar(&doctorRuns, "runs", 10, "Number of recent runs to list")
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	missing, err := st.CheckIntegrity(ctx)
	exitOnStoreError(log, err, "integrity check failed")
	if len(missing) > 0 {
		log.Error().Strs("missing", missing).Msg("required tables missing, run `examcheck migrate`")
		os.Exit(exitcode.StoreError)
	}

	stats, err := st.Stats(ctx)
	exitOnStoreError(log, err, "failed to read statistics")

	fmt.Println("=== examcheck doctor ===")
	fmt.Println("Schema:     OK")
	fmt.Printf("Clinics:    %d\n", stats.Clinics)
	fmt.Printf("Exams:      %d (%d aliases)\n", stats.Exams, stats.Aliases)
	fmt.Printf("Routines:   %d\n", stats.Routines)
	fmt.Printf("Profiles:   %d\n", stats.Profiles)
	fmt.Printf("Overrides:  %d\n", stats.Overrides)
	fmt.Printf("Runs:       %d\n", stats.Runs)
	if stats.Exams == 0 || stats.Routines == 0 {
		fmt.Println("\nCatalog is empty, run `examcheck seed`.")
	}

	runs, err := st.ListRuns(ctx, doctorRuns)
	exitOnStoreError(log, err, "failed to list runs")
	if len(runs) == 0 {
		return nil
	}
	fmt.Println("\nRecent runs:")
	for _, r := range runs {
		line := fmt.Sprintf("  %s  %s  %-10s %-9s %4d patients (%d active)",
			r.StartedAt.Format("2006-01-02 15:04"), r.Period, r.Profile, r.Status, r.TotalPatients, r.ActivePatients)
		if r.Error != "" {
			line += "  " + strings.SplitN(r.Error, "\n", 2)[0]
		}
		fmt.Println(line)
	}
	return nil
}
