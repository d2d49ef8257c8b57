package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/config"
)

var (
	cfg        config.Config
	configPath string
)

var rootCmd = &cobra.Command{
	Use:   "examcheck",
	Short: "Monthly lab exam eligibility for dialysis patients",
	Long: "Reads clinic exam, movement and hospitalization sheets and reports, per patient, " +
		"the mandatory and optional exams still pending for a reference month.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(configPath, cmd.Flags())
		if err != nil {
			return fmt.Errorf("load configuration: %w", err)
		}
		cfg = *loaded
		return nil
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", "", "YAML config file")
	pf.String("dsn", "", "Postgres connection string (or set EXAMCHECK_DSN / DATABASE_URL)")
	pf.String("log-format", "text", "Log format: text or json")
	pf.String("log-level", "info", "Log level: debug, info, warn, error")
	pf.String("catalog", "", "Catalog YAML file used instead of the built-in one when no database is configured")
}

// analysisFlags registers the flags shared by commands that read input files.
func analysisFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.String("exams", "", "Exam sheet: wide CSV/XLSX or long-format Parquet (required)")
	f.String("movements", "", "Patient movement sheet (CSV/XLSX)")
	f.String("hospitalizations", "", "Hospitalization sheet (CSV/XLSX)")
	f.String("period", "", "Reference month, YYYY-MM (default: current month)")
	f.String("profile", "Padrão", "Analysis profile")
	f.String("csv-separator", ";", "CSV field separator (\"tab\" for tab)")
	f.Int("workers", 0, "Parallel patient evaluations (0 = GOMAXPROCS)")
}
