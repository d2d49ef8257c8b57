package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/logging"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the catalog (clinics, exams, routines, profiles) into an empty database",
	Long: "Loads the built-in catalog, or the file given with --catalog, when the database " +
		"has no exams and no routines. A populated database is left untouched.",
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	cat := fileCatalog(log)
	pool, st := openStore(ctx, log)
	defer pool.Close()

	seeded, err := st.SeedIfEmpty(ctx, cat)
	exitOnStoreError(log, err, "seed failed")
	if !seeded {
		fmt.Println("Catalog already present, nothing seeded.")
		return nil
	}
	fmt.Printf("Seeded %d clinics, %d exams, %d routines, %d profiles.\n",
		len(cat.Clinics), len(cat.Exams), len(cat.Routines), len(cat.Profiles))
	return nil
}
