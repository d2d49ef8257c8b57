package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/logging"
)

var clinicCmd = &cobra.Command{
	Use:   "clinic",
	Short: "Manage the clinic list",
}

var clinicListCmd = &cobra.Command{
	Use:   "list",
	Short: "List clinics",
	Args:  cobra.NoArgs,
	RunE:  runClinicList,
}

var clinicSetCmd = &cobra.Command{
	Use:   "set <clinic>...",
	Short: "Replace the clinic list; profiles keep the clinics that remain",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runClinicSet,
}

func init() {
	clinicCmd.AddCommand(clinicListCmd, clinicSetCmd)
	rootCmd.AddCommand(clinicCmd)
}

func runClinicList(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	names, err := st.ListClinics(ctx)
	exitOnStoreError(log, err, "failed to list clinics")
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runClinicSet(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.SaveClinics(ctx, args), "failed to save clinics")
	log.Info().Strs("clinics", args).Msg("clinics saved")
	return nil
}
