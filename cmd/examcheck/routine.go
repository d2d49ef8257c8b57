package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/nefron/examcheck/internal/catalog"
	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/logging"
	"github.com/nefron/examcheck/internal/model"
)

var routineCmd = &cobra.Command{
	Use:   "routine",
	Short: "Manage exam routines (per-exam collection rules)",
}

var routineListCmd = &cobra.Command{
	Use:   "list",
	Short: "List routine names",
	Args:  cobra.NoArgs,
	RunE:  runRoutineList,
}

var routineShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a routine as YAML",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoutineShow,
}

var routineCopyCmd = &cobra.Command{
	Use:   "copy <base> <new-name>",
	Short: "Create a routine from the rules of an existing one",
	Args:  cobra.ExactArgs(2),
	RunE:  runRoutineCopy,
}

var routineDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a routine no profile uses",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoutineDelete,
}

var routineImportCmd = &cobra.Command{
	Use:   "import <catalog.yaml>",
	Short: "Create or replace the routines of a catalog file",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoutineImport,
}

var routineExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Print the whole catalog (clinics, exams, routines, profiles) as YAML",
	Args:  cobra.NoArgs,
	RunE:  runRoutineExport,
}

func init() {
	routineCmd.AddCommand(routineListCmd, routineShowCmd, routineCopyCmd, routineDeleteCmd, routineImportCmd, routineExportCmd)
	rootCmd.AddCommand(routineCmd)
}

func runRoutineList(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	names, err := st.ListRoutines(ctx)
	exitOnStoreError(log, err, "failed to list routines")
	for _, n := range names {
		fmt.Println(n)
	}
	return nil
}

func runRoutineShow(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	r, err := st.GetRoutine(ctx, args[0])
	exitOnStoreError(log, err, "failed to load routine")
	enc := yaml.NewEncoder(os.Stdout)
	enc.SetIndent(2)
	if err := enc.Encode(r); err != nil {
		log.Error().Err(err).Msg("failed to encode routine")
		os.Exit(exitcode.StoreError)
	}
	return enc.Close()
}

func runRoutineCopy(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.CopyRoutine(ctx, args[1], args[0]), "failed to copy routine")
	log.Info().Str("base", args[0]).Str("routine", args[1]).Msg("routine copied")
	return nil
}

func runRoutineDelete(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.DeleteRoutine(ctx, args[0]), "failed to delete routine")
	log.Info().Str("routine", args[0]).Msg("routine deleted")
	return nil
}

func runRoutineImport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	cat, err := catalog.LoadFile(args[0])
	if err != nil {
		log.Error().Err(err).Str("path", args[0]).Msg("failed to load catalog file")
		os.Exit(exitcode.CatalogError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.ImportRoutines(ctx, cat), "failed to import routines")
	log.Info().Int("routines", len(cat.Routines)).Str("path", args[0]).Msg("routines imported")
	return nil
}

func runRoutineExport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	cat, err := st.Export(ctx)
	exitOnStoreError(log, err, "failed to export catalog")
	data, err := cat.Marshal()
	if err != nil {
		log.Error().Err(err).Msg("failed to encode catalog")
		os.Exit(exitcode.StoreError)
	}
	_, err = os.Stdout.Write(data)
	return err
}

var routineSaveCmd = &cobra.Command{
	Use:   "save <routine.yaml>",
	Short: "Create or replace one routine from a YAML file in the format printed by show",
	Args:  cobra.ExactArgs(1),
	RunE:  runRoutineSave,
}

func init() {
	routineCmd.AddCommand(routineSaveCmd)
}

func runRoutineSave(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	data, err := os.ReadFile(args[0])
	if err != nil {
		log.Error().Err(err).Str("path", args[0]).Msg("failed to read routine file")
		os.Exit(exitcode.UsageError)
	}
	var r model.Routine
	if err := yaml.Unmarshal(data, &r); err != nil || r.Name == "" {
		log.Error().Err(err).Str("path", args[0]).Msg("invalid routine file")
		os.Exit(exitcode.CatalogError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.SaveRoutine(ctx, r), "failed to save routine")
	log.Info().Str("routine", r.Name).Int("exams", len(r.Rules)).Msg("routine saved")
	return nil
}
