package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/catalog"
	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/logging"
)

var examCmd = &cobra.Command{
	Use:   "exam",
	Short: "Manage the exam dictionary (canonical names and column aliases)",
}

var examListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exams and their aliases",
	Args:  cobra.NoArgs,
	RunE:  runExamList,
}

var examImportCmd = &cobra.Command{
	Use:   "import <catalog.yaml>",
	Short: "Replace the exam dictionary with the exams of a catalog file",
	Args:  cobra.ExactArgs(1),
	RunE:  runExamImport,
}

func init() {
	examCmd.AddCommand(examListCmd, examImportCmd)
	rootCmd.AddCommand(examCmd)
}

func runExamList(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exams, err := st.ListExams(ctx)
	exitOnStoreError(log, err, "failed to list exams")
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXAM\tALIASES")
	for _, e := range exams {
		fmt.Fprintf(tw, "%s\t%s\n", e.Name, strings.Join(e.Aliases, ", "))
	}
	return tw.Flush()
}

func runExamImport(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	cat, err := catalog.LoadFile(args[0])
	if err != nil {
		log.Error().Err(err).Str("path", args[0]).Msg("failed to load catalog file")
		os.Exit(exitcode.CatalogError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.SaveExams(ctx, cat.Exams), "failed to import exams")
	log.Info().Int("exams", len(cat.Exams)).Str("path", args[0]).Msg("exam dictionary imported")
	return nil
}
