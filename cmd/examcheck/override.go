package main

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/logging"
	"github.com/nefron/examcheck/internal/model"
	"github.com/nefron/examcheck/internal/normalize"
	"github.com/nefron/examcheck/internal/store"
)

var overrideCmd = &cobra.Command{
	Use:   "override",
	Short: "Manage manual overrides (exams marked as resolved for a month)",
}

var overrideAddCmd = &cobra.Command{
	Use:   "add <patient-cns> <exam>",
	Short: "Mark an exam as resolved for a patient in the reference month",
	Args:  cobra.ExactArgs(2),
	RunE:  runOverrideAdd,
}

var overrideRemoveCmd = &cobra.Command{
	Use:   "remove <patient-cns> <exam>",
	Short: "Remove a manual override",
	Args:  cobra.ExactArgs(2),
	RunE:  runOverrideRemove,
}

var overrideListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the overrides of the reference month",
	RunE:  runOverrideList,
}

var overridePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete overrides older than the retention window",
	RunE:  runOverridePrune,
}

func init() {
	for _, c := range []*cobra.Command{overrideAddCmd, overrideRemoveCmd, overrideListCmd} {
		c.Flags().String("period", "", "Reference month, YYYY-MM (default: current month)")
	}
	overrideAddCmd.Flags().String("marked-by", store.DefaultMarkedBy, "Who marked the exam as resolved")
	overridePruneCmd.Flags().Int("override-retention-months", 12, "Keep overrides created within this many months")
	overrideCmd.AddCommand(overrideAddCmd, overrideRemoveCmd, overrideListCmd, overridePruneCmd)
	rootCmd.AddCommand(overrideCmd)
}

// overrideTarget parses the period and canonicalizes the patient and exam.
func overrideTarget(ctx context.Context, st *store.Store, args []string) (model.Period, string, string, error) {
	period, err := cfg.ParsedPeriod()
	if err != nil {
		return model.Period{}, "", "", err
	}
	id := normalize.PatientID(args[0])
	if id == "" {
		return model.Period{}, "", "", fmt.Errorf("invalid patient identifier %q", args[0])
	}
	exams, err := st.ListExams(ctx)
	if err != nil {
		return model.Period{}, "", "", err
	}
	exam, ok := model.AliasIndex(exams, normalize.Fold)[normalize.Fold(args[1])]
	if !ok {
		return model.Period{}, "", "", fmt.Errorf("exam %q is not in the dictionary", args[1])
	}
	return period, id, exam, nil
}

func runOverrideAdd(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	period, id, exam, err := overrideTarget(ctx, st, args)
	if err != nil {
		log.Error().Err(err).Msg("invalid override")
		os.Exit(exitcode.UsageError)
	}
	added, err := st.AddOverride(ctx, model.ManualOverride{PatientID: id, Exam: exam, Period: period, MarkedBy: cfg.MarkedBy})
	exitOnStoreError(log, err, "failed to add override")
	if added {
		fmt.Printf("%s marked as resolved for %s in %s\n", exam, id, period)
	} else {
		fmt.Printf("%s was already resolved for %s in %s\n", exam, id, period)
	}
	return nil
}

func runOverrideRemove(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	period, id, exam, err := overrideTarget(ctx, st, args)
	if err != nil {
		log.Error().Err(err).Msg("invalid override")
		os.Exit(exitcode.UsageError)
	}
	removed, err := st.RemoveOverride(ctx, id, exam, period)
	exitOnStoreError(log, err, "failed to remove override")
	if !removed {
		fmt.Printf("No override for %s / %s in %s\n", id, exam, period)
		return nil
	}
	fmt.Printf("Override removed: %s / %s in %s\n", id, exam, period)
	return nil
}

func runOverrideList(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	period, err := cfg.ParsedPeriod()
	if err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	list, err := st.ListOverrides(ctx, period)
	exitOnStoreError(log, err, "failed to list overrides")

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PATIENT\tEXAM\tMARKED BY\tCREATED")
	for _, o := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", o.PatientID, o.Exam, o.MarkedBy, o.CreatedAt.Format("2006-01-02 15:04"))
	}
	tw.Flush()
	fmt.Printf("%d override(s) in %s\n", len(list), period)
	return nil
}

func runOverridePrune(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	if err := cfg.ValidateRetention(); err != nil {
		log.Error().Err(err).Msg("config validation failed")
		os.Exit(exitcode.UsageError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	n, err := st.PruneOverrides(ctx, cfg.OverrideRetentionMonths)
	exitOnStoreError(log, err, "failed to prune overrides")
	log.Info().Int64("deleted", n).Int("retention_months", cfg.OverrideRetentionMonths).Msg("overrides pruned")
	return nil
}
