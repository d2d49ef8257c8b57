package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/nefron/examcheck/internal/exitcode"
	"github.com/nefron/examcheck/internal/httpapi"
	"github.com/nefron/examcheck/internal/logging"
	"github.com/nefron/examcheck/internal/model"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage analysis profiles (routine + clinics)",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles",
	Args:  cobra.NoArgs,
	RunE:  runProfileList,
}

var profileShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Show a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileShow,
}

var profileSaveCmd = &cobra.Command{
	Use:   "save <name>",
	Short: "Create or update a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSave,
}

var profileDeleteCmd = &cobra.Command{
	Use:   "delete <name>",
	Short: "Delete a profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileDelete,
}

var profileFlags struct {
	routine string
	clinics []string
	rename  string
}

func init() {
	f := profileSaveCmd.Flags()
	f.StringVar(&profileFlags.routine, "routine", "", "Routine used by the profile (required)")
	f.StringSliceVar(&profileFlags.clinics, "clinic", nil, "Clinic whose rows the profile analyses (repeatable; none keeps every row)")
	f.StringVar(&profileFlags.rename, "rename", "", "New name for the profile")
	profileCmd.AddCommand(profileListCmd, profileShowCmd, profileSaveCmd, profileDeleteCmd)
	rootCmd.AddCommand(profileCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	profiles, err := st.ListProfiles(ctx)
	exitOnStoreError(log, err, "failed to list profiles")
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PROFILE\tROUTINE\tCLINICS")
	for _, p := range profiles {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", p.Name, p.Routine, strings.Join(p.Clinics, ", "))
	}
	return tw.Flush()
}

func runProfileShow(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	p, err := st.GetProfile(ctx, args[0])
	exitOnStoreError(log, err, "failed to load profile")
	fmt.Printf("Profile:  %s\n", p.Name)
	fmt.Printf("Routine:  %s\n", p.Routine)
	if len(p.Clinics) == 0 {
		fmt.Println("Clinics:  (all)")
		return nil
	}
	fmt.Println("Clinics:")
	for _, c := range p.Clinics {
		fmt.Printf("  - %s\n", c)
	}
	return nil
}

func runProfileSave(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()

	p := model.Profile{Name: args[0], Routine: profileFlags.routine, Clinics: profileFlags.clinics}
	if profileFlags.rename != "" {
		p.Name = profileFlags.rename
	}
	if err := httpapi.NewValidator().Validate(&p); err != nil {
		log.Error().Err(err).Msg("invalid profile")
		os.Exit(exitcode.UsageError)
	}
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.SaveProfile(ctx, args[0], p), "failed to save profile")
	log.Info().Str("profile", p.Name).Str("routine", p.Routine).Strs("clinics", p.Clinics).Msg("profile saved")
	return nil
}

func runProfileDelete(cmd *cobra.Command, args []string) error {
	log := logging.Setup(cfg.LogFormat, cfg.LogLevel)
	ctx := context.Background()
	pool, st := openStore(ctx, log)
	defer pool.Close()

	exitOnStoreError(log, st.DeleteProfile(ctx, args[0]), "failed to delete profile")
	log.Info().Str("profile", args[0]).Msg("profile deleted")
	return nil
}
