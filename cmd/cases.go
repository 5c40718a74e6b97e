package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/kozaktomas/sightmatch/internal/constants"
	"github.com/kozaktomas/sightmatch/internal/database"
	"github.com/spf13/cobra"
)

var casesCmd = &cobra.Command{
	Use:   "cases",
	Short: "Manage missing-person cases",
}

var casesAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Open a case",
	Long: `Open a missing-person case with reference photos and an optional
description of distinguishing features.

Examples:
  sightmatch cases add --name "Asha Rao" --contact-phone 9876543210 \
    --features "mole on the left cheek" --photo asha1.jpg --photo asha2.jpg`,
	Args: cobra.NoArgs,
	RunE: runCasesAdd,
}

var casesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cases",
	Args:  cobra.NoArgs,
	RunE:  runCasesList,
}

var casesCloseCmd = &cobra.Command{
	Use:   "close <case-id>",
	Short: "Close an open case",
	Args:  cobra.ExactArgs(1),
	RunE:  runCasesClose,
}

var sightingsCmd = &cobra.Command{
	Use:   "sightings",
	Short: "List recorded sightings, newest first",
	Args:  cobra.NoArgs,
	RunE:  runSightings,
}

func init() {
	rootCmd.AddCommand(casesCmd)
	rootCmd.AddCommand(sightingsCmd)
	casesCmd.AddCommand(casesAddCmd, casesListCmd, casesCloseCmd)

	casesAddCmd.Flags().String("name", "", "Name of the missing person (required)")
	casesAddCmd.Flags().String("contact-phone", "", "Phone number notified on a match")
	casesAddCmd.Flags().String("features", "", "Distinguishing features, e.g. \"mole on the left cheek\"")
	casesAddCmd.Flags().StringSlice("photo", nil, "Reference photo path (repeatable)")

	casesListCmd.Flags().String("status", "", "Filter by status: open or closed")
	casesListCmd.Flags().Bool("json", false, "Output as JSON")

	sightingsCmd.Flags().Int("limit", constants.DefaultSightingsLimit, "Maximum number of sightings")
	sightingsCmd.Flags().Bool("json", false, "Output as JSON")
}

func runCasesAdd(cmd *cobra.Command, args []string) error {
	intake := database.CaseIntake{
		Name:         mustGetString(cmd, "name"),
		ContactPhone: mustGetString(cmd, "contact-phone"),
		Features:     mustGetString(cmd, "features"),
	}
	if intake.Name == "" {
		return errors.New("--name is required")
	}

	paths := mustGetStringSlice(cmd, "photo")
	if len(paths) > constants.MaxPhotosPerCase {
		return fmt.Errorf("at most %d photos per case", constants.MaxPhotosPerCase)
	}
	for _, p := range paths {
		data, err := os.ReadFile(p)
		if err != nil {
			return fmt.Errorf("reading photo: %w", err)
		}
		intake.Photos = append(intake.Photos, database.CasePhoto{Filename: filepath.Base(p), Data: data})
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	c, err := a.registry.CreateCase(cmd.Context(), intake)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Opened case %s for %s with %d photo(s)\n", c.CaseID, c.Name, len(intake.Photos))
	if len(intake.Photos) > 0 {
		fmt.Fprintln(out, "Run 'sightmatch embeddings rebuild' to make the photos available for matching")
	}
	return nil
}

func runCasesList(cmd *cobra.Command, args []string) error {
	status := database.CaseStatus(mustGetString(cmd, "status"))
	switch status {
	case "", database.CaseOpen, database.CaseClosed:
	default:
		return fmt.Errorf("invalid status %q: must be open or closed", status)
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	cases, err := a.registry.ListCases(cmd.Context(), status)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(cases)
	}
	if len(cases) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No cases")
		return nil
	}

	rows := make([][]string, len(cases))
	for i, c := range cases {
		rows[i] = []string{c.CaseID, c.Name, c.ContactPhone, string(c.Status), c.CreatedAt.Local().Format(time.DateTime)}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable([]string{"Case", "Name", "Contact", "Status", "Opened"}, rows, nil))
	return nil
}

func runCasesClose(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	closed, err := a.registry.CloseCase(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if !closed {
		return fmt.Errorf("no open case with id %s", args[0])
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Closed case %s\n", args[0])
	return nil
}

func runSightings(cmd *cobra.Command, args []string) error {
	limit := mustGetInt(cmd, "limit")
	if limit <= 0 {
		return errors.New("--limit must be positive")
	}

	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	sightings, err := a.registry.ListSightings(cmd.Context(), min(limit, constants.MaxSightingsLimit))
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(sightings)
	}
	if len(sightings) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sightings")
		return nil
	}

	rows := make([][]string, len(sightings))
	for i, s := range sightings {
		rows[i] = []string{
			strconv.FormatInt(s.ID, 10),
			s.CreatedAt.Local().Format(time.DateTime),
			s.Name,
			s.Location,
			s.ReporterName,
			s.ReporterPhone,
		}
	}
	fmt.Fprintln(cmd.OutOrStdout(), renderTable(
		[]string{"ID", "Reported", "Name", "Location", "Reporter", "Phone"},
		rows,
		[]columnAlignment{alignRight},
	))
	return nil
}
