package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/kozaktomas/sightmatch/internal/constants"
	"github.com/kozaktomas/sightmatch/internal/embedder"
	"github.com/kozaktomas/sightmatch/internal/resolution"
	"github.com/spf13/cobra"
)

var resolveCmd = &cobra.Command{
	Use:   "resolve",
	Short: "Resolve a sighting report against open cases",
	Long: `Resolve a sighting report against the open cases.

The photo is matched biometrically when a face embedding service is
configured; the details are matched textually when they mention a
distinguishing feature. When location, reporter name and reporter phone are
all given the report is recorded as a sighting, and on a match the case
contact is notified.

Examples:
  # Photo and description
  sightmatch resolve --photo found.jpg --details "girl with a mole on her left cheek"

  # Record the sighting and notify on a match
  sightmatch resolve --photo found.jpg --location "Central Station" \
    --reporter-name Ravi --reporter-phone 9123456780

  # JSON output for scripting
  sightmatch resolve --details "boy with a birth mark on his neck" --json`,
	RunE: runResolve,
}

func init() {
	rootCmd.AddCommand(resolveCmd)

	resolveCmd.Flags().String("photo", "", "Path to a photo of the sighted person")
	resolveCmd.Flags().String("details", "", "Free-text description of the sighted person")
	resolveCmd.Flags().String("name", "", "Name the reporter believes the person has")
	resolveCmd.Flags().String("location", "", "Where the person was seen")
	resolveCmd.Flags().String("reporter-name", "", "Name of the reporter")
	resolveCmd.Flags().String("reporter-phone", "", "Phone number of the reporter")
	resolveCmd.Flags().Bool("json", false, "Output as JSON")
}

func runResolve(cmd *cobra.Command, args []string) error {
	photoPath := mustGetString(cmd, "photo")
	report := resolution.Report{
		Details:       mustGetString(cmd, "details"),
		ClaimedName:   mustGetString(cmd, "name"),
		Location:      mustGetString(cmd, "location"),
		ReporterName:  mustGetString(cmd, "reporter-name"),
		ReporterPhone: mustGetString(cmd, "reporter-phone"),
	}
	if photoPath == "" && report.Details == "" {
		return errors.New("--photo or --details is required")
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.ResolveTimeout)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if photoPath != "" {
		emb, err := a.requireEmbedder()
		if err != nil {
			return err
		}
		data, err := os.ReadFile(photoPath)
		if err != nil {
			return fmt.Errorf("reading photo: %w", err)
		}
		vec, err := emb.FaceEmbedding(ctx, data)
		switch {
		case errors.Is(err, embedder.ErrNoFace):
			fmt.Fprintln(cmd.ErrOrStderr(), "No face detected in photo, matching on details only")
		case err != nil:
			return fmt.Errorf("computing face embedding: %w", err)
		default:
			report.Embedding = vec
		}
	}

	orch, err := a.newOrchestrator()
	if err != nil {
		return err
	}
	verdict, err := orch.Resolve(ctx, report)
	if err != nil {
		return err
	}

	if mustGetBool(cmd, "json") {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(verdict)
	}
	printVerdict(cmd.OutOrStdout(), verdict)
	return nil
}

// printVerdict writes a verdict as a two-column table.
func printVerdict(w io.Writer, v *resolution.Verdict) {
	if !v.MatchFound {
		fmt.Fprintln(w, "No match found")
		if v.Recorded {
			fmt.Fprintln(w, "Sighting recorded")
		}
		return
	}

	rows := [][]string{
		{"Identity", v.Identity},
		{"Method", string(v.Method)},
		{"Confidence", strconv.FormatFloat(v.Confidence, 'f', 3, 64)},
	}
	if v.TextScore > 0 {
		rows = append(rows, []string{"Text score", strconv.FormatFloat(v.TextScore, 'f', 1, 64)})
	}
	if v.Method == resolution.MethodBiometric {
		rows = append(rows, []string{"Corroborated", yesNo(v.Corroborated)})
	}
	rows = append(rows,
		[]string{"Case", v.CaseID},
		[]string{"Last seen", v.LastSeenLocation},
		[]string{"Recorded", yesNo(v.Recorded)},
		[]string{"Notified", yesNo(v.NotificationSent)},
	)
	fmt.Fprintln(w, renderTable([]string{"Field", "Value"}, rows, nil))
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
