package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/kozaktomas/sightmatch/internal/constants"
	"github.com/kozaktomas/sightmatch/internal/embeddings"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
)

var embeddingsCmd = &cobra.Command{
	Use:   "embeddings",
	Short: "Manage the reference embedding store",
}

var embeddingsRebuildCmd = &cobra.Command{
	Use:   "rebuild",
	Short: "Rebuild reference embeddings from open-case photos",
	Long: `Rebuild the reference embedding store.

Every photo of every open case is sent to the face embedding service and the
embeddings are averaged per person. The new snapshot replaces the previous one
atomically; if the service fails for every photo the store is left untouched.

Examples:
  sightmatch embeddings rebuild

  # JSON output for scripting
  sightmatch embeddings rebuild --json`,
	Args: cobra.NoArgs,
	RunE: runEmbeddingsRebuild,
}

var embeddingsInfoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show the current embedding snapshot",
	Args:  cobra.NoArgs,
	RunE:  runEmbeddingsInfo,
}

func init() {
	rootCmd.AddCommand(embeddingsCmd)
	embeddingsCmd.AddCommand(embeddingsRebuildCmd, embeddingsInfoCmd)

	embeddingsRebuildCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
	embeddingsInfoCmd.Flags().Bool("names", false, "List the identities in the snapshot")
}

// RebuildResult represents the result of an embedding rebuild
type RebuildResult struct {
	Success       bool   `json:"success"`
	Generation    int64  `json:"generation"`
	Identities    int    `json:"identities"`
	Photos        int    `json:"photos"`
	Skipped       int    `json:"skipped"`
	Failed        int    `json:"failed"`
	DurationMs    int64  `json:"duration_ms"`
	DurationHuman string `json:"duration_human,omitempty"`
}

func runEmbeddingsRebuild(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")

	ctx, cancel := context.WithTimeout(cmd.Context(), constants.RebuildTimeout)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	if _, err := a.requireEmbedder(); err != nil {
		return err
	}
	builder, err := a.newBuilder()
	if err != nil {
		return err
	}

	var progress embeddings.ProgressFunc
	var bar *progressbar.ProgressBar
	if !jsonOutput {
		progress = func(done, total int) {
			if bar == nil {
				bar = progressbar.NewOptions(total,
					progressbar.OptionSetWriter(cmd.ErrOrStderr()),
					progressbar.OptionSetDescription("Embedding photos"),
					progressbar.OptionShowCount(),
					progressbar.OptionShowIts(),
					progressbar.OptionSetItsString("photos"),
					progressbar.OptionShowElapsedTimeOnFinish(),
					progressbar.OptionSetPredictTime(true),
					progressbar.OptionFullWidth(),
				)
			}
			_ = bar.Set(done)
		}
	}

	res, err := builder.Rebuild(ctx, progress)
	if bar != nil {
		_ = bar.Finish()
		fmt.Fprintln(cmd.ErrOrStderr())
	}
	if err != nil {
		return err
	}

	result := RebuildResult{
		Success:       true,
		Generation:    res.Generation,
		Identities:    res.Identities,
		Photos:        res.Photos,
		Skipped:       res.Skipped,
		Failed:        res.Failed,
		DurationMs:    res.Duration.Milliseconds(),
		DurationHuman: res.Duration.Round(time.Millisecond).String(),
	}
	if jsonOutput {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Published generation %d with %d identities\n", result.Generation, result.Identities)
	fmt.Fprintf(out, "Photos: %d (no face: %d, failed: %d) in %s\n",
		result.Photos, result.Skipped, result.Failed, result.DurationHuman)
	return nil
}

func runEmbeddingsInfo(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context())
	if err != nil {
		return err
	}
	defer a.close()

	snap, err := a.store.Load(cmd.Context())
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if snap == nil {
		fmt.Fprintln(out, "No embedding snapshot published yet")
		return nil
	}

	rows := [][]string{
		{"Backend", a.cfg.Embedding.StoreBackend},
		{"Generation", strconv.FormatInt(snap.Generation, 10)},
		{"Built", snap.BuiltAt.Local().Format(time.DateTime)},
		{"Model", snap.Model},
		{"Dimensions", strconv.Itoa(snap.Dim)},
		{"Identities", strconv.Itoa(snap.Len())},
	}
	fmt.Fprintln(out, renderTable([]string{"Field", "Value"}, rows, nil))

	if mustGetBool(cmd, "names") {
		names := snap.Names()
		slices.Sort(names)
		for _, n := range names {
			fmt.Fprintln(out, n)
		}
	}
	return nil
}
