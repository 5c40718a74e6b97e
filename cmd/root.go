package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "sightmatch",
	Short: "Match sighting reports against open missing-person cases",
	Long: `Sightmatch resolves sighting reports against registered missing-person
cases. A report is matched biometrically when it carries a face photo and
textually when its description mentions a distinguishing feature. On a match
the case contact is notified by SMS.`,
	SilenceUsage: true,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
