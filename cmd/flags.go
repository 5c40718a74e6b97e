package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// mustFlag reads a flag through get and panics if the flag doesn't exist.
// Flags are defined in init(), so a lookup error is a programming bug.
func mustFlag[T any](name string, get func(string) (T, error)) T {
	val, err := get(name)
	if err != nil {
		panic(fmt.Sprintf("flag error for --%s: %v", name, err))
	}
	return val
}

func mustGetBool(cmd *cobra.Command, name string) bool {
	return mustFlag(name, cmd.Flags().GetBool)
}

func mustGetInt(cmd *cobra.Command, name string) int {
	return mustFlag(name, cmd.Flags().GetInt)
}

// mustGetString returns the flag value with surrounding whitespace removed.
func mustGetString(cmd *cobra.Command, name string) string {
	return strings.TrimSpace(mustFlag(name, cmd.Flags().GetString))
}

func mustGetStringSlice(cmd *cobra.Command, name string) []string {
	return mustFlag(name, cmd.Flags().GetStringSlice)
}
