package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var (
	version   = "dev"
	buildTime = "unknown"
)

var rootCmd = &cobra.Command{
	Use:   "verif",
	Short: "Fluent checks for HTTP endpoints.",
	Long: `verif fetches HTTP endpoints and checks what they serve: status codes,
JSON validity, keys, numeric content, exact content and substrings.
Checks are grouped by target in YAML or JSON suite files, and every
target ends with a plain report of what failed.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute(v, bt string) {
	version = v
	buildTime = bt
	err := rootCmd.Execute()
	if err == nil {
		return
	}

	var ee *exitError
	if !errors.As(err, &ee) || ee.err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", color.RedString("Error:"), err)
	}
	os.Exit(exitCodeFor(err))
}

func init() {
	rootCmd.SetFlagErrorFunc(func(cmd *cobra.Command, err error) error {
		return exitWith(ExitUsageError, err)
	})

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(checkCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(historyCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
}
