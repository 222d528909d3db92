package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/verif/packages/core/config"
	"github.com/abdul-hamid-achik/verif/packages/core/parser"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file|directory>...",
	Short: "Validate suite files without running them",
	Long: `Validate suite files and the config file without executing any request.

Examples:
  verif validate l10n.verif.yaml
  verif validate ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: validateCommand,
}

func init() {
	validateCmd.Flags().StringVar(&configFlag, "config", getEnvString("VERIF_CONFIG", ""), "Path to config file (env: VERIF_CONFIG)")
}

func validateCommand(cmd *cobra.Command, args []string) error {
	if _, err := config.LoadConfig(configFlag); err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}

	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	if len(files) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no suite files found in %s", strings.Join(args, ", ")))
	}

	hasErrors := false
	for _, file := range files {
		_, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error in %s: %v\n", file, err)
			hasErrors = true
		} else {
			fmt.Fprintf(cmd.OutOrStdout(), "Valid: %s\n", file)
		}
	}

	if hasErrors {
		return exitWith(ExitParseError, fmt.Errorf("validation failed"))
	}

	return nil
}
