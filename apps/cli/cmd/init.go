package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/verif/packages/core/config"
	"github.com/abdul-hamid-achik/verif/packages/core/parser"
)

var forceInit bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a new verif project",
	Long: `Initialize a new verif project in the current directory.

This creates:
  - .verif.yaml          - Configuration file with environments
  - example.verif.yaml   - Example suite comparing two API generations

Examples:
  verif init
  verif init --force`,
	RunE: initCommand,
}

func init() {
	initCmd.Flags().BoolVarP(&forceInit, "force", "f", false, "Overwrite existing files")
}

func initCommand(cmd *cobra.Command, args []string) error {
	cwd, err := os.Getwd()
	if err != nil {
		return err
	}

	configFile := filepath.Join(cwd, ".verif.yaml")
	exampleFile := filepath.Join(cwd, "example.verif.yaml")

	if !forceInit {
		for _, f := range []string{configFile, exampleFile} {
			if _, err := os.Stat(f); err == nil {
				return exitWith(ExitUsageError, fmt.Errorf("file already exists: %s (use --force to overwrite)", f))
			}
		}
	}

	cfg := config.DefaultConfig()
	cfg.Headers = map[string]string{"Accept": "application/json"}
	cfg.Environments = map[string]map[string]any{
		"dev":     {"host": "localhost:8080", "protocol": "http"},
		"staging": {"host": "staging.example.org", "protocol": "https"},
		"prod":    {"host": "example.org", "protocol": "https"},
	}
	if err := cfg.SaveConfig(configFile); err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", configFile)

	count := "42"
	example := &parser.Suite{
		Targets: []*parser.Target{
			{
				Name:       "v1",
				Title:      "API v1",
				Protocol:   "{{protocol}}",
				Host:       "{{host}}",
				PathPrefix: "api/",
				Checks: []*parser.Check{
					{Path: "?done", Status: 200, JSON: true, Keys: []string{"fr", "de"}},
					{Path: "?count", Numeric: true, Equals: &count},
				},
			},
			{
				Name:       "v2",
				Title:      "API v2",
				Protocol:   "{{protocol}}",
				Host:       "{{host}}",
				PathPrefix: "api/v2/",
				Checks: []*parser.Check{
					{Path: "done/", Status: 200, JSON: true},
				},
			},
		},
		Equivalences: []*parser.Equivalence{
			{Left: parser.Endpoint{Target: "v1", Path: "?done"}, Right: parser.Endpoint{Target: "v2", Path: "done/"}},
		},
	}

	exampleYAML, err := yaml.Marshal(example)
	if err != nil {
		return fmt.Errorf("failed to encode example suite: %w", err)
	}
	if err := os.WriteFile(exampleFile, exampleYAML, 0644); err != nil {
		return fmt.Errorf("failed to create example file: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Created: %s\n", exampleFile)

	fmt.Fprintf(cmd.OutOrStdout(), "\nverif project initialized!\n")
	fmt.Fprintf(cmd.OutOrStdout(), "Run 'verif run example.verif.yaml' to check the example targets.\n")

	return nil
}
