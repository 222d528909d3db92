package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/verif/packages/core/parser"
)

var listCmd = &cobra.Command{
	Use:   "list <file|directory>...",
	Short: "List the targets and checks of suite files",
	Long: `List the targets, checked paths and equivalences of suite files.
Variables are shown unresolved.

Examples:
  verif list l10n.verif.yaml
  verif list ./suites/`,
	Args: cobra.MinimumNArgs(1),
	RunE: listCommand,
}

func listCommand(cmd *cobra.Command, args []string) error {
	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}

	if len(files) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no suite files found in %s", strings.Join(args, ", ")))
	}

	out := cmd.OutOrStdout()
	for _, file := range files {
		suite, err := parser.ParseFile(file)
		if err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Error parsing %s: %v\n", file, err)
			continue
		}

		fmt.Fprintf(out, "\n%s:\n", file)
		for _, t := range suite.Targets {
			fmt.Fprintf(out, "  - %s (%s)\n", t.DisplayTitle(), t.Name)
			for _, c := range t.Checks {
				fmt.Fprintf(out, "      %s%s  %s\n", t.PathPrefix, c.Path, describeCheck(c))
			}
		}
		for _, e := range suite.Equivalences {
			fmt.Fprintf(out, "  = %s:%s == %s:%s\n", e.Left.Target, e.Left.Path, e.Right.Target, e.Right.Path)
		}
	}

	return nil
}

func describeCheck(c *parser.Check) string {
	var parts []string
	if c.Status != 0 {
		parts = append(parts, fmt.Sprintf("status %d", c.Status))
	}
	if c.JSON {
		parts = append(parts, "json")
	}
	if c.Numeric {
		parts = append(parts, "numeric")
	}
	if len(c.Keys) > 0 {
		parts = append(parts, "keys "+strings.Join(c.Keys, ","))
	}
	for _, s := range c.Contains {
		parts = append(parts, fmt.Sprintf("contains %q", s))
	}
	if c.Equals != nil {
		parts = append(parts, fmt.Sprintf("equals %q", *c.Equals))
	}
	if c.Schema != "" {
		parts = append(parts, "schema "+c.Schema)
	}
	if len(parts) == 0 {
		return "(fetch only)"
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
