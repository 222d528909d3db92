package cmd

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/verif/packages/core/config"
	"github.com/abdul-hamid-achik/verif/packages/db"
)

var historyCmd = &cobra.Command{
	Use:   "history [file]",
	Short: "Show recorded runs",
	Long: `Show the runs recorded with --history, newest first.

The history file comes from --history, VERIF_HISTORY or the config file.

Examples:
  verif history --history .verif/history.db
  verif history l10n.verif.yaml --limit 5`,
	Args: cobra.MaximumNArgs(1),
	RunE: historyCommand,
}

var historyLimitFlag int

func init() {
	historyCmd.Flags().StringVar(&historyFlag, "history", getEnvString("VERIF_HISTORY", ""), "SQLite history file (env: VERIF_HISTORY)")
	historyCmd.Flags().StringVar(&configFlag, "config", getEnvString("VERIF_CONFIG", ""), "Path to config file (env: VERIF_CONFIG)")
	historyCmd.Flags().IntVarP(&historyLimitFlag, "limit", "n", 20, "Maximum number of runs to show")
}

func historyCommand(cmd *cobra.Command, args []string) error {
	path := historyFlag
	if path == "" {
		cfg, err := config.LoadConfig(configFlag)
		if err != nil {
			return exitWith(ExitConfigError, fmt.Errorf("loading config: %w", err))
		}
		path = cfg.History
	}
	if path == "" {
		return exitWith(ExitUsageError, fmt.Errorf("no history file configured (use --history)"))
	}

	store, err := db.Open(path)
	if err != nil {
		return exitWith(ExitConfigError, fmt.Errorf("opening history: %w", err))
	}
	defer store.Close()

	file := ""
	if len(args) == 1 {
		file = args[0]
	}

	runs, err := store.Recent(cmd.Context(), file, historyLimitFlag)
	if err != nil {
		return err
	}
	if len(runs) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No recorded runs")
		return nil
	}

	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STARTED\tFILE\tSTATUS\tTARGETS\tTESTS\tFAILURES\tDURATION\tP95")
	for _, run := range runs {
		status := green(run.Status)
		if !run.Passed() {
			status = red(run.Status)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d/%d\t%d\t%d\t%s\t%s\n",
			run.StartedAt.Format(time.DateTime),
			run.File,
			status,
			run.Targets-run.FailedTargets, run.Targets,
			run.Tests,
			run.Failures,
			run.Duration.Round(time.Millisecond),
			run.Latency.P95.Round(time.Microsecond*100),
		)
	}
	return w.Flush()
}
