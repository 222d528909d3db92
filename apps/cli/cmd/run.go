package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/abdul-hamid-achik/verif/packages/checker"
	"github.com/abdul-hamid-achik/verif/packages/core/config"
	"github.com/abdul-hamid-achik/verif/packages/core/parser"
	"github.com/abdul-hamid-achik/verif/packages/core/runner"
	"github.com/abdul-hamid-achik/verif/packages/db"
	"github.com/abdul-hamid-achik/verif/packages/export/metrics"
	"github.com/abdul-hamid-achik/verif/packages/logging"
	"github.com/abdul-hamid-achik/verif/packages/notify"
	"github.com/abdul-hamid-achik/verif/packages/output"
)

var runCmd = &cobra.Command{
	Use:   "run <file|directory>...",
	Short: "Run verif suite files",
	Long: `Run the targets, checks and equivalences defined in suite files.

Directories are searched for *.verif.yaml, *.verif.yml and *.verif.json
files. Files named explicitly may have any .yaml, .yml or .json name.

Examples:
  verif run l10n.verif.yaml
  verif run l10n.verif.yaml --env staging
  verif run ./suites/ -o junit --output-file report.xml
  verif run ./suites/ --rate 5 --history .verif/history.db
  verif run l10n.verif.yaml --notify-on recovery --slack-webhook https://hooks.slack.com/...
  verif run l10n.verif.yaml --teams-webhook https://example.webhook.office.com/...
  verif run l10n.verif.yaml --watch`,
	Args: cobra.MinimumNArgs(1),
	RunE: runCommand,
}

const (
	// WatchDebounceDelay is the debounce delay for file watch events
	WatchDebounceDelay = 300 * time.Millisecond
)

var (
	envFlag          string
	envFileFlag      string
	configFlag       string
	verboseFlag      int // 0=off, 1=-v, 2=-vv, 3=-vvv
	quietFlag        bool
	noColorFlag      bool
	outputFlag       string
	outputFileFlag   string
	bailFlag         bool
	timeoutFlag      string
	rateFlag         float64
	proxyFlag        string
	historyFlag      string
	metricsFileFlag  string
	notifyOnFlag     string
	slackWebhookFlag string
	slackChannelFlag string
	teamsWebhookFlag string
	watchFlag        bool
	dryRunFlag       bool
)

func init() {
	// Core flags
	runCmd.Flags().StringVarP(&envFlag, "env", "e", getEnvString("VERIF_ENV", "dev"), "Environment to use (env: VERIF_ENV)")
	runCmd.Flags().StringVar(&envFileFlag, "env-file", getEnvString("VERIF_ENV_FILE", ""), "Path to .env file for variable interpolation (env: VERIF_ENV_FILE)")
	runCmd.Flags().StringVar(&configFlag, "config", getEnvString("VERIF_CONFIG", ""), "Path to config file (env: VERIF_CONFIG)")

	// Output flags
	runCmd.Flags().CountVarP(&verboseFlag, "verbose", "v", "Verbose output (-v, -vv, -vvv for more detail)")
	runCmd.Flags().BoolVarP(&quietFlag, "quiet", "q", getEnvBool("VERIF_QUIET", false), "Log errors only (env: VERIF_QUIET)")
	runCmd.Flags().BoolVar(&noColorFlag, "no-color", getEnvBool("VERIF_NO_COLOR", false), "Disable colored output (env: VERIF_NO_COLOR)")
	runCmd.Flags().StringVarP(&outputFlag, "output", "o", getEnvString("VERIF_OUTPUT", "console"), "Output format: console, json, junit, tap, html (env: VERIF_OUTPUT)")
	runCmd.Flags().StringVar(&outputFileFlag, "output-file", getEnvString("VERIF_OUTPUT_FILE", ""), "Write output to file (default: stdout) (env: VERIF_OUTPUT_FILE)")

	// Execution flags
	runCmd.Flags().BoolVar(&bailFlag, "bail", getEnvBool("VERIF_BAIL", false), "Stop after the first failed target (env: VERIF_BAIL)")
	runCmd.Flags().StringVar(&timeoutFlag, "timeout", getEnvString("VERIF_TIMEOUT", "30s"), "Request timeout (e.g., 30s, 1m) (env: VERIF_TIMEOUT)")
	runCmd.Flags().Float64Var(&rateFlag, "rate", getEnvFloat("VERIF_RATE", 0), "Maximum requests per second, 0 for unlimited (env: VERIF_RATE)")
	runCmd.Flags().BoolVar(&dryRunFlag, "dry-run", false, "Parse and show what would run without executing")
	runCmd.Flags().BoolVarP(&watchFlag, "watch", "w", false, "Watch files for changes and re-run")

	// Network flags
	runCmd.Flags().StringVar(&proxyFlag, "proxy", getEnvString("VERIF_PROXY", ""), "Proxy URL for HTTP requests (env: VERIF_PROXY)")

	// History and notification flags
	runCmd.Flags().StringVar(&historyFlag, "history", getEnvString("VERIF_HISTORY", ""), "SQLite file recording every run (env: VERIF_HISTORY)")
	runCmd.Flags().StringVar(&metricsFileFlag, "metrics-file", getEnvString("VERIF_METRICS_FILE", ""), "Write Prometheus metrics of each run to this file (env: VERIF_METRICS_FILE)")
	runCmd.Flags().StringVar(&notifyOnFlag, "notify-on", getEnvString("VERIF_NOTIFY_ON", "failure"), "When to notify: always, failure, success, recovery (env: VERIF_NOTIFY_ON)")
	runCmd.Flags().StringVar(&slackWebhookFlag, "slack-webhook", getEnvString("SLACK_WEBHOOK", ""), "Slack webhook URL (env: SLACK_WEBHOOK)")
	runCmd.Flags().StringVar(&slackChannelFlag, "slack-channel", getEnvString("SLACK_CHANNEL", ""), "Slack channel override (env: SLACK_CHANNEL)")
	runCmd.Flags().StringVar(&teamsWebhookFlag, "teams-webhook", getEnvString("TEAMS_WEBHOOK", ""), "Microsoft Teams webhook URL (env: TEAMS_WEBHOOK)")
}

// Environment variable helpers
func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		return val == "true" || val == "1" || val == "yes"
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

// flagSet reports whether a flag was given on the command line or
// through its environment variable. Unset flags leave the config file alone.
func flagSet(cmd *cobra.Command, name, envKey string) bool {
	return cmd.Flags().Changed(name) || os.Getenv(envKey) != ""
}

// Formatter interface for all output formatters
type Formatter interface {
	FormatResult(result *runner.RunResult)
	FormatError(err error)
	FormatHeader(version string)
}

// Flushable interface for formatters that need to flush output
type Flushable interface {
	Flush(totalDuration time.Duration) error
}

// loadRunConfig loads the config file and applies flags on top of it
func loadRunConfig(cmd *cobra.Command) (*config.Config, error) {
	fileConfig, err := config.LoadConfig(configFlag)
	if err != nil {
		return nil, exitWith(ExitConfigError, fmt.Errorf("loading config: %w", err))
	}

	overrides := &config.Config{}
	if flagSet(cmd, "env", "VERIF_ENV") {
		overrides.DefaultEnvironment = envFlag
	}
	if flagSet(cmd, "timeout", "VERIF_TIMEOUT") {
		overrides.Timeout = timeoutFlag
	}
	if flagSet(cmd, "rate", "VERIF_RATE") {
		overrides.Rate = rateFlag
	}
	if flagSet(cmd, "proxy", "VERIF_PROXY") {
		overrides.Proxy = proxyFlag
	}
	if flagSet(cmd, "output", "VERIF_OUTPUT") {
		overrides.Output = outputFlag
	}
	if flagSet(cmd, "history", "VERIF_HISTORY") {
		overrides.History = historyFlag
	}
	if flagSet(cmd, "metrics-file", "VERIF_METRICS_FILE") {
		overrides.MetricsFile = metricsFileFlag
	}
	if flagSet(cmd, "bail", "VERIF_BAIL") {
		overrides.Bail = config.BoolPtr(bailFlag)
	}
	if flagSet(cmd, "no-color", "VERIF_NO_COLOR") {
		overrides.NoColor = config.BoolPtr(noColorFlag)
	}

	cfg := fileConfig.Merge(overrides)

	if flagSet(cmd, "slack-webhook", "SLACK_WEBHOOK") || flagSet(cmd, "notify-on", "VERIF_NOTIFY_ON") ||
		flagSet(cmd, "slack-channel", "SLACK_CHANNEL") || flagSet(cmd, "teams-webhook", "TEAMS_WEBHOOK") {
		n := config.NotifyConfig{}
		if cfg.Notify != nil {
			n = *cfg.Notify
		}
		if flagSet(cmd, "notify-on", "VERIF_NOTIFY_ON") {
			n.On = notifyOnFlag
		}
		if flagSet(cmd, "slack-webhook", "SLACK_WEBHOOK") {
			n.SlackWebhook = slackWebhookFlag
		}
		if flagSet(cmd, "slack-channel", "SLACK_CHANNEL") {
			n.SlackChannel = slackChannelFlag
		}
		if flagSet(cmd, "teams-webhook", "TEAMS_WEBHOOK") {
			n.TeamsWebhook = teamsWebhookFlag
		}
		cfg.Notify = &n
	}

	if err := cfg.Validate(); err != nil {
		return nil, exitWith(ExitConfigError, err)
	}
	return cfg, nil
}

func newFormatter(format string, w io.Writer, verbose, noColor bool) (Formatter, error) {
	switch strings.ToLower(format) {
	case "json":
		return output.NewJSONFormatter(output.JSONWithWriter(w)), nil
	case "junit":
		return output.NewJUnitFormatter(output.JUnitWithWriter(w)), nil
	case "tap":
		return output.NewTAPFormatter(output.TAPWithWriter(w)), nil
	case "html":
		return output.NewHTMLFormatter(output.HTMLWithWriter(w)), nil
	case "", "console":
		return output.NewConsoleFormatter(
			output.WithWriter(w),
			output.WithVerbose(verbose),
			output.WithNoColor(noColor),
		), nil
	}
	return nil, fmt.Errorf("unknown output format %q (want console, json, junit, tap or html)", format)
}

// newNotifyManager returns nil when no notifier is configured
func newNotifyManager(cfg *config.Config) (*notify.Manager, error) {
	if cfg.Notify == nil || (cfg.Notify.SlackWebhook == "" && cfg.Notify.TeamsWebhook == "") {
		return nil, nil
	}
	on, err := notify.ParseNotifyOn(cfg.Notify.On)
	if err != nil {
		return nil, err
	}

	manager := notify.NewManager(on)
	if cfg.Notify.SlackWebhook != "" {
		var slackOpts []notify.SlackOption
		if cfg.Notify.SlackChannel != "" {
			slackOpts = append(slackOpts, notify.WithSlackChannel(cfg.Notify.SlackChannel))
		}
		manager.AddNotifier(notify.NewSlackNotifier(cfg.Notify.SlackWebhook, slackOpts...))
	}
	if cfg.Notify.TeamsWebhook != "" {
		manager.AddNotifier(notify.NewTeamsNotifier(cfg.Notify.TeamsWebhook))
	}
	return manager, nil
}

func newLogger() logging.Logger {
	level := logging.LevelFromVerbosity(verboseFlag)
	if quietFlag {
		level = logrus.ErrorLevel
	}
	return logging.New(os.Stderr, level)
}

func runCommand(cmd *cobra.Command, args []string) error {
	cfg, err := loadRunConfig(cmd)
	if err != nil {
		return err
	}
	logger := newLogger()

	files, err := collectFiles(args)
	if err != nil {
		return exitWith(ExitUsageError, err)
	}
	if len(files) == 0 {
		return exitWith(ExitUsageError, fmt.Errorf("no suite files found in %s", strings.Join(args, ", ")))
	}

	// Setup output writer
	var outWriter io.Writer = cmd.OutOrStdout()
	if outputFileFlag != "" {
		f, err := os.Create(outputFileFlag)
		if err != nil {
			return exitWith(ExitUsageError, fmt.Errorf("cannot create output file: %w", err))
		}
		defer f.Close()
		outWriter = f
	}

	newRunFormatter := func() Formatter {
		// Output was validated with the config
		f, _ := newFormatter(cfg.Output, outWriter, verboseFlag > 0, cfg.GetNoColor())
		return f
	}

	notifyManager, err := newNotifyManager(cfg)
	if err != nil {
		return exitWith(ExitConfigError, err)
	}

	var store *db.Store
	if cfg.History != "" {
		if dir := filepath.Dir(cfg.History); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return exitWith(ExitConfigError, fmt.Errorf("creating history directory: %w", err))
			}
		}
		store, err = db.Open(cfg.History)
		if err != nil {
			return exitWith(ExitConfigError, fmt.Errorf("opening history: %w", err))
		}
		defer store.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if notifyManager != nil && store != nil {
		notifyManager.SetLastState(lastRunsPassed(ctx, store, files, logger))
	}

	timeout, _ := cfg.GetTimeout()
	r := runner.NewRunner(&runner.Config{
		Environment:    cfg.DefaultEnvironment,
		Environments:   cfg.Environments,
		EnvFile:        envFileFlag,
		Timeout:        timeout,
		FollowRedirect: cfg.GetFollowRedirects(),
		MaxRedirects:   cfg.MaxRedirects,
		Proxy:          cfg.Proxy,
		Headers:        cfg.Headers,
		Rate:           cfg.Rate,
		Bail:           cfg.GetBail(),
		NoColor:        cfg.GetNoColor(),
	}, runner.WithLogger(logger))

	s := &session{
		cmd:      cmd,
		cfg:      cfg,
		runner:   r,
		store:    store,
		notifier: notifyManager,
		logger:   logger,
		files:    files,
	}

	formatter := newRunFormatter()
	formatter.FormatHeader(version)
	code, err := s.run(ctx, formatter)
	if err != nil {
		return err
	}

	if !watchFlag {
		if code != ExitSuccess {
			return exitWith(code, nil)
		}
		return nil
	}

	return s.watch(ctx, args, newRunFormatter)
}

// session runs the collected files, possibly several times in watch mode
type session struct {
	mu       sync.Mutex
	cmd      *cobra.Command
	cfg      *config.Config
	runner   *runner.Runner
	store    *db.Store
	notifier *notify.Manager
	logger   logging.Logger
	files    []string
}

// run executes every file once and returns the exit code of the worst outcome
func (s *session) run(ctx context.Context, formatter Formatter) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	code := ExitSuccess
	var results []*runner.RunResult

	for _, file := range s.files {
		if dryRunFlag {
			suite, err := parser.ParseFile(file)
			if err != nil {
				formatter.FormatError(err)
				code = worse(code, ExitParseError)
				continue
			}
			fmt.Fprintf(s.cmd.OutOrStdout(), "Would run: %s (%d targets, %d checks, %d equivalences)\n",
				file, len(suite.Targets), suite.CheckCount(), len(suite.Equivalences))
			continue
		}

		startedAt := time.Now()
		result, err := s.runner.RunFile(ctx, file)
		if err != nil && result == nil {
			formatter.FormatError(err)
			if isParseError(err) {
				code = worse(code, ExitParseError)
			} else {
				code = worse(code, ExitTestFailure)
			}
			continue
		}

		formatter.FormatResult(result)
		results = append(results, result)
		if err != nil {
			// Interrupted; the partial result is shown but not recorded
			return code, err
		}

		s.record(ctx, result, startedAt)

		switch {
		case result.Unreachable():
			code = worse(code, ExitNetworkError)
		case result.Status() == checker.StatusFailed:
			code = worse(code, ExitTestFailure)
		}

		if s.cfg.GetBail() && result.Status() == checker.StatusFailed {
			break
		}
	}

	if flushable, ok := formatter.(Flushable); ok {
		if err := flushable.Flush(time.Since(start)); err != nil {
			return code, fmt.Errorf("error writing output: %w", err)
		}
	}

	if s.cfg.MetricsFile != "" && len(results) > 0 {
		exporter := metrics.NewExporter()
		for _, result := range results {
			exporter.Observe(result)
		}
		if err := exporter.WriteFile(s.cfg.MetricsFile); err != nil {
			s.logger.Warningf("failed to export metrics: %v", err)
		}
	}

	if s.notifier != nil && len(results) > 0 {
		summary := notify.Summarize(s.cfg.DefaultEnvironment, results...)
		if err := s.notifier.Notify(summary); err != nil {
			s.logger.Warningf("failed to send notification: %v", err)
		}
	}

	return code, nil
}

func (s *session) record(ctx context.Context, result *runner.RunResult, startedAt time.Time) {
	if s.store == nil {
		return
	}
	if _, err := s.store.Record(ctx, db.RunFromResult(result, startedAt)); err != nil {
		s.logger.Warningf("failed to record run of %s: %v", result.File, err)
	}
}

// watch re-runs every file when a suite, schema or .env file changes
func (s *session) watch(ctx context.Context, args []string, newFormatter func() Formatter) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer watcher.Close()

	watchedDirs := make(map[string]bool)
	addDir := func(dir string) {
		if watchedDirs[dir] {
			return
		}
		if err := watcher.Add(dir); err != nil {
			s.logger.Warningf("failed to watch %s: %v", dir, err)
		}
		watchedDirs[dir] = true
	}

	for _, file := range s.files {
		addDir(filepath.Dir(file))
	}
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err == nil && info.IsDir() {
			_ = filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if d.IsDir() {
					addDir(path)
				}
				return nil
			})
		}
	}

	out := s.cmd.OutOrStdout()
	fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n\n")

	rerun := &debouncer{delay: WatchDebounceDelay}
	// Pending and in-flight re-runs must finish before the caller closes
	// the history store and the output file.
	defer rerun.stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) {
				continue
			}
			if !isWatchedFile(event.Name) {
				continue
			}

			name := event.Name
			rerun.trigger(func() {
				if ctx.Err() != nil {
					return
				}
				fmt.Fprintf(out, "\n\nFile changed: %s\nRe-running...\n\n", name)
				if _, err := s.run(ctx, newFormatter()); err != nil {
					s.logger.Errorf("re-run: %v", err)
				}
				fmt.Fprintf(out, "\nWatching for changes... (press Ctrl+C to stop)\n")
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.logger.Errorf("watcher error: %v", err)
		}
	}
}

// debouncer collapses bursts of triggers into one delayed call
type debouncer struct {
	delay time.Duration

	mu      sync.Mutex
	timer   *time.Timer
	wg      sync.WaitGroup
	stopped bool
}

// trigger schedules fn after the delay, replacing a call still pending
func (d *debouncer) trigger(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.wg.Add(1)
	d.timer = time.AfterFunc(d.delay, func() {
		defer d.wg.Done()
		fn()
	})
}

// stop drops a pending call and waits for a running one
func (d *debouncer) stop() {
	d.mu.Lock()
	d.stopped = true
	if d.timer != nil && d.timer.Stop() {
		d.wg.Done()
	}
	d.mu.Unlock()
	d.wg.Wait()
}

// lastRunsPassed is false when the latest recorded run of any file failed
func lastRunsPassed(ctx context.Context, store *db.Store, files []string, logger logging.Logger) bool {
	for _, file := range files {
		last, err := store.LastRun(ctx, file)
		if errors.Is(err, db.ErrNoRuns) {
			continue
		}
		if err != nil {
			logger.Warningf("reading history of %s: %v", file, err)
			continue
		}
		if !last.Passed() {
			return false
		}
	}
	return true
}

// worse returns the exit code of the more serious outcome
func worse(a, b int) int {
	rank := func(code int) int {
		switch code {
		case ExitSuccess:
			return 0
		case ExitTestFailure:
			return 1
		case ExitNetworkError:
			return 2
		}
		return 3
	}
	if rank(b) > rank(a) {
		return b
	}
	return a
}

func collectFiles(args []string) ([]string, error) {
	var files []string

	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("cannot access %s: %w", arg, err)
		}

		if info.IsDir() {
			err := filepath.WalkDir(arg, func(path string, d os.DirEntry, err error) error {
				if err != nil {
					return err
				}
				if !d.IsDir() && isSuiteFile(path) {
					files = append(files, path)
				}
				return nil
			})
			if err != nil {
				return nil, err
			}
		} else if hasSuiteExt(arg) {
			files = append(files, arg)
		}
	}

	return files, nil
}

var suiteSuffixes = []string{".verif.yaml", ".verif.yml", ".verif.json"}

// isSuiteFile matches suite files found by walking a directory. Config
// files share the suffix and are excluded.
func isSuiteFile(path string) bool {
	base := filepath.Base(path)
	if slices.Contains(config.ConfigFilenames, base) {
		return false
	}
	for _, suffix := range suiteSuffixes {
		if strings.HasSuffix(base, suffix) && len(base) > len(suffix) {
			return true
		}
	}
	return false
}

func hasSuiteExt(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml", ".json":
		return true
	}
	return false
}

func isWatchedFile(path string) bool {
	return hasSuiteExt(path) || filepath.Base(path) == ".env"
}
