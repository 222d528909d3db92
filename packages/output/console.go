package output

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

// FormatResult prints every target's checker report followed by a summary
// of the file.
func (f *ConsoleFormatter) FormatResult(result *runner.RunResult) {
	green := color.New(color.FgGreen).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	fmt.Fprintf(f.writer, "\n%s\n\n", bold("Running: "+result.File))

	for _, t := range result.Targets {
		if t.Skipped {
			fmt.Fprintf(f.writer, "  %s %s (skipped)\n\n", yellow("-"), t.Title)
			continue
		}
		fmt.Fprint(f.writer, t.Report)
		if f.verbose {
			fmt.Fprintf(f.writer, "%s\n\n", cyan(fmt.Sprintf("%s: %s in %dms", t.Name, t.BaseURI, t.Duration.Milliseconds())))
		}
	}

	passed, failed, skipped := result.Counts()
	fmt.Fprintf(f.writer, "Targets: ")
	if passed > 0 {
		fmt.Fprintf(f.writer, "%s, ", green(fmt.Sprintf("%d passed", passed)))
	}
	if failed > 0 {
		fmt.Fprintf(f.writer, "%s, ", red(fmt.Sprintf("%d failed", failed)))
	}
	if skipped > 0 {
		fmt.Fprintf(f.writer, "%s, ", yellow(fmt.Sprintf("%d skipped", skipped)))
	}
	fmt.Fprintf(f.writer, "%d total\n", len(result.Targets))
	fmt.Fprintf(f.writer, "Tests:   %d, %d failures\n", result.Tests(), result.FailureCount())
	fmt.Fprintf(f.writer, "Time:    %dms\n", result.Duration.Milliseconds())

	if f.verbose && result.Latency.Count > 0 {
		l := result.Latency
		fmt.Fprintf(f.writer, "Latency: p50 %s, p95 %s, p99 %s, max %s over %d requests",
			ms(l.P50), ms(l.P95), ms(l.P99), ms(l.Max), l.Count)
		if result.TransportErrors > 0 {
			fmt.Fprintf(f.writer, " (%s)", red(fmt.Sprintf("%d without response", result.TransportErrors)))
		}
		fmt.Fprintln(f.writer)
	}
	fmt.Fprintln(f.writer)
}

func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("verif"), version)
}

func ms(d time.Duration) string {
	return fmt.Sprintf("%.1fms", float64(d.Microseconds())/1000)
}
