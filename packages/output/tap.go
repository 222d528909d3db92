package output

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

// TAPFormatter formats results in TAP (Test Anything Protocol) format,
// one test point per target
type TAPFormatter struct {
	writer    io.Writer
	testCount int
	results   []tapResult
}

type tapResult struct {
	number   int
	name     string
	skipped  bool
	tests    int
	failures []string
}

// tapDiagnostic is the YAML block attached to a failed test point
type tapDiagnostic struct {
	Tests    int      `yaml:"tests"`
	Failures []string `yaml:"failures"`
}

type TAPOption func(*TAPFormatter)

func NewTAPFormatter(opts ...TAPOption) *TAPFormatter {
	f := &TAPFormatter{
		writer:  os.Stdout,
		results: make([]tapResult, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func TAPWithWriter(w io.Writer) TAPOption {
	return func(f *TAPFormatter) {
		f.writer = w
	}
}

func (f *TAPFormatter) FormatResult(result *runner.RunResult) {
	for _, t := range result.Targets {
		f.testCount++
		tr := tapResult{
			number:  f.testCount,
			name:    t.Title,
			skipped: t.Skipped,
			tests:   t.Tests,
		}
		for _, fail := range t.Failures {
			tr.failures = append(tr.failures, strings.TrimRight(fail.Message, "\n"))
		}
		f.results = append(f.results, tr)
	}
}

func (f *TAPFormatter) FormatError(err error) {
	// Errors are reported on stderr by the caller
}

func (f *TAPFormatter) FormatHeader(version string) {
	// Header is written in Flush
}

// Flush writes the accumulated TAP output
func (f *TAPFormatter) Flush(totalDuration time.Duration) error {
	fmt.Fprintf(f.writer, "TAP version 13\n")
	fmt.Fprintf(f.writer, "1..%d\n", f.testCount)

	for _, r := range f.results {
		if r.skipped {
			fmt.Fprintf(f.writer, "ok %d - %s # SKIP earlier target failed\n", r.number, r.name)
			continue
		}

		if len(r.failures) == 0 {
			fmt.Fprintf(f.writer, "ok %d - %s\n", r.number, r.name)
			continue
		}

		fmt.Fprintf(f.writer, "not ok %d - %s\n", r.number, r.name)
		diag, err := yaml.Marshal(tapDiagnostic{Tests: r.tests, Failures: r.failures})
		if err != nil {
			return fmt.Errorf("encoding diagnostics: %w", err)
		}
		fmt.Fprintf(f.writer, "  ---\n")
		for _, line := range strings.Split(strings.TrimRight(string(diag), "\n"), "\n") {
			fmt.Fprintf(f.writer, "  %s\n", line)
		}
		fmt.Fprintf(f.writer, "  ...\n")
	}

	fmt.Fprintf(f.writer, "# time %dms\n", totalDuration.Milliseconds())
	return nil
}
