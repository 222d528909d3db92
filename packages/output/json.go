package output

import (
	"encoding/json"
	"io"
	"os"
	"time"

	"github.com/abdul-hamid-achik/verif/packages/checker"
	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

// JSONOutput represents the complete JSON output structure
type JSONOutput struct {
	Summary  JSONSummary `json:"summary"`
	Runs     []JSONRun   `json:"runs"`
	Duration float64     `json:"duration"`
	Time     string      `json:"time"`
}

// JSONSummary counts targets and assertions over all runs
type JSONSummary struct {
	Targets  int `json:"targets"`
	Passed   int `json:"passed"`
	Failed   int `json:"failed"`
	Skipped  int `json:"skipped"`
	Tests    int `json:"tests"`
	Failures int `json:"failures"`
}

// JSONRun is one suite file
type JSONRun struct {
	File     string       `json:"file"`
	Status   string       `json:"status"`
	Duration float64      `json:"duration"`
	Bailed   bool         `json:"bailed,omitempty"`
	Latency  JSONLatency  `json:"latency"`
	Targets  []JSONTarget `json:"targets"`
}

// JSONLatency holds request latencies in milliseconds
type JSONLatency struct {
	Requests int     `json:"requests"`
	Errors   int     `json:"errors"`
	P50      float64 `json:"p50"`
	P95      float64 `json:"p95"`
	P99      float64 `json:"p99"`
	Max      float64 `json:"max"`
}

// JSONTarget is the final state of one checker
type JSONTarget struct {
	Name     string        `json:"name"`
	Title    string        `json:"title"`
	URI      string        `json:"uri,omitempty"`
	Status   string        `json:"status"`
	Skipped  bool          `json:"skipped,omitempty"`
	Tests    int           `json:"tests"`
	Duration float64       `json:"duration"`
	Failures []JSONFailure `json:"failures,omitempty"`
}

// JSONFailure represents a recorded failure
type JSONFailure struct {
	Kind     string `json:"kind"`
	URI      string `json:"uri"`
	Expected string `json:"expected,omitempty"`
	Received string `json:"received,omitempty"`
	Message  string `json:"message"`
}

// JSONFormatter formats run results as JSON
type JSONFormatter struct {
	writer io.Writer
	runs   []JSONRun
}

type JSONOption func(*JSONFormatter)

func NewJSONFormatter(opts ...JSONOption) *JSONFormatter {
	f := &JSONFormatter{
		writer: os.Stdout,
		runs:   make([]JSONRun, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

func JSONWithWriter(w io.Writer) JSONOption {
	return func(f *JSONFormatter) {
		f.writer = w
	}
}

func (f *JSONFormatter) FormatResult(result *runner.RunResult) {
	run := JSONRun{
		File:     result.File,
		Status:   result.Status().String(),
		Duration: milliseconds(result.Duration),
		Bailed:   result.Bailed,
		Latency:  newJSONLatency(result),
		Targets: make([]JSONTarget, 0, len(result.Targets)),
	}

	for _, t := range result.Targets {
		target := JSONTarget{
			Name:     t.Name,
			Title:    t.Title,
			URI:      t.BaseURI,
			Status:   t.Status.String(),
			Skipped:  t.Skipped,
			Tests:    t.Tests,
			Duration: milliseconds(t.Duration),
		}
		if t.Skipped {
			target.Status = "skipped"
		}
		target.Failures = newJSONFailures(t.Failures)
		run.Targets = append(run.Targets, target)
	}

	f.runs = append(f.runs, run)
}

func (f *JSONFormatter) FormatError(err error) {
	// Errors are reported on stderr by the caller
}

func (f *JSONFormatter) FormatHeader(version string) {
	// No header needed for JSON output
}

// Flush writes the accumulated JSON output
func (f *JSONFormatter) Flush(totalDuration time.Duration) error {
	var summary JSONSummary
	for _, run := range f.runs {
		for _, t := range run.Targets {
			summary.Targets++
			summary.Tests += t.Tests
			summary.Failures += len(t.Failures)
			switch {
			case t.Skipped:
				summary.Skipped++
			case len(t.Failures) > 0:
				summary.Failed++
			default:
				summary.Passed++
			}
		}
	}

	output := JSONOutput{
		Summary:  summary,
		Runs:     f.runs,
		Duration: milliseconds(totalDuration),
		Time:     time.Now().Format(time.RFC3339),
	}

	encoder := json.NewEncoder(f.writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(output)
}

func newJSONLatency(result *runner.RunResult) JSONLatency {
	return JSONLatency{
		Requests: result.Requests,
		Errors:   result.TransportErrors,
		P50:      milliseconds(result.Latency.P50),
		P95:      milliseconds(result.Latency.P95),
		P99:      milliseconds(result.Latency.P99),
		Max:      milliseconds(result.Latency.Max),
	}
}

func newJSONFailures(failures []checker.Failure) []JSONFailure {
	var out []JSONFailure
	for _, fail := range failures {
		out = append(out, JSONFailure{
			Kind:     fail.Kind.String(),
			URI:      fail.URI,
			Expected: fail.Expected,
			Received: fail.Received,
			Message:  fail.Message,
		})
	}
	return out
}

func milliseconds(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}
