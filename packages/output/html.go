package output

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"regexp"
	"time"

	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

// HTMLOutput is the data behind the HTML report
type HTMLOutput struct {
	Version       string
	Summary       JSONSummary
	Files         []HTMLFile
	Duration      float64
	Time          string
	PassedPercent float64
	FailedPercent float64
}

// HTMLFile groups the targets of one suite file
type HTMLFile struct {
	File     string
	Duration float64
	Requests int
	Latency  JSONLatency
	Targets  []HTMLTarget
}

// HTMLTarget is one checker report
type HTMLTarget struct {
	Name        string
	Title       string
	BaseURI     string
	Tests       int
	Duration    float64
	StatusClass string
	Failures    []JSONFailure
	Report      string
}

// HTMLFormatter writes a standalone HTML page once every file has run
type HTMLFormatter struct {
	writer  io.Writer
	files   []HTMLFile
	summary JSONSummary
	version string
}

// HTMLOption is a functional option for HTMLFormatter
type HTMLOption func(*HTMLFormatter)

// NewHTMLFormatter creates a new HTML formatter
func NewHTMLFormatter(opts ...HTMLOption) *HTMLFormatter {
	f := &HTMLFormatter{
		writer: os.Stdout,
		files:  make([]HTMLFile, 0),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// HTMLWithWriter sets the output writer
func HTMLWithWriter(w io.Writer) HTMLOption {
	return func(f *HTMLFormatter) {
		f.writer = w
	}
}

var escapeSequence = regexp.MustCompile(`\x1b\[[0-9;]*m`)

// FormatResult accumulates the targets of a run
func (f *HTMLFormatter) FormatResult(result *runner.RunResult) {
	file := HTMLFile{
		File:     result.File,
		Duration: milliseconds(result.Duration),
		Requests: result.Requests,
		Latency:  newJSONLatency(result),
	}

	for _, t := range result.Targets {
		target := HTMLTarget{
			Name:     t.Name,
			Title:    t.Title,
			BaseURI:  t.BaseURI,
			Tests:    t.Tests,
			Duration: milliseconds(t.Duration),
			Report:   escapeSequence.ReplaceAllString(t.Report, ""),
			Failures: newJSONFailures(t.Failures),
		}
		switch {
		case t.Skipped:
			target.StatusClass = "skipped"
		case len(t.Failures) > 0:
			target.StatusClass = "failed"
		default:
			target.StatusClass = "passed"
		}
		file.Targets = append(file.Targets, target)
	}

	passed, failed, skipped := result.Counts()
	f.summary.Targets += len(result.Targets)
	f.summary.Passed += passed
	f.summary.Failed += failed
	f.summary.Skipped += skipped
	f.summary.Tests += result.Tests()
	f.summary.Failures += result.FailureCount()

	f.files = append(f.files, file)
}

// FormatError handles errors (no-op for HTML, they go to stderr)
func (f *HTMLFormatter) FormatError(err error) {
}

// FormatHeader captures the version for the HTML report
func (f *HTMLFormatter) FormatHeader(version string) {
	f.version = version
}

// Flush writes the accumulated HTML output
func (f *HTMLFormatter) Flush(totalDuration time.Duration) error {
	var passedPct, failedPct float64
	if f.summary.Targets > 0 {
		passedPct = float64(f.summary.Passed) / float64(f.summary.Targets) * 100
		failedPct = float64(f.summary.Failed) / float64(f.summary.Targets) * 100
	}

	out := HTMLOutput{
		Version:       f.version,
		Summary:       f.summary,
		Files:         f.files,
		Duration:      milliseconds(totalDuration),
		Time:          time.Now().Format("2006-01-02 15:04:05"),
		PassedPercent: passedPct,
		FailedPercent: failedPct,
	}

	tmpl, err := template.New("report").Parse(htmlTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse HTML template: %w", err)
	}
	return tmpl.Execute(f.writer, out)
}

const htmlTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>verif Report</title>
    <style>
        :root {
            --bg-primary: #1a1a2e;
            --bg-secondary: #16213e;
            --text-primary: #eee;
            --text-secondary: #aaa;
            --success: #00d26a;
            --error: #ff4757;
            --warning: #ffa502;
        }
        body {
            font-family: -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif;
            background: var(--bg-primary);
            color: var(--text-primary);
            margin: 0;
            padding: 2rem;
        }
        .container { max-width: 1000px; margin: 0 auto; }
        .meta { color: var(--text-secondary); margin-bottom: 2rem; }
        .summary { display: grid; grid-template-columns: repeat(auto-fit, minmax(120px, 1fr)); gap: 1rem; margin-bottom: 1rem; }
        .card { background: var(--bg-secondary); padding: 1rem; border-radius: 8px; text-align: center; }
        .card .value { font-size: 1.5rem; font-weight: bold; }
        .bar { display: flex; height: 6px; border-radius: 3px; overflow: hidden; margin-bottom: 2rem; background: var(--warning); }
        .bar .passed { background: var(--success); }
        .bar .failed { background: var(--error); }
        .target { background: var(--bg-secondary); border-radius: 8px; padding: 1rem; margin-bottom: 1rem; border-left: 4px solid var(--text-secondary); }
        .target.passed { border-left-color: var(--success); }
        .target.failed { border-left-color: var(--error); }
        .target.skipped { border-left-color: var(--warning); }
        .uri { color: var(--text-secondary); font-size: 0.9rem; }
        .failure { color: var(--error); }
        pre { background: #0f3460; padding: 0.75rem; border-radius: 4px; overflow-x: auto; white-space: pre-wrap; }
    </style>
</head>
<body>
    <div class="container">
        <h1>verif Report</h1>
        <div class="meta">{{if .Version}}verif {{.Version}} · {{end}}{{.Time}} · {{printf "%.0f" .Duration}}ms</div>
        <div class="summary">
            <div class="card"><div class="value">{{.Summary.Targets}}</div><div>Targets</div></div>
            <div class="card"><div class="value">{{.Summary.Passed}}</div><div>Passed</div></div>
            <div class="card"><div class="value">{{.Summary.Failed}}</div><div>Failed</div></div>
            <div class="card"><div class="value">{{.Summary.Skipped}}</div><div>Skipped</div></div>
            <div class="card"><div class="value">{{.Summary.Tests}}</div><div>Tests</div></div>
            <div class="card"><div class="value">{{.Summary.Failures}}</div><div>Failures</div></div>
        </div>
        <div class="bar">
            <div class="passed" style="width: {{printf "%.1f" .PassedPercent}}%"></div>
            <div class="failed" style="width: {{printf "%.1f" .FailedPercent}}%"></div>
        </div>
        {{range .Files}}
        <h2>{{.File}}</h2>
        <div class="meta">{{.Requests}} requests · p50 {{printf "%.1f" .Latency.P50}}ms · p95 {{printf "%.1f" .Latency.P95}}ms · max {{printf "%.1f" .Latency.Max}}ms</div>
        {{range .Targets}}
        <div class="target {{.StatusClass}}">
            <h3>{{.Title}} <span class="uri">{{.BaseURI}}</span></h3>
            {{if eq .StatusClass "skipped"}}<div>Skipped after an earlier target failed</div>{{else}}
            <div class="uri">{{.Tests}} tests · {{printf "%.0f" .Duration}}ms</div>
            {{range .Failures}}<div class="failure">{{.Kind}} at {{.URI}}</div>{{end}}
            <pre>{{.Report}}</pre>{{end}}
        </div>
        {{end}}
        {{end}}
    </div>
</body>
</html>`
