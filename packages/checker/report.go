package checker

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/abdul-hamid-achik/verif/packages/ansi"
)

// Status is the outcome of a checker session.
type Status int

const (
	StatusPassed Status = 0
	StatusFailed Status = 1
)

func (s Status) String() string {
	if s == StatusPassed {
		return "passed"
	}
	return "failed"
}

// ExitCode maps the status to a process exit code.
func (s Status) ExitCode() int {
	return int(s)
}

// ReturnStatus computes the session status without producing output.
func (c *Checker) ReturnStatus() Status {
	if len(c.failures) == 0 {
		return StatusPassed
	}
	return StatusFailed
}

// Report renders the report, writes it to the configured output and keeps a
// copy available through ReportOutput. Every call starts from scratch.
func (c *Checker) Report() Status {
	c.reportOutput = c.renderReport()
	fmt.Fprint(c.out, c.reportOutput)
	return c.ReturnStatus()
}

// ReportOutput returns the text produced by the last Report call.
func (c *Checker) ReportOutput() string {
	return c.reportOutput
}

func (c *Checker) renderReport() string {
	var b strings.Builder

	banner := "Report for: " + c.reportTitle
	delimiter := strings.Repeat("-", utf8.RuneCountInString(banner))
	b.WriteString(delimiter + "\n" + banner + "\n" + delimiter + "\n")

	if len(c.failures) == 0 {
		summary := fmt.Sprintf("%d tests processed. All tests processed without errors", c.testCount)
		b.WriteString(c.colorize(summary, "green") + "\n\n")
		return b.String()
	}

	for _, f := range c.failures {
		b.WriteString(f.Message + "\n")
	}

	var summary string
	if len(c.failures) == 1 {
		summary = fmt.Sprintf("%d tests processed. There is one error", c.testCount)
	} else {
		summary = fmt.Sprintf("%d tests processed. There are %d errors", c.testCount, len(c.failures))
	}
	b.WriteString(c.colorize(summary, "red") + "\n\n")
	return b.String()
}

func (c *Checker) colorize(text, colorName string) string {
	if c.noColor {
		return text
	}
	return ansi.Colorize(text, colorName, true)
}
