package runner

import (
	"time"

	"github.com/abdul-hamid-achik/verif/packages/checker"
)

// RunResult is the outcome of running one suite file
type RunResult struct {
	File            string
	Targets         []*TargetResult
	Duration        time.Duration
	Latency         Latency
	Requests        int
	TransportErrors int
	Bailed          bool
}

// TargetResult is the final state of one target's checker
type TargetResult struct {
	Name     string
	Title    string
	BaseURI  string
	Tests    int
	Failures []checker.Failure
	Status   checker.Status
	Skipped  bool
	Report   string // rendered checker report, empty when skipped
	Duration time.Duration
}

// Status is failed when any target failed
func (r *RunResult) Status() checker.Status {
	for _, t := range r.Targets {
		if t.Status == checker.StatusFailed {
			return checker.StatusFailed
		}
	}
	return checker.StatusPassed
}

// Tests returns the number of assertions evaluated across all targets
func (r *RunResult) Tests() int {
	n := 0
	for _, t := range r.Targets {
		n += t.Tests
	}
	return n
}

// FailureCount returns the number of recorded failures across all targets
func (r *RunResult) FailureCount() int {
	n := 0
	for _, t := range r.Targets {
		n += len(t.Failures)
	}
	return n
}

// Counts returns how many targets passed, failed and were skipped
func (r *RunResult) Counts() (passed, failed, skipped int) {
	for _, t := range r.Targets {
		switch {
		case t.Skipped:
			skipped++
		case t.Status == checker.StatusFailed:
			failed++
		default:
			passed++
		}
	}
	return passed, failed, skipped
}

// Unreachable reports whether requests were made and none got a response
func (r *RunResult) Unreachable() bool {
	return r.Requests > 0 && r.TransportErrors == r.Requests
}
