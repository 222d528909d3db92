// Package notify sends chat notifications about verif runs.
package notify

import (
	"errors"
	"fmt"
	"time"

	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

// NotifyOn specifies when to send notifications
type NotifyOn string

const (
	// NotifyAlways sends notifications for every run
	NotifyAlways NotifyOn = "always"
	// NotifyFailure sends notifications only when a target fails
	NotifyFailure NotifyOn = "failure"
	// NotifySuccess sends notifications only when every target passes
	NotifySuccess NotifyOn = "success"
	// NotifyRecovery sends notifications on failure and on the first success after one
	NotifyRecovery NotifyOn = "recovery"
)

// ParseNotifyOn validates a policy name. An empty name means failure.
func ParseNotifyOn(s string) (NotifyOn, error) {
	switch on := NotifyOn(s); on {
	case "":
		return NotifyFailure, nil
	case NotifyAlways, NotifyFailure, NotifySuccess, NotifyRecovery:
		return on, nil
	}
	return "", fmt.Errorf("unknown notify policy %q (want always, failure, success or recovery)", s)
}

// RunSummary represents the summary of a run for notifications
type RunSummary struct {
	TotalFiles     int            `json:"total_files"`
	TotalTargets   int            `json:"total_targets"`
	PassedTargets  int            `json:"passed_targets"`
	FailedTargets  int            `json:"failed_targets"`
	SkippedTargets int            `json:"skipped_targets"`
	Tests          int            `json:"tests"`
	Failures       int            `json:"failures"`
	Duration       time.Duration  `json:"duration"`
	Environment    string         `json:"environment,omitempty"`
	FailedResults  []FailedTarget `json:"failed_results,omitempty"`
	IsRecovery     bool           `json:"is_recovery,omitempty"`
}

// FailedTarget represents a failed target for notifications
type FailedTarget struct {
	Name   string   `json:"name"`
	File   string   `json:"file"`
	Errors []string `json:"errors,omitempty"`
}

// Success reports whether no target failed
func (s *RunSummary) Success() bool {
	return s.FailedTargets == 0
}

// Summarize builds a summary from the results of one or more suite files
func Summarize(environment string, results ...*runner.RunResult) *RunSummary {
	s := &RunSummary{
		TotalFiles:  len(results),
		Environment: environment,
	}
	for _, r := range results {
		passed, failed, skipped := r.Counts()
		s.PassedTargets += passed
		s.FailedTargets += failed
		s.SkippedTargets += skipped
		s.TotalTargets += len(r.Targets)
		s.Tests += r.Tests()
		s.Failures += r.FailureCount()
		s.Duration += r.Duration

		for _, t := range r.Targets {
			if len(t.Failures) == 0 {
				continue
			}
			ft := FailedTarget{Name: t.Title, File: r.File}
			for _, f := range t.Failures {
				ft.Errors = append(ft.Errors, fmt.Sprintf("%s at %s", f.Kind, f.URI))
			}
			s.FailedResults = append(s.FailedResults, ft)
		}
	}
	return s
}

// Notifier is the interface for notification services
type Notifier interface {
	// Notify sends a notification about run results
	Notify(summary *RunSummary) error

	// Name returns the name of the notifier
	Name() string
}

// Manager manages multiple notifiers
type Manager struct {
	notifiers []Notifier
	notifyOn  NotifyOn
	lastState bool // true if last run was successful
}

// NewManager creates a new notification manager
func NewManager(notifyOn NotifyOn, notifiers ...Notifier) *Manager {
	return &Manager{
		notifiers: notifiers,
		notifyOn:  notifyOn,
		lastState: true, // Assume success initially
	}
}

// AddNotifier adds a notifier to the manager
func (m *Manager) AddNotifier(n Notifier) {
	m.notifiers = append(m.notifiers, n)
}

// SetLastState seeds the outcome of the previous run, typically from the
// run history, so a recovery is detected across processes.
func (m *Manager) SetLastState(success bool) {
	m.lastState = success
}

// ShouldNotify applies the policy to a summary without sending anything
func (m *Manager) ShouldNotify(summary *RunSummary) bool {
	switch m.notifyOn {
	case NotifyAlways:
		return true
	case NotifyFailure:
		return !summary.Success()
	case NotifySuccess:
		return summary.Success()
	case NotifyRecovery:
		return !summary.Success() || !m.lastState
	}
	return false
}

// Notify sends notifications based on the configured policy. Every
// notifier is tried; their errors are joined.
func (m *Manager) Notify(summary *RunSummary) error {
	shouldNotify := m.ShouldNotify(summary)
	if m.notifyOn == NotifyRecovery && summary.Success() && !m.lastState {
		summary.IsRecovery = true
	}
	m.lastState = summary.Success()

	if !shouldNotify {
		return nil
	}

	var errs []error
	for _, n := range m.notifiers {
		if err := n.Notify(summary); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}
