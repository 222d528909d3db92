package notify

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdul-hamid-achik/verif/packages/checker"
	"github.com/abdul-hamid-achik/verif/packages/core/runner"
)

type recordingNotifier struct {
	summaries []*RunSummary
	err       error
}

func (r *recordingNotifier) Notify(s *RunSummary) error {
	r.summaries = append(r.summaries, s)
	return r.err
}

func (r *recordingNotifier) Name() string { return "recording" }

func failing() *RunSummary { return &RunSummary{TotalTargets: 2, FailedTargets: 1} }
func passing() *RunSummary { return &RunSummary{TotalTargets: 2, PassedTargets: 2} }

func TestManager_Policies(t *testing.T) {
	tests := []struct {
		on      NotifyOn
		summary *RunSummary
		want    bool
	}{
		{NotifyAlways, passing(), true},
		{NotifyAlways, failing(), true},
		{NotifyFailure, passing(), false},
		{NotifyFailure, failing(), true},
		{NotifySuccess, passing(), true},
		{NotifySuccess, failing(), false},
		{NotifyRecovery, passing(), false},
		{NotifyRecovery, failing(), true},
	}
	for _, tt := range tests {
		rec := &recordingNotifier{}
		m := NewManager(tt.on, rec)
		require.NoError(t, m.Notify(tt.summary))
		assert.Equal(t, tt.want, len(rec.summaries) == 1, "%s / success=%v", tt.on, tt.summary.Success())
	}
}

func TestManager_Recovery(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewManager(NotifyRecovery, rec)

	require.NoError(t, m.Notify(failing()))
	second := passing()
	require.NoError(t, m.Notify(second))
	require.NoError(t, m.Notify(passing()))

	require.Len(t, rec.summaries, 2)
	assert.True(t, second.IsRecovery)
}

func TestManager_RecoverySeededFromHistory(t *testing.T) {
	rec := &recordingNotifier{}
	m := NewManager(NotifyRecovery, rec)
	m.SetLastState(false)

	summary := passing()
	require.NoError(t, m.Notify(summary))
	require.Len(t, rec.summaries, 1)
	assert.True(t, summary.IsRecovery)
}

func TestManager_JoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	ok := &recordingNotifier{}
	m := NewManager(NotifyAlways, &recordingNotifier{err: boom}, ok)

	err := m.Notify(passing())
	assert.ErrorIs(t, err, boom)
	assert.Len(t, ok.summaries, 1, "a failing notifier does not stop the others")
}

func TestParseNotifyOn(t *testing.T) {
	on, err := ParseNotifyOn("")
	require.NoError(t, err)
	assert.Equal(t, NotifyFailure, on)

	on, err = ParseNotifyOn("recovery")
	require.NoError(t, err)
	assert.Equal(t, NotifyRecovery, on)

	_, err = ParseNotifyOn("sometimes")
	assert.Error(t, err)
}

func TestSummarize(t *testing.T) {
	result := &runner.RunResult{
		File:     "l10n.yaml",
		Duration: time.Second,
		Targets: []*runner.TargetResult{
			{Name: "old", Title: "Old API", Tests: 3, Status: checker.StatusPassed},
			{Name: "new", Title: "New API", Tests: 2, Status: checker.StatusFailed, Failures: []checker.Failure{
				{Kind: checker.KindInvalidJSON, URI: "http://example.org/api/v2/done/"},
			}},
			{Name: "next", Title: "Next API", Skipped: true},
		},
	}

	s := Summarize("staging", result)
	assert.Equal(t, 1, s.TotalFiles)
	assert.Equal(t, 3, s.TotalTargets)
	assert.Equal(t, 1, s.PassedTargets)
	assert.Equal(t, 1, s.FailedTargets)
	assert.Equal(t, 1, s.SkippedTargets)
	assert.Equal(t, 5, s.Tests)
	assert.Equal(t, 1, s.Failures)
	assert.False(t, s.Success())
	require.Len(t, s.FailedResults, 1)
	assert.Equal(t, FailedTarget{
		Name:   "New API",
		File:   "l10n.yaml",
		Errors: []string{"InvalidJSON at http://example.org/api/v2/done/"},
	}, s.FailedResults[0])
}

func TestSlackNotifier(t *testing.T) {
	var got slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	n := NewSlackNotifier(server.URL, WithSlackChannel("#l10n"))
	assert.Equal(t, "slack", n.Name())

	summary := failing()
	summary.FailedResults = []FailedTarget{{Name: "New API", File: "l10n.yaml", Errors: []string{"InvalidJSON at x"}}}
	require.NoError(t, n.Notify(summary))

	assert.Equal(t, "#l10n", got.Channel)
	assert.Equal(t, "verif", got.Username)
	require.Len(t, got.Attachments, 1)
	assert.Equal(t, "danger", got.Attachments[0].Color)
	assert.Equal(t, ":x: 1 of 2 target(s) failed", got.Attachments[0].Title)
	assert.Contains(t, got.Attachments[0].Text, "`New API` (l10n.yaml)")
}

func TestSlackNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "invalid_token", http.StatusForbidden)
	}))
	defer server.Close()

	err := NewSlackNotifier(server.URL).Notify(passing())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 403")
}

func TestTeamsNotifier(t *testing.T) {
	var got teamsMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		body, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(body, &got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	n := NewTeamsNotifier(server.URL)
	assert.Equal(t, "teams", n.Name())

	summary := failing()
	summary.Environment = "staging"
	summary.FailedResults = []FailedTarget{{Name: "New API", File: "l10n.yaml", Errors: []string{"InvalidJSON at x"}}}
	require.NoError(t, n.Notify(summary))

	require.Len(t, got.Attachments, 1)
	card := got.Attachments[0]
	assert.Equal(t, "application/vnd.microsoft.card.adaptive", card.ContentType)
	require.NotEmpty(t, card.Content.Body)
	assert.Equal(t, "1 of 2 target(s) failed", card.Content.Body[0].Text)
	assert.Equal(t, "attention", card.Content.Body[0].Color)
	assert.Contains(t, card.Content.Body[1].Facts, teamsFact{Title: "Environment", Value: "staging"})

	var texts []string
	for _, b := range card.Content.Body {
		texts = append(texts, b.Text)
	}
	assert.Contains(t, texts, "- `New API` (l10n.yaml)")
	assert.Contains(t, texts, "  - InvalidJSON at x")
}

func TestTeamsNotifier_Recovery(t *testing.T) {
	summary := passing()
	summary.IsRecovery = true

	msg := NewTeamsNotifier("http://unused").message(summary)
	assert.Equal(t, "Targets recovered", msg.Attachments[0].Content.Body[0].Text)
	assert.Equal(t, "good", msg.Attachments[0].Content.Body[0].Color)
}

func TestTeamsNotifier_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad card", http.StatusBadRequest)
	}))
	defer server.Close()

	err := NewTeamsNotifier(server.URL).Notify(passing())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
}
