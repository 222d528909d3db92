package notify

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// TeamsNotifier posts an Adaptive Card to a Microsoft Teams incoming webhook
type TeamsNotifier struct {
	webhookURL string
	client     *http.Client
}

// TeamsOption is a functional option for TeamsNotifier
type TeamsOption func(*TeamsNotifier)

// WithTeamsHTTPClient replaces the default client with a 10s timeout
func WithTeamsHTTPClient(c *http.Client) TeamsOption {
	return func(t *TeamsNotifier) {
		t.client = c
	}
}

// NewTeamsNotifier creates a new Teams notifier
func NewTeamsNotifier(webhookURL string, opts ...TeamsOption) *TeamsNotifier {
	t := &TeamsNotifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: 10 * time.Second},
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// Name returns the name of the notifier
func (t *TeamsNotifier) Name() string {
	return "teams"
}

type teamsMessage struct {
	Type        string      `json:"type"`
	Attachments []teamsCard `json:"attachments"`
}

type teamsCard struct {
	ContentType string           `json:"contentType"`
	Content     teamsCardContent `json:"content"`
}

type teamsCardContent struct {
	Schema  string       `json:"$schema"`
	Type    string       `json:"type"`
	Version string       `json:"version"`
	Body    []teamsBlock `json:"body"`
}

// teamsBlock covers the TextBlock and FactSet elements used here
type teamsBlock struct {
	Type      string      `json:"type"`
	Size      string      `json:"size,omitempty"`
	Weight    string      `json:"weight,omitempty"`
	Text      string      `json:"text,omitempty"`
	Color     string      `json:"color,omitempty"`
	Wrap      bool        `json:"wrap,omitempty"`
	Spacing   string      `json:"spacing,omitempty"`
	Separator bool        `json:"separator,omitempty"`
	Facts     []teamsFact `json:"facts,omitempty"`
}

type teamsFact struct {
	Title string `json:"title"`
	Value string `json:"value"`
}

// Notify sends a notification to Microsoft Teams
func (t *TeamsNotifier) Notify(summary *RunSummary) error {
	return t.send(t.message(summary))
}

func (t *TeamsNotifier) message(summary *RunSummary) teamsMessage {
	color := "good"
	title := "All targets passed"

	if !summary.Success() {
		color = "attention"
		title = fmt.Sprintf("%d of %d target(s) failed", summary.FailedTargets, summary.TotalTargets)
	} else if summary.IsRecovery {
		title = "Targets recovered"
	}

	facts := []teamsFact{
		{Title: "Targets", Value: strconv.Itoa(summary.TotalTargets)},
		{Title: "Tests", Value: strconv.Itoa(summary.Tests)},
		{Title: "Failures", Value: strconv.Itoa(summary.Failures)},
		{Title: "Duration", Value: summary.Duration.Round(time.Millisecond).String()},
	}
	if summary.SkippedTargets > 0 {
		facts = append(facts, teamsFact{Title: "Skipped", Value: strconv.Itoa(summary.SkippedTargets)})
	}
	if summary.Environment != "" {
		facts = append(facts, teamsFact{Title: "Environment", Value: summary.Environment})
	}

	body := []teamsBlock{
		{Type: "TextBlock", Size: "Large", Weight: "Bolder", Text: title, Color: color},
		{Type: "FactSet", Facts: facts, Separator: true, Spacing: "Medium"},
	}

	if len(summary.FailedResults) > 0 {
		body = append(body, teamsBlock{
			Type:      "TextBlock",
			Text:      "**Failed targets:**",
			Separator: true,
			Spacing:   "Medium",
		})
		for _, ft := range summary.FailedResults {
			text := fmt.Sprintf("- `%s`", ft.Name)
			if ft.File != "" {
				text += fmt.Sprintf(" (%s)", ft.File)
			}
			body = append(body, teamsBlock{Type: "TextBlock", Text: text, Wrap: true})
			for _, err := range ft.Errors {
				body = append(body, teamsBlock{Type: "TextBlock", Text: "  - " + err, Wrap: true})
			}
		}
	}

	body = append(body, teamsBlock{
		Type:      "TextBlock",
		Text:      fmt.Sprintf("_verif - %s_", time.Now().Format(time.RFC3339)),
		Separator: true,
		Spacing:   "Medium",
	})

	return teamsMessage{
		Type: "message",
		Attachments: []teamsCard{{
			ContentType: "application/vnd.microsoft.card.adaptive",
			Content: teamsCardContent{
				Schema:  "http://adaptivecards.io/schemas/adaptive-card.json",
				Type:    "AdaptiveCard",
				Version: "1.2",
				Body:    body,
			},
		}},
	}
}

func (t *TeamsNotifier) send(msg teamsMessage) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal Teams message: %w", err)
	}

	req, err := http.NewRequest("POST", t.webhookURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := t.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Teams notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("teams API returned status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}
