// Package slack escalates triage results to Slack via incoming webhooks.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/linnemanlabs/medflow/internal/triage"
)

const (
	maxReasoningLen = 3000
	httpTimeout     = 10 * time.Second
)

// Notifier sends triage escalations to a Slack webhook.
type Notifier struct {
	webhookURL string
	client     *http.Client
}

// New creates a new Slack notifier. If webhookURL is empty, Send is a no-op.
func New(webhookURL string) *Notifier {
	return &Notifier{
		webhookURL: webhookURL,
		client:     &http.Client{Timeout: httpTimeout},
	}
}

// Send posts a triage result to the configured Slack webhook.
// If no webhook URL is configured, it returns nil immediately.
func (n *Notifier) Send(ctx context.Context, result *triage.Result) error {
	if n.webhookURL == "" {
		return nil
	}
	if result == nil || result.Decision == nil {
		return fmt.Errorf("slack: result is missing a decision")
	}

	msg := buildMessage(result)

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("slack: marshal message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("slack: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req) //nolint:gosec // G704: webhookURL is from trusted config, not user input
	if err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("slack: webhook returned %d: %s", resp.StatusCode, string(respBody))
	}
	return nil
}

func buildMessage(r *triage.Result) map[string]any {
	return map[string]any{
		"blocks": []map[string]any{
			headerBlock(r),
			{"type": "divider"},
			fieldsBlock(r),
			{"type": "divider"},
			reasoningBlock(r),
			{"type": "divider"},
			contextBlock(r),
		},
	}
}

func headerBlock(r *triage.Result) map[string]any {
	emoji := levelEmoji(r.Decision.Level)
	title := "Triage Escalation"
	if r.Decision.Confidence == 0 {
		title = "Triage Fail-Safe"
	}
	text := fmt.Sprintf("%s %s: %s", emoji, title, r.Decision.Level)

	return map[string]any{
		"type": "header",
		"text": map[string]any{
			"type": "plain_text",
			"text": text,
		},
	}
}

func fieldsBlock(r *triage.Result) map[string]any {
	fields := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Level:* %s", r.Decision.Level),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Rule floor:* %s", r.RuleLevel),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Workflow:* %s", r.WorkflowStatus),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Duration:* %.1fs", r.Duration),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Confidence:* %.2f", r.Decision.Confidence),
		},
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Case:* %s", caseLabel(r.CaseID)),
		},
	}

	return map[string]any{
		"type":   "section",
		"fields": fields,
	}
}

func reasoningBlock(r *triage.Result) map[string]any {
	text := truncate(r.Decision.Reasoning, maxReasoningLen)
	if text == "" {
		text = "_No reasoning available._"
	}

	return map[string]any{
		"type": "section",
		"text": map[string]any{
			"type": "mrkdwn",
			"text": fmt.Sprintf("*Reasoning*\n\n%s", text),
		},
	}
}

func contextBlock(r *triage.Result) map[string]any {
	elements := []map[string]any{
		{
			"type": "mrkdwn",
			"text": fmt.Sprintf("medflow • intake %s • %s", r.ID, r.CreatedAt.UTC().Format("2006-01-02 15:04 UTC")),
		},
	}

	return map[string]any{
		"type":     "context",
		"elements": elements,
	}
}

func levelEmoji(level triage.Level) string {
	switch level {
	case triage.LevelEmergency:
		return "\U0001f534" // red circle
	case triage.LevelUrgent:
		return "\U0001f7e1" // yellow circle
	default:
		return "\U0001f7e2" // green circle
	}
}

func caseLabel(caseID string) string {
	if caseID == "" {
		return "none"
	}
	return caseID
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit-3] + "..."
}
