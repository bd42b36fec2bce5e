package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/felixgeelhaar/smartreviewer/pkg/domain/events"
	"github.com/felixgeelhaar/smartreviewer/pkg/domain/messaging"
)

// SlackAdapter sends events to a Slack incoming webhook URL.
type SlackAdapter struct {
	config messaging.AdapterConfig
	client *http.Client
}

func NewSlackAdapter(config messaging.AdapterConfig) *SlackAdapter {
	return &SlackAdapter{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *SlackAdapter) Name() string { return a.config.Name }
func (a *SlackAdapter) Type() string { return "slack" }

func (a *SlackAdapter) Send(ctx context.Context, event *events.Event) error {
	text := FormatMessage(event)
	payload := map[string]any{
		"text": text,
		"blocks": []map[string]any{
			{
				"type": "section",
				"text": map[string]string{"type": "mrkdwn", "text": text},
			},
		},
	}
	if ch := a.config.Options["channel"]; ch != "" {
		payload["channel"] = ch
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal slack payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.config.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := a.client.Do(req)
	if err != nil {
		return fmt.Errorf("send to slack: %w", err)
	}
	defer resp.Body.Close() //nolint:errcheck // body is not read

	if resp.StatusCode >= 300 {
		return fmt.Errorf("slack returned status %d", resp.StatusCode)
	}
	return nil
}

// FormatMessage renders an event as one mrkdwn line.
func FormatMessage(e *events.Event) string {
	m := e.Metadata
	switch e.Type {
	case events.ReviewCompleted:
		return fmt.Sprintf("%s Review `%s` of *%v*: %v, %v findings",
			statusEmoji(m["status"]), e.SubjectID, m["document_id"], m["status"], m["total_findings"])
	case events.ReviewPartialFailure:
		return fmt.Sprintf(":warning: Review `%s` of *%v* finished with %v errored checks (status %v)",
			e.SubjectID, m["document_id"], m["checks_errored"], m["status"])
	case events.EvaluationCompleted:
		return fmt.Sprintf(":bar_chart: Evaluation `%s`: precision %.3f, recall %.3f, F1 %.3f",
			e.SubjectID, number(m["precision"]), number(m["recall"]), number(m["f1"]))
	case events.EvaluationRegressed:
		return fmt.Sprintf(":rotating_light: Evaluation `%s` regressed against baseline `%v`: %v",
			e.SubjectID, m["baseline_id"], m["regressed"])
	case events.ResultPublished:
		return fmt.Sprintf(":outbox_tray: Review `%s` published to %v", e.SubjectID, m["target"])
	default:
		return fmt.Sprintf("SmartReviewer event %s for %s", e.Type, e.SubjectID)
	}
}

func statusEmoji(status any) string {
	switch status {
	case "pass":
		return ":white_check_mark:"
	case "fail":
		return ":x:"
	default:
		return ":large_yellow_circle:"
	}
}

// number accepts the float64 produced by a JSON round trip as well as ints.
func number(v any) float64 {
	switch n := v.(type) {
	case float64:
		return n
	case int:
		return float64(n)
	default:
		return 0
	}
}
