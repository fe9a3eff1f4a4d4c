package alerts

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/explorer"
)

// webhookPayload mirrors the Slack incoming-webhook attachment shape; no
// ecosystem client for this wire format exists in the dependency corpus,
// so the request is built and sent with net/http directly.
type webhookPayload struct {
	Username    string       `json:"username"`
	IconEmoji   string       `json:"icon_emoji"`
	Attachments []attachment `json:"attachments"`
}

type attachment struct {
	Color  string  `json:"color"`
	Blocks []block `json:"blocks"`
}

type block struct {
	Type string `json:"type"`
	Text text   `json:"text"`
}

type text struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// WebhookSink posts formatted alerts to an incoming-webhook URL (§4.5,
// §6 kind "webhook").
type WebhookSink struct {
	id        string
	url       string
	networkID string
	explorer  *explorer.Explorer
	client    *http.Client
}

// NewWebhookSink builds a webhook sink identified by id and bound to the
// given hook URL. The id (not "webhook") is what scopes the de-dup cache
// (§3), so two webhook sinks to different URLs never collide.
func NewWebhookSink(id, url, networkID string, exp *explorer.Explorer) *WebhookSink {
	return &WebhookSink{id: id, url: url, networkID: networkID, explorer: exp, client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *WebhookSink) ID() string { return s.id }

func (s *WebhookSink) Send(ctx context.Context, alert chain.Alert) error {
	message := fmt.Sprintf("*%s - %s*\n%s.\n*Block*: %s\n*Transaction*: %s",
		alert.Title, s.networkID, alert.Description, s.blockLink(alert), s.txLink(alert))
	return s.post(ctx, alert.Severity.Color(), alert.Severity.Emoji(), message)
}

func (s *WebhookSink) SendResolve(ctx context.Context, alert chain.Alert, firstSeen time.Time) error {
	message := fmt.Sprintf("*%s - %s*\nIssue from %s was resolved.", alert.Title, s.networkID, firstSeen.Format(time.RFC3339))
	return s.post(ctx, "#5df542", ":white_check_mark:", message)
}

func (s *WebhookSink) blockLink(alert chain.Alert) string {
	if alert.Metadata.BlockHeight == nil {
		return "N/A"
	}
	h := *alert.Metadata.BlockHeight
	return fmt.Sprintf("<%s|%d>", s.explorer.BlockURL(h), h)
}

func (s *WebhookSink) txLink(alert chain.Alert) string {
	if alert.Metadata.TxID == nil {
		return "N/A"
	}
	id := *alert.Metadata.TxID
	return fmt.Sprintf("<%s|%s>", s.explorer.TxURL(id), id)
}

func (s *WebhookSink) post(ctx context.Context, color, emoji, message string) error {
	payload := webhookPayload{
		Username:  "Chain Sentry",
		IconEmoji: emoji,
		Attachments: []attachment{{
			Color:  color,
			Blocks: []block{{Type: "section", Text: text{Type: "mrkdwn", Text: message}}},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("alerts: marshal webhook payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("alerts: build webhook request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("alerts: send webhook: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("alerts: webhook returned status %d", resp.StatusCode)
	}
	return nil
}
