package alerts

import (
	"fmt"
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/config"
	"github.com/chain-sentry/monitor/internal/explorer"
)

// severityFromString maps a config string to chain.Severity, defaulting
// to SeverityLow so an unset min_severity never silently drops
// alerts (§6).
func severityFromString(s string) chain.Severity {
	switch s {
	case "medium":
		return chain.SeverityMedium
	case "high":
		return chain.SeverityHigh
	case "critical":
		return chain.SeverityCritical
	default:
		return chain.SeverityLow
	}
}

// BuildSinks constructs one Sink per configured entry, falling back to a
// single log sink when none are configured (§4.5, mirroring the
// "any_alert_config" fallback of the original monitor).
func BuildSinks(sinks []config.SinkConfig, networkID string, exp *explorer.Explorer) ([]Sink, error) {
	if len(sinks) == 0 {
		return []Sink{NewLogSink("log", exp)}, nil
	}

	out := make([]Sink, 0, len(sinks))
	for _, sc := range sinks {
		if sc.ID == "" {
			return nil, fmt.Errorf("alerts: sink of kind %q: id is required", sc.Kind)
		}
		switch sc.Kind {
		case "log":
			out = append(out, NewLogSink(sc.ID, exp))
		case "webhook":
			if sc.WebhookURL == "" {
				return nil, fmt.Errorf("alerts: sink %q: webhook_url is required", sc.ID)
			}
			out = append(out, NewWebhookSink(sc.ID, sc.WebhookURL, networkID, exp))
		case "telegram":
			if sc.BotToken == "" || sc.ChatID == "" {
				return nil, fmt.Errorf("alerts: sink %q: bot_token and chat_id are required", sc.ID)
			}
			retryDelay := time.Duration(sc.RetryDelaySeconds * float64(time.Second))
			out = append(out, NewTelegramSink(sc.ID, sc.BotToken, sc.ChatID, networkID, severityFromString(sc.MinSeverity), sc.RetryCount, retryDelay, exp))
		default:
			return nil, fmt.Errorf("alerts: sink %q: unknown kind %q", sc.ID, sc.Kind)
		}
	}
	return out, nil
}
