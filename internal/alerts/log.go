package alerts

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/explorer"
)

// LogSink writes alerts through the structured logger, the always-on
// fallback sink when no webhook/chat sink is configured (§4.5, §6).
type LogSink struct {
	id       string
	explorer *explorer.Explorer
}

// NewLogSink builds the log sink identified by id (§3: the (sink-id,
// check-id) de-dup tuple requires every sink to carry its configured id).
func NewLogSink(id string, exp *explorer.Explorer) *LogSink {
	return &LogSink{id: id, explorer: exp}
}

func (s *LogSink) ID() string { return s.id }

func (s *LogSink) Send(_ context.Context, alert chain.Alert) error {
	ctx := []any{"check", alert.CheckID, "severity", alert.Severity.String()}
	if alert.Metadata.BlockHeight != nil {
		ctx = append(ctx, "block", *alert.Metadata.BlockHeight, "block_url", s.explorer.BlockURL(*alert.Metadata.BlockHeight))
	}
	if alert.Metadata.TxID != nil {
		ctx = append(ctx, "tx", *alert.Metadata.TxID, "tx_url", s.explorer.TxURL(*alert.Metadata.TxID))
	}
	ctx = append(ctx, "description", alert.Description)

	switch alert.Severity {
	case chain.SeverityCritical, chain.SeverityHigh:
		log.Error(alert.Title, ctx...)
	case chain.SeverityMedium:
		log.Warn(alert.Title, ctx...)
	default:
		log.Info(alert.Title, ctx...)
	}
	return nil
}

func (s *LogSink) SendResolve(_ context.Context, alert chain.Alert, firstSeen time.Time) error {
	log.Info("Alert resolved", "check", alert.CheckID, "title", alert.Title, "first_seen", firstSeen.Format(time.RFC3339))
	return nil
}
