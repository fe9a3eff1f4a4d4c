package checks

import (
	"fmt"
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// IBCCheck is continuous: it fires when a watched IBC light client is
// within HealthyThreshold of expiry, before it actually expires and
// freezes the channel (§4.4).
type IBCCheck struct {
	HealthyThreshold time.Duration
}

func (c *IBCCheck) ID() string         { return "ibc_check" }
func (c *IBCCheck) IsContinuous() bool { return true }

func (c *IBCCheck) Run(s *state.State, now time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	var alerts []chain.Alert
	for _, client := range last.IBCClients {
		remaining := client.ExpiresAt.Sub(now)
		if remaining > c.HealthyThreshold {
			continue
		}
		alerts = append(alerts, chain.Alert{
			CheckID:      c.ID(),
			Title:        "IBC light client nearing expiry",
			Description:  fmt.Sprintf("client %s expires in %.0fs (threshold %.0fs)", client.ClientID, remaining.Seconds(), c.HealthyThreshold.Seconds()),
			Severity:     chain.SeverityHigh,
			Metadata:     chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
			TriggerAfter: durationPtr(c.HealthyThreshold),
			Continuous:   true,
		})
	}
	return alerts
}

// IBCLimitCheck fires when a token's total supply exceeds WarnFraction
// of its configured IBC mint limit (§4.4, default 80%).
type IBCLimitCheck struct {
	WarnFraction float64
}

func (c *IBCLimitCheck) ID() string         { return "ibc_limit_check" }
func (c *IBCLimitCheck) IsContinuous() bool { return false }

func (c *IBCLimitCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	if len(last.IBCMintLimits) == 0 {
		return nil
	}
	warnFraction := c.WarnFraction
	if warnFraction <= 0 {
		warnFraction = 0.8
	}

	var alerts []chain.Alert
	for _, supply := range last.Supplies {
		limit, ok := last.IBCMintLimits[supply.Token]
		if !ok || limit == nil || limit.IsZero() {
			continue
		}
		limitFloat := uint256ToFloat(limit)
		totalFloat := uint256ToFloat(supply.Total)
		fraction := totalFloat / limitFloat
		if fraction <= warnFraction {
			continue
		}
		alerts = append(alerts, chain.Alert{
			CheckID:     c.ID(),
			Title:       "IBC mint limit nearly exhausted",
			Description: fmt.Sprintf("%s total supply is %.1f%% of its configured mint limit", supply.Token, fraction*100),
			Severity:    chain.SeverityLow,
			Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
		})
	}
	return alerts
}

// TransferLimitCheck fires when a single flattened transfer for a token
// exceeds that token's configured threshold (§4.4).
type TransferLimitCheck struct {
	Thresholds map[string]float64
}

func (c *TransferLimitCheck) ID() string         { return "transfer_limit_check" }
func (c *TransferLimitCheck) IsContinuous() bool { return false }

func (c *TransferLimitCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	var alerts []chain.Alert
	for _, t := range s.AllTransfers() {
		threshold, ok := c.Thresholds[t.Token]
		if !ok || threshold <= 0 {
			continue
		}
		amount := uint256ToFloat(t.Amount)
		if amount <= threshold {
			continue
		}
		alerts = append(alerts, chain.Alert{
			CheckID:     c.ID(),
			Title:       "Large transfer observed",
			Description: fmt.Sprintf("transfer %s moved %.4f %s, threshold %.4f", t.TxID, amount, t.Token, threshold),
			Severity:    chain.SeverityMedium,
			Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height), TxID: stringPtr(t.TxID)},
		})
	}
	return alerts
}

// SlashCheck emits one alert per misbehavior record carried by the last
// block (§4.4).
type SlashCheck struct{}

func (c *SlashCheck) ID() string         { return "slash_check" }
func (c *SlashCheck) IsContinuous() bool { return false }

func (c *SlashCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	var alerts []chain.Alert
	for _, ev := range last.Block.Evidence {
		alerts = append(alerts, chain.Alert{
			CheckID:     c.ID(),
			Title:       "Validator misbehavior evidence",
			Description: fmt.Sprintf("validator %s: %s at height %d", ev.Validator, ev.Kind, ev.Height),
			Severity:    chain.SeverityLow,
			Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
		})
	}
	return alerts
}
