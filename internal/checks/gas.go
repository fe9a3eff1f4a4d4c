package checks

import (
	"fmt"
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// GasCheck fires when a wrapper's declared gas limit exceeds the gas
// actually used by more than the configured margin (§4.4).
type GasCheck struct {
	Margin float64
}

func (c *GasCheck) ID() string         { return "gas_check" }
func (c *GasCheck) IsContinuous() bool { return false }

func (c *GasCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	var alerts []chain.Alert
	for _, wrapper := range last.Block.Wrappers {
		bound := float64(wrapper.GasUsed) * (1 + c.Margin)
		if float64(wrapper.GasLimit) <= bound {
			continue
		}
		alerts = append(alerts, chain.Alert{
			CheckID:     c.ID(),
			Title:       "Declared gas far exceeds gas used",
			Description: fmt.Sprintf("tx %s declared gas %d, used %d (margin %.0f%%)", wrapper.ID, wrapper.GasLimit, wrapper.GasUsed, c.Margin*100),
			Severity:    chain.SeverityLow,
			Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height), TxID: stringPtr(wrapper.ID)},
		})
	}
	return alerts
}

// TxCheck fires when a wrapper's total wire-section count is
// disproportionate to its inner count, or its inner count exceeds the
// configured batch threshold (§4.4).
type TxCheck struct {
	SectionsPerInner float64
	BatchThreshold   int
}

func (c *TxCheck) ID() string         { return "tx_check" }
func (c *TxCheck) IsContinuous() bool { return false }

func (c *TxCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	var alerts []chain.Alert
	for _, wrapper := range last.Block.Wrappers {
		innerCount := len(wrapper.Inners)
		switch {
		case float64(wrapper.SectionCount) > c.SectionsPerInner*float64(innerCount):
			alerts = append(alerts, chain.Alert{
				CheckID:     c.ID(),
				Title:       "Transaction section count anomaly",
				Description: fmt.Sprintf("tx %s has %d sections for %d inner txs (limit %.1f per inner)", wrapper.ID, wrapper.SectionCount, innerCount, c.SectionsPerInner),
				Severity:    chain.SeverityLow,
				Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height), TxID: stringPtr(wrapper.ID)},
			})
		case c.BatchThreshold > 0 && innerCount > c.BatchThreshold:
			alerts = append(alerts, chain.Alert{
				CheckID:     c.ID(),
				Title:       "Oversized transaction batch",
				Description: fmt.Sprintf("tx %s batches %d inner txs, limit %d", wrapper.ID, innerCount, c.BatchThreshold),
				Severity:    chain.SeverityLow,
				Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height), TxID: stringPtr(wrapper.ID)},
			})
		}
	}
	return alerts
}
