package checks

import (
	"fmt"
	"math/big"
	"time"

	"github.com/holiman/uint256"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// FeeCheck fires when a wrapper's realized fee is anomalous relative to
// its configured per-token threshold, with rules that scale by batch size
// (§4.4, scenario 3):
//   - single inner: fee > 10x threshold
//   - batch (>1 inner): avg-per-inner > 10x threshold, or total > 60x threshold
type FeeCheck struct {
	Thresholds map[string]float64 // token -> threshold, same units as the realized fee
}

func (c *FeeCheck) ID() string         { return "fee_check" }
func (c *FeeCheck) IsContinuous() bool { return false }

func (c *FeeCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	var alerts []chain.Alert
	for _, wrapper := range last.Block.Wrappers {
		threshold, ok := c.Thresholds[wrapper.FeeToken]
		if !ok || threshold <= 0 {
			continue
		}
		fee := wrapper.RealizedFee()
		feeFloat, _ := fee.Float64()
		innerCount := len(wrapper.Inners)
		if innerCount == 0 {
			continue
		}

		var triggered bool
		var reason string
		if innerCount == 1 {
			if feeFloat > 10*threshold {
				triggered = true
				reason = fmt.Sprintf("single-tx fee %.4f %s exceeds 10x threshold %.4f", feeFloat, wrapper.FeeToken, threshold)
			}
		} else {
			avg := feeFloat / float64(innerCount)
			switch {
			case avg > 10*threshold:
				triggered = true
				reason = fmt.Sprintf("batch avg fee %.4f %s exceeds 10x threshold %.4f over %d inners", avg, wrapper.FeeToken, threshold, innerCount)
			case feeFloat > 60*threshold:
				triggered = true
				reason = fmt.Sprintf("batch total fee %.4f %s exceeds 60x threshold %.4f over %d inners", feeFloat, wrapper.FeeToken, threshold, innerCount)
			}
		}
		if !triggered {
			continue
		}
		alerts = append(alerts, chain.Alert{
			CheckID:     c.ID(),
			Title:       "Anomalous transaction fee",
			Description: reason,
			Severity:    chain.SeverityLow,
			Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height), TxID: stringPtr(wrapper.ID)},
		})
	}
	return alerts
}

// uint256ToFloat renders a uint256 amount (supply, mint limit, transfer,
// bond projection) as a float64 for threshold comparison; minor-unit
// integers fit comfortably in a float64's 53-bit mantissa for any
// realistic chain. Fees do not pass through here: they are big.Rat.
func uint256ToFloat(v *uint256.Int) float64 {
	if v == nil {
		return 0
	}
	f := new(big.Float).SetInt(v.ToBig())
	out, _ := f.Float64()
	return out
}
