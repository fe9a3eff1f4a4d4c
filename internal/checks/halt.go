package checks

import (
	"fmt"
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// HaltCheck is continuous: it fires when wall-clock time has moved more
// than HaltThreshold past the tip's timestamp, signalling the chain may
// have stopped producing blocks (§4.4, scenario 1).
type HaltCheck struct {
	HaltThreshold time.Duration
}

func (c *HaltCheck) ID() string         { return "halt_check" }
func (c *HaltCheck) IsContinuous() bool { return true }

func (c *HaltCheck) Run(s *state.State, now time.Time) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	elapsed := now.Sub(time.Unix(last.Block.Timestamp, 0))
	if elapsed <= c.HaltThreshold {
		return nil
	}
	ttl := c.HaltThreshold
	return []chain.Alert{{
		CheckID:      c.ID(),
		Title:        "Chain appears halted",
		Description:  fmt.Sprintf("no new block observed in %.0fs (threshold %.0fs), last block %d", elapsed.Seconds(), c.HaltThreshold.Seconds(), last.Block.Height),
		Severity:     chain.SeverityCritical,
		Metadata:     chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
		TriggerAfter: durationPtr(ttl),
		Continuous:   true,
	}}
}
