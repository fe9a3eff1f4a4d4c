package checks

import (
	"fmt"
	"time"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// BlockCheck fires when the gap between the last two block timestamps
// exceeds the estimated block time by more than the configured deviation
// (§4.4, scenario 2).
type BlockCheck struct {
	EstimatedBlockTime time.Duration
	Deviation          float64
}

func (c *BlockCheck) ID() string          { return "block_check" }
func (c *BlockCheck) IsContinuous() bool  { return false }

func (c *BlockCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if !hasPredecessor(s) {
		return nil
	}
	last, prev := s.Last(), s.Prev()
	delta := time.Duration(last.Block.Timestamp-prev.Block.Timestamp) * time.Second
	bound := time.Duration(float64(c.EstimatedBlockTime) * (1 + c.Deviation))
	if delta <= bound {
		return nil
	}
	return []chain.Alert{{
		CheckID:     c.ID(),
		Title:       "Block time exceeded expected bound",
		Description: fmt.Sprintf("block %d took *%d* seconds, expected at most %.0f", last.Block.Height, int64(delta.Seconds()), bound.Seconds()),
		Severity:    chain.SeverityMedium,
		Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
	}}
}

// AvgBlockTimeCheck is continuous: it fires when the mean of pairwise
// timestamp deltas over the last min(len, window) blocks exceeds
// estimated_block_time * factor (§4.4).
type AvgBlockTimeCheck struct {
	EstimatedBlockTime time.Duration
	Factor             float64
	Window             int
}

func (c *AvgBlockTimeCheck) ID() string         { return "avg_block_time_check" }
func (c *AvgBlockTimeCheck) IsContinuous() bool { return true }

func (c *AvgBlockTimeCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	window := c.Window
	if window <= 0 {
		window = 50
	}
	n := s.Len()
	if n > window {
		n = window
	}
	if n < 2 {
		return nil
	}

	tail := s.Tail(n)
	var deltas []float64
	for i := 1; i < len(tail); i++ {
		deltas = append(deltas, float64(tail[i].Block.Timestamp-tail[i-1].Block.Timestamp))
	}
	if len(deltas) == 0 {
		return nil
	}
	var sum float64
	for _, d := range deltas {
		sum += d
	}
	mean := sum / float64(len(deltas))
	bound := c.EstimatedBlockTime.Seconds() * c.Factor
	if mean <= bound {
		return nil
	}
	return []chain.Alert{{
		CheckID:     c.ID(),
		Title:       "Average block time degraded",
		Description: fmt.Sprintf("mean block time over the last %d blocks is %.2fs, expected at most %.2fs", len(deltas)+1, mean, bound),
		Severity:    chain.SeverityMedium,
		Continuous:  true,
	}}
}
