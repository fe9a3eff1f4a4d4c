package checks

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// PosOneThirdCheck fires when fewer than MinValidators validators are
// needed to jointly hold more than one third of total voting power — a
// concentration of stake that could halt the chain unilaterally (§4.4).
type PosOneThirdCheck struct {
	MinValidators int
}

func (c *PosOneThirdCheck) ID() string         { return "pos_one_third_check" }
func (c *PosOneThirdCheck) IsContinuous() bool { return false }

func (c *PosOneThirdCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	return votingPowerConcentrationAlert(s, c.ID(), 1.0/3.0, c.MinValidators, "one third")
}

// PosTwoThirdCheck is the same concentration check at the two-thirds
// quorum boundary, the threshold BFT consensus itself relies on (§4.4).
type PosTwoThirdCheck struct {
	MinValidators int
}

func (c *PosTwoThirdCheck) ID() string         { return "pos_two_third_check" }
func (c *PosTwoThirdCheck) IsContinuous() bool { return false }

func (c *PosTwoThirdCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	return votingPowerConcentrationAlert(s, c.ID(), 2.0/3.0, c.MinValidators, "two thirds")
}

func votingPowerConcentrationAlert(s *state.State, checkID string, fraction float64, minValidators int, label string) []chain.Alert {
	if s.Len() == 0 {
		return nil
	}
	n, err := s.ValidatorsWithVotingPower(fraction)
	if err != nil {
		return nil
	}
	if n >= minValidators {
		return nil
	}
	last := s.Last()
	return []chain.Alert{{
		CheckID:     checkID,
		Title:       "Validator set stake concentration",
		Description: fmt.Sprintf("only %d validators are needed to reach %s of voting power, expected at least %d", n, label, minValidators),
		Severity:    chain.SeverityLow,
		Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
	}}
}

// PosConsensusCheck fires when the consensus-validator count drops below
// the predecessor block's consensus count scaled by ConsensusThreshold
// (§4.4).
type PosConsensusCheck struct {
	ConsensusThreshold float64
}

func (c *PosConsensusCheck) ID() string         { return "pos_consensus_check" }
func (c *PosConsensusCheck) IsContinuous() bool { return false }

func (c *PosConsensusCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	if !hasPredecessor(s) {
		return nil
	}
	consensusFor := func(bs chain.BlockState) int {
		n := 0
		for _, v := range bs.Validators {
			if v.State == chain.ValidatorConsensus {
				n++
			}
		}
		return n
	}
	last, prev := s.Last(), s.Prev()
	lastCount, prevCount := consensusFor(last), consensusFor(prev)
	if prevCount == 0 {
		return nil
	}
	bound := float64(prevCount) * c.ConsensusThreshold
	if float64(lastCount) >= bound {
		return nil
	}
	return []chain.Alert{{
		CheckID:     c.ID(),
		Title:       "Consensus validator count dropped",
		Description: fmt.Sprintf("consensus set shrank to %d validators from %d, expected at least %.1f", lastCount, prevCount, bound),
		Severity:    chain.SeverityMedium,
		Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
	}}
}

// PosBondsCheck fires when the projected next-epoch bonded stake grows by
// more than IncreaseThreshold relative to the previous block's projection,
// flagging a sudden bonding surge (§4.4).
type PosBondsCheck struct {
	IncreaseThreshold float64
}

func (c *PosBondsCheck) ID() string         { return "pos_bonds_check" }
func (c *PosBondsCheck) IsContinuous() bool { return false }

func (c *PosBondsCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	return bondingDeltaAlert(s, c.ID(), c.IncreaseThreshold, "bonded", func(bs chain.BlockState) *uint256.Int {
		return bs.BondsNextEpoch
	})
}

// PosUnbondsCheck is the unbonding-side counterpart of PosBondsCheck
// (§4.4).
type PosUnbondsCheck struct {
	IncreaseThreshold float64
}

func (c *PosUnbondsCheck) ID() string         { return "pos_unbonds_check" }
func (c *PosUnbondsCheck) IsContinuous() bool { return false }

func (c *PosUnbondsCheck) Run(s *state.State, _ time.Time) []chain.Alert {
	return bondingDeltaAlert(s, c.ID(), c.IncreaseThreshold, "unbonded", func(bs chain.BlockState) *uint256.Int {
		return bs.UnbondsNextEpoch
	})
}

// bondingDeltaAlert fires when the selected projection (bonds or unbonds)
// grows by more than threshold relative to the predecessor block.
func bondingDeltaAlert(s *state.State, checkID string, threshold float64, label string, pick func(chain.BlockState) *uint256.Int) []chain.Alert {
	if !hasPredecessor(s) {
		return nil
	}
	last, prev := s.Last(), s.Prev()
	lastVal, prevVal := pick(last), pick(prev)
	if lastVal == nil || prevVal == nil || prevVal.IsZero() {
		return nil
	}
	lastF := uint256ToFloat(lastVal)
	prevF := uint256ToFloat(prevVal)
	growth := (lastF - prevF) / prevF
	if growth <= threshold {
		return nil
	}
	return []chain.Alert{{
		CheckID:     checkID,
		Title:       fmt.Sprintf("Projected %s stake surge", label),
		Description: fmt.Sprintf("next-epoch %s stake grew %.1f%% block over block, expected at most %.1f%%", label, growth*100, threshold*100),
		Severity:    chain.SeverityLow,
		Metadata:    chain.AlertMetadata{BlockHeight: heightPtr(last.Block.Height)},
	}}
}
