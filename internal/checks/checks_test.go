package checks

import (
	"math/big"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

func newWindowWithBlocks(blocks ...chain.BlockState) *state.State {
	s := state.New(state.DefaultCapacity)
	for _, b := range blocks {
		s.Append(b)
	}
	return s
}

func TestHaltCheckFiresPastThreshold(t *testing.T) {
	c := &HaltCheck{HaltThreshold: 30 * time.Second}
	last := chain.BlockState{Block: chain.Block{Height: 100, Timestamp: 1000}}
	s := newWindowWithBlocks(last)

	now := time.Unix(1000, 0).Add(60 * time.Second)
	alerts := c.Run(s, now)
	require.Len(t, alerts, 1)
	require.Equal(t, chain.SeverityCritical, alerts[0].Severity)
	require.True(t, alerts[0].Continuous)
}

func TestHaltCheckSilentBeforeThreshold(t *testing.T) {
	c := &HaltCheck{HaltThreshold: 30 * time.Second}
	last := chain.BlockState{Block: chain.Block{Height: 100, Timestamp: 1000}}
	s := newWindowWithBlocks(last)

	now := time.Unix(1000, 0).Add(5 * time.Second)
	require.Empty(t, c.Run(s, now))
}

func TestBlockCheckRequiresPredecessor(t *testing.T) {
	c := &BlockCheck{EstimatedBlockTime: 10 * time.Second, Deviation: 0.5}
	s := newWindowWithBlocks(chain.BlockState{Block: chain.Block{Height: 1, Timestamp: 0}})
	require.Empty(t, c.Run(s, time.Now()))
}

func TestBlockCheckFiresOnDeviation(t *testing.T) {
	c := &BlockCheck{EstimatedBlockTime: 10 * time.Second, Deviation: 0.5}
	s := newWindowWithBlocks(
		chain.BlockState{Block: chain.Block{Height: 1, Timestamp: 0}},
		chain.BlockState{Block: chain.Block{Height: 2, Timestamp: 20}},
	)
	alerts := c.Run(s, time.Now())
	require.Len(t, alerts, 1)
	require.Equal(t, chain.SeverityMedium, alerts[0].Severity)
}

func TestPosConsensusCheckFiresOnDrop(t *testing.T) {
	c := &PosConsensusCheck{ConsensusThreshold: 0.9}
	consensusValidators := func(n int) []chain.Validator {
		out := make([]chain.Validator, n)
		for i := range out {
			out[i] = chain.Validator{Address: string(rune('a' + i)), State: chain.ValidatorConsensus}
		}
		return out
	}
	s := newWindowWithBlocks(
		chain.BlockState{Block: chain.Block{Height: 1}, Validators: consensusValidators(10)},
		chain.BlockState{Block: chain.Block{Height: 2}, Validators: consensusValidators(8)},
	)
	alerts := c.Run(s, time.Now())
	require.Len(t, alerts, 1)
	require.Equal(t, chain.SeverityMedium, alerts[0].Severity)
}

func TestPosConsensusCheckSilentWithinThreshold(t *testing.T) {
	c := &PosConsensusCheck{ConsensusThreshold: 0.5}
	consensusValidators := func(n int) []chain.Validator {
		out := make([]chain.Validator, n)
		for i := range out {
			out[i] = chain.Validator{Address: string(rune('a' + i)), State: chain.ValidatorConsensus}
		}
		return out
	}
	s := newWindowWithBlocks(
		chain.BlockState{Block: chain.Block{Height: 1}, Validators: consensusValidators(10)},
		chain.BlockState{Block: chain.Block{Height: 2}, Validators: consensusValidators(8)},
	)
	require.Empty(t, c.Run(s, time.Now()))
}

func TestIBCLimitCheckFiresOnSupplyNearLimit(t *testing.T) {
	c := &IBCLimitCheck{WarnFraction: 0.8}
	s := newWindowWithBlocks(chain.BlockState{
		Block:   chain.Block{Height: 1},
		Supplies: []chain.Supply{{Token: "ATOM", Total: uint256.NewInt(90), Effective: uint256.NewInt(90)}},
		IBCMintLimits: map[string]*uint256.Int{"ATOM": uint256.NewInt(100)},
	})
	alerts := c.Run(s, time.Now())
	require.Len(t, alerts, 1)
	require.Equal(t, chain.SeverityLow, alerts[0].Severity)
}

func TestIBCLimitCheckSilentBelowThreshold(t *testing.T) {
	c := &IBCLimitCheck{WarnFraction: 0.8}
	s := newWindowWithBlocks(chain.BlockState{
		Block:   chain.Block{Height: 1},
		Supplies: []chain.Supply{{Token: "ATOM", Total: uint256.NewInt(10), Effective: uint256.NewInt(10)}},
		IBCMintLimits: map[string]*uint256.Int{"ATOM": uint256.NewInt(100)},
	})
	require.Empty(t, c.Run(s, time.Now()))
}

func TestFeeCheckSingleTxOverThreshold(t *testing.T) {
	c := &FeeCheck{Thresholds: map[string]float64{"NAM": 1.0}}
	s := newWindowWithBlocks(chain.BlockState{
		Block: chain.Block{Height: 1, Wrappers: []chain.WrapperTx{
			{ID: "w1", FeeToken: "NAM", GasUsed: 100, AmountPerGas: big.NewRat(1, 1), Inners: []chain.InnerTx{{ID: "tx1"}}},
		}},
	})
	alerts := c.Run(s, time.Now())
	require.Len(t, alerts, 1)
}

func TestFeeCheckFractionalAmountPerGasOverThreshold(t *testing.T) {
	c := &FeeCheck{Thresholds: map[string]float64{"NAM": 1.0}}
	s := newWindowWithBlocks(chain.BlockState{
		Block: chain.Block{Height: 1, Wrappers: []chain.WrapperTx{
			// gas_used 1000 * amount_per_gas 0.03 = 30, well over 10x threshold.
			{ID: "w1", FeeToken: "NAM", GasUsed: 1000, AmountPerGas: big.NewRat(3, 100), Inners: []chain.InnerTx{{ID: "tx1"}}},
		}},
	})
	alerts := c.Run(s, time.Now())
	require.Len(t, alerts, 1)
}

func TestRegistrySplitsByClass(t *testing.T) {
	r := NewRegistry(&HaltCheck{}, &BlockCheck{}, &IBCCheck{})
	require.Len(t, r.Continuous(), 2)
	require.Len(t, r.BlockTriggered(), 1)
}
