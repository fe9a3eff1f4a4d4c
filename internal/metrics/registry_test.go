package metrics

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

func TestResetSeedsBlockHeightAndNativeSupply(t *testing.T) {
	r := New()
	initial := chain.BlockState{
		Block:    chain.Block{Height: 100, Epoch: 2},
		Supplies: []chain.Supply{{Token: "NAM", Total: uint256.NewInt(1000), Effective: uint256.NewInt(900)}},
	}
	r.Reset(initial, "NAM")

	require.Equal(t, int64(100), r.blockHeight.Count())
	require.Equal(t, int64(900), r.totalSupplyNative.Count())
}

func TestUpdateIncrementsHeightAndEpochByDelta(t *testing.T) {
	r := New()
	pre := chain.BlockState{Block: chain.Block{Height: 100, Epoch: 2}}
	post := chain.BlockState{Block: chain.Block{Height: 101, Epoch: 3, Timestamp: 1010}}
	pre.Block.Timestamp = 1000

	r.Update(pre, post, "NAM")

	require.Equal(t, int64(1), r.blockHeight.Count())
	require.Equal(t, int64(1), r.epoch.Count())
}

func TestNativeSupplyNeverDecrements(t *testing.T) {
	r := New()
	r.Reset(chain.BlockState{Supplies: []chain.Supply{{Token: "NAM", Effective: uint256.NewInt(1000)}}}, "NAM")
	require.Equal(t, int64(1000), r.totalSupplyNative.Count())

	// Supply decreases: counter must not move.
	post := chain.BlockState{Supplies: []chain.Supply{{Token: "NAM", Effective: uint256.NewInt(800)}}}
	r.Update(chain.BlockState{}, post, "NAM")
	require.Equal(t, int64(1000), r.totalSupplyNative.Count())

	// Supply increases: counter advances by exactly the delta.
	post2 := chain.BlockState{Supplies: []chain.Supply{{Token: "NAM", Effective: uint256.NewInt(1200)}}}
	r.Update(chain.BlockState{}, post2, "NAM")
	require.Equal(t, int64(1400), r.totalSupplyNative.Count())
}

func TestSlashesCountsEvidenceItems(t *testing.T) {
	r := New()
	post := chain.BlockState{Block: chain.Block{Evidence: []chain.Evidence{
		{Kind: chain.EvidenceDuplicateVote}, {Kind: chain.EvidenceLightClientAttack},
	}}}
	r.Update(chain.BlockState{}, post, "NAM")
	require.Equal(t, int64(2), r.slashes.Count())
}

func TestUpdateVotingPowerThresholds(t *testing.T) {
	r := New()
	s := state.New(state.DefaultCapacity)
	s.Append(chain.BlockState{Validators: []chain.Validator{
		{Address: "a", VotingPower: uint256.NewInt(60)},
		{Address: "b", VotingPower: uint256.NewInt(20)},
		{Address: "c", VotingPower: uint256.NewInt(10)},
		{Address: "d", VotingPower: uint256.NewInt(5)},
		{Address: "e", VotingPower: uint256.NewInt(5)},
	}})

	r.UpdateVotingPowerThresholds(s)
	require.Equal(t, int64(1), r.oneThird.Value())
	require.Equal(t, float64(100), r.totalVP.Value())
}
