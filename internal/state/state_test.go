package state

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/chain-sentry/monitor/internal/chain"
)

func blockAt(height uint64, ts int64) chain.BlockState {
	return chain.BlockState{Block: chain.Block{Height: height, Timestamp: ts}}
}

func TestAppendEvictsAtCapacity(t *testing.T) {
	s := New(2)
	s.Append(blockAt(1, 10))
	s.Append(blockAt(2, 20))
	s.Append(blockAt(3, 30))

	require.Equal(t, 2, s.Len())
	require.Equal(t, uint64(2), s.Prev().Block.Height)
	require.Equal(t, uint64(3), s.Last().Block.Height)
}

func TestTailCapsToWindowLength(t *testing.T) {
	s := New(10)
	s.Append(blockAt(1, 10))
	s.Append(blockAt(2, 20))

	tail := s.Tail(5)
	require.Len(t, tail, 2)
	require.Equal(t, uint64(1), tail[0].Block.Height)
	require.Equal(t, uint64(2), tail[1].Block.Height)
}

func TestValidatorsWithVotingPowerThreshold(t *testing.T) {
	s := New(DefaultCapacity)
	s.Append(chain.BlockState{
		Validators: []chain.Validator{
			{Address: "a", VotingPower: uint256.NewInt(50)},
			{Address: "b", VotingPower: uint256.NewInt(30)},
			{Address: "c", VotingPower: uint256.NewInt(20)},
		},
	})

	n, err := s.ValidatorsWithVotingPower(1.0 / 3.0)
	require.NoError(t, err)
	require.Equal(t, 1, n) // validator "a" alone holds 50/100 > 1/3

	n, err = s.ValidatorsWithVotingPower(2.0 / 3.0)
	require.NoError(t, err)
	require.Equal(t, 2, n) // "a"+"b" = 80/100 >= 2/3
}

func TestValidatorsWithVotingPowerEmptySet(t *testing.T) {
	s := New(DefaultCapacity)
	_, err := s.ValidatorsWithVotingPower(0.5)
	require.ErrorIs(t, err, ErrInsufficientVotingPower)
}

func TestAllTransfersGroupsBySourceAndToken(t *testing.T) {
	s := New(DefaultCapacity)
	s.Append(chain.BlockState{
		Block: chain.Block{Height: 7},
	})
	s.entries[0].Block.Wrappers = []chain.WrapperTx{
		{
			ID: "w1",
			Inners: []chain.InnerTx{
				{
					ID: "tx1", Kind: chain.KindTransfer, Applied: true,
					Payload: chain.TransferPayload{Source: "alice", Target: "bob", Token: "NAM", Amount: uint256.NewInt(100)},
				},
				{
					ID: "tx2", Kind: chain.KindTransfer, Applied: true,
					Payload: chain.TransferPayload{Source: "alice", Target: "carol", Token: "NAM", Amount: uint256.NewInt(50)},
				},
				{
					ID: "tx3", Kind: chain.KindTransfer, Applied: false,
					Payload: chain.TransferPayload{Source: "alice", Target: "dave", Token: "NAM", Amount: uint256.NewInt(999)},
				},
			},
		},
	}

	transfers := s.AllTransfers()
	require.Len(t, transfers, 1)
	require.Equal(t, "alice", transfers[0].Source)
	require.Equal(t, uint256.NewInt(150), transfers[0].Amount)
}
