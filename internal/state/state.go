// Package state holds the windowed history of BlockState snapshots (§4.3)
// and the aggregations the check framework and metrics registry read from
// it. The window is a fixed-capacity FIFO slice that drops its head entry
// when full; State is single-writer —
// only the ingestion loop appends to it — and every other reader only ever
// sees a fully-appended snapshot.
package state

import (
	"errors"
	"sort"

	"github.com/holiman/uint256"

	"github.com/chain-sentry/monitor/internal/chain"
)

// DefaultCapacity is the default window length, roughly one day at
// Namada-style block times (§3).
const DefaultCapacity = 7200

// ErrInsufficientVotingPower is returned by ValidatorsWithVotingPower when
// no prefix of the (possibly empty) validator set reaches the requested
// fraction of total voting power.
var ErrInsufficientVotingPower = errors.New("state: insufficient voting power to reach threshold")

// State is the bounded rolling window of BlockState (§3, §4.3).
type State struct {
	capacity int
	entries  []chain.BlockState
}

// New constructs an empty window with the given capacity. A non-positive
// capacity falls back to DefaultCapacity.
func New(capacity int) *State {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &State{capacity: capacity}
}

// Append inserts a BlockState at the tail, evicting the head entry once the
// window is at capacity. Order is strict FIFO.
func (s *State) Append(bs chain.BlockState) {
	if len(s.entries) == s.capacity {
		s.entries = s.entries[1:]
	}
	s.entries = append(s.entries, bs)
}

// Len reports the number of entries currently held.
func (s *State) Len() int {
	return len(s.entries)
}

// Last returns the most recently appended BlockState. Callers must ensure
// Len() >= 1.
func (s *State) Last() chain.BlockState {
	return s.entries[len(s.entries)-1]
}

// Prev returns the BlockState preceding Last. Callers must ensure
// Len() >= 2.
func (s *State) Prev() chain.BlockState {
	return s.entries[len(s.entries)-2]
}

// Tail returns the last n entries in FIFO order (oldest first), capped to
// the window's current length. It is the only form of random access the
// window exposes beyond Last/Prev, used by checks that need a bounded
// look-back (e.g. avg_block_time_check, §4.4).
func (s *State) Tail(n int) []chain.BlockState {
	if n <= 0 {
		return nil
	}
	if n > len(s.entries) {
		n = len(s.entries)
	}
	out := make([]chain.BlockState, n)
	copy(out, s.entries[len(s.entries)-n:])
	return out
}

// Clone returns a shallow copy of the window suitable for handing to a
// reader that must not observe further appends (§5, "Ownership").
func (s *State) Clone() *State {
	clone := &State{capacity: s.capacity, entries: make([]chain.BlockState, len(s.entries))}
	copy(clone.entries, s.entries)
	return clone
}

// TotalVotingPower sums the voting power of the latest validator set.
func (s *State) TotalVotingPower() *uint256.Int {
	total := uint256.NewInt(0)
	if s.Len() == 0 {
		return total
	}
	for _, v := range s.Last().Validators {
		if v.VotingPower != nil {
			total.Add(total, v.VotingPower)
		}
	}
	return total
}

// ValidatorsWithVotingPower returns the smallest validator count, counting
// from the highest-power validator down, whose cumulative voting power
// first reaches fraction*total (§4.3). It errors only when no such prefix
// exists, which can only happen against an empty validator set.
func (s *State) ValidatorsWithVotingPower(fraction float64) (int, error) {
	if s.Len() == 0 {
		return 0, ErrInsufficientVotingPower
	}
	validators := append([]chain.Validator(nil), s.Last().Validators...)
	sort.Slice(validators, func(i, j int) bool {
		return validators[i].VotingPower.Cmp(validators[j].VotingPower) > 0
	})

	total := s.TotalVotingPower()
	if total.IsZero() {
		return 0, ErrInsufficientVotingPower
	}
	// threshold = ceil(fraction * total), computed in integer space to
	// avoid float precision on large voting-power totals.
	threshold := fractionOf(total, fraction)

	cumulative := uint256.NewInt(0)
	for i, v := range validators {
		if v.VotingPower != nil {
			cumulative.Add(cumulative, v.VotingPower)
		}
		if cumulative.Cmp(threshold) >= 0 {
			return i + 1, nil
		}
	}
	return 0, ErrInsufficientVotingPower
}

// fractionOf computes ceil(total * fraction) using a fixed-point
// multiplication so results are deterministic regardless of floating-point
// rounding on the host.
func fractionOf(total *uint256.Int, fraction float64) *uint256.Int {
	const scale = 1_000_000
	scaled := uint256.NewInt(uint64(fraction * scale))
	num := new(uint256.Int).Mul(total, scaled)
	den := uint256.NewInt(scale)
	quo, rem := new(uint256.Int), new(uint256.Int)
	quo.DivMod(num, den, rem)
	if !rem.IsZero() {
		quo.AddUint64(quo, 1)
	}
	return quo
}

// ConsensusValidators returns the subset of the latest validator set whose
// state is Consensus.
func (s *State) ConsensusValidators() []chain.Validator {
	if s.Len() == 0 {
		return nil
	}
	var out []chain.Validator
	for _, v := range s.Last().Validators {
		if v.State == chain.ValidatorConsensus {
			out = append(out, v)
		}
	}
	return out
}

// AllTransfers flattens every successful applied transfer (native or IBC)
// of the latest block into (height, tx-id, kind, token, amount) tuples,
// grouped per source+token so a multi-target transfer is only counted once
// per token (§4.3).
func (s *State) AllTransfers() []chain.Transfer {
	if s.Len() == 0 {
		return nil
	}
	last := s.Last()
	type key struct {
		source string
		token  string
	}
	grouped := make(map[key]*chain.Transfer)
	var order []key

	for _, wrapper := range last.Block.Wrappers {
		for _, inner := range wrapper.Inners {
			if !inner.Applied {
				continue
			}
			if inner.Kind != chain.KindTransfer && inner.Kind != chain.KindIBCTransfer {
				continue
			}
			payload, ok := inner.Payload.(chain.TransferPayload)
			if !ok || payload.Amount == nil {
				continue
			}
			k := key{source: payload.Source, token: payload.Token}
			if existing, found := grouped[k]; found {
				existing.Amount = new(uint256.Int).Add(existing.Amount, payload.Amount)
				continue
			}
			t := &chain.Transfer{
				Height: last.Block.Height,
				TxID:   inner.ID,
				Kind:   inner.Kind,
				Source: payload.Source,
				Token:  payload.Token,
				Amount: new(uint256.Int).Set(payload.Amount),
			}
			grouped[k] = t
			order = append(order, k)
		}
	}

	out := make([]chain.Transfer, 0, len(order))
	for _, k := range order {
		out = append(out, *grouped[k])
	}
	return out
}
