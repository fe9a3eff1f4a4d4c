// Copyright 2015 The go-ethereum Authors
// This file is part of the go-ethereum library.
//
// The go-ethereum library is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// The go-ethereum library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with the go-ethereum library. If not, see <http://www.gnu.org/licenses/>.

// Package chain holds the data model shared by every layer of the monitor:
// the decoded block, the per-block chain snapshot, and the validator and
// supply views the checks and metrics operate on.
package chain

import (
	"math/big"
	"time"

	"github.com/holiman/uint256"
)

// InnerKind tags the closed set of inner-transaction variants.
type InnerKind string

const (
	KindTransfer              InnerKind = "transfer"
	KindIBCTransfer           InnerKind = "ibc-transfer"
	KindBond                  InnerKind = "bond"
	KindUnbond                InnerKind = "unbond"
	KindRedelegate            InnerKind = "redelegate"
	KindWithdraw              InnerKind = "withdraw"
	KindClaimRewards          InnerKind = "claim-rewards"
	KindInitProposal          InnerKind = "init-proposal"
	KindVoteProposal          InnerKind = "vote-proposal"
	KindMetadataChange        InnerKind = "metadata-change"
	KindCommissionChange      InnerKind = "commission-change"
	KindRevealPublicKey       InnerKind = "reveal-public-key"
	KindBecomeValidator       InnerKind = "become-validator"
	KindDeactivateValidator   InnerKind = "deactivate-validator"
	KindReactivateValidator   InnerKind = "reactivate-validator"
	KindUnjailValidator       InnerKind = "unjail-validator"
	KindUnknown               InnerKind = "unknown"
)

// InnerTx is a single committed operation inside a wrapper's batch.
type InnerTx struct {
	ID         string
	Kind       InnerKind
	CodeName   string // populated for KindUnknown, the unresolved code-name
	Payload    any    // decoded variant payload, nil for KindUnknown
	SizeBytes  int
	Applied    bool
}

// TransferPayload is the decoded payload of a transfer or ibc-transfer inner tx.
type TransferPayload struct {
	Source string
	Target string
	Token  string
	Amount *uint256.Int
}

// WrapperTx is the fee-paying envelope that carries a batch of inner txs.
//
// AmountPerGas is a rational rather than a uint256: the wire format
// reports it as a decimal real (the §8 scenario 3 literal uses
// amount_per_gas = 0.03), and a fixed-width integer type cannot hold a
// fractional rate without truncating it to zero (§9, "Fee decimals").
type WrapperTx struct {
	ID            string
	Applied       bool
	GasLimit      uint64
	GasUsed       uint64
	FeeToken      string
	AmountPerGas  *big.Rat
	Atomic        bool
	Inners        []InnerTx
	SectionCount  int // total wire sections in the tx, used by tx_check
}

// RealizedFee is gas_used * amount_per_gas at full rational precision
// (§9, "Fee decimals").
func (w *WrapperTx) RealizedFee() *big.Rat {
	if w.AmountPerGas == nil {
		return new(big.Rat)
	}
	gasUsed := new(big.Rat).SetInt(new(big.Int).SetUint64(w.GasUsed))
	return new(big.Rat).Mul(gasUsed, w.AmountPerGas)
}

// EvidenceKind distinguishes the two misbehavior evidence types BFT
// consensus can surface against a validator.
type EvidenceKind string

const (
	EvidenceDuplicateVote    EvidenceKind = "duplicate-vote"
	EvidenceLightClientAttack EvidenceKind = "light-client-attack"
)

// Evidence is one misbehavior record carried by a block.
type Evidence struct {
	Kind      EvidenceKind
	Validator string
	Height    uint64
}

// CommitSig is one signature (or absence of one) in the previous block's commit.
type CommitSig struct {
	ValidatorAddress string
	Signed           bool
}

// Block is the decoded unit produced by the Block Decoder (§4.2).
type Block struct {
	Height     uint64
	Epoch      uint64
	Timestamp  int64 // unix seconds
	Proposer   string
	Wrappers   []WrapperTx
	Evidence   []Evidence
	CommitSigs []CommitSig
}

// ValidatorState is the closed set of bonding states a validator can be in.
type ValidatorState string

const (
	ValidatorConsensus      ValidatorState = "consensus"
	ValidatorBelowCapacity  ValidatorState = "below-capacity"
	ValidatorBelowThreshold ValidatorState = "below-threshold"
	ValidatorInactive       ValidatorState = "inactive"
	ValidatorJailed         ValidatorState = "jailed"
)

// Validator is one entry of a validator set snapshot.
type Validator struct {
	Address      string
	VotingPower  *uint256.Int
	State        ValidatorState
}

// Supply is a per-token supply snapshot. Effective may differ from Total
// for the native token when slashed or burned amounts are excluded.
type Supply struct {
	Token     string
	Total     *uint256.Int
	Effective *uint256.Int
}

// IBCClientStatus is the expiry view of one watched IBC light client,
// derived from RawIBCClientState (§4.4, ibc_check).
type IBCClientStatus struct {
	ClientID  string
	ExpiresAt time.Time
}

// BlockState is the atomic unit appended to the rolling window (§3).
type BlockState struct {
	Block              Block
	BondsNextEpoch      *uint256.Int
	UnbondsNextEpoch    *uint256.Int
	Validators          []Validator
	Supplies            []Supply
	IBCMintLimits       map[string]*uint256.Int // token -> limit
	IBCClients          []IBCClientStatus
}

// Transfer is one flattened, successful applied transfer (native or IBC)
// produced by State.AllTransfers.
type Transfer struct {
	Height uint64
	TxID   string
	Kind   InnerKind
	Source string
	Token  string
	Amount *uint256.Int
}
