// Package decode implements the Block Decoder (§4.2): it turns a raw block
// plus its block-results event stream into the typed chain.Block the rest
// of the monitor operates on.
//
// The concrete wire format of a wrapper/inner transaction is chain-specific
// and explicitly out of scope for this module (§1): WrapperCodec and
// InnerCodec are the external collaborators the spec calls for at this
// boundary. JSONCodec below is a reference implementation usable against a
// test harness or a chain that exposes its transactions pre-shredded as
// JSON; a production deployment plugs in the chain's real Borsh/protobuf
// codec without touching the decoding algorithm in decoder.go.
package decode

import (
	"math/big"

	"github.com/chain-sentry/monitor/internal/chain"
)

// Commitment is one entry of a wrapper's batch: the code section's hash
// (used to resolve a code-name, §4.2) and the raw payload bytes to
// deserialize against that code-name's expected variant.
type Commitment struct {
	CodeHash [32]byte
	Payload  []byte
}

// WrapperEnvelope is the decoded shape of a wrapper transaction's wire
// bytes, prior to fee/gas enrichment from block-results events.
type WrapperEnvelope struct {
	ID           string
	Atomic       bool
	GasLimit     uint64
	FeeToken     string
	AmountPerGas *big.Rat
	SectionCount int
	Commitments  []Commitment
}

// WrapperCodec parses a raw transaction bytestring into its wrapper
// envelope. A transaction failing to parse is dropped by the decoder, not
// counted (§4.2, "Edge cases").
type WrapperCodec interface {
	ParseWrapper(raw []byte) (WrapperEnvelope, error)
}

// InnerCodec deserializes one commitment's payload bytes into the tagged
// variant named by codeName. An inner whose payload does not deserialize
// under the expected variant should return an error; the decoder then
// reports it as chain.KindUnknown so counters can still track it by
// code-name (§4.2).
type InnerCodec interface {
	ParseInner(codeName string, payload []byte) (kind chain.InnerKind, decoded any, err error)
}
