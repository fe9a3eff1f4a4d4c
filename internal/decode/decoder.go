package decode

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"

	"github.com/ethereum/go-ethereum/log"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/rpcpool"
)

// Decoder turns RPC-sourced raw artifacts into a typed chain.Block.
type Decoder struct {
	Wrapper WrapperCodec
	Inner   InnerCodec
}

// New constructs a Decoder with the given pluggable codecs.
func New(wrapper WrapperCodec, inner InnerCodec) *Decoder {
	return &Decoder{Wrapper: wrapper, Inner: inner}
}

// Decode implements §4.2's contract: (raw block, raw block-results,
// code-hash table, epoch) -> typed Block.
func (d *Decoder) Decode(raw rpcpool.RawBlock, results rpcpool.RawBlockResults, codeHashes map[string]string, epoch uint64) chain.Block {
	events := indexEventsByWrapperID(results.Events)

	block := chain.Block{
		Height:    raw.Height,
		Epoch:     epoch,
		Timestamp: raw.Timestamp,
		Proposer:  raw.Proposer,
	}
	for _, ev := range raw.Evidence {
		block.Evidence = append(block.Evidence, chain.Evidence{
			Kind:      chain.EvidenceKind(ev.Kind),
			Validator: ev.Validator,
			Height:    ev.Height,
		})
	}
	for _, sig := range raw.CommitSigs {
		block.CommitSigs = append(block.CommitSigs, chain.CommitSig{
			ValidatorAddress: sig.ValidatorAddress,
			Signed:           sig.Signed,
		})
	}

	for _, rawTx := range raw.TxsBytes {
		env, err := d.Wrapper.ParseWrapper(rawTx)
		if err != nil {
			// A transaction failing envelope parsing is dropped, not counted (§4.2).
			log.Debug("Dropping wrapper tx that failed to parse", "err", err)
			continue
		}

		wrapperEvent, ok := events[env.ID]
		if !ok {
			// A wrapper with no resolvable fee type is dropped (§4.2).
			log.Debug("Dropping wrapper tx with no resolvable fee event", "tx", env.ID)
			continue
		}

		wrapper := chain.WrapperTx{
			ID:           env.ID,
			Applied:      wrapperEvent.applied,
			GasLimit:     env.GasLimit,
			GasUsed:      wrapperEvent.gasUsed,
			FeeToken:     env.FeeToken,
			AmountPerGas: env.AmountPerGas,
			Atomic:       env.Atomic,
			SectionCount: env.SectionCount,
		}

		for i, commitment := range env.Commitments {
			innerID := innerTxID(env.ID, commitment)
			codeName, resolved := codeHashes[hex.EncodeToString(commitment.CodeHash[:])]
			if !resolved {
				codeName = "unknown"
			}

			applied := wrapperEvent.innerApplied(i)

			inner := chain.InnerTx{
				ID:        innerID,
				SizeBytes: len(commitment.Payload),
				Applied:   applied,
			}
			if codeName == "unknown" {
				inner.Kind = chain.KindUnknown
				inner.CodeName = codeName
				wrapper.Inners = append(wrapper.Inners, inner)
				continue
			}

			kind, payload, err := d.Inner.ParseInner(codeName, commitment.Payload)
			if err != nil {
				// An inner whose payload does not deserialize under the
				// expected variant becomes unknown(code-name, bytes) (§4.2).
				inner.Kind = chain.KindUnknown
				inner.CodeName = codeName
				wrapper.Inners = append(wrapper.Inners, inner)
				continue
			}
			inner.Kind = kind
			inner.Payload = payload
			wrapper.Inners = append(wrapper.Inners, inner)
		}

		block.Wrappers = append(block.Wrappers, wrapper)
	}

	return block
}

// innerTxID computes a deterministic inner id as a function of the
// wrapper id and the commitment bytes (§4.2).
func innerTxID(wrapperID string, c Commitment) string {
	h := sha256.New()
	h.Write([]byte(wrapperID))
	h.Write(c.CodeHash[:])
	h.Write(c.Payload)
	return hex.EncodeToString(h.Sum(nil))
}

type wrapperEvents struct {
	applied       bool
	gasUsed       uint64
	innerResults  []bool
}

func (w wrapperEvents) innerApplied(i int) bool {
	if i < len(w.innerResults) {
		return w.innerResults[i]
	}
	return w.applied
}

// indexEventsByWrapperID matches the wrapper id against an "applied"
// event in the block-results stream, extracting gas-used and the
// per-inner batch results (§4.2).
func indexEventsByWrapperID(events []rpcpool.RawEvent) map[string]wrapperEvents {
	out := make(map[string]wrapperEvents)
	for _, ev := range events {
		if ev.Type != "applied" && ev.Type != "tx/applied" {
			continue
		}
		txID, ok := ev.Attributes["tx_id"]
		if !ok {
			continue
		}
		gasUsed, _ := strconv.ParseUint(ev.Attributes["gas_used"], 10, 64)
		applied := ev.Attributes["code"] == "0" || ev.Attributes["code"] == ""

		var innerResults []bool
		if raw, ok := ev.Attributes["inner_results"]; ok {
			for _, c := range raw {
				innerResults = append(innerResults, c == '1')
			}
		}
		out[txID] = wrapperEvents{applied: applied, gasUsed: gasUsed, innerResults: innerResults}
	}
	return out
}
