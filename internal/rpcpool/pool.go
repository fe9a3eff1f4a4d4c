// Package rpcpool implements the RPC Client Pool (§4.1): concurrent
// first-success-wins fan-out over an ordered list of upstream endpoints,
// with a chain-id invariant enforced once at startup.
package rpcpool

import (
	"context"
	"errors"
	"fmt"
	"sync"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/ethereum/go-ethereum/log"
)

// ErrChainIDMismatch is returned by VerifyChainID when the configured
// endpoints disagree about the network they serve, or disagree with an
// operator-declared chain id. It is a Fatal-startup error (§7).
var ErrChainIDMismatch = errors.New("rpcpool: chain-id mismatch across endpoints")

// ErrAllEndpointsFailed is returned by Query when every endpoint in the
// pool failed the same logical request.
var ErrAllEndpointsFailed = errors.New("rpcpool: all endpoints failed")

// Endpoint is the set of read-only query operations a single upstream RPC
// node exposes (§4.1, §6). Raw decoding of chain-specific payloads is out
// of scope here; Endpoint implementations return bytes/typed summaries
// that internal/decode turns into the Block/BlockState data model.
type Endpoint interface {
	URL() string
	NetworkID(ctx context.Context) (string, error)
	LatestHeight(ctx context.Context) (uint64, error)
	EpochAtHeight(ctx context.Context, height uint64) (uint64, error)
	RawBlock(ctx context.Context, height uint64) (RawBlock, error)
	RawBlockResults(ctx context.Context, height uint64) (RawBlockResults, error)
	CodeHashTable(ctx context.Context, height uint64) (map[string]string, error)
	ValidatorSet(ctx context.Context, epoch uint64) (RawValidatorSet, error)
	NativeToken(ctx context.Context) (string, error)
	TokenSupply(ctx context.Context, token string, height uint64) (RawSupply, error)
	FutureBondsAndUnbonds(ctx context.Context, epoch uint64) (bonds, unbonds string, err error)
	IBCMintLimit(ctx context.Context, token string) (string, error)
	IBCClientState(ctx context.Context, clientID string) (RawIBCClientState, error)
	MaxBlockTimeEstimate(ctx context.Context) (int64, error)
}

// RawBlock is the undecoded block envelope returned by an endpoint.
type RawBlock struct {
	Height     uint64
	Epoch      uint64
	Timestamp  int64
	Proposer   string
	TxsBytes   [][]byte
	Evidence   []RawEvidence
	CommitSigs []RawCommitSig
}

// RawEvidence is a single misbehavior record as returned over RPC.
type RawEvidence struct {
	Kind      string
	Validator string
	Height    uint64
}

// RawCommitSig is one entry of the previous block's commit.
type RawCommitSig struct {
	ValidatorAddress string
	Signed           bool
}

// RawBlockResults is the undecoded block-results event stream.
type RawBlockResults struct {
	Events []RawEvent
}

// RawEvent is a single (type, attributes) tuple out of block_results,
// matching CometBFT's ABCI event shape closely enough for the decoder to
// match wrapper ids against "applied" events (§4.2).
type RawEvent struct {
	Type       string
	Attributes map[string]string
}

// RawValidatorSet is the validator set at a given epoch.
type RawValidatorSet struct {
	Validators []RawValidator
}

// RawValidator is one validator set entry.
type RawValidator struct {
	Address     string
	VotingPower string // decimal string, parsed by the caller into *uint256.Int
	State       string
}

// RawSupply is a token's total/effective supply at a point in time.
type RawSupply struct {
	Token     string
	Total     string
	Effective string
}

// RawIBCClientState is the subset of an IBC client's storage needed to
// compute expiry for ibc_check (§4.4).
type RawIBCClientState struct {
	ClientID                   string
	CounterpartyConsensusTime  int64 // unix seconds
	TrustingPeriodSeconds      int64
}

// Pool fans a query out to every configured endpoint and returns the first
// success. It returns an error only when every endpoint has failed.
type Pool struct {
	endpoints []Endpoint
	chainID   string

	mu          sync.Mutex
	roundRobin  int
}

// New constructs a Pool over the given ordered endpoint list. Endpoint
// ordering must not bias correctness; it is only used to spread load for
// operations with no "canonical" answer (round-robin, see next).
func New(endpoints []Endpoint) (*Pool, error) {
	if len(endpoints) == 0 {
		return nil, errors.New("rpcpool: at least one endpoint is required")
	}
	return &Pool{endpoints: endpoints}, nil
}

// VerifyChainID queries every endpoint's self-reported network id. If they
// disagree, or disagree with an operator-declared expected id, it returns
// ErrChainIDMismatch (a fatal-startup condition, §7).
func (p *Pool) VerifyChainID(ctx context.Context, expected string) (string, error) {
	observed := make([]string, len(p.endpoints))
	var wg sync.WaitGroup
	errs := make([]error, len(p.endpoints))
	for i, ep := range p.endpoints {
		wg.Add(1)
		go func(i int, ep Endpoint) {
			defer wg.Done()
			id, err := ep.NetworkID(ctx)
			if err != nil {
				errs[i] = err
				return
			}
			observed[i] = id
		}(i, ep)
	}
	wg.Wait()

	distinct := mapset.NewSet[string]()
	var first string
	for i, id := range observed {
		if errs[i] != nil {
			log.Warn("Endpoint failed chain-id probe", "url", p.endpoints[i].URL(), "err", errs[i])
			continue
		}
		if first == "" {
			first = id
		}
		distinct.Add(id)
	}
	if first == "" {
		return "", fmt.Errorf("%w: no endpoint answered", ErrAllEndpointsFailed)
	}
	if distinct.Cardinality() > 1 {
		return "", fmt.Errorf("%w: endpoints disagree: %v", ErrChainIDMismatch, distinct.ToSlice())
	}
	if expected != "" && expected != first {
		return "", fmt.Errorf("%w: configured %q, observed %q", ErrChainIDMismatch, expected, first)
	}
	p.chainID = first
	return first, nil
}

// ChainID returns the chain id established by VerifyChainID.
func (p *Pool) ChainID() string {
	return p.chainID
}

// Endpoints exposes the pool's configured endpoints, mainly for tests.
func (p *Pool) Endpoints() []Endpoint {
	return p.endpoints
}

// next returns the round-robin starting index for operations without a
// canonical answer.
func (p *Pool) next() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	i := p.roundRobin
	p.roundRobin = (p.roundRobin + 1) % len(p.endpoints)
	return i
}

type raceResult[T any] struct {
	value T
	err   error
}

// Query dispatches fn against every endpoint in parallel and returns the
// first successful response. Losing goroutines observe ctx cancellation
// and return promptly; the pool never blocks past the first success.
func Query[T any](ctx context.Context, p *Pool, fn func(context.Context, Endpoint) (T, error)) (T, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make(chan raceResult[T], len(p.endpoints))
	start := p.next()
	for i := range p.endpoints {
		ep := p.endpoints[(start+i)%len(p.endpoints)]
		go func(ep Endpoint) {
			v, err := fn(ctx, ep)
			select {
			case results <- raceResult[T]{value: v, err: err}:
			case <-ctx.Done():
			}
		}(ep)
	}

	var zero T
	var lastErr error
	for i := 0; i < len(p.endpoints); i++ {
		r := <-results
		if r.err == nil {
			return r.value, nil
		}
		lastErr = r.err
		log.Debug("Endpoint query failed, awaiting other endpoints", "err", r.err)
	}
	if lastErr == nil {
		lastErr = ErrAllEndpointsFailed
	}
	return zero, fmt.Errorf("%w: %v", ErrAllEndpointsFailed, lastErr)
}
