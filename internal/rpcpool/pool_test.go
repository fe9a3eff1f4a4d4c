package rpcpool

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

// stubEndpoint implements Endpoint with canned, optionally-delayed,
// optionally-failing responses, just enough to exercise the pool's
// first-success fan-out and chain-id invariant.
type stubEndpoint struct {
	url       string
	networkID string
	height    uint64
	delay     time.Duration
	failNetworkID bool
	failHeight    bool
}

func (s *stubEndpoint) URL() string { return s.url }

func (s *stubEndpoint) NetworkID(ctx context.Context) (string, error) {
	if s.failNetworkID {
		return "", errors.New("stub: network id unavailable")
	}
	return s.networkID, nil
}

func (s *stubEndpoint) LatestHeight(ctx context.Context) (uint64, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return 0, ctx.Err()
		}
	}
	if s.failHeight {
		return 0, errors.New("stub: height unavailable")
	}
	return s.height, nil
}

func (s *stubEndpoint) EpochAtHeight(ctx context.Context, height uint64) (uint64, error) {
	return 0, nil
}
func (s *stubEndpoint) RawBlock(ctx context.Context, height uint64) (RawBlock, error) {
	return RawBlock{}, nil
}
func (s *stubEndpoint) RawBlockResults(ctx context.Context, height uint64) (RawBlockResults, error) {
	return RawBlockResults{}, nil
}
func (s *stubEndpoint) CodeHashTable(ctx context.Context, height uint64) (map[string]string, error) {
	return nil, nil
}
func (s *stubEndpoint) ValidatorSet(ctx context.Context, epoch uint64) (RawValidatorSet, error) {
	return RawValidatorSet{}, nil
}
func (s *stubEndpoint) NativeToken(ctx context.Context) (string, error) { return "", nil }
func (s *stubEndpoint) TokenSupply(ctx context.Context, token string, height uint64) (RawSupply, error) {
	return RawSupply{}, nil
}
func (s *stubEndpoint) FutureBondsAndUnbonds(ctx context.Context, epoch uint64) (string, string, error) {
	return "0", "0", nil
}
func (s *stubEndpoint) IBCMintLimit(ctx context.Context, token string) (string, error) {
	return "0", nil
}
func (s *stubEndpoint) IBCClientState(ctx context.Context, clientID string) (RawIBCClientState, error) {
	return RawIBCClientState{}, nil
}
func (s *stubEndpoint) MaxBlockTimeEstimate(ctx context.Context) (int64, error) { return 0, nil }

func TestQueryReturnsFirstSuccess(t *testing.T) {
	slow := &stubEndpoint{url: "slow", height: 100, delay: 50 * time.Millisecond}
	fast := &stubEndpoint{url: "fast", height: 200}
	pool, err := New([]Endpoint{slow, fast})
	require.NoError(t, err)

	height, err := pool.LatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(200), height)
}

func TestQueryFailsOnlyWhenEveryEndpointFails(t *testing.T) {
	a := &stubEndpoint{url: "a", failHeight: true}
	b := &stubEndpoint{url: "b", failHeight: true}
	pool, err := New([]Endpoint{a, b})
	require.NoError(t, err)

	_, err = pool.LatestHeight(context.Background())
	require.ErrorIs(t, err, ErrAllEndpointsFailed)
}

func TestQuerySucceedsIfAnyEndpointSucceeds(t *testing.T) {
	a := &stubEndpoint{url: "a", failHeight: true}
	b := &stubEndpoint{url: "b", height: 42}
	pool, err := New([]Endpoint{a, b})
	require.NoError(t, err)

	height, err := pool.LatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(42), height)
}

func TestVerifyChainIDAgrees(t *testing.T) {
	a := &stubEndpoint{url: "a", networkID: "chain-1"}
	b := &stubEndpoint{url: "b", networkID: "chain-1"}
	pool, err := New([]Endpoint{a, b})
	require.NoError(t, err)

	id, err := pool.VerifyChainID(context.Background(), "")
	require.NoError(t, err)
	require.Equal(t, "chain-1", id)
	require.Equal(t, "chain-1", pool.ChainID())
}

func TestVerifyChainIDMismatchAcrossEndpoints(t *testing.T) {
	a := &stubEndpoint{url: "a", networkID: "chain-1"}
	b := &stubEndpoint{url: "b", networkID: "chain-2"}
	pool, err := New([]Endpoint{a, b})
	require.NoError(t, err)

	_, err = pool.VerifyChainID(context.Background(), "")
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestVerifyChainIDMismatchAgainstExpected(t *testing.T) {
	a := &stubEndpoint{url: "a", networkID: "chain-1"}
	pool, err := New([]Endpoint{a})
	require.NoError(t, err)

	_, err = pool.VerifyChainID(context.Background(), "chain-9")
	require.ErrorIs(t, err, ErrChainIDMismatch)
}

func TestNewRejectsEmptyEndpointList(t *testing.T) {
	_, err := New(nil)
	require.Error(t, err)
}
