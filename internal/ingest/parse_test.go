package ingest

import (
	"errors"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/rpcpool"
)

func TestParseUint256TreatsEmptyStringAsZero(t *testing.T) {
	v, err := parseUint256("")
	require.NoError(t, err)
	require.True(t, v.IsZero())
}

func TestParseUint256ParsesDecimalString(t *testing.T) {
	v, err := parseUint256("12345")
	require.NoError(t, err)
	require.Equal(t, uint256.NewInt(12345), v)
}

func TestParseUint256RejectsGarbage(t *testing.T) {
	_, err := parseUint256("not-a-number")
	require.Error(t, err)
}

func TestToValidatorsConvertsEveryEntry(t *testing.T) {
	raw := rpcpool.RawValidatorSet{Validators: []rpcpool.RawValidator{
		{Address: "v1", VotingPower: "100", State: "consensus"},
		{Address: "v2", VotingPower: "50", State: "below-capacity"},
	}}
	out, err := toValidators(raw)
	require.NoError(t, err)
	require.Len(t, out, 2)
	require.Equal(t, "v1", out[0].Address)
	require.Equal(t, uint256.NewInt(100), out[0].VotingPower)
	require.Equal(t, chain.ValidatorConsensus, out[0].State)
	require.Equal(t, chain.ValidatorBelowCapacity, out[1].State)
}

func TestToValidatorsPropagatesParseError(t *testing.T) {
	raw := rpcpool.RawValidatorSet{Validators: []rpcpool.RawValidator{
		{Address: "v1", VotingPower: "garbage", State: "consensus"},
	}}
	_, err := toValidators(raw)
	require.Error(t, err)
}

func TestToSupplyConvertsBothAmounts(t *testing.T) {
	raw := rpcpool.RawSupply{Token: "NAM", Total: "1000", Effective: "900"}
	s, err := toSupply(raw)
	require.NoError(t, err)
	require.Equal(t, "NAM", s.Token)
	require.Equal(t, uint256.NewInt(1000), s.Total)
	require.Equal(t, uint256.NewInt(900), s.Effective)
}

func TestToIBCClientStatusComputesExpiry(t *testing.T) {
	raw := rpcpool.RawIBCClientState{
		ClientID:                  "07-tendermint-0",
		CounterpartyConsensusTime: 1_000,
		TrustingPeriodSeconds:     3_600,
	}
	status := toIBCClientStatus(raw)
	require.Equal(t, "07-tendermint-0", status.ClientID)
	require.Equal(t, time.Unix(4_600, 0), status.ExpiresAt)
}

func TestIsFatalOnlyForChainIDMismatch(t *testing.T) {
	require.True(t, IsFatal(rpcpool.ErrChainIDMismatch))
	require.True(t, IsFatal(errors.Join(errors.New("wrap"), rpcpool.ErrChainIDMismatch)))
	require.False(t, IsFatal(errors.New("some other transient error")))
}
