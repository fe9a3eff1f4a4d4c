package ingest

import (
	"fmt"
	"time"

	"github.com/holiman/uint256"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/rpcpool"
)

// parseUint256 parses a decimal amount string as returned by RPC. An
// empty string is treated as zero, the shape an endpoint uses to report
// "no data yet" for a brand-new token (§4.1).
func parseUint256(s string) (*uint256.Int, error) {
	if s == "" {
		return uint256.NewInt(0), nil
	}
	v, err := uint256.FromDecimal(s)
	if err != nil {
		return nil, fmt.Errorf("ingest: parse amount %q: %w", s, err)
	}
	return v, nil
}

func toValidators(raw rpcpool.RawValidatorSet) ([]chain.Validator, error) {
	out := make([]chain.Validator, 0, len(raw.Validators))
	for _, v := range raw.Validators {
		power, err := parseUint256(v.VotingPower)
		if err != nil {
			return nil, err
		}
		out = append(out, chain.Validator{
			Address:     v.Address,
			VotingPower: power,
			State:       chain.ValidatorState(v.State),
		})
	}
	return out, nil
}

func toSupply(raw rpcpool.RawSupply) (chain.Supply, error) {
	total, err := parseUint256(raw.Total)
	if err != nil {
		return chain.Supply{}, err
	}
	effective, err := parseUint256(raw.Effective)
	if err != nil {
		return chain.Supply{}, err
	}
	return chain.Supply{Token: raw.Token, Total: total, Effective: effective}, nil
}

func toIBCClientStatus(raw rpcpool.RawIBCClientState) chain.IBCClientStatus {
	expiry := time.Unix(raw.CounterpartyConsensusTime, 0).Add(time.Duration(raw.TrustingPeriodSeconds) * time.Second)
	return chain.IBCClientStatus{ClientID: raw.ClientID, ExpiresAt: expiry}
}
