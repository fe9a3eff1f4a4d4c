package rpcpool

import "context"

// The methods below are thin, typed wrappers around Query for each
// operation named in §4.1's contract. They exist so call sites read like
// "pool.LatestHeight(ctx)" instead of threading closures everywhere.

func (p *Pool) LatestHeight(ctx context.Context) (uint64, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (uint64, error) {
		return ep.LatestHeight(ctx)
	})
}

func (p *Pool) EpochAtHeight(ctx context.Context, height uint64) (uint64, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (uint64, error) {
		return ep.EpochAtHeight(ctx, height)
	})
}

func (p *Pool) RawBlock(ctx context.Context, height uint64) (RawBlock, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (RawBlock, error) {
		return ep.RawBlock(ctx, height)
	})
}

func (p *Pool) RawBlockResults(ctx context.Context, height uint64) (RawBlockResults, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (RawBlockResults, error) {
		return ep.RawBlockResults(ctx, height)
	})
}

func (p *Pool) CodeHashTable(ctx context.Context, height uint64) (map[string]string, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (map[string]string, error) {
		return ep.CodeHashTable(ctx, height)
	})
}

func (p *Pool) ValidatorSet(ctx context.Context, epoch uint64) (RawValidatorSet, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (RawValidatorSet, error) {
		return ep.ValidatorSet(ctx, epoch)
	})
}

func (p *Pool) NativeToken(ctx context.Context) (string, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (string, error) {
		return ep.NativeToken(ctx)
	})
}

func (p *Pool) TokenSupply(ctx context.Context, token string, height uint64) (RawSupply, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (RawSupply, error) {
		return ep.TokenSupply(ctx, token, height)
	})
}

type bondsUnbonds struct {
	bonds, unbonds string
}

func (p *Pool) FutureBondsAndUnbonds(ctx context.Context, epoch uint64) (string, string, error) {
	r, err := Query(ctx, p, func(ctx context.Context, ep Endpoint) (bondsUnbonds, error) {
		b, u, err := ep.FutureBondsAndUnbonds(ctx, epoch)
		return bondsUnbonds{bonds: b, unbonds: u}, err
	})
	return r.bonds, r.unbonds, err
}

func (p *Pool) IBCMintLimit(ctx context.Context, token string) (string, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (string, error) {
		return ep.IBCMintLimit(ctx, token)
	})
}

func (p *Pool) IBCClientState(ctx context.Context, clientID string) (RawIBCClientState, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (RawIBCClientState, error) {
		return ep.IBCClientState(ctx, clientID)
	})
}

func (p *Pool) MaxBlockTimeEstimate(ctx context.Context) (int64, error) {
	return Query(ctx, p, func(ctx context.Context, ep Endpoint) (int64, error) {
		return ep.MaxBlockTimeEstimate(ctx)
	})
}
