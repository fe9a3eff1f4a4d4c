// Package ingest implements the Ingestion Loop (§4.7): the per-tick
// materialization of one block's worth of chain state, the checks run
// against it, and the alert/metrics side effects that follow.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/chain-sentry/monitor/internal/alerts"
	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/checks"
	"github.com/chain-sentry/monitor/internal/config"
	"github.com/chain-sentry/monitor/internal/decode"
	"github.com/chain-sentry/monitor/internal/metrics"
	"github.com/chain-sentry/monitor/internal/rpcpool"
	"github.com/chain-sentry/monitor/internal/state"
)

// backoffBase is the first retry delay after a failed tick and the amount
// the delay grows by on each further failure (§4.7, §7 "Retry policy"):
// linear backoff, capped at the configured poll interval so a string of
// failures never outpaces the operator's own sleep_for setting.
const backoffBase = time.Second

// notifyThreshold is the accumulated-retry-duration floor below which a
// failing tick logs at Debug rather than Warn, so a single quick transient
// blip does not flood the logs (mirrors the reference implementation's
// `notify` callback, which only warns once retries exceed 100s).
const notifyThreshold = 100 * time.Second

// Loop drives the monitor's steady-state polling.
type Loop struct {
	pool     *rpcpool.Pool
	decoder  *decode.Decoder
	window   *state.State
	registry *checks.Registry
	alertMgr *alerts.Manager
	metrics  *metrics.Registry

	sleepFor        time.Duration
	lastBlockHeight *uint64
	nativeToken     string
	watchedTokens   []config.TokenAlias
	ibcChannels     []config.IBCChannel

	nextHeight uint64

	// cachedEpoch/cachedValidators memoize the last fetched validator set
	// so a run of blocks within one epoch does not re-query it every tick
	// (mirrors the reference implementation's update_next_state).
	cachedEpoch      uint64
	cachedEpochValid bool
	cachedValidators []chain.Validator
}

// New builds a Loop ready to run from initialHeight (0 means "start from
// the chain tip", §6).
func New(
	pool *rpcpool.Pool,
	decoder *decode.Decoder,
	window *state.State,
	registry *checks.Registry,
	alertMgr *alerts.Manager,
	metricsRegistry *metrics.Registry,
	sleepFor time.Duration,
	initialHeight uint64,
	lastBlockHeight *uint64,
	watchedTokens []config.TokenAlias,
	ibcChannels []config.IBCChannel,
) *Loop {
	return &Loop{
		pool:          pool,
		decoder:       decoder,
		window:        window,
		registry:      registry,
		alertMgr:      alertMgr,
		metrics:       metricsRegistry,
		sleepFor:      sleepFor,
		lastBlockHeight: lastBlockHeight,
		watchedTokens: watchedTokens,
		ibcChannels:   ibcChannels,
		nextHeight:    initialHeight,
	}
}

// Run polls until ctx is cancelled or LastBlockHeight is reached (§4.7,
// §6).
func (l *Loop) Run(ctx context.Context) error {
	if token, err := l.pool.NativeToken(ctx); err == nil {
		l.nativeToken = token
	} else {
		log.Warn("Failed to resolve native token at startup", "err", err)
	}

	if l.nextHeight == 0 {
		tip, err := l.pool.LatestHeight(ctx)
		if err != nil {
			return fmt.Errorf("ingest: resolve starting height: %w", err)
		}
		l.nextHeight = tip
	}

	if err := l.seed(ctx); err != nil {
		return fmt.Errorf("ingest: seed initial state: %w", err)
	}

	backoff := backoffBase
	var accumulatedRetry time.Duration
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if l.lastBlockHeight != nil && l.nextHeight > *l.lastBlockHeight {
			log.Info("Reached configured last_block_height, stopping", "height", *l.lastBlockHeight)
			return nil
		}

		advanced, err := l.tick(ctx)
		if err != nil {
			if accumulatedRetry > notifyThreshold {
				log.Warn("Ingestion tick failed", "height", l.nextHeight, "err", err, "retry_in", backoff, "retrying_for", accumulatedRetry)
			} else {
				log.Debug("Ingestion tick failed", "height", l.nextHeight, "err", err, "retry_in", backoff)
			}
			if !sleepCtx(ctx, backoff) {
				return nil
			}
			accumulatedRetry += backoff
			backoff += backoffBase
			if maxBackoff := l.sleepFor; maxBackoff > 0 && backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = backoffBase
		accumulatedRetry = 0

		if !advanced {
			if !sleepCtx(ctx, l.sleepFor) {
				return nil
			}
			continue
		}
	}
}

// seed materializes the starting block's snapshot and resets every
// metric against it, per §4.7 step (2)/(3), retrying under the same
// backoff policy as tick since Fatal-startup is reserved for conditions
// retries cannot resolve (chain-id mismatch, unparseable config).
func (l *Loop) seed(ctx context.Context) error {
	backoff := backoffBase
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		bs, err := l.materializeTick(ctx, l.nextHeight)
		if err == nil {
			l.window.Append(bs)
			l.metrics.Reset(bs, l.nativeToken)
			l.nextHeight++
			return nil
		}

		log.Error("Failed to seed initial state, retrying", "height", l.nextHeight, "err", err, "retry_in", backoff)
		if !sleepCtx(ctx, backoff) {
			return ctx.Err()
		}
		backoff += backoffBase
		if maxBackoff := l.sleepFor; maxBackoff > 0 && backoff > maxBackoff {
			backoff = maxBackoff
		}
	}
}

// tick materializes exactly one block, or reports advanced=false when the
// chain tip has not moved past nextHeight yet (§4.7).
func (l *Loop) tick(ctx context.Context) (advanced bool, err error) {
	tip, err := l.pool.LatestHeight(ctx)
	if err != nil {
		return false, err
	}
	if l.nextHeight > tip {
		return false, nil
	}

	post, err := l.materializeTick(ctx, l.nextHeight)
	if err != nil {
		return false, err
	}

	var pre chain.BlockState
	if l.window.Len() > 0 {
		pre = l.window.Last()
	}

	l.window.Append(post)

	now := time.Now()
	var tickAlerts []chain.Alert
	tickAlerts = append(tickAlerts, l.registry.RunBlockTriggered(l.window, now)...)
	tickAlerts = append(tickAlerts, l.registry.RunContinuous(l.window, now)...)
	l.alertMgr.Run(ctx, tickAlerts)

	l.metrics.Update(pre, post, l.nativeToken)
	l.metrics.UpdateVotingPowerThresholds(l.window)
	for _, t := range l.window.AllTransfers() {
		l.metrics.UpdateTransfer(t)
	}

	l.nextHeight++
	return true, nil
}

// materializeTick fetches and decodes one height's block, then gathers
// the rest of its BlockState facets (§4.1, §4.2, §4.7 step c).
func (l *Loop) materializeTick(ctx context.Context, height uint64) (chain.BlockState, error) {
	epoch, err := l.pool.EpochAtHeight(ctx, height)
	if err != nil {
		return chain.BlockState{}, err
	}
	rawBlock, err := l.pool.RawBlock(ctx, height)
	if err != nil {
		return chain.BlockState{}, err
	}
	rawResults, err := l.pool.RawBlockResults(ctx, height)
	if err != nil {
		return chain.BlockState{}, err
	}
	codeHashes, err := l.pool.CodeHashTable(ctx, height)
	if err != nil {
		return chain.BlockState{}, err
	}

	block := l.decoder.Decode(rawBlock, rawResults, codeHashes, epoch)
	post, err := l.materializeState(ctx, block, epoch)
	if err != nil {
		return chain.BlockState{}, err
	}
	if block.Height != height {
		return chain.BlockState{}, fmt.Errorf("ingest: height mismatch: requested %d, got %d", height, block.Height)
	}
	return post, nil
}

// materializeState gathers every RPC-sourced facet of a block beyond the
// block itself: validator set, token supplies, bonding projections, and
// IBC client/limit health (§4.3, §4.7).
func (l *Loop) materializeState(ctx context.Context, block chain.Block, epoch uint64) (chain.BlockState, error) {
	var validators []chain.Validator
	if l.cachedEpochValid && l.cachedEpoch == epoch {
		validators = l.cachedValidators
	} else {
		rawValidators, err := l.pool.ValidatorSet(ctx, epoch)
		if err != nil {
			return chain.BlockState{}, err
		}
		validators, err = toValidators(rawValidators)
		if err != nil {
			return chain.BlockState{}, err
		}
		l.cachedEpoch = epoch
		l.cachedEpochValid = true
		l.cachedValidators = validators
	}

	out := chain.BlockState{
		Block:         block,
		Validators:    validators,
		IBCMintLimits: make(map[string]*uint256.Int),
	}

	bonds, unbonds, err := l.pool.FutureBondsAndUnbonds(ctx, epoch)
	if err != nil {
		log.Warn("Failed to fetch bonds/unbonds projection", "height", block.Height, "err", err)
	} else {
		if b, perr := parseUint256(bonds); perr == nil {
			out.BondsNextEpoch = b
		}
		if u, perr := parseUint256(unbonds); perr == nil {
			out.UnbondsNextEpoch = u
		}
	}

	for _, token := range l.watchedTokens {
		rawSupply, serr := l.pool.TokenSupply(ctx, token.Address, block.Height)
		if serr != nil {
			log.Warn("Failed to fetch token supply", "token", token.Alias, "err", serr)
			continue
		}
		supply, cerr := toSupply(rawSupply)
		if cerr != nil {
			log.Warn("Failed to parse token supply", "token", token.Alias, "err", cerr)
			continue
		}
		out.Supplies = append(out.Supplies, supply)

		limit, lerr := l.pool.IBCMintLimit(ctx, token.Address)
		if lerr != nil {
			continue
		}
		if parsed, perr := parseUint256(limit); perr == nil && !parsed.IsZero() {
			out.IBCMintLimits[token.Address] = parsed
		}
	}

	for _, ch := range l.ibcChannels {
		raw, cerr := l.pool.IBCClientState(ctx, ch.ClientID)
		if cerr != nil {
			log.Warn("Failed to fetch IBC client state", "client", ch.ClientID, "err", cerr)
			continue
		}
		out.IBCClients = append(out.IBCClients, toIBCClientStatus(raw))
	}

	return out, nil
}

// sleepCtx sleeps for d or returns false early if ctx is cancelled.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		d = time.Second
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}

// IsFatal reports whether err should abort the loop entirely rather than
// retry with backoff (§7): currently only a chain-id mismatch qualifies,
// since it indicates misconfiguration rather than transient RPC failure.
func IsFatal(err error) bool {
	return errors.Is(err, rpcpool.ErrChainIDMismatch)
}
