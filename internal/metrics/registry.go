// Package metrics implements the Metrics Registry (§4.6): every tick's
// BlockState pair is projected onto a set of go-ethereum metrics objects,
// following the same registration style the teacher's miner package uses
// (metrics.NewRegisteredCounter/Gauge against a private Registry).
//
// go-ethereum's metrics package carries no label dimension, so every
// metric the catalog describes as labeled (fees{token,height},
// transaction_kind{kind,failed}, ibc_token_limit{epoch,token}, ...) is
// instead modeled as a family of dynamically-named series, one per
// label-value combination, registered lazily the first time that
// combination is observed. The height/epoch components of a label are
// dropped from the series name since they change every tick and would
// make the registered-name set unbounded; the metric's current value at
// scrape time is always the latest tick's, which is what a dashboard
// built against the catalog would graph in practice.
package metrics

import (
	"fmt"
	"sync"

	"github.com/ethereum/go-ethereum/log"
	gethmetrics "github.com/ethereum/go-ethereum/metrics"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/chain-sentry/monitor/internal/chain"
	"github.com/chain-sentry/monitor/internal/state"
)

// block_time, fees_by_tx, and transaction_batch_size are the catalog's
// three histograms (§4.6). They are built directly against
// prometheus/client_golang rather than go-ethereum's metrics.Histogram:
// the go-ethereum Prometheus bridge renders a metrics.Histogram as a
// Prometheus Summary (quantiles over an exponentially-decaying sample),
// never a bucketed Histogram, and the catalog names exact bucket
// boundaries as part of the exported contract.
var (
	blockTimeBuckets = prometheus.ExponentialBuckets(2, 1.5, 15)
	feesByTxBuckets  = []float64{0.01, 0.02, 0.05, 0.1, 0.5, 1, 2, 5, 10, 20, 50, 100}
	batchSizeBuckets = []float64{1, 2, 4, 8, 16, 32, 64, 128, 256}
)

// Registry owns every exported metric: the go-ethereum Registry the
// unlabeled counters and gauges are registered against (§4.6), and the
// prometheus.Registry the three bucketed histograms are registered
// against.
type Registry struct {
	backing gethmetrics.Registry
	promReg *prometheus.Registry

	blockHeight gethmetrics.Counter
	epoch       gethmetrics.Counter
	blockTime   prometheus.Histogram

	totalSupplyNative gethmetrics.Counter

	batchSize prometheus.Histogram

	bonds          gethmetrics.GaugeFloat64
	unbonds        gethmetrics.GaugeFloat64
	oneThird       gethmetrics.Gauge
	twoThird       gethmetrics.Gauge
	totalVP        gethmetrics.GaugeFloat64
	consensus      gethmetrics.Gauge
	jailed         gethmetrics.Gauge
	inactive       gethmetrics.Gauge
	belowThreshold gethmetrics.Gauge
	belowCapacity  gethmetrics.Gauge
	signatures     gethmetrics.Gauge
	slashes        gethmetrics.Counter

	mu             sync.Mutex
	lastNativeSupply float64
	haveNativeSupply bool
	fees           map[string]gethmetrics.Counter     // token -> counter
	txKind         map[string]gethmetrics.Counter      // "<kind>.<failed>" -> counter
	ibcTokenLimit  map[string]gethmetrics.GaugeFloat64 // token -> gauge
	transferAmount map[string]gethmetrics.GaugeFloat64 // token -> gauge
	feesByTx       *prometheus.HistogramVec             // labeled by token
}

// New constructs a Registry backed by a fresh go-ethereum metrics
// Registry and a fresh prometheus.Registry. Callers expose both via the
// exporter (server.go).
func New() *Registry {
	r := gethmetrics.NewRegistry()
	promReg := prometheus.NewRegistry()

	blockTime := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chain_block_time_seconds",
		Help:    "Seconds elapsed between consecutive blocks.",
		Buckets: blockTimeBuckets,
	})
	batchSize := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "chain_transaction_batch_size",
		Help:    "Inner transaction count per wrapper.",
		Buckets: batchSizeBuckets,
	})
	feesByTx := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "chain_fees_by_tx",
		Help:    "Per-transaction realized fee, by fee token.",
		Buckets: feesByTxBuckets,
	}, []string{"token"})
	promReg.MustRegister(blockTime, batchSize, feesByTx)

	return &Registry{
		backing:           r,
		promReg:           promReg,
		blockHeight:       gethmetrics.NewRegisteredCounter("chain/block_height", r),
		epoch:             gethmetrics.NewRegisteredCounter("chain/epoch", r),
		blockTime:         blockTime,
		totalSupplyNative: gethmetrics.NewRegisteredCounter("chain/total_supply_native_token", r),
		batchSize:         batchSize,
		bonds:             gethmetrics.NewRegisteredGaugeFloat64("chain/pos/bonds_next_epoch", r),
		unbonds:           gethmetrics.NewRegisteredGaugeFloat64("chain/pos/unbonds_next_epoch", r),
		oneThird:          gethmetrics.NewRegisteredGauge("chain/pos/one_third_threshold_validators", r),
		twoThird:          gethmetrics.NewRegisteredGauge("chain/pos/two_third_threshold_validators", r),
		totalVP:           gethmetrics.NewRegisteredGaugeFloat64("chain/pos/total_voting_power", r),
		consensus:         gethmetrics.NewRegisteredGauge("chain/pos/consensus_validators", r),
		jailed:            gethmetrics.NewRegisteredGauge("chain/pos/jailed_validators", r),
		inactive:          gethmetrics.NewRegisteredGauge("chain/pos/inactive_validators", r),
		belowThreshold:    gethmetrics.NewRegisteredGauge("chain/pos/below_threshold_validators", r),
		belowCapacity:     gethmetrics.NewRegisteredGauge("chain/pos/below_capacity_validators", r),
		signatures:        gethmetrics.NewRegisteredGauge("chain/pos/commit_signatures", r),
		slashes:           gethmetrics.NewRegisteredCounter("chain/pos/slashes_total", r),
		fees:              make(map[string]gethmetrics.Counter),
		txKind:            make(map[string]gethmetrics.Counter),
		ibcTokenLimit:     make(map[string]gethmetrics.GaugeFloat64),
		transferAmount:    make(map[string]gethmetrics.GaugeFloat64),
		feesByTx:          feesByTx,
	}
}

// Backing exposes the underlying go-ethereum Registry for the exporter.
func (r *Registry) Backing() gethmetrics.Registry { return r.backing }

// PromRegistry exposes the bucketed-histogram Prometheus registry for
// the exporter.
func (r *Registry) PromRegistry() *prometheus.Registry { return r.promReg }

// Reset initializes every cumulative counter from the first observed
// state, per §4.7 step 3: called once at startup, before the ingestion
// loop's first tick, with the initial BlockState the window was seeded
// with.
func (r *Registry) Reset(initial chain.BlockState, nativeToken string) {
	r.blockHeight.Inc(int64(initial.Block.Height))
	r.epoch.Inc(int64(initial.Block.Epoch))

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, supply := range initial.Supplies {
		if supply.Token != nativeToken {
			continue
		}
		amount := uint256ToFloat(supply.Effective)
		r.totalSupplyNative.Inc(int64(amount))
		r.lastNativeSupply = amount
		r.haveNativeSupply = true
	}
}

// Update projects the transition from pre to post onto every metric in
// the catalog (§4.6, §4.7 step i: `metrics.update(pre, post)`).
func (r *Registry) Update(pre, post chain.BlockState, nativeToken string) {
	r.blockHeight.Inc(int64(post.Block.Height) - int64(pre.Block.Height))
	r.epoch.Inc(int64(post.Block.Epoch) - int64(pre.Block.Epoch))
	if pre.Block.Timestamp > 0 {
		r.blockTime.Observe(float64(post.Block.Timestamp - pre.Block.Timestamp))
	}

	r.updateNativeSupply(post, nativeToken)

	feeTotals := make(map[string]float64)
	for _, wrapper := range post.Block.Wrappers {
		fee, _ := wrapper.RealizedFee().Float64()
		feeTotals[wrapper.FeeToken] += fee
		r.feesByTx.WithLabelValues(wrapper.FeeToken).Observe(fee)
		r.batchSize.Observe(float64(len(wrapper.Inners)))
		for _, inner := range wrapper.Inners {
			r.txKindCounter(inner.Kind, !inner.Applied).Inc(1)
		}
	}
	for token, total := range feeTotals {
		r.feesCounter(token).Inc(int64(total))
	}

	if post.BondsNextEpoch != nil {
		r.bonds.Update(uint256ToFloat(post.BondsNextEpoch))
	}
	if post.UnbondsNextEpoch != nil {
		r.unbonds.Update(uint256ToFloat(post.UnbondsNextEpoch))
	}

	var jailed, inactive, belowThreshold, belowCapacity, consensus int
	for _, v := range post.Validators {
		switch v.State {
		case chain.ValidatorJailed:
			jailed++
		case chain.ValidatorInactive:
			inactive++
		case chain.ValidatorBelowThreshold:
			belowThreshold++
		case chain.ValidatorBelowCapacity:
			belowCapacity++
		case chain.ValidatorConsensus:
			consensus++
		}
	}
	r.jailed.Update(int64(jailed))
	r.inactive.Update(int64(inactive))
	r.belowThreshold.Update(int64(belowThreshold))
	r.belowCapacity.Update(int64(belowCapacity))
	r.consensus.Update(int64(consensus))

	var signed int
	for _, sig := range post.Block.CommitSigs {
		if sig.Signed {
			signed++
		}
	}
	r.signatures.Update(int64(signed))
	r.slashes.Inc(int64(len(post.Block.Evidence)))

	for token, limit := range post.IBCMintLimits {
		r.ibcTokenLimitGauge(token).Update(uint256ToFloat(limit))
	}
}

// updateNativeSupply increments total_supply_native_token by the
// non-negative delta of the native token's effective supply (§4.6):
// a supply decrease (slashing, burn) is logged as a warning and never
// reflected as a decrement.
func (r *Registry) updateNativeSupply(post chain.BlockState, nativeToken string) {
	var found *chain.Supply
	for i := range post.Supplies {
		if post.Supplies[i].Token == nativeToken {
			found = &post.Supplies[i]
			break
		}
	}
	if found == nil {
		return
	}
	amount := uint256ToFloat(found.Effective)

	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.haveNativeSupply {
		r.totalSupplyNative.Inc(int64(amount))
		r.lastNativeSupply = amount
		r.haveNativeSupply = true
		return
	}
	delta := amount - r.lastNativeSupply
	if delta > 0 {
		r.totalSupplyNative.Inc(int64(delta))
	} else if delta < 0 {
		log.Warn("Native token supply decreased, counter not decremented", "previous", r.lastNativeSupply, "current", amount)
	}
	r.lastNativeSupply = amount
}

// UpdateVotingPowerThresholds records the validator counts required to
// reach the one-third/two-third quorum boundaries, as computed by the
// pos_one_third_check/pos_two_third_check predicates.
func (r *Registry) UpdateVotingPowerThresholds(s *state.State) {
	if n, err := s.ValidatorsWithVotingPower(1.0 / 3.0); err == nil {
		r.oneThird.Update(int64(n))
	}
	if n, err := s.ValidatorsWithVotingPower(2.0 / 3.0); err == nil {
		r.twoThird.Update(int64(n))
	}
	r.totalVP.Update(uint256ToFloat(s.TotalVotingPower()))
}

// UpdateTransfer records a single flattened transfer's amount, keyed by
// token so the series can be compared against transfer_limit_check.
func (r *Registry) UpdateTransfer(t chain.Transfer) {
	r.transferAmountGauge(t.Token).Update(uint256ToFloat(t.Amount))
}

func (r *Registry) feesCounter(token string) gethmetrics.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := fmt.Sprintf("chain/fees.%s", token)
	if c, ok := r.fees[name]; ok {
		return c
	}
	c := gethmetrics.GetOrRegisterCounter(name, r.backing)
	r.fees[name] = c
	return c
}

func (r *Registry) txKindCounter(kind chain.InnerKind, failed bool) gethmetrics.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	name := fmt.Sprintf("chain/transaction_kind.%s.%t", kind, failed)
	if c, ok := r.txKind[name]; ok {
		return c
	}
	c := gethmetrics.GetOrRegisterCounter(name, r.backing)
	r.txKind[name] = c
	return c
}

func (r *Registry) ibcTokenLimitGauge(token string) gethmetrics.GaugeFloat64 {
	return r.dynamicGaugeFloat64(r.ibcTokenLimit, fmt.Sprintf("chain/ibc/token_limit.%s", token))
}

func (r *Registry) transferAmountGauge(token string) gethmetrics.GaugeFloat64 {
	return r.dynamicGaugeFloat64(r.transferAmount, fmt.Sprintf("chain/transfer_amount.%s", token))
}

func (r *Registry) dynamicGaugeFloat64(set map[string]gethmetrics.GaugeFloat64, name string) gethmetrics.GaugeFloat64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := set[name]; ok {
		return g
	}
	g := gethmetrics.GetOrRegisterGaugeFloat64(name, r.backing)
	set[name] = g
	return g
}
