// Command chain-monitor runs the BFT chain monitoring daemon described by
// the Configuration Surface (§6): an RPC client pool, block decoder,
// check framework, alert manager, and metrics exporter wired around a
// single ingestion loop.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"

	"github.com/chain-sentry/monitor/internal/alerts"
	"github.com/chain-sentry/monitor/internal/chainclient"
	"github.com/chain-sentry/monitor/internal/checks"
	"github.com/chain-sentry/monitor/internal/config"
	"github.com/chain-sentry/monitor/internal/decode"
	"github.com/chain-sentry/monitor/internal/explorer"
	"github.com/chain-sentry/monitor/internal/ingest"
	"github.com/chain-sentry/monitor/internal/metrics"
	"github.com/chain-sentry/monitor/internal/rpcpool"
	"github.com/chain-sentry/monitor/internal/state"
)

var (
	rpcFlag = &cli.StringSliceFlag{
		Name:     "rpc",
		Usage:    "RPC endpoint URL, repeatable for a multi-node pool eg. --rpc http://node-a:26657 --rpc http://node-b:26657",
		Required: true,
	}
	chainIDFlag = &cli.StringFlag{
		Name:  "chain_id",
		Usage: "expected chain id; if unset, adopted from the first endpoint that answers at startup",
	}
	initialBlockHeightFlag = &cli.Uint64Flag{
		Name:  "initial_block_height",
		Usage: "block height to start ingestion from; 0 starts from the current tip",
	}
	lastBlockHeightFlag = &cli.Uint64Flag{
		Name:  "last_block_height",
		Usage: "block height to stop ingestion after; unset runs forever",
	}
	sleepForFlag = &cli.DurationFlag{
		Name:  "sleep_for",
		Usage: "poll interval between tip checks when no new block is available",
		Value: 2 * time.Second,
	}
	prometheusPortFlag = &cli.IntFlag{
		Name:  "prometheus_port",
		Usage: "port the Prometheus exporter listens on",
		Value: 9184,
	}
	configPathFlag = &cli.StringFlag{
		Name:     "config_path",
		Usage:    "path to the TOML configuration document (thresholds, sinks, ibc channels, tokens)",
		Required: true,
	}
	verbosityFlag = &cli.StringFlag{
		Name:  "verbosity",
		Usage: "log verbosity: crit, error, warn, info, debug, trace",
		Value: "info",
	}
)

func main() {
	app := &cli.App{
		Name:  "chain-monitor",
		Usage: "monitors a BFT RPC chain for liveness, PoS, fee, and IBC anomalies",
		Flags: []cli.Flag{
			rpcFlag,
			chainIDFlag,
			initialBlockHeightFlag,
			lastBlockHeightFlag,
			sleepForFlag,
			prometheusPortFlag,
			configPathFlag,
			verbosityFlag,
		},
		Action: run,
	}

	if err := app.Run(os.Args); err != nil {
		log.Crit("Fatal error", "err", err)
	}
}

func run(cctx *cli.Context) error {
	setupLogging(cctx.String(verbosityFlag.Name))

	doc, err := config.Load(cctx.String(configPathFlag.Name))
	if err != nil {
		return fmt.Errorf("chain-monitor: %w", err)
	}

	var lastBlockHeight *uint64
	if cctx.IsSet(lastBlockHeightFlag.Name) {
		h := cctx.Uint64(lastBlockHeightFlag.Name)
		lastBlockHeight = &h
	}

	pool, err := buildPool(cctx.StringSlice(rpcFlag.Name))
	if err != nil {
		return fmt.Errorf("chain-monitor: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainID, err := pool.VerifyChainID(ctx, cctx.String(chainIDFlag.Name))
	if err != nil {
		return fmt.Errorf("chain-monitor: %w", err)
	}
	log.Info("Verified chain id", "chain_id", chainID)

	exp := explorer.New(doc.ExplorerBaseURL, doc.ExplorerTxTemplate, doc.ExplorerBlockTemplate)
	sinks, err := alerts.BuildSinks(doc.Sinks, chainID, exp)
	if err != nil {
		return fmt.Errorf("chain-monitor: %w", err)
	}
	alertMgr := alerts.New(sinks, alerts.DefaultCapacity)

	window := state.New(state.DefaultCapacity)
	registry := checks.NewRegistry(buildChecks(doc.Thresholds)...)
	metricsRegistry := metrics.New()
	metricsServer := metrics.NewServer(cctx.Int(prometheusPortFlag.Name), metricsRegistry)

	decoder := decode.New(&decode.JSONCodec{}, &decode.JSONCodec{})

	loop := ingest.New(
		pool,
		decoder,
		window,
		registry,
		alertMgr,
		metricsRegistry,
		cctx.Duration(sleepForFlag.Name),
		cctx.Uint64(initialBlockHeightFlag.Name),
		lastBlockHeight,
		doc.Tokens,
		doc.IBCChannels,
	)

	errCh := make(chan error, 2)
	go func() { errCh <- metricsServer.Serve(ctx) }()
	go func() { errCh <- loop.Run(ctx) }()

	select {
	case err := <-errCh:
		stop()
		return err
	case <-ctx.Done():
		return nil
	}
}

func buildPool(urls []string) (*rpcpool.Pool, error) {
	endpoints := make([]rpcpool.Endpoint, 0, len(urls))
	for _, u := range urls {
		client, err := chainclient.New(u, 10*time.Second)
		if err != nil {
			return nil, fmt.Errorf("dial %s: %w", u, err)
		}
		endpoints = append(endpoints, client)
	}
	return rpcpool.New(endpoints)
}

func buildChecks(t config.Thresholds) []checks.Check {
	return []checks.Check{
		&checks.BlockCheck{
			EstimatedBlockTime: time.Duration(t.EstimatedBlockTimeSeconds * float64(time.Second)),
			Deviation:          t.BlockTimeDeviation,
		},
		&checks.AvgBlockTimeCheck{
			EstimatedBlockTime: time.Duration(t.EstimatedBlockTimeSeconds * float64(time.Second)),
			Factor:             t.AvgBlockTimeFactor,
			Window:             t.AvgBlockTimeWindow,
		},
		&checks.HaltCheck{HaltThreshold: time.Duration(t.HaltThresholdSeconds) * time.Second},
		&checks.FeeCheck{Thresholds: t.FeeThresholds},
		&checks.GasCheck{Margin: t.GasMargin},
		&checks.TxCheck{SectionsPerInner: t.TxSectionsPerInner, BatchThreshold: t.TxBatchThreshold},
		&checks.PosOneThirdCheck{MinValidators: t.MinOneThirdValidators},
		&checks.PosTwoThirdCheck{MinValidators: t.MinTwoThirdValidators},
		&checks.PosConsensusCheck{ConsensusThreshold: t.ConsensusThreshold},
		&checks.PosBondsCheck{IncreaseThreshold: t.BondsIncreaseThreshold},
		&checks.PosUnbondsCheck{IncreaseThreshold: t.UnbondsIncreaseThreshold},
		&checks.IBCCheck{HealthyThreshold: time.Duration(t.IBCHealthyThresholdSeconds * float64(time.Second))},
		&checks.IBCLimitCheck{WarnFraction: t.IBCMintLimitWarnFraction},
		&checks.TransferLimitCheck{Thresholds: t.TransferLimitThresholds},
		&checks.SlashCheck{},
	}
}

func setupLogging(verbosity string) {
	level := log.LevelInfo
	switch verbosity {
	case "crit":
		level = log.LevelCrit
	case "error":
		level = log.LevelError
	case "warn":
		level = log.LevelWarn
	case "info":
		level = log.LevelInfo
	case "debug":
		level = log.LevelDebug
	case "trace":
		level = log.LevelTrace
	}
	handler := log.NewTerminalHandlerWithLevel(os.Stderr, level, true)
	log.SetDefault(log.NewLogger(handler))
}
