// Package config defines the monitor's configuration surface (§6) and
// loads the TOML document referenced by config_path, following the
// teacher's choice of github.com/BurntSushi/toml.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
)

// IBCChannel is one configured counterparty channel watched by ibc_check.
type IBCChannel struct {
	ChannelID string `toml:"channel_id"`
	ClientID  string `toml:"client_id"`
}

// SinkConfig is the credential/endpoint bundle for one configured
// notification sink. Kind selects which concrete sink implementation to
// construct (§6): "log", "webhook", or "telegram".
type SinkConfig struct {
	ID            string        `toml:"id"`
	Kind          string        `toml:"kind"`
	WebhookURL    string        `toml:"webhook_url"`
	BotToken      string        `toml:"bot_token"`
	ChatID        string        `toml:"chat_id"`
	MinSeverity   string        `toml:"min_severity"`
	RetryCount        int     `toml:"retry_count"`
	RetryDelaySeconds float64 `toml:"retry_delay_seconds"`
}

// Thresholds groups the numeric parameters the check catalog (§4.4) is
// parameterized with.
type Thresholds struct {
	EstimatedBlockTimeSeconds float64            `toml:"estimated_block_time_seconds"`
	BlockTimeDeviation        float64            `toml:"block_time_deviation"`
	HaltThresholdSeconds      int64              `toml:"halt_threshold_seconds"`
	AvgBlockTimeWindow        int                `toml:"avg_block_time_window"`
	AvgBlockTimeFactor        float64            `toml:"avg_block_time_factor"`
	FeeThresholds             map[string]float64 `toml:"fee_thresholds"`
	GasMargin                 float64            `toml:"gas_margin"`
	TxSectionsPerInner        float64            `toml:"tx_sections_per_inner"`
	TxBatchThreshold          int                `toml:"tx_batch_threshold"`
	MinOneThirdValidators     int                `toml:"min_one_third_validators"`
	MinTwoThirdValidators     int                `toml:"min_two_third_validators"`
	ConsensusThreshold        float64            `toml:"consensus_threshold"`
	BondsIncreaseThreshold    float64            `toml:"bonds_increase_threshold"`
	UnbondsIncreaseThreshold  float64            `toml:"unbonds_increase_threshold"`
	IBCHealthyThresholdSeconds float64           `toml:"ibc_healthy_threshold_seconds"`
	IBCMintLimitWarnFraction  float64            `toml:"ibc_mint_limit_warn_fraction"`
	TransferLimitThresholds   map[string]float64 `toml:"transfer_limit_thresholds"`
}

// Document is the shape of the TOML file referenced by config_path: the
// block-explorer templates, chain numeric parameters, PoS thresholds,
// per-token fee/transfer thresholds, IBC channel list, and sink
// credentials (§6).
type Document struct {
	ExplorerBaseURL      string       `toml:"explorer_base_url"`
	ExplorerTxTemplate   string       `toml:"explorer_tx_template"`
	ExplorerBlockTemplate string      `toml:"explorer_block_template"`
	Thresholds           Thresholds   `toml:"thresholds"`
	IBCChannels          []IBCChannel `toml:"ibc_channels"`
	Sinks                []SinkConfig `toml:"sinks"`
	Tokens               []TokenAlias `toml:"tokens"`
}

// TokenAlias names a token address the monitor should track supply/limits
// for (§4.6, "Supplemented features"). The ingestion loop queries and keys
// supplies and mint limits by Address and uses Alias only in log lines;
// it recognizes the native token by the address the native-token RPC
// query returns and does not read Native.
type TokenAlias struct {
	Alias   string `toml:"alias"`
	Address string `toml:"address"`
	Native  bool   `toml:"native"`
}

// Config is the fully-resolved runtime configuration: the CLI-level
// surface of §6 plus the decoded TOML Document.
type Config struct {
	RPCEndpoints        []string
	ChainID             string
	InitialBlockHeight  *uint64
	LastBlockHeight     *uint64
	SleepFor            time.Duration
	PrometheusPort      int
	StateWindowCapacity int
	AlertCacheCapacity  int
	DefaultAlertTTL     time.Duration
	Verbosity           string

	Document Document
}

// Load reads and decodes the TOML document at path and returns it.
func Load(path string) (Document, error) {
	var doc Document
	if path == "" {
		return doc, fmt.Errorf("config: empty config_path")
	}
	if _, err := os.Stat(path); err != nil {
		return doc, fmt.Errorf("config: %w", err)
	}
	if _, err := toml.DecodeFile(path, &doc); err != nil {
		return doc, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return doc, nil
}
