package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

const sampleDoc = `
explorer_base_url = "https://explorer.example.com"
explorer_tx_template = "/tx/{tx_hash}"
explorer_block_template = "/block/{block_height}"

[thresholds]
estimated_block_time_seconds = 6.0
block_time_deviation = 0.5
halt_threshold_seconds = 60
avg_block_time_window = 50
avg_block_time_factor = 1.2
gas_margin = 0.2
tx_sections_per_inner = 3.0
tx_batch_threshold = 20
min_one_third_validators = 5
min_two_third_validators = 10
consensus_threshold = 0.9
bonds_increase_threshold = 0.5
unbonds_increase_threshold = 0.5
ibc_healthy_threshold_seconds = 172800.0
ibc_mint_limit_warn_fraction = 0.8

[thresholds.fee_thresholds]
NAM = 0.1

[thresholds.transfer_limit_thresholds]
NAM = 1000.0

[[ibc_channels]]
channel_id = "channel-0"
client_id = "07-tendermint-0"

[[tokens]]
alias = "NAM"
address = "tnam1..."
native = true

[[sinks]]
id = "log"
kind = "log"
`

func TestLoadDecodesDocument(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(sampleDoc), 0o644))

	doc, err := Load(path)
	require.NoError(t, err)

	require.Equal(t, "https://explorer.example.com", doc.ExplorerBaseURL)
	require.Equal(t, 6.0, doc.Thresholds.EstimatedBlockTimeSeconds)
	require.Equal(t, 0.1, doc.Thresholds.FeeThresholds["NAM"])
	require.Len(t, doc.IBCChannels, 1)
	require.Equal(t, "channel-0", doc.IBCChannels[0].ChannelID)
	require.Len(t, doc.Tokens, 1)
	require.True(t, doc.Tokens[0].Native)
	require.Len(t, doc.Sinks, 1)
	require.Equal(t, "log", doc.Sinks[0].Kind)
}

func TestLoadRejectsMissingPath(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.toml"))
	require.Error(t, err)
}

func TestLoadRejectsEmptyPath(t *testing.T) {
	_, err := Load("")
	require.Error(t, err)
}
