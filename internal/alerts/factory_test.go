package alerts

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/chain-sentry/monitor/internal/config"
	"github.com/chain-sentry/monitor/internal/explorer"
)

func TestBuildSinksThreadsConfiguredIDThroughEverySink(t *testing.T) {
	exp := explorer.New("", "", "")
	sinks, err := BuildSinks([]config.SinkConfig{
		{ID: "primary-webhook", Kind: "webhook", WebhookURL: "https://example.test/hook-a"},
		{ID: "secondary-webhook", Kind: "webhook", WebhookURL: "https://example.test/hook-b"},
		{ID: "ops-bot", Kind: "telegram", BotToken: "t", ChatID: "c"},
		{ID: "console", Kind: "log"},
	}, "testnet", exp)
	require.NoError(t, err)
	require.Len(t, sinks, 4)
	require.Equal(t, "primary-webhook", sinks[0].ID())
	require.Equal(t, "secondary-webhook", sinks[1].ID())
	require.Equal(t, "ops-bot", sinks[2].ID())
	require.Equal(t, "console", sinks[3].ID())
	require.NotEqual(t, sinks[0].ID(), sinks[1].ID())
}

func TestBuildSinksRejectsMissingID(t *testing.T) {
	exp := explorer.New("", "", "")
	_, err := BuildSinks([]config.SinkConfig{
		{Kind: "webhook", WebhookURL: "https://example.test/hook"},
	}, "testnet", exp)
	require.Error(t, err)
}

func TestBuildSinksFallsBackToSingleLogSink(t *testing.T) {
	exp := explorer.New("", "", "")
	sinks, err := BuildSinks(nil, "testnet", exp)
	require.NoError(t, err)
	require.Len(t, sinks, 1)
	require.Equal(t, "log", sinks[0].ID())
}
