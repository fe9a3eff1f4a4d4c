package chain

import (
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRealizedFeeMultipliesGasUsedByAmountPerGas(t *testing.T) {
	w := WrapperTx{GasUsed: 50_000, AmountPerGas: big.NewRat(3, 1)}
	require.Equal(t, big.NewRat(150_000, 1), w.RealizedFee())
}

func TestRealizedFeeMultipliesGasUsedByFractionalAmountPerGas(t *testing.T) {
	w := WrapperTx{GasUsed: 1000, AmountPerGas: big.NewRat(3, 100)} // 0.03
	require.Equal(t, big.NewRat(30, 1), w.RealizedFee())
}

func TestRealizedFeeZeroWithoutAmountPerGas(t *testing.T) {
	w := WrapperTx{GasUsed: 50_000}
	require.Equal(t, 0, w.RealizedFee().Sign())
}

func TestAlertKeyScopesByCheckAndSink(t *testing.T) {
	a := Alert{CheckID: "halt_check"}
	require.Equal(t, AlertKey{SinkID: "log", CheckID: "halt_check"}, a.Key("log"))
	require.NotEqual(t, a.Key("log"), a.Key("webhook"))
}

func TestSeverityStringCoversEveryLevel(t *testing.T) {
	require.Equal(t, "low", SeverityLow.String())
	require.Equal(t, "medium", SeverityMedium.String())
	require.Equal(t, "high", SeverityHigh.String())
	require.Equal(t, "critical", SeverityCritical.String())
}

func TestSeverityEmojiAndColorAreNonEmptyForEveryLevel(t *testing.T) {
	for _, s := range []Severity{SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical} {
		require.NotEmpty(t, s.Emoji())
		require.NotEmpty(t, s.Color())
	}
}
