package explorer

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestTxURLRendersPlaceholder(t *testing.T) {
	e := New("https://explorer.example.com", "/tx/{tx_hash}", "/block/{block_height}")
	require.Equal(t, "https://explorer.example.com/tx/abc123", e.TxURL("abc123"))
}

func TestBlockURLRendersPlaceholder(t *testing.T) {
	e := New("https://explorer.example.com/", "/tx/{tx_hash}", "{block_height}")
	require.Equal(t, "https://explorer.example.com/42", e.BlockURL(42))
}

func TestEmptyTemplateRendersEmptyString(t *testing.T) {
	e := New("https://explorer.example.com", "", "")
	require.Empty(t, e.TxURL("abc123"))
	require.Empty(t, e.BlockURL(42))
}

func TestMissingBaseURLRendersBarePath(t *testing.T) {
	e := New("", "/tx/{tx_hash}", "")
	require.Equal(t, "/tx/abc123", e.TxURL("abc123"))
}
