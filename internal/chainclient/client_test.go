package chainclient

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := New(srv.URL, 0)
	require.NoError(t, err)
	return client
}

func jsonRPCResult(result string) string {
	return fmt.Sprintf(`{"result":%s}`, result)
}

func TestNetworkIDParsesStatus(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/status", r.URL.Path)
		fmt.Fprint(w, jsonRPCResult(`{"node_info":{"network":"chain-sentry-1"}}`))
	})
	id, err := c.NetworkID(context.Background())
	require.NoError(t, err)
	require.Equal(t, "chain-sentry-1", id)
}

func TestLatestHeightParsesSyncInfo(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, jsonRPCResult(`{"sync_info":{"latest_block_height":"12345"}}`))
	})
	height, err := c.LatestHeight(context.Background())
	require.NoError(t, err)
	require.Equal(t, uint64(12345), height)
}

func TestGetPropagatesRPCError(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"error":{"code":-32000,"message":"boom","data":"details"}}`)
	})
	_, err := c.LatestHeight(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "boom")
}

func TestGetTreatsServerErrorAsTransient(t *testing.T) {
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	_, err := c.LatestHeight(context.Background())
	require.Error(t, err)
}

func TestRawBlockDecodesHeaderAndTxs(t *testing.T) {
	txB64 := base64.StdEncoding.EncodeToString([]byte("raw-tx-bytes"))
	c := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/block", r.URL.Path)
		require.Equal(t, "500", r.URL.Query().Get("height"))
		fmt.Fprintf(w, jsonRPCResult(`{
			"block": {
				"header": {"height": "500", "time": "2026-07-31T00:00:00Z", "proposer_address": "validator-1"},
				"data": {"txs": ["%s"]},
				"evidence": {"evidence": []},
				"last_commit": {"signatures": [{"validator_address": "validator-1", "signature": "sig"}]}
			}
		}`), txB64)
	})

	block, err := c.RawBlock(context.Background(), 500)
	require.NoError(t, err)
	require.Equal(t, uint64(500), block.Height)
	require.Equal(t, "validator-1", block.Proposer)
	require.Len(t, block.TxsBytes, 1)
	require.Equal(t, "raw-tx-bytes", string(block.TxsBytes[0]))
	require.Len(t, block.CommitSigs, 1)
	require.True(t, block.CommitSigs[0].Signed)
}

func TestNewRejectsInvalidURL(t *testing.T) {
	_, err := New("://bad-url", 0)
	require.Error(t, err)
}
