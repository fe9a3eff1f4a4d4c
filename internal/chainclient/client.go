// Package chainclient implements rpcpool.Endpoint against a single
// CometBFT/Tendermint-compatible RPC node (§6, "Upstream RPC"). The wire
// dialect (URI-style GET endpoints returning a JSON-RPC envelope) is
// standard CometBFT; no third-party client library in this module's
// dependency surface speaks that dialect, so the HTTP plumbing is plain
// net/http + encoding/json (see DESIGN.md).
package chainclient

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/log"

	"github.com/chain-sentry/monitor/internal/rpcpool"
)

// Client is a single upstream endpoint. It implements rpcpool.Endpoint.
type Client struct {
	baseURL string
	http    *http.Client
}

// New dials nothing (CometBFT RPC is stateless HTTP) but validates the URL
// and wraps it with a timeout-bound http.Client (§5, "Timeouts").
func New(rawURL string, timeout time.Duration) (*Client, error) {
	if _, err := url.Parse(rawURL); err != nil {
		return nil, fmt.Errorf("chainclient: invalid endpoint %q: %w", rawURL, err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: rawURL,
		http:    &http.Client{Timeout: timeout},
	}, nil
}

var _ rpcpool.Endpoint = (*Client)(nil)

func (c *Client) URL() string { return c.baseURL }

// envelope is CometBFT's {jsonrpc, id, result, error} response shape.
type envelope struct {
	Result json.RawMessage `json:"result"`
	Error  *rpcError       `json:"error"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    string `json:"data"`
}

func (e *rpcError) Error() string {
	return fmt.Sprintf("rpc error %d: %s: %s", e.Code, e.Message, e.Data)
}

// get issues a CometBFT-style URI GET request (method as path, params as
// query string) and decodes the result into out.
func (c *Client) get(ctx context.Context, method string, query url.Values, out any) error {
	u := c.baseURL + "/" + method
	if len(query) > 0 {
		u += "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("chainclient: %s: %w", method, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("chainclient: %s: upstream %s returned %d", method, c.baseURL, resp.StatusCode)
	}
	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("chainclient: %s: decode envelope: %w", method, err)
	}
	if env.Error != nil {
		return fmt.Errorf("chainclient: %s: %w", method, env.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(env.Result, out); err != nil {
		return fmt.Errorf("chainclient: %s: decode result: %w", method, err)
	}
	return nil
}

func heightParam(height uint64) url.Values {
	if height == 0 {
		return nil
	}
	v := url.Values{}
	v.Set("height", strconv.FormatUint(height, 10))
	return v
}

func (c *Client) NetworkID(ctx context.Context) (string, error) {
	var status struct {
		NodeInfo struct {
			Network string `json:"network"`
		} `json:"node_info"`
	}
	if err := c.get(ctx, "status", nil, &status); err != nil {
		return "", err
	}
	return status.NodeInfo.Network, nil
}

func (c *Client) LatestHeight(ctx context.Context) (uint64, error) {
	var status struct {
		SyncInfo struct {
			LatestBlockHeight string `json:"latest_block_height"`
		} `json:"sync_info"`
	}
	if err := c.get(ctx, "status", nil, &status); err != nil {
		return 0, err
	}
	return strconv.ParseUint(status.SyncInfo.LatestBlockHeight, 10, 64)
}

func (c *Client) EpochAtHeight(ctx context.Context, height uint64) (uint64, error) {
	var out struct {
		Epoch uint64 `json:"epoch"`
	}
	if err := c.get(ctx, "epoch", heightParam(height), &out); err != nil {
		return 0, err
	}
	return out.Epoch, nil
}

type blockResponse struct {
	Block struct {
		Header struct {
			Height          string `json:"height"`
			Time            string `json:"time"`
			ProposerAddress string `json:"proposer_address"`
		} `json:"header"`
		Data struct {
			Txs []string `json:"txs"` // base64
		} `json:"data"`
		Evidence struct {
			Evidence []struct {
				Kind      string `json:"kind"`
				Validator string `json:"validator"`
				Height    string `json:"height"`
			} `json:"evidence"`
		} `json:"evidence"`
		LastCommit struct {
			Signatures []struct {
				ValidatorAddress string `json:"validator_address"`
				Signature        string `json:"signature"`
			} `json:"signatures"`
		} `json:"last_commit"`
	} `json:"block"`
}

func (c *Client) RawBlock(ctx context.Context, height uint64) (rpcpool.RawBlock, error) {
	var resp blockResponse
	if err := c.get(ctx, "block", heightParam(height), &resp); err != nil {
		return rpcpool.RawBlock{}, err
	}

	h, err := strconv.ParseUint(resp.Block.Header.Height, 10, 64)
	if err != nil {
		return rpcpool.RawBlock{}, fmt.Errorf("chainclient: bad block height: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, resp.Block.Header.Time)
	if err != nil {
		return rpcpool.RawBlock{}, fmt.Errorf("chainclient: bad block time: %w", err)
	}

	txs := make([][]byte, 0, len(resp.Block.Data.Txs))
	for _, encoded := range resp.Block.Data.Txs {
		raw, err := decodeBase64(encoded)
		if err != nil {
			log.Warn("Dropping undecodable tx bytestring", "height", h, "err", err)
			continue
		}
		txs = append(txs, raw)
	}

	evidence := make([]rpcpool.RawEvidence, 0, len(resp.Block.Evidence.Evidence))
	for _, e := range resp.Block.Evidence.Evidence {
		eh, _ := strconv.ParseUint(e.Height, 10, 64)
		evidence = append(evidence, rpcpool.RawEvidence{Kind: e.Kind, Validator: e.Validator, Height: eh})
	}

	sigs := make([]rpcpool.RawCommitSig, 0, len(resp.Block.LastCommit.Signatures))
	for _, s := range resp.Block.LastCommit.Signatures {
		sigs = append(sigs, rpcpool.RawCommitSig{ValidatorAddress: s.ValidatorAddress, Signed: s.Signature != ""})
	}

	return rpcpool.RawBlock{
		Height:     h,
		Timestamp:  ts.Unix(),
		Proposer:   resp.Block.Header.ProposerAddress,
		TxsBytes:   txs,
		Evidence:   evidence,
		CommitSigs: sigs,
	}, nil
}

type blockResultsResponse struct {
	TxsResults []struct {
		Events []rawEvent `json:"events"`
	} `json:"txs_results"`
	FinalizeBlockEvents []rawEvent `json:"finalize_block_events"`
}

type rawEvent struct {
	Type       string `json:"type"`
	Attributes []struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	} `json:"attributes"`
}

func (c *Client) RawBlockResults(ctx context.Context, height uint64) (rpcpool.RawBlockResults, error) {
	var resp blockResultsResponse
	if err := c.get(ctx, "block_results", heightParam(height), &resp); err != nil {
		return rpcpool.RawBlockResults{}, err
	}

	var events []rpcpool.RawEvent
	appendEvents := func(raws []rawEvent) {
		for _, re := range raws {
			attrs := make(map[string]string, len(re.Attributes))
			for _, a := range re.Attributes {
				attrs[a.Key] = a.Value
			}
			events = append(events, rpcpool.RawEvent{Type: re.Type, Attributes: attrs})
		}
	}
	for _, txResult := range resp.TxsResults {
		appendEvents(txResult.Events)
	}
	appendEvents(resp.FinalizeBlockEvents)

	return rpcpool.RawBlockResults{Events: events}, nil
}

// CodeHashTable resolves the WASM code hash -> code-name table with a
// single abci_query for the path "wasm/all_hashes", whose value is a
// base64-encoded JSON object mapping code path to hex hash. It does not
// query the per-code-path "wasm/hash/{code_path}" storage keys. The table
// is keyed by whatever the query returns, and unresolved hashes simply
// never appear in the map (the decoder then reports "unknown", §4.2).
func (c *Client) CodeHashTable(ctx context.Context, height uint64) (map[string]string, error) {
	var resp struct {
		Response struct {
			Value string `json:"value"` // base64-encoded JSON {code_path: hex_hash}
		} `json:"response"`
	}
	q := url.Values{}
	q.Set("path", `"wasm/all_hashes"`)
	if height != 0 {
		q.Set("height", strconv.FormatUint(height, 10))
	}
	if err := c.get(ctx, "abci_query", q, &resp); err != nil {
		return nil, err
	}
	raw, err := decodeBase64(resp.Response.Value)
	if err != nil {
		return nil, fmt.Errorf("chainclient: code hash table: %w", err)
	}
	var byPath map[string]string
	if err := json.Unmarshal(raw, &byPath); err != nil {
		return nil, fmt.Errorf("chainclient: code hash table: %w", err)
	}
	// invert to hash -> path so the decoder can look code names up by hash.
	byHash := make(map[string]string, len(byPath))
	for path, hash := range byPath {
		byHash[hash] = path
	}
	return byHash, nil
}

func (c *Client) ValidatorSet(ctx context.Context, epoch uint64) (rpcpool.RawValidatorSet, error) {
	var resp struct {
		Validators []struct {
			Address     string `json:"address"`
			VotingPower string `json:"voting_power"`
			State       string `json:"state"`
		} `json:"validators"`
	}
	q := url.Values{}
	q.Set("epoch", strconv.FormatUint(epoch, 10))
	if err := c.get(ctx, "validator_set", q, &resp); err != nil {
		return rpcpool.RawValidatorSet{}, err
	}
	out := rpcpool.RawValidatorSet{Validators: make([]rpcpool.RawValidator, 0, len(resp.Validators))}
	for _, v := range resp.Validators {
		out.Validators = append(out.Validators, rpcpool.RawValidator{
			Address:     v.Address,
			VotingPower: v.VotingPower,
			State:       v.State,
		})
	}
	return out, nil
}

func (c *Client) NativeToken(ctx context.Context) (string, error) {
	var out struct {
		Address string `json:"address"`
	}
	if err := c.get(ctx, "native_token", nil, &out); err != nil {
		return "", err
	}
	return out.Address, nil
}

func (c *Client) TokenSupply(ctx context.Context, token string, height uint64) (rpcpool.RawSupply, error) {
	var out struct {
		Total     string `json:"total"`
		Effective string `json:"effective"`
	}
	q := heightParam(height)
	if q == nil {
		q = url.Values{}
	}
	q.Set("token", token)
	if err := c.get(ctx, "token_supply", q, &out); err != nil {
		return rpcpool.RawSupply{}, err
	}
	effective := out.Effective
	if effective == "" {
		effective = out.Total
	}
	return rpcpool.RawSupply{Token: token, Total: out.Total, Effective: effective}, nil
}

func (c *Client) FutureBondsAndUnbonds(ctx context.Context, epoch uint64) (string, string, error) {
	var out struct {
		Bonds   string `json:"bonds"`
		Unbonds string `json:"unbonds"`
	}
	q := url.Values{}
	q.Set("epoch", strconv.FormatUint(epoch, 10))
	if err := c.get(ctx, "bonds_and_unbonds", q, &out); err != nil {
		return "", "", err
	}
	return out.Bonds, out.Unbonds, nil
}

func (c *Client) IBCMintLimit(ctx context.Context, token string) (string, error) {
	var out struct {
		Limit string `json:"limit"`
	}
	q := url.Values{}
	q.Set("token", token)
	if err := c.get(ctx, "ibc_mint_limit", q, &out); err != nil {
		return "", err
	}
	return out.Limit, nil
}

func (c *Client) IBCClientState(ctx context.Context, clientID string) (rpcpool.RawIBCClientState, error) {
	var out struct {
		CounterpartyConsensusTime int64 `json:"counterparty_consensus_time"`
		TrustingPeriodSeconds     int64 `json:"trusting_period_seconds"`
	}
	q := url.Values{}
	q.Set("client_id", clientID)
	if err := c.get(ctx, "ibc_client_state", q, &out); err != nil {
		return rpcpool.RawIBCClientState{}, err
	}
	return rpcpool.RawIBCClientState{
		ClientID:                  clientID,
		CounterpartyConsensusTime: out.CounterpartyConsensusTime,
		TrustingPeriodSeconds:     out.TrustingPeriodSeconds,
	}, nil
}

func (c *Client) MaxBlockTimeEstimate(ctx context.Context) (int64, error) {
	var out struct {
		Seconds int64 `json:"seconds"`
	}
	if err := c.get(ctx, "max_block_time_estimate", nil, &out); err != nil {
		return 0, err
	}
	return out.Seconds, nil
}
