// Package explorer renders block and transaction permalinks from the
// operator-configured block-explorer URL templates (§6), the same small
// templating job the original monitor's BlockExplorer collaborator does
// for every alert sink.
package explorer

import (
	"strconv"
	"strings"
)

// Explorer renders canonical links for blocks and transactions. A zero
// value renders empty strings, which sinks treat as "no link available".
type Explorer struct {
	baseURL       string
	txTemplate    string
	blockTemplate string
}

// txPlaceholder and blockPlaceholder are the template tokens §6 names
// explicitly ("templates containing {tx_hash} and {block_height}").
const (
	txPlaceholder    = "{tx_hash}"
	blockPlaceholder = "{block_height}"
)

// New builds an Explorer from the configured base URL and per-kind
// templates.
func New(baseURL, txTemplate, blockTemplate string) *Explorer {
	return &Explorer{baseURL: baseURL, txTemplate: txTemplate, blockTemplate: blockTemplate}
}

// TxURL renders the permalink for a transaction id, or "" if unconfigured.
func (e *Explorer) TxURL(txID string) string {
	return e.render(e.txTemplate, txPlaceholder, txID)
}

// BlockURL renders the permalink for a block height, or "" if unconfigured.
func (e *Explorer) BlockURL(height uint64) string {
	return e.render(e.blockTemplate, blockPlaceholder, strconv.FormatUint(height, 10))
}

func (e *Explorer) render(template, placeholder, value string) string {
	if template == "" {
		return ""
	}
	path := strings.ReplaceAll(template, placeholder, value)
	if e.baseURL == "" {
		return path
	}
	return strings.TrimRight(e.baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}
