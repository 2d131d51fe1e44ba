package kaspa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/kasmeter/kasmeter-server/internal/config"
)

// UTXO is a normalized unspent output on the receiver address.
type UTXO struct {
	// Outpoint is "txid:index", the globally unique output identifier.
	Outpoint    string
	AmountSompi int64
}

// Client queries a Kaspa REST API (api.kaspa.org or compatible) for the
// unspent outputs of an address.
type Client struct {
	baseURL string
	client  *http.Client
}

func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client: &http.Client{
			Timeout: config.LedgerFetchTimeout,
		},
	}
}

// FetchUTXOs returns the current UTXO set for address. Entries the API
// reports without a recognizable outpoint or amount are dropped.
func (c *Client) FetchUTXOs(ctx context.Context, address string) ([]UTXO, error) {
	reqURL := fmt.Sprintf("%s/addresses/%s/utxos", c.baseURL, url.PathEscape(address))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch utxos: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("fetch utxos: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	entries, err := decodeEntries(body)
	if err != nil {
		return nil, err
	}

	utxos := make([]UTXO, 0, len(entries))
	for _, entry := range entries {
		outpoint, ok := extractOutpoint(entry)
		if !ok {
			continue
		}
		amount, ok := extractAmountSompi(entry)
		if !ok {
			continue
		}
		utxos = append(utxos, UTXO{Outpoint: outpoint, AmountSompi: amount})
	}

	return utxos, nil
}

// decodeEntries accepts either a bare JSON array of UTXO objects or an object
// wrapping one under "utxos". Field names vary across API versions, so each
// entry is kept loose and normalized by the extract helpers.
func decodeEntries(body []byte) ([]map[string]any, error) {
	var entries []map[string]any
	if err := json.Unmarshal(body, &entries); err == nil {
		return entries, nil
	}

	var wrapper struct {
		Utxos []map[string]any `json:"utxos"`
	}
	if err := json.Unmarshal(body, &wrapper); err == nil && wrapper.Utxos != nil {
		return wrapper.Utxos, nil
	}

	return nil, fmt.Errorf("unrecognized utxo response shape")
}

func extractOutpoint(entry map[string]any) (string, bool) {
	txid, txidOK := firstString(entry, "transactionId", "txId", "txid")
	index, indexOK := firstInt(entry, "index", "outpointIndex", "vout")

	if nested, ok := entry["outpoint"].(map[string]any); ok {
		if !txidOK {
			txid, txidOK = firstString(nested, "transactionId", "txId", "txid")
		}
		if !indexOK {
			index, indexOK = firstInt(nested, "index")
		}
	}

	if !txidOK || !indexOK {
		return "", false
	}
	return fmt.Sprintf("%s:%d", txid, index), true
}

func extractAmountSompi(entry map[string]any) (int64, bool) {
	if amount, ok := intValue(entry["amount"]); ok {
		return amount, true
	}
	if nested, ok := entry["utxoEntry"].(map[string]any); ok {
		if amount, ok := intValue(nested["amount"]); ok {
			return amount, true
		}
	}
	return 0, false
}

func firstString(entry map[string]any, keys ...string) (string, bool) {
	for _, key := range keys {
		if s, ok := entry[key].(string); ok && s != "" {
			return s, true
		}
	}
	return "", false
}

func firstInt(entry map[string]any, keys ...string) (int64, bool) {
	for _, key := range keys {
		if n, ok := intValue(entry[key]); ok {
			return n, true
		}
	}
	return 0, false
}

// intValue handles the two encodings APIs use for sompi amounts and indexes:
// JSON numbers and decimal strings.
func intValue(v any) (int64, bool) {
	switch n := v.(type) {
	case float64:
		return int64(n), true
	case string:
		parsed, err := strconv.ParseInt(n, 10, 64)
		if err != nil {
			return 0, false
		}
		return parsed, true
	}
	return 0, false
}
