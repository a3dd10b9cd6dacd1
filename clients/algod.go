package clients

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/types"
)

const (
	defaultTimeout = 30 * time.Second

	apiTokenHeader = "X-Algo-API-Token"
)

// AlgodClient talks to an algod node over its REST v2 API. Response field
// names vary across node and proxy versions ("first-round" vs "firstValid");
// all normalization into canonical structs happens here and nowhere deeper.
type AlgodClient struct {
	nodeURL string
	token   string
	headers map[string]string
	http    *http.Client
	log     logger.Logger
}

var _ NodeClient = (*AlgodClient)(nil)

// NewAlgodClient creates a node client from config. The node URL is the only
// required field; public nodes take an empty token.
func NewAlgodClient(cfg types.ClientConfig, log logger.Logger) (*AlgodClient, error) {
	if cfg.NodeURL == "" {
		return nil, types.NewPayError(types.ErrConfigurationError, "node URL is required", nil)
	}
	if _, err := url.Parse(cfg.NodeURL); err != nil {
		return nil, types.NewPayError(types.ErrConfigurationError, fmt.Sprintf("invalid node URL: %v", err), nil)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}

	return &AlgodClient{
		nodeURL: strings.TrimRight(cfg.NodeURL, "/"),
		token:   cfg.APIToken,
		headers: cfg.Headers,
		http:    &http.Client{Timeout: timeout},
		log:     log.Named("algod"),
	}, nil
}

// rawParams accepts every field-name variant seen across algod versions and
// SDK proxies. Zero values mean "absent".
type rawParams struct {
	Fee          uint64 `json:"fee"`
	MinFeeDash   uint64 `json:"min-fee"`
	MinFeeCamel  uint64 `json:"minFee"`
	FirstValid   uint64 `json:"firstValid"`
	FirstDash    uint64 `json:"first-round"`
	FirstCamel   uint64 `json:"firstRound"`
	LastValid    uint64 `json:"lastValid"`
	LastDash     uint64 `json:"last-round"`
	LastCamel    uint64 `json:"lastRound"`
	GenesisID    string `json:"genesisID"`
	GenesisDash  string `json:"genesis-id"`
	GenesisHash  string `json:"genesisHash"`
	GenesisHashD string `json:"genesis-hash"`
}

// SuggestedParams fetches transaction parameters and normalizes them. The fee
// is clamped to the protocol minimum; the validity window is derived from the
// current round when the node reports only "last-round".
func (c *AlgodClient) SuggestedParams(ctx context.Context) (*types.NetworkParameters, error) {
	var raw rawParams
	if err := c.get(ctx, "/v2/transactions/params", &raw); err != nil {
		return nil, wrapNetworkErr(ErrParamsFetch, err)
	}

	first := coalesce(raw.FirstValid, raw.FirstDash, raw.FirstCamel)
	last := coalesce(raw.LastValid, raw.LastDash, raw.LastCamel)
	if first == 0 && last > 0 {
		// Node reported only the current round; open the standard 1000-round
		// window from there.
		first = last
		last = first + 1000
	}

	fee := coalesce(raw.MinFeeDash, raw.MinFeeCamel, raw.Fee)
	if fee < types.MinTxnFee {
		fee = types.MinTxnFee
	}

	genesisID := raw.GenesisID
	if genesisID == "" {
		genesisID = raw.GenesisDash
	}
	hashStr := raw.GenesisHash
	if hashStr == "" {
		hashStr = raw.GenesisHashD
	}
	genesisHash, err := base64.StdEncoding.DecodeString(hashStr)
	if err != nil || len(genesisHash) == 0 {
		return nil, types.NewPayError(types.ErrNetwork, "malformed genesis hash in params response",
			map[string]interface{}{"code": ErrParamsMalformed})
	}

	params := &types.NetworkParameters{
		Fee:         fee,
		MinFee:      fee,
		FirstValid:  first,
		LastValid:   last,
		GenesisID:   genesisID,
		GenesisHash: genesisHash,
	}
	if err := params.Validate(); err != nil {
		return nil, types.NewPayError(types.ErrNetwork, err.Error(),
			map[string]interface{}{"code": ErrParamsMalformed})
	}

	c.log.Debug("fetched suggested params", map[string]any{
		"firstValid": params.FirstValid,
		"lastValid":  params.LastValid,
		"fee":        params.Fee,
		"genesisId":  params.GenesisID,
	})
	return params, nil
}

// AccountAssets returns the held-asset set of an account. Asset ids are
// normalized to integers regardless of the source field naming.
func (c *AlgodClient) AccountAssets(ctx context.Context, address string) ([]types.AccountAsset, error) {
	var raw struct {
		Assets []map[string]json.Number `json:"assets"`
	}
	if err := c.get(ctx, "/v2/accounts/"+url.PathEscape(address), &raw); err != nil {
		return nil, wrapNetworkErr(ErrAccountFetch, err)
	}

	assets := make([]types.AccountAsset, 0, len(raw.Assets))
	for _, entry := range raw.Assets {
		id := numberField(entry, "asset-id", "assetId", "asset_id")
		if id == 0 {
			continue
		}
		assets = append(assets, types.AccountAsset{
			AssetID: id,
			Amount:  numberField(entry, "amount"),
		})
	}
	return assets, nil
}

// SendRawTransaction submits signed transaction bytes. Overspend rejections
// are surfaced as a distinguished broadcast error so the UI can show the
// node's own message verbatim.
func (c *AlgodClient) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.nodeURL+"/v2/transactions", bytes.NewReader(signed))
	if err != nil {
		return "", wrapNetworkErr(ErrSubmitRejected, err)
	}
	req.Header.Set("Content-Type", "application/x-binary")
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", wrapNetworkErr(ErrSubmitRejected, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	if resp.StatusCode != http.StatusOK {
		msg := nodeErrorMessage(body)
		insufficient := strings.Contains(strings.ToLower(msg), "overspend")
		return "", types.NewPayError(types.ErrBroadcast, msg, map[string]interface{}{
			types.DetailInsufficientFunds: insufficient,
			"status":                      resp.StatusCode,
		})
	}

	var result struct {
		TxIDCamel string `json:"txId"`
		TxIDLower string `json:"txid"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return "", types.NewPayError(types.ErrBroadcast, "malformed submit response",
			map[string]interface{}{"code": ErrSubmitNoTxID})
	}
	txID := result.TxIDCamel
	if txID == "" {
		txID = result.TxIDLower
	}
	if txID == "" {
		return "", types.NewPayError(types.ErrBroadcast, "node returned no transaction id",
			map[string]interface{}{"code": ErrSubmitNoTxID})
	}

	c.log.Info("transaction broadcast", map[string]any{"txId": txID})
	return txID, nil
}

// PendingTransaction fetches pending status. Payment fields are pulled out of
// the nested txn envelope so callers never see the chain's short field names.
func (c *AlgodClient) PendingTransaction(ctx context.Context, txID string) (*types.PendingTransaction, error) {
	var raw struct {
		ConfirmedRound uint64 `json:"confirmed-round"`
		PoolError      string `json:"pool-error"`
		Txn            struct {
			Txn struct {
				Sender        string `json:"snd"`
				Receiver      string `json:"rcv"`
				AssetReceiver string `json:"arcv"`
				Amount        uint64 `json:"amt"`
				AssetAmount   uint64 `json:"aamt"`
				AssetID       uint64 `json:"xaid"`
			} `json:"txn"`
		} `json:"txn"`
	}
	if err := c.get(ctx, "/v2/transactions/pending/"+url.PathEscape(txID), &raw); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, types.NewPayError(types.ErrNetwork, err.Error(),
				map[string]interface{}{"code": ErrTxnNotFound})
		}
		return nil, wrapNetworkErr(ErrPendingFetch, err)
	}

	pending := &types.PendingTransaction{
		ConfirmedRound: raw.ConfirmedRound,
		PoolError:      raw.PoolError,
		Sender:         raw.Txn.Txn.Sender,
		Receiver:       raw.Txn.Txn.Receiver,
		Amount:         raw.Txn.Txn.Amount,
		AssetID:        raw.Txn.Txn.AssetID,
	}
	if raw.Txn.Txn.AssetID != 0 {
		pending.Receiver = raw.Txn.Txn.AssetReceiver
		pending.Amount = raw.Txn.Txn.AssetAmount
	}
	return pending, nil
}

// LastRound returns the node's current round.
func (c *AlgodClient) LastRound(ctx context.Context) (uint64, error) {
	var raw struct {
		LastRound uint64 `json:"last-round"`
		LastCamel uint64 `json:"lastRound"`
	}
	if err := c.get(ctx, "/v2/status", &raw); err != nil {
		return 0, wrapNetworkErr(ErrStatusFetch, err)
	}
	return coalesce(raw.LastRound, raw.LastCamel), nil
}

// WaitForBlockAfter blocks until the node reports a round past the given one.
func (c *AlgodClient) WaitForBlockAfter(ctx context.Context, round uint64) error {
	var raw struct {
		LastRound uint64 `json:"last-round"`
	}
	path := fmt.Sprintf("/v2/status/wait-for-block-after/%d", round)
	if err := c.get(ctx, path, &raw); err != nil {
		return wrapNetworkErr(ErrStatusFetch, err)
	}
	return nil
}

func (c *AlgodClient) Close() {
	c.http.CloseIdleConnections()
}

func (c *AlgodClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.nodeURL+path, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("node returned 404: %s: %w", nodeErrorMessage(body), errNotFound)
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("node returned %d: %s", resp.StatusCode, nodeErrorMessage(body))
	}
	return json.Unmarshal(body, out)
}

func (c *AlgodClient) setHeaders(req *http.Request) {
	if c.token != "" {
		req.Header.Set(apiTokenHeader, c.token)
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
}

func nodeErrorMessage(body []byte) string {
	var e struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &e); err == nil && e.Message != "" {
		return e.Message
	}
	return strings.TrimSpace(string(body))
}

func wrapNetworkErr(code string, err error) error {
	return types.NewPayError(types.ErrNetwork, err.Error(), map[string]interface{}{"code": code})
}

func coalesce(vals ...uint64) uint64 {
	for _, v := range vals {
		if v != 0 {
			return v
		}
	}
	return 0
}

func numberField(m map[string]json.Number, keys ...string) uint64 {
	for _, k := range keys {
		if n, ok := m[k]; ok {
			if v, err := n.Int64(); err == nil && v >= 0 {
				return uint64(v)
			}
		}
	}
	return 0
}
