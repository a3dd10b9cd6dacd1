// Package reconcile reports broadcast transactions to the merchant backend
// and interprets the result.
package reconcile

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/types"
)

const defaultTimeout = 30 * time.Second

// Request is the fixed wire contract of the backend reconciliation endpoint.
type Request struct {
	TxReference   string `json:"tx_reference"`
	TxHash        string `json:"tx_hash"`
	SenderAddress string `json:"sender_address"`
}

// envelope is the JSON-RPC style wrapper some backends expect around the
// request and produce around the response.
type envelope struct {
	JSONRPC string  `json:"jsonrpc"`
	Method  string  `json:"method"`
	ID      string  `json:"id"`
	Params  Request `json:"params"`
}

// Service performs the single reconciliation POST per payment attempt.
type Service struct {
	endpoint string
	http     *http.Client
	log      logger.Logger
}

// NewService creates a reconciler for one backend endpoint.
func NewService(endpoint string, timeout time.Duration, log logger.Logger) *Service {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Service{
		endpoint: endpoint,
		http:     &http.Client{Timeout: timeout},
		log:      log.Named("reconcile"),
	}
}

// ReportPayment posts the broadcast transaction id to the merchant backend.
// The call is made once; the orchestrator surfaces failure without retrying,
// because the on-chain transfer is already irreversible at this point and
// compensation is the backend's decision, not the client's.
func (s *Service) ReportPayment(ctx context.Context, txReference, txID, senderAddress string) (*types.ReconcileResult, error) {
	if s.endpoint == "" {
		return nil, types.NewPayError(types.ErrConfigurationError, "no backend endpoint configured", nil)
	}

	body, err := json.Marshal(envelope{
		JSONRPC: "2.0",
		Method:  "call",
		ID:      uuid.NewString(),
		Params: Request{
			TxReference:   txReference,
			TxHash:        txID,
			SenderAddress: senderAddress,
		},
	})
	if err != nil {
		return nil, types.NewPayError(types.ErrReconciliationFailed, err.Error(), nil)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewPayError(types.ErrReconciliationFailed, err.Error(), nil)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.http.Do(req)
	if err != nil {
		return nil, types.NewPayError(types.ErrReconciliationFailed, err.Error(), nil)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, types.NewPayError(types.ErrReconciliationFailed, err.Error(), nil)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, types.NewPayError(types.ErrReconciliationFailed,
			fmt.Sprintf("backend returned status %d", resp.StatusCode), nil)
	}

	result, err := parseResponse(raw)
	if err != nil {
		return nil, types.NewPayError(types.ErrReconciliationFailed, err.Error(), nil)
	}

	if !result.Success {
		msg := result.Message
		if msg == "" {
			msg = "payment processing failed"
		}
		s.log.Warn("backend rejected payment", map[string]any{
			"txReference": txReference,
			"txId":        txID,
			"message":     msg,
		})
		return result, types.NewPayError(types.ErrReconciliationFailed, msg, nil)
	}

	s.log.Info("payment reconciled", map[string]any{"txReference": txReference, "txId": txID})
	return result, nil
}

// parseResponse interprets the {success, message} shape, unwrapping one level
// of "result" envelope when present.
func parseResponse(raw []byte) (*types.ReconcileResult, error) {
	var wrapped struct {
		Result json.RawMessage `json:"result"`
	}
	payload := raw
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Result) > 0 {
		payload = wrapped.Result
	}

	var result types.ReconcileResult
	if err := json.Unmarshal(payload, &result); err != nil {
		return nil, fmt.Errorf("malformed backend response: %w", err)
	}
	return &result, nil
}
