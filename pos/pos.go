// Package pos serves point-of-sale payments: it renders a scannable payment
// request and verifies the resulting on-chain transfer.
package pos

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	"github.com/shopspring/decimal"

	"github.com/vitwit/algopay/clients"
	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
)

// AmountTolerance is the accepted shortfall or overshoot in base units when
// matching a received payment against the requested amount. Wallets round
// display amounts independently, so an exact match is too strict.
const AmountTolerance uint64 = 100

// Request describes one POS payment to collect.
type Request struct {
	Receiver string          `json:"receiver" validate:"required,len=58"`
	Amount   decimal.Decimal `json:"amount"`
	AssetID  uint64          `json:"assetId,omitempty"`
	Decimals uint32          `json:"decimals,omitempty"`
	Label    string          `json:"label,omitempty"`
	Note     string          `json:"note,omitempty"`
}

// baseUnits converts the request amount using the asset's precision, or the
// native exponent when no asset is set.
func (r *Request) baseUnits() (uint64, error) {
	if r.AssetID != 0 {
		return txnbuild.AssetBaseUnits(r.Amount, r.Decimals)
	}
	return txnbuild.AlgosToMicroAlgos(r.Amount)
}

// PaymentURI renders the request as an algorand:// URI understood by mobile
// wallets. Amounts are expressed in base units.
func PaymentURI(r *Request) (string, error) {
	if !txnbuild.IsValidAddress(r.Receiver) {
		return "", types.NewPayError(types.ErrInvalidAddress, "receiver is not a valid address", nil)
	}
	units, err := r.baseUnits()
	if err != nil {
		return "", types.NewPayError(types.ErrTransactionBuild, err.Error(), nil)
	}

	q := url.Values{}
	q.Set("receiver", r.Receiver)
	q.Set("amount", strconv.FormatUint(units, 10))
	if r.AssetID != 0 {
		q.Set("asset", strconv.FormatUint(r.AssetID, 10))
	}
	if r.Label != "" {
		q.Set("label", r.Label)
	}
	if r.Note != "" {
		q.Set("note", r.Note)
	}
	return "algorand://pay?" + q.Encode(), nil
}

// Status of a looked-up transaction.
const (
	StatusConfirmed = "confirmed"
	StatusPending   = "pending"
	StatusNotFound  = "not_found"
)

// VerifyResult is the outcome of matching a transaction against a request.
type VerifyResult struct {
	Verified       bool   `json:"verified"`
	Status         string `json:"status"`
	Sender         string `json:"sender,omitempty"`
	ConfirmedRound uint64 `json:"confirmedRound,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Service answers POS verification queries against the node.
type Service struct {
	node clients.NodeClient
	log  logger.Logger
}

// NewService creates a POS service.
func NewService(node clients.NodeClient, log logger.Logger) *Service {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Service{node: node, log: log.Named("pos")}
}

// CheckTransaction reports whether a transaction is confirmed, still pending,
// or unknown to the node.
func (s *Service) CheckTransaction(ctx context.Context, txID string) (string, uint64, error) {
	pending, err := s.node.PendingTransaction(ctx, txID)
	if err != nil {
		if clients.IsNotFound(err) {
			return StatusNotFound, 0, nil
		}
		return "", 0, err
	}
	if pending.Confirmed() {
		return StatusConfirmed, pending.ConfirmedRound, nil
	}
	return StatusPending, 0, nil
}

// VerifyPayment matches a confirmed transaction against the request: the
// receiver must be the requested account, the asset must match, and the
// amount must land within AmountTolerance of the requested base units.
func (s *Service) VerifyPayment(ctx context.Context, txID string, r *Request) (*VerifyResult, error) {
	expected, err := r.baseUnits()
	if err != nil {
		return nil, types.NewPayError(types.ErrTransactionBuild, err.Error(), nil)
	}

	pending, err := s.node.PendingTransaction(ctx, txID)
	if err != nil {
		if clients.IsNotFound(err) {
			return &VerifyResult{Status: StatusNotFound, Reason: "transaction not found"}, nil
		}
		return nil, err
	}
	if !pending.Confirmed() {
		return &VerifyResult{Status: StatusPending, Reason: "transaction not yet confirmed"}, nil
	}

	result := &VerifyResult{
		Status:         StatusConfirmed,
		Sender:         pending.Sender,
		ConfirmedRound: pending.ConfirmedRound,
	}
	if pending.Receiver != r.Receiver {
		result.Reason = "receiver mismatch"
		return result, nil
	}
	if pending.AssetID != r.AssetID {
		result.Reason = "asset mismatch"
		return result, nil
	}
	if !withinTolerance(pending.Amount, expected, AmountTolerance) {
		result.Reason = fmt.Sprintf("amount mismatch: got %d, want %d", pending.Amount, expected)
		return result, nil
	}

	result.Verified = true
	s.log.Info("pos payment verified", map[string]any{
		"txId":   txID,
		"sender": pending.Sender,
		"round":  pending.ConfirmedRound,
	})
	return result, nil
}

func withinTolerance(got, want, tolerance uint64) bool {
	if got >= want {
		return got-want <= tolerance
	}
	return want-got <= tolerance
}
