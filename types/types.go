package types

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentIntent is the immutable snapshot of the values a payment attempt is
// made from. It is read once from the hosting application's form or POS order
// and never mutated afterwards.
type PaymentIntent struct {
	// Amount in display units (Algos or whole asset units, e.g. "2.5").
	Amount decimal.Decimal `json:"amount"`

	// CurrencyDisplayName is the label shown to the user ("ALGO", "USDC").
	CurrencyDisplayName string `json:"currencyDisplayName" validate:"required"`

	// IsAssetTransfer selects an ASA transfer instead of a native payment.
	IsAssetTransfer bool `json:"isAssetTransfer"`

	// AssetID is the ASA id; required when IsAssetTransfer is set.
	AssetID uint64 `json:"assetId,omitempty" validate:"required_if=IsAssetTransfer true"`

	// AssetDecimals is the ASA's fractional precision.
	AssetDecimals uint32 `json:"assetDecimals,omitempty"`

	// MerchantAddress receives the payment.
	MerchantAddress string `json:"merchantAddress" validate:"required,len=58"`

	// Network the attempt targets.
	Network Network `json:"network" validate:"required,oneof=mainnet testnet"`

	// NodeURL is the algod endpoint used for this attempt.
	NodeURL string `json:"nodeUrl" validate:"required,url"`

	// BackendTxReference identifies the merchant-backend transaction record
	// this payment reconciles against.
	BackendTxReference string `json:"backendTxReference,omitempty"`
}

// NetworkParameters is the canonical form of the chain parameters needed to
// build a valid transaction. Fetched fresh per attempt; validity windows
// expire, so instances are never reused.
type NetworkParameters struct {
	Fee         uint64 `json:"fee"`
	MinFee      uint64 `json:"minFee"`
	FirstValid  uint64 `json:"firstValid"`
	LastValid   uint64 `json:"lastValid"`
	GenesisID   string `json:"genesisId"`
	GenesisHash []byte `json:"genesisHash"`
}

// Validate enforces the round-window invariant at the fetch boundary.
func (p *NetworkParameters) Validate() error {
	if p.FirstValid > p.LastValid {
		return fmt.Errorf("invalid round window: firstValid %d > lastValid %d", p.FirstValid, p.LastValid)
	}
	if p.GenesisID == "" || len(p.GenesisHash) == 0 {
		return errors.New("missing genesis identifiers")
	}
	return nil
}

// AssetOptInState reports which parties hold the asset. Recomputed after
// every wallet connect and after an opt-in submission; never persisted.
type AssetOptInState struct {
	SenderOptedIn   bool `json:"senderOptedIn"`
	MerchantOptedIn bool `json:"merchantOptedIn"`
}

func (s AssetOptInState) Ready() bool { return s.SenderOptedIn && s.MerchantOptedIn }

// AccountAsset is one held-asset entry from account information.
type AccountAsset struct {
	AssetID uint64 `json:"asset-id"`
	Amount  uint64 `json:"amount"`
	Frozen  bool   `json:"is-frozen,omitempty"`
}

// PendingTransaction is the normalized pending-transaction status.
type PendingTransaction struct {
	ConfirmedRound uint64 `json:"confirmedRound"`
	PoolError      string `json:"poolError"`
	Sender         string `json:"sender,omitempty"`
	Receiver       string `json:"receiver,omitempty"`
	Amount         uint64 `json:"amount,omitempty"`
	AssetID        uint64 `json:"assetId,omitempty"`
}

// Confirmed reports whether the transaction has been included in a block.
func (p *PendingTransaction) Confirmed() bool { return p.ConfirmedRound > 0 }

// ReconcileResult is the interpreted merchant-backend response.
type ReconcileResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	TxID    string `json:"txId,omitempty"`
}

// ClientConfig configures the algod client and backend reconciler.
type ClientConfig struct {
	NodeURL    string            `json:"nodeUrl" validate:"required,url"`
	APIToken   string            `json:"apiToken,omitempty"`
	BackendURL string            `json:"backendUrl,omitempty" validate:"omitempty,url"`
	Timeout    time.Duration     `json:"timeout,omitempty"`
	Headers    map[string]string `json:"headers,omitempty"`
}

// PayError is the library-wide error type. Code is one of the Err* constants
// below; Details carries structured context such as which party is missing an
// asset opt-in.
type PayError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

func (e *PayError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewPayError creates a PayError with optional details.
func NewPayError(code, message string, details map[string]interface{}) *PayError {
	return &PayError{Code: code, Message: message, Details: details}
}

// CodeOf extracts the PayError code from err, or empty if err is not a PayError.
func CodeOf(err error) string {
	var pe *PayError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}

// Error codes.
const (
	ErrWalletConnectionFailed = "wallet_connection_failed"
	ErrConfigurationError     = "configuration_error"
	ErrInvalidAddress         = "invalid_address"
	ErrAssetNotOptedIn        = "asset_not_opted_in"
	ErrExternalLoadTimeout    = "external_load_timeout"
	ErrTransactionBuild       = "transaction_build_error"
	ErrSigningRejected        = "signing_rejected"
	ErrBroadcast              = "broadcast_error"
	ErrReconciliationFailed   = "reconciliation_failed"
	ErrAttemptInProgress      = "attempt_in_progress"
	ErrNetwork                = "network_error"
)

// Detail keys used with the codes above.
const (
	DetailWho               = "who"
	DetailInsufficientFunds = "insufficient_funds"

	PartySender   = "sender"
	PartyMerchant = "merchant"
)
