package clients

import (
	"errors"

	"github.com/vitwit/algopay/types"
)

var errNotFound = errors.New("not found")

const (
	// -----------------------------
	// PARAMETER FETCH
	// -----------------------------
	ErrParamsFetch      = "params_fetch_failed"
	ErrParamsMalformed  = "params_malformed"
	ErrRoundWindowStale = "round_window_stale"

	// -----------------------------
	// ACCOUNT QUERIES
	// -----------------------------
	ErrAccountFetch     = "account_fetch_failed"
	ErrAccountMalformed = "account_malformed"

	// -----------------------------
	// SUBMISSION
	// -----------------------------
	ErrSubmitRejected   = "submit_rejected"
	ErrSubmitOverspend  = "submit_overspend"
	ErrSubmitNoTxID     = "submit_missing_txid"
	ErrAlreadySubmitted = "already_submitted"

	// -----------------------------
	// STATUS / POLLING
	// -----------------------------
	ErrPendingFetch = "pending_fetch_failed"
	ErrTxnNotFound  = "txn_not_found"
	ErrStatusFetch  = "status_fetch_failed"
)

// IsNotFound reports whether err is a pending-transaction lookup for a
// transaction the node does not know.
func IsNotFound(err error) bool {
	var pe *types.PayError
	if !errors.As(err, &pe) {
		return false
	}
	code, _ := pe.Details["code"].(string)
	return code == ErrTxnNotFound
}
