package clients

import (
	"context"

	"github.com/vitwit/algopay/types"
)

// NodeClient is the surface of the algod node the payment flow depends on.
// AlgodClient is the production implementation; tests substitute stubs.
type NodeClient interface {
	// SuggestedParams fetches fresh network parameters, normalized into the
	// canonical struct. Callers must not cache the result across attempts.
	SuggestedParams(ctx context.Context) (*types.NetworkParameters, error)

	// AccountAssets returns the asset holdings of an account.
	AccountAssets(ctx context.Context, address string) ([]types.AccountAsset, error)

	// SendRawTransaction submits signed transaction bytes and returns the
	// transaction id. Submission happens exactly once; callers own retry policy.
	SendRawTransaction(ctx context.Context, signed []byte) (string, error)

	// PendingTransaction fetches pending/confirmed status for a transaction.
	PendingTransaction(ctx context.Context, txID string) (*types.PendingTransaction, error)

	// LastRound returns the node's current round.
	LastRound(ctx context.Context) (uint64, error)

	// WaitForBlockAfter blocks until the node has seen the given round.
	WaitForBlockAfter(ctx context.Context, round uint64) error

	Close()
}
