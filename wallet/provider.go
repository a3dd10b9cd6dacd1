package wallet

import (
	"context"

	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
)

// SignItem wraps one transaction the way the wallet signing protocol expects.
type SignItem struct {
	Txn *txnbuild.Transaction `json:"txn"`
}

// SignGroup is the two-level group shape of the wallet protocol: an array of
// transaction groups, each an array of wrapped transactions. A single payment
// is still a one-element group.
type SignGroup [][]SignItem

// SingleGroup wraps one transaction as a one-element signing group.
func SingleGroup(txn *txnbuild.Transaction) SignGroup {
	return SignGroup{{{Txn: txn}}}
}

// Provider is the wallet-connection protocol boundary. Implementations bridge
// to an actual wallet (browser extension relay, mobile wallet-connect peer);
// tests use stubs.
//
// SignTransaction returns whatever shape the wallet produced: a flat byte
// buffer, a flat list of signed blobs, or a nested list per group. The
// signing service normalizes the result; providers should not.
type Provider interface {
	ReconnectSession(ctx context.Context) ([]string, error)
	Connect(ctx context.Context) ([]string, error)
	Disconnect(ctx context.Context) error
	SignTransaction(ctx context.Context, group SignGroup) (interface{}, error)
	IsConnected() bool
}

// ProviderLoader produces a connected-network Provider. Loading may involve
// fetching an external SDK or opening a relay socket, so it runs under the
// manager's load-timeout guard.
type ProviderLoader func(ctx context.Context, network types.Network) (Provider, error)
