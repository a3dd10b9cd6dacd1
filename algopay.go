// Package algopay implements browser-wallet payment orchestration for the
// Algorand network: wallet session lifecycle, asset opt-in, transaction
// construction and signing, broadcast, and merchant-backend reconciliation.
package algopay

import (
	"context"
	"time"

	"github.com/vitwit/algopay/clients"
	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/metrics"
	"github.com/vitwit/algopay/optin"
	"github.com/vitwit/algopay/orchestrator"
	"github.com/vitwit/algopay/pos"
	"github.com/vitwit/algopay/reconcile"
	"github.com/vitwit/algopay/signing"
	"github.com/vitwit/algopay/types"
	"github.com/vitwit/algopay/wallet"
)

// Config is the top-level configuration for an AlgoPay instance.
type Config struct {
	// Network selects mainnet or testnet; it decides the wallet chain id and
	// the default USDC asset.
	Network types.Network

	// Node configures the algod client and optional backend endpoint.
	Node types.ClientConfig

	// ProviderLoader loads the wallet provider (e.g. the Pera bridge).
	ProviderLoader wallet.ProviderLoader

	// Host is embedded in transaction notes for backend attribution.
	Host string

	// RedirectTo is the navigation target returned on payment success.
	RedirectTo string

	// Notifier receives user-facing notices from the orchestrator.
	Notifier orchestrator.Notifier
}

// AlgoPay is the main entry point wiring all payment services together.
type AlgoPay struct {
	node       clients.NodeClient
	wallets    *wallet.Manager
	signer     *signing.Service
	optins     *optin.Service
	reconciler *reconcile.Service
	orch       *orchestrator.Orchestrator
	pos        *pos.Service

	logger  logger.Logger
	metrics metrics.Recorder
	timeout time.Duration
}

// New creates an AlgoPay instance from config and options.
func New(cfg Config, opts ...Option) (*AlgoPay, error) {
	if !cfg.Network.Valid() {
		return nil, types.NewPayError(types.ErrConfigurationError, "unsupported network: "+cfg.Network.String(), nil)
	}

	a := &AlgoPay{
		logger:  logger.NoopLogger{},
		metrics: metrics.NoopRecorder{},
		timeout: 30 * time.Second,
	}
	for _, opt := range opts {
		opt(a)
	}

	if cfg.Node.Timeout == 0 {
		cfg.Node.Timeout = a.timeout
	}
	node, err := clients.NewAlgodClient(cfg.Node, a.logger)
	if err != nil {
		return nil, err
	}
	a.node = node

	a.wallets = wallet.NewManager(cfg.ProviderLoader, cfg.Network, a.logger)
	a.signer = signing.NewService(a.node, a.logger)
	a.optins = optin.NewService(a.node, a.signer, a.logger)
	if cfg.Node.BackendURL != "" {
		a.reconciler = reconcile.NewService(cfg.Node.BackendURL, cfg.Node.Timeout, a.logger)
	}
	a.pos = pos.NewService(a.node, a.logger)

	a.orch, err = orchestrator.New(orchestrator.Config{
		Node:       a.node,
		Wallets:    a.wallets,
		Signer:     a.signer,
		OptIns:     a.optins,
		Reconciler: a.reconciler,
		Host:       cfg.Host,
		RedirectTo: cfg.RedirectTo,
		Notifier:   cfg.Notifier,
		Logger:     a.logger,
		Metrics:    a.metrics,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// NewWithDefaults creates an AlgoPay instance with just the required pieces.
func NewWithDefaults(network types.Network, nodeURL string, loader wallet.ProviderLoader) (*AlgoPay, error) {
	return New(Config{
		Network:        network,
		Node:           types.ClientConfig{NodeURL: nodeURL},
		ProviderLoader: loader,
	})
}

// Connect establishes the wallet session and returns the connected address.
func (a *AlgoPay) Connect(ctx context.Context) (string, error) {
	return a.orch.HandleConnectRequested(ctx)
}

// Disconnect tears down the wallet session.
func (a *AlgoPay) Disconnect(ctx context.Context) {
	a.orch.HandleDisconnectRequested(ctx)
}

// Address returns the connected wallet address, empty when disconnected.
func (a *AlgoPay) Address() string {
	return a.wallets.Session().Address()
}

// OptInState recomputes the asset opt-in state of both payment parties.
func (a *AlgoPay) OptInState(ctx context.Context, intent *types.PaymentIntent) types.AssetOptInState {
	return a.orch.RefreshOptInState(ctx, intent)
}

// OptIn submits an asset opt-in for the connected account.
func (a *AlgoPay) OptIn(ctx context.Context, assetID uint64) (string, error) {
	return a.orch.HandleOptInRequested(ctx, assetID)
}

// Pay runs one full payment attempt for the intent.
func (a *AlgoPay) Pay(ctx context.Context, intent *types.PaymentIntent) (*orchestrator.Result, error) {
	return a.orch.HandlePaymentSubmitted(ctx, intent)
}

// State returns the orchestrator's current lifecycle state.
func (a *AlgoPay) State() orchestrator.State {
	return a.orch.State()
}

// Reset returns a finished orchestrator to idle.
func (a *AlgoPay) Reset() {
	a.orch.Reset()
}

// POS exposes the point-of-sale service for QR rendering and verification.
func (a *AlgoPay) POS() *pos.Service {
	return a.pos
}

// Node exposes the underlying node client.
func (a *AlgoPay) Node() clients.NodeClient {
	return a.node
}

// Close releases the node client's connections.
func (a *AlgoPay) Close() {
	a.node.Close()
}

// Version information.
const Version = "1.0.0"
