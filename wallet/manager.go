package wallet

import (
	"context"
	"errors"
	"time"

	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/types"
)

// DefaultLoadTimeout bounds how long a provider load may take before the
// attempt fails with external_load_timeout.
const DefaultLoadTimeout = 7 * time.Second

// Manager owns the wallet session lifecycle. It is the only writer of the
// Session it hands out.
type Manager struct {
	session     *Session
	loader      ProviderLoader
	network     types.Network
	loadTimeout time.Duration
	log         logger.Logger
}

// NewManager creates a session manager for one network.
func NewManager(loader ProviderLoader, network types.Network, log logger.Logger) *Manager {
	if log == nil {
		log = logger.NoopLogger{}
	}
	return &Manager{
		session:     &Session{},
		loader:      loader,
		network:     network,
		loadTimeout: DefaultLoadTimeout,
		log:         log.Named("wallet"),
	}
}

// SetLoadTimeout overrides the provider-load guard.
func (m *Manager) SetLoadTimeout(d time.Duration) {
	if d > 0 {
		m.loadTimeout = d
	}
}

// Session returns the shared session reference.
func (m *Manager) Session() *Session { return m.session }

// Network returns the network this manager connects against.
func (m *Manager) Network() types.Network { return m.network }

// Connect establishes a wallet session. A silent reconnect to a previously
// authorized session is tried first; when that yields no accounts, any stale
// handle is torn down before forcing a full interactive connect, so two
// half-connected sessions can never coexist.
func (m *Manager) Connect(ctx context.Context) (string, error) {
	provider, err := m.loadProvider(ctx)
	if err != nil {
		return "", err
	}

	accounts, err := provider.ReconnectSession(ctx)
	if err != nil {
		m.log.Debug("silent reconnect failed, trying full connect", map[string]any{"error": err.Error()})
		accounts = nil
	}

	if len(accounts) == 0 {
		if provider.IsConnected() {
			if err := provider.Disconnect(ctx); err != nil {
				m.log.Warn("stale session teardown failed", map[string]any{"error": err.Error()})
			}
		}
		accounts, err = provider.Connect(ctx)
		if err != nil {
			return "", types.NewPayError(types.ErrWalletConnectionFailed, err.Error(), nil)
		}
	}

	if len(accounts) == 0 {
		return "", types.NewPayError(types.ErrWalletConnectionFailed, "no account authorized", nil)
	}

	address := accounts[0]
	m.session.set(provider, address)
	m.log.Info("wallet connected", map[string]any{"address": address, "network": m.network.String()})
	return address, nil
}

// Disconnect tears down the provider handle and clears the session. It
// succeeds even when the provider reports no active session.
func (m *Manager) Disconnect(ctx context.Context) {
	provider := m.session.currentProvider()
	if provider != nil && provider.IsConnected() {
		if err := provider.Disconnect(ctx); err != nil {
			m.log.Warn("wallet disconnect failed", map[string]any{"error": err.Error()})
		}
	}
	m.session.clear()
	m.log.Info("wallet disconnected", nil)
}

// loadProvider runs the loader under the load-timeout guard. The guard's
// timer is released on every path via the deferred cancel.
func (m *Manager) loadProvider(ctx context.Context) (Provider, error) {
	if existing := m.session.currentProvider(); existing != nil {
		return existing, nil
	}
	if m.loader == nil {
		return nil, types.NewPayError(types.ErrConfigurationError, "no wallet provider loader configured", nil)
	}

	loadCtx, cancel := context.WithTimeout(ctx, m.loadTimeout)
	defer cancel()

	type loaded struct {
		provider Provider
		err      error
	}
	ch := make(chan loaded, 1)
	go func() {
		p, err := m.loader(loadCtx, m.network)
		ch <- loaded{provider: p, err: err}
	}()

	select {
	case <-loadCtx.Done():
		if errors.Is(loadCtx.Err(), context.DeadlineExceeded) {
			return nil, types.NewPayError(types.ErrExternalLoadTimeout, "wallet provider load timed out", nil)
		}
		return nil, loadCtx.Err()
	case res := <-ch:
		if res.err != nil {
			return nil, types.NewPayError(types.ErrWalletConnectionFailed, res.err.Error(), nil)
		}
		return res.provider, nil
	}
}
