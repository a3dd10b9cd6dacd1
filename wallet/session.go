package wallet

import (
	"context"
	"sync"

	"github.com/vitwit/algopay/types"
)

// Session is the shared wallet state: the connected address and the opaque
// provider handle. It is passed by reference to every component that needs
// it; only the Manager mutates it.
type Session struct {
	mu        sync.RWMutex
	address   string
	connected bool
	provider  Provider
}

// Address returns the connected address, empty when disconnected.
func (s *Session) Address() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.address
}

// Connected reports whether a wallet is connected.
func (s *Session) Connected() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connected && s.address != ""
}

// Sign forwards a signing group to the connected wallet. The raw result is
// returned unnormalized; see signing.Normalize.
func (s *Session) Sign(ctx context.Context, group SignGroup) (interface{}, error) {
	s.mu.RLock()
	provider := s.provider
	connected := s.connected
	s.mu.RUnlock()

	if provider == nil || !connected {
		return nil, types.NewPayError(types.ErrWalletConnectionFailed, "no wallet connected", nil)
	}
	return provider.SignTransaction(ctx, group)
}

func (s *Session) set(provider Provider, address string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider = provider
	s.address = address
	s.connected = address != ""
}

func (s *Session) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.address = ""
	s.connected = false
}

func (s *Session) currentProvider() Provider {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.provider
}
