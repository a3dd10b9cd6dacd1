package wallet

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/algopay/types"
)

type fakeProvider struct {
	reconnectAccounts []string
	reconnectErr      error
	connectAccounts   []string
	connectErr        error
	connected         bool

	reconnects  int
	connects    int
	disconnects int
}

func (f *fakeProvider) ReconnectSession(ctx context.Context) ([]string, error) {
	f.reconnects++
	return f.reconnectAccounts, f.reconnectErr
}

func (f *fakeProvider) Connect(ctx context.Context) ([]string, error) {
	f.connects++
	if f.connectErr != nil {
		return nil, f.connectErr
	}
	f.connected = true
	return f.connectAccounts, nil
}

func (f *fakeProvider) Disconnect(ctx context.Context) error {
	f.disconnects++
	f.connected = false
	return nil
}

func (f *fakeProvider) SignTransaction(ctx context.Context, group SignGroup) (interface{}, error) {
	return [][]byte{{0x01}}, nil
}

func (f *fakeProvider) IsConnected() bool { return f.connected }

func loaderFor(p Provider) ProviderLoader {
	return func(ctx context.Context, network types.Network) (Provider, error) {
		return p, nil
	}
}

func TestConnectPrefersSilentReconnect(t *testing.T) {
	provider := &fakeProvider{reconnectAccounts: []string{"ADDR1", "ADDR2"}}
	m := NewManager(loaderFor(provider), types.NetworkTestnet, nil)

	address, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ADDR1", address)
	assert.Equal(t, 1, provider.reconnects)
	assert.Zero(t, provider.connects, "full connect must not run when reconnect succeeds")
	assert.True(t, m.Session().Connected())
}

func TestConnectTearsDownStaleHandleBeforeFullConnect(t *testing.T) {
	provider := &fakeProvider{
		connected:       true, // stale handle with no authorized accounts
		connectAccounts: []string{"ADDR1"},
	}
	m := NewManager(loaderFor(provider), types.NetworkTestnet, nil)

	address, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ADDR1", address)
	assert.Equal(t, 1, provider.disconnects, "stale session must be torn down first")
	assert.Equal(t, 1, provider.connects)
}

func TestConnectFallsBackWhenReconnectErrors(t *testing.T) {
	provider := &fakeProvider{
		reconnectErr:    errors.New("no session"),
		connectAccounts: []string{"ADDR1"},
	}
	m := NewManager(loaderFor(provider), types.NetworkTestnet, nil)

	address, err := m.Connect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ADDR1", address)
}

func TestConnectFailsWhenNoAccountAuthorized(t *testing.T) {
	provider := &fakeProvider{}
	m := NewManager(loaderFor(provider), types.NetworkTestnet, nil)

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrWalletConnectionFailed, types.CodeOf(err))
	assert.False(t, m.Session().Connected())
}

func TestConnectTimesOutSlowLoader(t *testing.T) {
	slow := func(ctx context.Context, network types.Network) (Provider, error) {
		select {
		case <-time.After(time.Second):
			return &fakeProvider{}, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	m := NewManager(slow, types.NetworkTestnet, nil)
	m.SetLoadTimeout(20 * time.Millisecond)

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrExternalLoadTimeout, types.CodeOf(err))
}

func TestConnectWrapsLoaderError(t *testing.T) {
	failing := func(ctx context.Context, network types.Network) (Provider, error) {
		return nil, errors.New("bridge unavailable")
	}
	m := NewManager(failing, types.NetworkTestnet, nil)

	_, err := m.Connect(context.Background())
	require.Error(t, err)
	assert.Equal(t, types.ErrWalletConnectionFailed, types.CodeOf(err))
}

func TestDisconnectClearsSessionEvenWithoutProvider(t *testing.T) {
	m := NewManager(nil, types.NetworkTestnet, nil)
	m.Disconnect(context.Background())
	assert.False(t, m.Session().Connected())
}

func TestDisconnectTearsDownActiveSession(t *testing.T) {
	provider := &fakeProvider{reconnectAccounts: []string{"ADDR1"}}
	m := NewManager(loaderFor(provider), types.NetworkTestnet, nil)

	_, err := m.Connect(context.Background())
	require.NoError(t, err)
	provider.connected = true

	m.Disconnect(context.Background())
	assert.Equal(t, 1, provider.disconnects)
	assert.False(t, m.Session().Connected())
	assert.Empty(t, m.Session().Address())
}
