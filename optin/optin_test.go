package optin

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/algopay/clients"
	"github.com/vitwit/algopay/signing"
	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
	"github.com/vitwit/algopay/wallet"
)

type stubNode struct {
	clients.NodeClient

	assets    map[string][]types.AccountAsset
	assetsErr error

	params    *types.NetworkParameters
	txID      string
	lastRound uint64
	pending   *types.PendingTransaction
}

func (s *stubNode) AccountAssets(ctx context.Context, address string) ([]types.AccountAsset, error) {
	if s.assetsErr != nil {
		return nil, s.assetsErr
	}
	return s.assets[address], nil
}

func (s *stubNode) SuggestedParams(ctx context.Context) (*types.NetworkParameters, error) {
	return s.params, nil
}

func (s *stubNode) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	return s.txID, nil
}

func (s *stubNode) LastRound(ctx context.Context) (uint64, error) { return s.lastRound, nil }

func (s *stubNode) WaitForBlockAfter(ctx context.Context, round uint64) error { return nil }

func (s *stubNode) PendingTransaction(ctx context.Context, txID string) (*types.PendingTransaction, error) {
	return s.pending, nil
}

func TestIsOptedIn(t *testing.T) {
	node := &stubNode{assets: map[string][]types.AccountAsset{
		"HOLDER": {{AssetID: 10458941, Amount: 5}},
	}}
	svc := NewService(node, nil, nil)

	assert.True(t, svc.IsOptedIn(context.Background(), "HOLDER", 10458941))
	assert.False(t, svc.IsOptedIn(context.Background(), "HOLDER", 31566704))
	assert.False(t, svc.IsOptedIn(context.Background(), "STRANGER", 10458941))
}

func TestIsOptedInFailsSoft(t *testing.T) {
	node := &stubNode{assetsErr: errors.New("node down")}
	svc := NewService(node, nil, nil)

	// A query failure reads as not opted in instead of aborting the flow.
	assert.False(t, svc.IsOptedIn(context.Background(), "HOLDER", 10458941))
}

func TestStateCoversBothParties(t *testing.T) {
	node := &stubNode{assets: map[string][]types.AccountAsset{
		"SENDER":   {{AssetID: 10458941}},
		"MERCHANT": {},
	}}
	svc := NewService(node, nil, nil)

	state := svc.State(context.Background(), "SENDER", "MERCHANT", 10458941)
	assert.True(t, state.SenderOptedIn)
	assert.False(t, state.MerchantOptedIn)
	assert.False(t, state.Ready())

	node.assets["MERCHANT"] = []types.AccountAsset{{AssetID: 10458941}}
	state = svc.State(context.Background(), "SENDER", "MERCHANT", 10458941)
	assert.True(t, state.Ready())
}

type signingProvider struct{}

func (signingProvider) ReconnectSession(ctx context.Context) ([]string, error) {
	var pk [32]byte
	pk[0] = 7
	return []string{txnbuild.EncodeAddress(pk)}, nil
}
func (signingProvider) Connect(ctx context.Context) ([]string, error) { return nil, nil }
func (signingProvider) Disconnect(ctx context.Context) error          { return nil }
func (signingProvider) IsConnected() bool                             { return true }
func (signingProvider) SignTransaction(ctx context.Context, group wallet.SignGroup) (interface{}, error) {
	return [][]byte{{0x01, 0x02}}, nil
}

func TestOptInSubmitsAndPolls(t *testing.T) {
	node := &stubNode{
		params: &types.NetworkParameters{
			Fee: 1000, MinFee: 1000, FirstValid: 10, LastValid: 1010,
			GenesisID: "testnet-v1.0", GenesisHash: make([]byte, 32),
		},
		txID:    "OPTINTX",
		pending: &types.PendingTransaction{ConfirmedRound: 12},
	}
	signer := signing.NewService(node, nil)
	svc := NewService(node, signer, nil)

	m := wallet.NewManager(func(ctx context.Context, n types.Network) (wallet.Provider, error) {
		return signingProvider{}, nil
	}, types.NetworkTestnet, nil)
	_, err := m.Connect(context.Background())
	require.NoError(t, err)

	txID, err := svc.OptIn(context.Background(), m.Session(), 10458941)
	require.NoError(t, err)
	assert.Equal(t, "OPTINTX", txID)
}

func TestOptInRequiresConnectedWallet(t *testing.T) {
	svc := NewService(&stubNode{}, nil, nil)
	m := wallet.NewManager(nil, types.NetworkTestnet, nil)

	_, err := svc.OptIn(context.Background(), m.Session(), 10458941)
	require.Error(t, err)
	assert.Equal(t, types.ErrWalletConnectionFailed, types.CodeOf(err))
}
