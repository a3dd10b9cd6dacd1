package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vitwit/algopay/clients"
	"github.com/vitwit/algopay/optin"
	"github.com/vitwit/algopay/reconcile"
	"github.com/vitwit/algopay/signing"
	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
	"github.com/vitwit/algopay/wallet"
)

type fakeNode struct {
	clients.NodeClient

	paramCalls int32
	sendCalls  int32
	sendErr    error
	txID       string
	assets     map[string][]types.AccountAsset
}

func (f *fakeNode) SuggestedParams(ctx context.Context) (*types.NetworkParameters, error) {
	atomic.AddInt32(&f.paramCalls, 1)
	return &types.NetworkParameters{
		Fee: 1000, MinFee: 1000, FirstValid: 10, LastValid: 1010,
		GenesisID: "testnet-v1.0", GenesisHash: make([]byte, 32),
	}, nil
}

func (f *fakeNode) AccountAssets(ctx context.Context, address string) ([]types.AccountAsset, error) {
	return f.assets[address], nil
}

func (f *fakeNode) SendRawTransaction(ctx context.Context, signed []byte) (string, error) {
	atomic.AddInt32(&f.sendCalls, 1)
	if f.sendErr != nil {
		return "", f.sendErr
	}
	return f.txID, nil
}

type fakeProvider struct {
	address string
	signErr error

	// When set, SignTransaction blocks until the channel closes.
	signGate chan struct{}
}

func (f *fakeProvider) ReconnectSession(ctx context.Context) ([]string, error) {
	return []string{f.address}, nil
}
func (f *fakeProvider) Connect(ctx context.Context) ([]string, error) { return nil, nil }
func (f *fakeProvider) Disconnect(ctx context.Context) error          { return nil }
func (f *fakeProvider) IsConnected() bool                             { return true }

func (f *fakeProvider) SignTransaction(ctx context.Context, group wallet.SignGroup) (interface{}, error) {
	if f.signGate != nil {
		<-f.signGate
	}
	if f.signErr != nil {
		return nil, f.signErr
	}
	return [][]byte{{0xaa, 0xbb}}, nil
}

func senderAddress() string {
	var pk [32]byte
	pk[0] = 1
	return txnbuild.EncodeAddress(pk)
}

func merchantAddress() string {
	var pk [32]byte
	pk[0] = 2
	return txnbuild.EncodeAddress(pk)
}

type fixture struct {
	orch     *Orchestrator
	node     *fakeNode
	provider *fakeProvider
	notices  *[]Notice
	backend  *int32
}

// newFixture wires an orchestrator against fakes, with the wallet already
// connected unless connect is false.
func newFixture(t *testing.T, connect bool, backendResponse string) *fixture {
	t.Helper()

	node := &fakeNode{txID: "PAYTX"}
	provider := &fakeProvider{address: senderAddress()}

	var backendHits int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&backendHits, 1)
		w.Write([]byte(backendResponse))
	}))
	t.Cleanup(srv.Close)

	wallets := wallet.NewManager(func(ctx context.Context, n types.Network) (wallet.Provider, error) {
		return provider, nil
	}, types.NetworkTestnet, nil)
	signer := signing.NewService(node, nil)

	var notices []Notice
	orch, err := New(Config{
		Node:       node,
		Wallets:    wallets,
		Signer:     signer,
		OptIns:     optin.NewService(node, signer, nil),
		Reconciler: reconcile.NewService(srv.URL, 0, nil),
		Host:       "shop.example.com",
		RedirectTo: "/payment/status",
		Notifier:   func(n Notice) { notices = append(notices, n) },
	})
	require.NoError(t, err)

	if connect {
		_, err := orch.HandleConnectRequested(context.Background())
		require.NoError(t, err)
	}
	return &fixture{orch: orch, node: node, provider: provider, notices: &notices, backend: &backendHits}
}

func nativeIntent() *types.PaymentIntent {
	return &types.PaymentIntent{
		Amount:              decimal.RequireFromString("2.5"),
		CurrencyDisplayName: "ALGO",
		MerchantAddress:     merchantAddress(),
		Network:             types.NetworkTestnet,
		BackendTxReference:  "SO-42",
	}
}

func assetIntent() *types.PaymentIntent {
	intent := nativeIntent()
	intent.CurrencyDisplayName = "USDC"
	intent.IsAssetTransfer = true
	intent.AssetID = 10458941
	intent.AssetDecimals = 6
	return intent
}

func TestPaymentSucceeds(t *testing.T) {
	f := newFixture(t, true, `{"result":{"success":true}}`)

	result, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	require.True(t, result.Succeeded())

	assert.Equal(t, "PAYTX", result.TxID)
	assert.Equal(t, "/payment/status", result.RedirectTo)
	assert.NotEmpty(t, result.AttemptID)
	assert.Equal(t, StateSucceeded, f.orch.State())
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.node.paramCalls))
	assert.Equal(t, int32(1), atomic.LoadInt32(f.backend))
}

func TestPaymentFailsWithoutWallet(t *testing.T) {
	f := newFixture(t, false, `{"success":true}`)

	result, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.FinalState)
	assert.Equal(t, types.ErrWalletConnectionFailed, result.FailureCode)
	// Nothing past the precondition check may run.
	assert.Zero(t, atomic.LoadInt32(&f.node.paramCalls))
	assert.Zero(t, atomic.LoadInt32(&f.node.sendCalls))
}

func TestPaymentFailsOnInvalidMerchantAddress(t *testing.T) {
	f := newFixture(t, true, `{"success":true}`)

	intent := nativeIntent()
	intent.MerchantAddress = "NOTANADDRESS"
	result, err := f.orch.HandlePaymentSubmitted(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.FinalState)
	assert.Equal(t, types.ErrInvalidAddress, result.FailureCode)
}

func TestAssetPaymentChecksOptInOrder(t *testing.T) {
	t.Run("sender missing opt-in reported first", func(t *testing.T) {
		f := newFixture(t, true, `{"success":true}`)
		// Neither party holds the asset; the sender must be named.
		result, err := f.orch.HandlePaymentSubmitted(context.Background(), assetIntent())
		require.NoError(t, err)
		assert.Equal(t, types.ErrAssetNotOptedIn, result.FailureCode)
		assert.Contains(t, result.FailureMessage, "your account")
	})

	t.Run("merchant missing opt-in", func(t *testing.T) {
		f := newFixture(t, true, `{"success":true}`)
		f.node.assets = map[string][]types.AccountAsset{
			senderAddress(): {{AssetID: 10458941}},
		}
		result, err := f.orch.HandlePaymentSubmitted(context.Background(), assetIntent())
		require.NoError(t, err)
		assert.Equal(t, types.ErrAssetNotOptedIn, result.FailureCode)
		assert.Contains(t, result.FailureMessage, "merchant")
	})

	t.Run("both opted in succeeds", func(t *testing.T) {
		f := newFixture(t, true, `{"success":true}`)
		f.node.assets = map[string][]types.AccountAsset{
			senderAddress():   {{AssetID: 10458941}},
			merchantAddress(): {{AssetID: 10458941}},
		}
		result, err := f.orch.HandlePaymentSubmitted(context.Background(), assetIntent())
		require.NoError(t, err)
		assert.True(t, result.Succeeded())
	})
}

func TestSigningRejectionFailsAttempt(t *testing.T) {
	f := newFixture(t, true, `{"success":true}`)
	f.provider.signErr = types.NewPayError(types.ErrSigningRejected, "user cancelled", nil)

	result, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	assert.Equal(t, types.ErrSigningRejected, result.FailureCode)
	assert.Zero(t, atomic.LoadInt32(&f.node.sendCalls), "rejected signing must not broadcast")
	assert.Zero(t, atomic.LoadInt32(f.backend))
}

func TestBroadcastFailureSkipsReconcile(t *testing.T) {
	f := newFixture(t, true, `{"success":true}`)
	f.node.sendErr = types.NewPayError(types.ErrBroadcast, "overspend", nil)

	result, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	assert.Equal(t, types.ErrBroadcast, result.FailureCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&f.node.sendCalls), "broadcast is attempted once, never retried")
	assert.Zero(t, atomic.LoadInt32(f.backend))
}

func TestReconcileFailureKeepsTxID(t *testing.T) {
	f := newFixture(t, true, `{"result":{"success":false,"message":"order already paid"}}`)

	result, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.FinalState)
	assert.Equal(t, types.ErrReconciliationFailed, result.FailureCode)
	assert.Equal(t, "PAYTX", result.TxID, "on-chain id must survive a backend rejection")
}

func TestDuplicateInitiationIsRejected(t *testing.T) {
	f := newFixture(t, true, `{"success":true}`)
	f.provider.signGate = make(chan struct{})

	done := make(chan *Result, 1)
	go func() {
		result, _ := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
		done <- result
	}()

	// Wait for the first attempt to reach the signing stage.
	require.Eventually(t, func() bool {
		return f.orch.State() == StateAwaitingSignature
	}, time.Second, 5*time.Millisecond)

	_, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.Error(t, err)
	assert.Equal(t, types.ErrAttemptInProgress, types.CodeOf(err))

	close(f.provider.signGate)
	result := <-done
	assert.True(t, result.Succeeded())
}

func TestRetryFetchesFreshParams(t *testing.T) {
	f := newFixture(t, true, `{"success":true}`)
	f.node.sendErr = types.NewPayError(types.ErrBroadcast, "rejected", nil)

	result, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	assert.Equal(t, StateFailed, result.FinalState)

	// A terminal state accepts a new attempt, and the retry never reuses the
	// previous round window.
	f.node.sendErr = nil
	result, err = f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	assert.True(t, result.Succeeded())
	assert.Equal(t, int32(2), atomic.LoadInt32(&f.node.paramCalls))
	assert.NotEmpty(t, result.AttemptID)
}

func TestResetReturnsToIdle(t *testing.T) {
	f := newFixture(t, true, `{"success":true}`)

	_, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)
	require.True(t, f.orch.State().Terminal())

	f.orch.Reset()
	assert.Equal(t, StateIdle, f.orch.State())
}

func TestNoticesAreEmitted(t *testing.T) {
	f := newFixture(t, true, `{"success":true}`)

	_, err := f.orch.HandlePaymentSubmitted(context.Background(), nativeIntent())
	require.NoError(t, err)

	var sawSuccess bool
	for _, n := range *f.notices {
		if n.Severity == SeverityInfo && n.Message == "Payment submitted" {
			sawSuccess = true
		}
	}
	assert.True(t, sawSuccess)
}
