// Package orchestrator drives a payment attempt through its lifecycle:
// precondition checks, transaction build, wallet signing, broadcast, and
// backend reconciliation.
package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/vitwit/algopay/clients"
	"github.com/vitwit/algopay/logger"
	"github.com/vitwit/algopay/metrics"
	"github.com/vitwit/algopay/optin"
	"github.com/vitwit/algopay/reconcile"
	"github.com/vitwit/algopay/signing"
	"github.com/vitwit/algopay/txnbuild"
	"github.com/vitwit/algopay/types"
	"github.com/vitwit/algopay/wallet"
)

// Orchestrator owns the payment state machine. At most one payment attempt is
// in flight at a time; events arriving while an attempt runs are rejected with
// attempt_in_progress rather than queued.
type Orchestrator struct {
	node       clients.NodeClient
	wallets    *wallet.Manager
	signer     *signing.Service
	optins     *optin.Service
	reconciler *reconcile.Service

	host       string
	redirectTo string

	notifier Notifier
	log      logger.Logger
	metrics  metrics.Recorder

	mu        sync.Mutex
	state     State
	attemptID string
}

// Config carries the collaborators and fixed settings of an orchestrator.
type Config struct {
	Node       clients.NodeClient
	Wallets    *wallet.Manager
	Signer     *signing.Service
	OptIns     *optin.Service
	Reconciler *reconcile.Service

	// Host is embedded in the transaction note so the merchant backend can
	// attribute the payment to its originating storefront.
	Host string

	// RedirectTo is the navigation target handed back on success.
	RedirectTo string

	Notifier Notifier
	Logger   logger.Logger
	Metrics  metrics.Recorder
}

// New creates an orchestrator in the idle state.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Node == nil || cfg.Wallets == nil || cfg.Signer == nil {
		return nil, types.NewPayError(types.ErrConfigurationError,
			"node client, wallet manager and signer are required", nil)
	}
	log := cfg.Logger
	if log == nil {
		log = logger.NoopLogger{}
	}
	rec := cfg.Metrics
	if rec == nil {
		rec = metrics.NoopRecorder{}
	}
	return &Orchestrator{
		node:       cfg.Node,
		wallets:    cfg.Wallets,
		signer:     cfg.Signer,
		optins:     cfg.OptIns,
		reconciler: cfg.Reconciler,
		host:       cfg.Host,
		redirectTo: cfg.RedirectTo,
		notifier:   cfg.Notifier,
		log:        log.Named("orchestrator"),
		metrics:    rec,
		state:      StateIdle,
	}, nil
}

// State returns the current lifecycle state.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// Snapshot returns the current state together with the running attempt id and
// connected wallet address, for UI rendering.
func (o *Orchestrator) Snapshot() (State, string, string) {
	o.mu.Lock()
	state, attempt := o.state, o.attemptID
	o.mu.Unlock()
	return state, attempt, o.wallets.Session().Address()
}

// HandleConnectRequested connects the wallet and returns the selected address.
// For asset payments the caller follows up with RefreshOptInState; connect
// itself is intent-agnostic.
func (o *Orchestrator) HandleConnectRequested(ctx context.Context) (string, error) {
	address, err := o.wallets.Connect(ctx)
	if err != nil {
		o.notify(SeverityError, userMessage(err), dismissError)
		return "", err
	}
	o.notify(SeverityInfo, "Wallet connected: "+shortAddress(address), dismissWarning)
	return address, nil
}

// HandleDisconnectRequested tears down the wallet session.
func (o *Orchestrator) HandleDisconnectRequested(ctx context.Context) {
	o.wallets.Disconnect(ctx)
	o.notify(SeverityInfo, "Wallet disconnected", dismissWarning)
}

// RefreshOptInState recomputes the opt-in state of both parties for the
// intent's asset. Native payments always report ready.
func (o *Orchestrator) RefreshOptInState(ctx context.Context, intent *types.PaymentIntent) types.AssetOptInState {
	if !intent.IsAssetTransfer || o.optins == nil {
		return types.AssetOptInState{SenderOptedIn: true, MerchantOptedIn: true}
	}
	return o.optins.State(ctx, o.wallets.Session().Address(), intent.MerchantAddress, intent.AssetID)
}

// HandleOptInRequested submits an opt-in for the connected account and
// reports the transaction id. Rejected while a payment attempt is running.
func (o *Orchestrator) HandleOptInRequested(ctx context.Context, assetID uint64) (string, error) {
	o.mu.Lock()
	if !o.state.acceptsNewAttempt() {
		o.mu.Unlock()
		return "", types.NewPayError(types.ErrAttemptInProgress, "a payment attempt is already running", nil)
	}
	o.mu.Unlock()

	if o.optins == nil {
		return "", types.NewPayError(types.ErrConfigurationError, "no opt-in service configured", nil)
	}
	txID, err := o.optins.OptIn(ctx, o.wallets.Session(), assetID)
	if err != nil {
		o.notify(SeverityError, userMessage(err), dismissError)
		return "", err
	}
	o.metrics.IncCounter(metrics.CounterOptIns, map[string]string{"network": o.wallets.Network().String()})
	o.notify(SeverityInfo, "Asset opt-in submitted", dismissWarning)
	return txID, nil
}

// HandlePaymentSubmitted runs one full payment attempt. Domain failures are
// returned inside the Result with FinalState StateFailed; the error return is
// reserved for rejected initiations.
func (o *Orchestrator) HandlePaymentSubmitted(ctx context.Context, intent *types.PaymentIntent) (*Result, error) {
	attemptID, err := o.begin()
	if err != nil {
		return nil, err
	}

	started := time.Now()
	labels := map[string]string{"network": intent.Network.String(), "type": attemptType(intent)}
	o.metrics.IncCounter(metrics.CounterAttempts, labels)
	o.log.Info("payment attempt started", map[string]any{
		"attemptId": attemptID,
		"network":   intent.Network.String(),
		"currency":  intent.CurrencyDisplayName,
		"amount":    intent.Amount.String(),
	})

	result := o.run(ctx, attemptID, intent, labels)

	o.metrics.ObserveLatency(metrics.LatencyAttemptTime, time.Since(started), labels)
	if result.Succeeded() {
		o.metrics.IncCounter(metrics.CounterSucceeded, labels)
	} else {
		failLabels := map[string]string{
			"network": labels["network"],
			"type":    labels["type"],
			"reason":  result.FailureCode,
		}
		o.metrics.IncCounter(metrics.CounterFailed, failLabels)
	}
	o.finish(result.FinalState)
	return result, nil
}

// Reset returns a terminal orchestrator to idle so a fresh attempt can be
// rendered. No-op while an attempt is running.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.state.Terminal() {
		o.state = StateIdle
		o.attemptID = ""
	}
}

// run executes the attempt body. Every early return is a terminal failure.
func (o *Orchestrator) run(ctx context.Context, attemptID string, intent *types.PaymentIntent, labels map[string]string) *Result {
	sender, failed := o.checkPreconditions(ctx, attemptID, intent)
	if failed != nil {
		return failed
	}

	o.setState(StateBuildingTransaction)
	stepStart := time.Now()
	record, failed := o.buildTransaction(ctx, attemptID, intent, sender)
	if failed != nil {
		return failed
	}
	o.observeStep("build", stepStart, labels)

	o.setState(StateAwaitingSignature)
	stepStart = time.Now()
	if err := o.signer.Sign(ctx, record, o.wallets.Session()); err != nil {
		return o.fail(attemptID, err)
	}
	o.observeStep("sign", stepStart, labels)

	o.setState(StateBroadcasting)
	stepStart = time.Now()
	txID, err := o.signer.Broadcast(ctx, record)
	if err != nil {
		return o.fail(attemptID, err)
	}
	o.observeStep("broadcast", stepStart, labels)
	o.log.Info("transaction broadcast", map[string]any{"attemptId": attemptID, "txId": txID})

	o.setState(StateReconciling)
	stepStart = time.Now()
	if o.reconciler != nil {
		if _, err := o.reconciler.ReportPayment(ctx, intent.BackendTxReference, txID, sender); err != nil {
			// The transfer is on chain; surface the backend failure with the
			// transaction id so support can reconcile manually.
			res := o.fail(attemptID, err)
			res.TxID = txID
			return res
		}
	}
	o.observeStep("reconcile", stepStart, labels)

	o.notify(SeverityInfo, "Payment submitted", dismissWarning)
	return &Result{
		AttemptID:  attemptID,
		FinalState: StateSucceeded,
		TxID:       txID,
		RedirectTo: o.redirectTo,
	}
}

// checkPreconditions validates the attempt in a fixed order: wallet session,
// merchant address, then asset opt-in of both parties.
func (o *Orchestrator) checkPreconditions(ctx context.Context, attemptID string, intent *types.PaymentIntent) (string, *Result) {
	session := o.wallets.Session()
	if !session.Connected() {
		return "", o.fail(attemptID, types.NewPayError(types.ErrWalletConnectionFailed, "no wallet connected", nil))
	}
	sender := session.Address()

	if intent.MerchantAddress == "" {
		return "", o.fail(attemptID, types.NewPayError(types.ErrConfigurationError, "no merchant address configured", nil))
	}
	if !txnbuild.IsValidAddress(intent.MerchantAddress) {
		return "", o.fail(attemptID, types.NewPayError(types.ErrInvalidAddress, "merchant address is not a valid address",
			map[string]interface{}{types.DetailWho: types.PartyMerchant}))
	}

	if intent.IsAssetTransfer {
		if o.optins == nil {
			return "", o.fail(attemptID, types.NewPayError(types.ErrConfigurationError, "no opt-in service configured", nil))
		}
		state := o.optins.State(ctx, sender, intent.MerchantAddress, intent.AssetID)
		if !state.SenderOptedIn {
			return "", o.fail(attemptID, types.NewPayError(types.ErrAssetNotOptedIn,
				fmt.Sprintf("your account has not opted in to %s", intent.CurrencyDisplayName),
				map[string]interface{}{types.DetailWho: types.PartySender}))
		}
		if !state.MerchantOptedIn {
			return "", o.fail(attemptID, types.NewPayError(types.ErrAssetNotOptedIn,
				fmt.Sprintf("the merchant account has not opted in to %s", intent.CurrencyDisplayName),
				map[string]interface{}{types.DetailWho: types.PartyMerchant}))
		}
	}
	return sender, nil
}

// buildTransaction fetches fresh network parameters and builds the unsigned
// transaction. Parameters are never carried over from a previous attempt.
func (o *Orchestrator) buildTransaction(ctx context.Context, attemptID string, intent *types.PaymentIntent, sender string) (*signing.Record, *Result) {
	params, err := o.node.SuggestedParams(ctx)
	if err != nil {
		return nil, o.fail(attemptID, err)
	}

	note, err := txnbuild.EncodeNote(intent, o.host)
	if err != nil {
		return nil, o.fail(attemptID, types.NewPayError(types.ErrTransactionBuild, err.Error(), nil))
	}

	txn, err := txnbuild.Build(intent, sender, params, note)
	if err != nil {
		return nil, o.fail(attemptID, err)
	}
	return signing.NewRecord(txn), nil
}

// begin claims the single attempt slot.
func (o *Orchestrator) begin() (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.state.acceptsNewAttempt() {
		return "", types.NewPayError(types.ErrAttemptInProgress,
			fmt.Sprintf("a payment attempt is already running (state %s)", o.state), nil)
	}
	o.state = StatePreconditionCheck
	o.attemptID = uuid.NewString()
	return o.attemptID, nil
}

func (o *Orchestrator) finish(terminal State) {
	o.mu.Lock()
	o.state = terminal
	o.mu.Unlock()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
	o.log.Debug("state transition", map[string]any{"state": s.String()})
}

// fail records the terminal failure, notifies the UI, and shapes the Result.
func (o *Orchestrator) fail(attemptID string, err error) *Result {
	code := types.CodeOf(err)
	if code == "" {
		code = types.ErrNetwork
	}
	o.log.Warn("payment attempt failed", map[string]any{
		"attemptId": attemptID,
		"reason":    code,
		"error":     err.Error(),
	})
	o.notify(SeverityError, userMessage(err), dismissError)
	return &Result{
		AttemptID:      attemptID,
		FinalState:     StateFailed,
		FailureCode:    code,
		FailureMessage: err.Error(),
	}
}

func (o *Orchestrator) observeStep(step string, started time.Time, labels map[string]string) {
	stepLabels := map[string]string{"operation": step, "network": labels["network"]}
	o.metrics.ObserveLatency(metrics.LatencyStep, time.Since(started), stepLabels)
}

func (o *Orchestrator) notify(sev Severity, msg string, dismiss time.Duration) {
	if o.notifier == nil {
		return
	}
	o.notifier(Notice{Severity: sev, Message: msg, AutoDismiss: dismiss})
}

// userMessage maps an error to the text shown to the payer.
func userMessage(err error) string {
	var pe *types.PayError
	if e, ok := err.(*types.PayError); ok {
		pe = e
	}
	if pe == nil {
		return "Payment failed. Please try again."
	}
	switch pe.Code {
	case types.ErrWalletConnectionFailed:
		return "Could not connect to your wallet. Please try again."
	case types.ErrExternalLoadTimeout:
		return "The wallet took too long to load. Please reload and try again."
	case types.ErrSigningRejected:
		return "The transaction was not signed."
	case types.ErrAssetNotOptedIn:
		return pe.Message
	case types.ErrBroadcast:
		if b, ok := pe.Details[types.DetailInsufficientFunds].(bool); ok && b {
			return "Insufficient funds to complete the payment."
		}
		return "The network rejected the transaction."
	case types.ErrReconciliationFailed:
		return "Payment went through on chain but could not be confirmed with the merchant. Please contact support."
	default:
		return "Payment failed: " + pe.Message
	}
}

func attemptType(intent *types.PaymentIntent) string {
	if intent.IsAssetTransfer {
		return "asset"
	}
	return "payment"
}

func shortAddress(addr string) string {
	if len(addr) <= 12 {
		return addr
	}
	return addr[:6] + "..." + addr[len(addr)-6:]
}
