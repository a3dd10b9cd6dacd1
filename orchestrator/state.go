package orchestrator

import "time"

// State is a phase of one payment attempt. Transitions only move forward
// through the sequence below, except that any state may fall directly to
// StateFailed. Terminal states are StateSucceeded and StateFailed; a new
// attempt starts over from StateIdle and re-validates every precondition.
type State string

const (
	StateIdle                State = "idle"
	StatePreconditionCheck   State = "precondition_check"
	StateBuildingTransaction State = "building_transaction"
	StateAwaitingSignature   State = "awaiting_signature"
	StateBroadcasting        State = "broadcasting"
	StateReconciling         State = "reconciling"
	StateSucceeded           State = "succeeded"
	StateFailed              State = "failed"
)

// Terminal reports whether the state ends an attempt.
func (s State) Terminal() bool {
	return s == StateSucceeded || s == StateFailed
}

// idle-equivalent: a new attempt may begin.
func (s State) acceptsNewAttempt() bool {
	return s == StateIdle || s.Terminal()
}

func (s State) String() string { return string(s) }

// Severity grades a user-facing notice.
type Severity string

const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Notice is an abstract UI-state update. The rendering layer decides how to
// show it; AutoDismiss hints how long it should stay visible.
type Notice struct {
	Severity    Severity
	Message     string
	AutoDismiss time.Duration
}

// Notifier receives notices. It must not block.
type Notifier func(Notice)

// Dismiss hints used by the orchestrator, matching the checkout UI timings.
const (
	dismissWarning = 5 * time.Second
	dismissError   = 8 * time.Second
)

// Result is the terminal outcome of one payment attempt.
type Result struct {
	AttemptID  string
	FinalState State

	// TxID is set once broadcast succeeded, even when reconciliation failed
	// afterwards: the on-chain transfer exists either way.
	TxID string

	// RedirectTo is the client-side navigation target on success.
	RedirectTo string

	FailureCode    string
	FailureMessage string
}

// Succeeded reports whether the attempt reached the success state.
func (r *Result) Succeeded() bool { return r.FinalState == StateSucceeded }
