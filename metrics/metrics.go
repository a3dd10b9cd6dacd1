package metrics

import "time"

// Recorder receives payment-flow events and step latencies. Implementations
// must be safe for concurrent use.
type Recorder interface {
	IncCounter(name string, labels map[string]string)
	ObserveLatency(name string, duration time.Duration, labels map[string]string)
}

// Counter and latency names emitted by the orchestrator.
const (
	CounterAttempts    = "attempts"
	CounterSucceeded   = "succeeded"
	CounterFailed      = "failed"
	CounterOptIns      = "optins"
	LatencyStep        = "step"
	LatencyAttemptTime = "attempt"
)
