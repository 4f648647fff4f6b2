package metrics

import "time"

// NoopSink discards every metric event. Used when metrics are disabled so
// callers never need nil checks.
type NoopSink struct{}

// NewNoopSink returns a no-op metrics sink.
func NewNoopSink() *NoopSink {
	return &NoopSink{}
}

func (n *NoopSink) JobSubmitted()                                             {}
func (n *NoopSink) JobFinished(status string)                                 {}
func (n *NoopSink) IterationCompleted(duration time.Duration)                 {}
func (n *NoopSink) CallResolved(outcome string, waited time.Duration)         {}
func (n *NoopSink) WebhookDelivered(statusClass string, d time.Duration)      {}
