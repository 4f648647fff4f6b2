// Package metrics records operational counters for the exploration service.
package metrics

import (
	"strings"
	"time"
)

// Sink receives metric events. All methods are fire-and-forget:
// implementations must not block or propagate errors.
type Sink interface {
	// Job lifecycle
	JobSubmitted()
	JobFinished(status string)

	// Exploration loop
	IterationCompleted(duration time.Duration)
	CallResolved(outcome string, waited time.Duration)

	// Webhook notifier
	WebhookDelivered(statusClass string, duration time.Duration)
}

// Outcome labels for CallResolved.
const (
	CallOutcomeCompleted = "completed"
	CallOutcomeTimeout   = "timeout"
	CallOutcomeCancelled = "cancelled"
)

// Status classes for WebhookDelivered.
const (
	StatusClass2xx             = "2xx"
	StatusClass4xx             = "4xx"
	StatusClass5xx             = "5xx"
	StatusClassConnectionError = "connection_error"
	StatusClassOtherError      = "other_error"
)

// ClassifyStatus maps a webhook response status and transport error to a
// status class label.
func ClassifyStatus(statusCode int, err error) string {
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "connection refused") || strings.Contains(msg, "no such host") ||
			strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline exceeded") ||
			strings.Contains(msg, "dial") {
			return StatusClassConnectionError
		}
		return StatusClassOtherError
	}
	switch {
	case statusCode >= 200 && statusCode < 300:
		return StatusClass2xx
	case statusCode >= 400 && statusCode < 500:
		return StatusClass4xx
	case statusCode >= 500:
		return StatusClass5xx
	default:
		return StatusClassOtherError
	}
}
