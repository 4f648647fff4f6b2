// Package notify delivers best-effort job progress webhooks. Deliveries are
// fire-and-forget: the exploration workflow never waits on one, never retries
// one, and never learns whether one arrived.
package notify

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/kalambet/ivrmap/internal/metrics"
)

// Event names a workflow progress point.
type Event string

const (
	EventJobCreated        Event = "job_created"
	EventReadingMapping    Event = "reading_mapping"
	EventUpdatingContext   Event = "updating_context"
	EventMakingCall        Event = "making_call"
	EventCallInitiated     Event = "call_initiated"
	EventEvaluatingOutcome Event = "evaluating_outcome"
	EventBuildingContext   Event = "building_context"
	EventCompleted         Event = "completed"
	EventFailed            Event = "failed"
	EventCancelled         Event = "cancelled"
)

// Payload is the wire shape of a progress notification. Data varies per
// event and is informational only.
type Payload struct {
	JobID     string    `json:"jobId"`
	Event     Event     `json:"event"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
}

const defaultDeliveryTimeout = 10 * time.Second

// Notifier posts progress events to per-job callback URLs. When secret is
// non-empty each request carries an HMAC-SHA256 signature of the body in
// X-IVRMap-Signature so consumers can verify origin.
type Notifier struct {
	client  *http.Client
	secret  string
	metrics metrics.Sink
	logger  *slog.Logger
}

// NewNotifier creates a Notifier. sink may be nil to disable metrics.
func NewNotifier(secret string, sink metrics.Sink) *Notifier {
	if sink == nil {
		sink = metrics.NewNoopSink()
	}
	return &Notifier{
		client:  &http.Client{Timeout: defaultDeliveryTimeout},
		secret:  secret,
		metrics: sink,
		logger:  slog.Default(),
	}
}

// Notify dispatches one event to callbackURL without blocking the caller.
// A job with no callback URL configured gets a silent no-op. Failures are
// logged and absorbed; nothing here can fail a job.
func (n *Notifier) Notify(callbackURL, jobID string, event Event, data any) {
	if callbackURL == "" {
		return
	}

	p := Payload{
		JobID:     jobID,
		Event:     event,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}

	go n.deliver(callbackURL, p)
}

func (n *Notifier) deliver(callbackURL string, p Payload) {
	start := time.Now()

	body, err := json.Marshal(p)
	if err != nil {
		n.logger.Warn("could not encode webhook payload", "job_id", p.JobID, "event", p.Event, "error", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), defaultDeliveryTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		n.logger.Warn("could not build webhook request", "job_id", p.JobID, "event", p.Event, "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if n.secret != "" {
		req.Header.Set("X-IVRMap-Signature", Sign(n.secret, body))
	}

	resp, err := n.client.Do(req)
	if err != nil {
		n.metrics.WebhookDelivered(metrics.ClassifyStatus(0, err), time.Since(start))
		n.logger.Warn("webhook delivery failed", "job_id", p.JobID, "event", p.Event, "url", callbackURL, "error", err)
		return
	}
	resp.Body.Close()

	n.metrics.WebhookDelivered(metrics.ClassifyStatus(resp.StatusCode, nil), time.Since(start))
	if resp.StatusCode >= 400 {
		n.logger.Warn("webhook destination rejected delivery", "job_id", p.JobID, "event", p.Event, "status", resp.StatusCode)
	}
}

// Sign computes the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature lets webhook consumers check an incoming signature.
func VerifySignature(secret string, body []byte, signature string) bool {
	return hmac.Equal([]byte(Sign(secret, body)), []byte(signature))
}
