package notify

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

type capture struct {
	mu        sync.Mutex
	payloads  []Payload
	bodies    [][]byte
	signature string
}

func captureServer(t *testing.T, c *capture) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("reading webhook body: %v", err)
			return
		}
		var p Payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Errorf("decoding webhook body: %v", err)
			return
		}
		c.mu.Lock()
		c.payloads = append(c.payloads, p)
		c.bodies = append(c.bodies, body)
		c.signature = r.Header.Get("X-IVRMap-Signature")
		c.mu.Unlock()
	}))
	t.Cleanup(srv.Close)
	return srv
}

func waitForPayloads(t *testing.T, c *capture, n int) []Payload {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		c.mu.Lock()
		got := len(c.payloads)
		c.mu.Unlock()
		if got >= n {
			c.mu.Lock()
			defer c.mu.Unlock()
			return append([]Payload(nil), c.payloads...)
		}
		select {
		case <-deadline:
			t.Fatalf("timed out waiting for %d payloads, got %d", n, got)
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestNotifier_DeliversPayload(t *testing.T) {
	var c capture
	srv := captureServer(t, &c)

	n := NewNotifier("", nil)
	n.Notify(srv.URL, "job-1", EventJobCreated, map[string]string{"phoneNumber": "+15551234567"})

	got := waitForPayloads(t, &c, 1)
	p := got[0]
	if p.JobID != "job-1" {
		t.Errorf("JobID = %q, want %q", p.JobID, "job-1")
	}
	if p.Event != EventJobCreated {
		t.Errorf("Event = %q, want %q", p.Event, EventJobCreated)
	}
	if p.Timestamp.IsZero() {
		t.Error("Timestamp is zero")
	}
}

func TestNotifier_SignsWhenSecretConfigured(t *testing.T) {
	var c capture
	srv := captureServer(t, &c)

	n := NewNotifier("hunter2", nil)
	n.Notify(srv.URL, "job-2", EventCompleted, nil)

	waitForPayloads(t, &c, 1)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.signature == "" {
		t.Fatal("no signature header on delivery")
	}
	if !VerifySignature("hunter2", c.bodies[0], c.signature) {
		t.Error("signature does not verify against the delivered body")
	}
	if VerifySignature("wrong", c.bodies[0], c.signature) {
		t.Error("signature verified under the wrong secret")
	}
}

func TestNotifier_NoCallbackURLIsNoop(t *testing.T) {
	n := NewNotifier("", nil)
	// Must not panic or block; there is nothing to deliver to.
	n.Notify("", "job-3", EventFailed, nil)
}

func TestNotifier_FailureIsAbsorbed(t *testing.T) {
	n := NewNotifier("", nil)
	// Unroutable destination: delivery fails in the background and the
	// caller never observes it.
	n.Notify("http://127.0.0.1:1/hook", "job-4", EventFailed, nil)
	time.Sleep(50 * time.Millisecond)
}
