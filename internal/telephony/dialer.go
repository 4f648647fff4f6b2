// Package telephony is the boundary to the external call-execution service:
// the component that actually places calls, streams audio, sends DTMF, and
// lets an AI navigator document what it hears into the leg ledger. The
// orchestrator only ever asks it to start a call; everything after that
// arrives out of band through the job's call-completion callback.
package telephony

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const defaultTimeout = 30 * time.Second

// CallMetadata identifies the originating job so the call service can route
// its completion signal back to the right workflow.
type CallMetadata struct {
	JobID      string `json:"jobId"`
	TargetPath string `json:"targetPath"`
}

// SessionData is what the call service reports when a call ends. The
// orchestrator treats it as informational; the authoritative record of the
// call is whatever the service wrote to the leg ledger.
type SessionData struct {
	CallID     string `json:"callId"`
	TargetPath string `json:"targetPath,omitempty"`
	Outcome    string `json:"outcome,omitempty"`
}

// Dialer initiates one exploration call. Implementations must eventually
// deliver exactly one completion signal per call (or none, in which case the
// orchestrator's per-iteration timeout governs).
type Dialer interface {
	InitiateCall(ctx context.Context, targetNumber, sessionContext string, meta CallMetadata) (string, error)
}

// Client is an HTTP Dialer talking to a call-execution service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a Client for the call service at baseURL. apiKey may be
// empty when the service does not require authentication.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
	}
}

type callRequest struct {
	TargetNumber   string       `json:"targetNumber"`
	SessionContext string       `json:"sessionContext"`
	Metadata       CallMetadata `json:"metadata"`
}

type callResponse struct {
	CallID string `json:"callId"`
}

// InitiateCall asks the service to place a call and returns the service's
// call id. The call proceeds asynchronously after this returns.
func (c *Client) InitiateCall(ctx context.Context, targetNumber, sessionContext string, meta CallMetadata) (string, error) {
	body, err := json.Marshal(callRequest{
		TargetNumber:   targetNumber,
		SessionContext: sessionContext,
		Metadata:       meta,
	})
	if err != nil {
		return "", fmt.Errorf("marshaling call request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/calls", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating call request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling dialer service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("dialer service returned %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var out callResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("decoding dialer response: %w", err)
	}
	return out.CallID, nil
}
