package orchestrator

import (
	"sync"
	"time"

	"github.com/kalambet/ivrmap/internal/ledger"
	"github.com/kalambet/ivrmap/internal/telephony"
)

// Status is an exploration job's lifecycle state.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether s is a final state. A job that reached a terminal
// state never transitions again.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// Request is an exploration submission.
type Request struct {
	PhoneNumber string `json:"phoneNumber"`
	CallbackURL string `json:"callbackUrl,omitempty"`
}

// Result is the output of a completed job: the synthesized context document
// plus the full raw leg set it was folded from.
type Result struct {
	Context string       `json:"context"`
	Legs    []ledger.Leg `json:"legs"`
}

// Snapshot is a consistent point-in-time view of a job, safe to hand to
// callers while the workflow keeps running.
type Snapshot struct {
	ID        string    `json:"id"`
	Status    Status    `json:"status"`
	Result    *Result   `json:"result,omitempty"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Job holds the mutable state of one exploration. All fields behind mu;
// every transition goes through the methods below, which never move a job
// out of a terminal state.
type Job struct {
	mu        sync.Mutex
	id        string
	request   Request
	status    Status
	result    *Result
	errMsg    string
	createdAt time.Time
	updatedAt time.Time
	expiresAt time.Time

	// pending is the at-most-one outstanding completion handle.
	pending *Completion
}

func newJob(id string, req Request, ttl time.Duration) *Job {
	now := time.Now().UTC()
	return &Job{
		id:        id,
		request:   req,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
		expiresAt: now.Add(ttl),
	}
}

// ID returns the job's immutable identifier.
func (j *Job) ID() string {
	return j.id
}

// Request returns the submission the job was created from.
func (j *Job) Request() Request {
	return j.request
}

// ExpiresAt returns the TTL deadline assigned at creation.
func (j *Job) ExpiresAt() time.Time {
	return j.expiresAt
}

// Snapshot returns a committed view of the job; never a torn read.
func (j *Job) Snapshot() Snapshot {
	j.mu.Lock()
	defer j.mu.Unlock()
	return Snapshot{
		ID:        j.id,
		Status:    j.status,
		Result:    j.result,
		Error:     j.errMsg,
		CreatedAt: j.createdAt,
		UpdatedAt: j.updatedAt,
	}
}

// begin moves pending → in-progress. Returns false if the job was cancelled
// before the workflow got to run.
func (j *Job) begin() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status != StatusPending {
		return false
	}
	j.status = StatusInProgress
	j.updatedAt = time.Now().UTC()
	return true
}

// complete transitions to completed with result. No-op on terminal jobs.
func (j *Job) complete(result *Result) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	j.status = StatusCompleted
	j.result = result
	j.updatedAt = time.Now().UTC()
	return true
}

// fail transitions to failed, capturing the error message. No-op on terminal
// jobs.
func (j *Job) fail(errMsg string) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	j.status = StatusFailed
	j.errMsg = errMsg
	j.updatedAt = time.Now().UTC()
	return true
}

// cancel transitions to cancelled. Any outstanding completion handle is
// rejected with ErrCancelled before the transition, so the awaiting workflow
// unblocks promptly and observes a cancellation, not a timeout. Returns false
// if the job was already terminal.
func (j *Job) cancel() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return false
	}
	if j.pending != nil {
		j.pending.reject(ErrCancelled)
		j.pending = nil
	}
	j.status = StatusCancelled
	j.updatedAt = time.Now().UTC()
	return true
}

// cancelled reports whether the job has been cancelled.
func (j *Job) cancelled() bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.status == StatusCancelled
}

// armCompletion creates and registers the iteration's completion handle.
// The workflow loop guarantees the previous handle was cleared first; a
// still-outstanding handle is a programming-contract violation.
func (j *Job) armCompletion() (*Completion, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.status.Terminal() {
		return nil, ErrCancelled
	}
	if j.pending != nil {
		return nil, errHandleOutstanding
	}
	c := newCompletion()
	j.pending = c
	return c, nil
}

// clearPending drops the outstanding-handle reference if it still points at
// c. Called by the workflow after Await resolves, whatever the outcome.
func (j *Job) clearPending(c *Completion) {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.pending == c {
		j.pending = nil
	}
}

// fulfillPending resolves the outstanding handle with session data. Returns
// false when no handle is outstanding or it was already resolved — a late
// completion signal is a safe no-op, not an error.
func (j *Job) fulfillPending(session telephony.SessionData) bool {
	j.mu.Lock()
	pending := j.pending
	j.mu.Unlock()
	if pending == nil {
		return false
	}
	return pending.fulfill(session)
}
