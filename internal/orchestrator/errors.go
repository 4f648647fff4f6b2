package orchestrator

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned for unknown or already-evicted job ids.
var ErrNotFound = errors.New("job not found")

// ErrTerminal is returned by Cancel when the job already reached a terminal
// state and cannot transition again.
var ErrTerminal = errors.New("job already in a terminal state")

// ErrCallTimeout rejects a completion handle when no call-completion signal
// arrives within the per-iteration deadline.
var ErrCallTimeout = errors.New("timed out waiting for call completion")

// ErrCancelled rejects a completion handle when the job is cancelled while
// the workflow is awaiting it.
var ErrCancelled = errors.New("job cancelled")

// errHandleOutstanding marks a programming-contract violation: the workflow
// tried to arm a second completion handle while one was still pending.
var errHandleOutstanding = errors.New("a completion handle is already outstanding")

// ValidationError describes a malformed submission. It is returned
// synchronously by Submit, before any asynchronous work starts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid request: %s %s", e.Field, e.Reason)
}
