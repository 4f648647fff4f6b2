package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// JobRecord is the durable snapshot of an exploration job. The orchestrator
// writes one on every state transition so status queries survive a restart
// and expired jobs can be swept by TTL.
type JobRecord struct {
	ID            string
	PhoneNumber   string
	CallbackURL   string
	Status        string
	Error         string
	ContextResult string
	LegsJSON      string // JSON array of legs, present once completed
	CreatedAt     time.Time
	UpdatedAt     time.Time
	ExpiresAt     time.Time
}
