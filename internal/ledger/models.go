// Package ledger persists discovered menu legs — the single source of truth
// for what has already been explored on a target phone tree.
package ledger

import "time"

// Status describes how far a leg's documentation got.
type Status string

const (
	StatusCompleted  Status = "COMPLETED"
	StatusInProgress Status = "IN_PROGRESS"
	StatusFailed     Status = "FAILED"
)

// Menu is one prompt encountered while traversing a leg, in announcement
// order. AvailableOptions preserves the order options were read out and is
// never deduplicated.
type Menu struct {
	MenuID           string   `json:"menuId"`
	AudioTranscript  string   `json:"audioTranscript"`
	AvailableOptions []string `json:"availableOptions"`
}

// Leg records one complete single-call exploration session: the DTMF path
// taken, the chain of menus traversed from root to terminal, and what the
// call ended on. LegNumber is assigned by the producer, not by the store.
type Leg struct {
	LegNumber       int       `json:"legNumber"`
	Path            string    `json:"path"`
	ExplorationDate time.Time `json:"explorationDate"`
	MenuSequence    []Menu    `json:"menuSequence"`
	FinalOutcome    string    `json:"finalOutcome"`
	Status          Status    `json:"status"`
	NextTarget      string    `json:"nextTarget,omitempty"`
}
