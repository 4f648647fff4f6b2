package orchestrator

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/ivrmap/internal/telephony"
)

func TestCompletion_FulfilledBeforeTimeout(t *testing.T) {
	c := newCompletion()

	go func() {
		c.fulfill(telephony.SessionData{CallID: "call-1", Outcome: "reached queue"})
	}()

	session, err := c.Await(time.Second)
	if err != nil {
		t.Fatalf("Await: %v", err)
	}
	if session.CallID != "call-1" {
		t.Errorf("CallID = %q, want %q", session.CallID, "call-1")
	}
}

func TestCompletion_TimeoutRejects(t *testing.T) {
	c := newCompletion()

	_, err := c.Await(10 * time.Millisecond)
	if !errors.Is(err, ErrCallTimeout) {
		t.Fatalf("Await error = %v, want ErrCallTimeout", err)
	}

	// A completion signal arriving after the timeout must be a no-op.
	if c.fulfill(telephony.SessionData{CallID: "late"}) {
		t.Error("fulfill succeeded on an already-timed-out handle")
	}
	if _, err := c.Await(10 * time.Millisecond); !errors.Is(err, ErrCallTimeout) {
		t.Errorf("second Await error = %v, want the original ErrCallTimeout", err)
	}
}

func TestCompletion_CancellationBeatsImminentTimeout(t *testing.T) {
	c := newCompletion()
	c.reject(ErrCancelled)

	// Even with an immediate deadline the awaiter must observe the
	// cancellation, not a timeout.
	_, err := c.Await(0)
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("Await error = %v, want ErrCancelled", err)
	}
}

func TestCompletion_ExactlyOneResolutionWins(t *testing.T) {
	c := newCompletion()

	const attempts = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0
	for i := 0; i < attempts; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			if c.fulfill(telephony.SessionData{CallID: "winner"}) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
		go func() {
			defer wg.Done()
			if c.reject(ErrCancelled) {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if winners != 1 {
		t.Errorf("resolutions won = %d, want exactly 1", winners)
	}
}
