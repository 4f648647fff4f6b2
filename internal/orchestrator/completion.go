package orchestrator

import (
	"sync"
	"time"

	"github.com/kalambet/ivrmap/internal/telephony"
)

// Completion is a one-shot handle bridging the external call-completion
// callback into the sequential workflow. It resolves exactly once: fulfilled
// with session data, rejected with ErrCallTimeout, or rejected with
// ErrCancelled. Whichever resolution lands first wins; later attempts are
// no-ops. Single producer (the callback, the timeout timer, or Cancel) and a
// single consumer (the workflow goroutine blocked in Await).
type Completion struct {
	once    sync.Once
	done    chan struct{}
	session telephony.SessionData
	err     error
}

func newCompletion() *Completion {
	return &Completion{done: make(chan struct{})}
}

// fulfill resolves the handle with session data. Returns false if the handle
// was already resolved.
func (c *Completion) fulfill(session telephony.SessionData) bool {
	return c.resolve(session, nil)
}

// reject resolves the handle with err. Returns false if the handle was
// already resolved.
func (c *Completion) reject(err error) bool {
	return c.resolve(telephony.SessionData{}, err)
}

func (c *Completion) resolve(session telephony.SessionData, err error) bool {
	won := false
	c.once.Do(func() {
		c.session = session
		c.err = err
		close(c.done)
		won = true
	})
	return won
}

// Await blocks until the handle resolves. If timeout elapses first, Await
// rejects the handle itself with ErrCallTimeout, so a completion signal
// arriving later finds an already-resolved handle and becomes a no-op.
func (c *Completion) Await(timeout time.Duration) (telephony.SessionData, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-c.done:
	case <-timer.C:
		c.reject(ErrCallTimeout)
		<-c.done
	}
	return c.session, c.err
}
