package replay

import (
	"context"
	"sync"
)

// Controller exposes pause/resume for a running replay. Safe for
// concurrent use: a caller on another goroutine can pause or resume
// while the driver is mid-loop.
type Controller struct {
	mu       sync.Mutex
	paused   bool
	resumeCh chan struct{}
}

// NewController returns a controller in the running (not paused) state.
func NewController() *Controller {
	return &Controller{resumeCh: make(chan struct{})}
}

// Pause requests the driver suspend before its next event. Idempotent.
func (c *Controller) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.paused {
		c.paused = true
		c.resumeCh = make(chan struct{})
	}
}

// Resume releases any goroutine blocked in WaitUntilResumed. Idempotent.
func (c *Controller) Resume() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.paused {
		c.paused = false
		close(c.resumeCh)
	}
}

// IsPaused reports the current pause state.
func (c *Controller) IsPaused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// WaitUntilResumed blocks while paused, returning immediately if not.
// Returns ctx.Err() if the context is canceled first.
func (c *Controller) WaitUntilResumed(ctx context.Context) error {
	c.mu.Lock()
	if !c.paused {
		c.mu.Unlock()
		return nil
	}
	ch := c.resumeCh
	c.mu.Unlock()

	select {
	case <-ch:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
