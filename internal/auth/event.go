package auth

import (
	"context"
	"fmt"
	"sync"
	"time"
)

type flowState int

const (
	flowIdle flowState = iota
	flowPending
	flowSignaled
)

// Event is a one-shot, resettable completion signal used to hand a browser
// login result from the listener goroutine back to the waiting caller.
//
// It moves through three states: idle (no flow active), pending (flow active,
// not yet signaled), and signaled (flow completed). At most one flow may be
// pending at a time. Delivery happens through a per-flow channel that is
// closed exactly once, so a signal raised on any goroutine wakes the waiter
// without being lost or duplicated.
type Event struct {
	mu      sync.Mutex
	state   flowState
	success bool
	done    chan struct{}
}

// NewEvent returns an Event in the idle state.
func NewEvent() *Event {
	return &Event{}
}

// StartFlow transitions the event to pending, allocating a fresh completion
// channel. It is rejected while another flow is pending.
func (e *Event) StartFlow() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == flowPending {
		return fmt.Errorf("authentication flow already in progress")
	}

	e.state = flowPending
	e.success = false
	e.done = make(chan struct{})
	return nil
}

// Complete signals the event. It may be called from any goroutine, including
// the HTTP listener goroutine while the original caller is blocked in Wait.
// Signaling an already-signaled event is a no-op.
func (e *Event) Complete(success bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.state == flowSignaled {
		return
	}

	e.success = success
	if e.done != nil {
		close(e.done)
	}
	e.state = flowSignaled
}

// Reset returns the event to idle. Only called when no waiter is blocked,
// before starting a new flow or after aborting one.
func (e *Event) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.state = flowIdle
	e.success = false
	e.done = nil
}

// Pending reports whether a flow is active and not yet signaled.
func (e *Event) Pending() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state == flowPending
}

// Wait blocks until the event is signaled, the timeout elapses, or ctx is
// cancelled. It returns the completion result immediately when the event is
// already signaled, guarding against a completion that raced ahead of the
// wait. It returns false immediately when no flow is active. Timeout and
// cancellation flip the flow back to idle so a subsequent StartFlow is not
// rejected as already active.
func (e *Event) Wait(ctx context.Context, timeout time.Duration) bool {
	e.mu.Lock()
	switch e.state {
	case flowSignaled:
		success := e.success
		e.mu.Unlock()
		return success
	case flowIdle:
		e.mu.Unlock()
		return false
	}
	// Capture the pending flow's channel under the lock; Complete closes
	// exactly this channel, so the rendezvous cannot miss a wakeup.
	done := e.done
	e.mu.Unlock()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-done:
		e.mu.Lock()
		success := e.success
		e.mu.Unlock()
		return success
	case <-timer.C:
	case <-ctx.Done():
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	// The signal may have raced with the timer; honor it if it arrived.
	if e.state == flowSignaled {
		return e.success
	}
	e.state = flowIdle
	return false
}
