// Package timers implements the Timer Registry: two independent
// single-shot timer slots with replace-and-cancel-previous semantics,
// built on a clock.Clock so tests can drive them deterministically instead
// of racing real wall-clock timers.
package timers

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"
)

// Timer is a single scoped single-shot timer handle.
type Timer struct {
	timer *clock.Timer
}

// Stop cancels the timer. clock.Timer guarantees the callback does not run
// when Stop is called before the timer fires; a callback that has already
// started is not suppressed, so the node's timer callbacks re-check its
// state under the lock.
func (t *Timer) Stop() {
	if t == nil || t.timer == nil {
		return
	}
	t.timer.Stop()
}

// Slot names the two timer slots a node owns.
type Slot int

const (
	Election Slot = iota
	Heartbeat
)

// Registry owns a node's two timer slots and guarantees that replacing a
// slot cancels whatever was previously scheduled there.
type Registry struct {
	clock clock.Clock

	mu     sync.Mutex
	timers [2]*Timer
}

// NewRegistry builds a Registry against clk. Pass clock.New() in
// production and a *clock.Mock in tests.
func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{clock: clk}
}

// Clock returns the underlying clock, so callers can derive jittered
// durations from the same time source the registry schedules against.
func (r *Registry) Clock() clock.Clock {
	return r.clock
}

// Schedule arms the given slot to fire fn after d, cancelling whatever was
// previously scheduled in that slot.
func (r *Registry) Schedule(slot Slot, d time.Duration, fn func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.timers[slot]
	r.timers[slot] = &Timer{timer: r.clock.AfterFunc(d, fn)}
	if prev != nil {
		prev.Stop()
	}
}

// Cancel releases whatever is scheduled in the given slot, if anything.
func (r *Registry) Cancel(slot Slot) {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev := r.timers[slot]
	r.timers[slot] = nil
	if prev != nil {
		prev.Stop()
	}
}

// CancelAll releases every scheduled timer. Used on node shutdown.
func (r *Registry) CancelAll() {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, t := range r.timers {
		r.timers[i] = nil
		if t != nil {
			t.Stop()
		}
	}
}
