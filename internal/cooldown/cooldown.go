// Package cooldown provides a shared timestamp tracker keyed by identifier.
// The alert engine uses it to enforce per-rule cooldowns; the watchdog uses
// the same tracker to measure time since the last successful sample.
package cooldown

import (
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/clock"
)

// Tracker records the last time an identified event happened.
type Tracker struct {
	clk       clock.Clock
	mu        sync.Mutex
	lastFired map[string]time.Time
}

// NewTracker creates a Tracker using the given clock.
func NewTracker(clk clock.Clock) *Tracker {
	return &Tracker{
		clk:       clk,
		lastFired: make(map[string]time.Time),
	}
}

// Ready reports whether at least d has elapsed since id last fired.
// An id that never fired is always ready.
func (t *Tracker) Ready(id string, d time.Duration) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastFired[id]
	if !ok {
		return true
	}

	return t.clk.Now().Sub(last) >= d
}

// Mark records id as having fired now.
func (t *Tracker) Mark(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastFired[id] = t.clk.Now()
}

// Since returns the elapsed time since id last fired.
// The second return value is false if id never fired.
func (t *Tracker) Since(id string) (time.Duration, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	last, ok := t.lastFired[id]
	if !ok {
		return 0, false
	}

	return t.clk.Now().Sub(last), true
}

// Reset forgets id so the next Ready check succeeds immediately.
func (t *Tracker) Reset(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	delete(t.lastFired, id)
}

// Clear forgets all recorded identifiers.
func (t *Tracker) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.lastFired = make(map[string]time.Time)
}
