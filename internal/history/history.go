// Package history keeps a bounded, most-recent-last buffer of power samples
// for trend queries and discharge analysis.
package history

import (
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/sample"
)

const DefaultCapacity = 720

// Ring is a bounded buffer of PowerSample. Appending past capacity drops the
// oldest sample. All methods are safe for concurrent use; readers observe
// either pre- or post-append state.
type Ring struct {
	mu       sync.RWMutex
	capacity int
	samples  []sample.PowerSample
}

// NewRing creates a Ring holding at most capacity samples.
func NewRing(capacity int) *Ring {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}

	return &Ring{
		capacity: capacity,
		samples:  make([]sample.PowerSample, 0, capacity),
	}
}

// Append adds s, dropping the oldest sample when full.
func (r *Ring) Append(s sample.PowerSample) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if len(r.samples) == r.capacity {
		copy(r.samples, r.samples[1:])
		r.samples = r.samples[:r.capacity-1]
	}
	r.samples = append(r.samples, s)
}

// Len returns the number of stored samples.
func (r *Ring) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.samples)
}

// Capacity returns the maximum number of stored samples.
func (r *Ring) Capacity() int {
	return r.capacity
}

// Latest returns the most recent sample, if any.
func (r *Ring) Latest() (sample.PowerSample, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.samples) == 0 {
		return sample.PowerSample{}, false
	}

	return r.samples[len(r.samples)-1], true
}

// All returns a copy of the stored samples, oldest first.
func (r *Ring) All() []sample.PowerSample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]sample.PowerSample, len(r.samples))
	copy(out, r.samples)

	return out
}

// Since returns a copy of the samples taken at or after cutoff, oldest first.
func (r *Ring) Since(cutoff time.Time) []sample.PowerSample {
	r.mu.RLock()
	defer r.mu.RUnlock()

	start := len(r.samples)
	for i, s := range r.samples {
		if !s.Timestamp.Before(cutoff) {
			start = i
			break
		}
	}

	out := make([]sample.PowerSample, len(r.samples)-start)
	copy(out, r.samples[start:])

	return out
}
