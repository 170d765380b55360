// Package session reconciles noisy per-tick process samples into a stable
// map of live sessions, creating a session on first sighting and evicting it
// after a grace window of absence.
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/sample"
	"github.com/google/uuid"
)

const (
	// Samples below this CPU level with no memory usage are idle noise.
	minCPUPercent = 0.05

	// Battery-impact weights for one tick's delta.
	cpuImpactWeight = 0.5
	memImpactWeight = 0.1

	// Top-consumer ranking weight for memory relative to CPU.
	consumerMemWeight = 0.2
)

// Tracker holds the live session map. Mutations happen only from Reconcile
// (the owning tick); read queries may run concurrently and observe pre- or
// post-tick state.
type Tracker struct {
	journal Journal

	mu       sync.RWMutex
	grace    time.Duration
	sessions map[int32]*Record
}

// NewTracker creates a Tracker that evicts sessions unseen for longer than
// grace. journal may be nil.
func NewTracker(grace time.Duration, journal Journal) *Tracker {
	return &Tracker{
		journal:  journal,
		grace:    grace,
		sessions: make(map[int32]*Record),
	}
}

// SetGraceWindow adjusts the eviction grace window, typically after an
// operating-mode change alters the sampling interval.
func (t *Tracker) SetGraceWindow(grace time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.grace = grace
}

// Reconcile folds one tick's sample batch into the session map at time now.
// Idle-noise samples are filtered, unknown pids start sessions, known pids
// accumulate, and pids absent past the grace window are evicted with exactly
// one end notification.
func (t *Tracker) Reconcile(batch []sample.ProcessSample, now time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	seen := make(map[int32]bool, len(batch))
	for i := range batch {
		s := &batch[i]
		if s.CPUPercent <= minCPUPercent && s.MemoryPercent <= 0 {
			continue
		}
		seen[s.PID] = true

		if rec, ok := t.sessions[s.PID]; ok {
			t.accumulate(rec, s, now)
		} else {
			t.start(s, now)
		}
	}

	for pid, rec := range t.sessions {
		if seen[pid] {
			continue
		}
		if now.Sub(rec.LastSeenAt) > t.grace {
			delete(t.sessions, pid)
			t.notifyEnd(rec.SessionID, now)
		}
	}
}

func (t *Tracker) start(s *sample.ProcessSample, now time.Time) {
	rec := &Record{
		PID:        s.PID,
		Name:       s.Name,
		Command:    s.Command,
		SessionID:  uuid.NewString(),
		StartedAt:  now,
		LastSeenAt: now,
		Samples:    1,
		CPUAccum:   s.CPUPercent,
		MemAccum:   s.MemoryPercent,
		PeakCPU:    s.CPUPercent,
		PeakMem:    s.MemoryPercent,
	}
	t.sessions[s.PID] = rec

	if t.journal != nil {
		if err := t.journal.StartSession(context.Background(), *rec); err != nil {
			logger.Warn().
				Str("session_id", rec.SessionID).
				Int32("pid", rec.PID).
				Err(err).
				Msg("Failed to journal session start")
		}
	}
}

func (t *Tracker) accumulate(rec *Record, s *sample.ProcessSample, now time.Time) {
	rec.Samples++
	rec.CPUAccum += s.CPUPercent
	rec.MemAccum += s.MemoryPercent
	if s.CPUPercent > rec.PeakCPU {
		rec.PeakCPU = s.CPUPercent
	}
	if s.MemoryPercent > rec.PeakMem {
		rec.PeakMem = s.MemoryPercent
	}
	rec.LastSeenAt = now

	if t.journal != nil {
		upd := Update{
			SessionID:     rec.SessionID,
			LastSeenAt:    now,
			CPUPercent:    s.CPUPercent,
			MemoryPercent: s.MemoryPercent,
			Impact:        s.CPUPercent*cpuImpactWeight + s.MemoryPercent*memImpactWeight,
			Samples:       rec.Samples,
			PeakCPU:       rec.PeakCPU,
			PeakMem:       rec.PeakMem,
		}
		if err := t.journal.UpdateSession(context.Background(), upd); err != nil {
			logger.Warn().
				Str("session_id", rec.SessionID).
				Int32("pid", rec.PID).
				Err(err).
				Msg("Failed to journal session update")
		}
	}
}

func (t *Tracker) notifyEnd(sessionID string, now time.Time) {
	if t.journal == nil {
		return
	}
	if err := t.journal.EndSession(context.Background(), sessionID, now); err != nil {
		logger.Warn().
			Str("session_id", sessionID).
			Err(err).
			Msg("Failed to journal session end")
	}
}

// Sessions returns a snapshot of all live sessions.
func (t *Tracker) Sessions() []Record {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Record, 0, len(t.sessions))
	for _, rec := range t.sessions {
		out = append(out, *rec)
	}

	return out
}

// Len returns the number of live sessions.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()

	return len(t.sessions)
}

// TopConsumers ranks live sessions by estimated battery impact, heaviest
// first. The full ranking is returned; callers truncate as needed.
func (t *Tracker) TopConsumers(now time.Time) []Consumer {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]Consumer, 0, len(t.sessions))
	for _, rec := range t.sessions {
		minutes := now.Sub(rec.StartedAt).Minutes()
		if minutes < 0 {
			minutes = 0
		}
		out = append(out, Consumer{
			Record:         *rec,
			RunningMinutes: minutes,
			Impact:         rec.AvgCPU()*minutes + rec.AvgMem()*minutes*consumerMemWeight,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].Impact > out[j].Impact
	})

	return out
}

// Reset drops all live sessions without end notifications. Used when session
// accumulation state is reset on daemon start.
func (t *Tracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.sessions = make(map[int32]*Record)
}
