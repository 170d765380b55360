package session

import (
	"context"
	"time"
)

// Record is the tracked lifetime of one observed process. StartedAt is the
// moment this tracker first saw the pid, never an OS-reported start time.
type Record struct {
	PID        int32
	Name       string
	Command    string
	SessionID  string
	StartedAt  time.Time
	LastSeenAt time.Time
	Samples    int
	CPUAccum   float64
	MemAccum   float64
	PeakCPU    float64
	PeakMem    float64
}

// AvgCPU returns the mean CPU percentage across all accumulated samples.
func (r Record) AvgCPU() float64 {
	if r.Samples == 0 {
		return 0
	}

	return r.CPUAccum / float64(r.Samples)
}

// AvgMem returns the mean memory percentage across all accumulated samples.
func (r Record) AvgMem() float64 {
	if r.Samples == 0 {
		return 0
	}

	return r.MemAccum / float64(r.Samples)
}

// Update carries one tick's incremental accumulation for a live session.
// Impact is the battery-impact estimate for this tick's delta only.
type Update struct {
	SessionID     string
	LastSeenAt    time.Time
	CPUPercent    float64
	MemoryPercent float64
	Impact        float64
	Samples       int
	PeakCPU       float64
	PeakMem       float64
}

// Journal receives session lifecycle notifications. All calls are fire and
// forget from the tracker's point of view; failures are logged, never
// propagated.
type Journal interface {
	StartSession(ctx context.Context, rec Record) error
	UpdateSession(ctx context.Context, upd Update) error
	EndSession(ctx context.Context, sessionID string, endedAt time.Time) error
}

// Consumer is a ranked view of a live session for top-consumer queries.
type Consumer struct {
	Record
	RunningMinutes float64
	Impact         float64
}
