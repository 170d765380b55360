package store

import (
	"context"
	"time"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/sample"
	"codeberg.org/mutker/battmon/internal/session"
)

// Store persists samples, the session journal, fired alerts, and opaque
// settings. The engine treats every write as fire-and-forget: failures are
// logged and dropped, and in-memory state remains the source of truth for
// the running process.
type Store interface {
	session.Journal
	alert.Recorder

	RecordSample(ctx context.Context, s sample.PowerSample) error
	GetSession(ctx context.Context, sessionID string) (SessionRow, error)
	GetSetting(ctx context.Context, key string) (string, error)
	SetSetting(ctx context.Context, key, value string) error
	Close() error
}

// Settings keys persisted as opaque blobs.
const (
	SettingMode       = "operating_mode"
	SettingThresholds = "thresholds"
	SettingBootMarker = "boot_marker"
)

// SessionRow is a stored session journal entry.
type SessionRow struct {
	SessionID   string
	PID         int32
	Name        string
	Command     string
	StartedAt   time.Time
	LastSeenAt  time.Time
	EndedAt     time.Time
	Ended       bool
	Samples     int
	CPUAccum    float64
	MemAccum    float64
	PeakCPU     float64
	PeakMem     float64
	ImpactAccum float64
}
