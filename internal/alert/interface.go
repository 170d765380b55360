package alert

import (
	"context"
	"time"

	"codeberg.org/mutker/battmon/internal/sample"
)

// Severity classifies how urgent an alert is.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

// Rule is a declarative alert condition evaluated against consecutive power
// samples. Predicates receive the current sample and the previous one (which
// may be nil on the first tick).
type Rule struct {
	ID        string
	Severity  Severity
	Cooldown  time.Duration
	Predicate func(cur, prev *sample.PowerSample) bool
	Message   func(cur *sample.PowerSample) string
	Action    string
}

// Alert is one firing of a Rule. Immutable after creation; the engine only
// ever removes alerts (dismiss/clear), never mutates them.
type Alert struct {
	ID        string
	RuleID    string
	Severity  Severity
	Message   string
	Action    string
	Timestamp time.Time
	Snapshot  sample.PowerSample
}

// Notifier delivers alerts to the host. Best effort; a nil or failing
// notifier never affects engine bookkeeping.
type Notifier interface {
	Notify(a Alert)
}

// Recorder persists fired alerts. Fire and forget; write failures are logged
// and dropped.
type Recorder interface {
	RecordAlert(ctx context.Context, a Alert) error
}
