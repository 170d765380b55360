package alert

import (
	"context"
	"sync"

	"codeberg.org/mutker/battmon/internal/clock"
	"codeberg.org/mutker/battmon/internal/cooldown"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/sample"
	"github.com/google/uuid"
)

const maxAlerts = 50

// Engine evaluates the rule set against consecutive power samples, enforcing
// per-rule cooldowns and keeping a bounded most-recent-first alert list.
type Engine struct {
	clk       clock.Clock
	cooldowns *cooldown.Tracker
	notifier  Notifier
	recorder  Recorder

	mu         sync.RWMutex
	thresholds Thresholds
	rules      []Rule
	alerts     []Alert
}

// NewEngine creates an Engine with the built-in rules bound to thresholds.
// notifier and recorder may be nil.
func NewEngine(thresholds Thresholds, clk clock.Clock, cooldowns *cooldown.Tracker, notifier Notifier, recorder Recorder) (*Engine, error) {
	errFactory := errors.New()

	if err := thresholds.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidThreshold, err)
	}

	return &Engine{
		clk:        clk,
		cooldowns:  cooldowns,
		notifier:   notifier,
		recorder:   recorder,
		thresholds: thresholds,
		rules:      BuiltinRules(thresholds),
	}, nil
}

// Evaluate runs every rule against cur (with prev for trend rules) in fixed
// order. Rules inside their cooldown are skipped; a panicking predicate is
// contained and never aborts the remaining rules. Returns the alerts fired
// on this evaluation.
func (e *Engine) Evaluate(cur, prev *sample.PowerSample) []Alert {
	if cur == nil || !cur.HasBattery {
		return nil
	}

	e.mu.Lock()
	rules := e.rules
	e.mu.Unlock()

	var fired []Alert
	for i := range rules {
		rule := &rules[i]
		if !e.cooldowns.Ready(rule.ID, rule.Cooldown) {
			continue
		}
		if !e.evalPredicate(rule, cur, prev) {
			continue
		}

		a := Alert{
			ID:        uuid.NewString(),
			RuleID:    rule.ID,
			Severity:  rule.Severity,
			Message:   rule.Message(cur),
			Action:    rule.Action,
			Timestamp: e.clk.Now(),
			Snapshot:  *cur,
		}

		e.prepend(a)
		e.cooldowns.Mark(rule.ID)
		e.deliver(a)
		fired = append(fired, a)
	}

	return fired
}

// evalPredicate runs a rule predicate, containing panics.
func (e *Engine) evalPredicate(rule *Rule, cur, prev *sample.PowerSample) (result bool) {
	defer func() {
		if r := recover(); r != nil {
			logger.Warn().
				Str("error_code", string(ErrPredicatePanic)).
				Str("rule", rule.ID).
				Interface("panic", r).
				Msg("Alert predicate panicked; rule skipped")
			result = false
		}
	}()

	return rule.Predicate(cur, prev)
}

func (e *Engine) prepend(a Alert) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.alerts = append([]Alert{a}, e.alerts...)
	if len(e.alerts) > maxAlerts {
		e.alerts = e.alerts[:maxAlerts]
	}
}

// deliver forwards a to the notification sink and the persistence log.
// Both are best effort.
func (e *Engine) deliver(a Alert) {
	if e.notifier != nil {
		e.notifier.Notify(a)
	}
	if e.recorder != nil {
		if err := e.recorder.RecordAlert(context.Background(), a); err != nil {
			logger.Warn().
				Str("error_code", string(ErrRecordFailed)).
				Str("rule", a.RuleID).
				Err(err).
				Msg("Failed to persist alert")
		}
	}
}

// Alerts returns up to limit alerts, most recent first. A non-positive limit
// returns all retained alerts.
func (e *Engine) Alerts(limit int) []Alert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	n := len(e.alerts)
	if limit > 0 && limit < n {
		n = limit
	}

	out := make([]Alert, n)
	copy(out, e.alerts[:n])

	return out
}

// ClearAlerts removes all retained alerts.
func (e *Engine) ClearAlerts() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.alerts = nil
}

// DismissAlert removes the alert with the given id, reporting whether it was
// present.
func (e *Engine) DismissAlert(id string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i, a := range e.alerts {
		if a.ID == id {
			e.alerts = append(e.alerts[:i], e.alerts[i+1:]...)
			return true
		}
	}

	return false
}

// UpdateThresholds merges patch into the current thresholds and rebuilds the
// rule set. Invalid values are rejected synchronously and leave the engine
// unchanged.
func (e *Engine) UpdateThresholds(patch ThresholdPatch) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	merged, err := e.thresholds.Merge(patch)
	if err != nil {
		return err
	}

	e.thresholds = merged
	e.rules = BuiltinRules(merged)

	return nil
}

// Thresholds returns the current threshold set.
func (e *Engine) Thresholds() Thresholds {
	e.mu.RLock()
	defer e.mu.RUnlock()

	return e.thresholds
}
