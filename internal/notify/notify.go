// Package notify delivers fired alerts to their sinks. The default sink
// writes structured log lines; Multi fans a single alert out to several
// sinks without letting one failure starve the rest.
package notify

import (
	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/logger"
)

type logSink struct{}

// NewLogSink returns a Notifier that emits each alert as a structured
// log line at a level matching its severity.
func NewLogSink() alert.Notifier {
	return logSink{}
}

func (logSink) Notify(a alert.Alert) {
	evt := logger.Info()
	switch a.Severity {
	case alert.SeverityWarning:
		evt = logger.Warn()
	case alert.SeverityCritical:
		evt = logger.Error()
	}

	evt.Str("alert_id", a.ID).
		Str("rule", a.RuleID).
		Str("severity", string(a.Severity)).
		Str("action", a.Action).
		Float64("percent", a.Snapshot.Percent).
		Msg(a.Message)
}

type multi struct {
	sinks []alert.Notifier
}

// Multi returns a Notifier that delivers to every given sink in order.
// Nil sinks are skipped.
func Multi(sinks ...alert.Notifier) alert.Notifier {
	kept := make([]alert.Notifier, 0, len(sinks))
	for _, s := range sinks {
		if s != nil {
			kept = append(kept, s)
		}
	}

	return multi{sinks: kept}
}

func (m multi) Notify(a alert.Alert) {
	for _, s := range m.sinks {
		s.Notify(a)
	}
}
