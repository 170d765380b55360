package notify

import (
	godbus "github.com/godbus/dbus/v5"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/logger"
)

const (
	notifyDest   = "org.freedesktop.Notifications"
	notifyPath   = godbus.ObjectPath("/org/freedesktop/Notifications")
	notifyMethod = "org.freedesktop.Notifications.Notify"

	notifyAppName = "battmon"
	notifyIcon    = "battery"

	// expireDefault lets the notification daemon pick the timeout.
	expireDefault = int32(-1)
)

type desktopSink struct {
	conn *godbus.Conn
}

// NewDesktopSink connects to the session bus and returns a Notifier that
// raises freedesktop desktop notifications. Headless hosts get an error and
// should fall back to the log sink alone.
func NewDesktopSink() (alert.Notifier, error) {
	conn, err := godbus.SessionBus()
	if err != nil {
		return nil, errors.New().Wrap(ErrBusConnect, err)
	}

	return &desktopSink{conn: conn}, nil
}

func (d *desktopSink) Notify(a alert.Alert) {
	hints := map[string]godbus.Variant{
		"urgency": godbus.MakeVariant(urgencyFor(a.Severity)),
	}

	call := d.conn.Object(notifyDest, notifyPath).Call(notifyMethod, 0,
		notifyAppName, uint32(0), notifyIcon,
		a.Message, a.Action,
		[]string{}, hints, expireDefault)
	if call.Err != nil {
		logger.Warn().Err(call.Err).
			Str("rule", a.RuleID).
			Msg("Desktop notification failed")
	}
}

// urgencyFor maps alert severity onto freedesktop notification urgency.
func urgencyFor(s alert.Severity) byte {
	switch s {
	case alert.SeverityCritical:
		return 2
	case alert.SeverityInfo:
		return 0
	default:
		return 1
	}
}
