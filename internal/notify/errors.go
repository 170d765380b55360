package notify

import "codeberg.org/mutker/battmon/internal/errors"

const (
	ErrBusConnect = errors.ErrorCode("notify_bus_connect_failed")
)
