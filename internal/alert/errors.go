package alert

import "codeberg.org/mutker/battmon/internal/errors"

const (
	ErrInvalidThreshold = errors.ErrorCode("alert_invalid_threshold")
	ErrPredicatePanic   = errors.ErrorCode("alert_predicate_panicked")
	ErrRecordFailed     = errors.ErrorCode("alert_record_failed")
)
