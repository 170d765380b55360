package sample

import "codeberg.org/mutker/battmon/internal/errors"

const (
	ErrPowerRead     = errors.ErrorCode("sample_power_read_failed")
	ErrProcessList   = errors.ErrorCode("sample_process_list_failed")
	ErrSourceTimeout = errors.ErrorCode("sample_source_timeout")
)
