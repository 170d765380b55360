package config

import "codeberg.org/mutker/battmon/internal/errors"

const (
	ErrReadConfigFile  = errors.ErrorCode("failed_read_config_file")
	ErrUnmarshalConfig = errors.ErrorCode("failed_unmarshal_config")
	ErrInvalidLogLevel = errors.ErrorCode("invalid_log_level")
	ErrInvalidMode     = errors.ErrorCode("invalid_mode")
	ErrInvalidCapacity = errors.ErrorCode("invalid_history_capacity")
)
