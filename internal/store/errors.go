package store

import "codeberg.org/mutker/battmon/internal/errors"

const (
	// Configuration errors
	ErrInvalidConfig = errors.ErrorCode("store_invalid_config")
	ErrInvalidDBPath = errors.ErrorCode("store_invalid_db_path")

	// Storage errors
	ErrStorageInit   = errors.ErrorCode("store_init_failed")
	ErrStorageAccess = errors.ErrorCode("store_access_failed")
	ErrStorageClose  = errors.ErrorCode("store_close_failed")
	ErrSchemaInit    = errors.ErrorCode("store_schema_init_failed")

	// Lookup errors
	ErrSettingNotFound = errors.ErrorCode("store_setting_not_found")
	ErrSessionNotFound = errors.ErrorCode("store_session_not_found")
)
