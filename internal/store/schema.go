package store

import (
	"database/sql"

	"codeberg.org/mutker/battmon/internal/errors"
)

func initSchema(db *sql.DB) error {
	errFactory := errors.New()

	_, err := db.Exec(`
        CREATE TABLE IF NOT EXISTS power_samples (
            timestamp INTEGER PRIMARY KEY,
            has_battery INTEGER,
            percent REAL,
            is_charging INTEGER,
            ac_connected INTEGER,
            temperature_c REAL,
            cycle_count INTEGER,
            capacity_percent REAL
        );

        CREATE TABLE IF NOT EXISTS sessions (
            session_id TEXT PRIMARY KEY,
            pid INTEGER,
            name TEXT,
            command TEXT,
            started_at INTEGER,
            last_seen_at INTEGER,
            ended_at INTEGER,
            samples INTEGER,
            cpu_accum REAL,
            mem_accum REAL,
            peak_cpu REAL,
            peak_mem REAL,
            impact_accum REAL
        );

        CREATE TABLE IF NOT EXISTS alerts (
            id TEXT PRIMARY KEY,
            rule_id TEXT,
            severity TEXT,
            message TEXT,
            action TEXT,
            timestamp INTEGER,
            percent REAL,
            is_charging INTEGER
        );

        CREATE TABLE IF NOT EXISTS settings (
            key TEXT PRIMARY KEY,
            value TEXT
        );
    `)
	if err != nil {
		return errFactory.Wrap(ErrSchemaInit, err)
	}

	return nil
}
