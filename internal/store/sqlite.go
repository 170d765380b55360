package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"sync"
	"time"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/sample"
	"codeberg.org/mutker/battmon/internal/session"

	_ "github.com/mattn/go-sqlite3"
)

type sqliteStore struct {
	db *sql.DB
	mu sync.Mutex
}

// Open creates (or reuses) the sqlite database at cfg.DBPath and prepares
// the schema. A disabled config yields a no-op store.
func Open(cfg Config) (Store, error) {
	errFactory := errors.New()

	if err := cfg.Validate(); err != nil {
		return nil, errFactory.Wrap(ErrInvalidConfig, err)
	}

	if !cfg.Enabled {
		logger.Debug().Msg("Persistence disabled, using no-op store")
		return NewNoop(), nil
	}

	logger.Debug().Msgf("Initializing persistence store at: %s", cfg.DBPath)

	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), defaultDirPerm); err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_journal=WAL&_auto_vacuum=2")
	if err != nil {
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, errFactory.Wrap(ErrStorageInit, err)
	}

	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) RecordSample(ctx context.Context, p sample.PowerSample) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO power_samples (
            timestamp, has_battery, percent, is_charging, ac_connected,
            temperature_c, cycle_count, capacity_percent
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT(timestamp) DO UPDATE SET
            has_battery = excluded.has_battery,
            percent = excluded.percent,
            is_charging = excluded.is_charging,
            ac_connected = excluded.ac_connected,
            temperature_c = excluded.temperature_c,
            cycle_count = excluded.cycle_count,
            capacity_percent = excluded.capacity_percent
    `,
		p.Timestamp.UnixMilli(),
		boolToInt(p.HasBattery),
		p.Percent,
		boolToInt(p.IsCharging),
		boolToInt(p.ACConnected),
		nullFloat(p.TemperatureC, p.HasTemperature),
		nullInt(p.CycleCount, p.HasCycleCount),
		nullFloat(p.CapacityPercent, p.HasCapacity),
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) RecordAlert(ctx context.Context, a alert.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO alerts (id, rule_id, severity, message, action, timestamp, percent, is_charging)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?)
    `,
		a.ID,
		a.RuleID,
		string(a.Severity),
		a.Message,
		a.Action,
		a.Timestamp.UnixMilli(),
		a.Snapshot.Percent,
		boolToInt(a.Snapshot.IsCharging),
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) StartSession(ctx context.Context, rec session.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO sessions (
            session_id, pid, name, command, started_at, last_seen_at,
            ended_at, samples, cpu_accum, mem_accum, peak_cpu, peak_mem, impact_accum
        ) VALUES (?, ?, ?, ?, ?, ?, NULL, ?, ?, ?, ?, ?, 0)
    `,
		rec.SessionID,
		rec.PID,
		rec.Name,
		rec.Command,
		rec.StartedAt.UnixMilli(),
		rec.LastSeenAt.UnixMilli(),
		rec.Samples,
		rec.CPUAccum,
		rec.MemAccum,
		rec.PeakCPU,
		rec.PeakMem,
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) UpdateSession(ctx context.Context, upd session.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
        UPDATE sessions SET
            last_seen_at = ?,
            samples = ?,
            cpu_accum = cpu_accum + ?,
            mem_accum = mem_accum + ?,
            peak_cpu = ?,
            peak_mem = ?,
            impact_accum = impact_accum + ?
        WHERE session_id = ?
    `,
		upd.LastSeenAt.UnixMilli(),
		upd.Samples,
		upd.CPUPercent,
		upd.MemoryPercent,
		upd.PeakCPU,
		upd.PeakMem,
		upd.Impact,
		upd.SessionID,
	)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New().WithData(ErrSessionNotFound, upd.SessionID)
	}

	return nil
}

func (s *sqliteStore) EndSession(ctx context.Context, sessionID string, endedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
        UPDATE sessions SET ended_at = ? WHERE session_id = ? AND ended_at IS NULL
    `, endedAt.UnixMilli(), sessionID)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return errors.New().WithData(ErrSessionNotFound, sessionID)
	}

	return nil
}

func (s *sqliteStore) GetSession(ctx context.Context, sessionID string) (SessionRow, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var (
		row                   SessionRow
		startedAt, lastSeenAt int64
		endedAt               sql.NullInt64
	)

	err := s.db.QueryRowContext(ctx, `
        SELECT session_id, pid, name, command, started_at, last_seen_at,
               ended_at, samples, cpu_accum, mem_accum, peak_cpu, peak_mem, impact_accum
        FROM sessions WHERE session_id = ?
    `, sessionID).Scan(
		&row.SessionID, &row.PID, &row.Name, &row.Command,
		&startedAt, &lastSeenAt, &endedAt,
		&row.Samples, &row.CPUAccum, &row.MemAccum,
		&row.PeakCPU, &row.PeakMem, &row.ImpactAccum,
	)
	if err == sql.ErrNoRows {
		return SessionRow{}, errors.New().WithData(ErrSessionNotFound, sessionID)
	}
	if err != nil {
		return SessionRow{}, errors.New().Wrap(ErrStorageAccess, err)
	}

	row.StartedAt = time.UnixMilli(startedAt)
	row.LastSeenAt = time.UnixMilli(lastSeenAt)
	if endedAt.Valid {
		row.EndedAt = time.UnixMilli(endedAt.Int64)
		row.Ended = true
	}

	return row, nil
}

func (s *sqliteStore) GetSetting(ctx context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", errors.New().WithData(ErrSettingNotFound, key)
	}
	if err != nil {
		return "", errors.New().Wrap(ErrStorageAccess, err)
	}

	return value, nil
}

func (s *sqliteStore) SetSetting(ctx context.Context, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
        INSERT INTO settings (key, value) VALUES (?, ?)
        ON CONFLICT(key) DO UPDATE SET value = excluded.value
    `, key, value)
	if err != nil {
		return errors.New().Wrap(ErrStorageAccess, err)
	}

	return nil
}

func (s *sqliteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		logger.Warn().Err(err).Msg("WAL checkpoint failed on close")
	}

	if err := s.db.Close(); err != nil {
		return errors.New().Wrap(ErrStorageClose, err)
	}

	return nil
}

func nullFloat(v float64, ok bool) any {
	if !ok {
		return nil
	}
	return v
}

func nullInt(v int, ok bool) any {
	if !ok {
		return nil
	}
	return v
}
