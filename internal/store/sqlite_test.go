package store_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/sample"
	"codeberg.org/mutker/battmon/internal/session"
	"codeberg.org/mutker/battmon/internal/store"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

func openTestStore(t *testing.T) store.Store {
	t.Helper()

	cfg := store.Config{
		DBPath:  filepath.Join(t.TempDir(), "battmon.db"),
		Enabled: true,
	}
	s, err := store.Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	return s
}

func TestOpenDisabledReturnsNoop(t *testing.T) {
	s, err := store.Open(store.Config{Enabled: false})
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.RecordSample(context.Background(), sample.PowerSample{}))

	_, err = s.GetSetting(context.Background(), store.SettingMode)
	assert.True(t, errors.HasCode(err, store.ErrSettingNotFound))
}

func TestOpenRejectsEmptyPath(t *testing.T) {
	_, err := store.Open(store.Config{Enabled: true})
	assert.True(t, errors.HasCode(err, store.ErrInvalidConfig))
}

func TestRecordSampleUpsertsOnTimestamp(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	first := sample.PowerSample{
		Timestamp:  ts,
		HasBattery: true,
		Percent:    42,
	}
	require.NoError(t, s.RecordSample(ctx, first))

	// Same timestamp must not error; the row is replaced.
	second := first
	second.Percent = 41
	require.NoError(t, s.RecordSample(ctx, second))
}

func TestSettingsRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	_, err := s.GetSetting(ctx, store.SettingMode)
	assert.True(t, errors.HasCode(err, store.ErrSettingNotFound))

	require.NoError(t, s.SetSetting(ctx, store.SettingMode, "saver"))
	got, err := s.GetSetting(ctx, store.SettingMode)
	require.NoError(t, err)
	assert.Equal(t, "saver", got)

	require.NoError(t, s.SetSetting(ctx, store.SettingMode, "performance"))
	got, err = s.GetSetting(ctx, store.SettingMode)
	require.NoError(t, err)
	assert.Equal(t, "performance", got)
}

func TestSessionJournalLifecycle(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	started := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	rec := session.Record{
		PID:        4242,
		Name:       "chromium",
		Command:    "/usr/bin/chromium",
		SessionID:  "sess-1",
		StartedAt:  started,
		LastSeenAt: started,
		Samples:    1,
		CPUAccum:   30,
		MemAccum:   10,
		PeakCPU:    30,
		PeakMem:    10,
	}
	require.NoError(t, s.StartSession(ctx, rec))

	upd := session.Update{
		SessionID:     "sess-1",
		LastSeenAt:    started.Add(30 * time.Second),
		CPUPercent:    50,
		MemoryPercent: 12,
		Impact:        13.1,
		Samples:       2,
		PeakCPU:       50,
		PeakMem:       12,
	}
	require.NoError(t, s.UpdateSession(ctx, upd))

	row, err := s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, int32(4242), row.PID)
	assert.Equal(t, "chromium", row.Name)
	assert.Equal(t, 2, row.Samples)
	assert.InDelta(t, 80, row.CPUAccum, 0.001)
	assert.InDelta(t, 22, row.MemAccum, 0.001)
	assert.InDelta(t, 50, row.PeakCPU, 0.001)
	assert.InDelta(t, 13.1, row.ImpactAccum, 0.001)
	assert.False(t, row.Ended)

	ended := started.Add(2 * time.Minute)
	require.NoError(t, s.EndSession(ctx, "sess-1", ended))

	row, err = s.GetSession(ctx, "sess-1")
	require.NoError(t, err)
	assert.True(t, row.Ended)
	assert.Equal(t, ended.UnixMilli(), row.EndedAt.UnixMilli())

	// A second end finds no open row.
	err = s.EndSession(ctx, "sess-1", ended.Add(time.Minute))
	assert.True(t, errors.HasCode(err, store.ErrSessionNotFound))
}

func TestUpdateUnknownSession(t *testing.T) {
	s := openTestStore(t)

	err := s.UpdateSession(context.Background(), session.Update{SessionID: "missing"})
	assert.True(t, errors.HasCode(err, store.ErrSessionNotFound))
}

func TestRecordAlert(t *testing.T) {
	s := openTestStore(t)

	a := alert.Alert{
		ID:        "alert-1",
		RuleID:    "critical_battery",
		Severity:  alert.SeverityCritical,
		Message:   "Battery critically low: 8%",
		Action:    "Connect charger now",
		Timestamp: time.Now(),
		Snapshot:  sample.PowerSample{HasBattery: true, Percent: 8},
	}
	require.NoError(t, s.RecordAlert(context.Background(), a))
}

func TestReopenKeepsData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "battmon.db")
	cfg := store.Config{DBPath: path, Enabled: true}

	s, err := store.Open(cfg)
	require.NoError(t, err)
	require.NoError(t, s.SetSetting(context.Background(), store.SettingBootMarker, "boot-1"))
	require.NoError(t, s.Close())

	s, err = store.Open(cfg)
	require.NoError(t, err)
	defer s.Close()

	got, err := s.GetSetting(context.Background(), store.SettingBootMarker)
	require.NoError(t, err)
	assert.Equal(t, "boot-1", got)
}
