package engine

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/clock"
	"codeberg.org/mutker/battmon/internal/cooldown"
	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/history"
	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/sample"
	"codeberg.org/mutker/battmon/internal/session"
	"codeberg.org/mutker/battmon/internal/store"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

type stubSource struct {
	mu    sync.Mutex
	power func() (sample.PowerSample, error)
	procs func() ([]sample.ProcessSample, error)
}

func (s *stubSource) PowerState(context.Context) (sample.PowerSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.power == nil {
		return sample.PowerSample{HasBattery: true, Percent: 50}, nil
	}

	return s.power()
}

func (s *stubSource) Processes(context.Context) ([]sample.ProcessSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.procs == nil {
		return nil, nil
	}

	return s.procs()
}

func (s *stubSource) setPower(fn func() (sample.PowerSample, error)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.power = fn
}

type recordingStore struct {
	store.Store

	mu       sync.Mutex
	samples  int
	alerts   int
	settings map[string]string
}

func newRecordingStore() *recordingStore {
	return &recordingStore{
		Store:    store.NewNoop(),
		settings: make(map[string]string),
	}
}

func (r *recordingStore) RecordSample(context.Context, sample.PowerSample) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples++
	return nil
}

func (r *recordingStore) RecordAlert(context.Context, alert.Alert) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.alerts++
	return nil
}

func (r *recordingStore) GetSetting(_ context.Context, key string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	value, ok := r.settings[key]
	if !ok {
		return "", errors.New().WithData(store.ErrSettingNotFound, key)
	}

	return value, nil
}

func (r *recordingStore) SetSetting(_ context.Context, key, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.settings[key] = value
	return nil
}

func (r *recordingStore) setting(key string) (string, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	value, ok := r.settings[key]
	return value, ok
}

func (r *recordingStore) sampleCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.samples
}

func (r *recordingStore) alertCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.alerts
}

type testRig struct {
	source  *stubSource
	persist *recordingStore
	clk     *clock.Mock
	hist    *history.Ring
	tracker *session.Tracker
	alerts  *alert.Engine
	sched   *Scheduler
}

func newTestRig(t *testing.T, mode Mode) *testRig {
	t.Helper()

	source := &stubSource{}
	persist := newRecordingStore()
	clk := clock.NewMock(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))
	cooldowns := cooldown.NewTracker(clk)

	engine, err := alert.NewEngine(alert.DefaultThresholds(), clk, cooldowns, nil, persist)
	require.NoError(t, err)

	hist := history.NewRing(16)
	tracker := session.NewTracker(graceFactor*mode.Interval(), persist)
	sched := NewScheduler(source, persist, hist, tracker, engine, cooldowns, clk, mode)

	return &testRig{
		source:  source,
		persist: persist,
		clk:     clk,
		hist:    hist,
		tracker: tracker,
		alerts:  engine,
		sched:   sched,
	}
}

func TestPowerTickAppendsEvaluatesPersists(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)

	rig.sched.powerTick(context.Background())

	assert.Equal(t, 1, rig.hist.Len())
	assert.Equal(t, 1, rig.persist.sampleCount())
	assert.Equal(t, uint64(1), rig.sched.Stats().PowerTicks)
	assert.True(t, rig.sched.Stats().HasSampledSuccessful)
}

func TestPowerTickFiresAlertThroughEngine(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)
	rig.source.setPower(func() (sample.PowerSample, error) {
		return sample.PowerSample{
			Timestamp:  rig.clk.Now(),
			HasBattery: true,
			Percent:    8,
		}, nil
	})

	rig.sched.powerTick(context.Background())

	fired := rig.alerts.Alerts(0)
	require.NotEmpty(t, fired)
	assert.Equal(t, "critical_battery", fired[0].RuleID)
	assert.Equal(t, 1, rig.persist.alertCount())
}

func TestPowerTickSoftErrorCounting(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)
	rig.source.setPower(func() (sample.PowerSample, error) {
		return sample.PowerSample{}, errors.New().New(errors.ErrSampleFailed)
	})

	for i := 0; i < maxConsecutiveSoftErrors-1; i++ {
		rig.sched.powerTick(context.Background())
	}
	assert.Equal(t, maxConsecutiveSoftErrors-1, rig.sched.Stats().ConsecutiveSoftErr)
	assert.Equal(t, 0, rig.hist.Len())

	select {
	case <-rig.sched.RecoverySignals():
		t.Fatal("recovery requested before the soft error limit")
	default:
	}

	rig.sched.powerTick(context.Background())

	select {
	case <-rig.sched.RecoverySignals():
	default:
		t.Fatal("expected a recovery request at the soft error limit")
	}
}

func TestSuccessZeroesSoftErrors(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)
	rig.source.setPower(func() (sample.PowerSample, error) {
		return sample.PowerSample{}, errors.New().New(errors.ErrSampleTimeout)
	})
	rig.sched.powerTick(context.Background())
	require.Equal(t, 1, rig.sched.Stats().ConsecutiveSoftErr)

	rig.source.setPower(nil)
	rig.sched.powerTick(context.Background())
	assert.Equal(t, 0, rig.sched.Stats().ConsecutiveSoftErr)
}

func TestProcessTickReconciles(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)
	rig.source.procs = func() ([]sample.ProcessSample, error) {
		return []sample.ProcessSample{
			{PID: 100, Name: "firefox", CPUPercent: 12, MemoryPercent: 4},
		}, nil
	}

	rig.sched.processTick(context.Background())

	assert.Equal(t, 1, rig.tracker.Len())
	assert.Equal(t, uint64(1), rig.sched.Stats().ProcessTicks)
}

func TestProcessTickEmptyBatchIsSuccess(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)

	rig.sched.processTick(context.Background())

	assert.Equal(t, 0, rig.sched.Stats().ConsecutiveSoftErr)
	assert.True(t, rig.sched.Stats().HasSampledSuccessful)
}

func TestStartStopIdempotent(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)

	require.NoError(t, rig.sched.Start())
	require.NoError(t, rig.sched.Start())
	assert.True(t, rig.sched.Running())

	// The immediate power sample lands without waiting for the ticker.
	require.Eventually(t, func() bool {
		return rig.hist.Len() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	rig.sched.Stop()
	rig.sched.Stop()
	assert.False(t, rig.sched.Running())
}

func TestSetModeRestartsPreservingState(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)

	require.NoError(t, rig.sched.Start())
	require.Eventually(t, func() bool {
		return rig.hist.Len() >= 1
	}, 2*time.Second, 10*time.Millisecond)
	seeded := rig.hist.Len()

	require.NoError(t, rig.sched.SetMode(ModePerformance))
	defer rig.sched.Stop()

	assert.True(t, rig.sched.Running())
	assert.Equal(t, ModePerformance, rig.sched.Mode())
	assert.GreaterOrEqual(t, rig.hist.Len(), seeded)

	mode, ok := rig.persist.setting(store.SettingMode)
	require.True(t, ok)
	assert.Equal(t, "performance", mode)
}

func TestSetModeUnchangedIsNoop(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)

	require.NoError(t, rig.sched.SetMode(ModeBalanced))

	_, ok := rig.persist.setting(store.SettingMode)
	assert.False(t, ok, "unchanged mode must not be re-persisted")
}

func TestSetModeRejectsUnknown(t *testing.T) {
	rig := newTestRig(t, ModeBalanced)

	err := rig.sched.SetMode(Mode("turbo"))
	require.Error(t, err)
	assert.True(t, errors.HasCode(err, errors.ErrInvalidMode))
}

func TestParseMode(t *testing.T) {
	for _, name := range []string{"saver", "balanced", "performance"} {
		mode, err := ParseMode(name)
		require.NoError(t, err)
		assert.Equal(t, name, mode.String())
	}

	_, err := ParseMode("warp")
	assert.True(t, errors.HasCode(err, errors.ErrInvalidMode))
}

func TestModeIntervalsOrdering(t *testing.T) {
	assert.Greater(t, ModeSaver.Interval(), ModeBalanced.Interval())
	assert.Greater(t, ModeBalanced.Interval(), ModePerformance.Interval())
}
