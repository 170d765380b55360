package session_test

import (
	"context"
	"os"
	"sync"
	"testing"
	"time"

	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/sample"
	"codeberg.org/mutker/battmon/internal/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	logger.Init(false, false, true)
	os.Exit(m.Run())
}

type memJournal struct {
	mu      sync.Mutex
	started []session.Record
	updates []session.Update
	ended   []string
}

func (j *memJournal) StartSession(_ context.Context, rec session.Record) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.started = append(j.started, rec)
	return nil
}

func (j *memJournal) UpdateSession(_ context.Context, upd session.Update) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.updates = append(j.updates, upd)
	return nil
}

func (j *memJournal) EndSession(_ context.Context, sessionID string, _ time.Time) error {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.ended = append(j.ended, sessionID)
	return nil
}

func proc(pid int32, name string, cpu, mem float64) sample.ProcessSample {
	return sample.ProcessSample{
		PID:           pid,
		Name:          name,
		Command:       "/usr/bin/" + name,
		CPUPercent:    cpu,
		MemoryPercent: mem,
	}
}

func TestSessionLifecycle(t *testing.T) {
	journal := &memJournal{}
	// Grace window of 90s, i.e. three ticks of a 30s interval.
	tracker := session.NewTracker(90*time.Second, journal)
	t1 := time.Unix(1000, 0)

	// Tick 1: pid 100 appears with cpu 2%.
	tracker.Reconcile([]sample.ProcessSample{proc(100, "firefox", 2, 1.5)}, t1)

	require.Len(t, journal.started, 1)
	sessions := tracker.Sessions()
	require.Len(t, sessions, 1)
	first := sessions[0]
	assert.Equal(t, t1, first.StartedAt)
	assert.Equal(t, 1, first.Samples)
	assert.NotEmpty(t, first.SessionID)

	// Tick 2: seen again.
	t2 := t1.Add(30 * time.Second)
	tracker.Reconcile([]sample.ProcessSample{proc(100, "firefox", 4, 2.0)}, t2)

	sessions = tracker.Sessions()
	require.Len(t, sessions, 1)
	assert.Equal(t, 2, sessions[0].Samples)
	assert.Equal(t, t1, sessions[0].StartedAt, "StartedAt must never change after creation")
	assert.Equal(t, t2, sessions[0].LastSeenAt)
	assert.Equal(t, 6.0, sessions[0].CPUAccum)
	assert.Equal(t, 4.0, sessions[0].PeakCPU)
	assert.Equal(t, 2.0, sessions[0].PeakMem)

	// The update journaled this tick's impact delta only: 4*0.5 + 2*0.1.
	require.Len(t, journal.updates, 1)
	assert.InDelta(t, 2.2, journal.updates[0].Impact, 0.0001)

	// Ticks 3-5: absent, within grace for the first two.
	t3 := t2.Add(30 * time.Second)
	tracker.Reconcile(nil, t3)
	assert.Equal(t, 1, tracker.Len(), "Still within grace window")

	t4 := t3.Add(30 * time.Second)
	tracker.Reconcile(nil, t4)
	assert.Equal(t, 1, tracker.Len())

	t5 := t4.Add(30 * time.Second)
	tracker.Reconcile(nil, t5)
	assert.Equal(t, 1, tracker.Len(), "Exactly at grace boundary, not yet evicted")

	t6 := t5.Add(30 * time.Second)
	tracker.Reconcile(nil, t6)
	assert.Equal(t, 0, tracker.Len())
	require.Len(t, journal.ended, 1, "Eviction emits exactly one end notification")
	assert.Equal(t, first.SessionID, journal.ended[0])

	// Further empty ticks emit nothing more.
	tracker.Reconcile(nil, t6.Add(time.Minute))
	assert.Len(t, journal.ended, 1)
}

func TestIdleNoiseFiltered(t *testing.T) {
	tracker := session.NewTracker(time.Minute, nil)
	now := time.Unix(1000, 0)

	tracker.Reconcile([]sample.ProcessSample{
		proc(1, "idle", 0.01, 0),
		proc(2, "kworker", 0.05, 0),
		proc(3, "busy", 0.06, 0),
		proc(4, "resident", 0, 1.0),
	}, now)

	sessions := tracker.Sessions()
	pids := make(map[int32]bool, len(sessions))
	for _, s := range sessions {
		pids[s.PID] = true
	}
	assert.False(t, pids[1])
	assert.False(t, pids[2], "cpu exactly at 0.05 with no memory is noise")
	assert.True(t, pids[3])
	assert.True(t, pids[4], "memory usage alone keeps a process")
}

func TestPidReuseGetsFreshSessionID(t *testing.T) {
	journal := &memJournal{}
	tracker := session.NewTracker(time.Minute, journal)
	base := time.Unix(1000, 0)

	tracker.Reconcile([]sample.ProcessSample{proc(200, "short", 5, 1)}, base)
	firstID := tracker.Sessions()[0].SessionID

	// Evict, then the pid reappears.
	tracker.Reconcile(nil, base.Add(2*time.Minute))
	require.Equal(t, 0, tracker.Len())

	tracker.Reconcile([]sample.ProcessSample{proc(200, "short", 5, 1)}, base.Add(3*time.Minute))
	secondID := tracker.Sessions()[0].SessionID

	assert.NotEqual(t, firstID, secondID)
	assert.Equal(t, base.Add(3*time.Minute), tracker.Sessions()[0].StartedAt)
}

func TestTopConsumersOrdering(t *testing.T) {
	tracker := session.NewTracker(time.Minute, nil)
	base := time.Unix(1000, 0)

	tracker.Reconcile([]sample.ProcessSample{
		proc(1, "light", 1, 0.5),
		proc(2, "heavy", 50, 10),
		proc(3, "medium", 10, 2),
	}, base)

	now := base.Add(10 * time.Minute)
	tracker.Reconcile([]sample.ProcessSample{
		proc(1, "light", 1, 0.5),
		proc(2, "heavy", 50, 10),
		proc(3, "medium", 10, 2),
	}, now)

	consumers := tracker.TopConsumers(now)
	require.Len(t, consumers, 3)

	// Non-increasing by the impact formula, no truncation.
	for i := 1; i < len(consumers); i++ {
		assert.GreaterOrEqual(t, consumers[i-1].Impact, consumers[i].Impact)
	}
	assert.Equal(t, "heavy", consumers[0].Name)

	// Impact = avgCpu*minutes + avgMem*minutes*0.2.
	expected := 50.0*10 + 10.0*10*0.2
	assert.InDelta(t, expected, consumers[0].Impact, 0.0001)
}

func TestReset(t *testing.T) {
	journal := &memJournal{}
	tracker := session.NewTracker(time.Minute, journal)

	tracker.Reconcile([]sample.ProcessSample{proc(1, "a", 5, 1)}, time.Unix(1000, 0))
	require.Equal(t, 1, tracker.Len())

	tracker.Reset()
	assert.Equal(t, 0, tracker.Len())
	assert.Empty(t, journal.ended, "Reset does not emit end notifications")
}

func TestGraceWindowAdjustment(t *testing.T) {
	tracker := session.NewTracker(90*time.Second, nil)
	base := time.Unix(1000, 0)

	tracker.Reconcile([]sample.ProcessSample{proc(1, "a", 5, 1)}, base)

	// Shrink the grace window; the session is now evicted sooner.
	tracker.SetGraceWindow(10 * time.Second)
	tracker.Reconcile(nil, base.Add(30*time.Second))
	assert.Equal(t, 0, tracker.Len())
}
