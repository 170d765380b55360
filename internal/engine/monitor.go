package engine

import (
	"context"
	"sync/atomic"
	"time"

	"codeberg.org/mutker/battmon/internal/errors"
	"codeberg.org/mutker/battmon/internal/logger"
)

// MonitorConfig tunes the health monitor. Zero values take the defaults.
type MonitorConfig struct {
	Interval       time.Duration
	StallThreshold time.Duration
	SettleDelay    time.Duration
}

const (
	defaultMonitorInterval = 30 * time.Second
	defaultStallThreshold  = 5 * time.Minute
	defaultSettleDelay     = 2 * time.Second
)

func (c MonitorConfig) withDefaults() MonitorConfig {
	if c.Interval <= 0 {
		c.Interval = defaultMonitorInterval
	}
	if c.StallThreshold <= 0 {
		c.StallThreshold = defaultStallThreshold
	}
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaultSettleDelay
	}

	return c
}

// HealthMonitor watches the scheduler for stalled sampling and restarts it.
// At most one recovery runs at a time; failures leave the monitor armed for
// the next cycle.
type HealthMonitor struct {
	sched *Scheduler
	cfg   MonitorConfig

	recovering atomic.Bool
	recoveries atomic.Uint64
}

func NewHealthMonitor(sched *Scheduler, cfg MonitorConfig) *HealthMonitor {
	return &HealthMonitor{
		sched: sched,
		cfg:   cfg.withDefaults(),
	}
}

// Run watches until ctx is cancelled.
func (m *HealthMonitor) Run(ctx context.Context) {
	ticker := time.NewTicker(m.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.check(ctx)
		case <-m.sched.RecoverySignals():
			if err := m.recover(ctx, "soft_error_limit"); err != nil && !errors.HasCode(err, errors.ErrRecoveryBusy) {
				logger.Warn().Err(err).Msg("Recovery after repeated sample failures did not complete")
			}
		}
	}
}

func (m *HealthMonitor) check(ctx context.Context) {
	if !m.sched.Running() {
		return
	}

	elapsed, ok := m.sched.SinceLastSuccess()
	if !ok || elapsed <= m.cfg.StallThreshold {
		return
	}

	if err := m.recover(ctx, "sampling_stalled"); err != nil && !errors.HasCode(err, errors.ErrRecoveryBusy) {
		logger.Warn().Err(err).Msg("Stall recovery did not complete")
	}
}

// recover restarts the scheduler: stop, settle, start, zero the error
// counter. The CAS guard ensures a single concurrent recovery. A ctx
// cancellation during the settle window aborts the restart so the scheduler
// stays stopped across shutdown.
func (m *HealthMonitor) recover(ctx context.Context, reason string) error {
	errFactory := errors.New()

	if !m.recovering.CompareAndSwap(false, true) {
		return errFactory.New(errors.ErrRecoveryBusy)
	}
	defer m.recovering.Store(false)

	logger.Warn().Str("reason", reason).Msg("Sampling recovery started")

	m.sched.Stop()

	settle := time.NewTimer(m.cfg.SettleDelay)
	defer settle.Stop()
	select {
	case <-ctx.Done():
		logger.Info().Str("reason", reason).Msg("Sampling recovery aborted by shutdown")
		return nil
	case <-settle.C:
	}

	if err := m.sched.Start(); err != nil {
		return errFactory.Wrap(errors.ErrRecoveryFailed, err)
	}

	m.sched.ResetSoftErrors()
	m.recoveries.Add(1)
	logger.Info().Str("reason", reason).Msg("Sampling recovery completed")

	return nil
}

// Recoveries returns how many recoveries have completed.
func (m *HealthMonitor) Recoveries() uint64 {
	return m.recoveries.Load()
}
