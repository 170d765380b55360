package engine

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

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

const (
	powerSampleTimeout   = 3 * time.Second
	processSampleTimeout = 5 * time.Second
	processStartDelay    = 2 * time.Second

	// graceFactor tolerates one missed process scan before eviction.
	graceFactor = 3

	maxConsecutiveSoftErrors = 5

	lastSuccessID  = "scheduler_last_success"
	persistTimeout = 2 * time.Second
)

// Scheduler drives the two sampling timers at the operating mode's interval.
// Each tick completes its sampling call before the same timer can fire
// again, so slow OS calls compress effective frequency instead of queueing.
type Scheduler struct {
	source    sample.Source
	persister store.Store
	history   *history.Ring
	tracker   *session.Tracker
	alerts    *alert.Engine
	cooldowns *cooldown.Tracker
	clk       clock.Clock

	mu      sync.Mutex
	mode    Mode
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	softErrors   atomic.Int32
	powerTicks   atomic.Uint64
	processTicks atomic.Uint64

	recoverCh chan struct{}
}

// Stats is a point-in-time view of scheduler activity.
type Stats struct {
	Running              bool
	Mode                 Mode
	Interval             time.Duration
	PowerTicks           uint64
	ProcessTicks         uint64
	ConsecutiveSoftErr   int
	SinceLastSuccess     time.Duration
	HasSampledSuccessful bool
}

func NewScheduler(
	source sample.Source,
	persister store.Store,
	hist *history.Ring,
	tracker *session.Tracker,
	alerts *alert.Engine,
	cooldowns *cooldown.Tracker,
	clk clock.Clock,
	mode Mode,
) *Scheduler {
	return &Scheduler{
		source:    source,
		persister: persister,
		history:   hist,
		tracker:   tracker,
		alerts:    alerts,
		cooldowns: cooldowns,
		clk:       clk,
		mode:      mode,
		recoverCh: make(chan struct{}, 1),
	}
}

// Start launches both sampling loops. Idempotent; a running scheduler is
// left untouched.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		logger.Debug().Msg("Scheduler already running")
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.running = true

	// Baseline for stall detection so a fresh start is never mistaken
	// for a stall.
	s.cooldowns.Mark(lastSuccessID)

	interval := s.mode.Interval()
	logger.Info().
		Str("mode", s.mode.String()).
		Dur("interval", interval).
		Msg("Starting sampling")

	s.wg.Add(2)
	go s.powerLoop(ctx, interval)
	go s.processLoop(ctx, interval)

	return nil
}

// Stop cancels both timers and waits for any in-flight tick to finish.
// Idempotent.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	cancel := s.cancel
	s.mu.Unlock()

	cancel()
	s.wg.Wait()
	logger.Info().Msg("Sampling stopped")
}

// SetMode persists and applies a new operating mode, restarting the timers
// with the new interval. History, sessions, and alerts are preserved. A
// no-op when the mode is unchanged.
func (s *Scheduler) SetMode(mode Mode) error {
	if _, err := ParseMode(mode.String()); err != nil {
		return err
	}

	s.mu.Lock()
	if mode == s.mode {
		s.mu.Unlock()
		return nil
	}
	wasRunning := s.running
	s.mu.Unlock()

	ctx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	if err := s.persister.SetSetting(ctx, store.SettingMode, mode.String()); err != nil {
		logger.Warn().Err(err).
			Str("error_code", string(errors.ErrPersistenceWrite)).
			Msg("Failed to persist operating mode")
	}
	cancelPersist()

	if wasRunning {
		s.Stop()
	}

	s.mu.Lock()
	s.mode = mode
	s.mu.Unlock()

	s.tracker.SetGraceWindow(graceFactor * mode.Interval())

	if wasRunning {
		return s.Start()
	}

	return nil
}

// Mode returns the current operating mode.
func (s *Scheduler) Mode() Mode {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.mode
}

// Running reports whether the sampling loops are active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// Stats returns a snapshot of scheduler activity.
func (s *Scheduler) Stats() Stats {
	since, ok := s.cooldowns.Since(lastSuccessID)

	s.mu.Lock()
	mode := s.mode
	running := s.running
	s.mu.Unlock()

	return Stats{
		Running:              running,
		Mode:                 mode,
		Interval:             mode.Interval(),
		PowerTicks:           s.powerTicks.Load(),
		ProcessTicks:         s.processTicks.Load(),
		ConsecutiveSoftErr:   int(s.softErrors.Load()),
		SinceLastSuccess:     since,
		HasSampledSuccessful: ok,
	}
}

// SinceLastSuccess returns the time since the last successful sampling tick.
func (s *Scheduler) SinceLastSuccess() (time.Duration, bool) {
	return s.cooldowns.Since(lastSuccessID)
}

// ResetSoftErrors zeroes the consecutive soft-error counter.
func (s *Scheduler) ResetSoftErrors() {
	s.softErrors.Store(0)
}

// RecoverySignals delivers a signal when consecutive soft errors reach the
// limit, requesting immediate recovery from the health monitor.
func (s *Scheduler) RecoverySignals() <-chan struct{} {
	return s.recoverCh
}

func (s *Scheduler) powerLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	// One immediate sample so the host sees state right away.
	s.powerTick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.powerTick(ctx)
		}
	}
}

func (s *Scheduler) processLoop(ctx context.Context, interval time.Duration) {
	defer s.wg.Done()

	// First fire is delayed to let the first OS process query settle.
	settle := time.NewTimer(processStartDelay)
	defer settle.Stop()

	select {
	case <-ctx.Done():
		return
	case <-settle.C:
	}
	s.processTick(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processTick(ctx)
		}
	}
}

func (s *Scheduler) powerTick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, powerSampleTimeout)
	defer cancel()

	cur, err := s.source.PowerState(tctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.softError("power", err)
		return
	}

	s.markSuccess()
	s.powerTicks.Add(1)

	prev, hasPrev := s.history.Latest()
	s.history.Append(cur)

	var prevPtr *sample.PowerSample
	if hasPrev {
		prevPtr = &prev
	}
	s.alerts.Evaluate(&cur, prevPtr)

	pctx, cancelPersist := context.WithTimeout(context.Background(), persistTimeout)
	defer cancelPersist()
	if err := s.persister.RecordSample(pctx, cur); err != nil {
		logger.Warn().Err(err).
			Str("error_code", string(errors.ErrPersistenceWrite)).
			Msg("Failed to persist power sample")
	}
}

func (s *Scheduler) processTick(ctx context.Context) {
	tctx, cancel := context.WithTimeout(ctx, processSampleTimeout)
	defer cancel()

	batch, err := s.source.Processes(tctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		s.softError("process", err)
		return
	}

	// An empty or partial batch is "no new data this tick", not an error.
	s.markSuccess()
	s.processTicks.Add(1)
	s.tracker.Reconcile(batch, s.clk.Now())
}

func (s *Scheduler) markSuccess() {
	s.softErrors.Store(0)
	s.cooldowns.Mark(lastSuccessID)
}

func (s *Scheduler) softError(kind string, err error) {
	count := s.softErrors.Add(1)
	logger.Warn().Err(err).
		Str("error_code", string(errors.ErrSampleFailed)).
		Str("sampler", kind).
		Int32("consecutive", count).
		Msg("Sampling tick failed")

	if count >= maxConsecutiveSoftErrors {
		select {
		case s.recoverCh <- struct{}{}:
		default:
		}
	}
}
