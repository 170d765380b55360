// Package engine coordinates sampling, alerting, session tracking, and
// self-healing, and exposes the host-facing API.
package engine

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"codeberg.org/mutker/battmon/internal/alert"
	"codeberg.org/mutker/battmon/internal/analytics"
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
	reportTimeout     = 2 * time.Second
	defaultAlertLimit = 10
)

// Options configures a Service. Source is required; everything else has a
// working default.
type Options struct {
	Source          sample.Source
	Store           store.Store
	Notifier        alert.Notifier
	Clock           clock.Clock
	Mode            Mode
	Thresholds      alert.Thresholds
	HistoryCapacity int
	Monitor         MonitorConfig
}

// Service owns the full pipeline. The host constructs one instance and
// hands it to consumers; there is no package-level singleton.
type Service struct {
	clk       clock.Clock
	persister store.Store
	history   *history.Ring
	tracker   *session.Tracker
	alerts    *alert.Engine
	cache     *analytics.Cache
	sched     *Scheduler
	monitor   *HealthMonitor

	mu            sync.Mutex
	started       bool
	cancelMonitor context.CancelFunc
	monitorDone   chan struct{}

	reportTimeout time.Duration
	analyticsFn   func() *analytics.DischargeAnalysis
}

// Report is the host-facing snapshot returned by GetCurrentReport.
// Analytics is nil when the recompute overran the internal timeout.
type Report struct {
	Sample     *sample.PowerSample
	Trend      []sample.PowerSample
	Stats      Stats
	Alerts     []alert.Alert
	Mode       Mode
	Intervals  map[Mode]time.Duration
	Thresholds alert.Thresholds
	IsRunning  bool
	Analytics  *analytics.DischargeAnalysis
}

func NewService(opts Options) (*Service, error) {
	errFactory := errors.New()

	if opts.Source == nil {
		return nil, errFactory.WithMessage(errors.ErrInvalidArgument, "sample source is required")
	}
	if opts.Clock == nil {
		opts.Clock = clock.System()
	}
	if opts.Store == nil {
		opts.Store = store.NewNoop()
	}
	if opts.Mode == "" {
		opts.Mode = ModeBalanced
	}
	if _, err := ParseMode(opts.Mode.String()); err != nil {
		return nil, err
	}
	if opts.Thresholds == (alert.Thresholds{}) {
		opts.Thresholds = alert.DefaultThresholds()
	}
	if opts.HistoryCapacity <= 0 {
		opts.HistoryCapacity = history.DefaultCapacity
	}

	cooldowns := cooldown.NewTracker(opts.Clock)

	alerts, err := alert.NewEngine(opts.Thresholds, opts.Clock, cooldowns, opts.Notifier, opts.Store)
	if err != nil {
		return nil, err
	}

	hist := history.NewRing(opts.HistoryCapacity)
	tracker := session.NewTracker(graceFactor*opts.Mode.Interval(), opts.Store)
	sched := NewScheduler(opts.Source, opts.Store, hist, tracker, alerts, cooldowns, opts.Clock, opts.Mode)

	svc := &Service{
		clk:           opts.Clock,
		persister:     opts.Store,
		history:       hist,
		tracker:       tracker,
		alerts:        alerts,
		cache:         analytics.NewCache(opts.Clock),
		sched:         sched,
		monitor:       NewHealthMonitor(sched, opts.Monitor),
		reportTimeout: reportTimeout,
	}
	svc.analyticsFn = svc.dischargeAnalysis

	return svc, nil
}

// Start restores persisted settings, resets session tracking state, and
// launches the scheduler and health monitor. Idempotent.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		logger.Debug().Msg("Service already started")
		return nil
	}

	s.restoreSettings(ctx)
	s.rotateBootMarker(ctx)

	if err := s.sched.Start(); err != nil {
		return err
	}

	mctx, cancel := context.WithCancel(context.Background())
	s.cancelMonitor = cancel
	s.monitorDone = make(chan struct{})
	go func() {
		defer close(s.monitorDone)
		s.monitor.Run(mctx)
	}()

	s.started = true

	return nil
}

// Stop halts the monitor and scheduler. In-flight ticks finish. Idempotent.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}

	// The monitor must be fully drained first: an in-flight recovery
	// could otherwise restart the scheduler after Stop returns.
	s.cancelMonitor()
	<-s.monitorDone
	s.sched.Stop()
	s.started = false
}

// restoreSettings applies the persisted operating mode and thresholds, if
// any. Failures degrade to the configured defaults.
func (s *Service) restoreSettings(ctx context.Context) {
	if raw, err := s.persister.GetSetting(ctx, store.SettingMode); err == nil {
		if mode, err := ParseMode(raw); err == nil {
			if err := s.sched.SetMode(mode); err != nil {
				logger.Warn().Err(err).Msg("Failed to apply persisted mode")
			}
		} else {
			logger.Warn().Str("mode", raw).Msg("Ignoring invalid persisted mode")
		}
	}

	if raw, err := s.persister.GetSetting(ctx, store.SettingThresholds); err == nil {
		var patch alert.ThresholdPatch
		if err := json.Unmarshal([]byte(raw), &patch); err != nil {
			logger.Warn().Err(err).Msg("Ignoring unreadable persisted thresholds")
			return
		}
		if err := s.alerts.UpdateThresholds(patch); err != nil {
			logger.Warn().Err(err).Msg("Ignoring invalid persisted thresholds")
		}
	}
}

// rotateBootMarker resets session accumulation and stores a fresh marker.
// The reset happens regardless of whether the stored marker matches; the
// previous marker is only logged for diagnostics.
func (s *Service) rotateBootMarker(ctx context.Context) {
	prev, err := s.persister.GetSetting(ctx, store.SettingBootMarker)
	if err == nil {
		logger.Debug().Str("previous_marker", prev).Msg("Found prior boot marker")
	}

	s.tracker.Reset()

	marker := uuid.NewString()
	if err := s.persister.SetSetting(ctx, store.SettingBootMarker, marker); err != nil {
		logger.Warn().Err(err).
			Str("error_code", string(errors.ErrPersistenceWrite)).
			Msg("Failed to persist boot marker")
	}
}

// IsRunning reports whether the sampling loops are active.
func (s *Service) IsRunning() bool {
	return s.sched.Running()
}

// GetCurrentReport assembles the host snapshot. The discharge analytics
// recompute is bounded by an internal timeout; on overrun the report carries
// nil Analytics instead of blocking the caller.
func (s *Service) GetCurrentReport(ctx context.Context) Report {
	report := Report{
		Trend:      s.history.Since(s.clk.Now().Add(-time.Hour)),
		Stats:      s.sched.Stats(),
		Alerts:     s.alerts.Alerts(defaultAlertLimit),
		Mode:       s.sched.Mode(),
		Intervals:  Intervals(),
		Thresholds: s.alerts.Thresholds(),
		IsRunning:  s.sched.Running(),
	}

	if latest, ok := s.history.Latest(); ok {
		report.Sample = &latest
	}

	done := make(chan *analytics.DischargeAnalysis, 1)
	go func() {
		done <- s.analyticsFn()
	}()

	timeout := time.NewTimer(s.reportTimeout)
	defer timeout.Stop()

	select {
	case analysis := <-done:
		report.Analytics = analysis
	case <-timeout.C:
		logger.Warn().Msg("Analytics recompute overran report timeout")
	case <-ctx.Done():
	}

	return report
}

func (s *Service) dischargeAnalysis() *analytics.DischargeAnalysis {
	value, err := s.cache.Get(analytics.KindDischarge, "1h", func() (any, error) {
		window := s.history.Since(s.clk.Now().Add(-time.Hour))
		return analytics.AnalyzeDischarge(window), nil
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Discharge analysis failed")
		return nil
	}

	analysis, ok := value.(analytics.DischargeAnalysis)
	if !ok {
		return nil
	}

	return &analysis
}

// SetOptimizationMode validates, persists, and applies a mode change. The
// scheduler restarts with the new interval; history, sessions, and alerts
// are preserved.
func (s *Service) SetOptimizationMode(mode string) error {
	parsed, err := ParseMode(mode)
	if err != nil {
		return err
	}

	if err := s.sched.SetMode(parsed); err != nil {
		return err
	}

	s.cache.Invalidate()

	return nil
}

// GetOptimizationMode returns the current operating mode.
func (s *Service) GetOptimizationMode() Mode {
	return s.sched.Mode()
}

// UpdateThresholds merges a partial threshold update, rejecting invalid
// values synchronously, and persists the accepted patch.
func (s *Service) UpdateThresholds(patch alert.ThresholdPatch) error {
	if err := s.alerts.UpdateThresholds(patch); err != nil {
		return err
	}

	raw, err := json.Marshal(patch)
	if err == nil {
		ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
		defer cancel()
		if err := s.persister.SetSetting(ctx, store.SettingThresholds, string(raw)); err != nil {
			logger.Warn().Err(err).
				Str("error_code", string(errors.ErrPersistenceWrite)).
				Msg("Failed to persist thresholds")
		}
	}

	return nil
}

// GetThresholds returns the active threshold set.
func (s *Service) GetThresholds() alert.Thresholds {
	return s.alerts.Thresholds()
}

// GetAlerts returns up to limit recent alerts, newest first.
func (s *Service) GetAlerts(limit int) []alert.Alert {
	return s.alerts.Alerts(limit)
}

// ClearAlerts removes every held alert.
func (s *Service) ClearAlerts() {
	s.alerts.ClearAlerts()
}

// DismissAlert removes one alert by id.
func (s *Service) DismissAlert(id string) bool {
	return s.alerts.DismissAlert(id)
}

// GetTopConsumers ranks live sessions by battery impact, heaviest first.
func (s *Service) GetTopConsumers() []session.Consumer {
	value, err := s.cache.Get(analytics.KindTopConsumers, "all", func() (any, error) {
		return s.tracker.TopConsumers(s.clk.Now()), nil
	})
	if err != nil {
		return nil
	}

	consumers, ok := value.([]session.Consumer)
	if !ok {
		return nil
	}

	return consumers
}

// GetUsageInsights aggregates session activity over a timeframe, optionally
// filtered by process name. The cache key carries the filter so values are
// never shared across filter contexts.
func (s *Service) GetUsageInsights(timeframe analytics.Timeframe, filterKey string) (analytics.UsageInsights, error) {
	now := s.clk.Now()
	key := string(timeframe) + "/" + filterKey

	value, err := s.cache.Get(analytics.KindInsights, key, func() (any, error) {
		consumers := s.tracker.TopConsumers(now)
		insights, err := analytics.ComputeUsageInsights(consumers, timeframe, filterKey, now)
		if err != nil {
			return nil, err
		}
		return insights, nil
	})
	if err != nil {
		return analytics.UsageInsights{}, err
	}

	insights, ok := value.(analytics.UsageInsights)
	if !ok {
		return analytics.UsageInsights{}, errors.New().New(errors.ErrInternal)
	}

	return insights, nil
}
