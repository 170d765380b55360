package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"codeberg.org/mutker/battmon/internal/clock"
	"codeberg.org/mutker/battmon/internal/config"
	"codeberg.org/mutker/battmon/internal/engine"
	"codeberg.org/mutker/battmon/internal/logger"
	"codeberg.org/mutker/battmon/internal/notify"
	"codeberg.org/mutker/battmon/internal/pid"
	"codeberg.org/mutker/battmon/internal/sample"
	"codeberg.org/mutker/battmon/internal/store"
)

var cfg *config.Config

func init() {
	var err error
	cfg, err = config.Load()
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Init(cfg.Debug, cfg.Verbose, logger.IsService())
	logger.Debug().Msg("Config loaded")
}

func main() {
	if err := pid.Write(); err != nil {
		logger.Fatal().Err(err).Msg("failed to write PID file")
	}
	defer func() {
		if err := pid.Remove(); err != nil {
			logger.Error().Err(err).Msg("failed to remove PID file")
		}
	}()

	persist, err := store.Open(store.Config{
		DBPath:  cfg.Database,
		Enabled: cfg.Persistence,
	})
	if err != nil {
		logger.Warn().Err(err).Msg("Persistence unavailable, continuing without it")
		persist = store.NewNoop()
	}
	defer func() {
		if err := persist.Close(); err != nil {
			logger.Error().Err(err).Msg("failed to close store")
		}
	}()

	notifier := notify.NewLogSink()
	if desktop, err := notify.NewDesktopSink(); err == nil {
		notifier = notify.Multi(notifier, desktop)
	} else {
		logger.Debug().Err(err).Msg("Desktop notifications unavailable")
	}

	svc, err := engine.NewService(engine.Options{
		Source:          sample.NewSystemSource(clock.System()),
		Store:           persist,
		Notifier:        notifier,
		Clock:           clock.System(),
		Mode:            engine.Mode(cfg.Mode),
		Thresholds:      cfg.AlertThresholds(),
		HistoryCapacity: cfg.HistoryCapacity,
	})
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to initialize service")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go handleSignals(cancel)

	if err := svc.Start(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to start service")
	}

	<-ctx.Done()
	svc.Stop()
	logger.Info().Msg("Exiting...")
}

func handleSignals(cancel context.CancelFunc) {
	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	<-sigs
	logger.Info().Msg("Received termination signal.")
	cancel()
}
