package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/backup"
	"github.com/stupid-simple/cloudbackup/config"
	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/fileutils"
	"github.com/stupid-simple/cloudbackup/metrics"
)

const configPollInterval = 30 * time.Second

func daemonCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	flags := args.Daemon.Store
	if flags.Database == "" {
		return fmt.Errorf("no database specified")
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	a, err := openApp(flags, logger, metrics.New(reg))
	if err != nil {
		return err
	}
	defer a.Close()
	metrics.RegisterSlots(reg, a.svc.SlotStats)
	logger.Info().Object("config", a.cfg).Msg("loaded config")

	if err := seedSettings(ctx, a.svc, a.cfg, logger); err != nil {
		return err
	}

	if a.cfg.MetricsAddr != "" {
		srv := metrics.NewServer(a.cfg.MetricsAddr, reg)
		go func() {
			logger.Info().Str("addr", a.cfg.MetricsAddr).Msg("serving metrics")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error().Err(err).Msg("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}()
	}

	if flags.Config != "" {
		ticker := time.NewTicker(configPollInterval)
		defer ticker.Stop()
		startConfigFileWatcher(ctx, flags.Config, logger, ticker, func(cfg *config.Config) {
			if err := seedSettings(ctx, a.svc, cfg, logger); err != nil {
				logger.Error().Err(err).Msg("could not apply settings")
			}
		})
	}

	if err := a.svc.Start(ctx); err != nil {
		return err
	}
	defer a.svc.Stop()

	<-ctx.Done()
	logger.Info().Msg("shutting down, waiting for running backups")

	return nil
}

// seedSettings stores the settings block of cfg, if any. The scheduler reads
// it at its next tick.
func seedSettings(ctx context.Context, svc *backup.Service, cfg *config.Config, logger zerolog.Logger) error {
	if cfg.Settings == nil {
		return nil
	}
	saved, err := svc.SaveSettings(ctx, database.Settings{
		MaxConcurrentJobs: cfg.Settings.MaxConcurrentJobs,
		RetentionDays:     cfg.Settings.RetentionDays,
		CompressionLevel:  cfg.Settings.CompressionLevel,
	})
	if err != nil {
		return fmt.Errorf("could not save settings: %w", err)
	}
	logger.Info().Object("settings", saved).Msg("applied settings from config")
	return nil
}

func startConfigFileWatcher(ctx context.Context, cfgPath string, logger zerolog.Logger, ticker *time.Ticker, onChanged func(cfg *config.Config)) {
	logger.Info().Str("path", cfgPath).Msg("watching config file for changes")
	watcher, err := fileutils.WatchFile(ctx, cfgPath, when(ctx, ticker.C), func(err error) {
		logger.Error().Err(err).Msg("could not watch config file")
	})
	if err != nil {
		logger.Error().Err(err).Msg("could not watch config file")
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-watcher:
				if !ok {
					return
				}
				logger.Info().Str("path", cfgPath).Msg("config file changed, reloading")

				cfg, err := config.LoadFromFile(cfgPath)
				if err != nil {
					logger.Error().Err(err).Msg("could not load config")
					break
				}

				onChanged(cfg)
			}
		}
	}()
}

func when[T any](ctx context.Context, ch <-chan T) <-chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out
}
