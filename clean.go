package main

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/database"
)

func cleanCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Clean.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	startTime := time.Now()
	logger.Info().Msg("starting cleaning old backup files")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Float64("seconds", tookSeconds).Msg("cleaning cancelled")
		} else {
			logger.Info().Float64("seconds", tookSeconds).Msg("cleaning done")
		}
	}()

	var jobs []database.BackupJob
	if args.Clean.Job == "" {
		jobs, err = a.svc.ListJobs(ctx)
		if err != nil {
			return err
		}
	} else {
		job, err := a.svc.GetJob(ctx, args.Clean.Job)
		if err != nil {
			return err
		}
		jobs = []database.BackupJob{*job}
	}

	filesDeleted := 0
	failures := 0
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		logger := logger.With().Str("job", job.ID).Str("remote", job.RemotePath).Logger()

		report, err := a.svc.Prune(ctx, job.ID)
		if err != nil {
			logger.Error().Err(err).Msg("failed to clean old backup files")
			failures++
			continue
		}
		for _, f := range report.Failures {
			logger.Error().Err(f.Err).Str("path", f.Path).Msg("failed to delete old backup file")
		}
		filesDeleted += len(report.Deleted)
		failures += len(report.Failures)
	}

	logger.Info().
		Int("files_deleted", filesDeleted).
		Int("failures", failures).
		Msg("deleted old backup files")

	if failures > 0 {
		return fmt.Errorf("%d old backup files could not be cleaned", failures)
	}
	return nil
}
