package main

import (
	"context"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

func runCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Run.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	jobID := args.Run.Job
	startTime := time.Now()
	logger.Info().Str("job", jobID).Msg("starting backup")
	defer func() {
		tookSeconds := time.Since(startTime).Seconds()
		if ctx.Err() != nil {
			logger.Info().Str("job", jobID).Float64("seconds", tookSeconds).Msg("backup cancelled")
		} else {
			logger.Info().Str("job", jobID).Float64("seconds", tookSeconds).Msg("backup done")
		}
	}()

	run, err := a.svc.RunNow(ctx, jobID)
	if run != nil {
		logger.Info().
			Object("run", run).
			Str("size", humanize.Bytes(uint64(run.Size))).
			Int("files", run.Files).
			Msg(run.Message)
	}
	return err
}
