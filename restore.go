package main

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/backup"
)

func restoreCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Restore.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	stats, err := a.svc.Restore(ctx, backup.RestoreParams{
		RunID:     args.Restore.Run,
		DestDir:   args.Restore.Dest,
		Overwrite: args.Restore.Overwrite,
		DryRun:    args.Restore.DryRun,
	})
	if err != nil {
		return err
	}
	logger.Info().Object("stats", stats).Msg("restored files")
	return nil
}
