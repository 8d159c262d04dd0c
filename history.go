package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gosuri/uitable"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/database"
)

func historyCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.History.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	runs, err := a.svc.ListHistory(ctx, args.History.Job, args.History.Limit)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("RUN", "JOB", "STATUS", "STARTED", "DURATION", "SIZE", "RATIO", "MESSAGE")
	for _, run := range runs {
		ratio := "-"
		if run.CompressionRatio != nil {
			ratio = fmt.Sprintf("%.2f", *run.CompressionRatio)
		}
		duration := "-"
		if run.Status.Terminal() {
			duration = (time.Duration(run.Duration) * time.Millisecond).String()
		}
		table.AddRow(
			run.ID,
			run.JobID,
			run.Status,
			humanize.Time(run.StartedAt),
			duration,
			humanize.Bytes(uint64(run.Size)),
			ratio,
			run.Message,
		)
	}
	fmt.Fprintln(os.Stdout, table)
	return nil
}

func settingsShowCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Settings.Show.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := a.svc.GetSettings(ctx)
	if err != nil {
		return err
	}
	printSettings(settings)
	return nil
}

func settingsSetCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	cmd := args.Settings.Set
	a, err := openApp(cmd.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	settings, err := a.svc.GetSettings(ctx)
	if err != nil {
		return err
	}
	if cmd.MaxConcurrentJobs >= 0 {
		settings.MaxConcurrentJobs = cmd.MaxConcurrentJobs
	}
	if cmd.RetentionDays >= 0 {
		settings.RetentionDays = cmd.RetentionDays
	}
	if cmd.CompressionLevel >= 0 {
		settings.CompressionLevel = cmd.CompressionLevel
	}

	saved, err := a.svc.SaveSettings(ctx, settings)
	if err != nil {
		return err
	}
	printSettings(saved)
	return nil
}

func printSettings(s database.Settings) {
	table := uitable.New()
	table.AddRow("Max concurrent jobs:", s.MaxConcurrentJobs)
	table.AddRow("Retention days:", s.RetentionDays)
	table.AddRow("Compression level:", s.CompressionLevel)
	fmt.Fprintln(os.Stdout, table)
}
