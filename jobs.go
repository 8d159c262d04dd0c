package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/gosuri/uitable"
	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/database"
)

func jobFromFlags(f JobFlags) *database.BackupJob {
	job := &database.BackupJob{
		Name:              f.Name,
		SourcePath:        f.Source,
		StorageProviderID: f.Provider,
		RemotePath:        f.Remote,
		Schedule:          f.Schedule,
		RetentionDays:     f.RetentionDays,
		Compression:       f.Compression,
		Encryption:        f.Encryption,
		Status:            database.JobActive,
	}
	if f.Paused {
		job.Status = database.JobPaused
	}
	return job
}

func jobAddCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Job.Add.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	job := jobFromFlags(args.Job.Add.Def)
	if err := a.svc.CreateJob(ctx, job); err != nil {
		return err
	}
	logger.Info().Object("job", job).Msg("created job")
	fmt.Println(job.ID)
	return nil
}

func jobUpdateCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Job.Update.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	job := jobFromFlags(args.Job.Update.Def)
	job.ID = args.Job.Update.ID
	if err := a.svc.UpdateJob(ctx, job); err != nil {
		return err
	}
	logger.Info().Object("job", job).Msg("updated job")
	return nil
}

func jobRemoveCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Job.Remove.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	if err := a.svc.DeleteJob(ctx, args.Job.Remove.ID); err != nil {
		return err
	}
	logger.Info().Str("job", args.Job.Remove.ID).Msg("deleted job")
	return nil
}

func jobListCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Job.List.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	jobs, err := a.svc.ListJobs(ctx)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.MaxColWidth = 40
	table.AddRow("ID", "NAME", "STATUS", "SCHEDULE", "NEXT RUN", "LAST RUN")
	for _, job := range jobs {
		table.AddRow(job.ID, job.Name, job.Status, job.Schedule, formatTime(job.NextRun), formatTime(job.LastRun))
	}
	fmt.Fprintln(os.Stdout, table)
	return nil
}

func jobShowCommand(ctx context.Context, args Command, logger zerolog.Logger) error {
	a, err := openApp(args.Job.Show.Store, logger, nil)
	if err != nil {
		return err
	}
	defer a.Close()

	job, err := a.svc.GetJob(ctx, args.Job.Show.ID)
	if err != nil {
		return err
	}

	table := uitable.New()
	table.Wrap = true
	table.AddRow("ID:", job.ID)
	table.AddRow("Name:", job.Name)
	table.AddRow("Status:", job.Status)
	if job.StatusMessage != "" {
		table.AddRow("Reason:", job.StatusMessage)
	}
	table.AddRow("Source:", job.SourcePath)
	table.AddRow("Provider:", job.StorageProviderID)
	table.AddRow("Remote path:", job.RemotePath)
	table.AddRow("Schedule:", job.Schedule)
	table.AddRow("Retention days:", retentionLabel(job.RetentionDays))
	table.AddRow("Compression:", job.Compression)
	table.AddRow("Encryption:", job.Encryption)
	table.AddRow("Next run:", formatTime(job.NextRun))
	table.AddRow("Last run:", formatTime(job.LastRun))
	fmt.Fprintln(os.Stdout, table)
	return nil
}

func retentionLabel(days int) string {
	if days == 0 {
		return "default"
	}
	return strconv.Itoa(days)
}
