package backup

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/database"
)

type RecoveryStore interface {
	ListJobsByStatus(ctx context.Context, status database.JobStatus) ([]database.BackupJob, error)
	ResetJob(ctx context.Context, id string) (bool, error)
}

// Recover returns every job left running by a previous process to active
// and reports the ids it reset. Their running history rows are kept as is.
// Must run before the scheduler starts.
func Recover(ctx context.Context, store RecoveryStore, logger zerolog.Logger) ([]string, error) {
	jobs, err := store.ListJobsByStatus(ctx, database.JobRunning)
	if err != nil {
		return nil, fmt.Errorf("could not list running jobs: %w", err)
	}

	reset := []string{}
	for _, job := range jobs {
		ok, err := store.ResetJob(ctx, job.ID)
		if err != nil {
			return reset, err
		}
		if ok {
			logger.Warn().Object("job", job).Msg("recovered interrupted job")
			reset = append(reset, job.ID)
		}
	}
	return reset, nil
}
