package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// StartRun appends a running history row for jobID.
func (d *Database) StartRun(ctx context.Context, jobID string, startedAt time.Time) (*BackupHistory, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	startedAt = startedAt.UTC()
	run := &BackupHistory{
		ID:        newID(),
		JobID:     jobID,
		Status:    RunRunning,
		StartedAt: startedAt,
		CreatedAt: startedAt,
	}
	if err := d.conn(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("could not record run start: %w", err)
	}
	return run, nil
}

// FinishRun moves a running row to its terminal state. A row transitions
// exactly once; finishing it again returns ErrRunFinished.
func (d *Database) FinishRun(ctx context.Context, run *BackupHistory) error {
	if !run.Status.Terminal() {
		return validationError(fmt.Errorf("run %s cannot finish as %q", run.ID, run.Status))
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.conn(ctx).Model(&BackupHistory{}).
		Where("id = ? AND status = ?", run.ID, RunRunning).
		Updates(map[string]any{
			"status":            run.Status,
			"ended_at":          run.EndedAt,
			"duration":          run.Duration,
			"size":              run.Size,
			"compression_ratio": run.CompressionRatio,
			"message":           run.Message,
			"object_path":       run.ObjectPath,
			"checksum":          run.Checksum,
			"files":             run.Files,
		})
	if res.Error != nil {
		return fmt.Errorf("could not record run outcome: %w", res.Error)
	}
	if res.RowsAffected == 1 {
		return nil
	}

	var count int64
	if err := d.conn(ctx).Model(&BackupHistory{}).Where("id = ?", run.ID).Count(&count).Error; err != nil {
		return fmt.Errorf("could not read run: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, run.ID)
	}
	return fmt.Errorf("%w: %s", ErrRunFinished, run.ID)
}

func (d *Database) GetRun(ctx context.Context, id string) (*BackupHistory, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	run := &BackupHistory{}
	err := d.conn(ctx).Where("id = ?", id).First(run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read run: %w", err)
	}
	return run, nil
}

// ListRuns returns history rows newest first.
func (d *Database) ListRuns(ctx context.Context, opts ...ListRunsOption) ([]BackupHistory, error) {
	o := listRunsOptions{}
	for _, opt := range opts {
		opt(&o)
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	q := d.conn(ctx).Order("created_at DESC, id DESC")
	if o.jobID != "" {
		q = q.Where("job_id = ?", o.jobID)
	}
	if o.status != "" {
		q = q.Where("status = ?", o.status)
	}
	if o.limit > 0 {
		q = q.Limit(o.limit)
	}

	runs := []BackupHistory{}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("could not list runs: %w", err)
	}
	return runs, nil
}
