package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// CreateJob validates and inserts job, assigning its id. The referenced
// provider must exist.
func (d *Database) CreateJob(ctx context.Context, job *BackupJob) error {
	if job.Status == "" {
		job.Status = JobActive
	}
	if err := validate.Struct(job); err != nil {
		return validationError(err)
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	return d.conn(ctx).Transaction(func(tx *gorm.DB) error {
		if err := providerExists(tx, job.StorageProviderID); err != nil {
			return err
		}
		if job.ID == "" {
			job.ID = newID()
		}
		if err := tx.Create(job).Error; err != nil {
			return fmt.Errorf("could not create job: %w", err)
		}
		d.Logger.Debug().Object("job", job).Msg("created job")
		return nil
	})
}

func (d *Database) GetJob(ctx context.Context, id string) (*BackupJob, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	job := &BackupJob{}
	err := d.conn(ctx).Where("id = ?", id).First(job).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read job: %w", err)
	}
	return job, nil
}

func (d *Database) ListJobs(ctx context.Context) ([]BackupJob, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	jobs := []BackupJob{}
	err := d.conn(ctx).Order("created_at ASC, id ASC").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("could not list jobs: %w", err)
	}
	return jobs, nil
}

func (d *Database) ListJobsByStatus(ctx context.Context, status JobStatus) ([]BackupJob, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	jobs := []BackupJob{}
	err := d.conn(ctx).Where("status = ?", status).Order("created_at ASC, id ASC").Find(&jobs).Error
	if err != nil {
		return nil, fmt.Errorf("could not list %s jobs: %w", status, err)
	}
	return jobs, nil
}

func (d *Database) ListActiveJobs(ctx context.Context) ([]BackupJob, error) {
	return d.ListJobsByStatus(ctx, JobActive)
}

// UpdateJob rewrites the definition of job. A failed job becomes active again.
// A running job keeps its status: edits never abort an in-flight run.
func (d *Database) UpdateJob(ctx context.Context, job *BackupJob) error {
	if err := validate.Struct(job); err != nil {
		return validationError(err)
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	return d.conn(ctx).Transaction(func(tx *gorm.DB) error {
		current := BackupJob{}
		err := tx.Where("id = ?", job.ID).First(&current).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("%w: %s", ErrJobNotFound, job.ID)
		}
		if err != nil {
			return fmt.Errorf("could not read job: %w", err)
		}
		if err := providerExists(tx, job.StorageProviderID); err != nil {
			return err
		}

		updates := map[string]any{
			"name":                job.Name,
			"source_path":         job.SourcePath,
			"storage_provider_id": job.StorageProviderID,
			"remote_path":         job.RemotePath,
			"schedule":            job.Schedule,
			"retention_days":      job.RetentionDays,
			"compression":         job.Compression,
			"encryption":          job.Encryption,
			"next_run":            job.NextRun,
		}
		switch {
		case current.Status == JobRunning:
		case job.Status == JobPaused:
			updates["status"] = JobPaused
			updates["status_message"] = ""
		default:
			updates["status"] = JobActive
			updates["status_message"] = ""
		}

		if err := tx.Model(&current).Updates(updates).Error; err != nil {
			return fmt.Errorf("could not update job: %w", err)
		}
		if err := tx.Where("id = ?", job.ID).First(job).Error; err != nil {
			return fmt.Errorf("could not read job: %w", err)
		}
		d.Logger.Debug().Object("job", job).Msg("updated job")
		return nil
	})
}

// DeleteJob removes the job definition. Its history is kept and an
// in-flight run is not interrupted.
func (d *Database) DeleteJob(ctx context.Context, id string) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.conn(ctx).Where("id = ?", id).Delete(&BackupJob{})
	if res.Error != nil {
		return fmt.Errorf("could not delete job: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrJobNotFound, id)
	}
	d.Logger.Debug().Str("job", id).Msg("deleted job")
	return nil
}

// AdmitJob flips an active job to running. It is the single-flight guard:
// it reports false when the job is not active (already running, paused,
// flagged or deleted). A non-nil nextRun is persisted in the same statement.
func (d *Database) AdmitJob(ctx context.Context, id string, nextRun *time.Time) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	updates := map[string]any{"status": JobRunning}
	if nextRun != nil {
		updates["next_run"] = nextRun.UTC()
	}
	res := d.conn(ctx).Model(&BackupJob{}).
		Where("id = ? AND status = ?", id, JobActive).
		Updates(updates)
	if res.Error != nil {
		return false, fmt.Errorf("could not admit job: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (d *Database) SetNextRun(ctx context.Context, id string, nextRun time.Time) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	err := d.conn(ctx).Model(&BackupJob{}).
		Where("id = ?", id).
		Update("next_run", nextRun.UTC()).Error
	if err != nil {
		return fmt.Errorf("could not set next run: %w", err)
	}
	return nil
}

// FlagJob marks an active job failed so the scheduler stops considering it.
func (d *Database) FlagJob(ctx context.Context, id string, message string) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	err := d.conn(ctx).Model(&BackupJob{}).
		Where("id = ? AND status = ?", id, JobActive).
		Updates(map[string]any{"status": JobFailed, "status_message": message}).Error
	if err != nil {
		return fmt.Errorf("could not flag job: %w", err)
	}
	return nil
}

// SetLastRun records the end of a successful run. The status is left to
// whoever admitted the job.
func (d *Database) SetLastRun(ctx context.Context, id string, lastRun time.Time) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	err := d.conn(ctx).Model(&BackupJob{}).
		Where("id = ?", id).
		Update("last_run", lastRun.UTC()).Error
	if err != nil {
		return fmt.Errorf("could not set last run: %w", err)
	}
	return nil
}

// ResetJob returns a running job to active. It reports whether the job was running.
func (d *Database) ResetJob(ctx context.Context, id string) (bool, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.conn(ctx).Model(&BackupJob{}).
		Where("id = ? AND status = ?", id, JobRunning).
		Update("status", JobActive)
	if res.Error != nil {
		return false, fmt.Errorf("could not reset job: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func providerExists(tx *gorm.DB, id string) error {
	var count int64
	if err := tx.Model(&StorageProvider{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return fmt.Errorf("could not read storage provider: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("%w: storage provider %s does not exist", ErrReference, id)
	}
	return nil
}
