package database

import (
	"time"

	"github.com/rs/zerolog"
)

type JobStatus string

const (
	JobActive  JobStatus = "active"
	JobRunning JobStatus = "running"
	JobPaused  JobStatus = "paused"
	JobFailed  JobStatus = "failed"
)

type RunStatus string

const (
	RunRunning RunStatus = "running"
	RunSuccess RunStatus = "success"
	RunFailed  RunStatus = "failed"
)

// Terminal reports whether no further transition is allowed from s.
func (s RunStatus) Terminal() bool {
	return s == RunSuccess || s == RunFailed
}

type BackupJob struct {
	ID                string     `gorm:"primaryKey" json:"id"`
	Name              string     `gorm:"not null" json:"name" validate:"required"`
	SourcePath        string     `gorm:"not null" json:"source_path" validate:"required"`
	StorageProviderID string     `gorm:"index;not null" json:"storage_provider_id" validate:"required"`
	RemotePath        string     `gorm:"not null" json:"remote_path" validate:"required"`
	Schedule          string     `gorm:"not null" json:"schedule" validate:"required"`
	RetentionDays     int        `json:"retention_days" validate:"gte=0"`
	Compression       bool       `json:"compression"`
	Encryption        bool       `json:"encryption"`
	Status            JobStatus  `gorm:"index;not null" json:"status" validate:"omitempty,oneof=active running paused failed"`
	StatusMessage     string     `json:"status_message,omitempty"`
	NextRun           *time.Time `json:"next_run,omitempty"`
	LastRun           *time.Time `json:"last_run,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
}

func (BackupJob) TableName() string {
	return "backup_jobs"
}

func (j BackupJob) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", j.ID)
	e.Str("name", j.Name)
	e.Str("status", string(j.Status))
	e.Str("schedule", j.Schedule)
	if j.NextRun != nil {
		e.Time("next_run", *j.NextRun)
	}
}

type StorageProvider struct {
	ID        string    `gorm:"primaryKey" json:"id"`
	Name      string    `gorm:"not null" json:"name" validate:"required"`
	Variant   string    `gorm:"not null" json:"variant" validate:"required,oneof=s3 b2 storj"`
	Config    []byte    `gorm:"not null" json:"-" validate:"required"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (StorageProvider) TableName() string {
	return "storage_providers"
}

func (p StorageProvider) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", p.ID)
	e.Str("name", p.Name)
	e.Str("variant", p.Variant)
}

type BackupHistory struct {
	ID               string     `gorm:"primaryKey" json:"id"`
	JobID            string     `gorm:"index;not null" json:"job_id"`
	Status           RunStatus  `gorm:"index;not null" json:"status"`
	StartedAt        time.Time  `json:"started_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
	Duration         int64      `json:"duration"` // Milliseconds.
	Size             int64      `json:"size"`
	CompressionRatio *float64   `json:"compression_ratio,omitempty"`
	Message          string     `json:"message,omitempty"`
	ObjectPath       string     `json:"object_path,omitempty"`
	Checksum         string     `json:"checksum,omitempty"`
	Files            int        `json:"files"`
	CreatedAt        time.Time  `gorm:"index" json:"created_at"`
}

func (BackupHistory) TableName() string {
	return "backup_history"
}

func (h BackupHistory) MarshalZerologObject(e *zerolog.Event) {
	e.Str("id", h.ID)
	e.Str("job", h.JobID)
	e.Str("status", string(h.Status))
	if h.ObjectPath != "" {
		e.Str("object", h.ObjectPath)
	}
	if h.Status.Terminal() {
		e.Int64("duration_ms", h.Duration)
		e.Int64("size", h.Size)
	}
}

// Settings rows are never updated; the newest row wins.
type Settings struct {
	ID                uint      `gorm:"primaryKey;autoIncrement" json:"-"`
	MaxConcurrentJobs int       `json:"max_concurrent_jobs" validate:"gte=1"`
	RetentionDays     int       `json:"retention_days" validate:"gte=0"`
	CompressionLevel  int       `json:"compression_level" validate:"gte=1,lte=9"`
	CreatedAt         time.Time `json:"created_at"`
}

func (Settings) TableName() string {
	return "settings"
}

func (s Settings) MarshalZerologObject(e *zerolog.Event) {
	e.Int("max_concurrent_jobs", s.MaxConcurrentJobs)
	e.Int("retention_days", s.RetentionDays)
	e.Int("compression_level", s.CompressionLevel)
}

func DefaultSettings() Settings {
	return Settings{
		MaxConcurrentJobs: 2,
		RetentionDays:     30,
		CompressionLevel:  6,
	}
}
