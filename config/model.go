package config

import (
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	TickInterval      Duration        `json:"tick_interval,omitempty" validate:"gte=0"`
	Timezone          string          `json:"timezone,omitempty"`
	NetworkTimeout    Duration        `json:"network_timeout,omitempty" validate:"gte=0"`
	EncryptionKeyFile string          `json:"encryption_key_file,omitempty"`
	Upload            UploadConfig    `json:"upload"`
	MaxArchiveSize    SizeArgument    `json:"max_archive_size,omitempty"`
	MetricsAddr       string          `json:"metrics_addr,omitempty" validate:"omitempty,hostname_port"`
	Settings          *SettingsConfig `json:"settings,omitempty"`
}

// UploadConfig is the retry policy for transient upload failures.
type UploadConfig struct {
	MaxAttempts    int      `json:"max_attempts,omitempty" validate:"gte=0"`
	InitialBackoff Duration `json:"initial_backoff,omitempty" validate:"gte=0"`
	MaxBackoff     Duration `json:"max_backoff,omitempty" validate:"gte=0"`
}

// SettingsConfig seeds the settings table when the daemon starts or the
// config file changes.
type SettingsConfig struct {
	MaxConcurrentJobs int `json:"max_concurrent_jobs" validate:"gte=1"`
	RetentionDays     int `json:"retention_days" validate:"gte=0"`
	CompressionLevel  int `json:"compression_level" validate:"gte=1,lte=9"`
}

func Default() *Config {
	return &Config{
		TickInterval:   Duration(time.Minute),
		Timezone:       "UTC",
		NetworkTimeout: Duration(30 * time.Second),
		Upload: UploadConfig{
			MaxAttempts:    3,
			InitialBackoff: Duration(time.Second),
			MaxBackoff:     Duration(30 * time.Second),
		},
	}
}

// Location resolves Timezone. Schedules are evaluated in this location.
func (c *Config) Location() (*time.Location, error) {
	if c.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Timezone)
}

func (c Config) MarshalZerologObject(e *zerolog.Event) {
	e.Dur("tick_interval", time.Duration(c.TickInterval))
	e.Str("timezone", c.Timezone)
	e.Dur("network_timeout", time.Duration(c.NetworkTimeout))
	e.Int("upload_max_attempts", c.Upload.MaxAttempts)
	e.Bool("encryption_key", c.EncryptionKeyFile != "")

	if c.MaxArchiveSize.Size > 0 {
		e.Int64("max_archive_size", c.MaxArchiveSize.Size)
	}
	if c.MetricsAddr != "" {
		e.Str("metrics_addr", c.MetricsAddr)
	}
}
