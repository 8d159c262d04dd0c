package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/stupid-simple/cloudbackup/backup"
	"github.com/stupid-simple/cloudbackup/config"
	"github.com/stupid-simple/cloudbackup/database"
	"github.com/stupid-simple/cloudbackup/encryption"
	"github.com/stupid-simple/cloudbackup/metrics"
	"github.com/stupid-simple/cloudbackup/storage"
)

type app struct {
	cfg *config.Config
	db  *database.Database
	svc *backup.Service
}

func (a *app) Close() error {
	return a.db.Close()
}

// openApp loads the config file, opens the database and builds the service.
// m may be nil.
func openApp(flags StoreFlags, logger zerolog.Logger, m *metrics.Metrics) (*app, error) {
	cfg, err := config.LoadFromFile(flags.Config)
	if err != nil {
		return nil, fmt.Errorf("could not load config: %w", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, fmt.Errorf("could not load timezone: %w", err)
	}

	opts := []backup.Option{
		backup.WithUploadRetry(cfg.Upload.MaxAttempts, cfg.Upload.InitialBackoff.Std(), cfg.Upload.MaxBackoff.Std()),
		backup.WithMaxArchiveBytes(cfg.MaxArchiveSize.Size),
	}
	if cfg.EncryptionKeyFile != "" {
		key, err := encryption.LoadKeyFile(cfg.EncryptionKeyFile)
		if err != nil {
			return nil, fmt.Errorf("could not load encryption key: %w", err)
		}
		opts = append(opts, backup.WithEncryptionKey(key))
	}

	db, err := database.Open(flags.Database, logger)
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	svc := backup.NewService(backup.ServiceParams{
		DB:             db,
		Logger:         logger,
		Metrics:        m,
		Location:       loc,
		TickInterval:   cfg.TickInterval.Std(),
		StorageOptions: []storage.Option{storage.WithTimeout(cfg.NetworkTimeout.Std())},
	}, opts...)

	return &app{cfg: cfg, db: db, svc: svc}, nil
}

func formatTime(t *time.Time) string {
	if t == nil || t.IsZero() {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}
