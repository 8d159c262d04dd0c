package database

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/glebarez/sqlite"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

var validate = validator.New()

// Database serialises access to a single sqlite connection.
type Database struct {
	Lock   sync.Mutex
	Cli    *gorm.DB
	Logger zerolog.Logger
}

// Open opens (or creates) the sqlite database at path and migrates the schema.
// Use ":memory:" for a throwaway database.
func Open(path string, logger zerolog.Logger) (*Database, error) {
	cli, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: dbLogger(logger),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		NamingStrategy: schema.NamingStrategy{
			SingularTable: true,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}

	sqlDB, err := cli.DB()
	if err != nil {
		return nil, fmt.Errorf("could not open database: %w", err)
	}
	// A second connection to ":memory:" would be a different database.
	sqlDB.SetMaxOpenConns(1)

	err = cli.AutoMigrate(&StorageProvider{}, &BackupJob{}, &BackupHistory{}, &Settings{})
	if err != nil {
		return nil, fmt.Errorf("could not migrate database: %w", err)
	}

	return &Database{
		Cli:    cli,
		Logger: logger,
	}, nil
}

func (d *Database) Close() error {
	sqlDB, err := d.Cli.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (d *Database) conn(ctx context.Context) *gorm.DB {
	return d.Cli.WithContext(ctx)
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

func validationError(err error) error {
	return fmt.Errorf("%w: %w", ErrValidation, err)
}
