package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
)

// GetSettings returns the newest settings row, or the defaults when none was saved.
func (d *Database) GetSettings(ctx context.Context) (Settings, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	s := Settings{}
	err := d.conn(ctx).Order("id DESC").First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return DefaultSettings(), nil
	}
	if err != nil {
		return Settings{}, fmt.Errorf("could not read settings: %w", err)
	}
	return s, nil
}

// SaveSettings appends s as the newest settings row.
func (d *Database) SaveSettings(ctx context.Context, s Settings) (Settings, error) {
	if err := validate.Struct(s); err != nil {
		return Settings{}, validationError(err)
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	s.ID = 0
	s.CreatedAt = time.Time{}
	if err := d.conn(ctx).Create(&s).Error; err != nil {
		return Settings{}, fmt.Errorf("could not save settings: %w", err)
	}
	d.Logger.Info().Object("settings", s).Msg("saved settings")
	return s, nil
}
