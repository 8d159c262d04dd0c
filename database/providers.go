package database

import (
	"context"
	"errors"
	"fmt"

	"github.com/stupid-simple/cloudbackup/storage"
	"gorm.io/gorm"
)

func (d *Database) CreateProvider(ctx context.Context, p *StorageProvider) error {
	if err := validate.Struct(p); err != nil {
		return validationError(err)
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	if p.ID == "" {
		p.ID = newID()
	}
	if err := d.conn(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("could not create storage provider: %w", err)
	}
	d.Logger.Debug().Object("provider", p).Msg("created storage provider")
	return nil
}

func (d *Database) GetProvider(ctx context.Context, id string) (*StorageProvider, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	return getProvider(d.conn(ctx), id)
}

func getProvider(tx *gorm.DB, id string) (*StorageProvider, error) {
	p := &StorageProvider{}
	err := tx.Where("id = ?", id).First(p).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("could not read storage provider: %w", err)
	}
	return p, nil
}

func (d *Database) ListProviders(ctx context.Context) ([]StorageProvider, error) {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	providers := []StorageProvider{}
	if err := d.conn(ctx).Order("created_at ASC, id ASC").Find(&providers).Error; err != nil {
		return nil, fmt.Errorf("could not list storage providers: %w", err)
	}
	return providers, nil
}

// ReplaceProviderConfig rotates the credential payload. The old payload is
// discarded, never merged.
func (d *Database) ReplaceProviderConfig(ctx context.Context, id string, config []byte) error {
	if len(config) == 0 {
		return validationError(errors.New("empty provider config"))
	}

	d.Lock.Lock()
	defer d.Lock.Unlock()

	res := d.conn(ctx).Model(&StorageProvider{}).Where("id = ?", id).Update("config", config)
	if res.Error != nil {
		return fmt.Errorf("could not rotate storage provider credentials: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrProviderNotFound, id)
	}
	d.Logger.Debug().Str("provider", id).Msg("rotated storage provider credentials")
	return nil
}

// DeleteProvider removes a provider no job references.
func (d *Database) DeleteProvider(ctx context.Context, id string) error {
	d.Lock.Lock()
	defer d.Lock.Unlock()

	return d.conn(ctx).Transaction(func(tx *gorm.DB) error {
		var refs int64
		if err := tx.Model(&BackupJob{}).Where("storage_provider_id = ?", id).Count(&refs).Error; err != nil {
			return fmt.Errorf("could not count provider references: %w", err)
		}
		if refs > 0 {
			return fmt.Errorf("%w: storage provider %s is used by %d job(s)", ErrReference, id, refs)
		}
		res := tx.Where("id = ?", id).Delete(&StorageProvider{})
		if res.Error != nil {
			return fmt.Errorf("could not delete storage provider: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrProviderNotFound, id)
		}
		d.Logger.Debug().Str("provider", id).Msg("deleted storage provider")
		return nil
	})
}

// LoadProvider implements storage.Loader.
func (d *Database) LoadProvider(ctx context.Context, id string) (storage.Credentials, error) {
	p, err := d.GetProvider(ctx, id)
	if err != nil {
		return storage.Credentials{}, err
	}
	variant, err := storage.ParseVariant(p.Variant)
	if err != nil {
		return storage.Credentials{}, err
	}
	return storage.Credentials{Variant: variant, Config: p.Config}, nil
}
