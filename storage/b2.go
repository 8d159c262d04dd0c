package storage

import "fmt"

// B2Config holds a Backblaze B2 application key. The bucket is addressed
// through the region's S3-compatible endpoint.
type B2Config struct {
	KeyID          string `json:"key_id" validate:"required"`
	ApplicationKey string `json:"application_key" validate:"required"`
	Bucket         string `json:"bucket" validate:"required"`
	Region         string `json:"region" validate:"required"`
	Endpoint       string `json:"endpoint,omitempty" validate:"omitempty,url"`
}

type b2Provider struct {
	*objectStore
}

func (b2Provider) Variant() Variant {
	return VariantB2
}

func newB2Provider(config []byte, o options) (Provider, error) {
	cfg := B2Config{}
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = fmt.Sprintf("https://s3.%s.backblazeb2.com", cfg.Region)
	}

	return b2Provider{newObjectStore(VariantB2, cfg.Bucket, clientParams{
		endpoint:  cfg.Endpoint,
		region:    cfg.Region,
		accessKey: cfg.KeyID,
		secretKey: cfg.ApplicationKey,
		pathStyle: true,
	}, o)}, nil
}
