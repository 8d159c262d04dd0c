package storage

// StorjConfig holds gateway credentials generated for a Storj access grant.
type StorjConfig struct {
	AccessKey string `json:"access_key" validate:"required"`
	SecretKey string `json:"secret_key" validate:"required"`
	Bucket    string `json:"bucket" validate:"required"`
	Endpoint  string `json:"endpoint,omitempty" validate:"omitempty,url"`
}

const (
	defaultStorjEndpoint = "https://gateway.storjshare.io"
	storjRegion          = "global"
)

type storjProvider struct {
	*objectStore
}

func (storjProvider) Variant() Variant {
	return VariantStorj
}

func newStorjProvider(config []byte, o options) (Provider, error) {
	cfg := StorjConfig{}
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Endpoint == "" {
		cfg.Endpoint = defaultStorjEndpoint
	}

	return storjProvider{newObjectStore(VariantStorj, cfg.Bucket, clientParams{
		endpoint:  cfg.Endpoint,
		region:    storjRegion,
		accessKey: cfg.AccessKey,
		secretKey: cfg.SecretKey,
		pathStyle: true,
	}, o)}, nil
}
