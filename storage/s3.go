package storage

type S3Config struct {
	AccessKeyID     string `json:"access_key_id" validate:"required"`
	SecretAccessKey string `json:"secret_access_key" validate:"required"`
	Bucket          string `json:"bucket" validate:"required"`
	Region          string `json:"region"`
	Endpoint        string `json:"endpoint,omitempty" validate:"omitempty,url"`
	PathStyle       bool   `json:"path_style,omitempty"`
}

const defaultS3Region = "us-east-1"

type s3Provider struct {
	*objectStore
}

func (s3Provider) Variant() Variant {
	return VariantS3
}

func newS3Provider(config []byte, o options) (Provider, error) {
	cfg := S3Config{}
	if err := decodeConfig(config, &cfg); err != nil {
		return nil, err
	}
	if cfg.Region == "" {
		cfg.Region = defaultS3Region
	}

	return s3Provider{newObjectStore(VariantS3, cfg.Bucket, clientParams{
		endpoint:  cfg.Endpoint,
		region:    cfg.Region,
		accessKey: cfg.AccessKeyID,
		secretKey: cfg.SecretAccessKey,
		pathStyle: cfg.PathStyle,
	}, o)}, nil
}
