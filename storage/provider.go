package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

// Variant is the backend discriminant stored with every provider.
type Variant string

const (
	VariantS3    Variant = "s3"
	VariantB2    Variant = "b2"
	VariantStorj Variant = "storj"
)

// Variants lists the supported backends.
var Variants = []Variant{VariantS3, VariantB2, VariantStorj}

func ParseVariant(s string) (Variant, error) {
	for _, v := range Variants {
		if string(v) == s {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedVariant, s)
}

// Entry is a remote object.
type Entry struct {
	Path    string
	Size    int64
	ModTime time.Time
}

func (e Entry) MarshalZerologObject(ev *zerolog.Event) {
	ev.Str("path", e.Path)
	ev.Int64("size", e.Size)
	ev.Time("mod_time", e.ModTime)
}

// Provider is the capability set every storage backend exposes.
// Implementations must be safe for concurrent use.
type Provider interface {
	List(ctx context.Context, prefix string) ([]Entry, error)
	Get(ctx context.Context, path string) ([]byte, error)
	Put(ctx context.Context, path string, data []byte) error
	Delete(ctx context.Context, path string) error
	Variant() Variant
}

// Factory builds a provider from a credential payload.
type Factory func(variant Variant, config []byte) (Provider, error)

var validate = validator.New()

// New builds a provider directly from a credential payload.
func New(variant Variant, config []byte, opts ...Option) (Provider, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}

	switch variant {
	case VariantS3:
		return newS3Provider(config, o)
	case VariantB2:
		return newB2Provider(config, o)
	case VariantStorj:
		return newStorjProvider(config, o)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedVariant, variant)
	}
}

// NewFactory returns a Factory that applies opts to every provider it builds.
func NewFactory(opts ...Option) Factory {
	return func(variant Variant, config []byte) (Provider, error) {
		return New(variant, config, opts...)
	}
}

// ValidateConfig checks that a credential payload is well formed for the variant
// without contacting the backend.
func ValidateConfig(variant Variant, config []byte) error {
	_, err := New(variant, config)
	return err
}

func decodeConfig(config []byte, dst any) error {
	if err := json.Unmarshal(config, dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := validate.Struct(dst); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
