package storage

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

const checkConcurrency = 8

// Credentials is a persisted provider payload.
type Credentials struct {
	Variant Variant
	Config  []byte
}

// Loader reads persisted provider credentials. Unknown ids must yield ErrNotFound.
type Loader interface {
	LoadProvider(ctx context.Context, id string) (Credentials, error)
}

type RegistryParams struct {
	Loader  Loader
	Logger  zerolog.Logger
	Factory Factory // Defaults to New with no options.
}

func NewRegistry(params RegistryParams) *Registry {
	factory := params.Factory
	if factory == nil {
		factory = NewFactory()
	}
	return &Registry{
		loader:      params.Loader,
		factory:     factory,
		logger:      params.Logger,
		clients:     make(map[string]Provider),
		generations: make(map[string]uint64),
	}
}

// Registry caches managed provider clients keyed by provider id.
type Registry struct {
	loader  Loader
	factory Factory
	logger  zerolog.Logger

	mu          sync.Mutex
	clients     map[string]Provider
	generations map[string]uint64
}

// Get returns the cached client for id, building it from persisted credentials on first use.
func (r *Registry) Get(ctx context.Context, id string) (Provider, error) {
	r.mu.Lock()
	if p, ok := r.clients[id]; ok {
		r.mu.Unlock()
		return p, nil
	}
	gen := r.generations[id]
	r.mu.Unlock()

	creds, err := r.loader.LoadProvider(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := r.factory(creds.Variant, creds.Config)
	if err != nil {
		return nil, fmt.Errorf("could not build provider %s: %w", id, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.clients[id]; ok {
		return existing, nil
	}
	// Credentials rotated while building, hand out the client uncached.
	if r.generations[id] != gen {
		return p, nil
	}
	r.clients[id] = p
	r.logger.Debug().Str("provider", id).Str("variant", string(creds.Variant)).Msg("cached storage client")
	return p, nil
}

// Invalidate drops the cached client for id. Must be called whenever the
// provider credentials are rewritten or the provider is deleted.
func (r *Registry) Invalidate(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.clients, id)
	r.generations[id]++
	r.logger.Debug().Str("provider", id).Msg("invalidated storage client")
}

// Cached reports whether a client for id is currently cached.
func (r *Registry) Cached(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.clients[id]
	return ok
}

// CheckResult is the outcome of one connection test.
type CheckResult struct {
	ProviderID string `json:"provider_id,omitempty"`
	Connected  bool   `json:"connected"`
	Error      string `json:"error,omitempty"`
	Status     int    `json:"status"`
	Err        error  `json:"-"`
}

func (c CheckResult) MarshalZerologObject(e *zerolog.Event) {
	if c.ProviderID != "" {
		e.Str("provider", c.ProviderID)
	}
	e.Bool("connected", c.Connected)
	if c.Error != "" {
		e.Str("error", c.Error)
	}
}

func newCheckResult(id string, err error) CheckResult {
	res := CheckResult{
		ProviderID: id,
		Connected:  err == nil,
		Status:     HTTPStatus(err),
		Err:        err,
	}
	if err != nil {
		res.Error = err.Error()
	}
	return res
}

// Check lists the bucket root; a provider is healthy when that succeeds.
func Check(ctx context.Context, p Provider) error {
	_, err := p.List(ctx, "/")
	return err
}

// Check tests the managed client of a persisted provider.
func (r *Registry) Check(ctx context.Context, id string) CheckResult {
	p, err := r.Get(ctx, id)
	if err != nil {
		return newCheckResult(id, err)
	}
	return newCheckResult(id, Check(ctx, p))
}

// CheckConfig tests an ephemeral client built from config. Nothing is cached.
func (r *Registry) CheckConfig(ctx context.Context, variant Variant, config []byte) CheckResult {
	p, err := r.factory(variant, config)
	if err != nil {
		return newCheckResult("", err)
	}
	return newCheckResult("", Check(ctx, p))
}

// CheckAll tests every provider independently. The result has one entry per
// id, in input order; a failing provider never affects the others.
func (r *Registry) CheckAll(ctx context.Context, ids []string) []CheckResult {
	results := make([]CheckResult, len(ids))

	var g errgroup.Group
	g.SetLimit(checkConcurrency)
	for i, id := range ids {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					results[i] = newCheckResult(id, fmt.Errorf("provider check panicked: %v", rec))
				}
			}()
			results[i] = r.Check(ctx, id)
			return nil
		})
	}
	_ = g.Wait()

	for _, res := range results {
		r.logger.Info().Object("result", res).Msg("checked storage provider")
	}
	return results
}
