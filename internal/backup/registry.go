package backup

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/sethvargo/go-retry"
	"golang.org/x/sync/singleflight"

	"github.com/wpvault/wpvault/internal/model"
)

var (
	// ErrProviderTypeNotFound means the config names a provider type no
	// factory is registered for. No default provider is substituted.
	ErrProviderTypeNotFound = errors.New("provider type not found")
	// ErrProviderUnavailable means a provider instance failed to
	// initialize after retries. The instance is not cached; the next
	// call starts from scratch.
	ErrProviderUnavailable = errors.New("provider unavailable")
)

const initAttempts = 3

// Factory builds provider instances of one type. New is only invoked
// with settings that passed Schema validation.
type Factory struct {
	Type   string
	Schema Schema
	New    func(cfg *model.BackupConfig) (Provider, error)
}

// Registry maps provider-type strings to factories and caches
// initialized instances per configuration id. Concurrent first-time
// requests for the same config share a single initialize-with-retry
// sequence.
type Registry struct {
	mu        sync.RWMutex
	factories map[string]Factory
	instances map[string]Provider
	initGroup singleflight.Group
	logger    zerolog.Logger
}

func NewRegistry(logger zerolog.Logger) *Registry {
	return &Registry{
		factories: make(map[string]Factory),
		instances: make(map[string]Provider),
		logger:    logger.With().Str("component", "provider-registry").Logger(),
	}
}

func (r *Registry) Register(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[f.Type] = f
}

// Schemas returns the settings schema per registered provider type.
func (r *Registry) Schemas() map[string]Schema {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]Schema, len(r.factories))
	for t, f := range r.factories {
		out[t] = f.Schema
	}
	return out
}

// GetProvider returns the cached instance for cfg.ID, or constructs and
// initializes one. A provider that fails to initialize after retries is
// not cached and the call fails with ErrProviderUnavailable.
func (r *Registry) GetProvider(ctx context.Context, cfg *model.BackupConfig) (Provider, error) {
	r.mu.RLock()
	p, ok := r.instances[cfg.ID]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	v, err, _ := r.initGroup.Do(cfg.ID, func() (any, error) {
		// Re-check under the group: a concurrent caller may have just
		// finished caching.
		r.mu.RLock()
		p, ok := r.instances[cfg.ID]
		r.mu.RUnlock()
		if ok {
			return p, nil
		}
		return r.build(ctx, cfg)
	})
	if err != nil {
		return nil, err
	}
	return v.(Provider), nil
}

func (r *Registry) build(ctx context.Context, cfg *model.BackupConfig) (Provider, error) {
	r.mu.RLock()
	factory, ok := r.factories[cfg.Provider]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrProviderTypeNotFound, cfg.Provider)
	}

	if err := factory.Schema.Validate(cfg.Settings); err != nil {
		return nil, fmt.Errorf("invalid %s settings: %w", cfg.Provider, err)
	}

	p, err := factory.New(cfg)
	if err != nil {
		return nil, fmt.Errorf("construct %s provider: %w", cfg.Provider, err)
	}

	attempt := 0
	backoff := retry.WithMaxRetries(initAttempts-1, retry.NewExponential(1*time.Second))
	err = retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if initErr := p.Initialize(ctx); initErr != nil {
			r.logger.Warn().
				Str("config_id", cfg.ID).
				Str("provider", cfg.Provider).
				Int("attempt", attempt).
				Err(initErr).
				Msg("provider initialization failed")
			return retry.RetryableError(initErr)
		}
		return nil
	})
	if err != nil {
		r.logger.Error().
			Str("config_id", cfg.ID).
			Str("provider", cfg.Provider).
			Int("attempts", attempt).
			Err(err).
			Msg("provider initialization gave up")
		return nil, fmt.Errorf("%w: initialize %s: %v", ErrProviderUnavailable, cfg.Provider, err)
	}

	r.mu.Lock()
	r.instances[cfg.ID] = p
	r.mu.Unlock()

	r.logger.Info().Str("config_id", cfg.ID).Str("provider", cfg.Provider).Msg("provider initialized")
	return p, nil
}

// Evict drops the cached instance for a config id, forcing the next
// GetProvider to rebuild it. Called on credential rotation.
func (r *Registry) Evict(configID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.instances, configID)
}
