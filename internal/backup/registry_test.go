package backup

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wpvault/wpvault/internal/model"
)

func testConfig(id, provider string) *model.BackupConfig {
	return &model.BackupConfig{
		ID:       id,
		Provider: provider,
		Name:     "test",
		Active:   true,
		Settings: map[string]any{"token": "t", "owner": "o"},
	}
}

func registerFake(r *Registry, providerType string, failInits int64) *atomic.Int64 {
	var constructed atomic.Int64
	r.Register(Factory{
		Type: providerType,
		Schema: Schema{
			{Key: "token", Type: FieldPassword, Required: true},
			{Key: "owner", Type: FieldText, Required: true},
		},
		New: func(cfg *model.BackupConfig) (Provider, error) {
			constructed.Add(1)
			return &fakeProvider{cfg: cfg, failInits: failInits, initErr: errors.New("backend down")}, nil
		},
	})
	return &constructed
}

func TestRegistry_GetProvider_CachesByConfigID(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	constructed := registerFake(r, "fake", 0)

	cfg := testConfig("cfg-1", "fake")
	p1, err := r.GetProvider(context.Background(), cfg)
	require.NoError(t, err)
	p2, err := r.GetProvider(context.Background(), cfg)
	require.NoError(t, err)

	assert.Same(t, p1, p2)
	assert.Equal(t, int64(1), constructed.Load())
}

func TestRegistry_GetProvider_UnknownType(t *testing.T) {
	r := NewRegistry(zerolog.Nop())

	_, err := r.GetProvider(context.Background(), testConfig("cfg-1", "floppynet"))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderTypeNotFound)
}

func TestRegistry_GetProvider_InvalidSettings(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	registerFake(r, "fake", 0)

	cfg := testConfig("cfg-1", "fake")
	cfg.Settings = map[string]any{"owner": "o"} // token missing

	_, err := r.GetProvider(context.Background(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), `missing required setting "token"`)
}

func TestRegistry_GetProvider_InitRetriesThenSucceeds(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	registerFake(r, "fake", 2) // first two attempts fail, third succeeds

	p, err := r.GetProvider(context.Background(), testConfig("cfg-1", "fake"))
	require.NoError(t, err)
	assert.Equal(t, int64(3), p.(*fakeProvider).initCalls.Load())
}

func TestRegistry_GetProvider_InitExhaustedNotCached(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	constructed := registerFake(r, "fake", 99) // never succeeds

	cfg := testConfig("cfg-1", "fake")
	_, err := r.GetProvider(context.Background(), cfg)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrProviderUnavailable)

	// Not cached: the next call builds a fresh instance from scratch.
	_, err = r.GetProvider(context.Background(), cfg)
	require.Error(t, err)
	assert.Equal(t, int64(2), constructed.Load())
}

func TestRegistry_GetProvider_ConcurrentFirstRequestsShareInit(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	constructed := registerFake(r, "fake", 0)

	cfg := testConfig("cfg-1", "fake")

	const n = 10
	var wg sync.WaitGroup
	providers := make([]Provider, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p, err := r.GetProvider(context.Background(), cfg)
			require.NoError(t, err)
			providers[i] = p
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int64(1), constructed.Load(), "initialization must not run per caller")
	for i := 1; i < n; i++ {
		assert.Same(t, providers[0], providers[i])
	}
}

func TestRegistry_Evict(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	constructed := registerFake(r, "fake", 0)

	cfg := testConfig("cfg-1", "fake")
	_, err := r.GetProvider(context.Background(), cfg)
	require.NoError(t, err)

	r.Evict("cfg-1")

	_, err = r.GetProvider(context.Background(), cfg)
	require.NoError(t, err)
	assert.Equal(t, int64(2), constructed.Load())
}

func TestRegistry_Schemas(t *testing.T) {
	r := NewRegistry(zerolog.Nop())
	registerFake(r, "fake", 0)

	schemas := r.Schemas()
	require.Contains(t, schemas, "fake")
	assert.Len(t, schemas["fake"], 2)
}
