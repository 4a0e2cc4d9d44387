package server

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/rueidis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func setupCacheTest(t *testing.T) (*renderCache, *miniredis.Miniredis) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{mr.Addr()},
		DisableCache: true,
	})
	require.NoError(t, err)
	t.Cleanup(client.Close)

	return newRenderCache(client, time.Minute, zap.NewNop()), mr
}

func TestRenderCache(t *testing.T) {
	t.Parallel()

	cache, mr := setupCacheTest(t)
	ctx := t.Context()

	_, ok := cache.get(ctx)
	assert.False(t, ok, "empty cache must miss")

	cache.set(ctx, "rendered whitelist")

	value, ok := cache.get(ctx)
	require.True(t, ok)
	assert.Equal(t, "rendered whitelist", value)

	cache.invalidate(ctx)

	_, ok = cache.get(ctx)
	assert.False(t, ok, "invalidated cache must miss")

	cache.set(ctx, "expiring")
	mr.FastForward(2 * time.Minute)

	_, ok = cache.get(ctx)
	assert.False(t, ok, "expired cache must miss")
}

func TestRenderCacheNilClient(t *testing.T) {
	t.Parallel()

	cache := newRenderCache(nil, time.Minute, zap.NewNop())
	ctx := t.Context()

	_, ok := cache.get(ctx)
	assert.False(t, ok)

	// Must not panic without a backing client.
	cache.set(ctx, "value")
	cache.invalidate(ctx)
}
