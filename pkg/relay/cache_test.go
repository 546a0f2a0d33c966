package relay_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit-io/relay/pkg/relay"
)

func TestMemoryCache_SetAndGet(t *testing.T) {
	t.Parallel()

	cache := relay.NewMemoryCache(10)
	ctx := context.Background()

	entry := &relay.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
		ETag:      "abc123",
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	retrieved, err := cache.Get(ctx, "key1")
	require.NoError(t, err)
	assert.Equal(t, entry.Data, retrieved.Data)
	assert.Equal(t, entry.ETag, retrieved.ETag)
}

func TestMemoryCache_GetNonExistent(t *testing.T) {
	t.Parallel()

	cache := relay.NewMemoryCache(10)

	_, err := cache.Get(context.Background(), "nonexistent")
	require.ErrorIs(t, err, relay.ErrCacheKeyNotFound)
}

func TestMemoryCache_GetExpired(t *testing.T) {
	t.Parallel()

	cache := relay.NewMemoryCache(10)
	ctx := context.Background()

	entry := &relay.CacheEntry{
		Data:      []byte("test data"),
		ExpiresAt: time.Now().Add(-1 * time.Hour),
	}

	err := cache.Set(ctx, "key1", entry)
	require.NoError(t, err)

	_, err = cache.Get(ctx, "key1")
	require.ErrorIs(t, err, relay.ErrCacheEntryExpired)

	// The expired entry no longer counts towards the size.
	size, err := cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestMemoryCache_DeleteAndClear(t *testing.T) {
	t.Parallel()

	cache := relay.NewMemoryCache(10)
	ctx := context.Background()

	for _, key := range []string{"a", "b", "c"} {
		err := cache.Set(ctx, key, &relay.CacheEntry{
			Data:      []byte("test data"),
			ExpiresAt: time.Now().Add(1 * time.Hour),
		})
		require.NoError(t, err)
	}

	require.NoError(t, cache.Delete(ctx, "a"))
	assert.False(t, cache.Has(ctx, "a"))
	assert.True(t, cache.Has(ctx, "b"))

	require.NoError(t, cache.Clear(ctx))
	assert.False(t, cache.Has(ctx, "b"))
	assert.False(t, cache.Has(ctx, "c"))

	size, err := cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestMemoryCache_SizeBytes(t *testing.T) {
	t.Parallel()

	cache := relay.NewMemoryCache(10)
	ctx := context.Background()

	err := cache.Set(ctx, "key1", &relay.CacheEntry{Data: []byte("12345")})
	require.NoError(t, err)

	err = cache.Set(ctx, "key2", &relay.CacheEntry{Data: []byte("123")})
	require.NoError(t, err)

	size, err := cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), size)

	// Overwriting replaces the old entry's bytes.
	err = cache.Set(ctx, "key1", &relay.CacheEntry{Data: []byte("1")})
	require.NoError(t, err)

	size, err = cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(4), size)
}

func TestMemoryCache_EvictsWhenFull(t *testing.T) {
	t.Parallel()

	cache := relay.NewMemoryCache(2)
	ctx := context.Background()

	err := cache.Set(ctx, "soon", &relay.CacheEntry{
		Data:      []byte("a"),
		ExpiresAt: time.Now().Add(1 * time.Minute),
	})
	require.NoError(t, err)

	err = cache.Set(ctx, "later", &relay.CacheEntry{
		Data:      []byte("b"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	})
	require.NoError(t, err)

	err = cache.Set(ctx, "new", &relay.CacheEntry{
		Data:      []byte("c"),
		ExpiresAt: time.Now().Add(1 * time.Hour),
	})
	require.NoError(t, err)

	assert.False(t, cache.Has(ctx, "soon"))
	assert.True(t, cache.Has(ctx, "later"))
	assert.True(t, cache.Has(ctx, "new"))
}

func TestNoOpCache(t *testing.T) {
	t.Parallel()

	cache := relay.NewNoOpCache()
	ctx := context.Background()

	require.NoError(t, cache.Set(ctx, "key", &relay.CacheEntry{Data: []byte("x")}))

	_, err := cache.Get(ctx, "key")
	require.ErrorIs(t, err, relay.ErrCacheDisabled)
	assert.False(t, cache.Has(ctx, "key"))

	size, err := cache.SizeBytes(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestCacheChain(t *testing.T) {
	t.Parallel()
	t.Run("get backfills earlier layers", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l1 := relay.NewMemoryCache(10)
		l2 := relay.NewMemoryCache(10)
		chain := relay.NewCacheChain(l1, l2)

		entry := &relay.CacheEntry{Data: []byte("shared"), ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, l2.Set(ctx, "key", entry))

		retrieved, err := chain.Get(ctx, "key")
		require.NoError(t, err)
		assert.Equal(t, entry.Data, retrieved.Data)

		// The read populated L1.
		assert.True(t, l1.Has(ctx, "key"))
	})

	t.Run("miss in every layer", func(t *testing.T) {
		t.Parallel()

		chain := relay.NewCacheChain(relay.NewMemoryCache(10), relay.NewMemoryCache(10))

		_, err := chain.Get(context.Background(), "absent")
		require.ErrorIs(t, err, relay.ErrKeyNotFoundInAnyCache)
	})

	t.Run("writes and deletes reach every layer", func(t *testing.T) {
		t.Parallel()

		ctx := context.Background()
		l1 := relay.NewMemoryCache(10)
		l2 := relay.NewMemoryCache(10)
		chain := relay.NewCacheChain(l1, l2)

		entry := &relay.CacheEntry{Data: []byte("shared"), ExpiresAt: time.Now().Add(time.Hour)}
		require.NoError(t, chain.Set(ctx, "key", entry))
		assert.True(t, l1.Has(ctx, "key"))
		assert.True(t, l2.Has(ctx, "key"))

		require.NoError(t, chain.Delete(ctx, "key"))
		assert.False(t, l1.Has(ctx, "key"))
		assert.False(t, l2.Has(ctx, "key"))
	})
}

func TestNewCacheFromConfig(t *testing.T) {
	t.Parallel()
	t.Run("defaults to memory", func(t *testing.T) {
		t.Parallel()

		cache, err := relay.NewCacheFromConfig(nil)
		require.NoError(t, err)
		assert.IsType(t, &relay.MemoryCache{}, cache)
	})

	t.Run("none yields a no-op cache", func(t *testing.T) {
		t.Parallel()

		cache, err := relay.NewCacheFromConfig(&relay.CacheConfig{Type: relay.CacheTypeNone})
		require.NoError(t, err)
		assert.IsType(t, &relay.NoOpCache{}, cache)
	})

	t.Run("nats requires configuration", func(t *testing.T) {
		t.Parallel()

		_, err := relay.NewCacheFromConfig(&relay.CacheConfig{Type: relay.CacheTypeNATS})
		require.ErrorIs(t, err, relay.ErrNATSConfigRequired)
	})

	t.Run("unsupported type", func(t *testing.T) {
		t.Parallel()

		_, err := relay.NewCacheFromConfig(&relay.CacheConfig{Type: "redis"})
		require.ErrorIs(t, err, relay.ErrUnsupportedCacheType)
	})
}
