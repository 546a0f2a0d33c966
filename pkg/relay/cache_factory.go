package relay

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/relaykit-io/relay/internal/constants"
)

// CacheType selects the cache backend.
type CacheType string

const (
	// CacheTypeMemory is the in-process cache.
	CacheTypeMemory CacheType = "memory"

	// CacheTypeNATS is the shared NATS JetStream KV cache.
	CacheTypeNATS CacheType = "nats"

	// CacheTypeNone disables caching.
	CacheTypeNone CacheType = "none"
)

// Cache factory errors.
var (
	ErrNATSConfigRequired    = errors.New("NATS configuration required for NATS cache")
	ErrUnsupportedCacheType  = errors.New("unsupported cache type")
	ErrKeyNotFoundInAnyCache = errors.New("key not found in any cache")
)

// CacheConfig configures the cache backend.
type CacheConfig struct {
	Type CacheType

	// Memory cache configuration.
	Memory *MemoryCacheConfig

	// NATS KV cache configuration.
	NATS *NATSKVConfig

	// TTL applied to entries the pipeline stores. Defaults to 5 minutes.
	TTL time.Duration
}

// MemoryCacheConfig configures the memory backend.
type MemoryCacheConfig struct {
	// MaxSize is the maximum number of cached entries.
	MaxSize int
}

// DefaultCacheConfig returns the default (memory) cache configuration.
func DefaultCacheConfig() *CacheConfig {
	return &CacheConfig{
		Type:   CacheTypeMemory,
		Memory: &MemoryCacheConfig{MaxSize: constants.DefaultCacheSize},
		TTL:    constants.DefaultCacheTTL,
	}
}

// NewCacheFromConfig creates a cache backend from configuration.
func NewCacheFromConfig(config *CacheConfig) (Cache, error) {
	if config == nil {
		config = DefaultCacheConfig()
	}

	switch config.Type {
	case CacheTypeMemory:
		maxSize := constants.DefaultCacheSize
		if config.Memory != nil && config.Memory.MaxSize > 0 {
			maxSize = config.Memory.MaxSize
		}

		return NewMemoryCache(maxSize), nil

	case CacheTypeNATS:
		if config.NATS == nil {
			return nil, ErrNATSConfigRequired
		}

		return NewNATSKVCache(config.NATS)

	case CacheTypeNone:
		return NewNoOpCache(), nil

	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedCacheType, config.Type)
	}
}

// NoOpCache is a cache that stores nothing.
type NoOpCache struct{}

// NewNoOpCache creates a no-op cache.
func NewNoOpCache() *NoOpCache {
	return &NoOpCache{}
}

// Get always misses.
func (c *NoOpCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	return nil, ErrCacheDisabled
}

// Set does nothing.
func (c *NoOpCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	return nil
}

// Delete does nothing.
func (c *NoOpCache) Delete(ctx context.Context, key string) error {
	return nil
}

// Clear does nothing.
func (c *NoOpCache) Clear(ctx context.Context) error {
	return nil
}

// Has always returns false.
func (c *NoOpCache) Has(ctx context.Context, key string) bool {
	return false
}

// SizeBytes always returns zero.
func (c *NoOpCache) SizeBytes(ctx context.Context) (int64, error) {
	return 0, nil
}

// CacheChain layers cache backends (e.g. memory in front of NATS KV). Reads
// hit the first backend holding the key and backfill earlier layers; writes,
// deletes and clears go to every layer.
type CacheChain struct {
	caches []Cache
}

// NewCacheChain creates a chain over the given backends, first is L1.
func NewCacheChain(caches ...Cache) *CacheChain {
	return &CacheChain{caches: caches}
}

// Get returns the entry from the first backend that has it, backfilling the
// layers in front of it.
func (c *CacheChain) Get(ctx context.Context, key string) (*CacheEntry, error) {
	for i, cache := range c.caches {
		entry, err := cache.Get(ctx, key)
		if err != nil {
			continue
		}

		for j := 0; j < i; j++ {
			_ = c.caches[j].Set(ctx, key, entry)
		}

		return entry, nil
	}

	return nil, ErrKeyNotFoundInAnyCache
}

// Set writes the entry to every layer.
func (c *CacheChain) Set(ctx context.Context, key string, entry *CacheEntry) error {
	for _, cache := range c.caches {
		err := cache.Set(ctx, key, entry)
		if err != nil {
			return err
		}
	}

	return nil
}

// Delete removes the key from every layer.
func (c *CacheChain) Delete(ctx context.Context, key string) error {
	for _, cache := range c.caches {
		err := cache.Delete(ctx, key)
		if err != nil {
			return err
		}
	}

	return nil
}

// Clear empties every layer.
func (c *CacheChain) Clear(ctx context.Context) error {
	for _, cache := range c.caches {
		err := cache.Clear(ctx)
		if err != nil {
			return err
		}
	}

	return nil
}

// Has reports whether any layer holds the key.
func (c *CacheChain) Has(ctx context.Context, key string) bool {
	for _, cache := range c.caches {
		if cache.Has(ctx, key) {
			return true
		}
	}

	return false
}

// SizeBytes reports the first layer's size; deeper layers hold supersets.
func (c *CacheChain) SizeBytes(ctx context.Context) (int64, error) {
	if len(c.caches) == 0 {
		return 0, nil
	}

	return c.caches[0].SizeBytes(ctx)
}
