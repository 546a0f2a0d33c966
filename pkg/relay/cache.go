package relay

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/relaykit-io/relay/internal/constants"
)

// Cache errors.
var (
	ErrCacheKeyNotFound  = errors.New("cache: key not found")
	ErrCacheEntryExpired = errors.New("cache: entry expired")
	ErrCacheDisabled     = errors.New("cache disabled")
)

// CacheEntry is a stored response.
type CacheEntry struct {
	Data      []byte      `json:"data"`
	Headers   http.Header `json:"headers,omitempty"`
	ETag      string      `json:"etag,omitempty"`
	ExpiresAt time.Time   `json:"expires_at"`
}

func (e *CacheEntry) expired() bool {
	return !e.ExpiresAt.IsZero() && time.Now().After(e.ExpiresAt)
}

// sizeBytes approximates the entry's footprint by its payload length.
func (e *CacheEntry) sizeBytes() int64 {
	return int64(len(e.Data))
}

// Cache is the pluggable response-cache capability.
type Cache interface {
	Get(ctx context.Context, key string) (*CacheEntry, error)
	Set(ctx context.Context, key string, entry *CacheEntry) error
	Delete(ctx context.Context, key string) error
	Clear(ctx context.Context) error
	Has(ctx context.Context, key string) bool
	SizeBytes(ctx context.Context) (int64, error)
}

// MemoryCache is a bounded in-memory cache. When full, the entry closest to
// expiry is evicted.
type MemoryCache struct {
	mu      sync.RWMutex
	entries map[string]*CacheEntry
	maxSize int
	bytes   int64
}

// NewMemoryCache creates a memory cache holding at most maxSize entries.
func NewMemoryCache(maxSize int) *MemoryCache {
	if maxSize <= 0 {
		maxSize = constants.DefaultCacheSize
	}

	return &MemoryCache{
		entries: make(map[string]*CacheEntry),
		maxSize: maxSize,
	}
}

// Get returns the entry for key, removing and rejecting expired entries.
func (c *MemoryCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.entries[key]
	if !ok {
		return nil, ErrCacheKeyNotFound
	}

	if entry.expired() {
		c.removeLocked(key)

		return nil, ErrCacheEntryExpired
	}

	return entry, nil
}

// Set stores an entry, evicting the soonest-expiring entry when full.
func (c *MemoryCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		c.bytes -= existing.sizeBytes()
	} else if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}

	c.entries[key] = entry
	c.bytes += entry.sizeBytes()

	return nil
}

// Delete removes the entry for key.
func (c *MemoryCache) Delete(ctx context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.removeLocked(key)

	return nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*CacheEntry)
	c.bytes = 0

	return nil
}

// Has reports whether a non-expired entry exists for key.
func (c *MemoryCache) Has(ctx context.Context, key string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[key]

	return ok && !entry.expired()
}

// SizeBytes returns the total payload bytes currently stored.
func (c *MemoryCache) SizeBytes(ctx context.Context) (int64, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.bytes, nil
}

func (c *MemoryCache) removeLocked(key string) {
	if entry, ok := c.entries[key]; ok {
		c.bytes -= entry.sizeBytes()
		delete(c.entries, key)
	}
}

// evictLocked drops the entry with the earliest expiry; entries without an
// expiry are only evicted when nothing else is available.
func (c *MemoryCache) evictLocked() {
	var (
		victim   string
		deadline time.Time
		found    bool
	)

	for key, entry := range c.entries {
		if entry.ExpiresAt.IsZero() {
			if victim == "" {
				victim = key
			}

			continue
		}

		if !found || entry.ExpiresAt.Before(deadline) {
			victim = key
			deadline = entry.ExpiresAt
			found = true
		}
	}

	if victim != "" {
		c.removeLocked(victim)
	}
}
