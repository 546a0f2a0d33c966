package relay

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
)

// encodeKey maps arbitrary cache keys (URLs) onto the restricted NATS KV key
// alphabet.
func encodeKey(key string) string {
	return base64.RawURLEncoding.EncodeToString([]byte(key))
}

// NATSKVConfig configures the NATS JetStream key-value cache backend.
type NATSKVConfig struct {
	// URL is the NATS server URL (e.g. nats://localhost:4222).
	URL string
	// Bucket is the KV bucket name; created when absent.
	Bucket string
	// TTL is applied to the bucket when it is created.
	TTL time.Duration
	// CredsFile optionally points at a NATS credentials file.
	CredsFile string
}

// NATSKVCache stores cache entries in a NATS JetStream key-value bucket so
// multiple client processes can share one response cache.
type NATSKVCache struct {
	conn *nats.Conn
	kv   nats.KeyValue
}

// NewNATSKVCache connects to NATS and binds (or creates) the bucket.
func NewNATSKVCache(config *NATSKVConfig) (*NATSKVCache, error) {
	var opts []nats.Option
	if config.CredsFile != "" {
		opts = append(opts, nats.UserCredentials(config.CredsFile))
	}

	conn, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("connecting to NATS: %w", err)
	}

	js, err := conn.JetStream()
	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("obtaining JetStream context: %w", err)
	}

	kv, err := js.KeyValue(config.Bucket)
	if errors.Is(err, nats.ErrBucketNotFound) {
		kv, err = js.CreateKeyValue(&nats.KeyValueConfig{
			Bucket: config.Bucket,
			TTL:    config.TTL,
		})
	}

	if err != nil {
		conn.Close()

		return nil, fmt.Errorf("binding KV bucket %q: %w", config.Bucket, err)
	}

	return &NATSKVCache{conn: conn, kv: kv}, nil
}

// Get returns the entry for key.
func (c *NATSKVCache) Get(ctx context.Context, key string) (*CacheEntry, error) {
	kventry, err := c.kv.Get(encodeKey(key))
	if err != nil {
		if errors.Is(err, nats.ErrKeyNotFound) {
			return nil, ErrCacheKeyNotFound
		}

		return nil, fmt.Errorf("reading cache key: %w", err)
	}

	var entry CacheEntry

	err = json.Unmarshal(kventry.Value(), &entry)
	if err != nil {
		return nil, fmt.Errorf("decoding cache entry: %w", err)
	}

	if entry.expired() {
		_ = c.kv.Delete(encodeKey(key))

		return nil, ErrCacheEntryExpired
	}

	return &entry, nil
}

// Set stores an entry under key.
func (c *NATSKVCache) Set(ctx context.Context, key string, entry *CacheEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encoding cache entry: %w", err)
	}

	_, err = c.kv.Put(encodeKey(key), data)
	if err != nil {
		return fmt.Errorf("writing cache key: %w", err)
	}

	return nil
}

// Delete removes the entry for key.
func (c *NATSKVCache) Delete(ctx context.Context, key string) error {
	err := c.kv.Delete(encodeKey(key))
	if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
		return fmt.Errorf("deleting cache key: %w", err)
	}

	return nil
}

// Clear removes every entry in the bucket.
func (c *NATSKVCache) Clear(ctx context.Context) error {
	keys, err := c.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return nil
		}

		return fmt.Errorf("listing cache keys: %w", err)
	}

	for _, key := range keys {
		err = c.kv.Delete(key)
		if err != nil && !errors.Is(err, nats.ErrKeyNotFound) {
			return fmt.Errorf("deleting cache key: %w", err)
		}
	}

	return nil
}

// Has reports whether a non-expired entry exists for key.
func (c *NATSKVCache) Has(ctx context.Context, key string) bool {
	_, err := c.Get(ctx, key)

	return err == nil
}

// SizeBytes sums the stored payload bytes across the bucket.
func (c *NATSKVCache) SizeBytes(ctx context.Context) (int64, error) {
	keys, err := c.kv.Keys()
	if err != nil {
		if errors.Is(err, nats.ErrNoKeysFound) {
			return 0, nil
		}

		return 0, fmt.Errorf("listing cache keys: %w", err)
	}

	var total int64

	for _, key := range keys {
		kventry, err := c.kv.Get(key)
		if err != nil {
			continue
		}

		var entry CacheEntry
		if json.Unmarshal(kventry.Value(), &entry) == nil {
			total += entry.sizeBytes()
		}
	}

	return total, nil
}

// Close releases the NATS connection.
func (c *NATSKVCache) Close() {
	c.conn.Close()
}
