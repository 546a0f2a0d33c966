package relay

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/relaykit-io/relay/internal/constants"
)

// Config holds the process-wide client settings. A request snapshots the
// config when it is built; UpdateConfig never tears an in-flight request's
// view.
type Config struct {
	// BaseURL is the absolute http(s) URL every request path is resolved
	// against. Required; a value that does not parse as an absolute URL is a
	// fatal configuration error at construction time.
	BaseURL string
	// DefaultHeaders are applied to every request; per-request headers win on
	// conflict.
	DefaultHeaders map[string]string
	// Timeout is the window for a single request attempt. A retried request
	// through the raw path gets a fresh window. Defaults to 60s.
	Timeout time.Duration
	// UserAgent overrides the default User-Agent header.
	UserAgent string
	// Debug enables request/response logging through Logger.
	Debug bool
	// Logger receives pipeline logs. Defaults to NoopLogger.
	Logger Logger
	// ErrorModel is the default factory for decoding 4xx bodies. Callers can
	// override it per call with WithErrorModel.
	ErrorModel ErrorModel
	// Cache configures the optional response cache backend.
	Cache *CacheConfig

	// RetryMax enables transient retries (5xx, 429, connection errors) inside
	// the transport session. Zero means a single attempt per request, which is
	// the default: pipeline-visible retries happen only through interceptor
	// recovery.
	RetryMax int
	// RetryWaitMin is the minimum backoff between transient retries.
	RetryWaitMin time.Duration
	// RetryWaitMax is the maximum backoff between transient retries.
	RetryWaitMax time.Duration
}

// Validate checks the config and normalizes the base URL in place.
func (c *Config) Validate() error {
	if c.BaseURL == "" {
		return ErrBaseURLRequired
	}

	base := strings.TrimSuffix(c.BaseURL, "/")
	if !strings.HasPrefix(base, "http://") && !strings.HasPrefix(base, "https://") {
		base = "https://" + base
	}

	parsed, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	if !parsed.IsAbs() || parsed.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidBaseURL, c.BaseURL)
	}

	c.BaseURL = base

	if c.Timeout <= 0 {
		c.Timeout = constants.DefaultRequestTimeout
	}

	if c.Logger == nil {
		c.Logger = NoopLogger{}
	}

	return nil
}

// clone returns a deep copy so request snapshots never alias mutable state.
func (c *Config) clone() *Config {
	copied := *c

	if c.DefaultHeaders != nil {
		copied.DefaultHeaders = make(map[string]string, len(c.DefaultHeaders))
		for key, value := range c.DefaultHeaders {
			copied.DefaultHeaders[key] = value
		}
	}

	if c.Cache != nil {
		cache := *c.Cache
		copied.Cache = &cache
	}

	return &copied
}

// transportEquals reports whether the transport-session-affecting fields
// match; when they differ, UpdateConfig rebuilds the session.
func (c *Config) transportEquals(other *Config) bool {
	return c.RetryMax == other.RetryMax &&
		c.RetryWaitMin == other.RetryWaitMin &&
		c.RetryWaitMax == other.RetryWaitMax
}
