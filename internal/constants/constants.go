package constants

import "time"

// HTTP and network timeouts.
const (
	// DefaultRequestTimeout is the window for a single request attempt.
	DefaultRequestTimeout = 60 * time.Second

	// ShortHTTPTimeout is used for quick auxiliary calls (token refresh).
	ShortHTTPTimeout = 10 * time.Second
)

// Retry limits for the transport session.
const (
	// DefaultRetryWaitMin is the minimum backoff between transient retries.
	DefaultRetryWaitMin = 1 * time.Second

	// DefaultRetryWaitMax is the maximum backoff between transient retries.
	DefaultRetryWaitMax = 30 * time.Second
)

// Cache defaults.
const (
	// DefaultCacheSize is the default maximum number of cached entries.
	DefaultCacheSize = 1000

	// DefaultCacheTTL is the default lifetime of a cached response.
	DefaultCacheTTL = 5 * time.Minute
)

// File permissions.
const (
	// ConfigDirPerm is the permission for configuration directories.
	ConfigDirPerm = 0750

	// ConfigFilePerm is the permission for configuration files.
	ConfigFilePerm = 0600
)

// Token handling.
const (
	// TokenExpiryLeeway refreshes tokens slightly before their deadline.
	TokenExpiryLeeway = 30 * time.Second
)
