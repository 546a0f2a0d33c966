package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"github.com/relaykit-io/relay/internal/transport"
)

var allowedMethods = map[string]bool{
	http.MethodGet:    true,
	http.MethodPost:   true,
	http.MethodPut:    true,
	http.MethodDelete: true,
	http.MethodPatch:  true,
}

// Client executes requests against a REST API through the interceptor
// pipeline. The config, chain, transport session and cache form the only
// shared mutable state; each request snapshots them at build time, so
// UpdateConfig and AddInterceptor never tear an in-flight request's view.
type Client struct {
	mu        sync.RWMutex
	config    *Config
	chain     *InterceptorChain
	transport *transport.Transport
	cache     Cache
}

// New creates a client. A missing or relative base URL is a fatal
// configuration error here, not per-request.
func New(config *Config) (*Client, error) {
	if config == nil {
		return nil, ErrConfigRequired
	}

	cfg := config.clone()

	err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	var cache Cache
	if cfg.Cache != nil {
		cache, err = NewCacheFromConfig(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("building cache: %w", err)
		}
	}

	return &Client{
		config:    cfg,
		chain:     NewInterceptorChain(),
		transport: newTransport(cfg),
		cache:     cache,
	}, nil
}

func newTransport(cfg *Config) *transport.Transport {
	return transport.New(transport.Options{
		RetryMax:     cfg.RetryMax,
		RetryWaitMin: cfg.RetryWaitMin,
		RetryWaitMax: cfg.RetryWaitMax,
	})
}

// AddInterceptor appends an interceptor to the chain. Requests already in
// flight keep the chain they started with.
func (c *Client) AddInterceptor(interceptor Interceptor) {
	c.chain.Append(interceptor)
}

// Config returns a copy of the current configuration.
func (c *Client) Config() *Config {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.config.clone()
}

// UpdateConfig atomically replaces the configuration. The transport session
// is rebuilt only when session-affecting fields changed; requests in flight
// on the old session are unaffected and are not migrated.
func (c *Client) UpdateConfig(config *Config) error {
	if config == nil {
		return ErrConfigRequired
	}

	cfg := config.clone()

	err := cfg.Validate()
	if err != nil {
		return err
	}

	var cache Cache
	if cfg.Cache != nil {
		cache, err = NewCacheFromConfig(cfg.Cache)
		if err != nil {
			return fmt.Errorf("building cache: %w", err)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.config.transportEquals(cfg) {
		c.transport = newTransport(cfg)
	}

	if cfg.Cache != nil {
		c.cache = cache
	} else {
		c.cache = nil
	}

	c.config = cfg

	return nil
}

// snapshot captures the shared state a single request runs against.
func (c *Client) snapshot() (*Config, []Interceptor, *transport.Transport, Cache) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.config, c.chain.snapshot(), c.transport, c.cache
}

// Do executes the full pipeline: build, WillSend hooks, transport call,
// DidReceive hooks, OnError recovery, classification. On success (or
// recovery) the response is returned with a nil error; otherwise the
// classified error is returned alongside the response that produced it, when
// one exists.
func (c *Client) Do(ctx context.Context, req *Request) (*Response, error) {
	return c.do(ctx, req, nil)
}

// DoRaw executes the chain-bypassing path: build, transport call,
// classification. No interceptor hook runs, which is what guarantees that a
// recovery retry terminates.
func (c *Client) DoRaw(ctx context.Context, req *Request) (*Response, error) {
	return c.doRaw(ctx, req, nil)
}

// Get issues a GET request through the full pipeline.
func (c *Client) Get(ctx context.Context, p string, query url.Values) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodGet, Path: p, Query: query})
}

// Post issues a POST request with params as the JSON body.
func (c *Client) Post(ctx context.Context, p string, params map[string]any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPost, Path: p, Params: params})
}

// Put issues a PUT request with params as the JSON body.
func (c *Client) Put(ctx context.Context, p string, params map[string]any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPut, Path: p, Params: params})
}

// Patch issues a PATCH request with params as the JSON body.
func (c *Client) Patch(ctx context.Context, p string, params map[string]any) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodPatch, Path: p, Params: params})
}

// Delete issues a DELETE request through the full pipeline.
func (c *Client) Delete(ctx context.Context, p string) (*Response, error) {
	return c.Do(ctx, &Request{Method: http.MethodDelete, Path: p})
}

func (c *Client) do(ctx context.Context, req *Request, errorModel ErrorModel) (*Response, error) {
	cfg, interceptors, session, cache := c.snapshot()

	if errorModel == nil {
		errorModel = cfg.ErrorModel
	}

	wire, err := buildWireRequest(cfg, req)
	if err != nil {
		return nil, err
	}

	for _, interceptor := range interceptors {
		interceptor.WillSend(ctx, wire)
	}

	resp, err := c.sendWire(ctx, cfg, session, wire)
	if err != nil {
		return nil, err
	}

	for _, interceptor := range interceptors {
		hookErr := interceptor.DidReceive(ctx, wire, resp)
		if hookErr != nil {
			// Observation hooks are best-effort; a failing one must not break
			// the response path.
			cfg.Logger.Debug("DidReceive hook failed", map[string]any{
				"error": hookErr.Error(),
			})
		}
	}

	raw := &rawDoer{client: c, errorModel: errorModel}

	for _, interceptor := range interceptors {
		recovered, hookErr := interceptor.OnError(ctx, resp, req, raw)
		if hookErr != nil {
			// A failed recovery attempt means "this interceptor doesn't
			// handle it"; fall through to the next one.
			cfg.Logger.Debug("OnError hook failed", map[string]any{
				"error": hookErr.Error(),
			})

			continue
		}

		if recovered != nil {
			return recovered, nil
		}
	}

	err = Classify(resp, errorModel)
	if err != nil {
		return resp, err
	}

	c.storeInCache(ctx, cfg, cache, wire, resp)

	return resp, nil
}

func (c *Client) doRaw(ctx context.Context, req *Request, errorModel ErrorModel) (*Response, error) {
	cfg, _, session, _ := c.snapshot()

	if errorModel == nil {
		errorModel = cfg.ErrorModel
	}

	wire, err := buildWireRequest(cfg, req)
	if err != nil {
		return nil, err
	}

	resp, err := c.sendWire(ctx, cfg, session, wire)
	if err != nil {
		return nil, err
	}

	err = Classify(resp, errorModel)
	if err != nil {
		return resp, err
	}

	return resp, nil
}

func (c *Client) sendWire(ctx context.Context, cfg *Config, session *transport.Transport, wire *WireRequest) (*Response, error) {
	if cfg.Debug {
		cfg.Logger.Debug("HTTP Request", map[string]any{
			"method": wire.Method,
			"url":    wire.URL,
		})
	}

	result, err := session.Send(ctx, wire.Method, wire.URL, wire.Headers, wire.Body, cfg.Timeout)
	if err != nil {
		// No classifiable response; recovery hooks are not invoked.
		return nil, &UnknownError{Err: err}
	}

	if cfg.Debug {
		cfg.Logger.Debug("HTTP Response", map[string]any{
			"method":      wire.Method,
			"url":         wire.URL,
			"status_code": result.StatusCode,
		})
	}

	return &Response{
		StatusCode: result.StatusCode,
		Headers:    result.Headers,
		Body:       result.Body,
	}, nil
}

func (c *Client) storeInCache(ctx context.Context, cfg *Config, cache Cache, wire *WireRequest, resp *Response) {
	if cache == nil || wire.Method != http.MethodGet || len(resp.Body) == 0 {
		return
	}

	ttl := cfg.Cache.TTL
	if ttl <= 0 {
		ttl = DefaultCacheConfig().TTL
	}

	entry := &CacheEntry{
		Data:      resp.Body,
		Headers:   resp.Headers,
		ETag:      resp.Headers.Get("ETag"),
		ExpiresAt: time.Now().Add(ttl),
	}

	err := cache.Set(ctx, wire.URL, entry)
	if err != nil {
		cfg.Logger.Debug("caching response failed", map[string]any{
			"url":   wire.URL,
			"error": err.Error(),
		})
	}
}

// rawDoer is the Doer capability handed to OnError hooks. It goes through
// doRaw, so a recovery retry gets a fresh timeout window and never re-enters
// the chain. It carries the originating call's error model so a retried
// response classifies the same way the original would have.
type rawDoer struct {
	client     *Client
	errorModel ErrorModel
}

func (d *rawDoer) Do(ctx context.Context, req *Request) (*Response, error) {
	return d.client.doRaw(ctx, req, d.errorModel)
}

// Cache operations

// ClearCache empties the configured cache.
func (c *Client) ClearCache(ctx context.Context) error {
	cache := c.currentCache()
	if cache == nil {
		return ErrNoCacheConfigured
	}

	return cache.Clear(ctx)
}

// CacheSizeBytes returns the configured cache's stored payload bytes.
func (c *Client) CacheSizeBytes(ctx context.Context) (int64, error) {
	cache := c.currentCache()
	if cache == nil {
		return 0, ErrNoCacheConfigured
	}

	return cache.SizeBytes(ctx)
}

// RemoveCachedResponse drops the cached response for a request. The key is
// derived the same way the pipeline derives it when storing.
func (c *Client) RemoveCachedResponse(ctx context.Context, req *Request) error {
	cfg, _, _, cache := c.snapshot()
	if cache == nil {
		return ErrNoCacheConfigured
	}

	wire, err := buildWireRequest(cfg, req)
	if err != nil {
		return err
	}

	return cache.Delete(ctx, wire.URL)
}

// LookupCachedResponse returns the cached response for a request, or
// ErrCacheKeyNotFound / ErrCacheEntryExpired.
func (c *Client) LookupCachedResponse(ctx context.Context, req *Request) (*Response, error) {
	cfg, _, _, cache := c.snapshot()
	if cache == nil {
		return nil, ErrNoCacheConfigured
	}

	wire, err := buildWireRequest(cfg, req)
	if err != nil {
		return nil, err
	}

	entry, err := cache.Get(ctx, wire.URL)
	if err != nil {
		return nil, err
	}

	return &Response{
		StatusCode: http.StatusOK,
		Headers:    entry.Headers,
		Body:       entry.Data,
	}, nil
}

func (c *Client) currentCache() Cache {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.cache
}

// Request building

// buildWireRequest turns a descriptor and a config snapshot into the request
// handed to the transport: joined URL, merged headers (per-request wins),
// JSON-encoded params body.
func buildWireRequest(cfg *Config, req *Request) (*WireRequest, error) {
	if req == nil {
		return nil, ErrNilRequest
	}

	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	if !allowedMethods[method] {
		return nil, fmt.Errorf("%w: %s", ErrInvalidMethod, method)
	}

	target, err := joinURL(cfg.BaseURL, req.Path, req.Query)
	if err != nil {
		return nil, err
	}

	headers := make(http.Header)
	headers.Set("Accept", "application/json")

	if cfg.UserAgent != "" {
		headers.Set("User-Agent", cfg.UserAgent)
	}

	for key, value := range cfg.DefaultHeaders {
		headers.Set(key, value)
	}

	for key, value := range req.Headers {
		headers.Set(key, value)
	}

	var body []byte
	if req.Params != nil {
		body, err = json.Marshal(req.Params)
		if err != nil {
			return nil, fmt.Errorf("encoding request parameters: %w", err)
		}

		if headers.Get("Content-Type") == "" {
			headers.Set("Content-Type", "application/json")
		}
	}

	var metadata map[string]any
	if req.Metadata != nil {
		metadata = make(map[string]any, len(req.Metadata))
		for key, value := range req.Metadata {
			metadata[key] = value
		}
	}

	return &WireRequest{
		Method:   method,
		URL:      target,
		Headers:  headers,
		Body:     body,
		Metadata: metadata,
	}, nil
}

// joinURL resolves p against base and rejects paths that escape the base
// URL's path or authority via traversal.
func joinURL(base, p string, query url.Values) (string, error) {
	parsed, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidBaseURL, err)
	}

	if p != "" {
		cleaned := path.Join(parsed.Path, p)

		// The prefix check must stop at a segment boundary: /api must not
		// admit /apix.
		basePath := strings.TrimSuffix(parsed.Path, "/")
		if strings.Contains(cleaned, "..") ||
			(cleaned != basePath && !strings.HasPrefix(cleaned, basePath+"/")) {
			return "", fmt.Errorf("%w: %q", ErrPathTraversal, p)
		}

		parsed.Path = cleaned
	}

	if len(query) > 0 {
		parsed.RawQuery = query.Encode()
	}

	return parsed.String(), nil
}
