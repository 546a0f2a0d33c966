package relay

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"
)

// Doer is the chain-bypassing execution capability handed to OnError hooks.
// It builds and sends a request without invoking any interceptor, so a
// recovery attempt can never re-enter the chain. A retried request carries
// only the mutations the recovering interceptor applies itself.
type Doer interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Interceptor observes and rewrites requests, responses, and error recovery.
//
// WillSend runs before the transport call and may mutate the wire request in
// place. DidReceive runs after the response arrives; it is observation-only
// and a returned error is swallowed. OnError runs once a classifiable
// response was obtained, in chain order, before standard classification: a
// non-nil returned response becomes the pipeline's result and short-circuits
// the remaining hooks and classification entirely. Returning (nil, nil) means
// "not handled"; a returned error is swallowed and treated the same way.
//
// OnError must perform any retry through the supplied Doer, never through the
// chain-bearing send path, or repeated failures would recurse unboundedly.
//
// Embed BaseInterceptor to avoid implementing hooks an interceptor does not
// need.
type Interceptor interface {
	WillSend(ctx context.Context, req *WireRequest)
	DidReceive(ctx context.Context, req *WireRequest, resp *Response) error
	OnError(ctx context.Context, resp *Response, original *Request, raw Doer) (*Response, error)
}

// BaseInterceptor provides no-op implementations of all three hooks.
type BaseInterceptor struct{}

// WillSend does nothing.
func (BaseInterceptor) WillSend(ctx context.Context, req *WireRequest) {}

// DidReceive does nothing.
func (BaseInterceptor) DidReceive(ctx context.Context, req *WireRequest, resp *Response) error {
	return nil
}

// OnError declines to handle the error.
func (BaseInterceptor) OnError(ctx context.Context, resp *Response, original *Request, raw Doer) (*Response, error) {
	return nil, nil
}

// InterceptorChain is an ordered collection of interceptors. Insertion order
// is invocation order for every hook. The base chain is append-only.
type InterceptorChain struct {
	mu           sync.RWMutex
	interceptors []Interceptor
}

// NewInterceptorChain creates an empty chain.
func NewInterceptorChain() *InterceptorChain {
	return &InterceptorChain{}
}

// Append adds an interceptor at the end of the chain.
func (c *InterceptorChain) Append(interceptor Interceptor) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.interceptors = append(c.interceptors, interceptor)
}

// Len returns the number of interceptors in the chain.
func (c *InterceptorChain) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.interceptors)
}

// snapshot returns the current interceptor list. The returned slice is not
// mutated afterwards, so a request keeps a consistent view of the chain even
// if Append runs mid-flight.
func (c *InterceptorChain) snapshot() []Interceptor {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return c.interceptors[:len(c.interceptors):len(c.interceptors)]
}

// Stock interceptors

// HeaderInterceptor adds fixed headers to every outgoing request.
type HeaderInterceptor struct {
	BaseInterceptor

	headers map[string]string
}

// NewHeaderInterceptor creates an interceptor that sets the given headers.
func NewHeaderInterceptor(headers map[string]string) *HeaderInterceptor {
	copied := make(map[string]string, len(headers))
	for key, value := range headers {
		copied[key] = value
	}

	return &HeaderInterceptor{headers: copied}
}

// WillSend sets the configured headers, overwriting earlier values.
func (i *HeaderInterceptor) WillSend(ctx context.Context, req *WireRequest) {
	if req.Headers == nil {
		req.Headers = make(http.Header)
	}

	for key, value := range i.headers {
		req.Headers.Set(key, value)
	}
}

// LoggingInterceptor logs requests and responses.
type LoggingInterceptor struct {
	BaseInterceptor

	logger Logger
}

// NewLoggingInterceptor creates an interceptor that logs through logger.
func NewLoggingInterceptor(logger Logger) *LoggingInterceptor {
	return &LoggingInterceptor{logger: logger}
}

// WillSend logs the outgoing request.
func (i *LoggingInterceptor) WillSend(ctx context.Context, req *WireRequest) {
	i.logger.Debug("API Request", map[string]any{
		"method": req.Method,
		"url":    req.URL,
	})
}

// DidReceive logs the response.
func (i *LoggingInterceptor) DidReceive(ctx context.Context, req *WireRequest, resp *Response) error {
	fields := map[string]any{
		"method":      req.Method,
		"url":         req.URL,
		"status_code": resp.StatusCode,
	}

	if resp.StatusCode >= 400 {
		i.logger.Warn("API Response Error", fields)
	} else {
		i.logger.Debug("API Response", fields)
	}

	return nil
}

// Metrics aggregates per-endpoint request statistics.
type Metrics struct {
	TotalRequests   int64
	TotalErrors     int64
	TotalLatency    time.Duration
	AverageLatency  time.Duration
	LastRequestTime time.Time
}

// MetricsInterceptor collects metrics about API calls, keyed by
// "METHOD /path". Query strings are dropped from the key so paginated or
// filtered calls aggregate into one endpoint bucket.
type MetricsInterceptor struct {
	BaseInterceptor

	mu       sync.Mutex
	metrics  map[string]*Metrics
	onChange func(endpoint string, metrics *Metrics)
}

// NewMetricsInterceptor creates a metrics-collecting interceptor.
func NewMetricsInterceptor() *MetricsInterceptor {
	return &MetricsInterceptor{
		metrics: make(map[string]*Metrics),
	}
}

// SetOnChange sets a callback invoked after each update.
func (i *MetricsInterceptor) SetOnChange(fn func(endpoint string, metrics *Metrics)) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.onChange = fn
}

// Endpoint returns a copy of the metrics for an endpoint, or nil.
func (i *MetricsInterceptor) Endpoint(endpoint string) *Metrics {
	i.mu.Lock()
	defer i.mu.Unlock()

	metrics, ok := i.metrics[endpoint]
	if !ok {
		return nil
	}

	copied := *metrics

	return &copied
}

// Endpoints returns a copy of the metrics for every endpoint seen so far.
func (i *MetricsInterceptor) Endpoints() map[string]Metrics {
	i.mu.Lock()
	defer i.mu.Unlock()

	copied := make(map[string]Metrics, len(i.metrics))
	for endpoint, metrics := range i.metrics {
		copied[endpoint] = *metrics
	}

	return copied
}

// WillSend records the request start time in the wire request metadata.
func (i *MetricsInterceptor) WillSend(ctx context.Context, req *WireRequest) {
	if req.Metadata == nil {
		req.Metadata = make(map[string]any)
	}

	req.Metadata["metrics_start_time"] = time.Now()
}

// DidReceive updates the endpoint's counters and latency.
func (i *MetricsInterceptor) DidReceive(ctx context.Context, req *WireRequest, resp *Response) error {
	endpoint := fmt.Sprintf("%s %s", req.Method, endpointPath(req.URL))

	i.mu.Lock()
	defer i.mu.Unlock()

	metrics, ok := i.metrics[endpoint]
	if !ok {
		metrics = &Metrics{}
		i.metrics[endpoint] = metrics
	}

	metrics.TotalRequests++
	metrics.LastRequestTime = time.Now()

	if startTime, ok := req.Metadata["metrics_start_time"].(time.Time); ok {
		latency := time.Since(startTime)
		metrics.TotalLatency += latency
		metrics.AverageLatency = metrics.TotalLatency / time.Duration(metrics.TotalRequests)
	}

	if resp.StatusCode >= 400 {
		metrics.TotalErrors++
	}

	if i.onChange != nil {
		i.onChange(endpoint, metrics)
	}

	return nil
}

// endpointPath reduces a wire URL to its path for metric keying.
func endpointPath(rawURL string) string {
	parsed, err := url.Parse(rawURL)
	if err != nil || parsed.Path == "" {
		return rawURL
	}

	return parsed.Path
}
