// Package transport is the opaque wire-sending capability behind the request
// pipeline. It owns connection pooling, TLS, redirect-following and optional
// transient retries; the pipeline above it sees a single blocking call per
// request attempt.
package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/relaykit-io/relay/internal/constants"
)

// Options configures a transport session.
type Options struct {
	// RetryMax is the number of transient retries (5xx, 429, connection
	// errors). Zero disables retries: one attempt per Send.
	RetryMax int
	// RetryWaitMin is the minimum backoff between retries.
	RetryWaitMin time.Duration
	// RetryWaitMax is the maximum backoff between retries.
	RetryWaitMax time.Duration
}

// Result is the raw outcome of a wire call.
type Result struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Transport wraps a retryablehttp client as an immutable session. Replacing
// session-affecting settings means building a new Transport; in-flight
// requests keep the session they started on.
type Transport struct {
	client *retryablehttp.Client
}

// New creates a transport session.
func New(opts Options) *Transport {
	client := retryablehttp.NewClient()
	client.Logger = nil
	client.RetryMax = opts.RetryMax
	// Hand the final response back once retries are exhausted so the caller
	// can classify it, instead of collapsing it into a "giving up" error.
	client.ErrorHandler = retryablehttp.PassthroughErrorHandler

	if opts.RetryWaitMin > 0 {
		client.RetryWaitMin = opts.RetryWaitMin
	} else {
		client.RetryWaitMin = constants.DefaultRetryWaitMin
	}

	if opts.RetryWaitMax > 0 {
		client.RetryWaitMax = opts.RetryWaitMax
	} else {
		client.RetryWaitMax = constants.DefaultRetryWaitMax
	}

	return &Transport{client: client}
}

// Send performs one blocking wire call and reads the body fully. The timeout
// bounds this attempt only; callers issuing a fresh attempt get a fresh
// window. A non-nil error means no classifiable HTTP response was obtained.
func (t *Transport) Send(ctx context.Context, method, rawURL string, headers http.Header, body []byte, timeout time.Duration) (*Result, error) {
	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var reader io.Reader
	if len(body) > 0 {
		reader = bytes.NewReader(body)
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return nil, fmt.Errorf("building wire request: %w", err)
	}

	for key, values := range headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := t.client.Do(req)
	if err != nil {
		if resp != nil {
			_ = resp.Body.Close()
		}

		return nil, fmt.Errorf("sending request: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response body: %w", err)
	}

	return &Result{
		StatusCode: resp.StatusCode,
		Headers:    resp.Header,
		Body:       data,
	}, nil
}
