package relay

import (
	"net/http"
	"net/url"
)

// Request describes a logical API request. It is created per call-site and
// never mutated by the pipeline; recovery hooks receive it verbatim so a
// retried request can be rebuilt exactly.
type Request struct {
	// Method is the HTTP verb (GET, POST, PUT, DELETE, PATCH). Empty means GET.
	Method string
	// Path is resolved against the configured base URL.
	Path string
	// Query holds optional URL query parameters.
	Query url.Values
	// Params, when present, is serialized as the JSON request body.
	Params map[string]any
	// Headers are per-request headers; they win over config defaults.
	Headers map[string]string
	// Metadata carries caller values for interceptors; never sent on the wire.
	Metadata map[string]any
}

// Clone returns a deep copy of the request.
func (r *Request) Clone() *Request {
	if r == nil {
		return nil
	}

	clone := &Request{
		Method: r.Method,
		Path:   r.Path,
	}

	if r.Query != nil {
		clone.Query = make(url.Values, len(r.Query))
		for k, v := range r.Query {
			clone.Query[k] = append([]string(nil), v...)
		}
	}

	if r.Params != nil {
		clone.Params = make(map[string]any, len(r.Params))
		for k, v := range r.Params {
			clone.Params[k] = v
		}
	}

	if r.Headers != nil {
		clone.Headers = make(map[string]string, len(r.Headers))
		for k, v := range r.Headers {
			clone.Headers[k] = v
		}
	}

	if r.Metadata != nil {
		clone.Metadata = make(map[string]any, len(r.Metadata))
		for k, v := range r.Metadata {
			clone.Metadata[k] = v
		}
	}

	return clone
}

// WireRequest is the fully built request handed to WillSend hooks before the
// transport call. Interceptors mutate it in place; each hook sees the
// mutations applied by the ones before it.
type WireRequest struct {
	Method   string
	URL      string
	Headers  http.Header
	Body     []byte
	Metadata map[string]any
}

// Response is the raw outcome of a transport call: status code, headers and
// the fully read body.
type Response struct {
	StatusCode int
	Headers    http.Header
	Body       []byte
}

// Envelope pairs a decoded payload with the raw response it came from.
// Created once per successful (or recovered) request; ownership transfers to
// the caller.
type Envelope[T any] struct {
	Data T
	Raw  *Response
}
