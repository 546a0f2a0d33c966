package relay

import (
	"errors"
	"fmt"
	"net/http"
)

// Static errors that can be wrapped with context.
var (
	ErrConfigRequired    = errors.New("config is required")
	ErrBaseURLRequired   = errors.New("base URL is required")
	ErrInvalidBaseURL    = errors.New("base URL must be an absolute http(s) URL")
	ErrInvalidMethod     = errors.New("unsupported HTTP method")
	ErrNilRequest        = errors.New("request is required")
	ErrPathTraversal     = errors.New("path escapes the configured base URL")
	ErrNoCacheConfigured = errors.New("no cache configured")
)

// ClientError is a 4xx response. Model holds the body decoded against the
// configured error model, or nil when the body did not decode — a decode
// failure here degrades, it never aborts the pipeline.
type ClientError struct {
	StatusCode int
	Model      any
	Body       []byte
}

// Error implements the error interface.
func (e *ClientError) Error() string {
	if e.Model != nil {
		return fmt.Sprintf("client error %d: %v", e.StatusCode, e.Model)
	}

	return fmt.Sprintf("client error %d", e.StatusCode)
}

// ServerError is a 5xx response. The body is kept for diagnostics but is
// never decoded into an error model.
type ServerError struct {
	StatusCode int
	Body       []byte
}

// Error implements the error interface.
func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d", e.StatusCode)
}

// UnknownError covers everything without a usable classification: transport
// failures, cancellation, and status codes outside the 2xx/4xx/5xx ranges.
// StatusCode is zero when no HTTP response was obtained at all.
type UnknownError struct {
	StatusCode int
	Body       []byte
	Err        error
}

// Error implements the error interface.
func (e *UnknownError) Error() string {
	switch {
	case e.Err != nil:
		return fmt.Sprintf("unknown error: %v", e.Err)
	case e.StatusCode != 0:
		return fmt.Sprintf("unknown error: unexpected status %d", e.StatusCode)
	default:
		return "unknown error"
	}
}

// Unwrap exposes the underlying transport error, if any.
func (e *UnknownError) Unwrap() error {
	return e.Err
}

// EmptyResponseError reports a success-range response with no body when no
// empty-value sentinel is registered for the decode target.
type EmptyResponseError struct {
	Target string
}

// Error implements the error interface.
func (e *EmptyResponseError) Error() string {
	return fmt.Sprintf("empty response body and no empty value registered for %s", e.Target)
}

// DecodeError reports a success body that failed to decode into the expected
// type. The response was well-formed HTTP but malformed against the schema;
// this is fatal and never recovered.
type DecodeError struct {
	Target string
	Err    error
}

// Error implements the error interface.
func (e *DecodeError) Error() string {
	return fmt.Sprintf("decoding response into %s: %v", e.Target, e.Err)
}

// Unwrap exposes the underlying codec error.
func (e *DecodeError) Unwrap() error {
	return e.Err
}

// IsClientError reports whether err is a 4xx classification.
func IsClientError(err error) bool {
	target := &ClientError{}

	return errors.As(err, &target)
}

// IsServerError reports whether err is a 5xx classification.
func IsServerError(err error) bool {
	target := &ServerError{}

	return errors.As(err, &target)
}

// IsUnauthorized reports whether err is a 401 client error.
func IsUnauthorized(err error) bool {
	target := &ClientError{}
	if errors.As(err, &target) {
		return target.StatusCode == http.StatusUnauthorized
	}

	return false
}

// IsNotFound reports whether err is a 404 client error.
func IsNotFound(err error) bool {
	target := &ClientError{}
	if errors.As(err, &target) {
		return target.StatusCode == http.StatusNotFound
	}

	return false
}

// StatusCode extracts the HTTP status carried by a classified error, or zero
// when the error carries none.
func StatusCode(err error) int {
	clientErr := &ClientError{}
	if errors.As(err, &clientErr) {
		return clientErr.StatusCode
	}

	serverErr := &ServerError{}
	if errors.As(err, &serverErr) {
		return serverErr.StatusCode
	}

	unknownErr := &UnknownError{}
	if errors.As(err, &unknownErr) {
		return unknownErr.StatusCode
	}

	return 0
}
