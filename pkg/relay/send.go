package relay

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
)

// SendOption tunes a single Send/SendRaw call.
type SendOption func(*sendOptions)

type sendOptions struct {
	errorModel ErrorModel
}

// WithErrorModel binds the error-model factory for this call, overriding the
// config-level default. Binding per call keeps one client usable against
// endpoints with different error schemas.
func WithErrorModel(factory ErrorModel) SendOption {
	return func(o *sendOptions) {
		o.errorModel = factory
	}
}

// Send executes req through the full pipeline and decodes the body into T.
//
// A 204 or empty success body yields the registered empty value for T, or an
// *EmptyResponseError when none is registered. A transport failure without
// any classifiable response also falls back to T's empty value when one is
// registered and no partial body exists. A success body that fails to decode
// is a fatal *DecodeError.
func Send[T any](ctx context.Context, client *Client, req *Request, opts ...SendOption) (*Envelope[T], error) {
	options := applySendOptions(opts)

	resp, err := client.do(ctx, req, options.errorModel)

	return decodeResult[T](resp, err)
}

// SendRaw executes req through the chain-bypassing path and decodes the body
// into T. No interceptor hook runs.
func SendRaw[T any](ctx context.Context, client *Client, req *Request, opts ...SendOption) (*Envelope[T], error) {
	options := applySendOptions(opts)

	resp, err := client.doRaw(ctx, req, options.errorModel)

	return decodeResult[T](resp, err)
}

func applySendOptions(opts []SendOption) *sendOptions {
	options := &sendOptions{}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

func decodeResult[T any](resp *Response, err error) (*Envelope[T], error) {
	if err != nil {
		return emptyFallback[T](err)
	}

	return decodeBody[T](resp)
}

// emptyFallback substitutes T's empty value when the transport yielded no
// classifiable response and no partial body exists. Cancellation and timeout
// stay fatal: the caller aborted, nothing "succeeded emptily".
func emptyFallback[T any](err error) (*Envelope[T], error) {
	unknownErr := &UnknownError{}
	if !errors.As(err, &unknownErr) || unknownErr.StatusCode != 0 || len(unknownErr.Body) != 0 {
		return nil, err
	}

	if errors.Is(unknownErr.Err, context.Canceled) || errors.Is(unknownErr.Err, context.DeadlineExceeded) {
		return nil, err
	}

	value, ok := emptyValueFor(targetType[T]())
	if !ok {
		return nil, err
	}

	return &Envelope[T]{Data: value.(T)}, nil
}

func decodeBody[T any](resp *Response) (*Envelope[T], error) {
	if resp.StatusCode == http.StatusNoContent || len(resp.Body) == 0 {
		value, ok := emptyValueFor(targetType[T]())
		if !ok {
			return nil, &EmptyResponseError{Target: targetType[T]().String()}
		}

		return &Envelope[T]{Data: value.(T), Raw: resp}, nil
	}

	var data T

	err := json.Unmarshal(resp.Body, &data)
	if err != nil {
		return nil, &DecodeError{Target: targetType[T]().String(), Err: err}
	}

	return &Envelope[T]{Data: data, Raw: resp}, nil
}

func targetType[T any]() reflect.Type {
	return reflect.TypeOf((*T)(nil)).Elem()
}
