package relay_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit-io/relay/pkg/relay"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

type widgetPage struct {
	Items []widget `json:"items"`
}

// rawRetrier replays a 401 through the raw path and records the outcome.
type rawRetrier struct {
	relay.BaseInterceptor

	retryErr error
}

func (i *rawRetrier) OnError(ctx context.Context, resp *relay.Response, original *relay.Request, raw relay.Doer) (*relay.Response, error) {
	if resp.StatusCode != http.StatusUnauthorized {
		return nil, nil
	}

	_, err := raw.Do(ctx, original)
	i.retryErr = err

	return nil, err
}

//nolint:funlen // Test functions can be longer for comprehensive testing
func TestSend(t *testing.T) {
	t.Parallel()
	t.Run("decodes the body into the target type", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_ = json.NewEncoder(writer).Encode(widget{ID: "w-1", Name: "gear"})
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		envelope, err := relay.Send[widget](context.Background(), client, &relay.Request{Path: "/v1/widgets/w-1"})
		require.NoError(t, err)
		assert.Equal(t, "w-1", envelope.Data.ID)
		assert.Equal(t, "gear", envelope.Data.Name)
		assert.Equal(t, 200, envelope.Raw.StatusCode)
	})

	t.Run("204 yields the registered empty value", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		envelope, err := relay.Send[relay.NoContent](context.Background(), client, &relay.Request{Method: "DELETE", Path: "/v1/widgets/w-1"})
		require.NoError(t, err)
		assert.Equal(t, 204, envelope.Raw.StatusCode)
	})

	t.Run("empty body without a sentinel fails", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		_, err := relay.Send[widget](context.Background(), client, &relay.Request{Path: "/v1/widgets/w-1"})
		require.Error(t, err)

		emptyErr := &relay.EmptyResponseError{}
		require.ErrorAs(t, err, &emptyErr)
	})

	t.Run("registered custom empty value is substituted", func(t *testing.T) {
		t.Parallel()

		type ack struct {
			Done bool
		}

		relay.RegisterEmptyValue(func() ack { return ack{Done: true} })

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusOK)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		envelope, err := relay.Send[ack](context.Background(), client, &relay.Request{Path: "/v1/ack"})
		require.NoError(t, err)
		assert.True(t, envelope.Data.Done)
	})

	t.Run("malformed success body is a fatal decode error", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_, _ = writer.Write([]byte(`{"id":`))
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		_, err := relay.Send[widget](context.Background(), client, &relay.Request{Path: "/v1/widgets/w-1"})
		require.Error(t, err)

		decodeErr := &relay.DecodeError{}
		require.ErrorAs(t, err, &decodeErr)
	})

	t.Run("per-call error model overrides the config default", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusUnprocessableEntity)
			_ = json.NewEncoder(writer).Encode(map[string]string{"reason": "name taken"})
		}))
		defer server.Close()

		type validationError struct {
			Reason string `json:"reason"`
		}

		client := newTestClient(t, server.URL)

		_, err := relay.Send[widget](context.Background(), client, &relay.Request{Path: "/v1/widgets"},
			relay.WithErrorModel(func() any { return &validationError{} }))
		require.Error(t, err)

		clientErr := &relay.ClientError{}
		require.ErrorAs(t, err, &clientErr)

		model, ok := clientErr.Model.(*validationError)
		require.True(t, ok)
		assert.Equal(t, "name taken", model.Reason)
	})

	t.Run("per-call error model applies to recovery retries", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusUnauthorized)
			_ = json.NewEncoder(writer).Encode(map[string]string{"reason": "expired"})
		}))
		defer server.Close()

		type tokenError struct {
			Reason string `json:"reason"`
		}

		client := newTestClient(t, server.URL)
		retrier := &rawRetrier{}
		client.AddInterceptor(retrier)

		_, err := relay.Send[widget](context.Background(), client, &relay.Request{Path: "/v1/widgets"},
			relay.WithErrorModel(func() any { return &tokenError{} }))
		require.Error(t, err)

		// The raw retry classified its 401 with the per-call model, not the
		// client default.
		clientErr := &relay.ClientError{}
		require.ErrorAs(t, retrier.retryErr, &clientErr)

		model, ok := clientErr.Model.(*tokenError)
		require.True(t, ok)
		assert.Equal(t, "expired", model.Reason)
	})

	t.Run("params round-trip as a JSON body", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			var body map[string]any

			_ = json.NewDecoder(request.Body).Decode(&body)
			_ = json.NewEncoder(writer).Encode(body)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		envelope, err := relay.Send[map[string]any](context.Background(), client, &relay.Request{
			Method: "POST",
			Path:   "/v1/echo",
			Params: map[string]any{"key": "value"},
		})
		require.NoError(t, err)
		assert.Equal(t, map[string]any{"key": "value"}, envelope.Data)
	})

	t.Run("transport failure falls back to the empty sentinel", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {}))
		server.Close()

		client := newTestClient(t, server.URL)

		envelope, err := relay.Send[relay.NoContent](context.Background(), client, &relay.Request{Path: "/v1/ping"})
		require.NoError(t, err)
		assert.Nil(t, envelope.Raw)

		// Without a sentinel the same failure stays unknown.
		_, err = relay.Send[widget](context.Background(), client, &relay.Request{Path: "/v1/ping"})
		require.Error(t, err)

		unknownErr := &relay.UnknownError{}
		require.ErrorAs(t, err, &unknownErr)
	})

	t.Run("cancellation is fatal even with a sentinel", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			writer.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		_, err := relay.Send[relay.NoContent](ctx, client, &relay.Request{Method: "DELETE", Path: "/v1/widgets/w-1"})
		require.Error(t, err)
		require.ErrorIs(t, err, context.Canceled)

		unknownErr := &relay.UnknownError{}
		require.ErrorAs(t, err, &unknownErr)
	})

	t.Run("decodes nested list payloads", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			_ = json.NewEncoder(writer).Encode(widgetPage{Items: []widget{{ID: "w-1"}, {ID: "w-2"}}})
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)

		envelope, err := relay.Send[widgetPage](context.Background(), client, &relay.Request{Path: "/v1/widgets"})
		require.NoError(t, err)
		require.Len(t, envelope.Data.Items, 2)
		assert.Equal(t, "w-2", envelope.Data.Items[1].ID)
	})
}

func TestSendRaw(t *testing.T) {
	t.Parallel()
	t.Run("bypasses the interceptor chain", func(t *testing.T) {
		t.Parallel()

		server := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assert.Empty(t, request.Header.Get("X-Probe"))
			_ = json.NewEncoder(writer).Encode(widget{ID: "raw"})
		}))
		defer server.Close()

		client := newTestClient(t, server.URL)
		client.AddInterceptor(&headerSetter{key: "X-Probe", value: "mutated"})

		envelope, err := relay.SendRaw[widget](context.Background(), client, &relay.Request{Path: "/v1/widgets/raw"})
		require.NoError(t, err)
		assert.Equal(t, "raw", envelope.Data.ID)
	})
}
