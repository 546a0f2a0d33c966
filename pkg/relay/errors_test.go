package relay_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relaykit-io/relay/pkg/relay"
)

func TestErrorMessages(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		err      error
		contains []string
	}{
		{
			name:     "client error without model",
			err:      &relay.ClientError{StatusCode: 404},
			contains: []string{"client error", "404"},
		},
		{
			name:     "client error with model",
			err:      &relay.ClientError{StatusCode: 422, Model: "name taken"},
			contains: []string{"client error", "422", "name taken"},
		},
		{
			name:     "server error",
			err:      &relay.ServerError{StatusCode: 503},
			contains: []string{"server error", "503"},
		},
		{
			name:     "unknown error with cause",
			err:      &relay.UnknownError{Err: errors.New("connection refused")},
			contains: []string{"unknown error", "connection refused"},
		},
		{
			name:     "unknown error with status",
			err:      &relay.UnknownError{StatusCode: 302},
			contains: []string{"unknown error", "302"},
		},
		{
			name:     "empty response error",
			err:      &relay.EmptyResponseError{Target: "relay_test.widget"},
			contains: []string{"empty response", "relay_test.widget"},
		},
		{
			name:     "decode error",
			err:      &relay.DecodeError{Target: "relay_test.widget", Err: errors.New("unexpected EOF")},
			contains: []string{"decoding", "relay_test.widget", "unexpected EOF"},
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()

			for _, expected := range testCase.contains {
				assert.Contains(t, testCase.err.Error(), expected)
			}
		})
	}
}

func TestErrorPredicates(t *testing.T) {
	t.Parallel()
	t.Run("predicates match wrapped errors", func(t *testing.T) {
		t.Parallel()

		wrapped := fmt.Errorf("sending widget request: %w", &relay.ClientError{StatusCode: 401})

		assert.True(t, relay.IsClientError(wrapped))
		assert.True(t, relay.IsUnauthorized(wrapped))
		assert.False(t, relay.IsNotFound(wrapped))
		assert.False(t, relay.IsServerError(wrapped))
		assert.Equal(t, 401, relay.StatusCode(wrapped))
	})

	t.Run("status code of unrelated error is zero", func(t *testing.T) {
		t.Parallel()

		assert.Equal(t, 0, relay.StatusCode(errors.New("boom")))
	})

	t.Run("unknown error unwraps its cause", func(t *testing.T) {
		t.Parallel()

		cause := errors.New("dial tcp: connection refused")
		err := &relay.UnknownError{Err: cause}
		require.ErrorIs(t, err, cause)
	})
}
