package auth_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relaykit-io/relay/internal/auth"
)

func TestToken_Valid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		token    *auth.Token
		expected bool
	}{
		{
			name:     "nil token",
			token:    nil,
			expected: false,
		},
		{
			name:     "empty access token",
			token:    &auth.Token{AccessToken: ""},
			expected: false,
		},
		{
			name:     "valid token without expiry",
			token:    &auth.Token{AccessToken: "test-token"},
			expected: true,
		},
		{
			name: "valid token with future expiry",
			token: &auth.Token{
				AccessToken: "test-token",
				ExpiresAt:   time.Now().Add(1 * time.Hour),
			},
			expected: true,
		},
		{
			name: "expired token",
			token: &auth.Token{
				AccessToken: "test-token",
				ExpiresAt:   time.Now().Add(-1 * time.Hour),
			},
			expected: false,
		},
	}

	for _, testCase := range tests {
		testCase := testCase
		t.Run(testCase.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, testCase.expected, testCase.token.Valid())
		})
	}
}

func TestMemoryTokenStore(t *testing.T) {
	t.Parallel()

	store := auth.NewMemoryTokenStore()
	assert.Nil(t, store.Get())

	token := &auth.Token{AccessToken: "test-token"}
	store.Set(token)
	assert.Equal(t, token, store.Get())

	store.Clear()
	assert.Nil(t, store.Get())
}
