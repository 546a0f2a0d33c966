// Package auth provides token storage and token managers for bearer-token
// authentication. Token state is always held in an injected store, never in
// process-global state.
package auth

import (
	"sync"
	"time"
)

// Token is an access token with optional refresh material.
type Token struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	ExpiresAt    time.Time `json:"-"`
}

// Valid reports whether the token exists and has not expired.
func (t *Token) Valid() bool {
	if t == nil || t.AccessToken == "" {
		return false
	}

	if t.ExpiresAt.IsZero() {
		return true
	}

	return time.Now().Before(t.ExpiresAt)
}

// TokenStore is the injected persistence capability for tokens.
type TokenStore interface {
	Get() *Token
	Set(token *Token)
	Clear()
}

// MemoryTokenStore keeps the token in memory, guarded by a mutex.
type MemoryTokenStore struct {
	mu    sync.RWMutex
	token *Token
}

// NewMemoryTokenStore creates an empty in-memory store.
func NewMemoryTokenStore() *MemoryTokenStore {
	return &MemoryTokenStore{}
}

// Get returns the stored token, or nil.
func (s *MemoryTokenStore) Get() *Token {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.token
}

// Set replaces the stored token.
func (s *MemoryTokenStore) Set(token *Token) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = token
}

// Clear removes the stored token.
func (s *MemoryTokenStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.token = nil
}
