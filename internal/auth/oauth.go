package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/relaykit-io/relay/internal/constants"
)

// Static errors for err113 compliance.
var (
	ErrNoTokenAvailable         = errors.New("no token available and no credentials to obtain one")
	ErrTokenURLRequired         = errors.New("token URL is required")
	ErrTokenRequestFailed       = errors.New("token request failed")
	ErrStaticTokenCannotRefresh = errors.New("static token cannot be refreshed")
)

// TokenManager supplies and refreshes access tokens.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
	SetToken(token string, expiresAt time.Time)
}

// StaticTokenManager serves a fixed token and cannot refresh it.
type StaticTokenManager struct {
	mu    sync.RWMutex
	token string
}

// NewStaticTokenManager creates a manager around a fixed token.
func NewStaticTokenManager(token string) *StaticTokenManager {
	return &StaticTokenManager{token: token}
}

// GetToken returns the static token.
func (m *StaticTokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return m.token, nil
}

// RefreshToken always fails for static tokens.
func (m *StaticTokenManager) RefreshToken(ctx context.Context) error {
	return ErrStaticTokenCannotRefresh
}

// SetToken replaces the static token.
func (m *StaticTokenManager) SetToken(token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.token = token
}

// OAuth2Config configures an OAuth2TokenManager. Grant selection: a stored
// refresh token wins, then the password grant when Username is set, then
// client_credentials.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	AccessToken  string
}

// OAuth2TokenManager obtains and refreshes tokens from an OAuth2 token
// endpoint.
type OAuth2TokenManager struct {
	config     *OAuth2Config
	store      TokenStore
	httpClient *http.Client
	mu         sync.Mutex
}

// NewOAuth2TokenManager creates a manager with an in-memory token store.
func NewOAuth2TokenManager(config *OAuth2Config) *OAuth2TokenManager {
	return NewOAuth2TokenManagerWithStore(config, NewMemoryTokenStore())
}

// NewOAuth2TokenManagerWithStore creates a manager around an injected store.
func NewOAuth2TokenManagerWithStore(config *OAuth2Config, store TokenStore) *OAuth2TokenManager {
	manager := &OAuth2TokenManager{
		config: config,
		store:  store,
		httpClient: &http.Client{
			Timeout: constants.ShortHTTPTimeout,
		},
	}

	if config.AccessToken != "" {
		store.Set(&Token{
			AccessToken:  config.AccessToken,
			RefreshToken: config.RefreshToken,
		})
	} else if config.RefreshToken != "" {
		store.Set(&Token{RefreshToken: config.RefreshToken})
	}

	return manager
}

// GetToken returns a valid access token, refreshing when the stored one is
// missing or expiring within the leeway window.
func (m *OAuth2TokenManager) GetToken(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	token := m.store.Get()
	if token.Valid() && !m.expiringSoon(token) {
		return token.AccessToken, nil
	}

	err := m.refreshLocked(ctx)
	if err != nil {
		return "", err
	}

	return m.store.Get().AccessToken, nil
}

// RefreshToken forces a token refresh regardless of expiry.
func (m *OAuth2TokenManager) RefreshToken(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.refreshLocked(ctx)
}

// SetToken manually sets the access token.
func (m *OAuth2TokenManager) SetToken(token string, expiresAt time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored := m.store.Get()

	refresh := ""
	if stored != nil {
		refresh = stored.RefreshToken
	}

	m.store.Set(&Token{
		AccessToken:  token,
		RefreshToken: refresh,
		ExpiresAt:    expiresAt,
	})
}

func (m *OAuth2TokenManager) expiringSoon(token *Token) bool {
	if token.ExpiresAt.IsZero() {
		return false
	}

	return time.Until(token.ExpiresAt) < constants.TokenExpiryLeeway
}

func (m *OAuth2TokenManager) refreshLocked(ctx context.Context) error {
	if m.config.TokenURL == "" {
		return ErrTokenURLRequired
	}

	form, useBasicAuth := m.grantForm()
	if form == nil {
		return ErrNoTokenAvailable
	}

	token, err := m.requestToken(ctx, form, useBasicAuth)
	if err != nil {
		return err
	}

	m.store.Set(token)

	return nil
}

// grantForm picks the grant for the current credentials. Returns nil when no
// grant is possible.
func (m *OAuth2TokenManager) grantForm() (url.Values, bool) {
	stored := m.store.Get()

	if stored != nil && stored.RefreshToken != "" {
		form := url.Values{}
		form.Set("grant_type", "refresh_token")
		form.Set("refresh_token", stored.RefreshToken)

		if m.config.ClientID != "" {
			form.Set("client_id", m.config.ClientID)
		}

		return form, false
	}

	if m.config.Username != "" && m.config.Password != "" {
		form := url.Values{}
		form.Set("grant_type", "password")
		form.Set("username", m.config.Username)
		form.Set("password", m.config.Password)

		if m.config.ClientID != "" {
			form.Set("client_id", m.config.ClientID)
		}

		return form, false
	}

	if m.config.ClientID != "" && m.config.ClientSecret != "" {
		form := url.Values{}
		form.Set("grant_type", "client_credentials")

		return form, true
	}

	return nil, false
}

func (m *OAuth2TokenManager) requestToken(ctx context.Context, form url.Values, useBasicAuth bool) (*Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.config.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("building token request: %w", err)
	}

	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if useBasicAuth {
		req.SetBasicAuth(m.config.ClientID, m.config.ClientSecret)
	}

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("requesting token: %w", err)
	}

	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w with status %d: %s", ErrTokenRequestFailed, resp.StatusCode, string(body))
	}

	var token Token

	err = json.Unmarshal(body, &token)
	if err != nil {
		return nil, fmt.Errorf("parsing token response: %w", err)
	}

	if token.ExpiresIn > 0 {
		token.ExpiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
	}

	return &token, nil
}
