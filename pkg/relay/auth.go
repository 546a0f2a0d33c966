package relay

import (
	"context"
	"fmt"
	"net/http"

	"github.com/relaykit-io/relay/internal/auth"
)

// TokenManager supplies and refreshes bearer tokens for AuthInterceptor.
type TokenManager interface {
	GetToken(ctx context.Context) (string, error)
	RefreshToken(ctx context.Context) error
}

// NewStaticTokenManager returns a manager around a fixed token. Refresh
// always fails, so a 401 with a static token is not recoverable.
func NewStaticTokenManager(token string) TokenManager {
	return auth.NewStaticTokenManager(token)
}

// OAuth2Config configures NewOAuth2TokenManager.
type OAuth2Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Username     string
	Password     string
	RefreshToken string
	AccessToken  string
}

// NewOAuth2TokenManager returns a manager that obtains and refreshes tokens
// from an OAuth2 token endpoint, holding state in an in-memory store.
func NewOAuth2TokenManager(config OAuth2Config) TokenManager {
	return auth.NewOAuth2TokenManager(&auth.OAuth2Config{
		TokenURL:     config.TokenURL,
		ClientID:     config.ClientID,
		ClientSecret: config.ClientSecret,
		Username:     config.Username,
		Password:     config.Password,
		RefreshToken: config.RefreshToken,
		AccessToken:  config.AccessToken,
	})
}

// AuthInterceptor sets a bearer token on outgoing requests and recovers 401
// responses by refreshing the token and replaying the original descriptor
// through the raw path. The retried request carries only this interceptor's
// mutation (the fresh Authorization header), never the rest of the chain's.
type AuthInterceptor struct {
	BaseInterceptor

	tokens TokenManager
}

// NewAuthInterceptor creates an interceptor around the injected manager.
func NewAuthInterceptor(tokens TokenManager) *AuthInterceptor {
	return &AuthInterceptor{tokens: tokens}
}

// WillSend sets the Authorization header. A token fetch failure leaves the
// request untouched; the server's 401 then drives OnError recovery.
func (i *AuthInterceptor) WillSend(ctx context.Context, req *WireRequest) {
	token, err := i.tokens.GetToken(ctx)
	if err != nil || token == "" {
		return
	}

	if req.Headers == nil {
		req.Headers = make(http.Header)
	}

	req.Headers.Set("Authorization", "Bearer "+token)
}

// OnError handles 401 by forcing a refresh and retrying the original request
// once through the chain-bypassing path. Any failure along the way is
// reported to the pipeline, which swallows it and moves to the next handler.
func (i *AuthInterceptor) OnError(ctx context.Context, resp *Response, original *Request, raw Doer) (*Response, error) {
	if resp.StatusCode != http.StatusUnauthorized {
		return nil, nil
	}

	err := i.tokens.RefreshToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("refreshing token: %w", err)
	}

	token, err := i.tokens.GetToken(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching refreshed token: %w", err)
	}

	retry := original.Clone()
	if retry.Headers == nil {
		retry.Headers = make(map[string]string)
	}

	retry.Headers["Authorization"] = "Bearer " + token

	recovered, err := raw.Do(ctx, retry)
	if err != nil {
		return nil, fmt.Errorf("retrying request: %w", err)
	}

	return recovered, nil
}
