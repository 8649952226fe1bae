package auth

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

// OAuthProvider implements the OAuth2 resource/refresh-token flow: it holds
// the current token set and exchanges the refresh token at the configured
// token endpoint when the access token expires or is rejected. Tokens are
// replaced wholesale on refresh, never mutated in place.
type OAuthProvider struct {
	cfg  *oauth.Config
	doer oauth.HTTPDoer

	mu     sync.Mutex
	sf     singleflight.Group
	tokens *oauth.Tokens
}

// NewOAuthProvider creates an OAuth provider from a validated config and an
// initial token set. A nil doer falls back to http.DefaultClient.
func NewOAuthProvider(cfg *oauth.Config, tokens *oauth.Tokens, doer oauth.HTTPDoer) *OAuthProvider {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &OAuthProvider{cfg: cfg, doer: doer, tokens: tokens}
}

func (p *OAuthProvider) Scheme() Scheme { return SchemeOAuth }

// GetHeaders returns the Authorization header, refreshing first when the
// access token expires within the threshold and a refresh token exists.
func (p *OAuthProvider) GetHeaders(ctx context.Context) (map[string]string, error) {
	p.mu.Lock()
	tokens := p.tokens
	p.mu.Unlock()

	if tokens == nil || tokens.AccessToken == "" {
		return nil, ErrInvalidCredentials
	}
	if tokens.ExpiresSoon(oauth.RefreshThreshold) && tokens.RefreshToken != "" {
		refreshed, err := p.doRefresh(ctx, tokens.RefreshToken)
		if err != nil {
			return nil, err
		}
		tokens = refreshed
	}
	return map[string]string{"Authorization": tokens.AuthorizationValue()}, nil
}

// IsValid reports whether the held access token is usable without refresh.
func (p *OAuthProvider) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens != nil && p.tokens.AccessToken != "" &&
		!p.tokens.ExpiresSoon(oauth.RefreshThreshold)
}

// HandleChallenge exchanges the refresh token on a 401. A 401 without a
// refresh token, or any other status code, is not recoverable.
func (p *OAuthProvider) HandleChallenge(ctx context.Context, ch *Challenge) (map[string]string, error) {
	if ch.StatusCode != 401 {
		return nil, errUnexpectedStatus(ch.StatusCode)
	}

	p.mu.Lock()
	tokens := p.tokens
	p.mu.Unlock()

	if tokens == nil || tokens.RefreshToken == "" {
		return nil, failedf("access token rejected and no refresh token is available")
	}

	refreshed, err := p.doRefresh(ctx, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": refreshed.AuthorizationValue()}, nil
}

// UpdateTokens atomically replaces the held tokens, typically after an
// exchange performed by a collaborator.
func (p *OAuthProvider) UpdateTokens(tokens *oauth.Tokens) {
	p.mu.Lock()
	p.tokens = tokens
	p.mu.Unlock()
}

// Tokens returns the current token snapshot.
func (p *OAuthProvider) Tokens() *oauth.Tokens {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens
}

// doRefresh performs a single-flight refresh-token exchange: concurrent
// callers all observe the result of one attempt, which matters because
// refresh tokens are typically single-use at the authorization server.
func (p *OAuthProvider) doRefresh(ctx context.Context, refreshToken string) (*oauth.Tokens, error) {
	result, err, _ := p.sf.Do("refresh", func() (any, error) {
		tokens, err := oauth.Refresh(ctx, p.doer, p.cfg.TokenEndpoint, oauth.RefreshParams{
			ClientID:     p.cfg.ClientID,
			ClientSecret: p.cfg.ClientSecret,
			RefreshToken: refreshToken,
			Scope:        p.cfg.Scope,
			Resource:     p.cfg.ResourceURI,
		})
		if err != nil {
			return nil, failedf("token refresh: %v", err)
		}
		p.mu.Lock()
		p.tokens = tokens
		p.mu.Unlock()
		return tokens, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*oauth.Tokens), nil
}

// Cleanup discards the in-memory tokens.
func (p *OAuthProvider) Cleanup() {
	p.mu.Lock()
	p.tokens = nil
	p.mu.Unlock()
}
