package auth

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

// PKCEProvider implements OAuth2 with PKCE. Its config carries an immutable
// PKCE pair generated at construction; endpoints missing from the config are
// resolved through discovery against the issuer. Until tokens are installed
// (the interactive authorization-code flow happens outside this package) the
// provider has nothing to attach and nothing to recover with.
type PKCEProvider struct {
	cfg       *oauth.PKCEConfig
	doer      oauth.HTTPDoer
	discovery *oauth.DiscoveryManager

	mu     sync.Mutex
	sf     singleflight.Group
	tokens *oauth.Tokens
}

// NewPKCEProvider creates a PKCE OAuth provider from a validated config.
// A nil doer falls back to http.DefaultClient.
func NewPKCEProvider(cfg *oauth.PKCEConfig, doer oauth.HTTPDoer) *PKCEProvider {
	if doer == nil {
		doer = http.DefaultClient
	}
	return &PKCEProvider{
		cfg:       cfg,
		doer:      doer,
		discovery: oauth.NewDiscoveryManager(oauth.WithHTTPDoer(doer)),
	}
}

func (p *PKCEProvider) Scheme() Scheme { return SchemeOAuth }

// Config returns the provider's configuration, including the PKCE pair a
// caller needs to run the authorization-code flow.
func (p *PKCEProvider) Config() *oauth.PKCEConfig { return p.cfg }

func (p *PKCEProvider) GetHeaders(ctx context.Context) (map[string]string, error) {
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

// IsValid is false until tokens are obtained.
func (p *PKCEProvider) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens != nil && p.tokens.AccessToken != "" &&
		!p.tokens.ExpiresSoon(oauth.RefreshThreshold)
}

// HandleChallenge refreshes on a 401 when tokens with a refresh token exist.
// Before tokens exist it fails: completing the authorization-code flow needs
// user interaction, which is out of scope here.
func (p *PKCEProvider) HandleChallenge(ctx context.Context, ch *Challenge) (map[string]string, error) {
	if ch.StatusCode != 401 {
		return nil, errUnexpectedStatus(ch.StatusCode)
	}

	p.mu.Lock()
	tokens := p.tokens
	p.mu.Unlock()

	if tokens == nil || tokens.AccessToken == "" {
		return nil, failedf("no tokens available; interactive authorization is required")
	}
	if tokens.RefreshToken == "" {
		return nil, failedf("access token rejected and no refresh token is available")
	}

	refreshed, err := p.doRefresh(ctx, tokens.RefreshToken)
	if err != nil {
		return nil, err
	}
	return map[string]string{"Authorization": refreshed.AuthorizationValue()}, nil
}

// SetTokens installs tokens obtained by a caller that completed the
// authorization-code flow.
func (p *PKCEProvider) SetTokens(tokens *oauth.Tokens) {
	p.mu.Lock()
	p.tokens = tokens
	p.mu.Unlock()
}

// tokenEndpoint returns the configured token endpoint, resolving it through
// discovery against the issuer when the config does not pin one.
func (p *PKCEProvider) tokenEndpoint(ctx context.Context) (string, error) {
	if p.cfg.TokenEndpoint != "" {
		return p.cfg.TokenEndpoint, nil
	}
	meta, err := p.discovery.DiscoverServerMetadata(ctx, "", p.cfg.IssuerURL)
	if err != nil {
		return "", failedf("token endpoint discovery: %v", err)
	}
	return meta.TokenEndpoint, nil
}

func (p *PKCEProvider) doRefresh(ctx context.Context, refreshToken string) (*oauth.Tokens, error) {
	result, err, _ := p.sf.Do("refresh", func() (any, error) {
		endpoint, err := p.tokenEndpoint(ctx)
		if err != nil {
			return nil, err
		}
		tokens, err := oauth.Refresh(ctx, p.doer, endpoint, oauth.RefreshParams{
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

// Cleanup discards the in-memory tokens. The PKCE pair stays with the config
// for the config's lifetime.
func (p *PKCEProvider) Cleanup() {
	p.mu.Lock()
	p.tokens = nil
	p.mu.Unlock()
}
