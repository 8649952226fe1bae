package auth

import (
	"context"
	"net/http"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

// DefaultResourceType is assumed when a discovery config does not name the
// kind of protected resource.
const DefaultResourceType = "mcp"

// DiscoveryConfig configures an OAuth provider that locates its authorization
// server automatically.
type DiscoveryConfig struct {
	// ResourceServerURL is the protected resource being accessed.
	ResourceServerURL string
	ClientID          string
	ClientSecret      string
	Scope             string
	RedirectURI       string
	// ResourceType names the kind of resource, "mcp" by default.
	ResourceType string
	// PreConfiguredAuthServerURL, when set, skips protected-resource
	// metadata discovery entirely.
	PreConfiguredAuthServerURL string
	// ResourceURI overrides the RFC 8707 resource indicator; it defaults
	// to the canonicalized resource server URL.
	ResourceURI string
	// Store, when non-nil, supplies persisted refresh tokens and receives
	// refreshed token sets.
	Store Store
}

// DiscoveryProvider implements OAuth2 with automatic authorization-server
// discovery. On a 401 it follows the WWW-Authenticate resource_metadata hint
// (or the well-known locations) to find the authorization server, then
// attempts a refresh-token exchange from held or persisted tokens.
type DiscoveryProvider struct {
	cfg       DiscoveryConfig
	doer      oauth.HTTPDoer
	discovery *oauth.DiscoveryManager

	mu     sync.Mutex
	sf     singleflight.Group
	tokens *oauth.Tokens
}

// NewDiscoveryProvider validates cfg and creates the provider. The resource
// indicator is canonicalized at construction; a malformed resource server URL
// fails fast. A nil doer falls back to http.DefaultClient.
func NewDiscoveryProvider(cfg DiscoveryConfig, doer oauth.HTTPDoer) (*DiscoveryProvider, error) {
	if cfg.ResourceServerURL == "" {
		return nil, missingf("resourceServerURL")
	}
	if cfg.ClientID == "" {
		return nil, missingf("clientId")
	}
	if cfg.RedirectURI == "" {
		return nil, missingf("redirectURI")
	}
	if cfg.ResourceType == "" {
		cfg.ResourceType = DefaultResourceType
	}

	raw := cfg.ResourceURI
	if raw == "" {
		raw = cfg.ResourceServerURL
	}
	canonical, err := oauth.CanonicalizeResourceURI(raw)
	if err != nil {
		return nil, err
	}
	cfg.ResourceURI = canonical

	if doer == nil {
		doer = http.DefaultClient
	}
	return &DiscoveryProvider{
		cfg:       cfg,
		doer:      doer,
		discovery: oauth.NewDiscoveryManager(oauth.WithHTTPDoer(doer)),
	}, nil
}

func (p *DiscoveryProvider) Scheme() Scheme { return SchemeOAuth }

func (p *DiscoveryProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	p.mu.Lock()
	tokens := p.tokens
	p.mu.Unlock()

	if tokens == nil || tokens.AccessToken == "" {
		tokens = p.loadStoredTokens()
		if tokens == nil || tokens.AccessToken == "" {
			return nil, ErrInvalidCredentials
		}
		p.mu.Lock()
		p.tokens = tokens
		p.mu.Unlock()
	}
	return map[string]string{"Authorization": tokens.AuthorizationValue()}, nil
}

// IsValid is false until tokens are obtained.
func (p *DiscoveryProvider) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.tokens != nil && p.tokens.AccessToken != "" &&
		!p.tokens.ExpiresSoon(oauth.RefreshThreshold)
}

// HandleChallenge recovers from a 401 by running discovery (honoring the
// challenge's resource_metadata hint) and exchanging a refresh token against
// the discovered token endpoint.
func (p *DiscoveryProvider) HandleChallenge(ctx context.Context, ch *Challenge) (map[string]string, error) {
	if ch.StatusCode != 401 {
		return nil, errUnexpectedStatus(ch.StatusCode)
	}

	result, err, _ := p.sf.Do("challenge", func() (any, error) {
		meta, err := p.discover(ctx, ch)
		if err != nil {
			return nil, failedf("authorization server discovery: %v", err)
		}

		refreshToken := p.refreshTokenSource()
		if refreshToken == "" {
			return nil, failedf("no refresh token available; interactive authorization is required")
		}

		tokens, err := oauth.Refresh(ctx, p.doer, meta.TokenEndpoint, oauth.RefreshParams{
			ClientID:     p.cfg.ClientID,
			ClientSecret: p.cfg.ClientSecret,
			RefreshToken: refreshToken,
			Scope:        p.cfg.Scope,
			Resource:     p.cfg.ResourceURI,
			AuthMethods:  meta.TokenEndpointAuthMethodsSupported,
		})
		if err != nil {
			return nil, failedf("token refresh: %v", err)
		}

		p.mu.Lock()
		p.tokens = tokens
		p.mu.Unlock()
		p.persistTokens(tokens)
		return tokens, nil
	})
	if err != nil {
		return nil, err
	}
	tokens := result.(*oauth.Tokens)
	return map[string]string{"Authorization": tokens.AuthorizationValue()}, nil
}

// discover resolves the authorization server metadata, preferring the
// challenge's resource_metadata hint over well-known probing.
func (p *DiscoveryProvider) discover(ctx context.Context, ch *Challenge) (*oauth.ServerMetadata, error) {
	params := oauth.ParseWWWAuthenticate(ch.Header.Get("WWW-Authenticate"))
	if hint := params["resource_metadata"]; hint != "" {
		return p.discovery.DiscoverFromResourceMetadataURL(ctx, hint)
	}
	return p.discovery.DiscoverServerMetadata(ctx, p.cfg.ResourceServerURL, p.cfg.PreConfiguredAuthServerURL)
}

// refreshTokenSource returns the refresh token from held tokens first, then
// from the credential store.
func (p *DiscoveryProvider) refreshTokenSource() string {
	p.mu.Lock()
	tokens := p.tokens
	p.mu.Unlock()
	if tokens != nil && tokens.RefreshToken != "" {
		return tokens.RefreshToken
	}
	if stored := p.loadStoredTokens(); stored != nil {
		return stored.RefreshToken
	}
	return ""
}

func (p *DiscoveryProvider) loadStoredTokens() *oauth.Tokens {
	if p.cfg.Store == nil {
		return nil
	}
	cred, err := p.cfg.Store.Load(p.cfg.ResourceServerURL)
	if err != nil || cred == nil {
		return nil
	}
	return cred.Tokens
}

func (p *DiscoveryProvider) persistTokens(tokens *oauth.Tokens) {
	if p.cfg.Store == nil {
		return
	}
	// Persistence is best effort; a storage failure must not undo a
	// successful refresh.
	_ = p.cfg.Store.Save(p.cfg.ResourceServerURL, &Credential{
		AuthType: "oauth",
		ClientID: p.cfg.ClientID,
		Scope:    p.cfg.Scope,
		Tokens:   tokens,
	})
}

// SetTokens installs tokens obtained by a caller that completed the
// authorization-code flow.
func (p *DiscoveryProvider) SetTokens(tokens *oauth.Tokens) {
	p.mu.Lock()
	p.tokens = tokens
	p.mu.Unlock()
}

// Cleanup discards in-memory tokens; persisted credentials are untouched.
func (p *DiscoveryProvider) Cleanup() {
	p.mu.Lock()
	p.tokens = nil
	p.mu.Unlock()
}
