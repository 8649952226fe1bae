package oauth

import (
	"fmt"
	"net/url"
	"time"

	"golang.org/x/oauth2"
)

// RefreshThreshold is the duration before expiry at which a token is treated
// as already invalid. The margin protects in-flight requests from racing a
// token that expires mid-request.
const RefreshThreshold = 5 * time.Minute

// Tokens is an immutable snapshot of an OAuth token response. Providers
// replace the whole value on refresh; fields are never mutated in place.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	TokenType    string    `json:"token_type,omitempty"`
	ExpiresIn    int       `json:"expires_in,omitempty"`
	Scope        string    `json:"scope,omitempty"`

	// ExpiresAt is derived as now + ExpiresIn at construction time and
	// never recomputed afterwards. Zero means the token does not expire.
	ExpiresAt time.Time `json:"expires_at,omitempty"`
}

// NewTokens builds a Tokens value, computing ExpiresAt once from expiresIn.
// A zero expiresIn leaves ExpiresAt unset. The token type defaults to
// "Bearer".
func NewTokens(accessToken, refreshToken, tokenType string, expiresIn int, scope string) *Tokens {
	if tokenType == "" {
		tokenType = "Bearer"
	}
	t := &Tokens{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    tokenType,
		ExpiresIn:    expiresIn,
		Scope:        scope,
	}
	if expiresIn > 0 {
		t.ExpiresAt = time.Now().Add(time.Duration(expiresIn) * time.Second)
	}
	return t
}

// ExpiresSoon reports whether the token expires within the given margin.
// Tokens without an expiry never expire.
func (t *Tokens) ExpiresSoon(margin time.Duration) bool {
	if t == nil || t.ExpiresAt.IsZero() {
		return false
	}
	return time.Now().Add(margin).After(t.ExpiresAt)
}

// AuthorizationValue returns the Authorization header value,
// "{TokenType} {AccessToken}".
func (t *Tokens) AuthorizationValue() string {
	typ := t.TokenType
	if typ == "" {
		typ = "Bearer"
	}
	return typ + " " + t.AccessToken
}

// ToOAuth2Token converts to a golang.org/x/oauth2 token for interop with
// oauth2-based HTTP clients.
func (t *Tokens) ToOAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.TokenType,
		Expiry:       t.ExpiresAt,
	}
}

// TokensFromOAuth2 converts a golang.org/x/oauth2 token. ExpiresAt is carried
// over verbatim, not recomputed.
func TokensFromOAuth2(tok *oauth2.Token) *Tokens {
	if tok == nil {
		return nil
	}
	return &Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		TokenType:    tok.TokenType,
		ExpiresAt:    tok.Expiry,
	}
}

// Config holds the configuration of a resource/refresh-token OAuth provider.
// Construct through NewConfig, which validates the token endpoint and
// canonicalizes ResourceURI; after construction ResourceURI is always the
// canonical form, never the raw input.
type Config struct {
	TokenEndpoint string
	ClientID      string
	ClientSecret  string
	Scope         string
	ResourceURI   string
}

// NewConfig validates and normalizes cfg, failing fast on a malformed token
// endpoint or resource URI.
func NewConfig(cfg Config) (*Config, error) {
	if cfg.TokenEndpoint == "" {
		return nil, fmt.Errorf("token endpoint is required")
	}
	if err := validateEndpointURL(cfg.TokenEndpoint); err != nil {
		return nil, fmt.Errorf("token endpoint: %w", err)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.ResourceURI != "" {
		canonical, err := CanonicalizeResourceURI(cfg.ResourceURI)
		if err != nil {
			return nil, err
		}
		cfg.ResourceURI = canonical
	}
	return &cfg, nil
}

// PKCEConfig holds the configuration of a PKCE OAuth provider. The PKCE pair
// is generated once at construction and never regenerated for the lifetime of
// the config. Endpoints are optional and resolved via discovery when absent.
type PKCEConfig struct {
	IssuerURL             string
	ClientID              string
	ClientSecret          string
	Scope                 string
	RedirectURI           string
	AuthorizationEndpoint string
	TokenEndpoint         string
	UseOIDCDiscovery      bool
	ResourceURI           string
	PKCE                  *PKCEPair
}

// NewPKCEConfig validates and normalizes cfg, generating the PKCE pair when
// one is not supplied.
func NewPKCEConfig(cfg PKCEConfig) (*PKCEConfig, error) {
	if cfg.IssuerURL == "" {
		return nil, fmt.Errorf("issuer URL is required")
	}
	if err := validateEndpointURL(cfg.IssuerURL); err != nil {
		return nil, fmt.Errorf("issuer URL: %w", err)
	}
	if cfg.ClientID == "" {
		return nil, fmt.Errorf("client ID is required")
	}
	if cfg.RedirectURI == "" {
		return nil, fmt.Errorf("redirect URI is required")
	}
	if err := validateEndpointURL(cfg.RedirectURI); err != nil {
		return nil, fmt.Errorf("redirect URI: %w", err)
	}
	if cfg.ResourceURI != "" {
		canonical, err := CanonicalizeResourceURI(cfg.ResourceURI)
		if err != nil {
			return nil, err
		}
		cfg.ResourceURI = canonical
	}
	if cfg.PKCE == nil {
		pair, err := GeneratePKCE()
		if err != nil {
			return nil, err
		}
		cfg.PKCE = pair
	}
	return &cfg, nil
}

// validateEndpointURL requires an absolute URL with scheme and host.
func validateEndpointURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse %q: %w", raw, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%q is not an absolute URL", raw)
	}
	return nil
}
