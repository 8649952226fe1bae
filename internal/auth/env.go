package auth

import (
	"net/url"
	"os"
	"strings"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

// NewProviderFromEnv builds a provider from environment variables prefixed by
// the upper-cased server name. Branches are checked in a fixed priority:
// PKCE OAuth, then legacy OAuth, then bearer, then API key, then basic. The
// first branch whose required variables are all present wins. Returns
// (nil, nil) when nothing matches.
func NewProviderFromEnv(serverName string) (Provider, error) {
	prefix := strings.ToUpper(serverName)
	get := func(suffix string) string {
		return os.Getenv(prefix + "_" + suffix)
	}

	if issuerURL, clientID, redirectURI := get("PKCE_OAUTH_ISSUER_URL"), get("PKCE_OAUTH_CLIENT_ID"), get("PKCE_OAUTH_REDIRECT_URI"); issuerURL != "" && clientID != "" && redirectURI != "" {
		// Malformed URLs yield no provider rather than an error so that
		// a broken environment degrades to unauthenticated.
		if !isAbsoluteURL(issuerURL) || !isAbsoluteURL(redirectURI) {
			return nil, nil
		}
		cfg, err := oauth.NewPKCEConfig(oauth.PKCEConfig{
			IssuerURL:        issuerURL,
			ClientID:         clientID,
			ClientSecret:     get("PKCE_OAUTH_CLIENT_SECRET"),
			Scope:            get("PKCE_OAUTH_SCOPE"),
			RedirectURI:      redirectURI,
			UseOIDCDiscovery: true,
		})
		if err != nil {
			return nil, nil
		}
		return NewPKCEProvider(cfg, nil), nil
	}

	if accessToken, tokenEndpoint, clientID := get("OAUTH_ACCESS_TOKEN"), get("OAUTH_TOKEN_ENDPOINT"), get("OAUTH_CLIENT_ID"); accessToken != "" && tokenEndpoint != "" && clientID != "" {
		cfg, err := oauth.NewConfig(oauth.Config{
			TokenEndpoint: tokenEndpoint,
			ClientID:      clientID,
			ClientSecret:  get("OAUTH_CLIENT_SECRET"),
			Scope:         get("OAUTH_SCOPE"),
		})
		if err != nil {
			return nil, nil
		}
		tokens := oauth.NewTokens(accessToken, get("OAUTH_REFRESH_TOKEN"), "Bearer", 0, get("OAUTH_SCOPE"))
		return NewOAuthProvider(cfg, tokens, nil), nil
	}

	if token := get("BEARER_TOKEN"); token != "" {
		return NewBearerProvider(token), nil
	}
	if token := get("TOKEN"); token != "" {
		return NewBearerProvider(token), nil
	}

	if key := get("API_KEY"); key != "" {
		header := get("API_HEADER")
		if header == "" {
			header = DefaultAPIKeyHeader
		}
		return NewAPIKeyProvider(key, header, get("API_PREFIX")), nil
	}

	if username, password := get("USERNAME"), get("PASSWORD"); username != "" && password != "" {
		return NewBasicProvider(username, password), nil
	}

	return nil, nil
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	return err == nil && u.Scheme != "" && u.Host != ""
}
