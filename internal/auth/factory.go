package auth

import (
	"github.com/mcpkit/mcpauth/internal/oauth"
)

// NewProvider builds a provider from a string auth type and a decoded JSON
// config map. Recognized types: "bearer"/"token", "apikey"/"api_key",
// "basic", and "oauth". The "oauth" type dispatches on config shape:
// usePKCE selects the PKCE provider, useOAuthDiscovery selects the discovery
// provider, anything else is treated as a preconfigured token endpoint with
// existing tokens.
func NewProvider(authType string, config map[string]any) (Provider, error) {
	switch authType {
	case "bearer", "token":
		token, err := requireString(config, "token")
		if err != nil {
			return nil, err
		}
		return NewBearerProvider(token), nil

	case "apikey", "api_key":
		key, err := requireString(config, "apiKey")
		if err != nil {
			return nil, err
		}
		header := stringOr(config, "headerName", DefaultAPIKeyHeader)
		prefix := stringOr(config, "prefix", "")
		return NewAPIKeyProvider(key, header, prefix), nil

	case "basic":
		username, err := requireString(config, "username")
		if err != nil {
			return nil, err
		}
		password, err := requireString(config, "password")
		if err != nil {
			return nil, err
		}
		return NewBasicProvider(username, password), nil

	case "oauth":
		return newOAuthFamilyProvider(config)

	default:
		return nil, failedf("unknown auth type: %q", authType)
	}
}

// NewProviderForScheme is NewProvider keyed by scheme instead of string.
// Custom schemes have no factory construction path.
func NewProviderForScheme(scheme Scheme, config map[string]any) (Provider, error) {
	switch scheme {
	case SchemeBearer:
		return NewProvider("bearer", config)
	case SchemeAPIKey:
		return NewProvider("apikey", config)
	case SchemeBasic:
		return NewProvider("basic", config)
	case SchemeOAuth:
		return NewProvider("oauth", config)
	default:
		return nil, failedf("no factory for scheme %q", scheme)
	}
}

func newOAuthFamilyProvider(config map[string]any) (Provider, error) {
	switch {
	case boolOr(config, "usePKCE", false):
		return newPKCEFromConfig(config)
	case boolOr(config, "useOAuthDiscovery", false):
		return newDiscoveryFromConfig(config)
	default:
		return newLegacyOAuthFromConfig(config)
	}
}

func newPKCEFromConfig(config map[string]any) (Provider, error) {
	issuerURL, err := requireString(config, "issuerURL")
	if err != nil {
		return nil, err
	}
	clientID, err := requireString(config, "clientId")
	if err != nil {
		return nil, err
	}
	redirectURI, err := requireString(config, "redirectURI")
	if err != nil {
		return nil, err
	}

	cfg, err := oauth.NewPKCEConfig(oauth.PKCEConfig{
		IssuerURL:             issuerURL,
		ClientID:              clientID,
		ClientSecret:          stringOr(config, "clientSecret", ""),
		Scope:                 stringOr(config, "scope", ""),
		RedirectURI:           redirectURI,
		AuthorizationEndpoint: stringOr(config, "authorizationEndpoint", ""),
		TokenEndpoint:         stringOr(config, "tokenEndpoint", ""),
		UseOIDCDiscovery:      boolOr(config, "useOpenIDConnectDiscovery", true),
		ResourceURI:           stringOr(config, "resourceURI", ""),
	})
	if err != nil {
		return nil, failedf("pkce oauth config: %v", err)
	}
	return NewPKCEProvider(cfg, nil), nil
}

func newDiscoveryFromConfig(config map[string]any) (Provider, error) {
	resourceServerURL, err := requireString(config, "resourceServerURL")
	if err != nil {
		return nil, err
	}
	clientID, err := requireString(config, "clientId")
	if err != nil {
		return nil, err
	}
	redirectURI, err := requireString(config, "redirectURI")
	if err != nil {
		return nil, err
	}

	return NewDiscoveryProvider(DiscoveryConfig{
		ResourceServerURL:          resourceServerURL,
		ClientID:                   clientID,
		ClientSecret:               stringOr(config, "clientSecret", ""),
		Scope:                      stringOr(config, "scope", ""),
		RedirectURI:                redirectURI,
		ResourceType:               stringOr(config, "resourceType", DefaultResourceType),
		PreConfiguredAuthServerURL: stringOr(config, "preConfiguredAuthServerURL", ""),
		ResourceURI:                stringOr(config, "resourceURI", ""),
	}, nil)
}

func newLegacyOAuthFromConfig(config map[string]any) (Provider, error) {
	accessToken, err := requireString(config, "accessToken")
	if err != nil {
		return nil, err
	}
	tokenEndpoint, err := requireString(config, "tokenEndpoint")
	if err != nil {
		return nil, err
	}
	clientID, err := requireString(config, "clientId")
	if err != nil {
		return nil, err
	}

	cfg, err := oauth.NewConfig(oauth.Config{
		TokenEndpoint: tokenEndpoint,
		ClientID:      clientID,
		ClientSecret:  stringOr(config, "clientSecret", ""),
		Scope:         stringOr(config, "scope", ""),
		ResourceURI:   stringOr(config, "resourceURI", ""),
	})
	if err != nil {
		return nil, failedf("oauth config: %v", err)
	}

	tokens := oauth.NewTokens(
		accessToken,
		stringOr(config, "refreshToken", ""),
		stringOr(config, "tokenType", "Bearer"),
		intOr(config, "expiresIn", 0),
		stringOr(config, "scope", ""),
	)
	return NewOAuthProvider(cfg, tokens, nil), nil
}

func requireString(config map[string]any, key string) (string, error) {
	v, ok := config[key].(string)
	if !ok || v == "" {
		return "", missingf(key)
	}
	return v, nil
}

func stringOr(config map[string]any, key, fallback string) string {
	if v, ok := config[key].(string); ok && v != "" {
		return v
	}
	return fallback
}

func boolOr(config map[string]any, key string, fallback bool) bool {
	if v, ok := config[key].(bool); ok {
		return v
	}
	return fallback
}

// intOr tolerates both int and the float64 that encoding/json decodes
// numbers to.
func intOr(config map[string]any, key string, fallback int) int {
	switch v := config[key].(type) {
	case int:
		return v
	case float64:
		return int(v)
	default:
		return fallback
	}
}
