package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

func newPKCETestConfig(t *testing.T, issuerURL, tokenEndpoint string) *oauth.PKCEConfig {
	t.Helper()
	cfg, err := oauth.NewPKCEConfig(oauth.PKCEConfig{
		IssuerURL:     issuerURL,
		ClientID:      "pkce-client",
		RedirectURI:   "http://localhost:8765/callback",
		TokenEndpoint: tokenEndpoint,
	})
	require.NoError(t, err)
	return cfg
}

func TestPKCEProviderConfigCarriesPair(t *testing.T) {
	cfg := newPKCETestConfig(t, "https://issuer.example.com", "")
	p := NewPKCEProvider(cfg, nil)

	require.Equal(t, SchemeOAuth, p.Scheme())
	pair := p.Config().PKCE
	require.NotNil(t, pair)
	assert.Len(t, pair.CodeChallenge, 43)

	// Cleanup discards tokens, never the pair.
	p.Cleanup()
	assert.Same(t, pair, p.Config().PKCE)
}

func TestPKCEProviderBeforeTokens(t *testing.T) {
	p := NewPKCEProvider(newPKCETestConfig(t, "https://issuer.example.com", ""), nil)

	assert.False(t, p.IsValid())

	_, err := p.GetHeaders(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = p.HandleChallenge(context.Background(), &Challenge{StatusCode: 401})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "interactive authorization is required")
}

func TestPKCEProviderSetTokens(t *testing.T) {
	p := NewPKCEProvider(newPKCETestConfig(t, "https://issuer.example.com", ""), nil)

	p.SetTokens(oauth.NewTokens("granted", "r1", "Bearer", 3600, ""))
	require.True(t, p.IsValid())

	headers, err := p.GetHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer granted", headers["Authorization"])
}

func TestPKCEProviderChallengeRefreshWithPinnedEndpoint(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "r1", r.PostForm.Get("refresh_token"))
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "renewed",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	}))
	defer srv.Close()

	p := NewPKCEProvider(newPKCETestConfig(t, "https://issuer.example.com", srv.URL+"/token"), srv.Client())
	p.SetTokens(oauth.NewTokens("rejected", "r1", "Bearer", 3600, ""))

	headers, err := p.HandleChallenge(context.Background(), &Challenge{StatusCode: 401})
	require.NoError(t, err)
	assert.Equal(t, "Bearer renewed", headers["Authorization"])
}

func TestPKCEProviderChallengeRefreshViaDiscovery(t *testing.T) {
	mux := http.NewServeMux()
	srv := httptest.NewServer(mux)
	defer srv.Close()

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                           srv.URL,
			"authorization_endpoint":           srv.URL + "/authorize",
			"token_endpoint":                   srv.URL + "/token",
			"grant_types_supported":            []string{"authorization_code", "refresh_token"},
			"code_challenge_methods_supported": []string{"S256"},
			"response_types_supported":         []string{"code"},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "discovered-renewal",
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	p := NewPKCEProvider(newPKCETestConfig(t, srv.URL, ""), srv.Client())
	p.SetTokens(oauth.NewTokens("rejected", "r1", "Bearer", 3600, ""))

	headers, err := p.HandleChallenge(context.Background(), &Challenge{StatusCode: 401})
	require.NoError(t, err)
	assert.Equal(t, "Bearer discovered-renewal", headers["Authorization"])
}

func TestPKCEProviderChallengeNon401(t *testing.T) {
	p := NewPKCEProvider(newPKCETestConfig(t, "https://issuer.example.com", ""), nil)
	p.SetTokens(oauth.NewTokens("live", "r1", "Bearer", 3600, ""))

	_, err := p.HandleChallenge(context.Background(), &Challenge{StatusCode: 403})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "unexpected status code: 403")
}
