package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

// authServerStub is an httptest authorization server exposing protected
// resource metadata, server metadata, and a refresh-token endpoint.
type authServerStub struct {
	*httptest.Server
	tokenCalls int
}

func newAuthServerStub(t *testing.T) *authServerStub {
	t.Helper()
	stub := &authServerStub{}
	mux := http.NewServeMux()
	stub.Server = httptest.NewServer(mux)
	t.Cleanup(stub.Close)

	mux.HandleFunc("/.well-known/oauth-protected-resource", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"resource":              stub.URL,
			"authorization_servers": []string{stub.URL},
		})
	})
	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                           stub.URL,
			"authorization_endpoint":           stub.URL + "/authorize",
			"token_endpoint":                   stub.URL + "/token",
			"grant_types_supported":            []string{"authorization_code", "refresh_token"},
			"code_challenge_methods_supported": []string{"S256"},
			"response_types_supported":         []string{"code"},
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		stub.tokenCalls++
		require.NoError(t, r.ParseForm())
		if r.PostForm.Get("refresh_token") != "stored-refresh" {
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "recovered",
			"refresh_token": "rotated-refresh",
			"token_type":    "Bearer",
			"expires_in":    3600,
		})
	})
	return stub
}

func newDiscoveryTestProvider(t *testing.T, stub *authServerStub, store Store) *DiscoveryProvider {
	t.Helper()
	p, err := NewDiscoveryProvider(DiscoveryConfig{
		ResourceServerURL: stub.URL,
		ClientID:          "disc-client",
		RedirectURI:       "http://localhost:8765/callback",
		Store:             store,
	}, stub.Client())
	require.NoError(t, err)
	return p
}

func TestNewDiscoveryProviderValidation(t *testing.T) {
	_, err := NewDiscoveryProvider(DiscoveryConfig{ClientID: "c", RedirectURI: "http://l"}, nil)
	assert.ErrorIs(t, err, ErrMissingConfiguration)

	_, err = NewDiscoveryProvider(DiscoveryConfig{ResourceServerURL: "https://x", RedirectURI: "http://l"}, nil)
	assert.ErrorIs(t, err, ErrMissingConfiguration)

	_, err = NewDiscoveryProvider(DiscoveryConfig{ResourceServerURL: "not a url", ClientID: "c", RedirectURI: "http://l"}, nil)
	assert.Error(t, err, "resource server URL must canonicalize")
}

func TestDiscoveryProviderCanonicalizesResourceURI(t *testing.T) {
	p, err := NewDiscoveryProvider(DiscoveryConfig{
		ResourceServerURL: "https://MCP.Example.com:443/",
		ClientID:          "c",
		RedirectURI:       "http://localhost/cb",
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "https://mcp.example.com", p.cfg.ResourceURI)
	assert.Equal(t, DefaultResourceType, p.cfg.ResourceType)
}

func TestDiscoveryProviderBeforeTokens(t *testing.T) {
	stub := newAuthServerStub(t)
	p := newDiscoveryTestProvider(t, stub, nil)

	assert.False(t, p.IsValid())
	_, err := p.GetHeaders(context.Background())
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

// The full recovery path: a 401 carrying a resource_metadata hint leads to
// protected resource metadata, then server metadata, then a refresh-token
// exchange using the persisted credential.
func TestDiscoveryProviderChallengeRecoversViaHint(t *testing.T) {
	stub := newAuthServerStub(t)

	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, store.Save(stub.URL, &Credential{
		AuthType: "oauth",
		Tokens:   oauth.NewTokens("expired", "stored-refresh", "Bearer", 3600, ""),
	}))

	p := newDiscoveryTestProvider(t, stub, store)

	ch := &Challenge{
		StatusCode: 401,
		Header: http.Header{
			"Www-Authenticate": []string{`Bearer realm="mcp-server", resource_metadata="` + stub.URL + `/.well-known/oauth-protected-resource"`},
		},
	}
	headers, err := p.HandleChallenge(context.Background(), ch)
	require.NoError(t, err)
	assert.Equal(t, "Bearer recovered", headers["Authorization"])
	assert.Equal(t, 1, stub.tokenCalls)
	assert.True(t, p.IsValid())

	// Refreshed tokens are persisted back.
	cred, err := store.Load(stub.URL)
	require.NoError(t, err)
	require.NotNil(t, cred)
	assert.Equal(t, "recovered", cred.Tokens.AccessToken)
	assert.Equal(t, "rotated-refresh", cred.Tokens.RefreshToken)
}

// Without a hint the provider falls back to well-known probing against the
// resource server URL.
func TestDiscoveryProviderChallengeRecoversWithoutHint(t *testing.T) {
	stub := newAuthServerStub(t)
	p := newDiscoveryTestProvider(t, stub, nil)
	p.SetTokens(oauth.NewTokens("expired", "stored-refresh", "Bearer", 3600, ""))

	headers, err := p.HandleChallenge(context.Background(), &Challenge{
		StatusCode: 401,
		Header:     http.Header{"Www-Authenticate": []string{`Bearer realm="mcp-server"`}},
	})
	require.NoError(t, err)
	assert.Equal(t, "Bearer recovered", headers["Authorization"])
}

func TestDiscoveryProviderChallengeWithoutRefreshToken(t *testing.T) {
	stub := newAuthServerStub(t)
	p := newDiscoveryTestProvider(t, stub, nil)

	_, err := p.HandleChallenge(context.Background(), &Challenge{
		StatusCode: 401,
		Header:     http.Header{"Www-Authenticate": []string{`Bearer realm="mcp-server"`}},
	})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "interactive authorization is required")
	assert.Equal(t, 0, stub.tokenCalls)
}

func TestDiscoveryProviderChallengeNon401(t *testing.T) {
	stub := newAuthServerStub(t)
	p := newDiscoveryTestProvider(t, stub, nil)

	_, err := p.HandleChallenge(context.Background(), &Challenge{StatusCode: 403})
	require.ErrorIs(t, err, ErrAuthenticationFailed)
	assert.Contains(t, err.Error(), "unexpected status code: 403")
}

func TestDiscoveryProviderHeadersFromStore(t *testing.T) {
	stub := newAuthServerStub(t)

	store := NewFileStore(filepath.Join(t.TempDir(), "credentials.json"))
	require.NoError(t, store.Save(stub.URL, &Credential{
		AuthType: "oauth",
		Tokens:   oauth.NewTokens("persisted", "", "Bearer", 0, ""),
	}))

	p := newDiscoveryTestProvider(t, stub, store)
	headers, err := p.GetHeaders(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer persisted", headers["Authorization"])
}
