package oauth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestExchangeCode_Success(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.Form.Get("grant_type"); got != "authorization_code" {
			t.Errorf("grant_type = %q, want authorization_code", got)
		}
		if got := r.Form.Get("code_verifier"); got != "verifier-1" {
			t.Errorf("code_verifier = %q, want verifier-1", got)
		}
		if got := r.Form.Get("resource"); got != "https://mcp.example.com" {
			t.Errorf("resource = %q, want canonical resource indicator", got)
		}
		json.NewEncoder(w).Encode(map[string]any{
			"access_token":  "access-123",
			"token_type":    "Bearer",
			"expires_in":    3600,
			"refresh_token": "refresh-456",
		})
	}))
	defer ts.Close()

	tokens, err := ExchangeCode(context.Background(), ts.Client(), ts.URL, TokenExchangeParams{
		Code:         "test-code",
		RedirectURI:  "http://127.0.0.1:9999/callback",
		ClientID:     "client-1",
		CodeVerifier: "verifier-1",
		Resource:     "https://mcp.example.com",
	})
	if err != nil {
		t.Fatalf("ExchangeCode() error = %v", err)
	}
	if tokens.AccessToken != "access-123" {
		t.Errorf("access token = %q", tokens.AccessToken)
	}
	if tokens.RefreshToken != "refresh-456" {
		t.Errorf("refresh token = %q", tokens.RefreshToken)
	}
	if tokens.ExpiresAt.IsZero() {
		t.Error("ExpiresAt not computed from expires_in")
	}
}

func TestExchangeCode_OAuthErrorBody(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{
			"error":             "invalid_grant",
			"error_description": "code expired",
		})
	}))
	defer ts.Close()

	_, err := ExchangeCode(context.Background(), ts.Client(), ts.URL, TokenExchangeParams{Code: "x"})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "invalid_grant") {
		t.Errorf("error = %v, want invalid_grant in message", err)
	}
}

func TestRefresh_KeepsOldRefreshToken(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseForm()
		if got := r.Form.Get("grant_type"); got != "refresh_token" {
			t.Errorf("grant_type = %q, want refresh_token", got)
		}
		if got := r.Form.Get("refresh_token"); got != "old-refresh" {
			t.Errorf("refresh_token = %q, want old-refresh", got)
		}
		// Server does not rotate the refresh token.
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": "new-access",
			"token_type":   "Bearer",
			"expires_in":   60,
		})
	}))
	defer ts.Close()

	tokens, err := Refresh(context.Background(), ts.Client(), ts.URL, RefreshParams{
		ClientID:     "client-1",
		RefreshToken: "old-refresh",
	})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if tokens.AccessToken != "new-access" {
		t.Errorf("access token = %q", tokens.AccessToken)
	}
	if tokens.RefreshToken != "old-refresh" {
		t.Errorf("refresh token = %q, want the old one preserved", tokens.RefreshToken)
	}
}

func TestRefresh_ClientSecretBasic(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "client-1" || pass != "s3cret" {
			t.Errorf("basic auth = %q/%q/%v, want client-1/s3cret", user, pass, ok)
		}
		r.ParseForm()
		if r.Form.Get("client_secret") != "" {
			t.Error("client_secret leaked into the form body with client_secret_basic")
		}
		json.NewEncoder(w).Encode(map[string]any{"access_token": "a", "token_type": "Bearer"})
	}))
	defer ts.Close()

	_, err := Refresh(context.Background(), ts.Client(), ts.URL, RefreshParams{
		ClientID:     "client-1",
		ClientSecret: "s3cret",
		RefreshToken: "r",
		AuthMethods:  []string{"client_secret_basic"},
	})
	if err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
}

func TestResolveAuthMethod(t *testing.T) {
	tests := []struct {
		name      string
		supported []string
		secret    string
		want      string
	}{
		{name: "no secret", supported: []string{"client_secret_basic"}, secret: "", want: "none"},
		{name: "server prefers basic", supported: []string{"client_secret_basic", "client_secret_post"}, secret: "s", want: "client_secret_basic"},
		{name: "server prefers post", supported: []string{"client_secret_post"}, secret: "s", want: "client_secret_post"},
		{name: "no supported list defaults to post", supported: nil, secret: "s", want: "client_secret_post"},
		{name: "unknown methods skipped", supported: []string{"private_key_jwt"}, secret: "s", want: "client_secret_post"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := resolveAuthMethod(tt.supported, tt.secret); got != tt.want {
				t.Errorf("resolveAuthMethod() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestRegisterClient(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req clientRegistrationRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode registration request: %v", err)
		}
		if req.TokenEndpointAuthMethod != "none" {
			t.Errorf("token_endpoint_auth_method = %q, want none", req.TokenEndpointAuthMethod)
		}
		w.WriteHeader(http.StatusCreated)
		json.NewEncoder(w).Encode(ClientRegistration{ClientID: "generated-id"})
	}))
	defer ts.Close()

	reg, err := RegisterClient(context.Background(), ts.Client(), ts.URL, "mcpauth", "http://127.0.0.1/callback", "mcp")
	if err != nil {
		t.Fatalf("RegisterClient() error = %v", err)
	}
	if reg.ClientID != "generated-id" {
		t.Errorf("client id = %q", reg.ClientID)
	}
}
