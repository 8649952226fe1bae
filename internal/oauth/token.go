package oauth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// TokenExchangeParams holds the parameters for an authorization code
// exchange.
type TokenExchangeParams struct {
	Code         string
	RedirectURI  string
	ClientID     string
	ClientSecret string
	CodeVerifier string
	// Resource is an optional canonical RFC 8707 resource indicator.
	Resource string
	// AuthMethods is token_endpoint_auth_methods_supported from the server
	// metadata, used to pick how the client secret is presented.
	AuthMethods []string
}

// RefreshParams holds the parameters for a refresh-token grant.
type RefreshParams struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	Scope        string
	Resource     string
	AuthMethods  []string
}

// ExchangeCode exchanges an authorization code for tokens at the token
// endpoint using the authorization_code grant with PKCE.
func ExchangeCode(ctx context.Context, doer HTTPDoer, tokenEndpoint string, params TokenExchangeParams) (*Tokens, error) {
	form := url.Values{
		"grant_type":    {"authorization_code"},
		"code":          {params.Code},
		"redirect_uri":  {params.RedirectURI},
		"client_id":     {params.ClientID},
		"code_verifier": {params.CodeVerifier},
	}
	if params.Resource != "" {
		form.Set("resource", params.Resource)
	}
	return postTokenRequest(ctx, doer, tokenEndpoint, form, params.ClientSecret, params.AuthMethods)
}

// Refresh obtains a new token set using a refresh token. The returned Tokens
// keeps the old refresh token when the server does not rotate it.
func Refresh(ctx context.Context, doer HTTPDoer, tokenEndpoint string, params RefreshParams) (*Tokens, error) {
	form := url.Values{
		"grant_type":    {"refresh_token"},
		"client_id":     {params.ClientID},
		"refresh_token": {params.RefreshToken},
	}
	if params.Scope != "" {
		form.Set("scope", params.Scope)
	}
	if params.Resource != "" {
		form.Set("resource", params.Resource)
	}

	tokens, err := postTokenRequest(ctx, doer, tokenEndpoint, form, params.ClientSecret, params.AuthMethods)
	if err != nil {
		return nil, err
	}
	if tokens.RefreshToken == "" {
		refreshed := *tokens
		refreshed.RefreshToken = params.RefreshToken
		return &refreshed, nil
	}
	return tokens, nil
}

// resolveAuthMethod picks how client credentials are presented to the token
// endpoint based on what the server supports and whether a secret exists.
func resolveAuthMethod(supported []string, clientSecret string) string {
	if clientSecret == "" {
		return "none"
	}
	for _, m := range supported {
		switch m {
		case "client_secret_post", "client_secret_basic":
			return m
		}
	}
	return "client_secret_post"
}

func postTokenRequest(ctx context.Context, doer HTTPDoer, tokenEndpoint string, form url.Values, clientSecret string, authMethods []string) (*Tokens, error) {
	method := resolveAuthMethod(authMethods, clientSecret)
	if method == "client_secret_post" && clientSecret != "" {
		form.Set("client_secret", clientSecret)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	if method == "client_secret_basic" {
		req.SetBasicAuth(form.Get("client_id"), clientSecret)
	}

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("token request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read token response: %w", err)
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		var oauthErr struct {
			Error       string `json:"error"`
			Description string `json:"error_description"`
		}
		if json.Unmarshal(body, &oauthErr) == nil && oauthErr.Error != "" {
			return nil, fmt.Errorf("token error %q: %s", oauthErr.Error, oauthErr.Description)
		}
		return nil, fmt.Errorf("token endpoint returned %d: %s", resp.StatusCode, string(body))
	}

	var tr struct {
		AccessToken  string `json:"access_token"`
		TokenType    string `json:"token_type"`
		ExpiresIn    int    `json:"expires_in"`
		RefreshToken string `json:"refresh_token"`
		Scope        string `json:"scope"`
	}
	if err := json.Unmarshal(body, &tr); err != nil {
		return nil, fmt.Errorf("parse token response: %w", err)
	}
	if tr.AccessToken == "" {
		return nil, fmt.Errorf("token response missing access_token")
	}

	return NewTokens(tr.AccessToken, tr.RefreshToken, tr.TokenType, tr.ExpiresIn, tr.Scope), nil
}

// ClientRegistration is the stored shape of an RFC 7591 dynamic client
// registration response. Registration policy beyond storing and loading this
// shape is out of scope.
type ClientRegistration struct {
	ClientID     string `json:"client_id"`
	ClientSecret string `json:"client_secret,omitempty"`
}

type clientRegistrationRequest struct {
	ClientName              string   `json:"client_name"`
	RedirectURIs            []string `json:"redirect_uris"`
	GrantTypes              []string `json:"grant_types"`
	ResponseTypes           []string `json:"response_types"`
	TokenEndpointAuthMethod string   `json:"token_endpoint_auth_method"`
	Scope                   string   `json:"scope,omitempty"`
}

// RegisterClient performs RFC 7591 dynamic client registration for a public
// authorization-code client.
func RegisterClient(ctx context.Context, doer HTTPDoer, registrationEndpoint, clientName, redirectURI, scope string) (*ClientRegistration, error) {
	payload, err := json.Marshal(clientRegistrationRequest{
		ClientName:              clientName,
		RedirectURIs:            []string{redirectURI},
		GrantTypes:              []string{"authorization_code", "refresh_token"},
		ResponseTypes:           []string{"code"},
		TokenEndpointAuthMethod: "none",
		Scope:                   scope,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, registrationEndpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := doer.Do(req)
	if err != nil {
		return nil, fmt.Errorf("client registration request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("client registration failed with status %d: %s", resp.StatusCode, string(body))
	}

	var reg ClientRegistration
	if err := json.NewDecoder(resp.Body).Decode(&reg); err != nil {
		return nil, fmt.Errorf("parse registration response: %w", err)
	}
	if reg.ClientID == "" {
		return nil, fmt.Errorf("server returned empty client_id")
	}
	return &reg, nil
}
