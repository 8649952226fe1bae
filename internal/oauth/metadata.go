package oauth

import (
	"encoding/json"
	"net/url"
)

// ProtectedResourceMetadata is an RFC 9728 protected resource metadata
// document. It is produced by decoding a well-known discovery response and
// never mutated afterwards.
type ProtectedResourceMetadata struct {
	Resource              string                  `json:"resource,omitempty"`
	Issuer                string                  `json:"issuer,omitempty"`
	AuthorizationEndpoint string                  `json:"authorization_endpoint,omitempty"`
	AuthorizationServers  authorizationServerList `json:"authorization_servers,omitempty"`
	JWKSURI               string                  `json:"jwks_uri,omitempty"`
	ScopesSupported       []string                `json:"scopes_supported,omitempty"`
	BearerMethodsSupported []string               `json:"bearer_methods_supported,omitempty"`
	GrantTypesSupported   []string                `json:"grant_types_supported,omitempty"`
	CodeChallengeMethodsSupported     []string    `json:"code_challenge_methods_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string    `json:"token_endpoint_auth_methods_supported,omitempty"`
	ResourceDocumentation string                  `json:"resource_documentation,omitempty"`
}

// authorizationServerList decodes the authorization_servers field. RFC 9728
// specifies a list of issuer URL strings, but servers in the wild (the
// Todoist-style MCP servers among them) send objects with an "issuer" key;
// both forms are accepted.
type authorizationServerList []string

func (l *authorizationServerList) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make([]string, 0, len(raw))
	for _, item := range raw {
		var s string
		if err := json.Unmarshal(item, &s); err == nil {
			out = append(out, s)
			continue
		}
		var obj struct {
			Issuer string `json:"issuer"`
		}
		if err := json.Unmarshal(item, &obj); err != nil {
			return err
		}
		if obj.Issuer != "" {
			out = append(out, obj.Issuer)
		}
	}
	*l = out
	return nil
}

// ServerMetadata is an RFC 8414 authorization server metadata document,
// which is also the shape of an OpenID Connect discovery response.
type ServerMetadata struct {
	Issuer                            string   `json:"issuer"`
	AuthorizationEndpoint             string   `json:"authorization_endpoint,omitempty"`
	TokenEndpoint                     string   `json:"token_endpoint,omitempty"`
	JWKSURI                           string   `json:"jwks_uri,omitempty"`
	RegistrationEndpoint              string   `json:"registration_endpoint,omitempty"`
	RevocationEndpoint                string   `json:"revocation_endpoint,omitempty"`
	IntrospectionEndpoint             string   `json:"introspection_endpoint,omitempty"`
	ScopesSupported                   []string `json:"scopes_supported,omitempty"`
	ResponseTypesSupported            []string `json:"response_types_supported,omitempty"`
	ResponseModesSupported            []string `json:"response_modes_supported,omitempty"`
	GrantTypesSupported               []string `json:"grant_types_supported,omitempty"`
	TokenEndpointAuthMethodsSupported []string `json:"token_endpoint_auth_methods_supported,omitempty"`
	CodeChallengeMethodsSupported     []string `json:"code_challenge_methods_supported,omitempty"`
	AuthorizationRequestParametersSupported  []string `json:"authorization_request_parameters_supported,omitempty"`
	AuthorizationResponseParametersSupported []string `json:"authorization_response_parameters_supported,omitempty"`
}

// OIDCProviderMetadata is an OpenID Connect provider configuration: the OAuth
// server metadata plus OIDC-specific fields. Capability checks are inherited
// from the embedded ServerMetadata.
type OIDCProviderMetadata struct {
	ServerMetadata
	UserinfoEndpoint     string   `json:"userinfo_endpoint,omitempty"`
	SubjectTypesSupported []string `json:"subject_types_supported,omitempty"`
	ClaimsSupported      []string `json:"claims_supported,omitempty"`
	ClaimTypesSupported  []string `json:"claim_types_supported,omitempty"`
}

// ValidatePKCESupport fails unless the document advertises the S256 code
// challenge method. An absent or empty list is treated as no PKCE support.
func (m *ServerMetadata) ValidatePKCESupport() error {
	if !containsString(m.CodeChallengeMethodsSupported, CodeChallengeMethodS256) {
		return ErrPKCENotSupported
	}
	return nil
}

// SupportsAuthorizationCodeGrant reports whether grant_types_supported
// contains "authorization_code". An absent list means not supported; support
// is never assumed.
func (m *ServerMetadata) SupportsAuthorizationCodeGrant() bool {
	return containsString(m.GrantTypesSupported, "authorization_code")
}

// SupportsPublicClientAuth reports whether the token endpoint accepts
// unauthenticated ("none") clients.
func (m *ServerMetadata) SupportsPublicClientAuth() bool {
	return containsString(m.TokenEndpointAuthMethodsSupported, "none")
}

// AuthorizationServerURL returns the issuer as a URL, or nil when the issuer
// is absent or unparseable.
func (m *ServerMetadata) AuthorizationServerURL() *url.URL {
	return issuerURL(m.Issuer)
}

// ValidatePKCESupport on a protected resource document checks the resource's
// own advertised challenge methods.
func (m *ProtectedResourceMetadata) ValidatePKCESupport() error {
	if !containsString(m.CodeChallengeMethodsSupported, CodeChallengeMethodS256) {
		return ErrPKCENotSupported
	}
	return nil
}

// SupportsAuthorizationCodeGrant reports whether the resource document lists
// the authorization_code grant. Absent means not supported.
func (m *ProtectedResourceMetadata) SupportsAuthorizationCodeGrant() bool {
	return containsString(m.GrantTypesSupported, "authorization_code")
}

// SupportsPublicClientAuth reports whether "none" is an accepted token
// endpoint auth method.
func (m *ProtectedResourceMetadata) SupportsPublicClientAuth() bool {
	return containsString(m.TokenEndpointAuthMethodsSupported, "none")
}

// AuthorizationServerURL returns the declared issuer as a URL, or nil.
func (m *ProtectedResourceMetadata) AuthorizationServerURL() *url.URL {
	return issuerURL(m.Issuer)
}

func issuerURL(issuer string) *url.URL {
	if issuer == "" {
		return nil
	}
	u, err := url.Parse(issuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil
	}
	return u
}

func containsString(list []string, want string) bool {
	for _, s := range list {
		if s == want {
			return true
		}
	}
	return false
}
