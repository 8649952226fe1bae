package oauth

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
)

// HTTPDoer is the HTTP-call capability the discovery manager and token client
// consume. *http.Client satisfies it. Timeouts and cancellation belong to the
// implementation, not to this package.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DiscoveryManager locates and validates authorization server metadata for a
// protected resource, following the MCP conventions layered over RFC 9728 and
// RFC 8414. It holds no mutable state and is safe for concurrent use.
type DiscoveryManager struct {
	doer   HTTPDoer
	logger *slog.Logger
}

// DiscoveryOption configures a DiscoveryManager.
type DiscoveryOption func(*DiscoveryManager)

// WithHTTPDoer sets the HTTP-call capability.
func WithHTTPDoer(doer HTTPDoer) DiscoveryOption {
	return func(m *DiscoveryManager) {
		m.doer = doer
	}
}

// WithLogger sets the logger used for per-candidate debug logging.
func WithLogger(logger *slog.Logger) DiscoveryOption {
	return func(m *DiscoveryManager) {
		m.logger = logger
	}
}

// NewDiscoveryManager creates a discovery manager. By default it uses
// http.DefaultClient and slog.Default().
func NewDiscoveryManager(opts ...DiscoveryOption) *DiscoveryManager {
	m := &DiscoveryManager{
		doer:   http.DefaultClient,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// DiscoverServerMetadata locates the authorization server for a resource
// server, in this priority order:
//
//  1. If preconfiguredAuthServerURL is non-empty, discover directly against
//     it and return on success.
//  2. Otherwise fetch the protected resource metadata from the resource
//     server's well-known locations and follow its declared issuer.
//  3. Probe the issuer's well-known discovery URLs in priority order; the
//     first parseable document that passes the PKCE and authorization-code
//     grant checks wins.
//
// Failures are reported as *DiscoveryError. Nothing is retried or cached.
func (m *DiscoveryManager) DiscoverServerMetadata(ctx context.Context, resourceServerURL, preconfiguredAuthServerURL string) (*ServerMetadata, error) {
	if preconfiguredAuthServerURL != "" {
		return m.discoverFromIssuer(ctx, preconfiguredAuthServerURL)
	}

	prm, err := m.FetchProtectedResourceMetadata(ctx, resourceServerURL)
	if err != nil {
		return nil, err
	}
	issuer, err := resolveIssuer(prm)
	if err != nil {
		return nil, err
	}
	return m.discoverFromIssuer(ctx, issuer)
}

// DiscoverFromResourceMetadataURL runs discovery starting from an explicit
// protected resource metadata URL, typically the resource_metadata hint of a
// WWW-Authenticate challenge.
func (m *DiscoveryManager) DiscoverFromResourceMetadataURL(ctx context.Context, metadataURL string) (*ServerMetadata, error) {
	var prm ProtectedResourceMetadata
	if err := m.fetchJSON(ctx, metadataURL, &prm); err != nil {
		return nil, err
	}
	issuer, err := resolveIssuer(&prm)
	if err != nil {
		return nil, err
	}
	return m.discoverFromIssuer(ctx, issuer)
}

// FetchProtectedResourceMetadata fetches the RFC 9728 document from the
// resource server's well-known locations, trying the path-suffixed URL before
// the root one.
func (m *DiscoveryManager) FetchProtectedResourceMetadata(ctx context.Context, resourceServerURL string) (*ProtectedResourceMetadata, error) {
	candidates, err := resourceMetadataURLs(resourceServerURL)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, candidate := range candidates {
		var prm ProtectedResourceMetadata
		if err := m.fetchJSON(ctx, candidate, &prm); err != nil {
			m.logger.Debug("protected resource metadata fetch failed",
				"url", candidate,
				"error", err)
			lastErr = err
			continue
		}
		return &prm, nil
	}

	return nil, &DiscoveryError{
		Kind:   DiscoveryResourceMetadataNotFound,
		Detail: fmt.Sprintf("no protected resource metadata for %s", resourceServerURL),
		Err:    lastErr,
	}
}

// discoverFromIssuer probes the issuer's candidate discovery URLs in priority
// order and returns the first document that parses and passes validation.
func (m *DiscoveryManager) discoverFromIssuer(ctx context.Context, issuer string) (*ServerMetadata, error) {
	candidates, err := discoveryURLs(issuer)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for _, candidate := range candidates {
		var meta ServerMetadata
		if err := m.fetchJSON(ctx, candidate, &meta); err != nil {
			m.logger.Debug("server metadata fetch failed",
				"url", candidate,
				"error", err)
			lastErr = err
			continue
		}
		if err := validateServerMetadata(&meta); err != nil {
			// A document failing validation is rejected, not
			// silently accepted; the next candidate is tried.
			m.logger.Debug("server metadata rejected",
				"url", candidate,
				"error", err)
			lastErr = err
			continue
		}
		m.logger.Debug("discovered authorization server",
			"url", candidate,
			"issuer", meta.Issuer,
			"token_endpoint", meta.TokenEndpoint)
		return &meta, nil
	}

	return nil, &DiscoveryError{
		Kind:   DiscoveryServerDiscoveryFailed,
		Detail: fmt.Sprintf("no usable metadata for issuer %s", issuer),
		Err:    lastErr,
	}
}

// validateServerMetadata enforces the capability checks every accepted
// document must satisfy.
func validateServerMetadata(meta *ServerMetadata) error {
	if meta.TokenEndpoint == "" {
		return discoveryErrf(DiscoveryInvalidResponse, nil, "metadata missing token_endpoint")
	}
	if err := meta.ValidatePKCESupport(); err != nil {
		return err
	}
	if !meta.SupportsAuthorizationCodeGrant() {
		return ErrAuthCodeGrantNotSupported
	}
	return nil
}

// resolveIssuer extracts the authorization server location from a protected
// resource document: the declared issuer first, then the first entry of
// authorization_servers, then the origin of a declared authorization
// endpoint. A document that declares none of these means the resource
// requires no authentication.
func resolveIssuer(prm *ProtectedResourceMetadata) (string, error) {
	if prm.Issuer != "" {
		return prm.Issuer, nil
	}
	if len(prm.AuthorizationServers) > 0 {
		return prm.AuthorizationServers[0], nil
	}
	if prm.AuthorizationEndpoint != "" {
		u, err := url.Parse(prm.AuthorizationEndpoint)
		if err == nil && u.Scheme != "" && u.Host != "" {
			return u.Scheme + "://" + u.Host, nil
		}
	}
	return "", &DiscoveryError{
		Kind:   DiscoveryNoAuthRequired,
		Detail: "resource metadata declares no authorization server",
	}
}

// resourceMetadataURLs returns the RFC 9728 well-known locations for a
// resource server, path-suffixed variant first.
func resourceMetadataURLs(resourceServerURL string) ([]string, error) {
	u, err := url.Parse(resourceServerURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, discoveryErrf(DiscoveryInvalidConfiguration, err, "invalid resource server URL %q", resourceServerURL)
	}

	base := u.Scheme + "://" + u.Host + "/.well-known/oauth-protected-resource"
	path := strings.TrimSuffix(u.EscapedPath(), "/")
	if path == "" {
		return []string{base}, nil
	}
	return []string{base + path, base}, nil
}

// discoveryURLs generates the candidate well-known URLs for an issuer, in
// priority order. For an issuer with path components the well-known segment
// is first inserted before the path (RFC 8414 style), then the OIDC variant
// of the same, then appended after the path (OIDC style).
func discoveryURLs(issuer string) ([]string, error) {
	u, err := url.Parse(issuer)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, discoveryErrf(DiscoveryInvalidConfiguration, err, "invalid issuer URL %q", issuer)
	}

	origin := u.Scheme + "://" + u.Host
	path := strings.TrimSuffix(u.EscapedPath(), "/")

	if path == "" {
		return []string{
			origin + "/.well-known/oauth-authorization-server",
			origin + "/.well-known/openid-configuration",
		}, nil
	}
	return []string{
		origin + "/.well-known/oauth-authorization-server" + path,
		origin + "/.well-known/openid-configuration" + path,
		origin + path + "/.well-known/openid-configuration",
	}, nil
}

// fetchJSON fetches a well-known URL and decodes its body into out, mapping
// failures onto the discovery error taxonomy.
func (m *DiscoveryManager) fetchJSON(ctx context.Context, rawURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return discoveryErrf(DiscoveryInvalidConfiguration, err, "build request for %s", rawURL)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := m.doer.Do(req)
	if err != nil {
		return discoveryErrf(DiscoveryNetwork, err, "fetch %s", rawURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return &DiscoveryError{
			Kind:   DiscoveryHTTPError,
			Status: resp.StatusCode,
			Detail: rawURL,
		}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return discoveryErrf(DiscoveryInvalidResponse, err, "decode %s", rawURL)
	}
	return nil
}
