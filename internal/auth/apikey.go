package auth

import (
	"context"
	"fmt"
)

// DefaultAPIKeyHeader is the header used when none is configured.
const DefaultAPIKeyHeader = "X-API-Key"

// APIKeyProvider attaches a static API key under a configurable header, with
// an optional value prefix. It is stateless and always valid; an API key
// cannot self-heal, so every challenge fails.
type APIKeyProvider struct {
	key    string
	header string
	prefix string
}

// NewAPIKeyProvider creates an API key provider. headerName defaults to
// DefaultAPIKeyHeader; prefix, when non-empty, is prepended verbatim to the
// key ("Bearer " would mimic a bearer token).
func NewAPIKeyProvider(key, headerName, prefix string) *APIKeyProvider {
	if headerName == "" {
		headerName = DefaultAPIKeyHeader
	}
	return &APIKeyProvider{key: key, header: headerName, prefix: prefix}
}

func (p *APIKeyProvider) Scheme() Scheme { return SchemeAPIKey }

func (p *APIKeyProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	if p.key == "" {
		return nil, ErrInvalidCredentials
	}
	return map[string]string{p.header: p.prefix + p.key}, nil
}

func (p *APIKeyProvider) IsValid() bool { return p.key != "" }

func (p *APIKeyProvider) HandleChallenge(_ context.Context, ch *Challenge) (map[string]string, error) {
	return nil, fmt.Errorf("%w: API key was rejected and cannot be refreshed", ErrInvalidCredentials)
}

func (p *APIKeyProvider) Cleanup() { p.key = "" }
