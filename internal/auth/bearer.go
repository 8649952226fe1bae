package auth

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

// RefreshFunc obtains a replacement bearer token. A zero expiresAt means the
// new token does not expire.
type RefreshFunc func(ctx context.Context) (token string, expiresAt time.Time, err error)

// BearerProvider attaches a static or refreshable bearer token. A token
// expiring within oauth.RefreshThreshold is treated as already invalid, a
// safety margin against races with in-flight requests.
type BearerProvider struct {
	refresh RefreshFunc

	mu        sync.Mutex
	sf        singleflight.Group
	token     string
	expiresAt time.Time
}

// BearerOption configures a BearerProvider.
type BearerOption func(*BearerProvider)

// WithExpiry sets the token's expiry time.
func WithExpiry(expiresAt time.Time) BearerOption {
	return func(p *BearerProvider) {
		p.expiresAt = expiresAt
	}
}

// WithRefreshFunc sets the handler invoked to replace an expiring token.
func WithRefreshFunc(fn RefreshFunc) BearerOption {
	return func(p *BearerProvider) {
		p.refresh = fn
	}
}

// NewBearerProvider creates a bearer token provider.
func NewBearerProvider(token string, opts ...BearerOption) *BearerProvider {
	p := &BearerProvider{token: token}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *BearerProvider) Scheme() Scheme { return SchemeBearer }

// GetHeaders returns the Authorization header, refreshing first when the
// token is expiring and a refresh handler exists. Without a refresh handler
// the stale header is still returned; only HandleChallenge fails in that
// case.
func (p *BearerProvider) GetHeaders(ctx context.Context) (map[string]string, error) {
	if !p.IsValid() && p.refresh != nil {
		if err := p.doRefresh(ctx); err != nil {
			return nil, err
		}
	}

	p.mu.Lock()
	token := p.token
	p.mu.Unlock()

	if token == "" {
		return nil, ErrInvalidCredentials
	}
	return map[string]string{"Authorization": "Bearer " + token}, nil
}

// IsValid reports whether the token exists and is not expiring within the
// refresh threshold.
func (p *BearerProvider) IsValid() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.token == "" {
		return false
	}
	if p.expiresAt.IsZero() {
		return true
	}
	return time.Now().Add(oauth.RefreshThreshold).Before(p.expiresAt)
}

// HandleChallenge refreshes the token on a 401. It fails when no refresh
// handler is configured or the challenge is not a 401.
func (p *BearerProvider) HandleChallenge(ctx context.Context, ch *Challenge) (map[string]string, error) {
	if ch.StatusCode != 401 {
		return nil, errUnexpectedStatus(ch.StatusCode)
	}
	if p.refresh == nil {
		return nil, failedf("bearer token rejected and no refresh handler is configured")
	}
	if err := p.doRefresh(ctx); err != nil {
		return nil, err
	}
	return p.GetHeaders(ctx)
}

// doRefresh runs the refresh handler, deduplicating concurrent callers: all
// callers during an in-flight refresh observe that single attempt's result.
func (p *BearerProvider) doRefresh(ctx context.Context) error {
	_, err, _ := p.sf.Do("refresh", func() (any, error) {
		token, expiresAt, err := p.refresh(ctx)
		if err != nil {
			return nil, failedf("token refresh: %v", err)
		}
		p.mu.Lock()
		p.token = token
		p.expiresAt = expiresAt
		p.mu.Unlock()
		return nil, nil
	})
	return err
}

// Cleanup discards the in-memory token.
func (p *BearerProvider) Cleanup() {
	p.mu.Lock()
	p.token = ""
	p.expiresAt = time.Time{}
	p.mu.Unlock()
}
