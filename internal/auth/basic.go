package auth

import (
	"context"
	"encoding/base64"
)

// BasicProvider attaches HTTP Basic credentials. It is stateless: there is no
// refresh concept, so a 401 simply gets the same header again and any other
// status fails.
type BasicProvider struct {
	username string
	password string
}

// NewBasicProvider creates an HTTP Basic provider.
func NewBasicProvider(username, password string) *BasicProvider {
	return &BasicProvider{username: username, password: password}
}

func (p *BasicProvider) Scheme() Scheme { return SchemeBasic }

func (p *BasicProvider) GetHeaders(_ context.Context) (map[string]string, error) {
	if p.username == "" && p.password == "" {
		return nil, ErrInvalidCredentials
	}
	encoded := base64.StdEncoding.EncodeToString([]byte(p.username + ":" + p.password))
	return map[string]string{"Authorization": "Basic " + encoded}, nil
}

func (p *BasicProvider) IsValid() bool {
	return p.username != "" || p.password != ""
}

func (p *BasicProvider) HandleChallenge(ctx context.Context, ch *Challenge) (map[string]string, error) {
	if ch.StatusCode != 401 {
		return nil, errUnexpectedStatus(ch.StatusCode)
	}
	return p.GetHeaders(ctx)
}

func (p *BasicProvider) Cleanup() {
	p.username = ""
	p.password = ""
}
