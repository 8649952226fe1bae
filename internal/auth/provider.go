package auth

import (
	"context"
	"io"
	"net/http"
)

// Scheme identifies a provider's wire scheme. It never changes after the
// provider is constructed. Values outside the predefined constants act as
// custom schemes.
type Scheme string

const (
	SchemeBearer Scheme = "bearer"
	SchemeAPIKey Scheme = "apikey"
	SchemeBasic  Scheme = "basic"
	SchemeOAuth  Scheme = "oauth"
)

// Challenge carries what a provider needs to decide whether an authentication
// failure is recoverable. The transport collaborator produces one for any
// non-2xx response; providers only ever attempt recovery on status 401.
type Challenge struct {
	StatusCode int
	// Header holds the response headers; http.Header lookups are
	// case-insensitive.
	Header http.Header
	// Body is the response body, if the transport captured it.
	Body []byte
	// ServerInfo names the server for error messages.
	ServerInfo string
}

// ChallengeFromResponse builds a Challenge from an HTTP response, reading at
// most maxChallengeBody bytes of the body. The response body is left drained
// but not closed.
func ChallengeFromResponse(resp *http.Response, serverInfo string) *Challenge {
	ch := &Challenge{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		ServerInfo: serverInfo,
	}
	if resp.Body != nil {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBody))
		if err == nil {
			ch.Body = body
		}
	}
	return ch
}

const maxChallengeBody = 64 * 1024

// Provider is the capability interface shared by all authentication schemes.
type Provider interface {
	// Scheme returns the provider's wire scheme, constant for its lifetime.
	Scheme() Scheme

	// GetHeaders returns the headers to attach to an outgoing request,
	// refreshing credentials first when the provider can and must. It
	// fails when no usable credential exists.
	GetHeaders(ctx context.Context) (map[string]string, error)

	// IsValid reports whether the current credential is usable without
	// recovery. It never fails; a credential expiring within the refresh
	// threshold counts as invalid.
	IsValid() bool

	// HandleChallenge attempts to recover from an authentication failure
	// and returns fresh headers for the retry. Only a 401 challenge is
	// ever recoverable; any other status fails immediately.
	HandleChallenge(ctx context.Context, ch *Challenge) (map[string]string, error)

	// Cleanup discards in-memory secrets. It does not touch persisted
	// credentials, which belong to the storage collaborator.
	Cleanup()
}
