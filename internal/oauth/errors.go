package oauth

import (
	"errors"
	"fmt"
)

// Metadata capability errors. A discovery document that does not advertise
// S256 PKCE or the authorization_code grant is rejected outright.
var (
	ErrPKCENotSupported          = errors.New("server does not support S256 code challenges")
	ErrAuthCodeGrantNotSupported = errors.New("server does not support the authorization_code grant")
)

// ResourceIndicatorError reports an invalid RFC 8707 resource indicator.
type ResourceIndicatorError struct {
	URI    string
	Reason string
}

func (e *ResourceIndicatorError) Error() string {
	return fmt.Sprintf("invalid resource URI %q: %s", e.URI, e.Reason)
}

// DiscoveryErrorKind classifies authorization-server discovery failures.
type DiscoveryErrorKind int

const (
	// DiscoveryNetwork indicates the HTTP collaborator failed to complete
	// a request (including context cancellation).
	DiscoveryNetwork DiscoveryErrorKind = iota
	// DiscoveryInvalidResponse indicates a response that could not be
	// decoded as the expected document.
	DiscoveryInvalidResponse
	// DiscoveryHTTPError indicates a non-200 status from a well-known
	// endpoint.
	DiscoveryHTTPError
	// DiscoveryNoAuthRequired indicates the protected resource declares
	// that no authentication is needed.
	DiscoveryNoAuthRequired
	// DiscoveryResourceMetadataNotFound indicates no protected resource
	// metadata could be located for the resource server.
	DiscoveryResourceMetadataNotFound
	// DiscoveryServerDiscoveryFailed indicates every candidate well-known
	// URL was tried and none produced a usable document.
	DiscoveryServerDiscoveryFailed
	// DiscoveryInvalidConfiguration indicates the discovery inputs
	// themselves were unusable (e.g. an unparseable issuer URL).
	DiscoveryInvalidConfiguration
)

func (k DiscoveryErrorKind) String() string {
	switch k {
	case DiscoveryNetwork:
		return "network error"
	case DiscoveryInvalidResponse:
		return "invalid response"
	case DiscoveryHTTPError:
		return "http error"
	case DiscoveryNoAuthRequired:
		return "no authentication required"
	case DiscoveryResourceMetadataNotFound:
		return "protected resource metadata not found"
	case DiscoveryServerDiscoveryFailed:
		return "authorization server discovery failed"
	case DiscoveryInvalidConfiguration:
		return "invalid configuration"
	default:
		return "discovery error"
	}
}

// DiscoveryError is the failure taxonomy of the discovery manager. None of
// these are retried automatically; retry policy belongs to the caller.
type DiscoveryError struct {
	Kind   DiscoveryErrorKind
	Status int // HTTP status for DiscoveryHTTPError, zero otherwise
	Detail string
	Err    error
}

func (e *DiscoveryError) Error() string {
	msg := e.Kind.String()
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *DiscoveryError) Unwrap() error { return e.Err }

// Is matches any *DiscoveryError of the same kind, so callers can test
// errors.Is(err, &DiscoveryError{Kind: DiscoveryNoAuthRequired}).
func (e *DiscoveryError) Is(target error) bool {
	t, ok := target.(*DiscoveryError)
	return ok && t.Kind == e.Kind
}

func discoveryErrf(kind DiscoveryErrorKind, err error, format string, args ...any) *DiscoveryError {
	return &DiscoveryError{Kind: kind, Detail: fmt.Sprintf(format, args...), Err: err}
}
