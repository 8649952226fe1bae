package auth

import (
	"errors"
	"fmt"
)

// Authentication error taxonomy. Errors are surfaced to the caller, never
// swallowed; use errors.Is to classify.
var (
	// ErrInvalidCredentials means the provider holds no usable credential
	// and cannot obtain one.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAuthenticationFailed means a recovery attempt was not applicable
	// or did not succeed.
	ErrAuthenticationFailed = errors.New("authentication failed")

	// ErrMissingConfiguration means a required configuration field is
	// absent or malformed.
	ErrMissingConfiguration = errors.New("missing configuration")
)

// failedf wraps ErrAuthenticationFailed with a formatted message.
func failedf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrAuthenticationFailed, fmt.Sprintf(format, args...))
}

// missingf wraps ErrMissingConfiguration naming the offending field.
func missingf(field string) error {
	return fmt.Errorf("%w: %s", ErrMissingConfiguration, field)
}

// errUnexpectedStatus is the uniform failure for challenges that are not 401.
// A non-401 challenge is never treated as recoverable.
func errUnexpectedStatus(code int) error {
	return failedf("unexpected status code: %d", code)
}
