package oauth

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
)

// pkceVerifierBytes is the number of random bytes for the PKCE code verifier.
// 32 bytes (256 bits) base64url-encodes to a 43-character verifier, the RFC
// 7636 minimum length.
const pkceVerifierBytes = 32

// CodeChallengeMethodS256 is the only challenge method this client uses;
// "plain" is not allowed in OAuth 2.1.
const CodeChallengeMethodS256 = "S256"

// PKCEPair holds a PKCE code verifier and its derived challenge. The two are
// never set independently: the challenge is always the S256 digest of the
// verifier.
type PKCEPair struct {
	// CodeVerifier is the random secret, 43-128 characters from the
	// base64url alphabet. It is sent only to the token endpoint.
	CodeVerifier string

	// CodeChallenge is base64url(SHA256(CodeVerifier)) without padding,
	// sent in the authorization request.
	CodeChallenge string

	// CodeChallengeMethod is always "S256".
	CodeChallengeMethod string
}

// GeneratePKCE generates a new PKCE code verifier and challenge.
// It fails only if the system RNG fails.
func GeneratePKCE() (*PKCEPair, error) {
	buf := make([]byte, pkceVerifierBytes)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate PKCE verifier: %w", err)
	}

	verifier := base64.RawURLEncoding.EncodeToString(buf)
	return &PKCEPair{
		CodeVerifier:        verifier,
		CodeChallenge:       ComputeCodeChallenge(verifier),
		CodeChallengeMethod: CodeChallengeMethodS256,
	}, nil
}

// ComputeCodeChallenge returns the S256 code challenge for a verifier:
// base64url(SHA256(verifier)) with no padding.
func ComputeCodeChallenge(verifier string) string {
	sum := sha256.Sum256([]byte(verifier))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}

// ValidateCodeVerifier reports whether verifier hashes to challenge.
// It is a pure function with no side effects.
func ValidateCodeVerifier(verifier, challenge string) bool {
	computed := ComputeCodeChallenge(verifier)
	return subtle.ConstantTimeCompare([]byte(computed), []byte(challenge)) == 1
}

// GenerateState returns a random state parameter for linking an authorization
// response back to its request. 32 bytes encodes to 43 base64url characters.
func GenerateState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate state: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
