// Package oauth implements the protocol-level pieces of the MCP client
// authentication flow: PKCE code verifier/challenge generation (RFC 7636),
// RFC 8707 resource indicator canonicalization, WWW-Authenticate challenge
// parsing (RFC 6750), typed discovery documents (RFC 8414, RFC 9728, OpenID
// Connect), the authorization-server discovery algorithm, and the token
// endpoint client.
//
// The package performs no retries and sets no timeouts of its own; both are
// the responsibility of the HTTP client supplied by the caller.
package oauth
