// Package auth provides pluggable client-side authentication for MCP and
// HTTP API clients. Each provider implements a shared capability interface:
// it produces request headers, reports whether its credential is still
// usable, and attempts recovery when the server answers 401.
//
// Six schemes are supported: static bearer token, API key, HTTP Basic,
// OAuth2 resource/refresh-token, OAuth2 with PKCE, and OAuth2 with automatic
// authorization-server discovery. Providers are built directly, from a
// configuration map via NewProvider, or from environment variables via
// NewProviderFromEnv.
//
// Every provider is an independently synchronized unit: token refresh is
// serialized per instance (single-flight), so concurrent callers observe the
// result of one refresh rather than racing N of them against a single-use
// refresh token.
package auth
