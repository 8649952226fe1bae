package oauth

import (
	"net/http"
	"strings"
)

// ParseWWWAuthenticate parses a WWW-Authenticate header value into the
// parameters of its OAuth-family challenges. The header may carry several
// challenges ("Basic realm=..., Bearer resource_metadata=..."); parameters
// are recorded only while inside a Bearer or OAuth challenge (case
// insensitive), and the last occurrence of a key wins. Basic, Digest and
// other schemes are scanned past but their parameters are discarded.
//
// This is a single-pass scanner, not a general structured-field parser. It
// accepts quoted and unquoted values and tolerates malformed or partial
// input; an empty or schemeless header yields an empty map.
func ParseWWWAuthenticate(header string) map[string]string {
	params := make(map[string]string)
	scheme := ""

	s := strings.TrimSpace(header)
	for s != "" {
		tok, rest := scanToken(s)
		if tok == "" {
			break
		}

		rest = strings.TrimSpace(rest)
		if !strings.HasPrefix(rest, "=") {
			// A bare token starts the next challenge.
			scheme = tok
			s = strings.TrimSpace(strings.TrimPrefix(rest, ","))
			continue
		}

		value, remainder := scanValue(strings.TrimSpace(rest[1:]))
		if isOAuthScheme(scheme) {
			params[strings.ToLower(tok)] = value
		}

		remainder = strings.TrimSpace(remainder)
		s = strings.TrimSpace(strings.TrimPrefix(remainder, ","))
	}

	return params
}

// ParseWWWAuthenticateFromResponse parses the WWW-Authenticate header of a
// response, returning an empty map when the header is absent.
func ParseWWWAuthenticateFromResponse(resp *http.Response) map[string]string {
	if resp == nil {
		return map[string]string{}
	}
	return ParseWWWAuthenticate(resp.Header.Get("WWW-Authenticate"))
}

func isOAuthScheme(scheme string) bool {
	return strings.EqualFold(scheme, "Bearer") || strings.EqualFold(scheme, "OAuth")
}

// scanToken reads the next token (stops at whitespace, comma or equals).
func scanToken(s string) (string, string) {
	i := 0
	for i < len(s) && s[i] != ' ' && s[i] != '\t' && s[i] != ',' && s[i] != '=' {
		i++
	}
	return s[:i], s[i:]
}

// scanValue reads a parameter value, quoted or bare.
func scanValue(s string) (string, string) {
	if strings.HasPrefix(s, `"`) {
		return scanQuoted(s)
	}
	i := 0
	for i < len(s) && s[i] != ',' && s[i] != ' ' && s[i] != '\t' {
		i++
	}
	return s[:i], s[i:]
}

// scanQuoted reads a double-quoted string, honoring backslash escapes. An
// unterminated quote consumes the rest of the input.
func scanQuoted(s string) (string, string) {
	var b strings.Builder
	i := 1
	for i < len(s) {
		switch {
		case s[i] == '\\' && i+1 < len(s):
			b.WriteByte(s[i+1])
			i += 2
		case s[i] == '"':
			return b.String(), s[i+1:]
		default:
			b.WriteByte(s[i])
			i++
		}
	}
	return b.String(), ""
}
