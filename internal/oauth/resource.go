package oauth

import (
	"net/url"
	"strings"
)

// CanonicalizeResourceURI canonicalizes an RFC 8707 resource indicator so that
// equivalent URIs compare equal byte-for-byte. Rules, in order: lowercase the
// scheme and host, strip the scheme's default port (443 for https, 80 for
// http), strip a single trailing slash when the path is otherwise empty, and
// preserve path case and query. The result is what gets sent verbatim to the
// authorization server as the "resource" parameter.
//
// It returns a *ResourceIndicatorError when the input has no scheme, contains
// a fragment, or is otherwise not a valid absolute URI.
func CanonicalizeResourceURI(raw string) (string, error) {
	if strings.Contains(raw, "#") {
		return "", &ResourceIndicatorError{URI: raw, Reason: "must not contain a fragment"}
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", &ResourceIndicatorError{URI: raw, Reason: "not a valid URI"}
	}
	if u.Scheme == "" {
		return "", &ResourceIndicatorError{URI: raw, Reason: "missing scheme"}
	}
	if u.Host == "" {
		return "", &ResourceIndicatorError{URI: raw, Reason: "not an absolute URI"}
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())

	if port := u.Port(); port != "" && port != defaultPort(scheme) {
		host += ":" + port
	}

	path := u.EscapedPath()
	if path == "/" {
		path = ""
	}

	canonical := scheme + "://" + host + path
	if u.RawQuery != "" {
		canonical += "?" + u.RawQuery
	}
	return canonical, nil
}

// defaultPort returns the port implied by a scheme, or "" if none.
func defaultPort(scheme string) string {
	switch scheme {
	case "https":
		return "443"
	case "http":
		return "80"
	default:
		return ""
	}
}

// IsValidResourceURI reports whether raw canonicalizes successfully.
func IsValidResourceURI(raw string) bool {
	_, err := CanonicalizeResourceURI(raw)
	return err == nil
}

// ResourceParameter percent-encodes a canonical resource URI per RFC 3986 for
// use as a form-urlencoded OAuth parameter value (":" becomes "%3A", "/"
// becomes "%2F", and so on).
func ResourceParameter(canonical string) string {
	return url.QueryEscape(canonical)
}
