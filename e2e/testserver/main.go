// Package main implements an OAuth-protected MCP server for E2E testing.
// It mimics a Todoist-style MCP deployment: unauthenticated requests to
// /mcp get a 401 with a WWW-Authenticate resource_metadata hint, and the
// well-known endpoints serve enough metadata for a client to discover the
// authorization server and refresh its tokens.
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

const (
	// AccessToken is the only bearer token the server accepts on /mcp.
	AccessToken = "e2e-access-token"
	// RefreshToken is the only refresh token the token endpoint honors.
	RefreshToken = "e2e-refresh-token"
)

func main() {
	port := flag.Int("port", 8765, "listen port")
	flag.Parse()

	baseURL := fmt.Sprintf("http://127.0.0.1:%d", *port)

	mux := http.NewServeMux()
	registerWellKnown(mux, baseURL)
	mux.Handle("/mcp", &bearerMiddleware{
		next:    server.NewStreamableHTTPServer(newEchoServer()),
		baseURL: baseURL,
	})
	mux.HandleFunc("/token", tokenHandler)

	fmt.Fprintf(os.Stderr, "OAuth-protected MCP test server on %s\n", baseURL)
	fmt.Fprintf(os.Stderr, "POST /mcp -> 401 with resource_metadata=%s/.well-known/oauth-protected-resource/mcp\n", baseURL)

	if err := http.ListenAndServe(fmt.Sprintf("127.0.0.1:%d", *port), mux); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// newEchoServer builds the MCP server exposed behind the bearer check.
// Each tool echoes the received arguments as JSON so tests can assert
// exactly what was sent.
func newEchoServer() *server.MCPServer {
	s := server.NewMCPServer("protected-echo", "1.0.0")

	s.AddTool(
		mcp.NewTool("echo",
			mcp.WithDescription("Echoes all received params as JSON"),
			mcp.WithString("message", mcp.Description("Message to echo")),
		),
		echoHandler,
	)
	s.AddTool(
		mcp.NewTool("whoami",
			mcp.WithDescription("Returns the caller's token subject"),
		),
		func(_ context.Context, _ mcp.CallToolRequest) (*mcp.CallToolResult, error) {
			return mcp.NewToolResultText(`{"subject":"e2e-client"}`), nil
		},
	)
	return s
}

func echoHandler(_ context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	data, err := json.Marshal(request.GetArguments())
	if err != nil {
		return nil, fmt.Errorf("marshal args: %w", err)
	}
	return mcp.NewToolResultText(string(data)), nil
}

// bearerMiddleware rejects requests without the expected bearer token,
// answering with the challenge shape real MCP deployments use.
type bearerMiddleware struct {
	next    http.Handler
	baseURL string
}

func (m *bearerMiddleware) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	authz := r.Header.Get("Authorization")
	if strings.TrimPrefix(authz, "Bearer ") != AccessToken {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.Header().Set("WWW-Authenticate",
			fmt.Sprintf(`Bearer realm="mcp-server", resource_metadata="%s/.well-known/oauth-protected-resource/mcp"`, m.baseURL))
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"jsonrpc":"2.0","id":null,"error":{"code":-32600,"message":"Missing or invalid OAuth authorization"}}`))
		return
	}
	m.next.ServeHTTP(w, r)
}

// registerWellKnown serves the protected resource metadata (both the plain
// and the path-suffixed location) and the authorization server metadata.
// authorization_servers uses the object form some deployments emit.
func registerWellKnown(mux *http.ServeMux, baseURL string) {
	prm := func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"resource":              baseURL + "/mcp",
			"authorization_servers": []map[string]string{{"issuer": baseURL}},
		})
	}
	mux.HandleFunc("/.well-known/oauth-protected-resource", prm)
	mux.HandleFunc("/.well-known/oauth-protected-resource/mcp", prm)

	mux.HandleFunc("/.well-known/oauth-authorization-server", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"issuer":                           baseURL,
			"authorization_endpoint":           baseURL + "/authorize",
			"token_endpoint":                   baseURL + "/token",
			"grant_types_supported":            []string{"authorization_code", "refresh_token"},
			"code_challenge_methods_supported": []string{"S256"},
			"response_types_supported":         []string{"code"},
			"token_endpoint_auth_methods_supported": []string{"none"},
		})
	})
}

func tokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "bad form", http.StatusBadRequest)
		return
	}
	w.Header().Set("Content-Type", "application/json")

	if r.PostForm.Get("grant_type") != "refresh_token" || r.PostForm.Get("refresh_token") != RefreshToken {
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]string{"error": "invalid_grant"})
		return
	}
	json.NewEncoder(w).Encode(map[string]any{
		"access_token":  AccessToken,
		"refresh_token": RefreshToken,
		"token_type":    "Bearer",
		"expires_in":    3600,
	})
}
