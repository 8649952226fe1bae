package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mcpkit/mcpauth/internal/auth"
)

// jsonrpcHandler answers every POST with a JSON-RPC result echoing the method.
func jsonrpcHandler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		result, _ := json.Marshal(map[string]any{
			"protocolVersion": "2024-11-05",
			"capabilities":    map[string]any{},
			"serverInfo":      map[string]string{"name": "stub"},
		})
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JSONRPCResponse{JSONRPC: "2.0", ID: req.ID, Result: result})
	}
}

func TestHTTPTransportPlainJSON(t *testing.T) {
	srv := httptest.NewServer(jsonrpcHandler(t))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL)
	client := NewClient(transport)
	defer client.Close()

	result, err := client.Initialize(context.Background(), "test", "dev")
	if err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if result.ServerInfo.Name != "stub" {
		t.Errorf("ServerInfo.Name = %q, want %q", result.ServerInfo.Name, "stub")
	}
}

func TestHTTPTransportSSEResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		json.NewDecoder(r.Body).Decode(&req)

		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprintf(w, "event: message\n")
		fmt.Fprintf(w, "data: {\"jsonrpc\":\"2.0\",\"id\":%d,\"result\":{\"tools\":[{\"name\":\"echo\",\"inputSchema\":{}}]}}\n\n", req.ID)
	}))
	defer srv.Close()

	client := NewClient(NewHTTPTransport(srv.URL))
	defer client.Close()

	tools, err := client.ListTools(context.Background())
	if err != nil {
		t.Fatalf("ListTools failed: %v", err)
	}
	if len(tools) != 1 || tools[0].Name != "echo" {
		t.Errorf("tools = %+v, want one tool named echo", tools)
	}
}

func TestHTTPTransportSessionID(t *testing.T) {
	var gotSession string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotSession = r.Header.Get("Mcp-Session-Id")
		w.Header().Set("Mcp-Session-Id", "sess-1")
		jsonrpcHandler(t)(w, r)
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL)
	client := NewClient(transport)
	defer client.Close()

	if _, err := client.Initialize(context.Background(), "test", "dev"); err != nil {
		t.Fatalf("first request failed: %v", err)
	}
	// The initialized notification reuses the captured session.
	if gotSession != "sess-1" {
		t.Errorf("session id on followup = %q, want %q", gotSession, "sess-1")
	}
}

func TestHTTPTransportAttachesProviderHeaders(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		jsonrpcHandler(t)(w, r)
	}))
	defer srv.Close()

	transport := NewHTTPTransport(srv.URL, WithAuthProvider(auth.NewBearerProvider("tok")))
	client := NewClient(transport)
	defer client.Close()

	if _, err := client.Initialize(context.Background(), "test", "dev"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if gotAuth != "Bearer tok" {
		t.Errorf("Authorization = %q, want %q", gotAuth, "Bearer tok")
	}
}

// A 401 is handed to the provider and the request retried once with the
// recovered headers.
func TestHTTPTransportRecoversFrom401(t *testing.T) {
	var requests int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
		if r.Header.Get("Authorization") != "Bearer fresh" {
			w.Header().Set("WWW-Authenticate", `Bearer realm="mcp-server"`)
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		jsonrpcHandler(t)(w, r)
	}))
	defer srv.Close()

	provider := auth.NewBearerProvider("stale",
		auth.WithRefreshFunc(func(ctx context.Context) (string, time.Time, error) {
			return "fresh", time.Time{}, nil
		}))

	client := NewClient(NewHTTPTransport(srv.URL, WithAuthProvider(provider)))
	defer client.Close()

	if _, err := client.Initialize(context.Background(), "test", "dev"); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if requests < 2 {
		t.Errorf("requests = %d, want at least the 401 and the retry", requests)
	}
}

func TestHTTPTransportUnrecoverable401(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	// No refresh handler, so the challenge cannot be answered.
	client := NewClient(NewHTTPTransport(srv.URL, WithAuthProvider(auth.NewBearerProvider("rejected"))))
	defer client.Close()

	_, err := client.Initialize(context.Background(), "test", "dev")
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "authentication challenge") {
		t.Errorf("error = %v, want an authentication challenge failure", err)
	}
}

func TestHTTPTransportServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req JSONRPCRequest
		json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(JSONRPCResponse{
			JSONRPC: "2.0", ID: req.ID,
			Error: &JSONRPCError{Code: -32601, Message: "method not found"},
		})
	}))
	defer srv.Close()

	client := NewClient(NewHTTPTransport(srv.URL))
	defer client.Close()

	_, err := client.CallTool(context.Background(), "nope", nil)
	if err == nil || !strings.Contains(err.Error(), "method not found") {
		t.Errorf("err = %v, want server error surfaced", err)
	}
}
