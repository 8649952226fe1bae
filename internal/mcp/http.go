package mcp

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/mcpkit/mcpauth/internal/auth"
)

// HTTPTransport implements the Transport interface using Streamable HTTP.
// It sends JSON-RPC requests as HTTP POST requests and handles both
// application/json and text/event-stream responses.
//
// When an auth.Provider is attached, its headers are added to every request
// and a 401 response is handed to the provider for recovery; the request is
// retried once with the recovered headers.
type HTTPTransport struct {
	URL        string
	provider   auth.Provider
	httpClient *http.Client
	sessionID  string
}

// HTTPOption configures an HTTPTransport.
type HTTPOption func(*HTTPTransport)

// WithAuthProvider attaches an authentication provider to the transport.
func WithAuthProvider(p auth.Provider) HTTPOption {
	return func(t *HTTPTransport) {
		t.provider = p
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(c *http.Client) HTTPOption {
	return func(t *HTTPTransport) {
		t.httpClient = c
	}
}

// NewHTTPTransport creates a new HTTPTransport targeting the given URL.
func NewHTTPTransport(url string, opts ...HTTPOption) *HTTPTransport {
	t := &HTTPTransport{
		URL:        url,
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Send sends a JSON-RPC request over HTTP and returns the response.
func (t *HTTPTransport) Send(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	headers := map[string]string{}
	if t.provider != nil {
		headers, err = t.provider.GetHeaders(ctx)
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			// No tokens yet. Send unauthenticated and let the 401
			// challenge drive recovery.
			headers = map[string]string{}
		case err != nil:
			return nil, fmt.Errorf("authentication headers: %w", err)
		}
	}

	resp, err := t.post(ctx, body, headers)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode == http.StatusUnauthorized && t.provider != nil {
		challenge := auth.ChallengeFromResponse(resp, t.URL)
		resp.Body.Close()

		recovered, err := t.provider.HandleChallenge(ctx, challenge)
		if err != nil {
			return nil, fmt.Errorf("authentication challenge: %w", err)
		}
		resp, err = t.post(ctx, body, recovered)
		if err != nil {
			return nil, err
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/event-stream") {
		return t.parseSSE(resp.Body, req.ID)
	}

	// Default: parse as application/json.
	var rpcResp JSONRPCResponse
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &rpcResp, nil
}

// post issues one HTTP POST with the given headers. The caller owns the
// response body.
func (t *HTTPTransport) post(ctx context.Context, body []byte, headers map[string]string) (*http.Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, t.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create http request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json, text/event-stream")
	for name, value := range headers {
		httpReq.Header.Set(name, value)
	}
	if t.sessionID != "" {
		httpReq.Header.Set("Mcp-Session-Id", t.sessionID)
	}

	resp, err := t.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}

	// Capture session ID from the response if present.
	if sid := resp.Header.Get("Mcp-Session-Id"); sid != "" {
		t.sessionID = sid
	}
	return resp, nil
}

// parseSSE reads an SSE stream and extracts the JSON-RPC response matching the
// given request ID.
func (t *HTTPTransport) parseSSE(r io.Reader, requestID int) (*JSONRPCResponse, error) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")

		var rpcResp JSONRPCResponse
		if err := json.Unmarshal([]byte(data), &rpcResp); err != nil {
			// Skip lines that aren't valid JSON-RPC.
			continue
		}
		if rpcResp.ID == requestID {
			return &rpcResp, nil
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read sse stream: %w", err)
	}
	return nil, fmt.Errorf("no response found for request id %d in sse stream", requestID)
}

// Close releases the provider's in-memory credentials.
func (t *HTTPTransport) Close() error {
	if t.provider != nil {
		t.provider.Cleanup()
	}
	return nil
}
