package mcp

import "context"

// Transport sends JSON-RPC requests to an MCP server. Implementations own
// credential attachment and any recovery from authentication failures.
type Transport interface {
	// Send sends a JSON-RPC request and returns the response.
	Send(ctx context.Context, req *JSONRPCRequest) (*JSONRPCResponse, error)
	// Close releases any resources held by the transport.
	Close() error
}
