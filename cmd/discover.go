package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpkit/mcpauth/internal/oauth"
)

var (
	flagResourceServer string
	flagAuthServer     string
	flagDiscTimeout    int
	flagDiscVerbose    bool
)

var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "Discover the OAuth authorization server for an MCP resource",
	Long: `Discover the OAuth authorization server protecting an MCP resource.

mcpauth probes the RFC 9728 protected-resource metadata locations, follows
the advertised authorization servers, and prints the first RFC 8414 server
metadata document that supports PKCE and the authorization code grant.

Examples:
  # Discover from the resource server's well-known locations
  mcpauth discover --resource-server https://mcp.example.com/mcp

  # Skip resource metadata and probe a known authorization server directly
  mcpauth discover --resource-server https://mcp.example.com --auth-server https://auth.example.com`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runDiscover,
}

func init() {
	f := discoverCmd.Flags()
	f.StringVar(&flagResourceServer, "resource-server", "", "URL of the protected MCP resource server")
	f.StringVar(&flagAuthServer, "auth-server", "", "pre-configured authorization server URL, skips resource metadata probing")
	f.IntVar(&flagDiscTimeout, "timeout", 30000, "timeout in milliseconds for the discovery round trip")
	f.BoolVar(&flagDiscVerbose, "verbose", false, "log each discovery probe to stderr")
}

func runDiscover(cmd *cobra.Command, args []string) error {
	if flagResourceServer == "" && flagAuthServer == "" {
		return fmt.Errorf("either --resource-server or --auth-server is required")
	}

	opts := []oauth.DiscoveryOption{}
	if flagDiscVerbose {
		opts = append(opts, oauth.WithLogger(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: slog.LevelDebug}))))
	}
	manager := oauth.NewDiscoveryManager(opts...)

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(flagDiscTimeout)*time.Millisecond)
	defer cancel()

	meta, err := manager.DiscoverServerMetadata(ctx, flagResourceServer, flagAuthServer)
	if err != nil {
		if ctx.Err() != nil {
			return fmt.Errorf("discovery did not complete within %dms", flagDiscTimeout)
		}
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(meta)
}
