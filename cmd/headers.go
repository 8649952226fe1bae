package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/mcpkit/mcpauth/internal/auth"
)

var (
	flagAuthType    string
	flagConfig      string
	flagServerName  string
	flagHdrsTimeout int
)

var headersCmd = &cobra.Command{
	Use:   "headers",
	Short: "Resolve authentication headers for an MCP server",
	Long: `Resolve the headers a client should attach to MCP requests.

The provider is built either from an inline JSON config with --type and
--config, or from environment variables with --server (variables are read
as {UPPERCASE_SERVERNAME}_{SUFFIX}, e.g. LINEAR_BEARER_TOKEN).

Examples:
  # From inline config
  mcpauth headers --type bearer --config '{"token":"abc123"}'
  mcpauth headers --type apikey --config '{"apiKey":"k","headerName":"X-Custom"}'

  # From the environment
  LINEAR_BEARER_TOKEN=abc123 mcpauth headers --server linear`,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runHeaders,
}

func init() {
	f := headersCmd.Flags()
	f.StringVar(&flagAuthType, "type", "", "auth type: bearer, token, apikey, api_key, basic, or oauth")
	f.StringVar(&flagConfig, "config", "", "JSON configuration object for the chosen auth type")
	f.StringVar(&flagServerName, "server", "", "server name whose environment variables configure the provider")
	f.IntVar(&flagHdrsTimeout, "timeout", 30000, "timeout in milliseconds for any token refresh")
}

func runHeaders(cmd *cobra.Command, args []string) error {
	provider, err := buildProvider()
	if err != nil {
		return err
	}
	if provider == nil {
		return fmt.Errorf("no authentication configured for server %q", flagServerName)
	}
	defer provider.Cleanup()

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(flagHdrsTimeout)*time.Millisecond)
	defer cancel()

	headers, err := provider.GetHeaders(ctx)
	if err != nil {
		return err
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(headers)
}

func buildProvider() (auth.Provider, error) {
	switch {
	case flagServerName != "":
		if flagAuthType != "" || flagConfig != "" {
			return nil, fmt.Errorf("--server cannot be combined with --type/--config")
		}
		return auth.NewProviderFromEnv(flagServerName)

	case flagAuthType != "":
		config := map[string]any{}
		if flagConfig != "" {
			if err := json.Unmarshal([]byte(flagConfig), &config); err != nil {
				return nil, fmt.Errorf("--config is not valid JSON: %s", err)
			}
		}
		return auth.NewProvider(flagAuthType, config)

	default:
		return nil, fmt.Errorf("either --server or --type is required")
	}
}
