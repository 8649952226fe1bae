package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var appVersion = "dev"

func SetVersion(v string) {
	appVersion = v
}

var rootCmd = &cobra.Command{
	Use:   "mcpauth",
	Short: "Authentication tooling for MCP servers",
	Long:  "mcpauth resolves OAuth authorization servers for MCP resources and produces authentication headers from configuration or the environment.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return cmd.Help()
	},
}

func init() {
	rootCmd.AddCommand(discoverCmd)
	rootCmd.AddCommand(headersCmd)
	rootCmd.SetVersionTemplate(fmt.Sprintf("mcpauth v%s\n", appVersion))
}

func Execute() error {
	rootCmd.Version = appVersion
	return rootCmd.Execute()
}
