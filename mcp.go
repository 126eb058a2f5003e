package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/sourcegraph/refsearch/langserver"
)

var mcpRoot string

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Run an MCP server on stdio",
	Long: `Run a Model Context Protocol server on stdin and stdout exposing the
find_references and find_symbol_references tools for the workspace.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := openSearcher(cmd.Context(), mcpRoot)
		if err != nil {
			return err
		}
		return server.ServeStdio(langserver.NewMCPServer(s, "refsearch", version))
	},
}

func init() {
	mcpCmd.Flags().StringVar(&mcpRoot, "root", ".", "workspace root")
	rootCmd.AddCommand(mcpCmd)
}
