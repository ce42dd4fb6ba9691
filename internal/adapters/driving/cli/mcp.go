package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/cvsearch/internal/adapters/driving/mcp"
)

var (
	mcpPort     int
	mcpReadOnly bool
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server so AI assistants can search
and read the indexed résumés.

By default the server speaks JSON-RPC over stdio. Use --port to serve the
streamable HTTP transport instead, e.g. for the MCP Inspector.

Examples:
  cvsearch mcp serve
  cvsearch mcp serve --port 8080 --read-only

Assistant configuration:
  {
    "mcpServers": {
      "cvsearch": {
        "command": "/path/to/cvsearch",
        "args": ["mcp", "serve"]
      }
    }
  }`,
	Args: cobra.NoArgs,
	RunE: runMCPServe,
}

func init() {
	mcpServeCmd.Flags().IntVarP(&mcpPort, "port", "p", 0, "HTTP port (0 = use stdio)")
	mcpServeCmd.Flags().BoolVar(&mcpReadOnly, "read-only", false, "do not expose the ingest tool")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

// newMCPServer builds the server over the configured services.
func newMCPServer() (*mcp.Server, error) {
	if searchService == nil {
		return nil, notConfigured("search")
	}

	ports := &mcp.Ports{
		Search:    searchService,
		Documents: documentService,
		Schema:    schema,
	}
	if !mcpReadOnly {
		ports.Ingest = ingestService
	}
	return mcp.NewServer(ports)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	server, err := newMCPServer()
	if err != nil {
		return err
	}

	if mcpPort > 0 {
		addr := fmt.Sprintf(":%d", mcpPort)
		cmd.PrintErrf("MCP server listening on http://localhost%s\n", addr)
		return server.RunHTTP(commandContext(cmd), addr)
	}

	return server.Run(commandContext(cmd))
}
