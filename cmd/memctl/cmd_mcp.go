package main

import (
	"fmt"

	mcpserver "github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/memctl/memctl/internal/extract"
	"github.com/memctl/memctl/internal/mcp"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve memory tools over the Model Context Protocol on stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			engine, err := newEngine(logger)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			server := mcp.NewServer(engine, extract.NewExtractor(logger), logger)

			logger.Info("starting MCP server on stdio")
			if err := mcpserver.ServeStdio(server.MCPServer()); err != nil {
				return fmt.Errorf("mcp: serving: %w", err)
			}
			return nil
		},
	}
}
