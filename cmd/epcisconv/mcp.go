package main

import (
	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"

	"github.com/flemzord/epcisconv/internal/mcptool"
	"github.com/flemzord/epcisconv/internal/router"
)

func mcpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Run as an MCP tool server over stdio",
		RunE: func(_ *cobra.Command, _ []string) error {
			s := mcptool.NewServer(router.New().WithLogger(newLogger()))
			return server.ServeStdio(s)
		},
	}
}
