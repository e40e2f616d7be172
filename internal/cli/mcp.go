package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	pywizmcp "github.com/ppiankov/pywiz/internal/mcp"
)

func init() {
	rootCmd.AddCommand(mcpCmd)
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start MCP tool server for agent integration",
	Long:  "Runs pywiz as an MCP (Model Context Protocol) server over stdio.\nExposes tools: pywiz_trace, pywiz_state, pywiz_summary.",
	RunE:  runMCP,
}

func runMCP(cmd *cobra.Command, args []string) error {
	pywizmcp.Version = version

	srv, err := pywizmcp.New(pywizmcp.Config{ConfigPath: configPath})
	if err != nil {
		return fmt.Errorf("failed to create MCP server: %w", err)
	}
	defer srv.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(os.Stderr, "pywiz MCP server running on stdio")
	return srv.Run(ctx)
}
