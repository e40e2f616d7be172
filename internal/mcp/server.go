// Package mcp serves pywiz tools over the Model Context Protocol so agents
// can trace programs and inspect their state at any step.
package mcp

import (
	"context"
	"fmt"

	mcpsdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/ppiankov/pywiz/internal/server"
)

// Version is reported to MCP clients.
var Version = "0.1.0"

// Config holds MCP server configuration.
type Config struct {
	ConfigPath string
	// Server, if set, is used instead of one built from ConfigPath.
	Server *server.Server
}

// Server wraps the MCP SDK server around a trace server.
type Server struct {
	mcpServer *mcpsdk.Server
	traces    *server.Server
	owned     bool
}

// New creates an MCP server with its tools registered.
func New(cfg Config) (*Server, error) {
	traces, owned := cfg.Server, false
	if traces == nil {
		var err error
		traces, err = server.New(server.Options{ConfigPath: cfg.ConfigPath})
		if err != nil {
			return nil, fmt.Errorf("failed to create trace server: %w", err)
		}
		owned = true
	}

	s := &Server{traces: traces, owned: owned}
	s.mcpServer = mcpsdk.NewServer(
		&mcpsdk.Implementation{
			Name:    "pywiz",
			Version: Version,
		},
		nil,
	)

	s.registerTools()
	return s, nil
}

// Run starts the MCP server on stdio transport. Blocks until ctx is cancelled.
func (s *Server) Run(ctx context.Context) error {
	return s.mcpServer.Run(ctx, &mcpsdk.StdioTransport{})
}

// Connect serves one session on t. Used for in-process clients.
func (s *Server) Connect(ctx context.Context, t mcpsdk.Transport) (*mcpsdk.ServerSession, error) {
	return s.mcpServer.Connect(ctx, t, nil)
}

// Close releases the trace server if this package created it.
func (s *Server) Close() error {
	if s.owned {
		return s.traces.Close()
	}
	return nil
}

// registerTools adds all pywiz tools to the MCP server.
func (s *Server) registerTools() {
	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pywiz_trace",
		Description: "Run a small Python program in the sandbox and return its execution trace: one event per call, line, return and exception, with frame ids, variable changes and output.",
	}, s.handleTrace)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pywiz_state",
		Description: "Trace a program and reconstruct its state after a given step: output so far, the active call stack and each frame's locals.",
	}, s.handleState)

	mcpsdk.AddTool(s.mcpServer, &mcpsdk.Tool{
		Name:        "pywiz_summary",
		Description: "Trace a program and return only counts: events by kind, frames, maximum depth and output size.",
	}, s.handleSummary)
}
