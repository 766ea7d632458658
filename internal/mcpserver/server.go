// Package mcpserver exposes the studio as MCP tools for AI assistants.
//
// Every tool answers with a JSON text block. Failures are reported as an
// error-flagged text block holding the error message; there is no separate
// error code channel.
package mcpserver

import (
	"context"
	"encoding/json"
	"io"
	"log"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/DollhouseMCP/content-workflow-toolkit-sub001/internal/studio"
)

// Name is reported to MCP clients during initialization.
const Name = "content-workflow-toolkit"

// Version is set at build time via ldflags.
var Version = "dev"

type handlers struct {
	core   *studio.Studio
	logger *log.Logger
}

// New creates the MCP server with every tool registered.
func New(core *studio.Studio, logger *log.Logger) *server.MCPServer {
	if logger == nil {
		logger = log.New(io.Discard, "", 0)
	}
	s := server.NewMCPServer(
		Name,
		Version,
		server.WithToolCapabilities(true),
		server.WithRecovery(),
	)
	h := &handlers{core: core, logger: logger}
	s.AddTools(h.toolset()...)
	return s
}

// Serve speaks MCP over in and out until ctx is cancelled or in is closed.
func Serve(ctx context.Context, s *server.MCPServer, in io.Reader, out io.Writer, logger *log.Logger) error {
	stdio := server.NewStdioServer(s)
	if logger != nil {
		stdio.SetErrorLogger(logger)
	}
	return stdio.Listen(ctx, in, out)
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError("encode result: " + err.Error()), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (h *handlers) failure(tool string, err error) (*mcp.CallToolResult, error) {
	h.logger.Printf("tool %s: %v", tool, err)
	return mcp.NewToolResultError(err.Error()), nil
}
