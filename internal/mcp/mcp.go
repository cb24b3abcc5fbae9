// Package mcp exposes adjudication over the Model Context Protocol.
//
// Tools mirror the HTTP API: an MCP client can adjudicate a case, read its
// verdict history, and query the arbitration reference document. Resources
// give read access to recent cases.
package mcp

import (
	"log/slog"

	mcplib "github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/manthanabc/EDAI-5/internal/adjudication"
	"github.com/manthanabc/EDAI-5/internal/service/cases"
)

// Actor is recorded in the audit log for adjudications started over MCP.
const Actor = "mcp"

// Server wraps the mcp-go server with the case service.
type Server struct {
	mcpServer *mcpserver.MCPServer
	cases     *cases.Service
	retriever adjudication.Retriever
	logger    *slog.Logger
}

// New creates and configures an MCP server. retriever may be nil, which
// disables edai_retrieve_context.
func New(caseSvc *cases.Service, retriever adjudication.Retriever, logger *slog.Logger, version string) *Server {
	s := &Server{
		cases:     caseSvc,
		retriever: retriever,
		logger:    logger,
	}
	s.mcpServer = mcpserver.NewMCPServer(
		"edai",
		version,
		mcpserver.WithResourceCapabilities(true, true),
		mcpserver.WithToolCapabilities(true),
	)
	s.registerResources()
	s.registerTools()
	return s
}

// MCPServer returns the underlying mcp-go server for transport setup.
func (s *Server) MCPServer() *mcpserver.MCPServer {
	return s.mcpServer
}

func textResult(text string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: text},
		},
	}
}

func errorResult(msg string) *mcplib.CallToolResult {
	return &mcplib.CallToolResult{
		Content: []mcplib.Content{
			mcplib.TextContent{Type: "text", Text: msg},
		},
		IsError: true,
	}
}
