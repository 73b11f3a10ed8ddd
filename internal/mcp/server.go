package mcp

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// Server wraps the MCP server with dependencies.
type Server struct {
	server *mcp.Server
	logger *slog.Logger
}

// Config holds server dependencies.
type Config struct {
	Retriever Retriever
	Store     Counter
	Logger    *slog.Logger
}

// NewServer creates a configured MCP server with tools registered.
func NewServer(cfg *Config) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	impl := &mcp.Implementation{
		Name:    "category-rag",
		Version: "v0.1.0",
	}

	server := mcp.NewServer(impl, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "select_categories",
		Description: "Route a question to the corpus categories most relevant to it. Returns the selected categories and the per-category score breakdown.",
	}, makeSelectHandler(cfg.Retriever))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "retrieve_context",
		Description: "Retrieve the passages most relevant to a question from the categories it is routed to. Returns a single context block ready to ground an answer.",
	}, makeRetrieveHandler(cfg.Retriever, logger))

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_index_status",
		Description: "Report whether the retrieval service is ready and how many chunks each category holds.",
	}, makeStatusHandler(cfg.Retriever, cfg.Store))

	return &Server{server: server, logger: logger}
}

// Run starts the server with stdio transport (blocks until client disconnects).
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// HTTPHandler serves the MCP server over Streamable HTTP. Stateless
// disables session management, which suits a tools-only server.
func (s *Server) HTTPHandler(stateless bool) http.Handler {
	return mcp.NewStreamableHTTPHandler(func(r *http.Request) *mcp.Server {
		return s.server
	}, &mcp.StreamableHTTPOptions{Stateless: stateless})
}
