// Package mcp exposes the published documents to MCP clients over stdio.
package mcp

import (
	"context"

	"github.com/mark3labs/mcp-go/server"

	"github.com/renderinc/gitpress/internal/store"
)

const (
	// ServerName is the MCP server name
	ServerName = "gitpress"
	// ServerVersion is the current server version
	ServerVersion = "1.0.0"
)

// Server wraps the MCP server with the document store
type Server struct {
	mcp   *server.MCPServer
	store *store.Store
}

// NewServer creates an MCP server reading from st
func NewServer(st *store.Store) *Server {
	s := &Server{
		mcp:   server.NewMCPServer(ServerName, ServerVersion),
		store: st,
	}
	s.registerTools()
	return s
}

// Serve runs the MCP server on stdio and blocks until the client disconnects
func (s *Server) Serve(ctx context.Context) error {
	return server.ServeStdio(s.mcp)
}

func (s *Server) registerTools() {
	s.mcp.AddTool(lookupDocumentTool(), s.handleLookupDocument)
	s.mcp.AddTool(listDocumentsTool(), s.handleListDocuments)
	s.mcp.AddTool(listByAuthorTool(), s.handleListByAuthor)
	s.mcp.AddTool(listByTimeRangeTool(), s.handleListByTimeRange)
	s.mcp.AddTool(searchDocumentsTool(), s.handleSearchDocuments)
	s.mcp.AddTool(triggerUpdateTool(), s.handleTriggerUpdate)
}
