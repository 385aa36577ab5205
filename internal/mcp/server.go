// Package mcp exposes the retrieval engine to MCP clients over stdio.
package mcp

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/wanderdesk/wanderdesk/internal/search"
	"github.com/wanderdesk/wanderdesk/internal/store"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// Config holds MCP server configuration.
type Config struct {
	Name    string
	Version string
}

// Server wraps the MCP server around the retrieval engine and the
// article store.
type Server struct {
	mcpServer *server.MCPServer
	engine    *search.Engine
	store     store.Store
}

// NewServer creates an MCP server exposing the answer-search tools.
func NewServer(config Config, engine *search.Engine, s store.Store) *Server {
	mcpServer := server.NewMCPServer(
		config.Name,
		config.Version,
		server.WithToolCapabilities(true),
	)

	srv := &Server{
		mcpServer: mcpServer,
		engine:    engine,
		store:     s,
	}

	searchTool := mcp.NewTool("search_answers",
		mcp.WithDescription("Search the travel support knowledge base semantically. Returns ranked answers with snippets."),
		mcp.WithString("query",
			mcp.Required(),
			mcp.Description("Natural-language question"),
		),
		mcp.WithString("platform",
			mcp.Description("Restrict results to one platform (e.g. airbnb, viator)"),
		),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of results to return (default: 10)"),
		),
	)
	mcpServer.AddTool(searchTool, srv.searchHandler)

	getArticleTool := mcp.NewTool("get_article",
		mcp.WithDescription("Get one knowledge-base article by slug, including the full answer text."),
		mcp.WithString("slug",
			mcp.Required(),
			mcp.Description("Article slug"),
		),
	)
	mcpServer.AddTool(getArticleTool, srv.getArticleHandler)

	return srv
}

// searchHandler handles the search_answers tool call.
func (s *Server) searchHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := req.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("query parameter is required"), nil
	}

	platform := req.GetString("platform", "")
	limit := req.GetInt("limit", 10)

	results, err := s.handleSearch(ctx, query, platform, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}

	payload, err := json.Marshal(results)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal results: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

// getArticleHandler handles the get_article tool call.
func (s *Server) getArticleHandler(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	slug, err := req.RequireString("slug")
	if err != nil {
		return mcp.NewToolResultError("slug parameter is required"), nil
	}

	article, err := s.handleGetArticle(ctx, slug)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("get article failed: %v", err)), nil
	}
	if article == nil {
		return mcp.NewToolResultError(fmt.Sprintf("article not found: %s", slug)), nil
	}

	payload, err := json.Marshal(article)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to marshal article: %v", err)), nil
	}

	return mcp.NewToolResultText(string(payload)), nil
}

// handleSearch runs a retrieval query.
func (s *Server) handleSearch(ctx context.Context, query, platform string, limit int) ([]search.Result, error) {
	return s.engine.Search(ctx, query, platform, limit)
}

// handleGetArticle retrieves an article by slug.
func (s *Server) handleGetArticle(ctx context.Context, slug string) (*models.Article, error) {
	return s.store.FindBySlug(ctx, slug)
}

// ServeStdio starts the MCP server using stdio transport.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcpServer)
}
