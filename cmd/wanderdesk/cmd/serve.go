package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/mcp"
	"github.com/wanderdesk/wanderdesk/internal/search"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for knowledge-base retrieval.

The server communicates via stdio and provides two tools:
  - search_answers: Search stored answers semantically
  - get_article: Get a specific article by slug

Example:
  wanderdesk serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	s, err := openStore(context.Background(), cfg)
	if err != nil {
		return err
	}
	defer s.Close()

	embedder, err := newEmbedder(cfg)
	if err != nil {
		return err
	}

	kw, err := newKeyword(cfg)
	if err != nil {
		return err
	}

	var engine *search.Engine
	if kw != nil {
		engine = search.New(embedder, s, kw)
	} else {
		engine = search.New(embedder, s, nil)
	}

	server := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, engine, s)

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
