package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/wanderdesk/wanderdesk/internal/search"
)

var (
	searchPlatform string
	searchLimit    int
	searchFormat   string
)

var searchCmd = &cobra.Command{
	Use:   "search [query]",
	Short: "Query the knowledge base",
	Long: `Search stored answers semantically.

Examples:
  # Basic search
  wanderdesk search "host is not responding"

  # Restrict to one platform
  wanderdesk search "refund policy" --platform airbnb

  # JSON output for scripting
  wanderdesk search "cancel booking" --format json`,
	Args: cobra.ExactArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)

	searchCmd.Flags().StringVar(&searchPlatform, "platform", "", "Restrict results to one platform")
	searchCmd.Flags().IntVar(&searchLimit, "limit", 0, "Maximum number of results (default from config)")
	searchCmd.Flags().StringVar(&searchFormat, "format", "text", "Output format: text or json")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	query := args[0]
	cfg := GetConfig()

	s, err := openStore(ctx, cfg)
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

	limit := searchLimit
	if limit == 0 {
		limit = cfg.Search.TopK
	}

	results, err := engine.Search(ctx, query, searchPlatform, limit)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if len(results) == 0 {
		fmt.Println("No results found.")
		return nil
	}

	if searchFormat == "json" {
		output, err := json.MarshalIndent(results, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(output))
		return nil
	}

	fmt.Printf("Found %d results:\n\n", len(results))
	for i, r := range results {
		fmt.Printf("─── Result %d (score %.3f) ───\n", i+1, r.Score)
		fmt.Printf("Question: %s\n", r.Article.Question)
		fmt.Printf("Platform: %s\n", r.Article.Platform)
		fmt.Printf("URL:      %s\n", r.Article.URL)
		fmt.Printf("Slug:     %s\n", r.Article.Slug)
		fmt.Printf("Answer:\n%s\n\n", r.Snippet)
	}
	return nil
}
