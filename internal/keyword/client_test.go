package keyword

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/wanderdesk/wanderdesk/pkg/models"
)

func skipIfNoES(t *testing.T) {
	if os.Getenv("SKIP_ES_TESTS") == "1" {
		t.Skip("Skipping ES tests (SKIP_ES_TESTS=1)")
	}

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "test-skip-check",
	})
	if err != nil {
		t.Skipf("Skipping ES tests: %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if !client.Ping(ctx) {
		t.Skip("Skipping ES tests: Elasticsearch not available")
	}
}

func TestClient_EnsureIndex(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "wanderdesk-test-create",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	client.DeleteIndex(ctx)

	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	// Second call must be idempotent.
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() second call error = %v", err)
	}

	client.DeleteIndex(ctx)
}

func TestClient_IndexAndSearch(t *testing.T) {
	skipIfNoES(t)

	client, err := New(Config{
		Addresses: []string{"http://localhost:9200"},
		Index:     "wanderdesk-test-search",
	})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	ctx := context.Background()
	client.DeleteIndex(ctx)
	if err := client.EnsureIndex(ctx); err != nil {
		t.Fatalf("EnsureIndex() error = %v", err)
	}
	defer client.DeleteIndex(ctx)

	article := models.Article{
		ID:       1,
		URL:      "https://www.airbnb.com/help/article/478",
		Slug:     "how-do-i-cancel-my-reservation",
		Question: "How do I cancel my reservation?",
		Answer:   "Open the Trips page and choose cancel reservation.",
		Platform: "airbnb",
	}
	if err := client.IndexArticle(ctx, article); err != nil {
		t.Fatalf("IndexArticle() error = %v", err)
	}
	client.Refresh(ctx)

	results, err := client.Search(ctx, "cancel reservation", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) == 0 {
		t.Fatal("Search() returned no results")
	}
	if results[0].URL != article.URL {
		t.Errorf("Search() top result URL = %q, want %q", results[0].URL, article.URL)
	}

	// Platform filter excludes non-matching platforms.
	filtered, err := client.Search(ctx, "cancel reservation", "viator", 10)
	if err != nil {
		t.Fatalf("Search() with filter error = %v", err)
	}
	if len(filtered) != 0 {
		t.Errorf("Search() with mismatched platform returned %d results, want 0", len(filtered))
	}

	// Re-indexing the same URL must overwrite, not duplicate.
	if err := client.IndexArticle(ctx, article); err != nil {
		t.Fatalf("IndexArticle() re-index error = %v", err)
	}
	client.Refresh(ctx)
	results, err = client.Search(ctx, "cancel reservation", "", 10)
	if err != nil {
		t.Fatalf("Search() after re-index error = %v", err)
	}
	if len(results) != 1 {
		t.Errorf("Search() after re-index returned %d results, want 1", len(results))
	}
}
