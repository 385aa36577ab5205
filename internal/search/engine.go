// Package search answers similarity queries over stored paragraph
// embeddings.
package search

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/wanderdesk/wanderdesk/internal/store"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// DefaultTopK is the result count when the caller passes zero.
const DefaultTopK = 10

const snippetMaxChars = 300

// Embedder turns the query text into a vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// KeywordSearcher is the text-search fallback for queries that cannot be
// embedded and for articles that carry no vectors.
type KeywordSearcher interface {
	Search(ctx context.Context, query, platform string, limit int) ([]models.Article, error)
}

// Result is one ranked answer.
type Result struct {
	Article models.Article `json:"article"`
	Snippet string         `json:"snippet"`
	Score   float64        `json:"score"`
}

// Engine ranks stored paragraphs by cosine similarity to the query.
//
// The scan is linear over the comparison set, which is fine at the corpus
// sizes this system targets (tens of thousands of paragraphs). A caller
// needing more can put an approximate nearest-neighbor index behind the
// same contract.
type Engine struct {
	embedder Embedder
	store    store.Store
	keyword  KeywordSearcher // nil disables the fallback
}

// New creates a retrieval engine. keyword may be nil.
func New(embedder Embedder, s store.Store, keyword KeywordSearcher) *Engine {
	return &Engine{embedder: embedder, store: s, keyword: keyword}
}

// Search embeds the query and returns the topK most similar paragraphs,
// each paired with its originating article. Ties break toward the most
// recently updated article. platform may be empty for no filter.
func (e *Engine) Search(ctx context.Context, query, platform string, topK int) ([]Result, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}

	queryVec, err := e.embedder.Embed(ctx, query)
	if err != nil {
		slog.Warn("query embedding failed, falling back to keyword search", "error", err)
		return e.keywordFallback(ctx, query, platform, topK, err)
	}

	hits, err := e.store.ListEmbedded(ctx, platform)
	if err != nil {
		return nil, fmt.Errorf("load comparison set: %w", err)
	}
	if len(hits) == 0 {
		return e.keywordFallback(ctx, query, platform, topK, nil)
	}

	results := make([]Result, 0, len(hits))
	for _, hit := range hits {
		score := CosineSimilarity(queryVec, hit.Paragraph.Embedding)
		results = append(results, Result{
			Article: hit.Article,
			Snippet: snippet(hit.Paragraph.Text),
			Score:   score,
		})
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Article.UpdatedAt.After(results[j].Article.UpdatedAt)
	})

	if len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

func (e *Engine) keywordFallback(ctx context.Context, query, platform string, topK int, cause error) ([]Result, error) {
	if e.keyword == nil {
		if cause != nil {
			return nil, fmt.Errorf("embed query: %w", cause)
		}
		return nil, nil
	}

	articles, err := e.keyword.Search(ctx, query, platform, topK)
	if err != nil {
		if cause != nil {
			return nil, fmt.Errorf("embed query: %w (keyword fallback also failed: %v)", cause, err)
		}
		return nil, fmt.Errorf("keyword search: %w", err)
	}

	results := make([]Result, len(articles))
	for i, a := range articles {
		results[i] = Result{Article: a, Snippet: snippet(a.Answer)}
	}
	return results, nil
}

// CosineSimilarity is the dot product of two vectors divided by the
// product of their magnitudes. Mismatched dimensions or a zero vector
// yield 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

func snippet(text string) string {
	if len(text) <= snippetMaxChars {
		return text
	}
	return text[:snippetMaxChars] + "..."
}
