// Package index splits admitted articles into paragraphs, embeds them,
// and persists the vectors.
package index

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/wanderdesk/wanderdesk/internal/store"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// Defaults bounding embedding-API cost per article.
const (
	DefaultMinParagraphChars = 80
	DefaultMaxParagraphs     = 12
)

// Embedder turns one text into one vector.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Config holds indexer configuration.
type Config struct {
	MinParagraphChars int
	MaxParagraphs     int
}

// Indexer embeds an article's paragraphs and persists them. A paragraph
// whose embedding fails is skipped; the article stays valid even with zero
// embedded paragraphs, it is just absent from semantic retrieval.
type Indexer struct {
	embedder Embedder
	store    store.Store
	cfg      Config
}

// New creates an indexer.
func New(embedder Embedder, s store.Store, cfg Config) *Indexer {
	if cfg.MinParagraphChars == 0 {
		cfg.MinParagraphChars = DefaultMinParagraphChars
	}
	if cfg.MaxParagraphs == 0 {
		cfg.MaxParagraphs = DefaultMaxParagraphs
	}
	return &Indexer{embedder: embedder, store: s, cfg: cfg}
}

// Index replaces the article's paragraphs with freshly embedded ones.
// Returns the number of paragraphs that got a vector.
func (ix *Indexer) Index(ctx context.Context, article *models.Article) (int, error) {
	paragraphs := SplitParagraphs(article.Answer, ix.cfg.MinParagraphChars, ix.cfg.MaxParagraphs)
	if len(paragraphs) == 0 {
		slog.Debug("no indexable paragraphs", "url", article.URL)
		return 0, nil
	}

	inputs := make([]store.ParagraphInput, 0, len(paragraphs))
	embedded := 0
	for _, text := range paragraphs {
		vector, err := ix.embedder.Embed(ctx, text)
		if err != nil {
			slog.Warn("embedding failed, skipping paragraph",
				"url", article.URL, "paragraph_len", len(text), "error", err)
			inputs = append(inputs, store.ParagraphInput{Text: text})
			continue
		}
		inputs = append(inputs, store.ParagraphInput{Text: text, Embedding: vector})
		embedded++
	}

	if err := ix.store.ReplaceParagraphs(ctx, article.ID, inputs); err != nil {
		return 0, fmt.Errorf("persist paragraphs for %s: %w", article.URL, err)
	}

	slog.Debug("indexed article", "url", article.URL, "paragraphs", len(inputs), "embedded", embedded)
	return embedded, nil
}

var paragraphBoundary = regexp.MustCompile(`\n\s*\n`)

// SplitParagraphs splits text on blank-line boundaries, drops paragraphs
// shorter than minChars, and keeps at most maxCount of them.
func SplitParagraphs(text string, minChars, maxCount int) []string {
	var out []string
	for _, p := range paragraphBoundary.Split(text, -1) {
		p = strings.TrimSpace(p)
		if len(p) < minChars {
			continue
		}
		out = append(out, p)
		if len(out) == maxCount {
			break
		}
	}
	return out
}
