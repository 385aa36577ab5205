// Package store persists articles and their paragraph embeddings.
// All pipeline code goes through Gateway, never a raw client.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// ErrDuplicateKey is returned when an insert violates a unique constraint
// (URL or slug). The deduplicator treats it as a dedup signal, not a
// failure.
var ErrDuplicateKey = errors.New("store: duplicate key")

// ErrPersistenceUnavailable is returned by the gateway when the store stays
// unreachable through all retries. Fatal for the current run, not for the
// process.
var ErrPersistenceUnavailable = errors.New("store: persistence unavailable")

// ParagraphInput is one paragraph to persist for an article. A nil
// Embedding records the paragraph text without a vector.
type ParagraphInput struct {
	Text      string
	Embedding []float32
}

// ParagraphHit is an embedded paragraph joined with its owning article,
// the unit the retrieval engine scans.
type ParagraphHit struct {
	Paragraph models.ArticleParagraph
	Article   models.Article
}

// ArticleUpdate carries the mutable fields of a content refresh. Nil
// pointers leave the column untouched.
type ArticleUpdate struct {
	Answer       *string
	ContentHash  *string
	Language     *string
	CrawlStatus  *models.CrawlStatus
	VoteCount    *int
	Verified     *bool
	QualityScore *float64
	UpdatedAt    time.Time
}

// Store is the persistence interface the pipeline depends on. Writes must
// be safely retryable: uniqueness of URL and slug is enforced by the store
// itself, so a retried insert can never create a second row.
type Store interface {
	Ping(ctx context.Context) error
	FindByURL(ctx context.Context, url string) (*models.Article, error)
	FindBySlug(ctx context.Context, slug string) (*models.Article, error)
	FindByContentHash(ctx context.Context, hash string) (*models.Article, error)
	CreateArticle(ctx context.Context, article *models.Article) error
	UpdateArticle(ctx context.Context, id int64, update ArticleUpdate) error
	ReplaceParagraphs(ctx context.Context, articleID int64, paragraphs []ParagraphInput) error
	ListEmbedded(ctx context.Context, platform string) ([]ParagraphHit, error)
	CountActive(ctx context.Context) (int64, error)
	Close() error
}
