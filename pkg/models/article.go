package models

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ContentType distinguishes official help-center content from community posts.
type ContentType string

const (
	ContentTypeOfficial  ContentType = "official"
	ContentTypeCommunity ContentType = "community"
)

// CrawlStatus tracks the lifecycle of an article in the corpus.
// Articles are never deleted, only deactivated.
type CrawlStatus string

const (
	CrawlStatusActive   CrawlStatus = "active"
	CrawlStatusInactive CrawlStatus = "inactive"
	CrawlStatusError    CrawlStatus = "error"
	CrawlStatusPending  CrawlStatus = "pending"
)

// RawDocument is one question/answer candidate emitted by a source adapter.
// It exists only in memory during a single crawl pass.
type RawDocument struct {
	URL         string
	Question    string
	Answer      string
	Platform    string
	Category    string
	ContentType ContentType
	Source      string
	Author      string
	PostedAt    time.Time
	Score       int
	Accepted    bool
}

// NormalizedDocument is a RawDocument after cleanup, hashing, language
// identification, and quality scoring.
type NormalizedDocument struct {
	Raw              RawDocument
	Answer           string // cleaned answer, blank-line paragraph boundaries preserved
	ContentHash      string
	Language         string
	LanguageReliable bool
	QualityScore     float64
}

// Article is the durable corpus unit: one deduplicated question/answer pair.
type Article struct {
	ID           int64       `json:"id"`
	URL          string      `json:"url"`
	Slug         string      `json:"slug"`
	Question     string      `json:"question"`
	Answer       string      `json:"answer"`
	Platform     string      `json:"platform"`
	Category     string      `json:"category"`
	ContentType  ContentType `json:"content_type"`
	Source       string      `json:"source"`
	Language     string      `json:"language"`
	ContentHash  string      `json:"content_hash"`
	IsDuplicate  bool        `json:"is_duplicate"`
	CrawlStatus  CrawlStatus `json:"crawl_status"`
	VoteCount    int         `json:"vote_count"`
	Verified     bool        `json:"verified"`
	QualityScore float64     `json:"quality_score"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

// ArticleParagraph is one embedded paragraph owned by a single article.
// Paragraphs are replaced wholesale when the article content is regenerated.
type ArticleParagraph struct {
	ID        int64     `json:"id"`
	ArticleID int64     `json:"article_id"`
	Position  int       `json:"position"`
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding,omitempty"`
}

// ContentHash computes the deduplication key for normalized answer text:
// a SHA-256 digest over the text with all whitespace runs collapsed, so
// formatting differences never produce distinct hashes.
func ContentHash(text string) string {
	h := sha256.Sum256([]byte(CollapseWhitespace(text)))
	return hex.EncodeToString(h[:])
}

// DocumentID creates a deterministic short ID from a URL, used as the
// keyword-index document ID. First 16 hex chars of the SHA-256 hash.
func DocumentID(url string) string {
	h := sha256.Sum256([]byte(url))
	return hex.EncodeToString(h[:])[:16]
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// CollapseWhitespace replaces every run of whitespace with a single space
// and trims the result.
func CollapseWhitespace(text string) string {
	return strings.TrimSpace(whitespaceRun.ReplaceAllString(text, " "))
}

const maxSlugLength = 80

var slugStrip = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from a question. The result is lowercase,
// hyphen-separated, and capped in length. Uniqueness is enforced by the
// store; callers resolve collisions with SlugWithSuffix.
func Slugify(question string) string {
	slug := strings.ToLower(question)
	slug = slugStrip.ReplaceAllString(slug, "-")
	slug = strings.Trim(slug, "-")
	if len(slug) > maxSlugLength {
		slug = slug[:maxSlugLength]
		if i := strings.LastIndex(slug, "-"); i > 0 {
			slug = slug[:i]
		}
	}
	if slug == "" {
		slug = "article"
	}
	return slug
}

// SlugWithSuffix appends a short random fragment to a slug, used when the
// plain slug collides with an existing article.
func SlugWithSuffix(slug string) string {
	return fmt.Sprintf("%s-%s", slug, uuid.NewString()[:8])
}
