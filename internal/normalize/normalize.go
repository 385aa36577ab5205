// Package normalize turns raw scraped documents into hashable, scored,
// language-tagged documents ready for deduplication.
package normalize

import (
	"fmt"
	"html"
	"regexp"
	"strings"

	htmltomarkdown "github.com/JohannesKaufmann/html-to-markdown/v2"
	"github.com/wanderdesk/wanderdesk/internal/language"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// DefaultMinAnswerChars is the minimum normalized answer length. Anything
// shorter is too thin to be a useful corpus entry and is rejected outright.
const DefaultMinAnswerChars = 40

// ValidationError marks a document permanently rejected by normalization.
// It is never retried.
type ValidationError struct {
	URL    string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid document %s: %s", e.URL, e.Reason)
}

// Config holds normalizer configuration.
type Config struct {
	MinAnswerChars int
}

// Normalizer cleans, hashes, language-tags, and scores raw documents.
// Pure aside from the language identification call.
type Normalizer struct {
	detector language.Detector
	minChars int
}

// New creates a normalizer.
func New(detector language.Detector, config Config) *Normalizer {
	minChars := config.MinAnswerChars
	if minChars == 0 {
		minChars = DefaultMinAnswerChars
	}
	return &Normalizer{detector: detector, minChars: minChars}
}

// Normalize runs the full normalization sequence: strip markup, collapse
// whitespace, enforce the minimum length, hash, identify language, score.
func (n *Normalizer) Normalize(raw models.RawDocument) (models.NormalizedDocument, error) {
	answer, err := CleanText(raw.Answer)
	if err != nil {
		return models.NormalizedDocument{}, &ValidationError{URL: raw.URL, Reason: fmt.Sprintf("unparseable answer: %v", err)}
	}

	flat := models.CollapseWhitespace(answer)
	if len(flat) < n.minChars {
		return models.NormalizedDocument{}, &ValidationError{
			URL:    raw.URL,
			Reason: fmt.Sprintf("answer too short: %d chars, minimum %d", len(flat), n.minChars),
		}
	}

	lang := n.detector.Detect(flat)

	return models.NormalizedDocument{
		Raw:              raw,
		Answer:           answer,
		ContentHash:      models.ContentHash(answer),
		Language:         lang.Code,
		LanguageReliable: lang.Reliable,
		QualityScore:     Score(raw, len(flat)),
	}, nil
}

var htmlTagPattern = regexp.MustCompile(`<[a-zA-Z!/][^>]*>`)

// CleanText strips HTML markup and decodes entities, keeping blank-line
// paragraph boundaries so the indexer can split on them later. Plain text
// passes through with whitespace per-paragraph trimmed.
func CleanText(text string) (string, error) {
	if htmlTagPattern.MatchString(text) {
		converted, err := htmltomarkdown.ConvertString(text)
		if err != nil {
			return "", err
		}
		text = converted
	}
	// Plain-text sources (the Reddit and StackExchange APIs) also deliver
	// entity-encoded text, so decoding cannot be gated on the tag check:
	// the hash of "&amp;" and "&" must come out identical.
	text = html.UnescapeString(text)
	return tidyParagraphs(text), nil
}

var blankLine = regexp.MustCompile(`\n\s*\n`)

// tidyParagraphs trims each paragraph and normalizes paragraph separators
// to exactly one blank line.
func tidyParagraphs(text string) string {
	parts := blankLine.Split(text, -1)
	out := parts[:0]
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return strings.Join(out, "\n\n")
}

// Length buckets for the quality score.
const (
	substantialAnswerChars = 200
	thoroughAnswerChars    = 800
)

// Score computes a weighted content-quality score in [0,1] over structural
// completeness, community signals, and answer length.
func Score(raw models.RawDocument, answerLen int) float64 {
	var s float64

	// Structural completeness.
	if strings.TrimSpace(raw.Question) != "" {
		s += 0.10
	}
	if answerLen > 0 {
		s += 0.10
	}
	if raw.Author != "" {
		s += 0.05
	}
	if !raw.PostedAt.IsZero() {
		s += 0.05
	}

	// Community signals.
	if raw.Score > 0 {
		s += 0.10
	}
	if raw.Score >= 10 {
		s += 0.05
	}
	if raw.Accepted {
		s += 0.15
	}

	// Length buckets.
	if answerLen >= substantialAnswerChars {
		s += 0.20
	}
	if answerLen >= thoroughAnswerChars {
		s += 0.20
	}

	return s
}
