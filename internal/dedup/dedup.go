// Package dedup decides whether a normalized document is new content, a
// refresh of a known URL, or a duplicate of existing content.
package dedup

import (
	"context"
	"fmt"

	"github.com/wanderdesk/wanderdesk/internal/store"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// Decision is the outcome of a dedup check.
type Decision int

const (
	// DecisionNew admits the document as a fresh, non-duplicate article.
	DecisionNew Decision = iota
	// DecisionRefresh means the URL is already known: update the existing
	// article's content rather than creating a row.
	DecisionRefresh
	// DecisionDuplicate means different URL, same content hash: admit the
	// article flagged as a duplicate and skip embedding it.
	DecisionDuplicate
)

func (d Decision) String() string {
	switch d {
	case DecisionNew:
		return "new"
	case DecisionRefresh:
		return "refresh"
	case DecisionDuplicate:
		return "duplicate"
	}
	return "unknown"
}

// Result carries the decision plus the matched article, if any.
type Result struct {
	Decision Decision
	Existing *models.Article
}

// Deduplicator checks candidate documents against the corpus.
//
// The check is best-effort, not atomic: two concurrent crawls can both
// pass it before either writes. The store's unique URL constraint is the
// final authority; callers convert ErrDuplicateKey on insert into the
// duplicate path instead of failing.
type Deduplicator struct {
	store store.Store
}

// New creates a deduplicator backed by the given store.
func New(s store.Store) *Deduplicator {
	return &Deduplicator{store: s}
}

// Check applies the decision table: same URL wins over same hash, and a
// document matching neither is new.
func (d *Deduplicator) Check(ctx context.Context, doc models.NormalizedDocument) (Result, error) {
	existing, err := d.store.FindByURL(ctx, doc.Raw.URL)
	if err != nil {
		return Result{}, fmt.Errorf("dedup url lookup: %w", err)
	}
	if existing != nil {
		return Result{Decision: DecisionRefresh, Existing: existing}, nil
	}

	original, err := d.store.FindByContentHash(ctx, doc.ContentHash)
	if err != nil {
		return Result{}, fmt.Errorf("dedup hash lookup: %w", err)
	}
	if original != nil {
		return Result{Decision: DecisionDuplicate, Existing: original}, nil
	}

	return Result{Decision: DecisionNew}, nil
}
