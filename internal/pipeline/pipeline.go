// Package pipeline orchestrates a crawl run: discovery and fetch through
// the configured source adapters, normalization, deduplication,
// persistence, and paragraph indexing.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/wanderdesk/wanderdesk/internal/archive"
	"github.com/wanderdesk/wanderdesk/internal/dedup"
	"github.com/wanderdesk/wanderdesk/internal/fetch"
	"github.com/wanderdesk/wanderdesk/internal/index"
	"github.com/wanderdesk/wanderdesk/internal/keyword"
	"github.com/wanderdesk/wanderdesk/internal/normalize"
	"github.com/wanderdesk/wanderdesk/internal/sources"
	"github.com/wanderdesk/wanderdesk/internal/store"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// Outcome classifies what happened to one fetched item.
type Outcome int

const (
	// OutcomeAdmitted means a new article was stored and indexed.
	OutcomeAdmitted Outcome = iota
	// OutcomeRefreshed means an existing article was updated in place.
	OutcomeRefreshed
	// OutcomeDuplicate means the content already exists under another URL.
	OutcomeDuplicate
	// OutcomeRejected means normalization refused the item.
	OutcomeRejected
	// OutcomeFailed means fetching or storing the item failed.
	OutcomeFailed
)

func (o Outcome) String() string {
	switch o {
	case OutcomeAdmitted:
		return "admitted"
	case OutcomeRefreshed:
		return "refreshed"
	case OutcomeDuplicate:
		return "duplicate"
	case OutcomeRejected:
		return "rejected"
	case OutcomeFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SourceReport tallies the outcomes of one adapter's run.
type SourceReport struct {
	Source     string
	Discovered int
	Admitted   int
	Refreshed  int
	Duplicates int
	Rejected   int
	Failed     int
	Err        error // discovery failure or early abort, nil otherwise
}

func (r *SourceReport) tally(o Outcome) {
	switch o {
	case OutcomeAdmitted:
		r.Admitted++
	case OutcomeRefreshed:
		r.Refreshed++
	case OutcomeDuplicate:
		r.Duplicates++
	case OutcomeRejected:
		r.Rejected++
	case OutcomeFailed:
		r.Failed++
	}
}

func (r *SourceReport) processed() int {
	return r.Admitted + r.Refreshed + r.Duplicates + r.Rejected + r.Failed
}

// Report summarizes a full crawl run.
type Report struct {
	Sources  []SourceReport
	Duration time.Duration
}

// Config holds orchestration limits.
type Config struct {
	MaxConcurrentSources int           // adapters running at once
	SourceTimeout        time.Duration // wall-clock cap per adapter
}

// Pipeline wires the crawl stages together. The keyword mirror and the
// raw archive are optional; everything else is required.
type Pipeline struct {
	config     Config
	registry   *sources.Registry
	normalizer *normalize.Normalizer
	deduper    *dedup.Deduplicator
	store      store.Store
	indexer    *index.Indexer
	keyword    *keyword.Client // nil disables the keyword mirror
	archive    *archive.Client // nil disables raw archiving
}

// New creates a pipeline over the given stages.
func New(config Config, registry *sources.Registry, normalizer *normalize.Normalizer,
	s store.Store, indexer *index.Indexer, kw *keyword.Client, ar *archive.Client) *Pipeline {
	if config.MaxConcurrentSources == 0 {
		config.MaxConcurrentSources = 3
	}
	if config.SourceTimeout == 0 {
		config.SourceTimeout = 30 * time.Minute
	}
	return &Pipeline{
		config:     config,
		registry:   registry,
		normalizer: normalizer,
		deduper:    dedup.New(s),
		store:      s,
		indexer:    indexer,
		keyword:    kw,
		archive:    ar,
	}
}

// Run executes a crawl over the named sources. Adapters run with bounded
// parallelism; items within one adapter are strictly sequential. Only a
// persistence outage aborts the whole run; every other failure is
// isolated to its source or item and tallied in the report.
func (p *Pipeline) Run(ctx context.Context, sourceNames []string) (*Report, error) {
	start := time.Now()

	adapters := make([]sources.Adapter, 0, len(sourceNames))
	for _, name := range sourceNames {
		a, err := p.registry.Lookup(name)
		if err != nil {
			return nil, err
		}
		adapters = append(adapters, a)
	}

	if p.keyword != nil {
		if err := p.keyword.EnsureIndex(ctx); err != nil {
			slog.Warn("keyword index unavailable, continuing without mirror", "error", err)
		}
	}
	if p.archive != nil {
		if err := p.archive.EnsureBucket(ctx); err != nil {
			slog.Warn("archive unavailable, continuing without raw snapshots", "error", err)
		}
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		mu       sync.Mutex
		fatalErr error
		reports  = make([]SourceReport, len(adapters))
		sem      = make(chan struct{}, p.config.MaxConcurrentSources)
		wg       sync.WaitGroup
	)

	for i, adapter := range adapters {
		wg.Add(1)
		go func(i int, adapter sources.Adapter) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			report, fatal := p.runSource(runCtx, adapter)
			mu.Lock()
			reports[i] = report
			if fatal != nil && fatalErr == nil {
				fatalErr = fatal
				cancel()
			}
			mu.Unlock()
		}(i, adapter)
	}
	wg.Wait()

	if fatalErr != nil {
		return nil, fatalErr
	}

	report := &Report{Sources: reports, Duration: time.Since(start)}
	for _, sr := range report.Sources {
		slog.Info("source run complete",
			"source", sr.Source, "discovered", sr.Discovered,
			"admitted", sr.Admitted, "refreshed", sr.Refreshed,
			"duplicates", sr.Duplicates, "rejected", sr.Rejected,
			"failed", sr.Failed)
	}

	if p.keyword != nil {
		p.keyword.Refresh(ctx)
	}
	return report, nil
}

// runSource drives one adapter to completion. The returned fatal error is
// non-nil only for a persistence outage, which must abort the whole run.
func (p *Pipeline) runSource(ctx context.Context, adapter sources.Adapter) (SourceReport, error) {
	report := SourceReport{Source: adapter.Name()}

	srcCtx, cancel := context.WithTimeout(ctx, p.config.SourceTimeout)
	defer cancel()

	candidates, err := adapter.Discover(srcCtx)
	if err != nil && len(candidates) == 0 {
		slog.Error("discovery failed", "source", adapter.Name(), "error", err)
		report.Err = fmt.Errorf("discovery: %w", err)
		return report, nil
	}
	report.Discovered = len(candidates)

	var prefix string
	var archived []string
	if p.archive != nil {
		prefix = archive.NewRunPrefix(adapter.Name())
	}

	// Cancellation is honored between items only: an item whose fetch has
	// started runs all its stages to completion and gets persisted, so the
	// item context is detached from the run's cancel. The per-source
	// deadline still bounds it.
	itemCtx := context.WithoutCancel(srcCtx)
	if deadline, ok := srcCtx.Deadline(); ok {
		var cancelItems context.CancelFunc
		itemCtx, cancelItems = context.WithDeadline(itemCtx, deadline)
		defer cancelItems()
	}

	for _, c := range candidates {
		if srcCtx.Err() != nil {
			report.Err = srcCtx.Err()
			break
		}

		outcome, itemErr := p.processItem(itemCtx, adapter, c, prefix)
		report.tally(outcome)

		if itemErr == nil {
			if p.archive != nil && outcome != OutcomeFailed {
				archived = append(archived, c.URL)
			}
			continue
		}
		if errors.Is(itemErr, store.ErrPersistenceUnavailable) {
			return report, itemErr
		}
		if fetch.IsBlocked(itemErr) {
			// A source that blocks us stays blocked; give up on its
			// remaining items without touching other sources.
			slog.Warn("source blocked us, abandoning remaining items",
				"source", adapter.Name(), "remaining", report.Discovered-report.processed())
			report.Err = itemErr
			break
		}
		slog.Warn("item failed", "source", adapter.Name(), "url", c.URL, "error", itemErr)
	}

	if p.archive != nil && len(archived) > 0 {
		meta := archive.RunMetadata{
			Source:    adapter.Name(),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			ItemCount: len(archived),
			URLs:      archived,
		}
		if err := p.archive.PutRunMetadata(itemCtx, prefix, meta); err != nil {
			slog.Warn("failed to write run metadata", "source", adapter.Name(), "error", err)
		}
	}

	return report, nil
}

// processItem runs one candidate through fetch, normalize, dedup, store,
// and index.
func (p *Pipeline) processItem(ctx context.Context, adapter sources.Adapter, c sources.Candidate, prefix string) (Outcome, error) {
	raw, err := adapter.FetchOne(ctx, c)
	if err != nil {
		return OutcomeFailed, err
	}

	if p.archive != nil {
		if err := p.archive.PutRaw(ctx, prefix, raw); err != nil {
			slog.Warn("failed to archive raw document", "url", raw.URL, "error", err)
		}
	}

	norm, err := p.normalizer.Normalize(raw)
	if err != nil {
		var ve *normalize.ValidationError
		if errors.As(err, &ve) {
			slog.Debug("item rejected", "url", raw.URL, "reason", ve.Reason)
			return OutcomeRejected, nil
		}
		return OutcomeFailed, err
	}

	result, err := p.deduper.Check(ctx, norm)
	if err != nil {
		return OutcomeFailed, err
	}

	switch result.Decision {
	case dedup.DecisionRefresh:
		return p.refresh(ctx, result.Existing, norm)
	case dedup.DecisionDuplicate:
		return p.admitDuplicate(ctx, norm, result.Existing)
	default:
		return p.admit(ctx, norm)
	}
}

// admit stores a brand-new article and indexes its paragraphs.
func (p *Pipeline) admit(ctx context.Context, norm models.NormalizedDocument) (Outcome, error) {
	article := buildArticle(norm, false)

	if err := p.store.CreateArticle(ctx, article); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// A concurrent run won the insert race. The constraint is
			// the final arbiter; treat this item as the duplicate it is.
			return OutcomeDuplicate, nil
		}
		return OutcomeFailed, err
	}

	if _, err := p.indexer.Index(ctx, article); err != nil {
		return OutcomeFailed, err
	}
	p.mirror(ctx, *article)

	slog.Debug("article admitted", "slug", article.Slug, "platform", article.Platform)
	return OutcomeAdmitted, nil
}

// admitDuplicate stores the item flagged as a duplicate of existing
// content. Duplicates stay queryable by URL but are never embedded.
func (p *Pipeline) admitDuplicate(ctx context.Context, norm models.NormalizedDocument, original *models.Article) (Outcome, error) {
	article := buildArticle(norm, true)

	if err := p.store.CreateArticle(ctx, article); err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			return OutcomeDuplicate, nil
		}
		return OutcomeFailed, err
	}

	slog.Debug("duplicate flagged", "url", article.URL, "original", original.Slug)
	return OutcomeDuplicate, nil
}

// refresh updates an article found again at its known URL and rebuilds
// its paragraph index when the content actually changed.
func (p *Pipeline) refresh(ctx context.Context, existing *models.Article, norm models.NormalizedDocument) (Outcome, error) {
	status := models.CrawlStatusActive
	update := store.ArticleUpdate{
		Answer:       &norm.Answer,
		ContentHash:  &norm.ContentHash,
		Language:     &norm.Language,
		CrawlStatus:  &status,
		VoteCount:    &norm.Raw.Score,
		Verified:     &norm.Raw.Accepted,
		QualityScore: &norm.QualityScore,
		UpdatedAt:    time.Now().UTC(),
	}
	if err := p.store.UpdateArticle(ctx, existing.ID, update); err != nil {
		return OutcomeFailed, err
	}

	changed := existing.ContentHash != norm.ContentHash
	if changed && !existing.IsDuplicate {
		refreshed := *existing
		refreshed.Answer = norm.Answer
		refreshed.ContentHash = norm.ContentHash
		if _, err := p.indexer.Index(ctx, &refreshed); err != nil {
			return OutcomeFailed, err
		}
		p.mirror(ctx, refreshed)
	}

	slog.Debug("article refreshed", "slug", existing.Slug, "content_changed", changed)
	return OutcomeRefreshed, nil
}

// mirror best-effort copies an article into the keyword index.
func (p *Pipeline) mirror(ctx context.Context, article models.Article) {
	if p.keyword == nil {
		return
	}
	if err := p.keyword.IndexArticle(ctx, article); err != nil {
		slog.Warn("keyword mirror failed", "slug", article.Slug, "error", err)
	}
}

// buildArticle maps a normalized document onto the durable model.
func buildArticle(norm models.NormalizedDocument, duplicate bool) *models.Article {
	now := time.Now().UTC()
	return &models.Article{
		URL:          norm.Raw.URL,
		Slug:         models.Slugify(norm.Raw.Question),
		Question:     norm.Raw.Question,
		Answer:       norm.Answer,
		Platform:     norm.Raw.Platform,
		Category:     norm.Raw.Category,
		ContentType:  norm.Raw.ContentType,
		Source:       norm.Raw.Source,
		Language:     norm.Language,
		ContentHash:  norm.ContentHash,
		IsDuplicate:  duplicate,
		CrawlStatus:  models.CrawlStatusActive,
		VoteCount:    norm.Raw.Score,
		Verified:     norm.Raw.Accepted,
		QualityScore: norm.QualityScore,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}
