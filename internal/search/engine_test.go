package search

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/wanderdesk/wanderdesk/internal/store"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

type fixedEmbedder struct {
	vector []float32
	err    error
}

func (e fixedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	return e.vector, e.err
}

type listStore struct {
	store.Store

	hits []store.ParagraphHit
	err  error
}

func (s *listStore) ListEmbedded(ctx context.Context, platform string) ([]store.ParagraphHit, error) {
	if platform == "" {
		return s.hits, s.err
	}
	var filtered []store.ParagraphHit
	for _, h := range s.hits {
		if h.Article.Platform == platform {
			filtered = append(filtered, h)
		}
	}
	return filtered, s.err
}

type fakeKeyword struct {
	articles []models.Article
	err      error
	called   bool
}

func (k *fakeKeyword) Search(ctx context.Context, query, platform string, limit int) ([]models.Article, error) {
	k.called = true
	return k.articles, k.err
}

func hit(articleID int64, platform, text string, vec []float32, updated time.Time) store.ParagraphHit {
	return store.ParagraphHit{
		Paragraph: models.ArticleParagraph{ArticleID: articleID, Text: text, Embedding: vec},
		Article:   models.Article{ID: articleID, Platform: platform, UpdatedAt: updated},
	}
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name string
		a, b []float32
		want float64
	}{
		{"identical vectors", []float32{1, 2, 3}, []float32{1, 2, 3}, 1.0},
		{"orthogonal vectors", []float32{1, 0}, []float32{0, 1}, 0.0},
		{"opposite vectors", []float32{1, 0}, []float32{-1, 0}, -1.0},
		{"scaled vectors", []float32{1, 1}, []float32{3, 3}, 1.0},
		{"dimension mismatch", []float32{1, 0}, []float32{1, 0, 0}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
		{"empty vectors", nil, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CosineSimilarity(tt.a, tt.b)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("CosineSimilarity() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSearch_IdenticalVectorRanksFirstWithScoreOne(t *testing.T) {
	queryVec := []float32{0.6, 0.8, 0}
	now := time.Now()
	st := &listStore{hits: []store.ParagraphHit{
		hit(1, "airbnb", "an unrelated paragraph about fees", []float32{0, 0.2, 0.9}, now),
		hit(2, "airbnb", "the exact matching paragraph", queryVec, now),
		hit(3, "airbnb", "a nearby paragraph", []float32{0.5, 0.8, 0.1}, now),
	}}

	engine := New(fixedEmbedder{vector: queryVec}, st, nil)

	results, err := engine.Search(t.Context(), "query", "", 3)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("Search() returned %d results, want 3", len(results))
	}
	if results[0].Article.ID != 2 {
		t.Errorf("top result article = %d, want 2", results[0].Article.ID)
	}
	if math.Abs(results[0].Score-1.0) > 1e-6 {
		t.Errorf("top score = %v, want 1.0", results[0].Score)
	}
}

func TestSearch_TiesBreakByMostRecentUpdate(t *testing.T) {
	vec := []float32{1, 0}
	older := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
	st := &listStore{hits: []store.ParagraphHit{
		hit(1, "viator", "older article paragraph", vec, older),
		hit(2, "viator", "newer article paragraph", vec, newer),
	}}

	engine := New(fixedEmbedder{vector: vec}, st, nil)

	results, err := engine.Search(t.Context(), "query", "", 2)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if results[0].Article.ID != 2 {
		t.Errorf("tie should rank newer article first, got article %d", results[0].Article.ID)
	}
}

func TestSearch_PlatformFilter(t *testing.T) {
	vec := []float32{1, 0}
	now := time.Now()
	st := &listStore{hits: []store.ParagraphHit{
		hit(1, "airbnb", "airbnb answer", vec, now),
		hit(2, "viator", "viator answer", vec, now),
	}}

	engine := New(fixedEmbedder{vector: vec}, st, nil)

	results, err := engine.Search(t.Context(), "query", "viator", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 1 || results[0].Article.ID != 2 {
		t.Errorf("platform filter returned wrong results: %+v", results)
	}
}

func TestSearch_TruncatesToTopK(t *testing.T) {
	vec := []float32{1, 0}
	st := &listStore{}
	for i := int64(1); i <= 20; i++ {
		st.hits = append(st.hits, hit(i, "airbnb", "paragraph", vec, time.Now()))
	}

	engine := New(fixedEmbedder{vector: vec}, st, nil)

	results, err := engine.Search(t.Context(), "query", "", 5)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(results) != 5 {
		t.Errorf("Search() returned %d results, want 5", len(results))
	}
}

func TestSearch_KeywordFallbackWhenEmbeddingFails(t *testing.T) {
	kw := &fakeKeyword{articles: []models.Article{{ID: 9, Answer: "keyword matched answer"}}}
	engine := New(fixedEmbedder{err: errors.New("embedding service down")}, &listStore{}, kw)

	results, err := engine.Search(t.Context(), "query", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v, want keyword fallback", err)
	}
	if !kw.called {
		t.Fatal("keyword fallback was not used")
	}
	if len(results) != 1 || results[0].Article.ID != 9 {
		t.Errorf("fallback results = %+v", results)
	}
}

func TestSearch_EmbeddingFailureWithoutFallbackIsError(t *testing.T) {
	engine := New(fixedEmbedder{err: errors.New("embedding service down")}, &listStore{}, nil)

	if _, err := engine.Search(t.Context(), "query", "", 10); err == nil {
		t.Error("Search() should fail when embedding fails and no fallback exists")
	}
}

func TestSearch_EmptyCorpusFallsBack(t *testing.T) {
	kw := &fakeKeyword{articles: []models.Article{{ID: 3}}}
	engine := New(fixedEmbedder{vector: []float32{1, 0}}, &listStore{}, kw)

	results, err := engine.Search(t.Context(), "query", "", 10)
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if !kw.called || len(results) != 1 {
		t.Errorf("empty corpus should fall back to keyword search, got %+v", results)
	}
}
