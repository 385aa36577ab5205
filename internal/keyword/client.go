// Package keyword maintains a text-search mirror of admitted articles in
// Elasticsearch. It keeps articles without embeddings reachable and backs
// the retrieval engine's keyword fallback. The mirror is best-effort:
// indexing failures are logged, never fatal to ingestion.
package keyword

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/elastic/go-elasticsearch/v8"

	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses []string
	Index     string
	Username  string
	Password  string
}

// Client wraps the Elasticsearch client with article operations.
type Client struct {
	es    *elasticsearch.Client
	index string
}

// New creates an Elasticsearch-backed keyword client.
func New(config Config) (*Client, error) {
	es, err := elasticsearch.NewClient(elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}
	return &Client{es: es, index: config.Index}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

var indexMapping = `{
	"mappings": {
		"properties": {
			"id": { "type": "long" },
			"url": { "type": "keyword" },
			"slug": { "type": "keyword" },
			"question": { "type": "text", "analyzer": "english" },
			"answer": { "type": "text", "analyzer": "english" },
			"platform": { "type": "keyword" },
			"category": { "type": "keyword" },
			"content_type": { "type": "keyword" },
			"language": { "type": "keyword" },
			"updated_at": { "type": "date" }
		}
	}
}`

// EnsureIndex creates the index with its mapping if it does not exist.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(bytes.NewReader([]byte(indexMapping))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}
	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// IndexArticle upserts one article into the mirror, keyed by a
// deterministic hash of its URL so re-crawls overwrite in place.
func (c *Client) IndexArticle(ctx context.Context, article models.Article) error {
	data, err := json.Marshal(article)
	if err != nil {
		return fmt.Errorf("failed to marshal article: %w", err)
	}

	res, err := c.es.Index(
		c.index,
		bytes.NewReader(data),
		c.es.Index.WithContext(ctx),
		c.es.Index.WithDocumentID(models.DocumentID(article.URL)),
	)
	if err != nil {
		return fmt.Errorf("failed to index article: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error indexing article (status %d): %s", res.StatusCode, res.String())
	}
	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.Article `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

// Search performs a BM25 text search over question and answer, optionally
// filtered by platform.
func (c *Client) Search(ctx context.Context, query, platform string, limit int) ([]models.Article, error) {
	match := map[string]any{
		"multi_match": map[string]any{
			"query":  query,
			"fields": []string{"question^2", "answer"},
		},
	}

	var q map[string]any
	if platform != "" {
		q = map[string]any{
			"bool": map[string]any{
				"must":   match,
				"filter": map[string]any{"term": map[string]any{"platform": platform}},
			},
		}
	} else {
		q = match
	}

	body := map[string]any{"query": q, "size": limit}
	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("search error: %s", res.String())
	}

	var sr searchResponse
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	articles := make([]models.Article, len(sr.Hits.Hits))
	for i, hit := range sr.Hits.Hits {
		articles[i] = hit.Source
	}
	return articles, nil
}
