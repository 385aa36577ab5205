// Package embed wraps the embedding-generation service behind a
// one-text-in, one-vector-out client.
package embed

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/sashabaranov/go-openai"
)

// MaxInputChars bounds input size to stay inside the embedding model's
// context window. Longer text is truncated from the end.
const MaxInputChars = 8000

// Config holds embedding client configuration.
type Config struct {
	BaseURL    string // OpenAI-compatible endpoint; empty means api.openai.com
	APIKey     string
	Model      string
	Dimensions int // expected vector dimensionality; 0 disables the check
}

// Client generates fixed-length embedding vectors through an
// OpenAI-compatible embeddings API. Callers tolerate per-call failure:
// one failed paragraph never aborts a batch.
type Client struct {
	api        *openai.Client
	model      string
	dimensions int
}

// New creates an embedding client.
func New(config Config) (*Client, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("embedding model is required")
	}

	apiConfig := openai.DefaultConfig(config.APIKey)
	if config.BaseURL != "" {
		apiConfig.BaseURL = config.BaseURL
	}

	return &Client{
		api:        openai.NewClientWithConfig(apiConfig),
		model:      config.Model,
		dimensions: config.Dimensions,
	}, nil
}

// Embed generates the embedding vector for one text.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	if len(text) > MaxInputChars {
		slog.Debug("truncating embedding input", "original_len", len(text), "max", MaxInputChars)
		text = text[:MaxInputChars]
	}

	resp, err := c.api.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: []string{text},
		Model: openai.EmbeddingModel(c.model),
	})
	if err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}

	vector := resp.Data[0].Embedding
	if c.dimensions > 0 && len(vector) != c.dimensions {
		return nil, fmt.Errorf("embedding has %d dimensions, expected %d", len(vector), c.dimensions)
	}
	return vector, nil
}

// Dimensions returns the configured vector dimensionality.
func (c *Client) Dimensions() int {
	return c.dimensions
}
