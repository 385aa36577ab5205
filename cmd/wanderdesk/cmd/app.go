package cmd

import (
	"context"
	"fmt"

	"github.com/wanderdesk/wanderdesk/internal/config"
	"github.com/wanderdesk/wanderdesk/internal/embed"
	"github.com/wanderdesk/wanderdesk/internal/keyword"
	"github.com/wanderdesk/wanderdesk/internal/store"
)

// openStore connects to Postgres, applies the schema, and wraps the
// connection in the retrying gateway.
func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	pg, err := store.NewPostgres(ctx, store.PostgresConfig{
		DSN:           cfg.Postgres.DSN,
		EmbeddingDims: cfg.Postgres.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}
	if err := pg.EnsureSchema(ctx); err != nil {
		pg.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return store.NewGateway(pg, store.GatewayConfig{}), nil
}

// newEmbedder creates the embedding client from configuration.
func newEmbedder(cfg config.Config) (*embed.Client, error) {
	client, err := embed.New(embed.Config{
		BaseURL:    cfg.Embeddings.BaseURL,
		APIKey:     cfg.Embeddings.APIKey,
		Model:      cfg.Embeddings.Model,
		Dimensions: cfg.Embeddings.Dimensions,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding client: %w", err)
	}
	return client, nil
}

// newKeyword creates the optional keyword-mirror client; nil when the
// mirror is disabled.
func newKeyword(cfg config.Config) (*keyword.Client, error) {
	if !cfg.Elasticsearch.Enabled {
		return nil, nil
	}
	client, err := keyword.New(keyword.Config{
		Addresses: cfg.Elasticsearch.Addresses,
		Index:     cfg.Elasticsearch.Index,
		Username:  cfg.Elasticsearch.Username,
		Password:  cfg.Elasticsearch.Password,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}
	return client, nil
}
