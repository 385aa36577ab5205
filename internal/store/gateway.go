package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"syscall"
	"time"

	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// GatewayConfig holds retry policy for the resilient gateway.
type GatewayConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// Gateway wraps a Store with a bounded retry loop for transient
// connectivity failures (refused connections, DNS errors, terminated
// connections). All other errors propagate after a single attempt. It
// holds no locks: write safety is delegated to the store's unique
// constraints.
type Gateway struct {
	inner Store
	cfg   GatewayConfig
}

// NewGateway wraps inner with the retry policy.
func NewGateway(inner Store, cfg GatewayConfig) *Gateway {
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 4
	}
	if cfg.BaseDelay == 0 {
		cfg.BaseDelay = 250 * time.Millisecond
	}
	if cfg.MaxDelay == 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	return &Gateway{inner: inner, cfg: cfg}
}

// do runs fn with geometric backoff on transient errors. Exhausting the
// attempts yields ErrPersistenceUnavailable.
func (g *Gateway) do(ctx context.Context, op string, fn func() error) error {
	delay := g.cfg.BaseDelay
	var lastErr error

	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		if !IsTransientConnError(err) {
			return err
		}
		lastErr = err
		slog.Warn("store operation failed, retrying",
			"op", op, "attempt", attempt, "max_attempts", g.cfg.MaxAttempts, "error", err)

		if attempt == g.cfg.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return fmt.Errorf("%s: %w", op, ctx.Err())
		case <-time.After(delay):
		}
		delay *= 2
		if delay > g.cfg.MaxDelay {
			delay = g.cfg.MaxDelay
		}
	}

	return fmt.Errorf("%s after %d attempts: %w (last: %v)",
		op, g.cfg.MaxAttempts, ErrPersistenceUnavailable, lastErr)
}

// IsTransientConnError reports whether err looks like a recoverable
// connectivity failure rather than a logical error.
func IsTransientConnError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

func (g *Gateway) Ping(ctx context.Context) error {
	return g.do(ctx, "ping", func() error { return g.inner.Ping(ctx) })
}

func (g *Gateway) FindByURL(ctx context.Context, url string) (*models.Article, error) {
	var a *models.Article
	err := g.do(ctx, "find by url", func() (err error) {
		a, err = g.inner.FindByURL(ctx, url)
		return err
	})
	return a, err
}

func (g *Gateway) FindBySlug(ctx context.Context, slug string) (*models.Article, error) {
	var a *models.Article
	err := g.do(ctx, "find by slug", func() (err error) {
		a, err = g.inner.FindBySlug(ctx, slug)
		return err
	})
	return a, err
}

func (g *Gateway) FindByContentHash(ctx context.Context, hash string) (*models.Article, error) {
	var a *models.Article
	err := g.do(ctx, "find by hash", func() (err error) {
		a, err = g.inner.FindByContentHash(ctx, hash)
		return err
	})
	return a, err
}

func (g *Gateway) CreateArticle(ctx context.Context, article *models.Article) error {
	return g.do(ctx, "create article", func() error {
		return g.inner.CreateArticle(ctx, article)
	})
}

func (g *Gateway) UpdateArticle(ctx context.Context, id int64, update ArticleUpdate) error {
	return g.do(ctx, "update article", func() error {
		return g.inner.UpdateArticle(ctx, id, update)
	})
}

func (g *Gateway) ReplaceParagraphs(ctx context.Context, articleID int64, paragraphs []ParagraphInput) error {
	return g.do(ctx, "replace paragraphs", func() error {
		return g.inner.ReplaceParagraphs(ctx, articleID, paragraphs)
	})
}

func (g *Gateway) ListEmbedded(ctx context.Context, platform string) ([]ParagraphHit, error) {
	var hits []ParagraphHit
	err := g.do(ctx, "list embedded", func() (err error) {
		hits, err = g.inner.ListEmbedded(ctx, platform)
		return err
	})
	return hits, err
}

func (g *Gateway) CountActive(ctx context.Context) (int64, error) {
	var n int64
	err := g.do(ctx, "count active", func() (err error) {
		n, err = g.inner.CountActive(ctx)
		return err
	})
	return n, err
}

func (g *Gateway) Close() error {
	return g.inner.Close()
}
