// Package sources contains one adapter per external platform family. An
// adapter encapsulates a source's shape: how to discover candidate items
// and how to fetch one item as a normalized raw document.
package sources

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sort"
	"time"

	"github.com/wanderdesk/wanderdesk/internal/fetch"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// Candidate is one discovered item an adapter can fetch.
type Candidate struct {
	ID    string
	URL   string
	Title string
	Meta  map[string]string
}

// Adapter is the capability interface every source implements. Discover
// enumerates candidates (bounded by per-source caps); FetchOne retrieves a
// single candidate as a RawDocument. Adapters self-throttle and never run
// concurrent fetches against their own target.
type Adapter interface {
	Name() string
	Discover(ctx context.Context) ([]Candidate, error)
	FetchOne(ctx context.Context, c Candidate) (models.RawDocument, error)
}

// Registry holds the closed set of configured adapters, selected by name
// at orchestration time.
type Registry struct {
	adapters map[string]Adapter
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[string]Adapter)}
}

// Register adds an adapter under its name.
func (r *Registry) Register(a Adapter) {
	r.adapters[a.Name()] = a
}

// Lookup returns the adapter with the given name.
func (r *Registry) Lookup(name string) (Adapter, error) {
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("unknown source %q", name)
	}
	return a, nil
}

// Names returns all registered adapter names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ThrottleConfig holds per-source rate limiting parameters.
type ThrottleConfig struct {
	MinDelay    time.Duration // lower bound of the randomized inter-request delay
	MaxDelay    time.Duration // upper bound
	BackoffBase time.Duration // first backoff step after being throttled
	BackoffMax  time.Duration // backoff cap
}

// Throttle paces requests against one source. The inter-request delay is
// drawn uniformly from [MinDelay, MaxDelay] rather than fixed, which keeps
// the request pattern irregular. Being throttled by the target grows an
// additional exponential backoff component until a request succeeds.
type Throttle struct {
	cfg     ThrottleConfig
	backoff time.Duration
	rng     *rand.Rand
}

// NewThrottle creates a throttle with the given window.
func NewThrottle(cfg ThrottleConfig) *Throttle {
	if cfg.MinDelay == 0 {
		cfg.MinDelay = 500 * time.Millisecond
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = cfg.MinDelay * 3
	}
	if cfg.BackoffBase == 0 {
		cfg.BackoffBase = 2 * time.Second
	}
	if cfg.BackoffMax == 0 {
		cfg.BackoffMax = 2 * time.Minute
	}
	return &Throttle{
		cfg: cfg,
		rng: rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Wait sleeps for the randomized delay plus any accumulated backoff, or
// returns early when ctx is cancelled.
func (t *Throttle) Wait(ctx context.Context) error {
	window := t.cfg.MaxDelay - t.cfg.MinDelay
	delay := t.cfg.MinDelay
	if window > 0 {
		delay += time.Duration(t.rng.Int63n(int64(window)))
	}
	delay += t.backoff

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}

// Penalize grows the backoff component after the source throttled us.
func (t *Throttle) Penalize() {
	if t.backoff == 0 {
		t.backoff = t.cfg.BackoffBase
		return
	}
	t.backoff *= 2
	if t.backoff > t.cfg.BackoffMax {
		t.backoff = t.cfg.BackoffMax
	}
}

// Reset clears the backoff after a successful request.
func (t *Throttle) Reset() {
	t.backoff = 0
}

// Backoff exposes the current backoff component, for tests and logging.
func (t *Throttle) Backoff() time.Duration {
	return t.backoff
}

// maxThrottleRetries bounds how often one item is retried after the
// source throttles us before the item is given up on.
const maxThrottleRetries = 3

// fetchThrottled paces one fetch attempt with the throttle and retries
// transient failures: growing backoff when the source signals throttling,
// a plain re-pace for network errors and timeouts. Permanent failures are
// returned as-is for the caller to log and skip.
func fetchThrottled[T any](ctx context.Context, name string, t *Throttle, fn func() (T, error)) (T, error) {
	var zero T
	for attempt := 0; ; attempt++ {
		if err := t.Wait(ctx); err != nil {
			return zero, err
		}

		v, err := fn()
		if err == nil {
			t.Reset()
			return v, nil
		}
		if !fetch.IsTransient(err) || attempt == maxThrottleRetries {
			return zero, err
		}

		if fetch.IsThrottle(err) {
			t.Penalize()
			slog.Warn("source throttled us, backing off",
				"source", name, "attempt", attempt+1, "backoff", t.Backoff(), "error", err)
			continue
		}
		slog.Warn("transient fetch failure, retrying",
			"source", name, "attempt", attempt+1, "error", err)
	}
}
