package sources

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/wanderdesk/wanderdesk/internal/fetch"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

type stubAdapter struct {
	name string
}

func (s *stubAdapter) Name() string { return s.name }
func (s *stubAdapter) Discover(context.Context) ([]Candidate, error) {
	return nil, nil
}
func (s *stubAdapter) FetchOne(context.Context, Candidate) (models.RawDocument, error) {
	return models.RawDocument{}, nil
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{name: "reddit"})
	r.Register(&stubAdapter{name: "stackoverflow"})

	a, err := r.Lookup("reddit")
	if err != nil {
		t.Fatalf("Lookup() error = %v", err)
	}
	if a.Name() != "reddit" {
		t.Errorf("Name() = %q, want reddit", a.Name())
	}

	if _, err := r.Lookup("nope"); err == nil {
		t.Error("expected error for unknown source")
	}
}

func TestRegistryNamesSorted(t *testing.T) {
	r := NewRegistry()
	r.Register(&stubAdapter{name: "stackoverflow"})
	r.Register(&stubAdapter{name: "helpcenter-airbnb"})
	r.Register(&stubAdapter{name: "reddit"})

	names := r.Names()
	want := []string{"helpcenter-airbnb", "reddit", "stackoverflow"}
	if len(names) != len(want) {
		t.Fatalf("Names() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestThrottlePenalizeGrowsAndCaps(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		BackoffBase: 10 * time.Millisecond,
		BackoffMax:  35 * time.Millisecond,
	})

	if th.Backoff() != 0 {
		t.Fatalf("initial backoff = %v, want 0", th.Backoff())
	}

	th.Penalize()
	if th.Backoff() != 10*time.Millisecond {
		t.Errorf("backoff after first penalty = %v, want 10ms", th.Backoff())
	}
	th.Penalize()
	if th.Backoff() != 20*time.Millisecond {
		t.Errorf("backoff after second penalty = %v, want 20ms", th.Backoff())
	}
	th.Penalize()
	if th.Backoff() != 35*time.Millisecond {
		t.Errorf("backoff should cap at 35ms, got %v", th.Backoff())
	}

	th.Reset()
	if th.Backoff() != 0 {
		t.Errorf("backoff after reset = %v, want 0", th.Backoff())
	}
}

func TestThrottleWaitRespectsContext(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		MinDelay: time.Minute,
		MaxDelay: 2 * time.Minute,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := th.Wait(ctx)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait() error = %v, want deadline exceeded", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("Wait() took %v, should return on cancellation", elapsed)
	}
}

func TestFetchThrottledRetriesOnThrottle(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		BackoffBase: time.Millisecond,
	})

	calls := 0
	got, err := fetchThrottled(context.Background(), "test", th, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &fetch.HTTPStatusError{URL: "http://x", Code: 429}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("fetchThrottled() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if th.Backoff() != 0 {
		t.Errorf("backoff not reset after success: %v", th.Backoff())
	}
}

func TestFetchThrottledGivesUpAfterMaxRetries(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		BackoffBase: time.Millisecond,
	})

	calls := 0
	_, err := fetchThrottled(context.Background(), "test", th, func() (string, error) {
		calls++
		return "", &fetch.BlockedError{URL: "http://x", Reason: "captcha"}
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if calls != maxThrottleRetries+1 {
		t.Errorf("calls = %d, want %d", calls, maxThrottleRetries+1)
	}
}

func TestFetchThrottledRetriesTransientWithoutPenalty(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		MinDelay:    time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		BackoffBase: time.Minute, // a penalty here would stall the test
	})

	calls := 0
	got, err := fetchThrottled(context.Background(), "test", th, func() (string, error) {
		calls++
		if calls < 3 {
			return "", &fetch.NetworkError{URL: "http://x", Err: errors.New("connection reset")}
		}
		return "ok", nil
	})
	if err != nil {
		t.Fatalf("fetchThrottled() error = %v", err)
	}
	if got != "ok" {
		t.Errorf("result = %q, want ok", got)
	}
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
}

func TestFetchThrottledNonThrottleFailsImmediately(t *testing.T) {
	th := NewThrottle(ThrottleConfig{
		MinDelay: time.Millisecond,
		MaxDelay: 2 * time.Millisecond,
	})

	calls := 0
	_, err := fetchThrottled(context.Background(), "test", th, func() (string, error) {
		calls++
		return "", &fetch.HTTPStatusError{URL: "http://x", Code: 500}
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry for non-throttle errors)", calls)
	}
}
