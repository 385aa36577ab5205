package fetch

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"
)

// Profile selects the header set sent with each request. Some targets
// reject unknown user agents with 406, others (Cloudflare fronted) block
// browser-like headers but let simple clients through.
type Profile string

const (
	// ProfileBrowser mimics a desktop browser.
	ProfileBrowser Profile = "browser"
	// ProfileAPI sends a plain client identity for JSON endpoints.
	ProfileAPI Profile = "api"
)

// Config holds HTTP fetcher configuration.
type Config struct {
	Profile   Profile
	Timeout   time.Duration
	UserAgent string // overrides the profile's default user agent
}

// Client performs a single rate-limit-agnostic HTTP request per call.
// It never retries; retry and backoff policy belongs to the source adapter.
type Client struct {
	config     Config
	httpClient *http.Client
}

// NewClient creates an HTTP fetcher with the given configuration.
func NewClient(config Config) *Client {
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}
	return &Client{
		config: config,
		httpClient: &http.Client{
			Timeout: config.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 10 {
					return http.ErrUseLastResponse
				}
				return nil
			},
		},
	}
}

// Fetch performs one GET request and returns the raw body, or a typed
// error classifying the failure.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}
	c.setHeaders(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &TimeoutError{URL: url}
		}
		return nil, &NetworkError{URL: url, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &NetworkError{URL: url, Err: err}
	}

	slog.Debug("fetched", "url", url, "status", resp.StatusCode, "size", len(body))

	switch {
	case resp.StatusCode == http.StatusForbidden:
		return nil, &BlockedError{URL: url, Reason: "http 403"}
	case resp.StatusCode == http.StatusOK && looksLikeChallenge(body):
		return nil, &BlockedError{URL: url, Reason: "challenge page"}
	case resp.StatusCode >= 400:
		return nil, &HTTPStatusError{URL: url, Code: resp.StatusCode}
	}

	return body, nil
}

func (c *Client) setHeaders(req *http.Request) {
	switch c.config.Profile {
	case ProfileBrowser:
		req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
		req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
		req.Header.Set("Accept-Language", "en-US,en;q=0.9")
		req.Header.Set("Upgrade-Insecure-Requests", "1")
	case ProfileAPI:
		req.Header.Set("User-Agent", "wanderdesk/1.0")
		req.Header.Set("Accept", "application/json")
	}
	if c.config.UserAgent != "" {
		req.Header.Set("User-Agent", c.config.UserAgent)
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// challengeMarkers are substrings that identify common bot-detection
// interstitials served with a 200 status.
var challengeMarkers = []string{
	"cf-browser-verification",
	"Checking your browser before accessing",
	"Pardon Our Interruption",
	"are you a robot",
	"px-captcha",
}

func looksLikeChallenge(body []byte) bool {
	// Challenge pages are small; skip the scan on real content.
	if len(body) > 64*1024 {
		return false
	}
	s := string(body)
	for _, marker := range challengeMarkers {
		if strings.Contains(s, marker) {
			return true
		}
	}
	return false
}
