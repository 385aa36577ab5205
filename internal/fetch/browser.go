package fetch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

// BrowserConfig holds headless-browser fetcher configuration.
type BrowserConfig struct {
	Headless bool
	Timeout  time.Duration
}

// Browser fetches JavaScript-rendered pages through headless Chrome.
// Subresource requests that do not contribute to content (images, fonts,
// stylesheets, media) are intercepted and aborted to keep per-page cost
// down, and native JS dialogs are dismissed automatically so a page can
// never block the crawl.
//
// Like Client, it performs exactly one fetch per call and never retries.
type Browser struct {
	config   BrowserConfig
	launcher *launcher.Launcher
	browser  *rod.Browser
}

// NewBrowser launches a headless browser instance.
func NewBrowser(config BrowserConfig) (*Browser, error) {
	if config.Timeout == 0 {
		config.Timeout = 45 * time.Second
	}

	l := launcher.New().Headless(config.Headless)
	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL)
	if err := browser.Connect(); err != nil {
		l.Cleanup()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	slog.Debug("browser launched", "headless", config.Headless)

	return &Browser{
		config:   config,
		launcher: l,
		browser:  browser,
	}, nil
}

// Fetch navigates to url, waits for the page (and optionally waitSelector)
// to render, and returns the rendered HTML.
func (b *Browser) Fetch(ctx context.Context, url, waitSelector string) (string, error) {
	page, err := b.browser.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return "", &NetworkError{URL: url, Err: err}
	}
	defer page.Close()

	page = page.Context(ctx).Timeout(b.config.Timeout)

	// Abort non-essential subresources before navigation.
	router := page.HijackRequests()
	err = router.Add("*", "", func(h *rod.Hijack) {
		switch h.Request.Type() {
		case proto.NetworkResourceTypeImage,
			proto.NetworkResourceTypeFont,
			proto.NetworkResourceTypeStylesheet,
			proto.NetworkResourceTypeMedia:
			h.Response.Fail(proto.NetworkErrorReasonBlockedByClient)
		default:
			h.ContinueRequest(&proto.FetchContinueRequest{})
		}
	})
	if err != nil {
		return "", &NetworkError{URL: url, Err: err}
	}
	go router.Run()
	defer router.Stop()

	// Dismiss any native dialog the page opens.
	go page.EachEvent(func(e *proto.PageJavascriptDialogOpening) {
		slog.Debug("dismissing dialog", "url", url, "type", e.Type)
		_ = proto.PageHandleJavaScriptDialog{Accept: false}.Call(page)
	})()

	if err := page.Navigate(url); err != nil {
		return "", b.classify(url, err)
	}
	if err := page.WaitLoad(); err != nil {
		return "", b.classify(url, err)
	}
	if waitSelector != "" {
		if _, err := page.Element(waitSelector); err != nil {
			return "", b.classify(url, err)
		}
	}

	html, err := page.HTML()
	if err != nil {
		return "", b.classify(url, err)
	}

	if looksLikeChallenge([]byte(html)) {
		return "", &BlockedError{URL: url, Reason: "challenge page"}
	}

	slog.Debug("rendered page", "url", url, "size", len(html))
	return html, nil
}

// Close shuts down the browser and cleans up the launcher's user data dir.
func (b *Browser) Close() {
	if err := b.browser.Close(); err != nil {
		slog.Warn("failed to close browser", "error", err)
	}
	b.launcher.Cleanup()
}

func (b *Browser) classify(url string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &TimeoutError{URL: url}
	}
	return &NetworkError{URL: url, Err: err}
}
