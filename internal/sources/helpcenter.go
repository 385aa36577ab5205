package sources

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"
	"github.com/wanderdesk/wanderdesk/internal/fetch"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// SelectorProfile describes how to locate article content on a
// particular help-center site.
type SelectorProfile struct {
	ArticlePath   string // href substring that marks an article link
	Title         string // selector for the article title
	Body          string // selector for the article body
	Category      string // selector for the breadcrumb / section name
	UpdatedAt     string // optional selector for the last-updated stamp
	UpdatedLayout string // time layout for parsing UpdatedAt text
}

// selectorProfiles holds the built-in per-platform profiles. Platforms
// not listed here fall back to a generic article/heading pair.
var selectorProfiles = map[string]SelectorProfile{
	"airbnb": {
		ArticlePath: "/help/article/",
		Title:       "h1",
		Body:        "div[data-section-id='ARTICLE_BODY'], article",
		Category:    "nav[aria-label='Breadcrumb'] a:last-of-type",
	},
	"viator": {
		ArticlePath: "/help/articles/",
		Title:       "h1.article-title, h1",
		Body:        "div.article-body, article",
		Category:    "ol.breadcrumbs li:nth-last-child(2) a",
	},
	"getyourguide": {
		ArticlePath: "/faq/",
		Title:       "h1",
		Body:        "div.faq-answer, main article",
		Category:    "ul.breadcrumb li:last-child",
	},
	"tripadvisor": {
		ArticlePath: "/articles/",
		Title:       "h1",
		Body:        "div.article-content, article",
		Category:    "div.breadcrumbs a:last-of-type",
	},
}

var genericProfile = SelectorProfile{
	ArticlePath: "/article",
	Title:       "h1",
	Body:        "article, main",
}

// HelpCenterConfig configures a help-center adapter instance.
type HelpCenterConfig struct {
	Platform    string   // "airbnb", "viator", ...
	StartURLs   []string // category index pages to crawl for article links
	PerCategory int      // max articles discovered per start URL
	MaxDepth    int      // colly crawl depth from each start URL
	UserAgent   string
	Timeout     time.Duration
	Throttle    ThrottleConfig
	Profile     *SelectorProfile // override the built-in profile
}

// HelpCenter crawls an official help-center site. Discovery walks the
// category pages with colly collecting article links; fetching pulls a
// single article page and extracts title and body with the platform's
// selector profile.
type HelpCenter struct {
	cfg     HelpCenterConfig
	profile SelectorProfile
	client  *fetch.Client
	limiter *Throttle
}

// NewHelpCenter creates the adapter for one platform.
func NewHelpCenter(cfg HelpCenterConfig, client *fetch.Client) *HelpCenter {
	if cfg.PerCategory == 0 {
		cfg.PerCategory = 50
	}
	if cfg.MaxDepth == 0 {
		cfg.MaxDepth = 2
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	profile := genericProfile
	if p, ok := selectorProfiles[cfg.Platform]; ok {
		profile = p
	}
	if cfg.Profile != nil {
		profile = *cfg.Profile
	}
	return &HelpCenter{
		cfg:     cfg,
		profile: profile,
		client:  client,
		limiter: NewThrottle(cfg.Throttle),
	}
}

func (h *HelpCenter) Name() string { return "helpcenter-" + h.cfg.Platform }

// Discover crawls the configured category pages and collects article
// links matching the platform's article path.
func (h *HelpCenter) Discover(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate
	seen := make(map[string]bool)
	var mu sync.Mutex

	for _, start := range h.cfg.StartURLs {
		parsed, err := url.Parse(start)
		if err != nil {
			return nil, fmt.Errorf("parse start url %s: %w", start, err)
		}

		perStart := 0

		c := colly.NewCollector(
			colly.MaxDepth(h.cfg.MaxDepth),
			colly.UserAgent(h.cfg.UserAgent),
		)
		c.Limit(&colly.LimitRule{
			DomainGlob:  "*",
			Delay:       h.limiter.cfg.MinDelay,
			Parallelism: 1,
		})
		c.SetRequestTimeout(h.cfg.Timeout)

		c.OnRequest(func(r *colly.Request) {
			if ctx.Err() != nil {
				r.Abort()
			}
		})

		c.OnHTML("a[href]", func(e *colly.HTMLElement) {
			link := e.Request.AbsoluteURL(e.Attr("href"))
			linkURL, err := url.Parse(link)
			if err != nil || linkURL.Host != parsed.Host {
				return
			}
			canonical := linkURL.Scheme + "://" + linkURL.Host + linkURL.Path

			if strings.Contains(linkURL.Path, h.profile.ArticlePath) {
				mu.Lock()
				if !seen[canonical] && perStart < h.cfg.PerCategory {
					seen[canonical] = true
					perStart++
					candidates = append(candidates, Candidate{
						ID:    models.DocumentID(canonical),
						URL:   canonical,
						Title: strings.TrimSpace(e.Text),
						Meta:  map[string]string{"start": start},
					})
				}
				mu.Unlock()
				return
			}

			// Keep walking category pages within the help section.
			if strings.HasPrefix(linkURL.Path, parsed.Path) {
				e.Request.Visit(link)
			}
		})

		if err := c.Visit(start); err != nil {
			if len(candidates) > 0 {
				slog.Warn("category crawl failed, keeping partial results", "start", start, "error", err)
				continue
			}
			return nil, fmt.Errorf("crawl %s: %w", start, err)
		}
		c.Wait()

		if ctx.Err() != nil {
			return candidates, ctx.Err()
		}
	}

	slog.Debug("help-center discovery complete", "platform", h.cfg.Platform, "candidates", len(candidates))
	return candidates, nil
}

// FetchOne downloads a single article page and extracts its content.
func (h *HelpCenter) FetchOne(ctx context.Context, c Candidate) (models.RawDocument, error) {
	body, err := fetchThrottled(ctx, h.Name(), h.limiter, func() ([]byte, error) {
		return h.client.Fetch(ctx, c.URL)
	})
	if err != nil {
		return models.RawDocument{}, err
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("parse %s: %w", c.URL, err)
	}

	title := strings.TrimSpace(doc.Find(h.profile.Title).First().Text())
	if title == "" {
		title = c.Title
	}

	sel := doc.Find(h.profile.Body).First()
	if sel.Length() == 0 {
		return models.RawDocument{}, fmt.Errorf("article body not found at %s", c.URL)
	}
	articleHTML, err := goquery.OuterHtml(sel)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("extract body from %s: %w", c.URL, err)
	}

	raw := models.RawDocument{
		URL:         c.URL,
		Question:    title,
		Answer:      articleHTML,
		Platform:    h.cfg.Platform,
		ContentType: models.ContentTypeOfficial,
		Source:      h.Name(),
	}

	if h.profile.Category != "" {
		raw.Category = strings.TrimSpace(doc.Find(h.profile.Category).First().Text())
	}
	if h.profile.UpdatedAt != "" {
		stamp := strings.TrimSpace(doc.Find(h.profile.UpdatedAt).First().Text())
		layout := h.profile.UpdatedLayout
		if layout == "" {
			layout = "January 2, 2006"
		}
		if t, err := time.Parse(layout, stamp); err == nil {
			raw.PostedAt = t
		}
	}

	return raw, nil
}
