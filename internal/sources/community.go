package sources

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

// CommunityProfile describes how to read a JavaScript-rendered community
// forum: where thread links live on the listing page and where the
// question and best reply live on a thread page.
type CommunityProfile struct {
	ThreadLink   string // selector for thread links on the listing page
	WaitListing  string // selector the listing page must render before parsing
	WaitThread   string // selector a thread page must render before parsing
	ThreadTitle  string // selector for the thread title
	FirstPost    string // selector for the opening post body
	Replies      string // selector for reply bodies, in page order
	ReplyAuthor  string // optional selector for the reply author, scoped to a reply
	AcceptedMark string // optional selector marking a reply as the accepted solution
}

var communityProfiles = map[string]CommunityProfile{
	"airbnb": {
		ThreadLink:   "a[href*='/td-p/'], a[href*='/m-p/']",
		WaitListing:  ".message-list, .custom-message-list",
		WaitThread:   ".lia-message-body-content",
		ThreadTitle:  "h1, .lia-message-subject",
		FirstPost:    ".lia-message-body-content",
		Replies:      ".lia-linear-display-message-view .lia-message-body-content",
		AcceptedMark: ".lia-accepted-solution",
	},
	"tripadvisor": {
		ThreadLink:  "a[href*='/ShowTopic-']",
		WaitListing: "#SHOW_FORUM, .forum-table",
		WaitThread:  ".post, .postBody",
		ThreadTitle: "h1",
		FirstPost:   ".post .postBody",
		Replies:     ".post ~ .post .postBody",
	},
}

// CommunityConfig configures a browser-backed forum adapter.
type CommunityConfig struct {
	Platform    string
	ListingURLs []string // forum board pages to discover threads from
	PerListing  int      // max threads discovered per listing page
	Throttle    ThrottleConfig
	Profile     *CommunityProfile
}

// Renderer produces the final HTML of a page after JavaScript has run.
// *fetch.Browser implements it.
type Renderer interface {
	Fetch(ctx context.Context, pageURL, waitSelector string) (string, error)
}

// Community scrapes community forums that only render through
// JavaScript, driving a headless browser for both discovery and thread
// retrieval.
type Community struct {
	cfg     CommunityConfig
	profile CommunityProfile
	browser Renderer
	limiter *Throttle
}

// NewCommunity creates the adapter. The browser is shared and owned by
// the caller.
func NewCommunity(cfg CommunityConfig, browser Renderer) (*Community, error) {
	if cfg.PerListing == 0 {
		cfg.PerListing = 30
	}
	profile, ok := communityProfiles[cfg.Platform]
	if cfg.Profile != nil {
		profile = *cfg.Profile
	} else if !ok {
		return nil, fmt.Errorf("no community profile for platform %q", cfg.Platform)
	}
	return &Community{
		cfg:     cfg,
		profile: profile,
		browser: browser,
		limiter: NewThrottle(cfg.Throttle),
	}, nil
}

func (cm *Community) Name() string { return "community-" + cm.cfg.Platform }

// Discover renders each listing page and collects thread links.
func (cm *Community) Discover(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate
	seen := make(map[string]bool)

	for _, listing := range cm.cfg.ListingURLs {
		base, err := url.Parse(listing)
		if err != nil {
			return nil, fmt.Errorf("parse listing url %s: %w", listing, err)
		}

		html, err := fetchThrottled(ctx, cm.Name(), cm.limiter, func() (string, error) {
			return cm.browser.Fetch(ctx, listing, cm.profile.WaitListing)
		})
		if err != nil {
			if len(candidates) > 0 {
				slog.Warn("listing render failed, keeping partial results", "listing", listing, "error", err)
				continue
			}
			return nil, fmt.Errorf("render %s: %w", listing, err)
		}

		doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
		if err != nil {
			return nil, fmt.Errorf("parse listing %s: %w", listing, err)
		}

		perListing := 0
		doc.Find(cm.profile.ThreadLink).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			href, ok := s.Attr("href")
			if !ok {
				return true
			}
			ref, err := url.Parse(href)
			if err != nil {
				return true
			}
			abs := base.ResolveReference(ref)
			abs.Fragment = ""
			abs.RawQuery = ""
			link := abs.String()
			if seen[link] {
				return true
			}
			seen[link] = true
			perListing++
			candidates = append(candidates, Candidate{
				ID:    models.DocumentID(link),
				URL:   link,
				Title: strings.TrimSpace(s.Text()),
				Meta:  map[string]string{"listing": listing},
			})
			return perListing < cm.cfg.PerListing
		})
	}

	slog.Debug("community discovery complete", "platform", cm.cfg.Platform, "candidates", len(candidates))
	return candidates, nil
}

// FetchOne renders a thread page and pairs the opening post with the
// best reply. The accepted solution wins when the forum marks one;
// otherwise the first reply is taken.
func (cm *Community) FetchOne(ctx context.Context, c Candidate) (models.RawDocument, error) {
	html, err := fetchThrottled(ctx, cm.Name(), cm.limiter, func() (string, error) {
		return cm.browser.Fetch(ctx, c.URL, cm.profile.WaitThread)
	})
	if err != nil {
		return models.RawDocument{}, err
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("parse thread %s: %w", c.URL, err)
	}

	title := strings.TrimSpace(doc.Find(cm.profile.ThreadTitle).First().Text())
	if title == "" {
		title = c.Title
	}

	opening := strings.TrimSpace(doc.Find(cm.profile.FirstPost).First().Text())
	question := title
	if opening != "" {
		question = title + "\n\n" + opening
	}

	reply, accepted := cm.bestReply(doc)
	if reply == nil {
		return models.RawDocument{}, fmt.Errorf("thread %s has no reply", c.URL)
	}

	answerHTML, err := goquery.OuterHtml(reply)
	if err != nil {
		return models.RawDocument{}, fmt.Errorf("extract reply from %s: %w", c.URL, err)
	}

	raw := models.RawDocument{
		URL:         c.URL,
		Question:    question,
		Answer:      answerHTML,
		Platform:    cm.cfg.Platform,
		ContentType: models.ContentTypeCommunity,
		Source:      cm.Name(),
		Accepted:    accepted,
	}
	if cm.profile.ReplyAuthor != "" {
		raw.Author = strings.TrimSpace(reply.Parent().Find(cm.profile.ReplyAuthor).First().Text())
	}
	return raw, nil
}

// bestReply returns the accepted solution when marked, else the first
// reply after the opening post.
func (cm *Community) bestReply(doc *goquery.Document) (*goquery.Selection, bool) {
	if cm.profile.AcceptedMark != "" {
		if sel := doc.Find(cm.profile.AcceptedMark).First(); sel.Length() > 0 {
			if body := sel.Find(cm.profile.Replies).First(); body.Length() > 0 {
				return body, true
			}
			return sel, true
		}
	}
	replies := doc.Find(cm.profile.Replies)
	if replies.Length() < 2 {
		return nil, false
	}
	// Index 0 is the opening post on forums where replies share its selector.
	return replies.Eq(1), false
}
