package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/wanderdesk/wanderdesk/internal/fetch"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

const defaultRedditBase = "https://www.reddit.com"

// RedditConfig holds the Reddit listing-API adapter configuration.
type RedditConfig struct {
	BaseURL        string
	Subreddits     []string // e.g. "AirBnB", "travel"
	PerSubLimit    int      // max posts discovered per subreddit
	TimeWindow     string   // listing window: "week", "month", "year"
	MinCommentKarm int      // minimum score for a comment to qualify as the answer
	Throttle       ThrottleConfig
}

// Reddit pulls question posts and their best comment from the public
// Reddit JSON listing API. The post is the question; the top-scored
// comment is the answer.
type Reddit struct {
	cfg     RedditConfig
	client  *fetch.Client
	limiter *Throttle
}

// NewReddit creates the adapter.
func NewReddit(cfg RedditConfig, client *fetch.Client) *Reddit {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultRedditBase
	}
	if cfg.PerSubLimit == 0 {
		cfg.PerSubLimit = 25
	}
	if cfg.TimeWindow == "" {
		cfg.TimeWindow = "month"
	}
	return &Reddit{
		cfg:     cfg,
		client:  client,
		limiter: NewThrottle(cfg.Throttle),
	}
}

func (r *Reddit) Name() string { return "reddit" }

type redditListing struct {
	Data struct {
		Children []struct {
			Data redditThing `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

type redditThing struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Permalink   string  `json:"permalink"`
	Selftext    string  `json:"selftext"`
	Body        string  `json:"body"` // set on comments
	Score       int     `json:"score"`
	Author      string  `json:"author"`
	CreatedUTC  float64 `json:"created_utc"`
	NumComments int     `json:"num_comments"`
	Stickied    bool    `json:"stickied"`
}

// Discover lists top posts per configured subreddit.
func (r *Reddit) Discover(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate

	for _, sub := range r.cfg.Subreddits {
		endpoint := fmt.Sprintf("%s/r/%s/top.json?t=%s&limit=%d",
			r.cfg.BaseURL, sub, r.cfg.TimeWindow, r.cfg.PerSubLimit)

		body, err := fetchThrottled(ctx, r.Name(), r.limiter, func() ([]byte, error) {
			return r.client.Fetch(ctx, endpoint)
		})
		if err != nil {
			if len(candidates) > 0 {
				slog.Warn("subreddit discovery failed, keeping partial results", "subreddit", sub, "error", err)
				continue
			}
			return nil, fmt.Errorf("discover r/%s: %w", sub, err)
		}

		var listing redditListing
		if err := json.Unmarshal(body, &listing); err != nil {
			return nil, fmt.Errorf("decode r/%s listing: %w", sub, err)
		}

		for _, child := range listing.Data.Children {
			post := child.Data
			if post.Stickied || post.NumComments == 0 {
				continue
			}
			candidates = append(candidates, Candidate{
				ID:    post.ID,
				URL:   r.cfg.BaseURL + post.Permalink,
				Title: post.Title,
				Meta: map[string]string{
					"subreddit": sub,
					"permalink": post.Permalink,
				},
			})
		}
	}

	slog.Debug("reddit discovery complete", "candidates", len(candidates))
	return candidates, nil
}

// FetchOne retrieves a post's comment thread and pairs the post with its
// best top-level comment.
func (r *Reddit) FetchOne(ctx context.Context, c Candidate) (models.RawDocument, error) {
	endpoint := fmt.Sprintf("%s%s.json?limit=25", r.cfg.BaseURL, c.Meta["permalink"])

	body, err := fetchThrottled(ctx, r.Name(), r.limiter, func() ([]byte, error) {
		return r.client.Fetch(ctx, endpoint)
	})
	if err != nil {
		return models.RawDocument{}, err
	}

	// A thread payload is a two-element array: [post listing, comments].
	var thread []redditListing
	if err := json.Unmarshal(body, &thread); err != nil {
		return models.RawDocument{}, fmt.Errorf("decode thread %s: %w", c.ID, err)
	}
	if len(thread) < 2 || len(thread[0].Data.Children) == 0 {
		return models.RawDocument{}, fmt.Errorf("thread %s has no content", c.ID)
	}
	post := thread[0].Data.Children[0].Data

	best, ok := bestComment(thread[1], r.cfg.MinCommentKarm)
	if !ok {
		return models.RawDocument{}, fmt.Errorf("thread %s has no usable comment", c.ID)
	}

	doc := models.RawDocument{
		URL:         c.URL,
		Question:    post.Title,
		Answer:      best.Body,
		Platform:    "reddit",
		Category:    c.Meta["subreddit"],
		ContentType: models.ContentTypeCommunity,
		Source:      r.Name(),
		Author:      best.Author,
		Score:       best.Score,
	}
	if best.CreatedUTC > 0 {
		doc.PostedAt = time.Unix(int64(best.CreatedUTC), 0).UTC()
	}
	return doc, nil
}

// bestComment picks the highest-scored non-deleted top-level comment.
func bestComment(comments redditListing, minScore int) (redditThing, bool) {
	var best redditThing
	found := false
	for _, child := range comments.Data.Children {
		comment := child.Data
		if comment.Body == "" || comment.Body == "[deleted]" || comment.Body == "[removed]" {
			continue
		}
		if comment.Score < minScore {
			continue
		}
		if !found || comment.Score > best.Score {
			best = comment
			found = true
		}
	}
	return best, found
}
