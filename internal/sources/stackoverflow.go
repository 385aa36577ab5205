package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"net/url"
	"strconv"
	"time"

	"github.com/wanderdesk/wanderdesk/internal/fetch"
	"github.com/wanderdesk/wanderdesk/pkg/models"
)

const defaultStackExchangeAPI = "https://api.stackexchange.com"

// StackOverflowConfig holds the REST-API adapter configuration.
type StackOverflowConfig struct {
	BaseURL     string   // defaults to the public StackExchange API
	Site        string   // e.g. "stackoverflow", "travel"
	Tags        []string // tags to pull questions for
	PerTagLimit int      // max questions discovered per tag
	Throttle    ThrottleConfig
}

// StackOverflow pulls questions with accepted answers from the
// StackExchange REST API. Discovery enumerates top-voted questions per
// configured tag; FetchOne retrieves the accepted answer body.
type StackOverflow struct {
	cfg     StackOverflowConfig
	client  *fetch.Client
	limiter *Throttle
}

// NewStackOverflow creates the adapter.
func NewStackOverflow(cfg StackOverflowConfig, client *fetch.Client) *StackOverflow {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultStackExchangeAPI
	}
	if cfg.Site == "" {
		cfg.Site = "stackoverflow"
	}
	if cfg.PerTagLimit == 0 {
		cfg.PerTagLimit = 25
	}
	return &StackOverflow{
		cfg:     cfg,
		client:  client,
		limiter: NewThrottle(cfg.Throttle),
	}
}

func (s *StackOverflow) Name() string { return "stackoverflow" }

type soQuestion struct {
	QuestionID       int64  `json:"question_id"`
	Title            string `json:"title"`
	Link             string `json:"link"`
	Score            int    `json:"score"`
	AcceptedAnswerID int64  `json:"accepted_answer_id"`
	CreationDate     int64  `json:"creation_date"`
	Owner            struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
}

type soAnswer struct {
	AnswerID     int64  `json:"answer_id"`
	Body         string `json:"body"`
	Score        int    `json:"score"`
	CreationDate int64  `json:"creation_date"`
	Owner        struct {
		DisplayName string `json:"display_name"`
	} `json:"owner"`
}

type soWrapper[T any] struct {
	Items []T `json:"items"`
}

// Discover lists top-voted questions that carry an accepted answer, per
// configured tag, capped at PerTagLimit each.
func (s *StackOverflow) Discover(ctx context.Context) ([]Candidate, error) {
	var candidates []Candidate

	for _, tag := range s.cfg.Tags {
		endpoint := fmt.Sprintf(
			"%s/2.3/questions?order=desc&sort=votes&tagged=%s&site=%s&filter=withbody&pagesize=%d",
			s.cfg.BaseURL, url.QueryEscape(tag), url.QueryEscape(s.cfg.Site), s.cfg.PerTagLimit,
		)

		body, err := fetchThrottled(ctx, s.Name(), s.limiter, func() ([]byte, error) {
			return s.client.Fetch(ctx, endpoint)
		})
		if err != nil {
			// One failed tag should not sink the suite of tags; report
			// partial discovery when anything was found.
			if len(candidates) > 0 {
				slog.Warn("tag discovery failed, keeping partial results", "tag", tag, "error", err)
				continue
			}
			return nil, fmt.Errorf("discover tag %s: %w", tag, err)
		}

		var page soWrapper[soQuestion]
		if err := json.Unmarshal(body, &page); err != nil {
			return nil, fmt.Errorf("decode questions for tag %s: %w", tag, err)
		}

		for _, q := range page.Items {
			if q.AcceptedAnswerID == 0 {
				continue
			}
			candidates = append(candidates, Candidate{
				ID:    strconv.FormatInt(q.AcceptedAnswerID, 10),
				URL:   q.Link,
				Title: html.UnescapeString(q.Title),
				Meta: map[string]string{
					"tag":      tag,
					"author":   q.Owner.DisplayName,
					"asked_at": strconv.FormatInt(q.CreationDate, 10),
					"score":    strconv.Itoa(q.Score),
				},
			})
		}
	}

	slog.Debug("stackoverflow discovery complete", "candidates", len(candidates))
	return candidates, nil
}

// FetchOne retrieves the accepted answer for a discovered question.
func (s *StackOverflow) FetchOne(ctx context.Context, c Candidate) (models.RawDocument, error) {
	endpoint := fmt.Sprintf("%s/2.3/answers/%s?site=%s&filter=withbody",
		s.cfg.BaseURL, c.ID, url.QueryEscape(s.cfg.Site))

	body, err := fetchThrottled(ctx, s.Name(), s.limiter, func() ([]byte, error) {
		return s.client.Fetch(ctx, endpoint)
	})
	if err != nil {
		return models.RawDocument{}, err
	}

	var page soWrapper[soAnswer]
	if err := json.Unmarshal(body, &page); err != nil {
		return models.RawDocument{}, fmt.Errorf("decode answer %s: %w", c.ID, err)
	}
	if len(page.Items) == 0 {
		return models.RawDocument{}, fmt.Errorf("answer %s not found", c.ID)
	}
	answer := page.Items[0]

	doc := models.RawDocument{
		URL:         c.URL,
		Question:    c.Title,
		Answer:      answer.Body,
		Platform:    s.cfg.Site,
		Category:    c.Meta["tag"],
		ContentType: models.ContentTypeCommunity,
		Source:      s.Name(),
		Author:      answer.Owner.DisplayName,
		Score:       answer.Score,
		Accepted:    true,
	}
	if answer.CreationDate > 0 {
		doc.PostedAt = time.Unix(answer.CreationDate, 0).UTC()
	}
	return doc, nil
}
