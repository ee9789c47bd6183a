package news

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/briefly-ai/briefly/internal/log"
)

const newsAPIBase = "https://newsapi.org/v2"

// newsAPIItemLimit caps how many articles each endpoint contributes.
const newsAPIItemLimit = 3

// NewsAPISource ingests headlines from the NewsAPI REST service.
//
// Two endpoints are combined, mirroring the product behavior: a free-text
// "everything" query for local interest news and country-scoped
// "top-headlines" for national news. Requests are rate limited because
// NewsAPI enforces a small daily quota on free keys.
type NewsAPISource struct {
	apiKey  string
	query   string
	country string
	base    string // overridable in tests
	client  *http.Client
	limiter *rate.Limiter
	logger  log.Logger
}

// NewNewsAPISource creates a NewsAPISource.
// query and country may each be empty to disable the respective endpoint.
func NewNewsAPISource(apiKey, query, country string, logger log.Logger) *NewsAPISource {
	if logger == nil {
		logger = log.NewNop()
	}
	return &NewsAPISource{
		apiKey:  apiKey,
		query:   query,
		country: country,
		base:    newsAPIBase,
		client:  &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(time.Second), 2),
		logger:  logger,
	}
}

// Name implements Source.
func (s *NewsAPISource) Name() string { return "newsapi" }

type newsAPIResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Articles []struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		Content     string `json:"content"`
		PublishedAt string `json:"publishedAt"`
		Source      struct {
			Name string `json:"name"`
		} `json:"source"`
	} `json:"articles"`
}

// Fetch implements Source. A failing endpoint contributes nothing but does
// not fail the other; Fetch errors only when both endpoints fail or the
// context is done.
func (s *NewsAPISource) Fetch(ctx context.Context) ([]Document, error) {
	type endpoint struct {
		label string
		url   string
	}

	var endpoints []endpoint
	if s.query != "" {
		q := url.Values{}
		q.Set("q", s.query)
		q.Set("sortBy", "publishedAt")
		q.Set("apiKey", s.apiKey)
		endpoints = append(endpoints, endpoint{
			label: "Local News (" + s.query + ")",
			url:   s.base + "/everything?" + q.Encode(),
		})
	}
	if s.country != "" {
		q := url.Values{}
		q.Set("country", s.country)
		q.Set("category", "general")
		q.Set("apiKey", s.apiKey)
		endpoints = append(endpoints, endpoint{
			label: "National News (" + strings.ToUpper(s.country) + ")",
			url:   s.base + "/top-headlines?" + q.Encode(),
		})
	}

	now := time.Now()
	var docs []Document
	var lastErr error
	for _, ep := range endpoints {
		resp, err := s.fetchEndpoint(ctx, ep.url)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.logger.Warn("newsapi endpoint failed", "label", ep.label, "error", err)
			lastErr = err
			continue
		}

		articles := resp.Articles
		if len(articles) > newsAPIItemLimit {
			articles = articles[:newsAPIItemLimit]
		}
		for _, a := range articles {
			pub := now.Format("2006-01-02")
			if len(a.PublishedAt) >= 10 {
				pub = a.PublishedAt[:10]
			}
			text := fmt.Sprintf(
				"[Published: %s]\nSOURCE: %s\nTITLE: %s\nSUMMARY: %s\nCONTENT: %s",
				pub, ep.label, a.Title, a.Description, a.Content)
			docs = append(docs, NewDocument(s.Name(), text, now))
		}
	}

	if len(docs) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return docs, nil
}

func (s *NewsAPISource) fetchEndpoint(ctx context.Context, u string) (*newsAPIResponse, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("newsapi returned status %d", resp.StatusCode)
	}

	var parsed newsAPIResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decoding newsapi response: %w", err)
	}
	if parsed.Status != "ok" {
		return nil, fmt.Errorf("newsapi status %q: %s", parsed.Status, parsed.Message)
	}
	return &parsed, nil
}
