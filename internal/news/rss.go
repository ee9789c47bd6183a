package news

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"github.com/mmcdole/gofeed"

	"github.com/briefly-ai/briefly/internal/log"
)

// FeedSource ingests the top entries of one RSS/Atom feed.
//
// Each entry becomes a document of the form
// "[Published: date] Title: … Summary: …" with HTML stripped from the
// summary. When FetchBody is enabled the linked article page is fetched and
// its readable body appended; a page that cannot be extracted degrades to
// the summary-only document.
type FeedSource struct {
	url       string
	limit     int
	fetchBody bool
	client    *http.Client
	logger    log.Logger
}

// NewFeedSource creates a FeedSource for the given feed URL.
// limit <= 0 means all entries.
func NewFeedSource(feedURL string, limit int, fetchBody bool, logger log.Logger) *FeedSource {
	if logger == nil {
		logger = log.NewNop()
	}
	return &FeedSource{
		url:       feedURL,
		limit:     limit,
		fetchBody: fetchBody,
		client:    &http.Client{Timeout: 15 * time.Second},
		logger:    logger,
	}
}

// Name implements Source.
func (s *FeedSource) Name() string { return "rss:" + s.url }

// Fetch implements Source.
func (s *FeedSource) Fetch(ctx context.Context) ([]Document, error) {
	parser := gofeed.NewParser()
	feed, err := parser.ParseURLWithContext(s.url, ctx)
	if err != nil {
		return nil, fmt.Errorf("parsing feed %s: %w", s.url, err)
	}

	items := feed.Items
	if s.limit > 0 && len(items) > s.limit {
		items = items[:s.limit]
	}

	now := time.Now()
	docs := make([]Document, 0, len(items))
	for _, item := range items {
		published := now
		if item.PublishedParsed != nil {
			published = *item.PublishedParsed
		}

		var b strings.Builder
		fmt.Fprintf(&b, "[Published: %s] Title: %s. Summary: %s",
			published.Format("2006-01-02"),
			strings.TrimSpace(item.Title),
			StripHTML(item.Description))

		if s.fetchBody && item.Link != "" {
			if body := s.articleBody(ctx, item.Link); body != "" {
				b.WriteString("\nContent: ")
				b.WriteString(body)
			}
		}

		docs = append(docs, NewDocument(s.Name(), b.String(), now))
	}
	return docs, nil
}

// articleBody fetches the linked page and extracts its readable text.
// Returns "" on any failure; the summary document stands on its own.
func (s *FeedSource) articleBody(ctx context.Context, link string) string {
	u, err := url.Parse(link)
	if err != nil {
		return ""
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return ""
	}
	resp, err := s.client.Do(req)
	if err != nil {
		s.logger.Debug("article fetch failed", "url", link, "error", err)
		return ""
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return ""
	}

	article, err := readability.FromReader(resp.Body, u)
	if err != nil {
		s.logger.Debug("article extraction failed", "url", link, "error", err)
		return ""
	}
	return strings.TrimSpace(article.TextContent)
}

// StripHTML reduces an HTML fragment to its text content.
// Feed summaries frequently embed markup; the index only wants prose.
func StripHTML(fragment string) string {
	if !strings.ContainsRune(fragment, '<') {
		return strings.TrimSpace(fragment)
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return strings.TrimSpace(fragment)
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
