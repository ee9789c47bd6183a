package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/briefly-ai/briefly/internal/log"
)

const testFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
  <channel>
    <title>Test Feed</title>
    <item>
      <title>First headline</title>
      <description>&lt;p&gt;Summary &lt;b&gt;one&lt;/b&gt;&lt;/p&gt;</description>
      <pubDate>Fri, 28 Aug 2026 08:00:00 GMT</pubDate>
    </item>
    <item>
      <title>Second headline</title>
      <description>Summary two</description>
    </item>
    <item>
      <title>Third headline</title>
      <description>Summary three</description>
    </item>
  </channel>
</rss>`

func TestFeedSourceFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		_, _ = w.Write([]byte(testFeed))
	}))
	defer srv.Close()

	src := NewFeedSource(srv.URL, 2, false, log.NewNop())
	docs, err := src.Fetch(context.Background())
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if len(docs) != 2 {
		t.Fatalf("got %d documents, want 2 (limit)", len(docs))
	}
	if !strings.Contains(docs[0].Text, "Title: First headline") {
		t.Errorf("missing title: %q", docs[0].Text)
	}
	if !strings.Contains(docs[0].Text, "Summary one") {
		t.Errorf("summary not stripped of HTML: %q", docs[0].Text)
	}
	if strings.Contains(docs[0].Text, "<b>") {
		t.Errorf("HTML leaked into document: %q", docs[0].Text)
	}
	if !strings.Contains(docs[0].Text, "[Published: 2026-08-28]") {
		t.Errorf("missing published date: %q", docs[0].Text)
	}
}

func TestFeedSourceFetchUnreachable(t *testing.T) {
	src := NewFeedSource("http://127.0.0.1:1/feed", 5, false, log.NewNop())
	if _, err := src.Fetch(context.Background()); err == nil {
		t.Fatal("Fetch() = nil error for unreachable feed")
	}
}
