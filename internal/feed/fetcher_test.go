package feed

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/logging"
)

const natureRSS = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:dc="http://purl.org/dc/elements/1.1/">
  <channel>
    <title>Nature</title>
    <item>
      <guid>https://www.nature.com/articles/s41586-026-01234-5</guid>
      <title>A quantum result</title>
      <link>https://www.nature.com/articles/s41586-026-01234-5</link>
      <description>Entanglement at unprecedented scale.</description>
      <dc:creator>A. Researcher</dc:creator>
      <dc:identifier>https://doi.org/10.1038/s41586-026-01234-5</dc:identifier>
    </item>
    <item>
      <guid>https://www.nature.com/articles/d41586-026-00001-1</guid>
      <title>News of the week</title>
      <link>https://www.nature.com/articles/d41586-026-00001-1</link>
      <description>A news roundup.</description>
    </item>
  </channel>
</rss>`

func newFeedServer(t *testing.T, body string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func newTestFetcher(t *testing.T, sources map[string]domain.FeedSource) *Fetcher {
	t.Helper()
	store := NewCheckpointStore(filepath.Join(t.TempDir(), "last_check.json"))
	return NewFetcher(sources, store, Options{
		UserAgent:      "test-agent",
		RequestTimeout: 5 * time.Second,
		Retention:      30 * 24 * time.Hour,
		SourceDelay:    time.Millisecond,
	}, logging.New("error"))
}

func TestFetchNewArticlesEmitsEachEntryOnce(t *testing.T) {
	t.Parallel()

	server := newFeedServer(t, natureRSS)
	fetcher := newTestFetcher(t, map[string]domain.FeedSource{
		"Nature": {URL: server.URL, Enabled: true, ParserType: "nature"},
	})

	articles, err := fetcher.FetchNewArticles(context.Background())
	if err != nil {
		t.Fatalf("FetchNewArticles returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected 2 articles on first poll, got %d", len(articles))
	}

	first := articles[0]
	if first.Journal != "Nature" {
		t.Fatalf("expected journal Nature, got %s", first.Journal)
	}
	if first.Title != "A quantum result" {
		t.Fatalf("unexpected title: %s", first.Title)
	}
	if len(first.Authors) != 1 || first.Authors[0] != "A. Researcher" {
		t.Fatalf("expected dc:creator author, got %v", first.Authors)
	}
	if first.DOI != "https://doi.org/10.1038/s41586-026-01234-5" {
		t.Fatalf("expected DOI from dc:identifier, got %s", first.DOI)
	}

	// Second poll sees the same feed content; everything is checkpointed.
	again, err := fetcher.FetchNewArticles(context.Background())
	if err != nil {
		t.Fatalf("second FetchNewArticles returned error: %v", err)
	}
	if len(again) != 0 {
		t.Fatalf("expected 0 articles on second poll, got %d", len(again))
	}
}

func TestFetchNewArticlesSkipsDisabledSources(t *testing.T) {
	t.Parallel()

	server := newFeedServer(t, natureRSS)
	fetcher := newTestFetcher(t, map[string]domain.FeedSource{
		"Nature": {URL: server.URL, Enabled: false, ParserType: "nature"},
	})

	articles, err := fetcher.FetchNewArticles(context.Background())
	if err != nil {
		t.Fatalf("FetchNewArticles returned error: %v", err)
	}
	if len(articles) != 0 {
		t.Fatalf("expected no articles from disabled source, got %d", len(articles))
	}
}

func TestFetchNewArticlesSkipsFailingSource(t *testing.T) {
	t.Parallel()

	good := newFeedServer(t, natureRSS)
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	t.Cleanup(bad.Close)

	fetcher := newTestFetcher(t, map[string]domain.FeedSource{
		"Broken": {URL: bad.URL, Enabled: true, ParserType: "generic"},
		"Nature": {URL: good.URL, Enabled: true, ParserType: "nature"},
	})

	articles, err := fetcher.FetchNewArticles(context.Background())
	if err != nil {
		t.Fatalf("FetchNewArticles returned error: %v", err)
	}
	if len(articles) != 2 {
		t.Fatalf("expected healthy source to still produce 2 articles, got %d", len(articles))
	}
}
