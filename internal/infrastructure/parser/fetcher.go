package parser

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/time/rate"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/extract"
	"PaperDigest/internal/ports"
)

// ContentFetcher enriches articles with abstract, authors, affiliations and
// keywords scraped from the live article page, dispatching to a per-journal
// strategy. Every error degrades to "field absent" or "use feed summary";
// nothing propagates past FetchArticleDetails.
type ContentFetcher struct {
	registry  *extract.Registry
	sources   map[string]domain.FeedSource
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
	logger    *slog.Logger
}

var _ ports.ContentEnricher = (*ContentFetcher)(nil)

// NewContentFetcher wires the parser registry with the feeds configuration
// that names each journal's parser type. pageDelay is the minimum spacing
// between page fetches.
func NewContentFetcher(registry *extract.Registry, sources map[string]domain.FeedSource, client *http.Client, userAgent string, pageDelay time.Duration, logger *slog.Logger) *ContentFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	if pageDelay <= 0 {
		pageDelay = time.Second
	}
	return &ContentFetcher{
		registry:  registry,
		sources:   sources,
		client:    client,
		limiter:   rate.NewLimiter(rate.Every(pageDelay), 1),
		userAgent: userAgent,
		logger:    logger,
	}
}

// FetchArticleDetails classifies the article, then either adopts the feed
// summary (non-research short-circuit, no network) or fetches and parses
// the article page with the journal strategy. The article is always usable
// afterwards: a failed fetch leaves extracted fields absent and falls back
// to the HTML-stripped feed summary for the abstract.
func (f *ContentFetcher) FetchArticleDetails(ctx context.Context, article *domain.Article) {
	strategy := f.resolveParser(article.Journal)

	if !strategy.IsResearchArticle(*article) {
		article.IsResearchArticle = false
		if article.Abstract == "" {
			article.Abstract = StripHTML(article.Summary)
		}
		f.logger.Debug("skipping page fetch for non-research article", "title", article.Title, "journal", article.Journal)
		return
	}
	article.IsResearchArticle = true

	if article.Link == "" {
		if article.Abstract == "" {
			article.Abstract = StripHTML(article.Summary)
		}
		return
	}

	doc, err := f.fetchDocument(ctx, article.Link)
	if err != nil {
		f.logger.Warn("article page fetch failed, using feed summary", "url", article.Link, "error", err)
		if article.Abstract == "" {
			article.Abstract = StripHTML(article.Summary)
		}
		return
	}

	fields := strategy.Extract(doc)
	if fields.Abstract != "" {
		article.Abstract = fields.Abstract
	}
	if len(fields.Authors) > 0 {
		article.Authors = fields.Authors
	}
	if len(fields.Affiliations) > 0 {
		article.Affiliations = fields.Affiliations
	}
	if len(fields.Keywords) > 0 {
		article.Keywords = fields.Keywords
	}

	if article.Abstract == "" {
		article.Abstract = StripHTML(article.Summary)
	}
}

// resolveParser maps a journal name to its configured parser type, trying an
// exact match first and then a prefix match; unknown journals get the
// generic strategy.
func (f *ContentFetcher) resolveParser(journal string) extract.Parser {
	parserType := ""
	if source, ok := f.sources[journal]; ok {
		parserType = source.ParserType
	} else {
		for name, source := range f.sources {
			if strings.HasPrefix(strings.ToLower(journal), strings.ToLower(name)) {
				parserType = source.ParserType
				break
			}
		}
	}

	if parserType != "" {
		if strategy, err := f.registry.Resolve(parserType); err == nil {
			return strategy
		}
		f.logger.Warn("unknown parser type, using generic", "journal", journal, "parser_type", parserType)
	}

	strategy, _ := f.registry.Resolve("generic")
	return strategy
}

func (f *ContentFetcher) fetchDocument(ctx context.Context, pageURL string) (*goquery.Document, error) {
	if err := f.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit wait: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("publisher returned %s", resp.Status)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return doc, nil
}

// StripHTML reduces feed-supplied HTML to whitespace-normalized plain text.
func StripHTML(html string) string {
	if html == "" {
		return ""
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.Join(strings.Fields(doc.Text()), " ")
}
