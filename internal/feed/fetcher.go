package feed

import (
	"context"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// Fetcher polls the configured journal feeds and emits only entries not yet
// present in the checkpoint.
type Fetcher struct {
	sources     map[string]domain.FeedSource
	checkpoint  *CheckpointStore
	retention   time.Duration
	sourceDelay time.Duration
	parser      *gofeed.Parser
	logger      *slog.Logger
	now         func() time.Time
}

var _ ports.ArticleSource = (*Fetcher)(nil)

// NewFetcher wires feed sources with the checkpoint store.
func NewFetcher(sources map[string]domain.FeedSource, checkpoint *CheckpointStore, cfg Options, logger *slog.Logger) *Fetcher {
	parser := gofeed.NewParser()
	parser.UserAgent = cfg.UserAgent
	parser.Client = &http.Client{Timeout: cfg.RequestTimeout}

	return &Fetcher{
		sources:     sources,
		checkpoint:  checkpoint,
		retention:   cfg.Retention,
		sourceDelay: cfg.SourceDelay,
		parser:      parser,
		logger:      logger,
		now:         time.Now,
	}
}

// Options carries fetcher tunables.
type Options struct {
	UserAgent      string
	RequestTimeout time.Duration
	Retention      time.Duration
	SourceDelay    time.Duration
}

// FetchNewArticles polls each enabled source, skipping entries already in
// the checkpoint, and persists the updated checkpoint afterwards. A source
// that fails to fetch or parse is logged and skipped; it never aborts the
// run or blocks other sources.
func (f *Fetcher) FetchNewArticles(ctx context.Context) ([]domain.Article, error) {
	checkpoint := f.checkpoint.Load()
	if pruned := checkpoint.Prune(f.retention, f.now()); pruned > 0 {
		f.logger.Info("pruned checkpoint entries", "removed", pruned)
	}

	// Stable journal order keeps runs deterministic and logs comparable.
	journals := make([]string, 0, len(f.sources))
	for journal := range f.sources {
		journals = append(journals, journal)
	}
	sort.Strings(journals)

	var articles []domain.Article
	first := true
	for _, journal := range journals {
		source := f.sources[journal]
		if !source.Enabled {
			continue
		}

		if !first {
			select {
			case <-time.After(f.sourceDelay):
			case <-ctx.Done():
				return articles, ctx.Err()
			}
		}
		first = false

		parsed, err := f.parser.ParseURLWithContext(source.URL, ctx)
		if err != nil {
			f.logger.Warn("feed fetch failed, skipping source", "journal", journal, "url", source.URL, "error", err)
			continue
		}

		fresh := 0
		for _, item := range parsed.Items {
			article := f.toArticle(journal, item)
			// Entries lacking both guid and link cannot be deduplicated and
			// are treated as always-new; known gap, preserved deliberately.
			if article.ID != "" {
				if _, seen := checkpoint.SeenArticles[article.ID]; seen {
					continue
				}
				checkpoint.SeenArticles[article.ID] = f.now().Format(time.RFC3339)
			}
			articles = append(articles, article)
			fresh++
		}
		f.logger.Info("polled feed", "journal", journal, "entries", len(parsed.Items), "new", fresh)
	}

	checkpoint.LastCheck = f.now().Format(time.RFC3339)
	if err := f.checkpoint.Save(checkpoint); err != nil {
		return articles, err
	}
	return articles, nil
}

func (f *Fetcher) toArticle(journal string, item *gofeed.Item) domain.Article {
	id := item.GUID
	if id == "" {
		id = item.Link
	}

	return domain.Article{
		ID:        id,
		Journal:   journal,
		Title:     strings.TrimSpace(item.Title),
		Link:      item.Link,
		Published: item.Published,
		Summary:   strings.TrimSpace(item.Description),
		Authors:   extractAuthors(item),
		DOI:       extractDOI(item),
	}
}

func extractAuthors(item *gofeed.Item) []string {
	var authors []string
	for _, person := range item.Authors {
		if person != nil && person.Name != "" {
			authors = append(authors, person.Name)
		}
	}

	if item.DublinCoreExt != nil {
		for _, creator := range item.DublinCoreExt.Creator {
			if creator != "" {
				authors = append(authors, creator)
			}
		}
	}
	return authors
}

func extractDOI(item *gofeed.Item) string {
	if item.DublinCoreExt != nil {
		for _, identifier := range item.DublinCoreExt.Identifier {
			if strings.Contains(identifier, "doi.org") {
				return identifier
			}
		}
	}

	link := item.Link
	if strings.Contains(link, "doi.org") {
		return link
	}
	if idx := strings.Index(link, "/doi/"); idx >= 0 {
		suffix := link[idx+len("/doi/"):]
		if cut := strings.IndexByte(suffix, '?'); cut >= 0 {
			suffix = suffix[:cut]
		}
		if suffix != "" {
			return "https://doi.org/" + suffix
		}
	}
	return ""
}
