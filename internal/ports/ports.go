package ports

import (
	"context"

	"PaperDigest/internal/domain"
)

// ArticleSource pulls fresh, previously unseen articles from upstream feeds.
type ArticleSource interface {
	FetchNewArticles(ctx context.Context) ([]domain.Article, error)
}

// ContentEnricher fetches the live article page and fills abstract, authors,
// affiliations, and keywords in place. It never fails the pipeline: fetch or
// parse errors degrade to the feed-supplied summary.
type ContentEnricher interface {
	FetchArticleDetails(ctx context.Context, article *domain.Article)
}

// Summarizer produces the localized summary for one article. The returned
// string is never empty; implementations fall back to a deterministic
// template when the model call fails or underperforms.
type Summarizer interface {
	Summarize(ctx context.Context, article domain.Article) string
}

// Notifier posts summarized articles and error reports to the chat channel.
type Notifier interface {
	SendNotification(ctx context.Context, articles []domain.Article) error
	SendErrorNotification(ctx context.Context, message string) error
}

// Archiver persists processed articles after notification and prunes rows
// older than the retention window.
type Archiver interface {
	ArchiveProcessed(ctx context.Context, articles []domain.Article) (int, error)
	CleanupOld(ctx context.Context, retentionDays int) (int, error)
}

// FeedbackSink records one user feedback event.
type FeedbackSink interface {
	Append(feedback domain.Feedback) error
}

// Scheduler controls when recurring pipeline runs execute.
type Scheduler interface {
	Start(ctx context.Context, job func()) error
	Stop(ctx context.Context) error
}
