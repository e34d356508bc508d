package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"PaperDigest/internal/filter"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/queue"
)

// PipelineDeps wires all driven adapters into the orchestration pipeline.
type PipelineDeps struct {
	Source     ports.ArticleSource
	Queue      *queue.Manager
	Filter     *filter.Engine
	Enricher   ports.ContentEnricher
	Summarizer ports.Summarizer
	Notifier   ports.Notifier
	Archiver   ports.Archiver
	Logger     *slog.Logger

	BatchSize            int
	MaxAgeDays           int
	CleanupAfterDays     int
	ArchiveRetentionDays int
}

// Pipeline implements the daily digest workflow: fetch, enqueue, batch,
// filter, enrich, summarize, notify, archive.
type Pipeline struct {
	source     ports.ArticleSource
	queue      *queue.Manager
	filter     *filter.Engine
	enricher   ports.ContentEnricher
	summarizer ports.Summarizer
	notifier   ports.Notifier
	archiver   ports.Archiver
	logger     *slog.Logger

	batchSize            int
	maxAgeDays           int
	cleanupAfterDays     int
	archiveRetentionDays int
}

// NewPipeline constructs the orchestration component.
func NewPipeline(deps PipelineDeps) *Pipeline {
	return &Pipeline{
		source:               deps.Source,
		queue:                deps.Queue,
		filter:               deps.Filter,
		enricher:             deps.Enricher,
		summarizer:           deps.Summarizer,
		notifier:             deps.Notifier,
		archiver:             deps.Archiver,
		logger:               deps.Logger,
		batchSize:            deps.BatchSize,
		maxAgeDays:           deps.MaxAgeDays,
		cleanupAfterDays:     deps.CleanupAfterDays,
		archiveRetentionDays: deps.ArchiveRetentionDays,
	}
}

// Run executes one digest cycle. In test mode delivery and archival are
// skipped so the run has no external side effects beyond queue state.
func (p *Pipeline) Run(ctx context.Context, testMode bool) error {
	newArticles, err := p.source.FetchNewArticles(ctx)
	if err != nil {
		return fmt.Errorf("fetch feeds: %w", err)
	}
	p.logger.Info("feeds fetched", "new_articles", len(newArticles))

	added, err := p.queue.AddArticles(newArticles)
	if err != nil {
		return fmt.Errorf("enqueue articles: %w", err)
	}
	p.logger.Info("articles enqueued", "added", added)

	p.logQueueStats()
	if removed, err := p.queue.CleanupOldItems(p.cleanupAfterDays); err != nil {
		p.logger.Warn("queue cleanup failed", "error", err)
	} else if removed > 0 {
		p.logger.Info("queue cleanup removed stale items", "removed", removed)
	}

	batch, err := p.queue.GetBatch(p.batchSize, p.maxAgeDays)
	if err != nil {
		return fmt.Errorf("take batch: %w", err)
	}
	if len(batch) == 0 {
		p.logger.Info("no articles to process")
		return nil
	}

	articles := p.filter.Apply(batch)
	if len(articles) == 0 {
		p.logger.Info("no articles passed the filter")
		return nil
	}

	for i := range articles {
		p.logger.Info("fetching article details",
			"index", i+1, "total", len(articles), "title", articles[i].Title)
		p.enricher.FetchArticleDetails(ctx, &articles[i])
	}

	for i := range articles {
		articles[i].SummaryJA = p.summarizer.Summarize(ctx, articles[i])
	}

	if testMode {
		p.logger.Info("test mode: skipping notification and archive",
			"articles", len(articles))
		return nil
	}

	if err := p.notifier.SendNotification(ctx, articles); err != nil {
		return fmt.Errorf("send notification: %w", err)
	}

	archived, err := p.archiver.ArchiveProcessed(ctx, articles)
	if err != nil {
		// The digest already went out; losing the archive row is not worth
		// an error notification.
		p.logger.Warn("archive failed", "error", err)
		return nil
	}

	if p.archiveRetentionDays > 0 {
		if removed, err := p.archiver.CleanupOld(ctx, p.archiveRetentionDays); err != nil {
			p.logger.Warn("archive cleanup failed", "error", err)
		} else if removed > 0 {
			p.logger.Info("archive cleanup removed rows", "removed", removed)
		}
	}

	p.logger.Info("pipeline completed", "notified", len(articles), "archived", archived)
	return nil
}

// RunAndReport wraps Run with the error-notification contract: any top-level
// failure is mirrored to the chat channel before being returned.
func (p *Pipeline) RunAndReport(ctx context.Context, testMode bool) error {
	err := p.Run(ctx, testMode)
	if err == nil {
		return nil
	}
	if !testMode {
		if nErr := p.notifier.SendErrorNotification(ctx, err.Error()); nErr != nil {
			p.logger.Error("error notification failed", "error", nErr)
		}
	}
	return err
}

func (p *Pipeline) logQueueStats() {
	stats, err := p.queue.Info()
	if err != nil {
		p.logger.Warn("queue stats unavailable", "error", err)
		return
	}
	p.logger.Info("queue status",
		"total", stats.TotalItems,
		"priorities", stats.PriorityBreakdown,
		"oldest", stats.OldestItem,
		"newest", stats.NewestItem)
}
