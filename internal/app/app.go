package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/feed"
	"PaperDigest/internal/feedback"
	"PaperDigest/internal/filter"
	"PaperDigest/internal/infrastructure/github"
	"PaperDigest/internal/infrastructure/llm"
	"PaperDigest/internal/infrastructure/parser"
	"PaperDigest/internal/infrastructure/scheduler"
	"PaperDigest/internal/infrastructure/slack"
	"PaperDigest/internal/infrastructure/storage"
	"PaperDigest/internal/logging"
	"PaperDigest/internal/ports"
	"PaperDigest/internal/queue"
	"PaperDigest/internal/usecase"
	"PaperDigest/internal/webhook"
)

// Application wires configuration to use cases. Components are constructed
// per entry point so each command only demands the credentials it uses.
type Application struct {
	cfg    config.Config
	logger *slog.Logger
}

// New builds the application shell.
func New(cfg config.Config, baseLogger *slog.Logger) *Application {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}
	return &Application{cfg: cfg, logger: baseLogger}
}

// RunPipeline executes one digest cycle.
func (a *Application) RunPipeline(ctx context.Context, testMode bool) error {
	pipeline, closeFn, err := a.buildPipeline(testMode)
	if err != nil {
		return err
	}
	defer closeFn()
	return pipeline.RunAndReport(ctx, testMode)
}

// RunDaemon re-runs the pipeline on the configured interval until the
// context is cancelled.
func (a *Application) RunDaemon(ctx context.Context) error {
	pipeline, closeFn, err := a.buildPipeline(false)
	if err != nil {
		return err
	}
	defer closeFn()

	driver, err := scheduler.NewIntervalScheduler(a.cfg.Scheduler.Interval)
	if err != nil {
		return err
	}
	a.logger.Info("daemon mode started", "interval", a.cfg.Scheduler.Interval)
	return usecase.NewScheduler(driver, pipeline).Start(ctx)
}

func (a *Application) buildPipeline(testMode bool) (*usecase.Pipeline, func(), error) {
	cfg := a.cfg
	sources := config.LoadFeeds(cfg.Data.FeedsFile())

	fetcher := feed.NewFetcher(
		sources,
		feed.NewCheckpointStore(cfg.Data.CheckpointFile()),
		feed.Options{
			UserAgent:      cfg.Fetch.UserAgent,
			RequestTimeout: time.Duration(cfg.Fetch.RequestTimeoutSecs) * time.Second,
			Retention:      time.Duration(cfg.Checkpoint.RetentionDays) * 24 * time.Hour,
			SourceDelay:    time.Duration(cfg.Fetch.SourceDelaySecs) * time.Second,
		},
		a.logger.With("component", "feed"),
	)

	enricher := parser.NewContentFetcher(
		parser.NewRegistry(),
		sources,
		&http.Client{Timeout: time.Duration(cfg.Fetch.RequestTimeoutSecs) * time.Second},
		cfg.Fetch.UserAgent,
		time.Duration(cfg.Fetch.PageDelaySecs)*time.Second,
		a.logger.With("component", "enricher"),
	)

	var summarizer ports.Summarizer
	gemini, err := llm.NewGeminiClient(cfg.Gemini, a.logger.With("component", "summarizer"))
	switch {
	case err == nil:
		summarizer = gemini
	case testMode:
		// Test runs should work without credentials; the templated summary
		// stands in for the model.
		a.logger.Warn("gemini unavailable, using fallback summaries", "error", err)
		summarizer = llm.FallbackSummarizer{}
	default:
		return nil, nil, err
	}

	notifier, err := slack.NewNotifier(cfg.Slack.WebhookURL, cfg.Slack.EnableFeedback,
		a.logger.With("component", "notifier"))
	if err != nil && !testMode {
		return nil, nil, err
	}

	archive, err := storage.NewArchive(cfg.Data.ArchiveDB(), a.logger.With("component", "archive"))
	if err != nil {
		return nil, nil, err
	}

	pipeline := usecase.NewPipeline(usecase.PipelineDeps{
		Source:               fetcher,
		Queue:                queue.NewManager(cfg.Data.QueueFile()),
		Filter:               filter.New(config.LoadFilter(cfg.Data.FilterFile()), a.logger.With("component", "filter")),
		Enricher:             enricher,
		Summarizer:           summarizer,
		Notifier:             notifier,
		Archiver:             archive,
		Logger:               a.logger.With("component", "pipeline"),
		BatchSize:            cfg.Queue.BatchSize,
		MaxAgeDays:           cfg.Queue.MaxAgeDays,
		CleanupAfterDays:     cfg.Queue.CleanupAfterDays,
		ArchiveRetentionDays: cfg.Archive.RetentionDays,
	})
	return pipeline, func() { archive.Close() }, nil
}

// ServeWebhook runs the feedback HTTP server until the context is cancelled.
func (a *Application) ServeWebhook(ctx context.Context) error {
	cfg := a.cfg
	log := feedback.NewLog(cfg.Data.FeedbackLog(), a.logger.With("component", "feedback"))

	var issues feedback.IssueCreator
	if cfg.GitHub.Token != "" {
		gh, err := github.NewClient(cfg.GitHub.Token, cfg.GitHub.Repo,
			a.logger.With("component", "github"))
		if err != nil {
			return err
		}
		issues = gh
	} else {
		a.logger.Warn("github token not set, feedback is logged locally only")
	}

	handler := feedback.NewHandler(log, issues, a.logger.With("component", "feedback"))
	server := webhook.NewServer(handler, log, cfg.Slack.SigningSecret,
		a.logger.With("component", "webhook"))

	httpServer := &http.Server{
		Addr:              cfg.Webhook.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("webhook server listening", "addr", cfg.Webhook.Addr)
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	}
}

// Analyze runs the feedback analysis and returns the result for display.
func (a *Application) Analyze(ctx context.Context, days, minFeedback int) (feedback.Result, error) {
	analyzer, err := a.buildAnalyzer()
	if err != nil {
		return feedback.Result{}, err
	}
	return analyzer.Run(ctx, days, minFeedback)
}

// AutoUpdate runs the gated filter auto-update flow.
func (a *Application) AutoUpdate(ctx context.Context, opts feedback.UpdateOptions) (feedback.UpdateResult, error) {
	analyzer, err := a.buildAnalyzer()
	if err != nil {
		return feedback.UpdateResult{}, err
	}

	var gh feedback.PullRequestCreator
	if !opts.DryRun {
		client, err := github.NewClient(a.cfg.GitHub.Token, a.cfg.GitHub.Repo,
			a.logger.With("component", "github"))
		if err != nil {
			return feedback.UpdateResult{}, err
		}
		gh = client
	}
	if opts.BaseBranch == "" {
		opts.BaseBranch = a.cfg.GitHub.BaseBranch
	}

	updater := feedback.NewAutoUpdater(analyzer, gh, a.logger.With("component", "autoupdate"))
	return updater.Run(ctx, opts)
}

func (a *Application) buildAnalyzer() (*feedback.Analyzer, error) {
	llmClient, err := llm.NewGeminiClient(a.cfg.Gemini, a.logger.With("component", "analyzer-llm"))
	if err != nil {
		return nil, err
	}

	filterPath := a.cfg.Data.FilterFile()
	loadFilter := func() (domain.FilterConfig, error) {
		return config.LoadFilter(filterPath), nil
	}

	log := feedback.NewLog(a.cfg.Data.FeedbackLog(), a.logger.With("component", "feedback"))
	return feedback.NewAnalyzer(log, llmClient, loadFilter, a.logger.With("component", "analyzer")), nil
}

// SearchArchive queries past digests by title or summary text.
func (a *Application) SearchArchive(ctx context.Context, query string, days int) ([]domain.ArchivedArticle, error) {
	archive, err := storage.NewArchive(a.cfg.Data.ArchiveDB(), a.logger.With("component", "archive"))
	if err != nil {
		return nil, err
	}
	defer archive.Close()
	return archive.Search(ctx, query, days)
}

// ArchiveStats reports the archive row count and per-journal counts.
func (a *Application) ArchiveStats(ctx context.Context) (int, map[string]int, error) {
	archive, err := storage.NewArchive(a.cfg.Data.ArchiveDB(), a.logger.With("component", "archive"))
	if err != nil {
		return 0, nil, err
	}
	defer archive.Close()
	return archive.Stats(ctx)
}

// QueueStats reports queue state for the queue command.
func (a *Application) QueueStats() (queue.Stats, error) {
	return queue.NewManager(a.cfg.Data.QueueFile()).Info()
}
