package usecase

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/filter"
	"PaperDigest/internal/logging"
	"PaperDigest/internal/queue"
)

type stubSource struct {
	articles []domain.Article
	err      error
}

func (s *stubSource) FetchNewArticles(context.Context) ([]domain.Article, error) {
	return s.articles, s.err
}

type stubEnricher struct {
	enriched []string
}

func (s *stubEnricher) FetchArticleDetails(_ context.Context, article *domain.Article) {
	s.enriched = append(s.enriched, article.ID)
	article.Abstract = "enriched abstract for " + article.ID
}

type stubSummarizer struct{}

func (stubSummarizer) Summarize(_ context.Context, article domain.Article) string {
	return "要約: " + article.Title
}

type stubNotifier struct {
	sent      [][]domain.Article
	errorMsgs []string
	sendErr   error
}

func (s *stubNotifier) SendNotification(_ context.Context, articles []domain.Article) error {
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, articles)
	return nil
}

func (s *stubNotifier) SendErrorNotification(_ context.Context, message string) error {
	s.errorMsgs = append(s.errorMsgs, message)
	return nil
}

type stubArchiver struct {
	archived         []domain.Article
	cleanupRetention int
	err              error
}

func (s *stubArchiver) ArchiveProcessed(_ context.Context, articles []domain.Article) (int, error) {
	if s.err != nil {
		return 0, s.err
	}
	s.archived = append(s.archived, articles...)
	return len(articles), nil
}

func (s *stubArchiver) CleanupOld(_ context.Context, retentionDays int) (int, error) {
	s.cleanupRetention = retentionDays
	return 0, nil
}

func sampleArticles() []domain.Article {
	return []domain.Article{
		{ID: "a1", Journal: "Nature", Title: "CRISPR repair pathways", Link: "https://nature.com/articles/s41586-1"},
		{ID: "a2", Journal: "Science", Title: "Retraction notice", Link: "https://science.org/doi/2"},
		{ID: "a3", Journal: "Cell", Title: "Vaccine platform design", Link: "https://cell.com/articles/3"},
	}
}

func newTestPipeline(t *testing.T, source *stubSource, notifier *stubNotifier, archiver *stubArchiver) (*Pipeline, *stubEnricher) {
	t.Helper()
	enricher := &stubEnricher{}
	logger := logging.New("error")
	p := NewPipeline(PipelineDeps{
		Source: source,
		Queue:  queue.NewManager(filepath.Join(t.TempDir(), "queue.json")),
		Filter: filter.New(domain.FilterConfig{
			Exclude: []string{"retraction"},
		}, logger),
		Enricher:             enricher,
		Summarizer:           stubSummarizer{},
		Notifier:             notifier,
		Archiver:             archiver,
		Logger:               logger,
		BatchSize:            10,
		MaxAgeDays:           7,
		CleanupAfterDays:     7,
		ArchiveRetentionDays: 365,
	})
	return p, enricher
}

func TestRunDeliversFilteredSummarizedBatch(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	archiver := &stubArchiver{}
	p, enricher := newTestPipeline(t, &stubSource{articles: sampleArticles()}, notifier, archiver)

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}

	if len(notifier.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(notifier.sent))
	}
	delivered := notifier.sent[0]
	if len(delivered) != 2 {
		t.Fatalf("expected 2 articles after excluding the retraction, got %d", len(delivered))
	}
	for _, a := range delivered {
		if strings.Contains(strings.ToLower(a.Title), "retraction") {
			t.Fatalf("excluded article reached delivery: %q", a.Title)
		}
		if a.SummaryJA == "" {
			t.Fatalf("article %s delivered without summary", a.ID)
		}
		if a.Abstract == "" {
			t.Fatalf("article %s delivered without enrichment", a.ID)
		}
	}
	if len(enricher.enriched) != 2 {
		t.Fatalf("expected 2 enrichment calls, got %d", len(enricher.enriched))
	}
	if len(archiver.archived) != 2 {
		t.Fatalf("expected 2 archived articles, got %d", len(archiver.archived))
	}
	if archiver.cleanupRetention != 365 {
		t.Fatalf("archive retention cleanup not invoked: %d", archiver.cleanupRetention)
	}
}

func TestRunDrainsQueue(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	p, _ := newTestPipeline(t, &stubSource{articles: sampleArticles()}, notifier, &stubArchiver{})

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("second run: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("second run re-delivered the drained batch: %d notifications", len(notifier.sent))
	}
}

func TestRunTestModeSkipsDeliveryAndArchive(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	archiver := &stubArchiver{}
	p, _ := newTestPipeline(t, &stubSource{articles: sampleArticles()}, notifier, archiver)

	if err := p.Run(context.Background(), true); err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if len(notifier.sent) != 0 {
		t.Fatalf("test mode sent a notification")
	}
	if len(archiver.archived) != 0 {
		t.Fatalf("test mode archived articles")
	}
	if archiver.cleanupRetention != 0 {
		t.Fatalf("test mode ran archive cleanup")
	}
}

func TestRunArchiveFailureDoesNotFailAfterDelivery(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	p, _ := newTestPipeline(t, &stubSource{articles: sampleArticles()}, notifier, &stubArchiver{err: errors.New("db locked")})

	if err := p.Run(context.Background(), false); err != nil {
		t.Fatalf("archive failure should not fail the run once delivery succeeded: %v", err)
	}
	if len(notifier.sent) != 1 {
		t.Fatalf("expected the digest to have been delivered")
	}
}

func TestRunAndReportMirrorsFailureToChannel(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	p, _ := newTestPipeline(t, &stubSource{err: errors.New("upstream down")}, notifier, &stubArchiver{})

	if err := p.RunAndReport(context.Background(), false); err == nil {
		t.Fatalf("expected the fetch error to propagate")
	}
	if len(notifier.errorMsgs) != 1 {
		t.Fatalf("expected 1 error notification, got %d", len(notifier.errorMsgs))
	}
	if !strings.Contains(notifier.errorMsgs[0], "upstream down") {
		t.Fatalf("error notification missing cause: %q", notifier.errorMsgs[0])
	}
}

func TestRunAndReportTestModeStaysSilent(t *testing.T) {
	t.Parallel()

	notifier := &stubNotifier{}
	p, _ := newTestPipeline(t, &stubSource{err: errors.New("upstream down")}, notifier, &stubArchiver{})

	if err := p.RunAndReport(context.Background(), true); err == nil {
		t.Fatalf("expected the fetch error to propagate")
	}
	if len(notifier.errorMsgs) != 0 {
		t.Fatalf("test mode should not send error notifications")
	}
}
