package feedback

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/infrastructure/github"
	"PaperDigest/internal/logging"
)

type stubPRCreator struct {
	spec   github.PullRequestSpec
	called bool
}

func (s *stubPRCreator) CreateFilePR(_ context.Context, spec github.PullRequestSpec) (string, error) {
	s.called = true
	s.spec = spec
	return "https://github.com/example/repo/pull/1", nil
}

func newTestUpdater(t *testing.T, llmResponse string, seed int) (*AutoUpdater, *stubPRCreator) {
	t.Helper()
	analyzer, log := newTestAnalyzer(t, &stubLLM{response: llmResponse}, domain.FilterConfig{ResearchOnly: true})
	seedFeedback(t, log, seed)

	pr := &stubPRCreator{}
	return NewAutoUpdater(analyzer, pr, logging.New("error")), pr
}

func TestAutoUpdateOpensPullRequest(t *testing.T) {
	t.Parallel()

	updater, pr := newTestUpdater(t, analysisJSON, 6)

	result, err := updater.Run(context.Background(), UpdateOptions{
		Days:          30,
		MinFeedback:   5,
		MinConfidence: 6,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success, got %s: %s", result.Status, result.Message)
	}
	if !pr.called {
		t.Fatalf("pull request was not opened")
	}
	if result.PRURL == "" {
		t.Fatalf("pr url missing from result")
	}

	if !strings.HasPrefix(pr.spec.BranchName, "auto-update-filters-") {
		t.Fatalf("unexpected branch name: %s", pr.spec.BranchName)
	}
	if pr.spec.FilePath != "data/filter_config.json" {
		t.Fatalf("unexpected file path: %s", pr.spec.FilePath)
	}

	var updated domain.FilterConfig
	if err := json.Unmarshal(pr.spec.FileContent, &updated); err != nil {
		t.Fatalf("pr file content is not valid filter json: %v", err)
	}
	if !updated.ResearchOnly {
		t.Fatalf("research_only flag lost in updated config")
	}
}

func TestAutoUpdateSkipsOnLowConfidence(t *testing.T) {
	t.Parallel()

	updater, pr := newTestUpdater(t, analysisJSON, 6)

	// Confidence from the stub analysis is 6; require more.
	result, err := updater.Run(context.Background(), UpdateOptions{
		Days:          30,
		MinFeedback:   5,
		MinConfidence: 9,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", result.Status)
	}
	if pr.called {
		t.Fatalf("pull request opened despite low confidence")
	}
}

func TestAutoUpdateSkipsOnInsufficientData(t *testing.T) {
	t.Parallel()

	updater, pr := newTestUpdater(t, analysisJSON, 2)

	result, err := updater.Run(context.Background(), UpdateOptions{
		Days:        30,
		MinFeedback: 5,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != StatusSkipped {
		t.Fatalf("expected skipped, got %s", result.Status)
	}
	if pr.called {
		t.Fatalf("pull request opened despite insufficient data")
	}
}

func TestAutoUpdateSkipsWhenNothingSuggested(t *testing.T) {
	t.Parallel()

	noChanges := `{
	  "interested_patterns": {"keywords": ["a", "b", "c"]},
	  "not_interested_patterns": {"keywords": ["d", "e", "f"]},
	  "recommendations": {"new_include_keywords": [], "new_exclude_keywords": [], "reasoning": ""},
	  "summary": ""
	}`
	updater, pr := newTestUpdater(t, noChanges, 6)

	result, err := updater.Run(context.Background(), UpdateOptions{
		Days:          30,
		MinFeedback:   5,
		MinConfidence: 6,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != StatusSkipped {
		t.Fatalf("expected skipped when no keywords suggested, got %s", result.Status)
	}
	if pr.called {
		t.Fatalf("pull request opened with no changes")
	}
}

func TestAutoUpdateDryRun(t *testing.T) {
	t.Parallel()

	updater, pr := newTestUpdater(t, analysisJSON, 6)

	result, err := updater.Run(context.Background(), UpdateOptions{
		Days:          30,
		MinFeedback:   5,
		MinConfidence: 6,
		DryRun:        true,
	})
	if err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
	if result.Status != StatusSuccess {
		t.Fatalf("expected success in dry run, got %s", result.Status)
	}
	if pr.called {
		t.Fatalf("dry run opened a pull request")
	}
	if result.PRURL != "" {
		t.Fatalf("dry run reported a pr url: %s", result.PRURL)
	}
}
