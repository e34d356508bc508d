package filter

import (
	"testing"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/logging"
)

func TestApplyExcludeWinsOverInclude(t *testing.T) {
	t.Parallel()

	engine := New(domain.FilterConfig{
		Include: []string{"quantum"},
		Exclude: []string{"retracted"},
	}, logging.New("error"))

	articles := []domain.Article{
		{ID: "keep", Title: "Quantum entanglement at scale"},
		{ID: "drop", Title: "Quantum result retracted after review"},
	}

	kept := engine.Apply(articles)
	if len(kept) != 1 {
		t.Fatalf("expected 1 kept, got %d", len(kept))
	}
	if kept[0].ID != "keep" {
		t.Fatalf("expected article with both keywords to be excluded, kept %s", kept[0].ID)
	}
}

func TestApplyEmptyIncludeKeepsEverything(t *testing.T) {
	t.Parallel()

	engine := New(domain.FilterConfig{Exclude: []string{"retracted"}}, logging.New("error"))

	articles := []domain.Article{
		{ID: "a", Title: "Any topic at all"},
		{ID: "b", Title: "Another unrelated result"},
	}
	kept := engine.Apply(articles)
	if len(kept) != 2 {
		t.Fatalf("expected all articles kept with empty include, got %d", len(kept))
	}
}

func TestApplyIncludeFiltersNonMatching(t *testing.T) {
	t.Parallel()

	engine := New(domain.FilterConfig{Include: []string{"CRISPR"}}, logging.New("error"))

	articles := []domain.Article{
		{ID: "match-title", Title: "New crispr base editor"},
		{ID: "match-keyword", Title: "Gene editing advances", Keywords: []string{"CRISPR-Cas9"}},
		{ID: "no-match", Title: "Black hole imaging"},
	}
	kept := engine.Apply(articles)
	if len(kept) != 2 {
		t.Fatalf("expected 2 kept, got %d", len(kept))
	}
	for _, article := range kept {
		if article.ID == "no-match" {
			t.Fatalf("non-matching article passed the include filter")
		}
	}
}

func TestApplyResearchOnlyDropsNewsLinks(t *testing.T) {
	t.Parallel()

	engine := New(domain.FilterConfig{ResearchOnly: true}, logging.New("error"))

	articles := []domain.Article{
		{ID: "research", Link: "https://www.nature.com/articles/s41586-026-01234-5"},
		{ID: "news", Link: "https://www.nature.com/articles/d41586-026-00001-1"},
	}
	kept := engine.Apply(articles)
	if len(kept) != 1 || kept[0].ID != "research" {
		t.Fatalf("expected only research article kept, got %+v", kept)
	}
}
