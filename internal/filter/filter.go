package filter

import (
	"log/slog"
	"strings"

	"PaperDigest/internal/domain"
)

const newsURLMarker = "d41586"

// Engine applies include/exclude keyword rules and the research-only URL
// heuristic before the expensive fetch and summarize stages. Pure keep/drop,
// no scoring.
type Engine struct {
	config domain.FilterConfig
	logger *slog.Logger
}

// New wires an immutable filter configuration.
func New(config domain.FilterConfig, logger *slog.Logger) *Engine {
	return &Engine{config: config, logger: logger}
}

// Apply returns the subset of articles that pass all rules. Exclude keywords
// take precedence over include keywords; an empty include list keeps
// everything not otherwise dropped.
func (e *Engine) Apply(articles []domain.Article) []domain.Article {
	include := lowerAll(e.config.Include)
	exclude := lowerAll(e.config.Exclude)

	kept := make([]domain.Article, 0, len(articles))
	droppedResearch, droppedKeyword := 0, 0

	for _, article := range articles {
		if e.config.ResearchOnly && strings.Contains(article.Link, newsURLMarker) {
			droppedResearch++
			continue
		}

		corpus := strings.ToLower(article.SearchText())

		if matchesAny(corpus, exclude) {
			droppedKeyword++
			continue
		}
		if len(include) > 0 && !matchesAny(corpus, include) {
			droppedKeyword++
			continue
		}

		kept = append(kept, article)
	}

	e.logger.Info("filtered articles",
		"total", len(articles),
		"research_filter", droppedResearch,
		"keyword_filter", droppedKeyword,
		"passed", len(kept))
	return kept
}

func matchesAny(corpus string, keywords []string) bool {
	for _, keyword := range keywords {
		if keyword != "" && strings.Contains(corpus, keyword) {
			return true
		}
	}
	return false
}

func lowerAll(keywords []string) []string {
	lowered := make([]string, 0, len(keywords))
	for _, keyword := range keywords {
		lowered = append(lowered, strings.ToLower(keyword))
	}
	return lowered
}
