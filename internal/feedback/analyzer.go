package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"sort"
	"strings"
	"time"

	"PaperDigest/internal/domain"
)

// TextGenerator is the LLM surface the analyzer needs.
type TextGenerator interface {
	GenerateContent(ctx context.Context, prompt string) (string, error)
}

// Patterns is the counting stage applied before the LLM sees anything.
type Patterns struct {
	Interested    PatternGroup `json:"interested"`
	NotInterested PatternGroup `json:"not_interested"`
	Statistics    PatternStats `json:"statistics"`
}

type PatternGroup struct {
	Titles        []string       `json:"titles"`
	AuthorCounts  map[string]int `json:"author_counts"`
	JournalCounts map[string]int `json:"journal_counts"`
}

type PatternStats struct {
	TotalFeedback      int `json:"total_feedback"`
	InterestedCount    int `json:"interested_count"`
	NotInterestedCount int `json:"not_interested_count"`
}

// Analysis is the JSON document the LLM is asked to return.
type Analysis struct {
	InterestedPatterns struct {
		Keywords        []string `json:"keywords"`
		Fields          []string `json:"fields"`
		Characteristics string   `json:"characteristics"`
	} `json:"interested_patterns"`
	NotInterestedPatterns struct {
		Keywords        []string `json:"keywords"`
		Characteristics string   `json:"characteristics"`
	} `json:"not_interested_patterns"`
	Recommendations struct {
		NewIncludeKeywords []string `json:"new_include_keywords"`
		NewExcludeKeywords []string `json:"new_exclude_keywords"`
		Reasoning          string   `json:"reasoning"`
	} `json:"recommendations"`
	Summary string `json:"summary"`
}

// Recommendations merges the LLM suggestions against the current filter.
// Confidence is the number of distinct pattern keywords the LLM identified,
// not a model-reported score.
type Recommendations struct {
	CurrentFilters    domain.FilterConfig `json:"current_filters"`
	SuggestedIncludes []string            `json:"suggested_includes"`
	SuggestedExcludes []string            `json:"suggested_excludes"`
	UpdatedFilters    domain.FilterConfig `json:"updated_filters"`
	Reasoning         string              `json:"reasoning"`
	Confidence        int                 `json:"confidence"`
}

// Result statuses.
const (
	StatusSuccess          = "success"
	StatusInsufficientData = "insufficient_data"
)

// Result is the full analysis output consumed by the auto-updater and the
// analyze command.
type Result struct {
	Status          string          `json:"status"`
	Message         string          `json:"message,omitempty"`
	DataCount       int             `json:"data_count"`
	AnalysisPeriod  string          `json:"analysis_period,omitempty"`
	Patterns        Patterns        `json:"patterns,omitempty"`
	Analysis        Analysis        `json:"ai_analysis,omitempty"`
	Recommendations Recommendations `json:"filter_recommendations,omitempty"`
	Timestamp       string          `json:"timestamp,omitempty"`
}

// Analyzer turns the feedback window into filter recommendations.
type Analyzer struct {
	log        *Log
	llm        TextGenerator
	loadFilter func() (domain.FilterConfig, error)
	logger     *slog.Logger
	now        func() time.Time
}

func NewAnalyzer(log *Log, llm TextGenerator, loadFilter func() (domain.FilterConfig, error), logger *slog.Logger) *Analyzer {
	return &Analyzer{
		log:        log,
		llm:        llm,
		loadFilter: loadFilter,
		logger:     logger,
		now:        time.Now,
	}
}

// Run loads the window, extracts patterns, asks the LLM for keyword
// suggestions and merges them with the current filter config.
func (a *Analyzer) Run(ctx context.Context, days, minFeedback int) (Result, error) {
	a.logger.Info("starting feedback analysis", "days", days, "min_feedback", minFeedback)

	records, err := a.log.Load(days)
	if err != nil {
		return Result{}, fmt.Errorf("load feedback: %w", err)
	}
	if len(records) < minFeedback {
		return Result{
			Status:    StatusInsufficientData,
			Message:   fmt.Sprintf("need at least %d feedback entries, got %d", minFeedback, len(records)),
			DataCount: len(records),
		}, nil
	}

	patterns := ExtractPatterns(records)

	analysis, err := a.analyzeWithLLM(ctx, patterns)
	if err != nil {
		return Result{}, fmt.Errorf("llm analysis: %w", err)
	}

	recs, err := a.buildRecommendations(analysis)
	if err != nil {
		return Result{}, err
	}

	return Result{
		Status:          StatusSuccess,
		DataCount:       len(records),
		AnalysisPeriod:  fmt.Sprintf("%d days", days),
		Patterns:        patterns,
		Analysis:        analysis,
		Recommendations: recs,
		Timestamp:       a.now().UTC().Format(time.RFC3339),
	}, nil
}

// ExtractPatterns aggregates feedback records into per-type counters.
func ExtractPatterns(records []domain.Feedback) Patterns {
	patterns := Patterns{
		Interested:    PatternGroup{AuthorCounts: map[string]int{}, JournalCounts: map[string]int{}},
		NotInterested: PatternGroup{AuthorCounts: map[string]int{}, JournalCounts: map[string]int{}},
	}
	patterns.Statistics.TotalFeedback = len(records)

	for _, rec := range records {
		var group *PatternGroup
		switch rec.Feedback {
		case domain.FeedbackInterested:
			patterns.Statistics.InterestedCount++
			group = &patterns.Interested
		case domain.FeedbackNotInterested:
			patterns.Statistics.NotInterestedCount++
			group = &patterns.NotInterested
		default:
			continue
		}

		group.Titles = append(group.Titles, rec.Article.Title)
		for _, author := range rec.Article.Authors {
			group.AuthorCounts[author]++
		}
		if rec.Article.Journal != "" {
			group.JournalCounts[rec.Article.Journal]++
		}
	}
	return patterns
}

var jsonBlock = regexp.MustCompile(`(?s)\{.*\}`)

func (a *Analyzer) analyzeWithLLM(ctx context.Context, patterns Patterns) (Analysis, error) {
	prompt := buildAnalysisPrompt(patterns)

	text, err := a.llm.GenerateContent(ctx, prompt)
	if err != nil {
		return Analysis{}, err
	}

	// Models wrap the JSON in prose or code fences; take the outermost
	// object.
	raw := jsonBlock.FindString(text)
	if raw == "" {
		return Analysis{}, fmt.Errorf("no JSON object in model response")
	}

	var analysis Analysis
	if err := json.Unmarshal([]byte(raw), &analysis); err != nil {
		return Analysis{}, fmt.Errorf("decode model response: %w", err)
	}
	a.logger.Info("feedback analysis completed",
		"include_suggestions", len(analysis.Recommendations.NewIncludeKeywords),
		"exclude_suggestions", len(analysis.Recommendations.NewExcludeKeywords))
	return analysis, nil
}

func buildAnalysisPrompt(patterns Patterns) string {
	var b strings.Builder
	b.WriteString("以下のユーザーフィードバックデータを分析し、興味パターンを特定してください：\n\n")
	b.WriteString("【興味ありの論文タイトル】\n")
	for _, title := range patterns.Interested.Titles {
		fmt.Fprintf(&b, "- %s\n", title)
	}
	b.WriteString("\n【興味なしの論文タイトル】\n")
	for _, title := range patterns.NotInterested.Titles {
		fmt.Fprintf(&b, "- %s\n", title)
	}
	b.WriteString(`
以下の観点で分析し、JSON形式で回答してください：

1. 興味ありパターンの特徴（キーワード、研究分野、手法など）
2. 興味なしパターンの特徴
3. 新しいキーワード候補（include用）
4. 除外キーワード候補（exclude用）
5. 全体的な傾向

回答形式：
{
  "interested_patterns": {
    "keywords": ["キーワード1", "キーワード2"],
    "fields": ["研究分野1", "研究分野2"],
    "characteristics": "特徴の説明"
  },
  "not_interested_patterns": {
    "keywords": ["キーワード1", "キーワード2"],
    "characteristics": "特徴の説明"
  },
  "recommendations": {
    "new_include_keywords": ["推奨キーワード1", "推奨キーワード2"],
    "new_exclude_keywords": ["除外キーワード1", "除外キーワード2"],
    "reasoning": "推奨理由"
  },
  "summary": "全体分析のまとめ"
}
`)
	return b.String()
}

func (a *Analyzer) buildRecommendations(analysis Analysis) (Recommendations, error) {
	current, err := a.loadFilter()
	if err != nil {
		return Recommendations{}, fmt.Errorf("load filter config: %w", err)
	}

	newIncludes := subtract(analysis.Recommendations.NewIncludeKeywords, current.Include)
	newExcludes := subtract(analysis.Recommendations.NewExcludeKeywords, current.Exclude)

	updated := domain.FilterConfig{
		Include:      sortedUnion(current.Include, newIncludes),
		Exclude:      sortedUnion(current.Exclude, newExcludes),
		ResearchOnly: current.ResearchOnly,
	}

	return Recommendations{
		CurrentFilters:    current,
		SuggestedIncludes: newIncludes,
		SuggestedExcludes: newExcludes,
		UpdatedFilters:    updated,
		Reasoning:         analysis.Recommendations.Reasoning,
		Confidence: len(analysis.InterestedPatterns.Keywords) +
			len(analysis.NotInterestedPatterns.Keywords),
	}, nil
}

func subtract(candidates, existing []string) []string {
	seen := make(map[string]struct{}, len(existing))
	for _, kw := range existing {
		seen[kw] = struct{}{}
	}
	var out []string
	for _, kw := range candidates {
		if _, ok := seen[kw]; ok {
			continue
		}
		seen[kw] = struct{}{}
		out = append(out, kw)
	}
	return out
}

func sortedUnion(existing, additions []string) []string {
	out := make([]string, 0, len(existing)+len(additions))
	out = append(out, existing...)
	out = append(out, additions...)
	sort.Strings(out)
	return out
}
