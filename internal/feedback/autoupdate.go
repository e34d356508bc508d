package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PaperDigest/internal/infrastructure/github"
)

// PullRequestCreator is the GitHub surface the auto-updater needs.
type PullRequestCreator interface {
	CreateFilePR(ctx context.Context, spec github.PullRequestSpec) (string, error)
}

// UpdateOptions bound how aggressive an automated filter change may be.
type UpdateOptions struct {
	Days          int
	MinFeedback   int
	MinConfidence int
	MaxChanges    int
	BaseBranch    string
	FilterPath    string // repo-relative path of the filter config
	DryRun        bool
}

func (o *UpdateOptions) defaults() {
	if o.Days <= 0 {
		o.Days = 30
	}
	if o.MinFeedback <= 0 {
		o.MinFeedback = 5
	}
	if o.MinConfidence <= 0 {
		o.MinConfidence = 6
	}
	if o.MaxChanges <= 0 {
		o.MaxChanges = 10
	}
	if o.BaseBranch == "" {
		o.BaseBranch = "main"
	}
	if o.FilterPath == "" {
		o.FilterPath = "data/filter_config.json"
	}
}

// UpdateResult statuses, in addition to the analyzer's.
const (
	StatusSkipped = "skipped"
)

type UpdateResult struct {
	Status     string `json:"status"`
	Message    string `json:"message"`
	BranchName string `json:"branch_name,omitempty"`
	PRURL      string `json:"pr_url,omitempty"`
	Analysis   Result `json:"analysis_result"`
}

// AutoUpdater ships filter changes as pull requests so a human reviews every
// automated change. It never writes the live filter config directly.
type AutoUpdater struct {
	analyzer *Analyzer
	gh       PullRequestCreator
	logger   *slog.Logger
	now      func() time.Time
}

func NewAutoUpdater(analyzer *Analyzer, gh PullRequestCreator, logger *slog.Logger) *AutoUpdater {
	return &AutoUpdater{analyzer: analyzer, gh: gh, logger: logger, now: time.Now}
}

// Run analyzes recent feedback and, if every gate passes, opens a PR with
// the updated filter config.
func (u *AutoUpdater) Run(ctx context.Context, opts UpdateOptions) (UpdateResult, error) {
	opts.defaults()
	u.logger.Info("starting auto filter update",
		"days", opts.Days, "min_feedback", opts.MinFeedback,
		"min_confidence", opts.MinConfidence, "dry_run", opts.DryRun)

	result, err := u.analyzer.Run(ctx, opts.Days, opts.MinFeedback)
	if err != nil {
		return UpdateResult{}, err
	}

	if reason, ok := u.gate(result, opts); !ok {
		u.logger.Info("auto-update skipped", "reason", reason)
		return UpdateResult{Status: StatusSkipped, Message: reason, Analysis: result}, nil
	}

	recs := result.Recommendations
	content, err := json.MarshalIndent(recs.UpdatedFilters, "", "  ")
	if err != nil {
		return UpdateResult{}, fmt.Errorf("marshal updated filters: %w", err)
	}
	content = append(content, '\n')

	branch := "auto-update-filters-" + u.now().Format("20060102-150405")

	if opts.DryRun {
		u.logger.Info("dry run: would open pull request",
			"branch", branch,
			"includes", recs.SuggestedIncludes,
			"excludes", recs.SuggestedExcludes)
		return UpdateResult{
			Status:     StatusSuccess,
			Message:    "dry run: no pull request opened",
			BranchName: branch,
			Analysis:   result,
		}, nil
	}

	prURL, err := u.gh.CreateFilePR(ctx, github.PullRequestSpec{
		BaseBranch:    opts.BaseBranch,
		BranchName:    branch,
		FilePath:      opts.FilterPath,
		FileContent:   content,
		CommitMessage: buildCommitMessage(result),
		Title:         fmt.Sprintf("フィードバック分析によるフィルター更新 (信頼度: %d/10)", recs.Confidence),
		Body:          buildPRBody(result),
	})
	if err != nil {
		return UpdateResult{}, fmt.Errorf("open filter update pr: %w", err)
	}

	u.logger.Info("auto-update pull request opened", "url", prURL, "branch", branch)
	return UpdateResult{
		Status:     StatusSuccess,
		Message:    "auto-update completed",
		BranchName: branch,
		PRURL:      prURL,
		Analysis:   result,
	}, nil
}

// gate rejects updates that are under-evidenced or suspiciously large.
func (u *AutoUpdater) gate(result Result, opts UpdateOptions) (string, bool) {
	if result.Status != StatusSuccess {
		return fmt.Sprintf("analysis not successful: %s", result.Message), false
	}
	if result.DataCount < opts.MinFeedback {
		return fmt.Sprintf("insufficient feedback data: %d < %d", result.DataCount, opts.MinFeedback), false
	}
	recs := result.Recommendations
	if recs.Confidence < opts.MinConfidence {
		return fmt.Sprintf("low confidence score: %d < %d", recs.Confidence, opts.MinConfidence), false
	}
	changes := len(recs.SuggestedIncludes) + len(recs.SuggestedExcludes)
	if changes == 0 {
		return "no new keywords suggested", false
	}
	if changes > opts.MaxChanges {
		return fmt.Sprintf("too many changes suggested: %d > %d", changes, opts.MaxChanges), false
	}
	return "", true
}

func buildCommitMessage(result Result) string {
	recs := result.Recommendations
	lines := []string{
		"フィードバック分析によるフィルター自動更新",
		"",
		fmt.Sprintf("分析データ: %d feedback entries", result.DataCount),
		fmt.Sprintf("信頼度スコア: %d/10", recs.Confidence),
	}
	if len(recs.SuggestedIncludes) > 0 {
		lines = append(lines, "追加 include: "+strings.Join(recs.SuggestedIncludes, ", "))
	}
	if len(recs.SuggestedExcludes) > 0 {
		lines = append(lines, "追加 exclude: "+strings.Join(recs.SuggestedExcludes, ", "))
	}
	return strings.Join(lines, "\n")
}

func buildPRBody(result Result) string {
	recs := result.Recommendations
	var b strings.Builder
	b.WriteString("## フィードバック分析によるフィルター自動更新\n\n")
	b.WriteString("### 分析結果サマリー\n")
	fmt.Fprintf(&b, "- **分析データ**: %d feedback entries\n", result.DataCount)
	fmt.Fprintf(&b, "- **信頼度スコア**: %d/10\n", recs.Confidence)
	fmt.Fprintf(&b, "- **変更数**: %d keywords\n\n", len(recs.SuggestedIncludes)+len(recs.SuggestedExcludes))

	if len(recs.SuggestedIncludes) > 0 {
		b.WriteString("### 追加される include キーワード\n")
		for _, kw := range recs.SuggestedIncludes {
			fmt.Fprintf(&b, "- `%s`\n", kw)
		}
		b.WriteString("\n")
	}
	if len(recs.SuggestedExcludes) > 0 {
		b.WriteString("### 追加される exclude キーワード\n")
		for _, kw := range recs.SuggestedExcludes {
			fmt.Fprintf(&b, "- `%s`\n", kw)
		}
		b.WriteString("\n")
	}

	b.WriteString("### 分析詳細\n")
	fmt.Fprintf(&b, "**分析サマリー**: %s\n\n", result.Analysis.Summary)
	fmt.Fprintf(&b, "**推奨理由**: %s\n\n", recs.Reasoning)
	b.WriteString("### レビューポイント\n")
	b.WriteString("- 追加されるキーワードが適切か確認\n")
	b.WriteString("- 既存のキーワードとの重複や矛盾がないか確認\n")
	b.WriteString("- ユーザーの興味傾向と一致しているか確認\n")
	return b.String()
}
