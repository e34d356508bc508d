package feedback

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// IssueCreator is the GitHub surface the handler needs; nil disables the
// issue mirror and feedback is logged locally only.
type IssueCreator interface {
	CreateIssue(ctx context.Context, title, body string, labels []string) (string, error)
}

// SlackAction is one entry of the interactive payload's actions array.
type SlackAction struct {
	ActionID string `json:"action_id"`
	Value    string `json:"value"`
}

// SlackPayload is the subset of the Slack Interactive Components payload the
// handler reads.
type SlackPayload struct {
	Type    string        `json:"type"`
	Actions []SlackAction `json:"actions"`
	User    struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Username string `json:"username"`
	} `json:"user"`
	Channel struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	} `json:"channel"`
}

// Handler turns button presses into log records and GitHub issues.
type Handler struct {
	sink   ports.FeedbackSink
	issues IssueCreator
	logger *slog.Logger
	now    func() time.Time
}

func NewHandler(sink ports.FeedbackSink, issues IssueCreator, logger *slog.Logger) *Handler {
	return &Handler{sink: sink, issues: issues, logger: logger, now: time.Now}
}

// Process extracts the feedback record from the payload, appends it to the
// log and mirrors it to a GitHub issue when a client is configured. The
// issue mirror failing does not fail the request; the log append does.
func (h *Handler) Process(ctx context.Context, payload SlackPayload) (domain.Feedback, error) {
	record, err := extractFeedback(payload, h.now())
	if err != nil {
		return domain.Feedback{}, err
	}

	if err := h.sink.Append(record); err != nil {
		return domain.Feedback{}, fmt.Errorf("log feedback: %w", err)
	}

	if h.issues != nil {
		if url, err := h.issues.CreateIssue(ctx, issueTitle(record), issueBody(record), issueLabels(record)); err != nil {
			h.logger.Warn("github issue mirror failed", "error", err)
		} else {
			h.logger.Info("feedback mirrored to github issue", "url", url)
		}
	}
	return record, nil
}

func extractFeedback(payload SlackPayload, now time.Time) (domain.Feedback, error) {
	if len(payload.Actions) == 0 {
		return domain.Feedback{}, fmt.Errorf("payload has no actions")
	}
	action := payload.Actions[0]
	if action.Value == "" {
		return domain.Feedback{}, fmt.Errorf("action has no value")
	}

	var value struct {
		Feedback string                 `json:"feedback"`
		Article  domain.FeedbackArticle `json:"article"`
	}
	if err := json.Unmarshal([]byte(action.Value), &value); err != nil {
		return domain.Feedback{}, fmt.Errorf("parse action value: %w", err)
	}
	if value.Feedback != domain.FeedbackInterested && value.Feedback != domain.FeedbackNotInterested {
		return domain.Feedback{}, fmt.Errorf("unknown feedback type %q", value.Feedback)
	}

	userName := payload.User.Name
	if userName == "" {
		userName = payload.User.Username
	}
	if userName == "" {
		userName = "unknown"
	}
	channelName := payload.Channel.Name
	if channelName == "" {
		channelName = "unknown"
	}

	return domain.Feedback{
		Feedback:  value.Feedback,
		Article:   value.Article,
		User:      domain.FeedbackUser{ID: payload.User.ID, Name: userName},
		Channel:   domain.FeedbackChannel{ID: payload.Channel.ID, Name: channelName},
		Timestamp: now.UTC().Format(time.RFC3339),
		ActionID:  action.ActionID,
	}, nil
}

func issueTitle(record domain.Feedback) string {
	title := record.Article.Title
	if len([]rune(title)) > 80 {
		title = string([]rune(title)[:80])
	}
	return fmt.Sprintf("Feedback: %s - %s", record.Feedback, title)
}

func issueBody(record domain.Feedback) string {
	label := "👎 興味なし"
	if record.Feedback == domain.FeedbackInterested {
		label = "👍 興味あり"
	}

	raw, _ := json.MarshalIndent(record, "", "  ")

	var b strings.Builder
	b.WriteString("## フィードバック情報\n\n")
	fmt.Fprintf(&b, "**記事タイトル**: %s\n", record.Article.Title)
	fmt.Fprintf(&b, "**ジャーナル**: %s\n", orUnknown(record.Article.Journal))
	fmt.Fprintf(&b, "**フィードバック**: %s\n", label)
	fmt.Fprintf(&b, "**ユーザー**: %s (ID: %s)\n", record.User.Name, record.User.ID)
	fmt.Fprintf(&b, "**日時**: %s\n\n", record.Timestamp)
	b.WriteString("### 記事詳細\n")
	fmt.Fprintf(&b, "- **ID**: %s\n", record.Article.ID)
	fmt.Fprintf(&b, "- **著者**: %s\n\n", strings.Join(record.Article.Authors, ", "))
	b.WriteString("### フィードバック分析用データ\n")
	fmt.Fprintf(&b, "```json\n%s\n```\n", raw)
	return b.String()
}

func issueLabels(record domain.Feedback) []string {
	return []string{"feedback", "feedback-" + record.Feedback}
}

func orUnknown(s string) string {
	if s == "" {
		return "Unknown"
	}
	return s
}
