package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

var numberEmojis = []string{"1️⃣", "2️⃣", "3️⃣", "4️⃣", "5️⃣", "6️⃣", "7️⃣", "8️⃣", "9️⃣", "🔟"}

// Notifier posts Block Kit messages to an incoming Slack webhook, one
// section group per article plus optional feedback buttons.
type Notifier struct {
	webhookURL     string
	enableFeedback bool
	client         *http.Client
	logger         *slog.Logger
	now            func() time.Time
}

var _ ports.Notifier = (*Notifier)(nil)

// NewNotifier registers the webhook URL; an empty URL is a construction-time
// error because the pipeline cannot deliver results without it.
func NewNotifier(webhookURL string, enableFeedback bool, logger *slog.Logger) (*Notifier, error) {
	if webhookURL == "" {
		return nil, fmt.Errorf("slack webhook url is not set")
	}
	return &Notifier{
		webhookURL:     webhookURL,
		enableFeedback: enableFeedback,
		client:         &http.Client{Timeout: 10 * time.Second},
		logger:         logger,
		now:            time.Now,
	}, nil
}

// SendNotification posts the daily report for the given articles.
func (n *Notifier) SendNotification(ctx context.Context, articles []domain.Article) error {
	if len(articles) == 0 {
		return nil
	}
	return n.post(ctx, map[string]any{"blocks": n.buildBlocks(articles)})
}

// SendErrorNotification posts a pipeline failure report to the same channel.
func (n *Notifier) SendErrorNotification(ctx context.Context, message string) error {
	blocks := []map[string]any{
		header("⚠️ 論文サマライザーエラー"),
		mrkdwnSection(fmt.Sprintf("エラーが発生しました:\n```%s```", message)),
	}
	return n.post(ctx, map[string]any{"blocks": blocks})
}

func (n *Notifier) buildBlocks(articles []domain.Article) []map[string]any {
	blocks := []map[string]any{
		header(fmt.Sprintf("📚 今日の論文レポート - %s", n.now().Format("2006年01月02日"))),
	}

	for i, article := range articles {
		summary := article.SummaryJA
		if summary == "" {
			// The summarizer guarantees a non-empty summary; this covers
			// records replayed from older queue files.
			n.logger.Warn("article missing summary_ja", "title", article.Title)
			summary = "要約が生成されませんでした。"
		}

		numberEmoji := fmt.Sprintf("%d.", i+1)
		if i < len(numberEmojis) {
			numberEmoji = numberEmojis[i]
		}

		blocks = append(blocks,
			mrkdwnSection(fmt.Sprintf("%s *%s*\n👥 %s", numberEmoji, orDefault(article.Title, "タイトルなし"), authorGroup(article.Authors))),
			mrkdwnSection(fmt.Sprintf("📝 %s", summary)),
			mrkdwnSection(fmt.Sprintf("🔗 <%s|論文を読む>", orDefault(article.Link, "#"))),
		)

		if n.enableFeedback {
			blocks = append(blocks, n.feedbackButtons(article, i+1))
		}
		if i < len(articles)-1 {
			blocks = append(blocks, map[string]any{"type": "divider"})
		}
	}
	return blocks
}

// feedbackButtons embeds a compact article blob in each button value so the
// webhook can reconstruct the feedback context without extra lookups.
func (n *Notifier) feedbackButtons(article domain.Article, articleNum int) map[string]any {
	id := article.ID
	if id == "" {
		id = article.Link
	}
	if id == "" {
		id = fmt.Sprintf("unknown_%d", articleNum)
	}

	title := article.Title
	if len([]rune(title)) > 100 {
		title = string([]rune(title)[:100])
	}
	authors := article.Authors
	if len(authors) > 3 {
		authors = authors[:3]
	}

	blob := domain.FeedbackArticle{
		ID:        id,
		Title:     title,
		Journal:   article.Journal,
		Authors:   authors,
		Timestamp: n.now().Format(time.RFC3339),
	}

	return map[string]any{
		"type": "actions",
		"elements": []map[string]any{
			button("👍 興味あり", "primary", "feedback_interested", domain.FeedbackInterested, blob),
			button("👎 興味なし", "", "feedback_not_interested", domain.FeedbackNotInterested, blob),
		},
	}
}

func (n *Notifier) post(ctx context.Context, message map[string]any) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("marshal slack message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, n.webhookURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.client.Do(req)
	if err != nil {
		return fmt.Errorf("send slack message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("slack error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}
	return nil
}

func authorGroup(authors []string) string {
	switch {
	case len(authors) == 0:
		return "著者情報なし"
	case len(authors) > 2:
		return authors[0] + " et al."
	default:
		return strings.Join(authors, " & ")
	}
}

func header(text string) map[string]any {
	return map[string]any{
		"type": "header",
		"text": map[string]any{"type": "plain_text", "text": text, "emoji": true},
	}
}

func mrkdwnSection(text string) map[string]any {
	return map[string]any{
		"type": "section",
		"text": map[string]any{"type": "mrkdwn", "text": text},
	}
}

func button(label, style, actionID, feedback string, article domain.FeedbackArticle) map[string]any {
	value, _ := json.Marshal(map[string]any{
		"feedback": feedback,
		"article":  article,
	})

	b := map[string]any{
		"type":      "button",
		"text":      map[string]any{"type": "plain_text", "text": label, "emoji": true},
		"action_id": actionID,
		"value":     string(value),
	}
	if style != "" {
		b["style"] = style
	}
	return b
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
