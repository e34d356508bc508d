package llm

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

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// GeminiClient talks to the Gemini generateContent API. It also backs the
// feedback analyzer, which reuses GenerateContent with its own prompt.
type GeminiClient struct {
	endpoint   string
	model      string
	apiKey     string
	callDelay  time.Duration
	minLength  int
	httpClient *http.Client
	logger     *slog.Logger
}

var _ ports.Summarizer = (*GeminiClient)(nil)

// NewGeminiClient builds a client from configuration. A missing API key is a
// construction-time error: the summarizer is useless without it.
func NewGeminiClient(cfg config.GeminiConfig, logger *slog.Logger) (*GeminiClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini api key is not set")
	}
	return &GeminiClient{
		endpoint:   strings.TrimSuffix(cfg.Endpoint, "/"),
		model:      cfg.Model,
		apiKey:     cfg.APIKey,
		callDelay:  time.Duration(cfg.CallDelaySecs) * time.Second,
		minLength:  cfg.MinSummaryLength,
		httpClient: &http.Client{Timeout: 30 * time.Second},
		logger:     logger,
	}, nil
}

// Summarize returns a bounded Japanese summary for the article. The result
// is never empty: model failures and low-quality output degrade to the
// deterministic template fallback.
func (c *GeminiClient) Summarize(ctx context.Context, article domain.Article) string {
	prompt := buildSummaryPrompt(article)

	text, err := c.GenerateContent(ctx, prompt)
	if err != nil {
		c.logger.Warn("summary generation failed, using fallback", "title", article.Title, "error", err)
		return FallbackSummary(article)
	}

	text = strings.TrimSpace(text)
	if len([]rune(text)) < c.minLength {
		c.logger.Warn("summary below minimum length, using fallback", "title", article.Title, "length", len([]rune(text)))
		return FallbackSummary(article)
	}
	return text
}

// GenerateContent performs one generateContent call and extracts the first
// candidate's text. A fixed post-call delay keeps the request rate polite.
func (c *GeminiClient) GenerateContent(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(map[string]any{
		"contents": []map[string]any{
			{"parts": []map[string]string{{"text": prompt}}},
		},
	})
	if err != nil {
		return "", fmt.Errorf("marshal gemini payload: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", c.endpoint, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("call gemini: %w", err)
	}
	defer resp.Body.Close()

	if c.callDelay > 0 {
		select {
		case <-time.After(c.callDelay):
		case <-ctx.Done():
		}
	}

	if resp.StatusCode != http.StatusOK {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return "", fmt.Errorf("gemini error %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed struct {
		Candidates []struct {
			Content struct {
				Parts []struct {
					Text string `json:"text"`
				} `json:"parts"`
			} `json:"content"`
		} `json:"candidates"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("decode gemini response: %w", err)
	}
	if len(parsed.Candidates) == 0 || len(parsed.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("gemini returned no candidates")
	}
	return parsed.Candidates[0].Content.Parts[0].Text, nil
}

func buildSummaryPrompt(article domain.Article) string {
	authorStr := "著者情報なし"
	if len(article.Authors) > 0 {
		if len(article.Authors) > 3 {
			authorStr = strings.Join(article.Authors[:3], ", ") + " 他"
		} else {
			authorStr = strings.Join(article.Authors, ", ")
		}
	}

	keywordStr := "なし"
	if len(article.Keywords) > 0 {
		keywordStr = strings.Join(article.Keywords, ", ")
	}

	abstract := article.Abstract
	if abstract == "" {
		abstract = article.Summary
	}
	if abstract == "" {
		abstract = "アブストラクトが取得できませんでした。タイトルから推測してください。"
	}

	return fmt.Sprintf(`以下の科学論文について、200-300文字程度の日本語で要約を作成してください。
要約には以下の要素を含めてください：
1. どのような研究か（研究の概要）
2. 何が新しいか、または重要か（革新性・重要性）
3. どのような影響や応用が期待されるか（将来への影響）

論文情報:
タイトル: %s
著者: %s
ジャーナル: %s
キーワード: %s

要旨:
%s

要約:`, article.Title, authorStr, article.Journal, keywordStr, abstract)
}
