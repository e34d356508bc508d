package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"PaperDigest/internal/config"
	"PaperDigest/internal/domain"
	"PaperDigest/internal/logging"
)

func geminiResponse(text string) string {
	raw, _ := json.Marshal(map[string]any{
		"candidates": []map[string]any{
			{"content": map[string]any{"parts": []map[string]string{{"text": text}}}},
		},
	})
	return string(raw)
}

func newTestClient(t *testing.T, handler http.HandlerFunc) *GeminiClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewGeminiClient(config.GeminiConfig{
		Endpoint:         server.URL,
		Model:            "gemini-1.5-flash",
		APIKey:           "test-key",
		MinSummaryLength: 50,
	}, logging.New("error"))
	if err != nil {
		t.Fatalf("NewGeminiClient returned error: %v", err)
	}
	return client
}

func TestNewGeminiClientRequiresAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewGeminiClient(config.GeminiConfig{Model: "m"}, logging.New("error")); err == nil {
		t.Fatalf("expected error for missing api key")
	}
}

func TestSummarizeReturnsModelText(t *testing.T) {
	t.Parallel()

	modelSummary := strings.Repeat("本研究は量子誤り訂正の新しい手法を示した。", 5)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.URL.Query().Get("key") != "test-key" {
			t.Errorf("api key not passed as query parameter")
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geminiResponse(modelSummary)))
	})

	got := client.Summarize(context.Background(), domain.Article{Title: "Qubits"})
	if got != modelSummary {
		t.Fatalf("expected model summary, got %q", got)
	}
}

func TestSummarizeFallsBackOnShortOutput(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(geminiResponse("短い。")))
	})

	got := client.Summarize(context.Background(), domain.Article{Journal: "Nature", Title: "Qubits"})
	if got == "" {
		t.Fatalf("fallback summary is empty")
	}
	if got == "短い。" {
		t.Fatalf("short model output was accepted")
	}
}

func TestSummarizeFallsBackOnAPIError(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"error":"quota"}`, http.StatusTooManyRequests)
	})

	got := client.Summarize(context.Background(), domain.Article{Journal: "Nature", Title: "Qubits"})
	if got == "" {
		t.Fatalf("fallback summary is empty")
	}
}

func TestGenerateContentNoCandidates(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"candidates":[]}`))
	})

	if _, err := client.GenerateContent(context.Background(), "prompt"); err == nil {
		t.Fatalf("expected error for empty candidates")
	}
}

func TestBuildSummaryPromptTruncatesAuthors(t *testing.T) {
	t.Parallel()

	prompt := buildSummaryPrompt(domain.Article{
		Title:   "T",
		Authors: []string{"A", "B", "C", "D", "E"},
	})
	if !strings.Contains(prompt, "A, B, C 他") {
		t.Fatalf("expected truncated author list with 他, got:\n%s", prompt)
	}
	if strings.Contains(prompt, "D") && strings.Contains(prompt, "著者: A, B, C, D") {
		t.Fatalf("fourth author leaked into prompt")
	}
}
