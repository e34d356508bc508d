package github

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"PaperDigest/internal/logging"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient("test-token", "owner/repo", logging.New("error"))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	c.SetAPIBase(srv.URL)
	return c
}

func TestNewClientValidatesInput(t *testing.T) {
	t.Parallel()

	if _, err := NewClient("", "owner/repo", logging.New("error")); err == nil {
		t.Fatalf("expected error for empty token")
	}
	if _, err := NewClient("token", "not-owner-name", logging.New("error")); err == nil {
		t.Fatalf("expected error for repo without owner")
	}
}

func TestCreateIssue(t *testing.T) {
	t.Parallel()

	var gotAuth, gotPath string
	var gotBody map[string]any
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode issue payload: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_ = json.NewEncoder(w).Encode(map[string]string{
			"html_url": "https://github.com/owner/repo/issues/7",
		})
	}))

	url, err := client.CreateIssue(context.Background(), "Feedback: interested - T", "body", []string{"feedback", "feedback-interested"})
	if err != nil {
		t.Fatalf("CreateIssue: %v", err)
	}
	if url != "https://github.com/owner/repo/issues/7" {
		t.Fatalf("unexpected issue url: %s", url)
	}
	if gotAuth != "Bearer test-token" {
		t.Fatalf("unexpected auth header: %q", gotAuth)
	}
	if gotPath != "/repos/owner/repo/issues" {
		t.Fatalf("unexpected path: %s", gotPath)
	}
	labels, ok := gotBody["labels"].([]any)
	if !ok || len(labels) != 2 {
		t.Fatalf("labels not sent: %v", gotBody["labels"])
	}
}

func TestCreateFilePR(t *testing.T) {
	t.Parallel()

	var calls []string
	var putPayload map[string]any
	var prPayload map[string]any

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls = append(calls, r.Method+" "+r.URL.Path)
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/repos/owner/repo/git/ref/heads/main":
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": map[string]string{"sha": "base-sha"},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/repos/owner/repo/git/refs":
			var body map[string]any
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["ref"] != "refs/heads/auto-update-filters-x" || body["sha"] != "base-sha" {
				t.Errorf("unexpected branch payload: %v", body)
			}
			w.WriteHeader(http.StatusCreated)
		case r.Method == http.MethodGet && r.URL.Path == "/repos/owner/repo/contents/data/filter_config.json":
			_ = json.NewEncoder(w).Encode(map[string]string{"sha": "blob-sha"})
		case r.Method == http.MethodPut && r.URL.Path == "/repos/owner/repo/contents/data/filter_config.json":
			_ = json.NewDecoder(r.Body).Decode(&putPayload)
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodPost && r.URL.Path == "/repos/owner/repo/pulls":
			_ = json.NewDecoder(r.Body).Decode(&prPayload)
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(map[string]string{
				"html_url": "https://github.com/owner/repo/pull/42",
			})
		default:
			t.Errorf("unexpected call: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))

	url, err := client.CreateFilePR(context.Background(), PullRequestSpec{
		BaseBranch:    "main",
		BranchName:    "auto-update-filters-x",
		FilePath:      "data/filter_config.json",
		FileContent:   []byte(`{"include":[]}`),
		CommitMessage: "update filters",
		Title:         "filter update",
		Body:          "details",
	})
	if err != nil {
		t.Fatalf("CreateFilePR: %v", err)
	}
	if url != "https://github.com/owner/repo/pull/42" {
		t.Fatalf("unexpected pr url: %s", url)
	}
	if len(calls) != 5 {
		t.Fatalf("expected 5 API calls, got %d: %v", len(calls), calls)
	}

	content, _ := putPayload["content"].(string)
	decoded, err := base64.StdEncoding.DecodeString(content)
	if err != nil || string(decoded) != `{"include":[]}` {
		t.Fatalf("file content not base64 round-tripped: %q", content)
	}
	if putPayload["sha"] != "blob-sha" {
		t.Fatalf("existing blob sha not sent: %v", putPayload["sha"])
	}
	if putPayload["branch"] != "auto-update-filters-x" {
		t.Fatalf("commit targeted wrong branch: %v", putPayload["branch"])
	}
	if prPayload["head"] != "auto-update-filters-x" || prPayload["base"] != "main" {
		t.Fatalf("unexpected pr payload: %v", prPayload)
	}
}

func TestCreateFilePRStopsOnBranchFailure(t *testing.T) {
	t.Parallel()

	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodGet {
			_ = json.NewEncoder(w).Encode(map[string]any{
				"object": map[string]string{"sha": "base-sha"},
			})
			return
		}
		http.Error(w, `{"message":"Reference already exists"}`, http.StatusUnprocessableEntity)
	}))

	_, err := client.CreateFilePR(context.Background(), PullRequestSpec{
		BranchName:  "dup",
		FilePath:    "data/filter_config.json",
		FileContent: []byte("{}"),
	})
	if err == nil {
		t.Fatalf("expected error when branch creation fails")
	}
}
