package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"
)

const defaultAPIBase = "https://api.github.com"

// Client is a minimal GitHub REST client covering the two operations the
// feedback flow needs: opening issues and opening filter-update pull
// requests. It never writes to the default branch directly.
type Client struct {
	apiBase string
	token   string
	repo    string // "owner/name"
	client  *http.Client
	logger  *slog.Logger
}

// NewClient requires both the token and the repo; misconfiguration is
// surfaced at construction so the caller can disable the feature cleanly.
func NewClient(token, repo string, logger *slog.Logger) (*Client, error) {
	if token == "" {
		return nil, fmt.Errorf("github token is not set")
	}
	if !strings.Contains(repo, "/") {
		return nil, fmt.Errorf("github repo %q is not in owner/name form", repo)
	}
	return &Client{
		apiBase: defaultAPIBase,
		token:   token,
		repo:    repo,
		client:  &http.Client{Timeout: 15 * time.Second},
		logger:  logger,
	}, nil
}

// SetAPIBase overrides the API endpoint, for tests and GitHub Enterprise.
func (c *Client) SetAPIBase(base string) {
	c.apiBase = strings.TrimSuffix(base, "/")
}

// CreateIssue opens an issue and returns its HTML URL.
func (c *Client) CreateIssue(ctx context.Context, title, body string, labels []string) (string, error) {
	payload := map[string]any{
		"title":  title,
		"body":   body,
		"labels": labels,
	}
	var out struct {
		HTMLURL string `json:"html_url"`
	}
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/issues", c.repo), payload, &out); err != nil {
		return "", fmt.Errorf("create issue: %w", err)
	}
	c.logger.Info("github issue created", "url", out.HTMLURL)
	return out.HTMLURL, nil
}

// PullRequestSpec describes a single-file change shipped as a PR.
type PullRequestSpec struct {
	BaseBranch    string
	BranchName    string
	FilePath      string
	FileContent   []byte
	CommitMessage string
	Title         string
	Body          string
}

// CreateFilePR pushes FileContent to a fresh branch and opens a pull request
// against the base branch. It returns the PR HTML URL.
func (c *Client) CreateFilePR(ctx context.Context, spec PullRequestSpec) (string, error) {
	base := spec.BaseBranch
	if base == "" {
		base = "main"
	}

	baseSHA, err := c.branchSHA(ctx, base)
	if err != nil {
		return "", err
	}
	if err := c.createBranch(ctx, spec.BranchName, baseSHA); err != nil {
		return "", err
	}
	if err := c.putFile(ctx, spec.BranchName, spec.FilePath, spec.CommitMessage, spec.FileContent); err != nil {
		return "", err
	}

	payload := map[string]any{
		"title": spec.Title,
		"body":  spec.Body,
		"head":  spec.BranchName,
		"base":  base,
	}
	var out struct {
		HTMLURL string `json:"html_url"`
	}
	if err := c.call(ctx, http.MethodPost, fmt.Sprintf("/repos/%s/pulls", c.repo), payload, &out); err != nil {
		return "", fmt.Errorf("create pull request: %w", err)
	}
	c.logger.Info("github pull request created", "url", out.HTMLURL, "branch", spec.BranchName)
	return out.HTMLURL, nil
}

func (c *Client) branchSHA(ctx context.Context, branch string) (string, error) {
	var out struct {
		Object struct {
			SHA string `json:"sha"`
		} `json:"object"`
	}
	path := fmt.Sprintf("/repos/%s/git/ref/heads/%s", c.repo, branch)
	if err := c.call(ctx, http.MethodGet, path, nil, &out); err != nil {
		return "", fmt.Errorf("resolve branch %s: %w", branch, err)
	}
	return out.Object.SHA, nil
}

func (c *Client) createBranch(ctx context.Context, name, fromSHA string) error {
	payload := map[string]any{
		"ref": "refs/heads/" + name,
		"sha": fromSHA,
	}
	path := fmt.Sprintf("/repos/%s/git/refs", c.repo)
	if err := c.call(ctx, http.MethodPost, path, payload, nil); err != nil {
		return fmt.Errorf("create branch %s: %w", name, err)
	}
	return nil
}

func (c *Client) putFile(ctx context.Context, branch, path, message string, content []byte) error {
	// Updating an existing file requires its current blob SHA.
	var current struct {
		SHA string `json:"sha"`
	}
	getPath := fmt.Sprintf("/repos/%s/contents/%s?ref=%s", c.repo, path, branch)
	_ = c.call(ctx, http.MethodGet, getPath, nil, &current)

	payload := map[string]any{
		"message": message,
		"content": base64.StdEncoding.EncodeToString(content),
		"branch":  branch,
	}
	if current.SHA != "" {
		payload["sha"] = current.SHA
	}
	putPath := fmt.Sprintf("/repos/%s/contents/%s", c.repo, path)
	if err := c.call(ctx, http.MethodPut, putPath, payload, nil); err != nil {
		return fmt.Errorf("update %s on %s: %w", path, branch, err)
	}
	return nil
}

func (c *Client) call(ctx context.Context, method, path string, payload, out any) error {
	var body io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.apiBase+path, body)
	if err != nil {
		return fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/vnd.github+json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("do request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("github %s %s: %s: %s", method, path, resp.Status, strings.TrimSpace(string(data)))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}
