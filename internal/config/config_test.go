package config

import (
	"os"
	"path/filepath"
	"testing"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv(configPathEnv, "")

	cfg := Load()

	if cfg.Queue.BatchSize != 10 {
		t.Fatalf("unexpected default batch size: %d", cfg.Queue.BatchSize)
	}
	if cfg.Gemini.Model != "gemini-1.5-flash" {
		t.Fatalf("unexpected default model: %s", cfg.Gemini.Model)
	}
	if cfg.Scheduler.Interval != "24h" {
		t.Fatalf("unexpected default interval: %s", cfg.Scheduler.Interval)
	}
	if cfg.Archive.RetentionDays != 365 {
		t.Fatalf("unexpected default archive retention: %d", cfg.Archive.RetentionDays)
	}
	if cfg.Data.QueueFile() != filepath.Join("data", "queue.json") {
		t.Fatalf("unexpected queue file: %s", cfg.Data.QueueFile())
	}
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := writeFile(t, "config.yaml", `
logging:
  level: debug
data:
  dir: /var/lib/paperdigest
queue:
  batchSize: 5
gemini:
  model: gemini-1.5-pro
`)
	t.Setenv(configPathEnv, path)

	cfg := Load()
	if cfg.Logging.Level != "debug" {
		t.Fatalf("file level not applied: %s", cfg.Logging.Level)
	}
	if cfg.Queue.BatchSize != 5 {
		t.Fatalf("file batch size not applied: %d", cfg.Queue.BatchSize)
	}
	if cfg.Gemini.Model != "gemini-1.5-pro" {
		t.Fatalf("file model not applied: %s", cfg.Gemini.Model)
	}
	// Untouched sections keep their defaults.
	if cfg.Queue.MaxAgeDays != 7 {
		t.Fatalf("default max age lost in merge: %d", cfg.Queue.MaxAgeDays)
	}
	if cfg.Data.FilterFile() != "/var/lib/paperdigest/filter_config.json" {
		t.Fatalf("unexpected filter file: %s", cfg.Data.FilterFile())
	}
}

func TestEnvOverridesWinOverFile(t *testing.T) {
	path := writeFile(t, "config.yaml", `
gemini:
  apiKey: from-file
github:
  repo: file/repo
`)
	t.Setenv(configPathEnv, path)
	t.Setenv(geminiAPIKeyEnv, "from-env")
	t.Setenv(githubRepoEnv, "env/repo")
	t.Setenv(webhookPortEnv, "8080")

	cfg := Load()
	if cfg.Gemini.APIKey != "from-env" {
		t.Fatalf("env api key not applied: %s", cfg.Gemini.APIKey)
	}
	if cfg.GitHub.Repo != "env/repo" {
		t.Fatalf("env repo not applied: %s", cfg.GitHub.Repo)
	}
	if cfg.Webhook.Addr != ":8080" {
		t.Fatalf("env port not applied: %s", cfg.Webhook.Addr)
	}
}

func TestLoadToleratesBrokenConfigFile(t *testing.T) {
	t.Setenv(configPathEnv, writeFile(t, "config.yaml", "::: not yaml"))

	cfg := Load()
	if cfg.Queue.BatchSize != 10 {
		t.Fatalf("broken file should fall back to defaults, got batch size %d", cfg.Queue.BatchSize)
	}
}

func TestLoadFeeds(t *testing.T) {
	t.Parallel()

	feeds := LoadFeeds(filepath.Join(t.TempDir(), "missing.json"))
	if _, ok := feeds["Nature"]; !ok {
		t.Fatalf("missing file should yield default feeds, got %v", feeds)
	}

	path := writeFile(t, "feeds.json", `{
  "arXiv": {"url": "https://arxiv.org/rss/cs.AI", "enabled": true, "parser_type": "arxiv"}
}`)
	feeds = LoadFeeds(path)
	if len(feeds) != 1 || feeds["arXiv"].ParserType != "arxiv" {
		t.Fatalf("unexpected feeds: %v", feeds)
	}
}

func TestLoadFilter(t *testing.T) {
	t.Parallel()

	filter := LoadFilter(filepath.Join(t.TempDir(), "missing.json"))
	if !filter.ResearchOnly || len(filter.Include) != 0 {
		t.Fatalf("missing file should yield permissive default: %+v", filter)
	}

	path := writeFile(t, "filter.json", `{"include":["crispr"],"exclude":["retraction"],"research_only":false}`)
	filter = LoadFilter(path)
	if len(filter.Include) != 1 || filter.Include[0] != "crispr" || filter.ResearchOnly {
		t.Fatalf("unexpected filter: %+v", filter)
	}

	filter = LoadFilter(writeFile(t, "broken.json", "{"))
	if !filter.ResearchOnly {
		t.Fatalf("corrupt file should yield permissive default: %+v", filter)
	}
}
