package config

import (
	"encoding/json"
	"log"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"PaperDigest/internal/domain"
)

const (
	configPathEnv         = "PAPER_DIGEST_CONFIG"
	geminiAPIKeyEnv       = "GEMINI_API_KEY"
	geminiModelEnv        = "GEMINI_MODEL"
	slackWebhookURLEnv    = "SLACK_WEBHOOK_URL"
	slackSigningSecretEnv = "SLACK_SIGNING_SECRET"
	githubTokenEnv        = "GITHUB_TOKEN"
	githubRepoEnv         = "GITHUB_REPO"
	webhookPortEnv        = "PORT"
)

// Config holds high-level settings required across the application.
type Config struct {
	Logging    LoggingConfig    `yaml:"logging"`
	Data       DataConfig       `yaml:"data"`
	Checkpoint CheckpointConfig `yaml:"checkpoint"`
	Queue      QueueConfig      `yaml:"queue"`
	Fetch      FetchConfig      `yaml:"fetch"`
	Gemini     GeminiConfig     `yaml:"gemini"`
	Slack      SlackConfig      `yaml:"slack"`
	GitHub     GitHubConfig     `yaml:"github"`
	Webhook    WebhookConfig    `yaml:"webhook"`
	Scheduler  SchedulerConfig  `yaml:"scheduler"`
	Archive    ArchiveConfig    `yaml:"archive"`
}

// LoggingConfig selects log verbosity and optional rotating file output.
type LoggingConfig struct {
	Level      string `yaml:"level"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb"`
	MaxBackups int    `yaml:"maxBackups"`
	MaxAgeDays int    `yaml:"maxAgeDays"`
	Compress   bool   `yaml:"compress"`
}

// DataConfig points at the file-backed state documents.
type DataConfig struct {
	Dir string `yaml:"dir"`
}

// QueueFile returns the persisted priority-queue path.
func (d DataConfig) QueueFile() string { return filepath.Join(d.dir(), "queue.json") }

// CheckpointFile returns the seen-articles checkpoint path.
func (d DataConfig) CheckpointFile() string { return filepath.Join(d.dir(), "last_check.json") }

// FilterFile returns the keyword filter configuration path.
func (d DataConfig) FilterFile() string { return filepath.Join(d.dir(), "filter_config.json") }

// FeedsFile returns the journal feeds configuration path.
func (d DataConfig) FeedsFile() string { return filepath.Join(d.dir(), "feeds_config.json") }

// FeedbackLog returns the append-only feedback log path.
func (d DataConfig) FeedbackLog() string { return filepath.Join(d.dir(), "feedback_log.jsonl") }

// ArchiveDB returns the processed-article archive database path.
func (d DataConfig) ArchiveDB() string { return filepath.Join(d.dir(), "archive.db") }

func (d DataConfig) dir() string {
	if d.Dir == "" {
		return "data"
	}
	return d.Dir
}

// CheckpointConfig bounds the seen-articles set.
type CheckpointConfig struct {
	// RetentionDays prunes seen entries older than the window. An article
	// re-listed by a feed after the window closes is re-emitted as new;
	// that is accepted behavior with this design.
	RetentionDays int `yaml:"retentionDays"`
}

// QueueConfig drives batch sizing and age-based eviction.
type QueueConfig struct {
	BatchSize        int `yaml:"batchSize"`
	MaxAgeDays       int `yaml:"maxAgeDays"`
	CleanupAfterDays int `yaml:"cleanupAfterDays"`
}

// FetchConfig throttles outbound HTTP against feed hosts and publishers.
type FetchConfig struct {
	UserAgent          string `yaml:"userAgent"`
	RequestTimeoutSecs int    `yaml:"requestTimeoutSeconds"`
	SourceDelaySecs    int    `yaml:"sourceDelaySeconds"`
	PageDelaySecs      int    `yaml:"pageDelaySeconds"`
}

// GeminiConfig defines how to contact the Gemini API.
type GeminiConfig struct {
	Endpoint         string `yaml:"endpoint"`
	Model            string `yaml:"model"`
	APIKey           string `yaml:"apiKey"`
	CallDelaySecs    int    `yaml:"callDelaySeconds"`
	MinSummaryLength int    `yaml:"minSummaryLength"`
}

// SlackConfig wires the outbound webhook and inbound signature secret.
type SlackConfig struct {
	WebhookURL     string `yaml:"webhookUrl"`
	SigningSecret  string `yaml:"signingSecret"`
	EnableFeedback bool   `yaml:"enableFeedback"`
}

// GitHubConfig is used for feedback issues and filter-update pull requests.
type GitHubConfig struct {
	Token      string `yaml:"token"`
	Repo       string `yaml:"repo"`
	BaseBranch string `yaml:"baseBranch"`
}

// WebhookConfig configures the feedback HTTP server.
type WebhookConfig struct {
	Addr string `yaml:"addr"`
}

// SchedulerConfig controls the optional daemon mode of the run command.
type SchedulerConfig struct {
	Interval string `yaml:"interval"`
}

// ArchiveConfig bounds the processed-article archive. Zero disables the
// retention cleanup.
type ArchiveConfig struct {
	RetentionDays int `yaml:"retentionDays"`
}

// Load reads YAML configuration (if present) and applies environment overrides.
func Load() Config {
	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	return cfg
}

// LoadFeeds reads the journal feeds document; missing file yields defaults.
func LoadFeeds(path string) map[string]domain.FeedSource {
	raw, err := os.ReadFile(path)
	if err != nil {
		return defaultFeeds()
	}

	feeds := map[string]domain.FeedSource{}
	if err := json.Unmarshal(raw, &feeds); err != nil {
		log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		return defaultFeeds()
	}
	if len(feeds) == 0 {
		return defaultFeeds()
	}
	return feeds
}

// LoadFilter reads the keyword filter document; missing or corrupt files
// yield the permissive default (research-only, no keywords).
func LoadFilter(path string) domain.FilterConfig {
	fallback := domain.FilterConfig{ResearchOnly: true}

	raw, err := os.ReadFile(path)
	if err != nil {
		return fallback
	}

	var filter domain.FilterConfig
	if err := json.Unmarshal(raw, &filter); err != nil {
		log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		return fallback
	}
	return filter
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(geminiAPIKeyEnv); v != "" {
		c.Gemini.APIKey = v
	}
	if v := os.Getenv(geminiModelEnv); v != "" {
		c.Gemini.Model = v
	}
	if v := os.Getenv(slackWebhookURLEnv); v != "" {
		c.Slack.WebhookURL = v
	}
	if v := os.Getenv(slackSigningSecretEnv); v != "" {
		c.Slack.SigningSecret = v
	}
	if v := os.Getenv(githubTokenEnv); v != "" {
		c.GitHub.Token = v
	}
	if v := os.Getenv(githubRepoEnv); v != "" {
		c.GitHub.Repo = v
	}
	if v := os.Getenv(webhookPortEnv); v != "" {
		c.Webhook.Addr = ":" + v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.File != "" {
		base.Logging.File = override.Logging.File
		base.Logging.MaxSizeMB = override.Logging.MaxSizeMB
		base.Logging.MaxBackups = override.Logging.MaxBackups
		base.Logging.MaxAgeDays = override.Logging.MaxAgeDays
		base.Logging.Compress = override.Logging.Compress
	}

	if override.Data.Dir != "" {
		base.Data.Dir = override.Data.Dir
	}

	if override.Checkpoint.RetentionDays > 0 {
		base.Checkpoint.RetentionDays = override.Checkpoint.RetentionDays
	}

	if override.Queue.BatchSize > 0 {
		base.Queue.BatchSize = override.Queue.BatchSize
	}
	if override.Queue.MaxAgeDays > 0 {
		base.Queue.MaxAgeDays = override.Queue.MaxAgeDays
	}
	if override.Queue.CleanupAfterDays > 0 {
		base.Queue.CleanupAfterDays = override.Queue.CleanupAfterDays
	}

	if override.Fetch.UserAgent != "" {
		base.Fetch.UserAgent = override.Fetch.UserAgent
	}
	if override.Fetch.RequestTimeoutSecs > 0 {
		base.Fetch.RequestTimeoutSecs = override.Fetch.RequestTimeoutSecs
	}
	if override.Fetch.SourceDelaySecs > 0 {
		base.Fetch.SourceDelaySecs = override.Fetch.SourceDelaySecs
	}
	if override.Fetch.PageDelaySecs > 0 {
		base.Fetch.PageDelaySecs = override.Fetch.PageDelaySecs
	}

	if override.Gemini.Endpoint != "" {
		base.Gemini.Endpoint = override.Gemini.Endpoint
	}
	if override.Gemini.Model != "" {
		base.Gemini.Model = override.Gemini.Model
	}
	if override.Gemini.APIKey != "" {
		base.Gemini.APIKey = override.Gemini.APIKey
	}
	if override.Gemini.CallDelaySecs > 0 {
		base.Gemini.CallDelaySecs = override.Gemini.CallDelaySecs
	}
	if override.Gemini.MinSummaryLength > 0 {
		base.Gemini.MinSummaryLength = override.Gemini.MinSummaryLength
	}

	if override.Slack.WebhookURL != "" {
		base.Slack.WebhookURL = override.Slack.WebhookURL
	}
	if override.Slack.SigningSecret != "" {
		base.Slack.SigningSecret = override.Slack.SigningSecret
	}
	if override.Slack.EnableFeedback {
		base.Slack.EnableFeedback = true
	}

	if override.GitHub.Token != "" {
		base.GitHub.Token = override.GitHub.Token
	}
	if override.GitHub.Repo != "" {
		base.GitHub.Repo = override.GitHub.Repo
	}
	if override.GitHub.BaseBranch != "" {
		base.GitHub.BaseBranch = override.GitHub.BaseBranch
	}

	if override.Webhook.Addr != "" {
		base.Webhook.Addr = override.Webhook.Addr
	}

	if override.Scheduler.Interval != "" {
		base.Scheduler.Interval = override.Scheduler.Interval
	}

	if override.Archive.RetentionDays > 0 {
		base.Archive.RetentionDays = override.Archive.RetentionDays
	}

	return base
}

func defaultConfig() Config {
	return Config{
		Logging:    LoggingConfig{Level: "info"},
		Data:       DataConfig{Dir: "data"},
		Checkpoint: CheckpointConfig{RetentionDays: 30},
		Queue:      QueueConfig{BatchSize: 10, MaxAgeDays: 7, CleanupAfterDays: 30},
		Fetch: FetchConfig{
			UserAgent:          "PaperDigest/1.0 (Educational Purpose)",
			RequestTimeoutSecs: 10,
			SourceDelaySecs:    1,
			PageDelaySecs:      1,
		},
		Gemini: GeminiConfig{
			Endpoint:         "https://generativelanguage.googleapis.com/v1beta",
			Model:            "gemini-1.5-flash",
			CallDelaySecs:    1,
			MinSummaryLength: 50,
		},
		Slack:     SlackConfig{EnableFeedback: true},
		GitHub:    GitHubConfig{BaseBranch: "main"},
		Webhook:   WebhookConfig{Addr: ":5000"},
		Scheduler: SchedulerConfig{Interval: "24h"},
		Archive:   ArchiveConfig{RetentionDays: 365},
	}
}

func defaultFeeds() map[string]domain.FeedSource {
	return map[string]domain.FeedSource{
		"Nature": {
			URL:         "https://www.nature.com/nature.rss",
			Enabled:     true,
			ParserType:  "nature",
			Description: "Nature weekly journal",
		},
		"Science": {
			URL:         "https://www.science.org/rss/news_current.xml",
			Enabled:     true,
			ParserType:  "science",
			Description: "Science current issue",
		},
	}
}
