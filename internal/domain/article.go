package domain

import "time"

// Article is the core entity flowing through the pipeline. It is created by
// the feed fetcher, enriched in place by the parser dispatch and the
// summarizer, and finally notified and archived (or dropped at a filter
// stage). All enrichment fields are best-effort: any subset may stay empty.
type Article struct {
	ID        string `json:"id"`
	Journal   string `json:"journal"`
	Title     string `json:"title"`
	Link      string `json:"link"`
	Published string `json:"published,omitempty"`
	Summary   string `json:"summary,omitempty"`
	DOI       string `json:"doi,omitempty"`

	Abstract     string   `json:"abstract,omitempty"`
	Authors      []string `json:"authors,omitempty"`
	Affiliations []string `json:"affiliations,omitempty"`
	Keywords     []string `json:"keywords,omitempty"`

	IsResearchArticle bool `json:"is_research_article,omitempty"`

	Priority     Priority `json:"priority,omitempty"`
	PriorityName string   `json:"priority_name,omitempty"`

	// AddedAt is the enqueue timestamp (RFC3339). It is kept as a string so
	// that records with an unparsable timestamp survive loading and can be
	// age-evicted instead of corrupting the whole queue file.
	AddedAt string `json:"added_at,omitempty"`

	SummaryJA string `json:"summary_ja,omitempty"`
}

// SearchText concatenates the text fields keyword filters match against.
func (a Article) SearchText() string {
	text := a.Title + " " + a.Abstract + " " + a.Summary
	for _, kw := range a.Keywords {
		text += " " + kw
	}
	return text
}

// Priority orders queued articles; a smaller value is more urgent.
type Priority int

const (
	PriorityUrgent Priority = 1
	PriorityHigh   Priority = 2
	PriorityNormal Priority = 3
	PriorityLow    Priority = 4
)

// Name returns the stable string form persisted next to the ordinal.
func (p Priority) Name() string {
	switch p {
	case PriorityUrgent:
		return "URGENT"
	case PriorityHigh:
		return "HIGH"
	case PriorityNormal:
		return "NORMAL"
	case PriorityLow:
		return "LOW"
	default:
		return "NORMAL"
	}
}

// FeedSource describes a single configured journal feed.
type FeedSource struct {
	URL         string `json:"url"`
	Enabled     bool   `json:"enabled"`
	Priority    int    `json:"priority,omitempty"`
	ParserType  string `json:"parser_type"`
	Description string `json:"description,omitempty"`
}

// FilterConfig holds the keyword rules applied before expensive stages.
// It is read-only to the pipeline; only the reviewed auto-update flow
// mutates the persisted file.
type FilterConfig struct {
	Include      []string `json:"include"`
	Exclude      []string `json:"exclude"`
	ResearchOnly bool     `json:"research_only"`
}

// FeedbackArticle is the compact article blob embedded in button payloads.
type FeedbackArticle struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Journal   string   `json:"journal,omitempty"`
	Authors   []string `json:"authors,omitempty"`
	Timestamp string   `json:"timestamp,omitempty"`
}

// FeedbackUser identifies who pressed a feedback button.
type FeedbackUser struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// FeedbackChannel identifies where the button was pressed.
type FeedbackChannel struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Feedback decisions as they appear in button payloads and the log.
const (
	FeedbackInterested    = "interested"
	FeedbackNotInterested = "not_interested"
)

// Feedback is one append-only log record for a button press.
type Feedback struct {
	ID        string          `json:"id"`
	Feedback  string          `json:"feedback"`
	Article   FeedbackArticle `json:"article"`
	User      FeedbackUser    `json:"user"`
	Channel   FeedbackChannel `json:"channel"`
	Timestamp string          `json:"timestamp"`
	ActionID  string          `json:"action_id,omitempty"`
}

// Time parses the record timestamp, returning the zero time when invalid.
func (f Feedback) Time() time.Time {
	t, err := time.Parse(time.RFC3339, f.Timestamp)
	if err != nil {
		return time.Time{}
	}
	return t
}

// ArchivedArticle is the trimmed snapshot persisted after notification.
type ArchivedArticle struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Journal     string   `json:"journal"`
	Authors     []string `json:"authors,omitempty"`
	SummaryJA   string   `json:"summary_ja,omitempty"`
	Published   string   `json:"published,omitempty"`
	Link        string   `json:"link,omitempty"`
	Priority    Priority `json:"priority,omitempty"`
	ProcessedAt string   `json:"processed_at"`
}
