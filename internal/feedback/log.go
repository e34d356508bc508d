package feedback

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"PaperDigest/internal/domain"
	"PaperDigest/internal/ports"
)

// Log is an append-only JSONL store for feedback button presses. One record
// per line; corrupt lines are skipped on read so a single bad write cannot
// poison the analysis.
type Log struct {
	mu     sync.Mutex
	path   string
	logger *slog.Logger
	now    func() time.Time
}

var _ ports.FeedbackSink = (*Log)(nil)

func NewLog(path string, logger *slog.Logger) *Log {
	return &Log{path: path, logger: logger, now: time.Now}
}

// Append stamps the record with an id and timestamp (when missing) and
// writes it as one JSON line.
func (l *Log) Append(record domain.Feedback) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Timestamp == "" {
		record.Timestamp = l.now().UTC().Format(time.RFC3339)
	}

	if err := os.MkdirAll(filepath.Dir(l.path), 0o755); err != nil {
		return fmt.Errorf("create feedback dir: %w", err)
	}

	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal feedback record: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append feedback record: %w", err)
	}

	l.logger.Info("feedback recorded",
		"feedback", record.Feedback,
		"article", record.Article.Title,
		"user", record.User.Name)
	return nil
}

// Load returns all records newer than the window (days <= 0 means all).
// Corrupt lines are counted and skipped.
func (l *Log) Load(days int) ([]domain.Feedback, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	f, err := os.Open(l.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open feedback log: %w", err)
	}
	defer f.Close()

	var cutoff time.Time
	if days > 0 {
		cutoff = l.now().UTC().AddDate(0, 0, -days)
	}

	var (
		records []domain.Feedback
		corrupt int
	)
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var rec domain.Feedback
		if err := json.Unmarshal(line, &rec); err != nil {
			corrupt++
			continue
		}
		if !cutoff.IsZero() {
			if t := rec.Time(); t.IsZero() || t.Before(cutoff) {
				continue
			}
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read feedback log: %w", err)
	}
	if corrupt > 0 {
		l.logger.Warn("skipped corrupt feedback lines", "count", corrupt)
	}
	return records, nil
}

// Summary aggregates the window into counters for the summary endpoint.
type Summary struct {
	TotalCount      int            `json:"total_count"`
	InterestedCount int            `json:"interested_count"`
	NotInterested   int            `json:"not_interested_count"`
	ByJournal       map[string]int `json:"by_journal"`
	Days            int            `json:"period_days"`
}

// Summarize counts feedback by type and journal over the last N days.
func (l *Log) Summarize(days int) (Summary, error) {
	records, err := l.Load(days)
	if err != nil {
		return Summary{}, err
	}

	summary := Summary{ByJournal: make(map[string]int), Days: days}
	for _, rec := range records {
		summary.TotalCount++
		switch rec.Feedback {
		case domain.FeedbackInterested:
			summary.InterestedCount++
		case domain.FeedbackNotInterested:
			summary.NotInterested++
		}
		if rec.Article.Journal != "" {
			summary.ByJournal[rec.Article.Journal]++
		}
	}
	return summary, nil
}
