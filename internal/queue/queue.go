package queue

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"PaperDigest/internal/domain"
)

// Default priority rules: urgent keywords are checked before high keywords;
// journal reputation and the news URL pattern apply only when no keyword
// matched.
var (
	urgentKeywords     = []string{"breakthrough", "nobel", "clinical trial", "covid", "pandemic"}
	highKeywords       = []string{"crispr", "quantum", "ai", "machine learning", "cancer", "vaccine"}
	highImpactJournals = []string{"Nature", "Science", "Cell", "NEJM"}
)

const newsURLMarker = "d41586"

// Manager keeps the deduplicated, priority-ordered backlog of candidate
// articles in a single JSON document rewritten on every mutation.
type Manager struct {
	path string
	now  func() time.Time
}

// NewManager wires the queue file path.
func NewManager(path string) *Manager {
	return &Manager{path: path, now: time.Now}
}

// Load reads the persisted queue; a missing file is an empty queue.
func (m *Manager) Load() ([]domain.Article, error) {
	raw, err := os.ReadFile(m.path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read queue: %w", err)
	}

	var items []domain.Article
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, fmt.Errorf("parse queue: %w", err)
	}
	return items, nil
}

// Save rewrites the whole queue file.
func (m *Manager) Save(items []domain.Article) error {
	if items == nil {
		items = []domain.Article{}
	}
	raw, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal queue: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	if err := os.WriteFile(m.path, raw, 0o644); err != nil {
		return fmt.Errorf("write queue: %w", err)
	}
	return nil
}

// AddArticles enqueues candidates not already present (by id), stamping
// priority and added_at once, then re-sorts and persists the queue.
// Returns the number of newly added items.
func (m *Manager) AddArticles(candidates []domain.Article) (int, error) {
	items, err := m.Load()
	if err != nil {
		return 0, err
	}

	existing := make(map[string]struct{}, len(items))
	for _, item := range items {
		existing[item.ID] = struct{}{}
	}

	added := 0
	for _, candidate := range candidates {
		if candidate.ID == "" {
			continue
		}
		if _, ok := existing[candidate.ID]; ok {
			continue
		}

		priority := CalculatePriority(candidate)
		candidate.Priority = priority
		candidate.PriorityName = priority.Name()
		candidate.AddedAt = m.now().Format(time.RFC3339)

		items = append(items, candidate)
		existing[candidate.ID] = struct{}{}
		added++
	}

	sortQueue(items)
	if err := m.Save(items); err != nil {
		return 0, err
	}
	return added, nil
}

// GetBatch removes and returns up to batchSize articles in priority order,
// discarding entries older than maxAgeDays (or with an unparsable added_at)
// on the way. The read is destructive: taken items are gone from the
// persisted queue even if downstream processing fails.
func (m *Manager) GetBatch(batchSize, maxAgeDays int) ([]domain.Article, error) {
	items, err := m.Load()
	if err != nil {
		return nil, err
	}

	cutoff := m.now().AddDate(0, 0, -maxAgeDays)
	current := items[:0]
	for _, item := range items {
		addedAt, err := time.Parse(time.RFC3339, item.AddedAt)
		if err != nil || addedAt.Before(cutoff) {
			continue
		}
		current = append(current, item)
	}

	if batchSize > len(current) {
		batchSize = len(current)
	}
	batch := append([]domain.Article(nil), current[:batchSize]...)
	remaining := append([]domain.Article(nil), current[batchSize:]...)

	if err := m.Save(remaining); err != nil {
		return nil, err
	}
	return batch, nil
}

// CleanupOldItems prunes entries older than maxAgeDays without yielding
// them; standalone maintenance, independent of GetBatch.
func (m *Manager) CleanupOldItems(maxAgeDays int) (int, error) {
	items, err := m.Load()
	if err != nil {
		return 0, err
	}

	cutoff := m.now().AddDate(0, 0, -maxAgeDays)
	kept := items[:0]
	removed := 0
	for _, item := range items {
		addedAt, err := time.Parse(time.RFC3339, item.AddedAt)
		if err != nil || addedAt.Before(cutoff) {
			removed++
			continue
		}
		kept = append(kept, item)
	}

	if removed == 0 {
		return 0, nil
	}
	if err := m.Save(kept); err != nil {
		return 0, err
	}
	return removed, nil
}

// Stats summarizes the persisted queue.
type Stats struct {
	TotalItems        int
	PriorityBreakdown map[string]int
	OldestItem        string
	NewestItem        string
}

// Info computes priority breakdown and age bounds for the queue command.
func (m *Manager) Info() (Stats, error) {
	items, err := m.Load()
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{
		TotalItems: len(items),
		PriorityBreakdown: map[string]int{
			domain.PriorityUrgent.Name(): 0,
			domain.PriorityHigh.Name():   0,
			domain.PriorityNormal.Name(): 0,
			domain.PriorityLow.Name():    0,
		},
	}

	for _, item := range items {
		stats.PriorityBreakdown[item.Priority.Name()]++
		if stats.OldestItem == "" || item.AddedAt < stats.OldestItem {
			stats.OldestItem = item.AddedAt
		}
		if item.AddedAt > stats.NewestItem {
			stats.NewestItem = item.AddedAt
		}
	}
	return stats, nil
}

// CalculatePriority classifies an article into a priority tier by checking
// title+abstract text against keyword tiers, then journal reputation, then
// a known low-value URL pattern. Pure string matching; never fails.
func CalculatePriority(article domain.Article) domain.Priority {
	searchText := strings.ToLower(article.Title + " " + article.Abstract)

	for _, keyword := range urgentKeywords {
		if strings.Contains(searchText, keyword) {
			return domain.PriorityUrgent
		}
	}
	for _, keyword := range highKeywords {
		if strings.Contains(searchText, keyword) {
			return domain.PriorityHigh
		}
	}
	for _, journal := range highImpactJournals {
		if article.Journal == journal {
			return domain.PriorityHigh
		}
	}
	if strings.Contains(article.Link, newsURLMarker) {
		return domain.PriorityLow
	}
	return domain.PriorityNormal
}

func sortQueue(items []domain.Article) {
	sort.SliceStable(items, func(i, j int) bool {
		if items[i].Priority != items[j].Priority {
			return items[i].Priority < items[j].Priority
		}
		return items[i].AddedAt < items[j].AddedAt
	})
}
