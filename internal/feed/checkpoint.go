package feed

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Checkpoint records which feed entries were already emitted, keyed by
// article id with the first-seen timestamp as value.
type Checkpoint struct {
	LastCheck    string            `json:"last_check"`
	SeenArticles map[string]string `json:"seen_articles"`
}

// CheckpointStore persists the checkpoint as a single JSON document that is
// rewritten wholesale on every mutation. Concurrent writers are not
// supported; the intended deployment is one scheduled run at a time.
type CheckpointStore struct {
	path string
}

// NewCheckpointStore wires the checkpoint file path.
func NewCheckpointStore(path string) *CheckpointStore {
	return &CheckpointStore{path: path}
}

// Load reads the checkpoint, returning an empty one when the file is absent
// or unreadable as JSON.
func (s *CheckpointStore) Load() Checkpoint {
	checkpoint := Checkpoint{SeenArticles: map[string]string{}}

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return checkpoint
	}
	if err := json.Unmarshal(raw, &checkpoint); err != nil {
		return Checkpoint{SeenArticles: map[string]string{}}
	}
	if checkpoint.SeenArticles == nil {
		checkpoint.SeenArticles = map[string]string{}
	}
	return checkpoint
}

// Save writes the checkpoint atomically (temp file + rename).
func (s *CheckpointStore) Save(checkpoint Checkpoint) error {
	raw, err := json.MarshalIndent(checkpoint, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		return fmt.Errorf("write checkpoint: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace checkpoint: %w", err)
	}
	return nil
}

// Prune drops seen entries first seen before the retention cutoff and
// returns the number removed. Entries with an unparsable timestamp are
// dropped as well. Pruning is lossy: an article re-listed by a feed after
// the window closes is re-emitted as new.
func (c *Checkpoint) Prune(retention time.Duration, now time.Time) int {
	cutoff := now.Add(-retention)
	removed := 0

	for id, seenAt := range c.SeenArticles {
		t, err := time.Parse(time.RFC3339, seenAt)
		if err != nil || t.Before(cutoff) {
			delete(c.SeenArticles, id)
			removed++
		}
	}
	return removed
}
