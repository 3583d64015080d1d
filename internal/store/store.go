// Package store persists per-feed cursors using JSON files.
//
// Each feed's cursor is stored as a separate file: cursor_<feed>.json.
// Writes use atomic file replacement (write to .tmp, then rename) to
// prevent corruption from partial writes or crashes mid-save. The runner
// calls SaveCursor after each successful poll and LoadCursor on startup so
// a restarted daemon resumes from the last seen item instead of refetching
// the whole feed.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// cursorRecord is the on-disk shape.
type cursorRecord struct {
	Feed    string    `json:"feed"`
	Cursor  string    `json:"cursor"`
	SavedAt time.Time `json:"saved_at"`
}

// Store persists cursors to JSON files in a designated directory.
// All operations are mutex-protected to prevent concurrent file corruption.
type Store struct {
	dir string     // directory containing cursor_*.json files
	mu  sync.Mutex // serializes all file operations
}

// Open creates a store backed by the given directory.
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// SaveCursor atomically persists the latest cursor for a feed. It writes
// to a .tmp file first, then renames over the target so the file is never
// left in a partial state.
func (s *Store) SaveCursor(feed, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.Marshal(cursorRecord{
		Feed:    feed,
		Cursor:  cursor,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal cursor: %w", err)
	}

	path := s.path(feed)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write cursor: %w", err)
	}
	return os.Rename(tmp, path)
}

// LoadCursor restores a feed's cursor from disk. A missing file is not an
// error: it returns the empty cursor, meaning "fetch from the top".
func (s *Store) LoadCursor(feed string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path(feed))
	if os.IsNotExist(err) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("read cursor: %w", err)
	}

	var rec cursorRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return "", fmt.Errorf("unmarshal cursor: %w", err)
	}
	return rec.Cursor, nil
}

func (s *Store) path(feed string) string {
	return filepath.Join(s.dir, "cursor_"+feed+".json")
}
