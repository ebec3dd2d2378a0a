package history

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"
)

// FileStore keeps one JSON file per entry under a directory.
type FileStore struct {
	dir string
	mu  sync.Mutex
}

// DefaultDir returns ~/.sora/history.
func DefaultDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(homeDir, ".sora", "history"), nil
}

// NewFileStore stores entries under dir.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the storage directory.
func (s *FileStore) Dir() string {
	return s.dir
}

// Record writes entry to its own file.
func (s *FileStore) Record(ctx context.Context, entry Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create history directory: %w", err)
	}

	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	if err := os.WriteFile(filepath.Join(s.dir, fileName(entry)), data, 0644); err != nil {
		return fmt.Errorf("failed to write history file: %w", err)
	}
	return nil
}

// fileName sorts chronologically; the id suffix keeps names unique.
func fileName(entry Entry) string {
	at := entry.WatchedAt.UTC()
	id := entry.ID
	if len(id) > 8 {
		id = id[:8]
	}
	return fmt.Sprintf("%s.%03d_%s.json", at.Format("2006-01-02_150405"), at.Nanosecond()/1000000, id)
}

// Read returns up to limit entries, newest first. A limit of 0 or less
// returns everything.
func (s *FileStore) Read(limit int) ([]Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return []Entry{}, nil
	}

	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return nil, fmt.Errorf("failed to list history files: %w", err)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(files)))

	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	entries := make([]Entry, 0, len(files))
	for _, file := range files {
		data, err := os.ReadFile(file)
		if err != nil {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(data, &entry); err != nil {
			// Skip corrupted files
			continue
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

// Cleanup removes entries older than retentionDays and returns how many
// files were deleted.
func (s *FileStore) Cleanup(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := os.Stat(s.dir); os.IsNotExist(err) {
		return 0, nil
	}

	files, err := filepath.Glob(filepath.Join(s.dir, "*.json"))
	if err != nil {
		return 0, fmt.Errorf("failed to list history files: %w", err)
	}

	cutoff := time.Now().AddDate(0, 0, -retentionDays)
	removed := 0
	var failures []string
	for _, file := range files {
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			if err := os.Remove(file); err != nil {
				failures = append(failures, filepath.Base(file))
				continue
			}
			removed++
		}
	}

	if len(failures) > 0 {
		return removed, fmt.Errorf("failed to remove %s", strings.Join(failures, ", "))
	}
	return removed, nil
}
