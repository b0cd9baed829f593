// Package mapping persists the registry linking local file paths to remote
// pages and their last-synced state.
package mapping

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"
)

// Entry records the remote identity and last-synced state of one local file.
// Unknown keys in the persisted document are ignored on read, so the format
// stays forward-compatible.
type Entry struct {
	PageID                  string    `json:"page_id"`
	SpaceKey                string    `json:"space_key"`
	ParentID                string    `json:"parent_id,omitempty"`
	LastSyncedHash          string    `json:"last_synced_hash"`
	LastSyncedRemoteVersion int       `json:"last_synced_remote_version"`
	LastSyncedAt            time.Time `json:"last_synced_at"`
}

// Store owns the mapping file. All mutation goes through Put/Remove, which
// persist atomically under a single-writer lock; the engine never touches
// entries directly.
type Store struct {
	path string

	mu      sync.Mutex
	entries map[string]Entry
	corrupt bool
}

// Load reads the mapping file at path. A missing file yields an empty store.
// A corrupt file also yields an empty store, flagged via Corrupt, with a
// warning logged: the registry is rebuilt entry by entry on the next
// successful sync, never treated as fatal.
func Load(path string, logger *slog.Logger) (*Store, error) {
	s := &Store{path: path, entries: map[string]Entry{}}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		logger.Warn("mapping: unreadable, starting empty",
			slog.String("path", path), slog.String("error", err.Error()))
		s.corrupt = true
		return s, nil
	}

	if err := json.Unmarshal(data, &s.entries); err != nil {
		logger.Warn("mapping: corrupt, starting empty",
			slog.String("path", path), slog.String("error", err.Error()))
		s.entries = map[string]Entry{}
		s.corrupt = true
	}
	return s, nil
}

// Corrupt reports whether the persisted file could not be read at load time.
func (s *Store) Corrupt() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.corrupt
}

// Get returns the entry for a local path.
func (s *Store) Get(path string) (Entry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[path]
	return e, ok
}

// Len returns the number of entries.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// Paths returns all mapped local paths, sorted.
func (s *Store) Paths() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.entries))
	for p := range s.entries {
		out = append(out, p)
	}
	sort.Strings(out)
	return out
}

// All returns a copy of every entry keyed by local path.
func (s *Store) All() map[string]Entry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Entry, len(s.entries))
	for p, e := range s.entries {
		out[p] = e
	}
	return out
}

// Put records an entry and persists the store. On persistence failure the
// in-memory change is rolled back so memory and disk stay consistent.
func (s *Store) Put(path string, e Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[path]
	s.entries[path] = e
	if err := s.save(); err != nil {
		if had {
			s.entries[path] = prev
		} else {
			delete(s.entries, path)
		}
		return err
	}
	return nil
}

// Remove deletes an entry and persists the store.
func (s *Store) Remove(path string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.entries[path]
	if !had {
		return nil
	}
	delete(s.entries, path)
	if err := s.save(); err != nil {
		s.entries[path] = prev
		return err
	}
	return nil
}

// Reconcile removes entries whose local file no longer exists, as reported
// by exists. Returns the removed paths.
func (s *Store) Reconcile(exists func(path string) bool) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	for p := range s.entries {
		if !exists(p) {
			removed = append(removed, p)
		}
	}
	if len(removed) == 0 {
		return nil, nil
	}
	sort.Strings(removed)
	for _, p := range removed {
		delete(s.entries, p)
	}
	if err := s.save(); err != nil {
		return nil, err
	}
	return removed, nil
}

// save writes the store atomically: tmp file in the same directory, then
// rename. Caller holds s.mu.
func (s *Store) save() error {
	data, err := json.MarshalIndent(s.entries, "", "  ")
	if err != nil {
		return fmt.Errorf("mapping: marshal: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, ".mappings-tmp-*")
	if err != nil {
		return fmt.Errorf("mapping: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		return fmt.Errorf("mapping: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("mapping: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("mapping: close temp: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("mapping: rename: %w", err)
	}
	success = true
	return nil
}
