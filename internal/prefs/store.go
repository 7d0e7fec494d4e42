// Package prefs is a small persistent key/value document used for queue
// snapshots, listening history, and the storage schema version.
package prefs

import (
	"encoding/json"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"time"
)

// DefaultFileName is the name of the preferences file inside the data dir.
const DefaultFileName = "storage.json"

// Store persists JSON values by key. Every write is flushed to disk.
type Store struct {
	mu     sync.RWMutex
	path   string
	values map[string]json.RawMessage

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// Open loads the preferences file at path. A missing file yields an empty
// store; an empty path yields a store that is never written to disk.
func Open(path string) (*Store, error) {
	s := &Store{
		path:   path,
		values: make(map[string]json.RawMessage),
		Now:    time.Now,
	}
	if path == "" {
		return s, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("failed to read preferences: %w", err)
	}
	if len(data) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(data, &s.values); err != nil {
		return nil, fmt.Errorf("failed to parse preferences: %w", err)
	}
	return s, nil
}

// OpenDir opens DefaultFileName inside dir.
func OpenDir(dir string) (*Store, error) {
	return Open(filepath.Join(dir, DefaultFileName))
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Get decodes the value at key into v. It reports false when key is unset.
func (s *Store) Get(key string, v any) (bool, error) {
	s.mu.RLock()
	raw, ok := s.values[key]
	s.mu.RUnlock()
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, fmt.Errorf("failed to parse %s: %w", key, err)
	}
	return true, nil
}

// Set encodes v and stores it under key.
func (s *Store) Set(key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.SetRaw(key, raw)
}

// SetRaw stores already-encoded JSON under key.
func (s *Store) SetRaw(key string, raw json.RawMessage) error {
	if !json.Valid(raw) {
		return fmt.Errorf("value for %s is not valid JSON", key)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = slices.Clone(raw)
	return s.saveLocked()
}

// Raw returns the encoded value at key.
func (s *Store) Raw(key string) (json.RawMessage, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	raw, ok := s.values[key]
	return slices.Clone(raw), ok
}

// Delete removes key. Removing a missing key is not an error.
func (s *Store) Delete(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.saveLocked()
}

// All returns a copy of every stored value.
func (s *Store) All() map[string]json.RawMessage {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]json.RawMessage, len(s.values))
	for k, v := range s.values {
		out[k] = slices.Clone(v)
	}
	return out
}

// Keys returns the stored keys in sorted order.
func (s *Store) Keys() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Sorted(maps.Keys(s.values))
}

func (s *Store) saveLocked() error {
	if s.path == "" {
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	data, err := json.MarshalIndent(s.values, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal preferences: %w", err)
	}

	// Write to a sibling file and rename so a crash never truncates the store.
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to write preferences: %w", err)
	}
	return nil
}
