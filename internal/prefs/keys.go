package prefs

import (
	"strings"
	"time"

	"github.com/samber/lo"

	"github.com/tessro/encore/internal/core"
)

// Keys used in the preferences file.
const (
	KeyQueue          = "music-app-queue"
	KeyRecentlyPlayed = "music-app-recently-played"
	KeySearchHistory  = "music-app-search-history"
	KeyHistory        = "music-app-history"
	KeyStorageVersion = "music-app-storage-version"
)

// Caps and expiry.
const (
	MaxRecentlyPlayed = 50
	MaxSearchHistory  = 10
	MaxHistory        = 100
	QueueExpiry       = 7 * 24 * time.Hour
)

// QueueSnapshot is the persisted play queue.
type QueueSnapshot struct {
	Songs        []core.Song `json:"songs"`
	CurrentIndex int         `json:"currentIndex"`
	SavedAt      int64       `json:"savedAt"` // epoch ms
}

// Expired reports whether the snapshot is older than QueueExpiry at now.
func (q *QueueSnapshot) Expired(now time.Time) bool {
	return now.Sub(time.UnixMilli(q.SavedAt)) > QueueExpiry
}

// SaveQueue persists the queue. An empty queue removes the snapshot.
func (s *Store) SaveQueue(q *core.Queue) error {
	if q.IsEmpty() {
		return s.Delete(KeyQueue)
	}
	return s.Set(KeyQueue, QueueSnapshot{
		Songs:        q.Songs(),
		CurrentIndex: q.CurrentIndex,
		SavedAt:      s.Now().UnixMilli(),
	})
}

// LoadQueue returns the saved queue, or nil when none is saved or the saved
// one has expired. Expired and unreadable snapshots are removed.
func (s *Store) LoadQueue() (*QueueSnapshot, error) {
	var snap QueueSnapshot
	ok, err := s.Get(KeyQueue, &snap)
	if err != nil {
		return nil, s.Delete(KeyQueue)
	}
	if !ok {
		return nil, nil
	}
	if snap.Expired(s.Now()) || len(snap.Songs) == 0 {
		return nil, s.Delete(KeyQueue)
	}
	return &snap, nil
}

// RecentlyPlayed returns recently played songs, newest first, one per song.
func (s *Store) RecentlyPlayed() ([]core.HistoryEntry, error) {
	var entries []core.HistoryEntry
	_, err := s.Get(KeyRecentlyPlayed, &entries)
	return entries, err
}

// History returns every recorded play, newest first.
func (s *Store) History() ([]core.HistoryEntry, error) {
	var entries []core.HistoryEntry
	_, err := s.Get(KeyHistory, &entries)
	return entries, err
}

// RecordPlay adds song to the recently played list (moving an existing entry
// to the front) and appends it to the play history.
func (s *Store) RecordPlay(song core.Song) error {
	entry := core.HistoryEntry{Song: song.Clone(), PlayedAt: s.Now()}

	recent, _ := s.RecentlyPlayed()
	recent = lo.Reject(recent, func(e core.HistoryEntry, _ int) bool {
		return e.Song != nil && e.Song.ID == song.ID
	})
	recent = capEntries(append([]core.HistoryEntry{entry}, recent...), MaxRecentlyPlayed)
	if err := s.Set(KeyRecentlyPlayed, recent); err != nil {
		return err
	}

	history, _ := s.History()
	history = capEntries(append([]core.HistoryEntry{entry}, history...), MaxHistory)
	return s.Set(KeyHistory, history)
}

// SearchHistory returns recent search queries, newest first.
func (s *Store) SearchHistory() ([]string, error) {
	var queries []string
	_, err := s.Get(KeySearchHistory, &queries)
	return queries, err
}

// RecordSearch adds query to the front of the search history. Blank queries
// are ignored and repeated queries move to the front.
func (s *Store) RecordSearch(query string) error {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	queries, _ := s.SearchHistory()
	queries = lo.Reject(queries, func(q string, _ int) bool {
		return strings.EqualFold(q, query)
	})
	queries = append([]string{query}, queries...)
	if len(queries) > MaxSearchHistory {
		queries = queries[:MaxSearchHistory]
	}
	return s.Set(KeySearchHistory, queries)
}

// ClearHistory removes recently played, history, and search history.
func (s *Store) ClearHistory() error {
	for _, key := range []string{KeyRecentlyPlayed, KeyHistory, KeySearchHistory} {
		if err := s.Delete(key); err != nil {
			return err
		}
	}
	return nil
}

// StorageVersion returns the recorded storage schema version, or 0.
func (s *Store) StorageVersion() int {
	var v int
	if _, err := s.Get(KeyStorageVersion, &v); err != nil {
		return 0
	}
	return v
}

// SetStorageVersion records the storage schema version.
func (s *Store) SetStorageVersion(v int) error {
	return s.Set(KeyStorageVersion, v)
}

func capEntries(entries []core.HistoryEntry, max int) []core.HistoryEntry {
	if len(entries) > max {
		return entries[:max]
	}
	return entries
}
