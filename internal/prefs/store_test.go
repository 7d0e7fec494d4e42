package prefs

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/tessro/encore/internal/core"
)

func newTestStore(t *testing.T) (*Store, *time.Time) {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), DefaultFileName))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	s.Now = func() time.Time { return now }
	return s, &now
}

func TestStorePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", DefaultFileName)
	s, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	if err := s.Set("volume", 0.5); err != nil {
		t.Fatalf("Set() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("file mode = %v, want 0600", info.Mode().Perm())
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatal(err)
	}
	var v float64
	ok, err := reopened.Get("volume", &v)
	if !ok || err != nil || v != 0.5 {
		t.Errorf("Get() = %v, %v, %v", v, ok, err)
	}
}

func TestStoreMissingFile(t *testing.T) {
	s, err := Open(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatal(err)
	}
	var v string
	ok, err := s.Get("x", &v)
	if ok || err != nil {
		t.Errorf("Get() = %v, %v; want false, nil", ok, err)
	}
}

func TestSetRawRejectsInvalidJSON(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.SetRaw("k", json.RawMessage("{nope")); err == nil {
		t.Error("SetRaw() accepted invalid JSON")
	}
}

func TestQueueSnapshotExpiry(t *testing.T) {
	s, now := newTestStore(t)
	q := &core.Queue{
		Entries:      []core.QueueEntry{{Key: "1", Song: core.Song{ID: "a"}}, {Key: "2", Song: core.Song{ID: "b"}}},
		CurrentIndex: 1,
	}
	if err := s.SaveQueue(q); err != nil {
		t.Fatal(err)
	}

	*now = now.Add(6 * 24 * time.Hour)
	snap, err := s.LoadQueue()
	if err != nil || snap == nil {
		t.Fatalf("LoadQueue() = %v, %v", snap, err)
	}
	if snap.CurrentIndex != 1 || len(snap.Songs) != 2 {
		t.Errorf("snapshot = %+v", snap)
	}

	*now = now.Add(2 * 24 * time.Hour)
	snap, err = s.LoadQueue()
	if err != nil || snap != nil {
		t.Fatalf("LoadQueue() after expiry = %v, %v; want nil", snap, err)
	}
	if _, ok := s.Raw(KeyQueue); ok {
		t.Error("expired snapshot should be removed")
	}
}

func TestRecordPlayCapsAndDedupes(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < MaxRecentlyPlayed+5; i++ {
		if err := s.RecordPlay(core.Song{ID: fmt.Sprintf("s%d", i)}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RecordPlay(core.Song{ID: "s10"}); err != nil {
		t.Fatal(err)
	}

	recent, err := s.RecentlyPlayed()
	if err != nil {
		t.Fatal(err)
	}
	if len(recent) != MaxRecentlyPlayed {
		t.Fatalf("len(recent) = %d, want %d", len(recent), MaxRecentlyPlayed)
	}
	if recent[0].Song.ID != "s10" {
		t.Errorf("recent[0] = %s, want s10", recent[0].Song.ID)
	}
	seen := map[string]bool{}
	for _, e := range recent {
		if seen[e.Song.ID] {
			t.Errorf("duplicate %s in recently played", e.Song.ID)
		}
		seen[e.Song.ID] = true
	}

	history, _ := s.History()
	if len(history) != MaxRecentlyPlayed+6 {
		t.Errorf("len(history) = %d, want %d", len(history), MaxRecentlyPlayed+6)
	}
}

func TestRecordSearch(t *testing.T) {
	s, _ := newTestStore(t)
	for i := 0; i < 12; i++ {
		_ = s.RecordSearch(fmt.Sprintf("q%d", i))
	}
	_ = s.RecordSearch("  ")
	_ = s.RecordSearch("Q5")

	queries, err := s.SearchHistory()
	if err != nil {
		t.Fatal(err)
	}
	if len(queries) != MaxSearchHistory {
		t.Fatalf("len = %d, want %d", len(queries), MaxSearchHistory)
	}
	if queries[0] != "Q5" {
		t.Errorf("queries[0] = %q, want Q5", queries[0])
	}
	for _, q := range queries[1:] {
		if q == "q5" {
			t.Error("case-insensitive duplicate kept")
		}
	}
}

func TestStorageVersion(t *testing.T) {
	s, _ := newTestStore(t)
	if v := s.StorageVersion(); v != 0 {
		t.Errorf("StorageVersion() = %d, want 0", v)
	}
	_ = s.SetStorageVersion(2)
	if v := s.StorageVersion(); v != 2 {
		t.Errorf("StorageVersion() = %d, want 2", v)
	}
}
