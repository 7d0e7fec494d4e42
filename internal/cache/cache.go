// Package cache keeps the in-memory index of songs stored for offline play.
package cache

import (
	"cmp"
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/encore/internal/blobstore"
	"github.com/tessro/encore/internal/core"
)

// hydrateWorkers bounds concurrent blob reads during Hydrate.
const hydrateWorkers = 4

// touchTimeout bounds the background write that records a read.
const touchTimeout = 5 * time.Second

// CachedSong is a song persisted for offline play. A CachedSong without
// audio is indexed but not playable.
type CachedSong struct {
	ID           string
	Metadata     core.Song
	Audio        []byte
	Images       map[string][]byte
	CachedAt     time.Time
	LastAccessed time.Time
}

// HasAudio reports whether the entry can be played offline.
func (c *CachedSong) HasAudio() bool {
	return c != nil && c.Audio != nil
}

// Size returns the number of bytes held by the entry's blobs.
func (c *CachedSong) Size() int64 {
	if c == nil {
		return 0
	}
	n := int64(len(c.Audio))
	for _, img := range c.Images {
		n += int64(len(img))
	}
	return n
}

// Record is the metadata document stored in the songs store.
type Record struct {
	ID           string    `json:"id"`
	Metadata     core.Song `json:"metadata"`
	CachedAt     int64     `json:"cachedAt"`     // epoch ms
	LastAccessed int64     `json:"lastAccessed"` // epoch ms
}

// EncodeRecord returns the songs store document for c.
func EncodeRecord(c *CachedSong) ([]byte, error) {
	return json.Marshal(Record{
		ID:           c.ID,
		Metadata:     c.Metadata,
		CachedAt:     c.CachedAt.UnixMilli(),
		LastAccessed: c.LastAccessed.UnixMilli(),
	})
}

// DecodeRecord parses a songs store document.
func DecodeRecord(data []byte) (*CachedSong, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return nil, err
	}
	if r.ID == "" {
		r.ID = r.Metadata.ID
	}
	return &CachedSong{
		ID:           r.ID,
		Metadata:     r.Metadata,
		CachedAt:     time.UnixMilli(r.CachedAt),
		LastAccessed: time.UnixMilli(r.LastAccessed),
	}, nil
}

// Manager is the cache index. It never writes song data; persistence
// belongs to the download coordinator. The only write it performs is
// recording access times.
type Manager struct {
	mu      sync.RWMutex
	entries map[string]*CachedSong

	// persistMu orders access-time writes against Remove and Clear. A write
	// only lands while its entry is still indexed.
	persistMu sync.Mutex

	store  blobstore.Store
	logger *slog.Logger
	wg     sync.WaitGroup

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// New returns an empty Manager backed by store.
func New(store blobstore.Store, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		entries: make(map[string]*CachedSong),
		store:   store,
		logger:  logger.With("component", "cache"),
		Now:     time.Now,
	}
}

// Hydrate rebuilds the index from the store, joining each metadata record
// with its audio and image blobs. Failures are logged; whatever could be read
// is indexed. It returns the number of indexed entries.
func (m *Manager) Hydrate(ctx context.Context) int {
	records, err := m.store.GetAll(ctx, blobstore.MusicApp, blobstore.StoreSongs)
	if err != nil {
		m.logger.Warn("failed to read cached metadata", "error", err)
		return 0
	}

	loaded := make([]*CachedSong, len(records))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hydrateWorkers)
	for i, rec := range records {
		g.Go(func() error {
			entry, err := DecodeRecord(rec.Value)
			if err != nil {
				m.logger.Warn("skipping unreadable cache record", "key", rec.Key, "error", err)
				return nil
			}
			m.loadBlobs(gctx, entry)
			loaded[i] = entry
			return nil
		})
	}
	_ = g.Wait()

	entries := make(map[string]*CachedSong, len(loaded))
	for _, e := range loaded {
		if e != nil {
			entries[e.ID] = e
		}
	}

	m.mu.Lock()
	m.entries = entries
	m.mu.Unlock()

	m.logger.Debug("cache hydrated", "entries", len(entries))
	return len(entries)
}

func (m *Manager) loadBlobs(ctx context.Context, entry *CachedSong) {
	audio, err := m.store.Get(ctx, blobstore.MusicApp, blobstore.StoreAudio, blobstore.AudioKey(entry.ID))
	if err != nil {
		m.logger.Warn("failed to read cached audio", "song", entry.ID, "error", err)
	}
	entry.Audio = audio

	for _, img := range entry.Metadata.Image {
		data, err := m.store.Get(ctx, blobstore.MusicApp, blobstore.StoreImages, blobstore.ImageKey(entry.ID, img.Quality))
		if err != nil {
			m.logger.Warn("failed to read cached image", "song", entry.ID, "quality", img.Quality, "error", err)
			continue
		}
		if data == nil {
			continue
		}
		if entry.Images == nil {
			entry.Images = make(map[string][]byte)
		}
		entry.Images[img.Quality] = data
	}
}

// IsCached reports whether id has playable audio in the cache.
func (m *Manager) IsCached(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[id].HasAudio()
}

// GetBlob returns the cached audio for id, or nil. A hit records the access
// time and persists it in the background.
func (m *Manager) GetBlob(ctx context.Context, id string) []byte {
	m.mu.Lock()
	entry, ok := m.entries[id]
	if !ok || !entry.HasAudio() {
		m.mu.Unlock()
		return nil
	}
	entry.LastAccessed = m.Now()
	audio := entry.Audio
	doc, err := EncodeRecord(entry)
	m.mu.Unlock()

	if err != nil {
		m.logger.Warn("failed to encode cache record", "song", id, "error", err)
		return audio
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.persistMu.Lock()
		defer m.persistMu.Unlock()
		if !m.indexed(id, entry) {
			return
		}
		tctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), touchTimeout)
		defer cancel()
		if err := m.store.Put(tctx, blobstore.MusicApp, blobstore.StoreSongs, blobstore.MetadataKey(id), doc); err != nil {
			m.logger.Warn("failed to record cache access", "song", id, "error", err)
		}
	}()
	return audio
}

// Image returns the cached bytes for one image variant of id.
func (m *Manager) Image(id, quality string) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return nil
	}
	return entry.Images[quality]
}

// Get returns a copy of the entry for id.
func (m *Manager) Get(id string) (CachedSong, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	entry, ok := m.entries[id]
	if !ok {
		return CachedSong{}, false
	}
	return copyEntry(entry), true
}

// Add indexes entry, replacing any entry with the same ID.
func (m *Manager) Add(entry *CachedSong) {
	if entry == nil || entry.ID == "" {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[entry.ID] = entry
}

// indexed reports whether entry is still the indexed entry for id.
func (m *Manager) indexed(id string, entry *CachedSong) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.entries[id] == entry
}

// Remove drops id from the index. Once it returns, no access-time write for
// id is in flight and none will start, so deleting the stored records
// afterwards is final.
func (m *Manager) Remove(id string) {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.entries, id)
}

// Clear empties the index. Pending access-time writes are dropped as in
// Remove.
func (m *Manager) Clear() {
	m.persistMu.Lock()
	defer m.persistMu.Unlock()
	m.mu.Lock()
	defer m.mu.Unlock()
	clear(m.entries)
}

// Snapshot returns copies of every entry, most recently cached first.
// Blob slices are shared and must not be modified.
func (m *Manager) Snapshot() []CachedSong {
	m.mu.RLock()
	out := make([]CachedSong, 0, len(m.entries))
	for _, e := range m.entries {
		out = append(out, copyEntry(e))
	}
	m.mu.RUnlock()

	slices.SortFunc(out, func(a, b CachedSong) int {
		if c := b.CachedAt.Compare(a.CachedAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

// Count returns the number of playable entries.
func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.CountBy(slices.Collect(maps.Values(m.entries)), func(e *CachedSong) bool {
		return e.HasAudio()
	})
}

// CachedSongs returns the metadata of playable entries, most recently
// cached first.
func (m *Manager) CachedSongs() []core.Song {
	return lo.FilterMap(m.Snapshot(), func(e CachedSong, _ int) (core.Song, bool) {
		return e.Metadata, e.HasAudio()
	})
}

// TotalSize returns the bytes held by every indexed blob.
func (m *Manager) TotalSize() int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return lo.SumBy(slices.Collect(maps.Values(m.entries)), func(e *CachedSong) int64 {
		return e.Size()
	})
}

// Wait blocks until background access-time writes finish.
func (m *Manager) Wait() {
	m.wg.Wait()
}

func copyEntry(e *CachedSong) CachedSong {
	c := *e
	c.Metadata = *e.Metadata.Clone()
	if e.Images != nil {
		c.Images = maps.Clone(e.Images)
	}
	return c
}
