// Package blobstore persists cached songs and collaborator data as keyed
// records grouped into logical databases and stores.
package blobstore

import (
	"context"
	"fmt"

	"github.com/tessro/encore/internal/config"
	apperrors "github.com/tessro/encore/internal/errors"
)

// DB names a logical database. Each database is versioned independently.
type DB string

const (
	MusicApp  DB = "MusicAppDB"
	Favorites DB = "MusicAppFavoritesDB"
	Playlists DB = "music-app-playlists"
)

// Store names.
const (
	StoreSongs     = "songs"
	StoreAudio     = "audio"
	StoreImages    = "images"
	StoreFavorites = "favorites"
	StorePlaylists = "playlists"
)

// Schema describes a logical database and the stores it must contain.
type Schema struct {
	DB      DB
	Version int
	Stores  []string
}

// Schemas lists every database the application opens.
var Schemas = []Schema{
	{DB: MusicApp, Version: 1, Stores: []string{StoreSongs, StoreAudio, StoreImages}},
	{DB: Favorites, Version: 1, Stores: []string{StoreFavorites}},
	{DB: Playlists, Version: 1, Stores: []string{StorePlaylists}},
}

// SchemaFor returns the schema of db.
func SchemaFor(db DB) (Schema, bool) {
	for _, s := range Schemas {
		if s.DB == db {
			return s, true
		}
	}
	return Schema{}, false
}

// Record is a single key/value pair inside a store.
type Record struct {
	Key   string `json:"key"`
	Value []byte `json:"value"`
}

// Usage reports bytes consumed by the stores and the bytes available to them.
type Usage struct {
	UsedBytes  uint64 `json:"used"`
	QuotaBytes uint64 `json:"quota"`
}

// Percent returns used/quota as a percentage, or 0 when the quota is unknown.
func (u Usage) Percent() float64 {
	if u.QuotaBytes == 0 {
		return 0
	}
	return float64(u.UsedBytes) / float64(u.QuotaBytes) * 100
}

// Store is a transactional key/value store. Every method is its own
// transaction. Get returns nil, nil for a missing key. Failures wrap
// errors.ErrStorage.
type Store interface {
	Get(ctx context.Context, db DB, store, key string) ([]byte, error)
	GetAll(ctx context.Context, db DB, store string) ([]Record, error)
	Put(ctx context.Context, db DB, store, key string, value []byte) error
	Delete(ctx context.Context, db DB, store, key string) error
	Clear(ctx context.Context, db DB, store string) error
	EstimateUsage(ctx context.Context) (Usage, error)
	Close() error
}

// Open returns the store engine selected by cfg.
func Open(cfg config.StorageConfig) (Store, error) {
	switch cfg.Engine {
	case "memory":
		return NewMemory(), nil
	case "", "bolt":
		return OpenBolt(cfg.DataDir)
	default:
		return nil, fmt.Errorf("unknown storage engine %q", cfg.Engine)
	}
}

// AudioKey returns the audio store key for a song.
func AudioKey(songID string) string {
	return songID
}

// MetadataKey returns the songs store key for a song.
func MetadataKey(songID string) string {
	return songID
}

// ImageKey returns the images store key for one image variant of a song.
func ImageKey(songID, quality string) string {
	return songID + "-" + quality
}

func checkStore(db DB, store string) error {
	schema, ok := SchemaFor(db)
	if !ok {
		return apperrors.Storage(string(db), fmt.Errorf("unknown database"))
	}
	for _, s := range schema.Stores {
		if s == store {
			return nil
		}
	}
	return apperrors.Storage(string(db)+"/"+store, fmt.Errorf("unknown store"))
}
