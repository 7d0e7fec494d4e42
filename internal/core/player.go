package core

import (
	"context"
	"time"
)

// Player defines the interface for music playback control.
type Player interface {
	// Playback control
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	TogglePlayPause(ctx context.Context) error
	Next(ctx context.Context) error
	Previous(ctx context.Context) error
	SeekTo(ctx context.Context, position time.Duration) error

	// Volume control, 0..1
	SetVolume(ctx context.Context, volume float64) error

	// State queries
	GetState(ctx context.Context) (*PlaybackState, error)
	GetQueue(ctx context.Context) (*Queue, error)
	GetRecentlyPlayed(ctx context.Context, limit int) ([]HistoryEntry, error)
}

// HistoryEntry represents a recently played song.
type HistoryEntry struct {
	Song     *Song     `json:"song"`
	PlayedAt time.Time `json:"played_at"`
}
