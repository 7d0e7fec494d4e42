// Package offline decides what is playable given network reachability and
// the cache index.
package offline

import (
	"log/slog"

	"github.com/samber/lo"

	"github.com/tessro/encore/internal/core"
)

// Reachability reports whether the network is unreachable.
type Reachability interface {
	IsOffline() bool
}

// CacheIndex is the subset of the cache the arbiter consults.
type CacheIndex interface {
	IsCached(id string) bool
	CachedSongs() []core.Song
}

// Arbiter is a predicate layer over network state and the cache index. It
// performs no caching itself.
type Arbiter struct {
	reach  Reachability
	cache  CacheIndex
	logger *slog.Logger
}

// NewArbiter creates an Arbiter.
func NewArbiter(reach Reachability, idx CacheIndex, logger *slog.Logger) *Arbiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Arbiter{reach: reach, cache: idx, logger: logger.With("component", "offline")}
}

// IsOffline reports whether the network is unreachable.
func (a *Arbiter) IsOffline() bool {
	return a.reach.IsOffline()
}

// ForceOffline is accepted for compatibility and ignored: offline mode
// tracks the network, not user preference.
func (a *Arbiter) ForceOffline(offline bool) {
	a.logger.Debug("ignoring forced offline mode", "requested", offline)
}

// FilterSongs returns songs unchanged when online. Offline, it returns the
// cached songs in input order.
func (a *Arbiter) FilterSongs(songs []core.Song) []core.Song {
	if !a.IsOffline() {
		return songs
	}
	return lo.Filter(songs, func(s core.Song, _ int) bool {
		return a.cache.IsCached(s.ID)
	})
}

// CachedSongsOnly returns every song with cached audio, regardless of mode.
func (a *Arbiter) CachedSongsOnly() []core.Song {
	return a.cache.CachedSongs()
}

// IsContentAvailable reports whether anything in songs can be played: always
// when online, and when at least one song is cached when offline.
func (a *Arbiter) IsContentAvailable(songs []core.Song) bool {
	if !a.IsOffline() {
		return true
	}
	return lo.SomeBy(songs, func(s core.Song) bool {
		return a.cache.IsCached(s.ID)
	})
}

// ShouldEnableQuery reports whether remote catalog requests should be made.
func (a *Arbiter) ShouldEnableQuery() bool {
	return !a.IsOffline()
}

// IsPlayable reports whether a single song can be played now.
func (a *Arbiter) IsPlayable(song core.Song) bool {
	return !a.IsOffline() || a.cache.IsCached(song.ID)
}
