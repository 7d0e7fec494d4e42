package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/samber/lo"
	"golang.org/x/sync/errgroup"

	"github.com/tessro/encore/internal/cache"
	"github.com/tessro/encore/internal/catalog"
	"github.com/tessro/encore/internal/core"
	"github.com/tessro/encore/internal/download"
	apperrors "github.com/tessro/encore/internal/errors"
)

// resolveWorkers bounds concurrent catalog lookups.
const resolveWorkers = 4

// Songs returns songs for ids in the given order. Cached metadata is used
// when offline or when the catalog does not know an id.
func (a *App) Songs(ctx context.Context, ids []string) ([]core.Song, error) {
	a.mustOpen()
	cached := lo.SliceToMap(a.Cache.Snapshot(), func(c cache.CachedSong) (string, core.Song) {
		return c.ID, c.Metadata
	})

	byID := make(map[string]core.Song, len(ids))
	if a.Offline.ShouldEnableQuery() {
		fetched, err := a.Catalog.GetSongs(ctx, ids)
		if err != nil {
			a.logger.Warn("catalog lookup failed, using cache", "error", err)
		}
		for _, s := range fetched {
			byID[s.ID] = s
		}
	}

	var missing []string
	songs := make([]core.Song, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			songs = append(songs, s)
		} else if s, ok := cached[id]; ok {
			songs = append(songs, s)
		} else {
			missing = append(missing, id)
		}
	}
	if len(missing) > 0 {
		return songs, fmt.Errorf("%w: %s", apperrors.ErrSongNotFound, strings.Join(missing, ", "))
	}
	return songs, nil
}

// resolve turns summaries into detailed songs while online. Songs that
// cannot be resolved are returned unchanged.
func (a *App) resolve(ctx context.Context, songs []core.Song) []core.Song {
	if !a.Offline.ShouldEnableQuery() {
		return songs
	}
	out := make([]core.Song, len(songs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(resolveWorkers)
	for i, s := range songs {
		g.Go(func() error {
			r, err := a.Catalog.Resolve(ctx, s)
			if err != nil {
				a.logger.Debug("could not resolve song", "id", s.ID, "error", err)
			}
			out[i] = r
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// PlaySongs replaces the queue with the playable subset of songs and starts
// playback at songs[start] (or the first playable song when that one is
// filtered out).
func (a *App) PlaySongs(ctx context.Context, songs []core.Song, start int) error {
	a.mustOpen()
	var startID string
	if start >= 0 && start < len(songs) {
		startID = songs[start].ID
	}

	playable := a.Offline.FilterSongs(songs)
	if len(playable) == 0 {
		return a.unavailable()
	}
	playable = a.resolve(ctx, playable)

	_, idx, ok := lo.FindIndexOf(playable, func(s core.Song) bool { return s.ID == startID })
	if !ok {
		idx = 0
	}
	a.Queue.SetQueue(playable, idx)
	return a.Engine.Play(ctx)
}

// PlaySong plays one song, replacing the queue or playing it alongside.
func (a *App) PlaySong(ctx context.Context, song core.Song, replaceQueue bool) error {
	a.mustOpen()
	if !a.Offline.IsPlayable(song) {
		return a.unavailable()
	}
	resolved := a.resolve(ctx, []core.Song{song})
	return a.Engine.PlaySong(ctx, resolved[0], replaceQueue)
}

// Enqueue adds the playable subset of songs to the queue, after the current
// entry when next is set and at the end otherwise. It returns how many songs
// were added.
func (a *App) Enqueue(ctx context.Context, songs []core.Song, next bool) (int, error) {
	a.mustOpen()
	playable := a.Offline.FilterSongs(songs)
	if len(playable) == 0 {
		return 0, a.unavailable()
	}
	playable = a.resolve(ctx, playable)

	if next && a.Queue.Len() > 0 {
		// Insert in reverse so the songs keep their order after current.
		for i := len(playable) - 1; i >= 0; i-- {
			a.Queue.PlayNext(playable[i])
		}
	} else {
		a.Queue.AppendMany(playable)
	}
	return len(playable), nil
}

// PlayCached replaces the queue with every cached song.
func (a *App) PlayCached(ctx context.Context) error {
	a.mustOpen()
	songs := a.Offline.CachedSongsOnly()
	if len(songs) == 0 {
		return apperrors.ErrNothingCached
	}
	a.Queue.SetQueue(songs, 0)
	return a.Engine.Play(ctx)
}

// Download stores songs for offline play. Failures are collected per song.
func (a *App) Download(ctx context.Context, songs []core.Song) ([]download.Result, error) {
	a.mustOpen()
	if !a.Offline.ShouldEnableQuery() {
		return nil, apperrors.WithSuggestion(
			fmt.Errorf("%w: cannot download while offline", apperrors.ErrNetwork),
			"Reconnect and try again")
	}
	songs = a.resolve(ctx, songs)
	results := a.Downloads.DownloadMany(ctx, songs)

	var errs []error
	for _, r := range results {
		if r.Status == download.StatusFailed {
			errs = append(errs, fmt.Errorf("%s: %w", r.SongID, r.Err))
		}
	}
	return results, apperrors.Join(errs...)
}

// Search queries the catalog and records the query. Offline it searches the
// names of cached songs instead.
func (a *App) Search(ctx context.Context, query string, limit int) ([]core.Song, error) {
	a.mustOpen()
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	if err := a.Prefs.RecordSearch(query); err != nil {
		a.logger.Warn("failed to record search", "error", err)
	}

	if !a.Offline.ShouldEnableQuery() {
		q := strings.ToLower(query)
		matches := lo.Filter(a.Offline.CachedSongsOnly(), func(s core.Song, _ int) bool {
			return strings.Contains(strings.ToLower(s.Name), q) ||
				strings.Contains(strings.ToLower(s.ArtistNames()), q)
		})
		if limit > 0 && len(matches) > limit {
			matches = matches[:limit]
		}
		return matches, nil
	}

	res, err := a.Catalog.Search(ctx, catalog.SearchOptions{Query: query, Limit: limit})
	if err != nil {
		return nil, err
	}
	return res.Results, nil
}

func (a *App) unavailable() error {
	if a.Offline.IsOffline() {
		return apperrors.WithSuggestion(
			fmt.Errorf("%w: nothing playable while offline", apperrors.ErrNotCached),
			"Only downloaded songs play offline. Run 'encore cache list' to see them")
	}
	return apperrors.ErrQueueEmpty
}
