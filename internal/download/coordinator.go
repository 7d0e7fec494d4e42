// Package download fetches songs and stores them for offline play.
package download

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/tessro/encore/internal/blobstore"
	"github.com/tessro/encore/internal/cache"
	"github.com/tessro/encore/internal/config"
	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
)

// Policy selects how concurrent downloads are guarded.
type Policy string

const (
	// PolicySingle allows one download at a time; others are dropped.
	PolicySingle Policy = "single"
	// PolicyPerSong drops duplicates of an in-flight song and queues the
	// rest behind a bounded number of workers.
	PolicyPerSong Policy = "per-song"
)

// Status is the outcome of a download request.
type Status string

const (
	StatusCached        Status = "cached"
	StatusSkippedCached Status = "skipped-cached"
	StatusSkippedBusy   Status = "skipped-busy"
	StatusFailed        Status = "failed"
)

// Result reports what a Download call did.
type Result struct {
	SongID string
	Status Status
	Err    error
}

// Options configures a Coordinator.
type Options struct {
	Policy      Policy
	MaxParallel int
	Timeout     time.Duration
	Quality     string
	Images      bool
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// OptionsFromConfig converts the download config section to Options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		Policy:      Policy(cfg.Download.Policy),
		MaxParallel: cfg.Download.MaxParallel,
		Timeout:     cfg.DownloadTimeout(),
		Quality:     cfg.Download.PreferredQuality,
		Images:      cfg.Download.Images,
	}
}

// Coordinator downloads songs into the blob store and the cache index.
type Coordinator struct {
	store  blobstore.Store
	cache  *cache.Manager
	opts   Options
	client *http.Client
	logger *slog.Logger

	mu       sync.Mutex
	busy     bool
	inFlight map[string]struct{}
	sem      *semaphore.Weighted

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// New creates a Coordinator.
func New(store blobstore.Store, idx *cache.Manager, opts Options) *Coordinator {
	if opts.Policy == "" {
		opts.Policy = PolicySingle
	}
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Quality == "" {
		opts.Quality = core.PreferredQuality
	}
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Coordinator{
		store:    store,
		cache:    idx,
		opts:     opts,
		client:   client,
		logger:   logger.With("component", "download"),
		inFlight: make(map[string]struct{}),
		Now:      time.Now,
	}
	if opts.Policy == PolicyPerSong {
		c.sem = semaphore.NewWeighted(int64(opts.MaxParallel))
	}
	return c
}

// Policy returns the active concurrency policy.
func (c *Coordinator) Policy() Policy {
	return c.opts.Policy
}

// IsDownloading reports whether any download is in flight.
func (c *Coordinator) IsDownloading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.busy || len(c.inFlight) > 0
}

// InFlight reports whether songID is being downloaded.
func (c *Coordinator) InFlight(songID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inFlight[songID]
	return ok
}

func (c *Coordinator) acquire(songID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.opts.Policy == PolicySingle {
		if c.busy {
			return false
		}
		c.busy = true
	} else if _, ok := c.inFlight[songID]; ok {
		return false
	}
	c.inFlight[songID] = struct{}{}
	return true
}

func (c *Coordinator) release(songID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inFlight, songID)
	if c.opts.Policy == PolicySingle {
		c.busy = false
	}
}

// Download fetches song and stores it for offline play. Songs already cached
// and requests rejected by the concurrency policy are skipped. Failures are
// logged and reported in the Result; nothing partial is left behind.
func (c *Coordinator) Download(ctx context.Context, song core.Song) Result {
	res := Result{SongID: song.ID}

	if c.cache.IsCached(song.ID) {
		res.Status = StatusSkippedCached
		return res
	}
	if !c.acquire(song.ID) {
		c.logger.Debug("download already in progress, skipping", "song", song.ID)
		res.Status = StatusSkippedBusy
		return res
	}
	defer c.release(song.ID)

	if c.sem != nil {
		if err := c.sem.Acquire(ctx, 1); err != nil {
			return c.fail(res, err)
		}
		defer c.sem.Release(1)
	}

	url := song.PreferredDownloadURL(c.opts.Quality)
	if url == "" {
		return c.fail(res, apperrors.ErrNoSource)
	}

	fctx := ctx
	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		fctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	audio, err := c.fetch(fctx, url)
	if err != nil {
		return c.fail(res, err)
	}

	now := c.Now()
	entry := &cache.CachedSong{
		ID:           song.ID,
		Metadata:     *song.Clone(),
		Audio:        audio,
		CachedAt:     now,
		LastAccessed: now,
	}
	if c.opts.Images {
		entry.Images = c.fetchImages(fctx, song)
	}

	if err := c.persist(ctx, entry); err != nil {
		return c.fail(res, err)
	}
	c.cache.Add(entry)

	c.logger.Info("song cached", "song", song.ID, "bytes", len(audio))
	res.Status = StatusCached
	return res
}

func (c *Coordinator) fail(res Result, err error) Result {
	c.logger.Warn("download failed", "song", res.SongID, "error", err)
	res.Status = StatusFailed
	res.Err = err
	return res
}

// DownloadMany downloads songs, concurrently under the per-song policy and
// one after another under the single policy. Results are in input order.
func (c *Coordinator) DownloadMany(ctx context.Context, songs []core.Song) []Result {
	results := make([]Result, len(songs))
	if c.opts.Policy == PolicySingle {
		for i, s := range songs {
			results[i] = c.Download(ctx, s)
		}
		return results
	}

	var g errgroup.Group
	for i, s := range songs {
		g.Go(func() error {
			results[i] = c.Download(ctx, s)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

// persist writes audio, images, and metadata. On failure every key written so
// far is removed.
func (c *Coordinator) persist(ctx context.Context, entry *cache.CachedSong) error {
	type written struct{ store, key string }
	var done []written

	put := func(store, key string, value []byte) error {
		if err := c.store.Put(ctx, blobstore.MusicApp, store, key, value); err != nil {
			return err
		}
		done = append(done, written{store, key})
		return nil
	}

	err := put(blobstore.StoreAudio, blobstore.AudioKey(entry.ID), entry.Audio)
	for quality, img := range entry.Images {
		if err != nil {
			break
		}
		err = put(blobstore.StoreImages, blobstore.ImageKey(entry.ID, quality), img)
	}
	if err == nil {
		var doc []byte
		doc, err = cache.EncodeRecord(entry)
		if err == nil {
			err = put(blobstore.StoreSongs, blobstore.MetadataKey(entry.ID), doc)
		}
	}
	if err == nil {
		return nil
	}

	rctx := context.WithoutCancel(ctx)
	for _, w := range done {
		if derr := c.store.Delete(rctx, blobstore.MusicApp, w.store, w.key); derr != nil {
			c.logger.Warn("failed to roll back partial download", "song", entry.ID, "key", w.key, "error", derr)
		}
	}
	return err
}

// Remove deletes a song's stored records and drops it from the index.
// Removing a song that is not cached is not an error.
func (c *Coordinator) Remove(ctx context.Context, songID string) error {
	imageKeys := c.imageKeys(ctx, songID)
	// Unindex first so a pending access-time write cannot recreate the
	// metadata record deleted below.
	c.cache.Remove(songID)

	var errs []error
	del := func(store, key string) {
		if err := c.store.Delete(ctx, blobstore.MusicApp, store, key); err != nil {
			errs = append(errs, err)
		}
	}

	del(blobstore.StoreAudio, blobstore.AudioKey(songID))
	for _, key := range imageKeys {
		del(blobstore.StoreImages, key)
	}
	del(blobstore.StoreSongs, blobstore.MetadataKey(songID))
	return errors.Join(errs...)
}

func (c *Coordinator) imageKeys(ctx context.Context, songID string) []string {
	if entry, ok := c.cache.Get(songID); ok {
		keys := make([]string, 0, len(entry.Metadata.Image))
		for _, img := range entry.Metadata.Image {
			keys = append(keys, blobstore.ImageKey(songID, img.Quality))
		}
		return keys
	}

	doc, err := c.store.Get(ctx, blobstore.MusicApp, blobstore.StoreSongs, blobstore.MetadataKey(songID))
	if err != nil || doc == nil {
		return nil
	}
	entry, err := cache.DecodeRecord(doc)
	if err != nil {
		return nil
	}
	keys := make([]string, 0, len(entry.Metadata.Image))
	for _, img := range entry.Metadata.Image {
		keys = append(keys, blobstore.ImageKey(songID, img.Quality))
	}
	return keys
}

// ClearAll removes every cached song.
func (c *Coordinator) ClearAll(ctx context.Context) error {
	c.cache.Clear()
	var errs []error
	for _, store := range []string{blobstore.StoreAudio, blobstore.StoreImages, blobstore.StoreSongs} {
		if err := c.store.Clear(ctx, blobstore.MusicApp, store); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
