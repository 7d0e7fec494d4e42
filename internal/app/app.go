// Package app builds every player component once and exposes the actions
// the CLI and TUI call.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/tessro/encore/internal/audio"
	"github.com/tessro/encore/internal/blobstore"
	"github.com/tessro/encore/internal/cache"
	"github.com/tessro/encore/internal/catalog"
	"github.com/tessro/encore/internal/config"
	"github.com/tessro/encore/internal/download"
	apperrors "github.com/tessro/encore/internal/errors"
	"github.com/tessro/encore/internal/mediasession"
	"github.com/tessro/encore/internal/migrate"
	"github.com/tessro/encore/internal/notify"
	"github.com/tessro/encore/internal/offline"
	"github.com/tessro/encore/internal/playback"
	"github.com/tessro/encore/internal/prefs"
	"github.com/tessro/encore/internal/queue"
)

// Name is the application name used for the media session and notifications.
const Name = "encore"

// Options configures an App. Zero fields fall back to the configuration.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// Ephemeral keeps all state in memory.
	Ephemeral bool

	Output     audio.Output
	Session    mediasession.Session
	Notifier   notify.Notifier
	HTTPClient *http.Client
	Seed       uint64
}

// App owns every component. Create it with New and call Open before use.
type App struct {
	opts   Options
	cfg    *config.Config
	logger *slog.Logger

	Store     blobstore.Store
	Prefs     *prefs.Store
	Migrator  *migrate.Migrator
	Cache     *cache.Manager
	Downloads *download.Coordinator
	Monitor   *offline.Monitor
	Offline   *offline.Arbiter
	Queue     *queue.Manager
	Engine    *playback.Engine
	Catalog   *catalog.Client
	Session   mediasession.Session
	Notifier  notify.Notifier

	mu               sync.Mutex
	opened           bool
	started          bool
	cancel           context.CancelFunc
	wg               sync.WaitGroup
	unsubscribeQueue func()
}

// New creates an unopened App.
func New(opts Options) *App {
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &App{opts: opts, cfg: opts.Config, logger: opts.Logger}
}

// Config returns the configuration the App was built with.
func (a *App) Config() *config.Config {
	return a.cfg
}

// Open builds and connects every component: storage, migrations, cache
// hydration, the restored queue, and the playback engine.
func (a *App) Open(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.opened {
		return nil
	}

	if err := a.openStorage(ctx); err != nil {
		return err
	}

	a.Cache = cache.New(a.Store, a.logger)
	n := a.Cache.Hydrate(ctx)
	a.logger.Debug("cache hydrated", "songs", n)

	dlOpts := download.OptionsFromConfig(a.cfg)
	dlOpts.HTTPClient = a.opts.HTTPClient
	dlOpts.Logger = a.logger
	a.Downloads = download.New(a.Store, a.Cache, dlOpts)

	a.Monitor = offline.NewMonitor(a.cfg.Offline.CheckURL, a.cfg.CheckInterval(), a.cfg.CheckTimeout(), a.logger)
	a.Offline = offline.NewArbiter(a.Monitor, a.Cache, a.logger)

	a.Catalog = catalog.NewFromConfig(a.cfg, a.logger)

	a.Queue = queue.New(a.seed())
	a.restoreQueue()
	a.Queue.SetShuffle(a.cfg.Playback.Shuffle)

	a.Session = a.openSession()
	a.Notifier = a.buildNotifier()

	out := a.opts.Output
	if out == nil {
		out = audio.New(a.cfg.Playback.Audio)
	}
	a.Engine = playback.New(a.Queue, playback.Options{
		Output:           out,
		Session:          a.Session,
		Notifier:         a.Notifier,
		Cache:            a.Cache,
		Offline:          a.Offline,
		History:          a.Prefs,
		Volume:           float64(a.cfg.Playback.Volume) / 100,
		RestartThreshold: a.cfg.RestartThreshold(),
		Logger:           a.logger,
	})

	a.unsubscribeQueue = a.Queue.Subscribe(func(ch queue.Change) {
		if err := a.Prefs.SaveQueue(&ch.Queue); err != nil {
			a.logger.Warn("failed to save queue", "error", err)
		}
	})

	a.opened = true
	return nil
}

func (a *App) openStorage(ctx context.Context) error {
	var err error
	if a.opts.Ephemeral {
		a.Store = blobstore.NewMemory()
		a.Prefs, err = prefs.Open("")
		if err != nil {
			return err
		}
	} else {
		if err := os.MkdirAll(a.cfg.Storage.DataDir, 0o755); err != nil {
			return apperrors.Storage("create data directory", err)
		}
		a.Store, err = blobstore.Open(a.cfg.Storage)
		if err != nil {
			return err
		}
		a.Prefs, err = prefs.OpenDir(a.cfg.Storage.DataDir)
		if err != nil {
			_ = a.Store.Close()
			return apperrors.Storage("open preferences", err)
		}
	}

	a.Migrator = migrate.New(a.Prefs, a.Store, a.logger)
	if _, err := a.Migrator.Run(ctx); err != nil {
		_ = a.Store.Close()
		return fmt.Errorf("failed to migrate storage: %w", err)
	}
	return nil
}

func (a *App) seed() uint64 {
	if a.opts.Seed != 0 {
		return a.opts.Seed
	}
	return uint64(time.Now().UnixNano())
}

func (a *App) restoreQueue() {
	snap, err := a.Prefs.LoadQueue()
	if err != nil {
		a.logger.Warn("failed to load saved queue", "error", err)
		return
	}
	if snap == nil {
		return
	}
	a.Queue.SetQueue(snap.Songs, snap.CurrentIndex)
	a.logger.Debug("restored queue", "songs", len(snap.Songs), "index", snap.CurrentIndex)
}

func (a *App) openSession() mediasession.Session {
	if a.opts.Session != nil {
		return a.opts.Session
	}
	if !a.cfg.MediaSession.Enabled {
		return mediasession.Noop{}
	}
	s, err := mediasession.NewMPRIS(Name, a.logger)
	if err != nil {
		a.logger.Debug("media session unavailable", "error", err)
		return mediasession.Noop{}
	}
	return s
}

func (a *App) buildNotifier() notify.Notifier {
	multi := notify.Multi{notify.Log{Logger: a.logger}}
	if a.cfg.Notify.Desktop && !a.opts.Ephemeral {
		multi = append(multi, notify.NewDesktop(Name, a.logger))
	}
	if a.opts.Notifier != nil {
		multi = append(multi, a.opts.Notifier)
	}
	return multi
}

// Start runs the reachability monitor and the engine's event loop until
// Close is called or ctx is done.
func (a *App) Start(ctx context.Context) {
	a.mustOpen()
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return
	}
	a.started = true

	ctx, a.cancel = context.WithCancel(ctx)
	transitions, unsubscribe := a.Monitor.Subscribe()

	a.wg.Add(3)
	go func() {
		defer a.wg.Done()
		a.Monitor.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		a.Engine.Run(ctx)
	}()
	go func() {
		defer a.wg.Done()
		defer unsubscribe()
		for {
			select {
			case <-ctx.Done():
				return
			case off, ok := <-transitions:
				if !ok {
					return
				}
				a.Engine.SetOffline(off)
				if off {
					notify.Warn(a.Notifier, "Offline", "Only downloaded songs can be played")
				} else {
					notify.Info(a.Notifier, "Back online", "Streaming is available again")
				}
			}
		}
	}()
}

// Close stops background work and releases every resource.
func (a *App) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.opened {
		return nil
	}
	if a.cancel != nil {
		a.cancel()
	}
	a.wg.Wait()
	a.unsubscribeQueue()
	a.Cache.Wait()

	var errs []error
	errs = append(errs, a.Engine.Close())
	errs = append(errs, a.Session.Close())
	errs = append(errs, a.Store.Close())
	a.opened = false
	a.started = false
	return apperrors.Join(errs...)
}

func (a *App) mustOpen() {
	a.mu.Lock()
	opened := a.opened
	a.mu.Unlock()
	if !opened {
		apperrors.Misuse("app used before Open")
	}
}
