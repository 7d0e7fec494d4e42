// Package playback drives the single audio output from the play queue and
// keeps playback state, the OS media session, and subscribers in sync.
package playback

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/tessro/encore/internal/audio"
	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
	"github.com/tessro/encore/internal/mediasession"
	"github.com/tessro/encore/internal/notify"
	"github.com/tessro/encore/internal/queue"
)

// Defaults.
const (
	DefaultRestartThreshold = 3 * time.Second
	DefaultSeekStep         = 10 * time.Second
)

// BlobSource returns cached audio for a song, or nil.
type BlobSource interface {
	GetBlob(ctx context.Context, id string) []byte
}

// OfflineState reports network reachability.
type OfflineState interface {
	IsOffline() bool
}

// History records and lists played songs.
type History interface {
	RecordPlay(song core.Song) error
	RecentlyPlayed() ([]core.HistoryEntry, error)
}

// Options configures an Engine. Output is required.
type Options struct {
	Output           audio.Output
	Session          mediasession.Session
	Notifier         notify.Notifier
	Cache            BlobSource
	Offline          OfflineState
	History          History
	Volume           float64
	RestartThreshold time.Duration
	SeekStep         time.Duration
	Logger           *slog.Logger
}

// Engine is the playback state machine. It is the only component that
// touches the audio output.
type Engine struct {
	mu    sync.Mutex
	queue *queue.Manager
	out   audio.Output

	session  mediasession.Session
	notifier notify.Notifier
	cache    BlobSource
	offline  OfflineState
	history  History
	logger   *slog.Logger

	restartThreshold time.Duration
	seekStep         time.Duration

	state core.PlaybackState

	// queueKey is the queue's current entry as of the last change seen;
	// loadedKey is the entry bound to the output. They differ after
	// PlaySong without replacing the queue.
	queueKey  string
	loadedKey string

	// gen is the output generation of the bound source. Events stamped
	// with any other generation belong to a source already replaced.
	gen uint64

	// autoplayNext asks the next bind to start playback. pendingStep is
	// cleared when a queue move results in a bind.
	autoplayNext bool
	pendingStep  bool

	// recordedKey is the last entry written to play history.
	recordedKey string

	// skipped counts entries passed over without any audio progress.
	skipped int

	subs    map[int]chan core.PlaybackState
	nextSub int

	unsubscribeQueue func()
}

// New creates an Engine bound to q. It panics when q or the output is
// missing.
func New(q *queue.Manager, opts Options) *Engine {
	if q == nil {
		apperrors.Misuse("playback engine without queue")
	}
	if opts.Output == nil {
		apperrors.Misuse("playback engine without audio output")
	}
	if opts.Session == nil {
		opts.Session = mediasession.Noop{}
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.RestartThreshold <= 0 {
		opts.RestartThreshold = DefaultRestartThreshold
	}
	if opts.SeekStep <= 0 {
		opts.SeekStep = DefaultSeekStep
	}

	e := &Engine{
		queue:            q,
		out:              opts.Output,
		session:          opts.Session,
		notifier:         opts.Notifier,
		cache:            opts.Cache,
		offline:          opts.Offline,
		history:          opts.History,
		logger:           opts.Logger.With("component", "playback"),
		restartThreshold: opts.RestartThreshold,
		seekStep:         opts.SeekStep,
		state:            core.PlaybackState{Volume: clampVolume(opts.Volume)},
		subs:             make(map[int]chan core.PlaybackState),
	}
	e.out.SetVolume(e.state.Volume)
	e.registerHandlers()
	e.unsubscribeQueue = q.Subscribe(e.onQueueChange)

	if cur := q.Current(); cur != nil {
		e.queueKey = cur.Key
		e.bind(*cur, false)
	}
	return e
}

// Queue returns the queue the engine follows.
func (e *Engine) Queue() *queue.Manager {
	return e.queue
}

// Close detaches the engine from the queue and releases the output.
func (e *Engine) Close() error {
	e.unsubscribeQueue()
	e.mu.Lock()
	for id, ch := range e.subs {
		close(ch)
		delete(e.subs, id)
	}
	e.mu.Unlock()
	return e.out.Close()
}

// Play starts or resumes playback of the current song. When nothing is
// loaded, the queue's current entry is loaded first.
func (e *Engine) Play(ctx context.Context) error {
	e.mu.Lock()
	if e.state.CurrentSong == nil {
		e.mu.Unlock()
		cur := e.queue.Current()
		if cur == nil {
			return apperrors.ErrQueueEmpty
		}
		e.mu.Lock()
		e.queueKey = cur.Key
		e.mu.Unlock()
		e.bind(*cur, true)
		return nil
	}
	err := e.playLocked()
	record := e.takeRecordLocked()
	st := e.state
	e.mu.Unlock()

	e.session.SetPlaybackState(statusOf(st))
	e.publish(st)
	e.record(record)
	return err
}

// playLocked asks the output to play. A rejected play is logged and leaves
// IsPlaying false.
func (e *Engine) playLocked() error {
	if err := e.out.Play(); err != nil {
		e.logger.Warn("play rejected", "error", err)
		e.state.IsPlaying = false
		return err
	}
	e.state.IsPlaying = true
	return nil
}

// Pause pauses playback.
func (e *Engine) Pause(ctx context.Context) error {
	e.mu.Lock()
	e.out.Pause()
	e.state.IsPlaying = false
	st := e.state
	e.mu.Unlock()

	e.session.SetPlaybackState(statusOf(st))
	e.publish(st)
	return nil
}

// TogglePlayPause pauses when playing and plays otherwise.
func (e *Engine) TogglePlayPause(ctx context.Context) error {
	e.mu.Lock()
	playing := e.state.IsPlaying
	e.mu.Unlock()
	if playing {
		return e.Pause(ctx)
	}
	return e.Play(ctx)
}

// Next moves to the next queue entry, wrapping at the end.
func (e *Engine) Next(ctx context.Context) error {
	e.mu.Lock()
	autoplay := e.state.IsPlaying
	e.mu.Unlock()
	return e.step(e.queue.Advance, autoplay)
}

// Previous restarts the current song when more than the restart threshold
// has played, and otherwise moves to the previous queue entry.
func (e *Engine) Previous(ctx context.Context) error {
	e.mu.Lock()
	restart := e.state.CurrentSong != nil && e.state.CurrentTime > e.restartThreshold
	autoplay := e.state.IsPlaying
	e.mu.Unlock()

	if restart {
		return e.SeekTo(ctx, 0)
	}
	return e.step(e.queue.Retreat, autoplay)
}

// step runs a queue move. When the move leaves the current entry unchanged
// (a single-entry queue) the entry is reloaded from the start.
func (e *Engine) step(move func() *core.QueueEntry, autoplay bool) error {
	e.mu.Lock()
	e.autoplayNext = autoplay
	e.pendingStep = true
	e.mu.Unlock()

	next := move()

	e.mu.Lock()
	pending := e.pendingStep
	e.pendingStep = false
	e.autoplayNext = false
	e.mu.Unlock()

	if next == nil {
		return apperrors.ErrQueueEmpty
	}
	if pending {
		e.bind(*next, autoplay)
	}
	return nil
}

// SeekTo moves to position, clamped to [0, duration]. The new position is
// reflected in state immediately.
func (e *Engine) SeekTo(ctx context.Context, position time.Duration) error {
	e.mu.Lock()
	position = max(0, min(position, e.state.Duration))
	e.out.SetCurrentTime(position)
	e.state.CurrentTime = position
	st := e.state
	e.mu.Unlock()

	e.publishPosition(st)
	e.publish(st)
	return nil
}

// SeekBy moves relative to the current position.
func (e *Engine) SeekBy(ctx context.Context, delta time.Duration) error {
	e.mu.Lock()
	target := e.state.CurrentTime + delta
	e.mu.Unlock()
	return e.SeekTo(ctx, target)
}

// SetVolume sets the volume, clamped to [0, 1].
func (e *Engine) SetVolume(ctx context.Context, volume float64) error {
	e.mu.Lock()
	e.state.Volume = clampVolume(volume)
	e.out.SetVolume(e.state.Volume)
	st := e.state
	e.mu.Unlock()

	e.session.SetVolume(st.Volume)
	e.publish(st)
	return nil
}

// PlaySong plays song. With replaceQueue the queue becomes just song.
// Otherwise song is appended and played while the queue's current index
// stays where it was.
func (e *Engine) PlaySong(ctx context.Context, song core.Song, replaceQueue bool) error {
	e.mu.Lock()
	e.autoplayNext = true
	e.mu.Unlock()

	if replaceQueue {
		e.queue.SetQueue([]core.Song{song}, 0)
	} else {
		e.queue.Append(song)
	}

	e.mu.Lock()
	e.autoplayNext = false
	loaded := e.loadedKey
	e.mu.Unlock()

	if replaceQueue {
		return nil
	}
	q := e.queue.Snapshot()
	if len(q.Entries) == 0 {
		return apperrors.ErrQueueEmpty
	}
	last := q.Entries[len(q.Entries)-1]
	if last.Key != loaded {
		e.bind(last, true)
	}
	return nil
}

// Stop unloads the output without changing the queue.
func (e *Engine) Stop() {
	e.mu.Lock()
	e.gen = e.out.SetSource(audio.Source{})
	e.state.IsPlaying = false
	e.state.CurrentTime = 0
	st := e.state
	e.mu.Unlock()

	e.session.SetPlaybackState(mediasession.StatusPaused)
	e.publish(st)
}

// SetOffline records a reachability transition in the published state.
func (e *Engine) SetOffline(offline bool) {
	e.mu.Lock()
	if e.state.Offline == offline {
		e.mu.Unlock()
		return
	}
	e.state.Offline = offline
	st := e.state
	e.mu.Unlock()
	e.publish(st)
}

// GetState returns a copy of the playback state.
func (e *Engine) GetState(ctx context.Context) (*core.PlaybackState, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	st := e.state
	return &st, nil
}

// GetQueue returns a copy of the queue.
func (e *Engine) GetQueue(ctx context.Context) (*core.Queue, error) {
	q := e.queue.Snapshot()
	return &q, nil
}

// GetRecentlyPlayed returns up to limit recently played songs.
func (e *Engine) GetRecentlyPlayed(ctx context.Context, limit int) ([]core.HistoryEntry, error) {
	if e.history == nil {
		return nil, nil
	}
	entries, err := e.history.RecentlyPlayed()
	if err != nil {
		return nil, err
	}
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Subscribe returns a channel that receives the latest state after every
// change, and a function that cancels the subscription. Only the most recent
// state is kept for slow receivers.
func (e *Engine) Subscribe() (<-chan core.PlaybackState, func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	id := e.nextSub
	e.nextSub++
	ch := make(chan core.PlaybackState, 1)
	e.subs[id] = ch
	return ch, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if _, ok := e.subs[id]; ok {
			delete(e.subs, id)
			close(ch)
		}
	}
}

func (e *Engine) publish(st core.PlaybackState) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ch := range e.subs {
		select {
		case <-ch:
		default:
		}
		ch <- st
	}
}

// takeRecordLocked returns the playing song when it has not been written to
// history yet.
func (e *Engine) takeRecordLocked() *core.Song {
	if !e.state.IsPlaying || e.state.CurrentSong == nil || e.loadedKey == e.recordedKey {
		return nil
	}
	e.recordedKey = e.loadedKey
	return e.state.CurrentSong
}

func (e *Engine) record(song *core.Song) {
	if song == nil || e.history == nil {
		return
	}
	if err := e.history.RecordPlay(*song); err != nil {
		e.logger.Warn("failed to record play", "id", song.ID, "error", err)
	}
}

func clampVolume(v float64) float64 {
	return max(0, min(v, 1))
}

var _ core.Player = (*Engine)(nil)
