package playback

import (
	"context"
	"fmt"

	"github.com/tessro/encore/internal/audio"
	"github.com/tessro/encore/internal/core"
	"github.com/tessro/encore/internal/mediasession"
	"github.com/tessro/encore/internal/notify"
)

// Run consumes output events until ctx is done.
func (e *Engine) Run(ctx context.Context) {
	events := e.out.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			e.HandleEvent(ev)
		}
	}
}

// HandleEvent folds one output event into the playback state. Events from a
// source that has since been replaced are dropped.
func (e *Engine) HandleEvent(ev audio.Event) {
	e.mu.Lock()
	stale := ev.Gen != e.gen
	e.mu.Unlock()
	if stale {
		e.logger.Debug("dropping stale output event", "type", string(ev.Type), "gen", ev.Gen)
		return
	}

	switch ev.Type {
	case audio.EventTimeUpdate:
		e.mu.Lock()
		e.state.CurrentTime = ev.Time
		if ev.Time > 0 {
			e.skipped = 0
		}
		if ev.Duration > 0 {
			e.state.Duration = ev.Duration
		}
		st := e.state
		e.mu.Unlock()
		e.publishPosition(st)
		e.publish(st)

	case audio.EventDurationChange:
		e.mu.Lock()
		if ev.Duration > 0 {
			e.state.Duration = ev.Duration
		}
		st := e.state
		e.mu.Unlock()
		e.publishPosition(st)
		e.publish(st)

	case audio.EventPlay:
		e.setPlaying(true)

	case audio.EventPause:
		e.setPlaying(false)

	case audio.EventEnded:
		e.mu.Lock()
		e.state.IsPlaying = false
		e.state.CurrentTime = e.state.Duration
		key := e.queueKey
		e.mu.Unlock()
		if err := e.step(e.advanceFrom(key), true); err != nil {
			e.logger.Debug("nothing to advance to", "error", err)
		}

	case audio.EventError:
		e.handleError(ev)
	}
}

func (e *Engine) setPlaying(playing bool) {
	e.mu.Lock()
	if e.state.IsPlaying == playing {
		e.mu.Unlock()
		return
	}
	e.state.IsPlaying = playing
	st := e.state
	e.mu.Unlock()

	e.session.SetPlaybackState(statusOf(st))
	e.publish(st)
}

// handleError resets position and stops. A network failure on a remote
// stream moves on to the next entry, bounded by one pass over the queue.
func (e *Engine) handleError(ev audio.Event) {
	e.mu.Lock()
	e.state.CurrentTime = 0
	e.state.Duration = 0
	e.state.IsPlaying = false
	song := e.state.CurrentSong
	key := e.queueKey
	skip := ev.Code == audio.MediaErrNetwork && !e.state.FromCache
	if skip {
		e.skipped++
		if e.skipped >= e.queue.Len() {
			e.skipped = 0
			skip = false
		}
	}
	st := e.state
	e.mu.Unlock()

	name := ""
	if song != nil {
		name = song.Name
	}
	e.logger.Error("playback error", "code", ev.Code.String(), "song", name, "error", ev.Err)
	notify.Warn(e.notifier, "Playback failed", fmt.Sprintf("Could not play %q", name))

	e.session.SetPlaybackState(mediasession.StatusPaused)
	e.publishPosition(st)
	e.publish(st)

	if skip {
		if err := e.step(e.advanceFrom(key), true); err != nil {
			e.logger.Debug("nothing to skip to", "error", err)
		}
	}
}

// advanceFrom returns a queue move that advances only while key is still the
// queue's current entry, so an end or failure that races a user skip does not
// skip twice.
func (e *Engine) advanceFrom(key string) func() *core.QueueEntry {
	return func() *core.QueueEntry { return e.queue.AdvanceFrom(key) }
}

func statusOf(st core.PlaybackState) mediasession.PlaybackStatus {
	switch {
	case st.CurrentSong == nil:
		return mediasession.StatusNone
	case st.IsPlaying:
		return mediasession.StatusPlaying
	default:
		return mediasession.StatusPaused
	}
}
