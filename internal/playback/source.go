package playback

import (
	"context"
	"fmt"

	"github.com/tessro/encore/internal/audio"
	"github.com/tessro/encore/internal/core"
	"github.com/tessro/encore/internal/mediasession"
	"github.com/tessro/encore/internal/notify"
	"github.com/tessro/encore/internal/queue"
)

// onQueueChange loads the queue's current entry whenever it changes.
func (e *Engine) onQueueChange(ch queue.Change) {
	e.mu.Lock()
	if ch.Current == nil {
		e.unloadLocked()
		st := e.state
		e.mu.Unlock()

		e.session.SetMetadata(nil)
		e.session.SetPlaybackState(mediasession.StatusNone)
		e.publish(st)
		return
	}
	if ch.Current.Key == e.queueKey {
		e.mu.Unlock()
		return
	}
	e.queueKey = ch.Current.Key
	e.pendingStep = false
	autoplay := e.state.IsPlaying || e.autoplayNext
	e.autoplayNext = false
	e.mu.Unlock()

	e.bind(*ch.Current, autoplay)
}

func (e *Engine) unloadLocked() {
	if e.state.CurrentSong != nil {
		e.gen = e.out.SetSource(audio.Source{})
	}
	e.queueKey, e.loadedKey = "", ""
	e.skipped = 0
	e.state.CurrentSong = nil
	e.state.IsPlaying = false
	e.state.CurrentTime = 0
	e.state.Duration = 0
	e.state.FromCache = false
}

// bind selects a source for entry and hands it to the output. Cached audio
// wins. Offline without a cached copy the entry is skipped, at most once
// around the queue. Otherwise the remote stream is used.
func (e *Engine) bind(entry core.QueueEntry, autoplay bool) {
	song := entry.Song
	var blob []byte
	if e.cache != nil {
		blob = e.cache.GetBlob(context.Background(), song.ID)
	}
	offline := e.offline != nil && e.offline.IsOffline()

	e.mu.Lock()
	e.loadedKey = entry.Key
	e.state.CurrentSong = song.Clone()
	e.state.CurrentTime = 0
	e.state.Duration = song.Length()
	e.state.FromCache = blob != nil
	e.state.Offline = offline

	var src audio.Source
	switch {
	case blob != nil:
		src = audio.Source{Blob: blob, Duration: song.Length()}
	case offline:
		e.skipUnavailableLocked(song, autoplay)
		return
	default:
		url := song.BestDownloadURL()
		if url == "" {
			e.gen = e.out.SetSource(audio.Source{})
			e.state.IsPlaying = false
			st := e.state
			e.mu.Unlock()

			e.logger.Warn("song has no stream", "id", song.ID)
			notify.Warn(e.notifier, "Can't play", fmt.Sprintf("%q has no playable stream", song.Name))
			e.announce(st)
			return
		}
		src = audio.Source{URL: url, Duration: song.Length()}
	}

	if blob != nil {
		e.skipped = 0
	}
	e.gen = e.out.SetSource(src)
	e.state.IsPlaying = false
	if autoplay {
		_ = e.playLocked()
	}
	e.recordedKey = ""
	record := e.takeRecordLocked()
	st := e.state
	e.mu.Unlock()

	e.logger.Debug("loaded song", "id", song.ID, "cached", st.FromCache)
	e.announce(st)
	e.record(record)
}

// skipUnavailableLocked moves past an entry that cannot be played. It
// releases e.mu.
func (e *Engine) skipUnavailableLocked(song core.Song, autoplay bool) {
	e.gen = e.out.SetSource(audio.Source{})
	e.state.IsPlaying = false
	e.skipped++
	exhausted := e.skipped >= e.queue.Len()
	if exhausted {
		e.skipped = 0
	} else {
		e.autoplayNext = autoplay
		e.pendingStep = true
	}
	st := e.state
	e.mu.Unlock()

	e.logger.Info("skipping unavailable song", "id", song.ID)
	notify.Warn(e.notifier, "Not available offline", fmt.Sprintf("Skipped %q", song.Name))
	e.announce(st)
	if exhausted {
		notify.Warn(e.notifier, "Offline", "No songs in the queue are available offline")
		return
	}

	next := e.queue.Advance()

	e.mu.Lock()
	pending := e.pendingStep
	e.pendingStep = false
	e.autoplayNext = false
	e.mu.Unlock()
	if next != nil && pending {
		e.bind(*next, autoplay)
	}
}
