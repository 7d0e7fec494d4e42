// Package tail turns playback state changes into a stream of events.
package tail

import (
	"context"
	"time"

	"github.com/tessro/encore/internal/core"
)

// EventType represents the type of playback event.
type EventType int

const (
	EventSongChange EventType = iota
	EventSongComplete
	EventSongSkip
	EventPause
	EventResume
	EventVolumeChange
	EventNetworkChange
	EventStop
)

// Event represents a playback state change.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Previous  *core.PlaybackState
	Current   *core.PlaybackState
}

// StateSource publishes playback state after every change.
type StateSource interface {
	Subscribe() (<-chan core.PlaybackState, func())
	GetState(ctx context.Context) (*core.PlaybackState, error)
}

// Watcher follows a StateSource and emits events.
type Watcher struct {
	source StateSource
	events chan Event
	done   chan struct{}

	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// NewWatcher creates a new state watcher.
func NewWatcher(source StateSource) *Watcher {
	return &Watcher{
		source: source,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
		Now:    time.Now,
	}
}

// Events returns the channel of playback events.
func (w *Watcher) Events() <-chan Event {
	return w.events
}

// Start follows state changes until ctx is done, Stop is called, or the
// source closes its subscription. The current song, if any, is reported
// first.
func (w *Watcher) Start(ctx context.Context) error {
	defer close(w.events)

	states, cancel := w.source.Subscribe()
	defer cancel()

	var prev *core.PlaybackState
	if state, err := w.source.GetState(ctx); err == nil {
		w.emit(w.diff(nil, state))
		prev = state
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-w.done:
			return nil
		case st, ok := <-states:
			if !ok {
				return nil
			}
			curr := st
			w.emit(w.diff(prev, &curr))
			prev = &curr
		}
	}
}

func (w *Watcher) emit(events []Event) {
	for _, e := range events {
		select {
		case w.events <- e:
		default:
			// Drop event if channel is full
		}
	}
}

// Stop stops the watcher.
func (w *Watcher) Stop() {
	close(w.done)
}

func (w *Watcher) diff(prev, curr *core.PlaybackState) []Event {
	return diffStates(prev, curr, w.Now())
}

// diffStates compares two states and returns detected events.
func diffStates(prev, curr *core.PlaybackState, now time.Time) []Event {
	if curr == nil {
		return nil
	}

	// First state - no previous state
	if prev == nil {
		if curr.HasSong() {
			return []Event{{Type: EventSongChange, Timestamp: now, Current: curr}}
		}
		return nil
	}

	var events []Event
	add := func(t EventType) {
		events = append(events, Event{Type: t, Timestamp: now, Previous: prev, Current: curr})
	}

	if songChanged(prev, curr) {
		switch {
		case !curr.HasSong():
			add(EventStop)
		case prev.HasSong() && wasCompleted(prev):
			add(EventSongComplete)
			add(EventSongChange)
		case prev.HasSong():
			add(EventSongSkip)
			add(EventSongChange)
		default:
			add(EventSongChange)
		}
	} else if prev.IsPlaying && !curr.IsPlaying {
		add(EventPause)
	} else if !prev.IsPlaying && curr.IsPlaying && curr.CurrentTime > 0 {
		add(EventResume)
	}

	if prev.Volume != curr.Volume {
		add(EventVolumeChange)
	}
	if prev.Offline != curr.Offline {
		add(EventNetworkChange)
	}

	return events
}

// songChanged returns true if the song changed.
func songChanged(prev, curr *core.PlaybackState) bool {
	if prev.CurrentSong == nil && curr.CurrentSong == nil {
		return false
	}
	if prev.CurrentSong == nil || curr.CurrentSong == nil {
		return true
	}
	return prev.CurrentSong.ID != curr.CurrentSong.ID
}

// wasCompleted returns true if the song likely finished naturally.
func wasCompleted(state *core.PlaybackState) bool {
	if state.Duration == 0 {
		return false
	}
	// Consider completed if progress is >= 95% of duration
	return float64(state.CurrentTime) >= float64(state.Duration)*0.95
}
