// Package mediasession publishes now-playing information to the operating
// system and routes its media keys back to the player.
package mediasession

import (
	"sync"
	"time"
)

// Action names a media control the OS can invoke.
type Action string

const (
	ActionPlay          Action = "play"
	ActionPause         Action = "pause"
	ActionPreviousTrack Action = "previoustrack"
	ActionNextTrack     Action = "nexttrack"
	ActionSeekTo        Action = "seekto"
	ActionSeekBackward  Action = "seekbackward"
	ActionSeekForward   Action = "seekforward"
	ActionSetVolume     Action = "setvolume"
)

// Actions lists every action a player registers.
var Actions = []Action{
	ActionPlay, ActionPause, ActionPreviousTrack, ActionNextTrack,
	ActionSeekTo, ActionSeekBackward, ActionSeekForward, ActionSetVolume,
}

// ActionDetails accompanies an action. SeekTime is set for seekto and
// SeekOffset for the relative seeks; a zero offset means the default step.
// Volume is set for setvolume, from 0 to 1.
type ActionDetails struct {
	Action     Action
	SeekTime   time.Duration
	SeekOffset time.Duration
	Volume     float64
}

// Handler runs when the OS invokes an action.
type Handler func(ActionDetails)

// Artwork is one image variant.
type Artwork struct {
	Src   string `json:"src"`
	Sizes string `json:"sizes"`
	Type  string `json:"type"`
}

// Metadata describes the current song.
type Metadata struct {
	TrackID string
	Title   string
	Artist  string
	Album   string
	Length  time.Duration
	Artwork []Artwork
}

// PositionState drives the OS scrubber.
type PositionState struct {
	Duration     time.Duration
	PlaybackRate float64
	Position     time.Duration
}

// PlaybackStatus is the coarse player state shown by the OS.
type PlaybackStatus string

const (
	StatusNone    PlaybackStatus = "none"
	StatusPlaying PlaybackStatus = "playing"
	StatusPaused  PlaybackStatus = "paused"
)

// Session is the OS media session.
type Session interface {
	SetMetadata(md *Metadata)
	// SetActionHandler registers h for a; a nil h removes the handler.
	SetActionHandler(a Action, h Handler)
	SetPositionState(ps PositionState)
	SetPlaybackState(status PlaybackStatus)
	SetVolume(v float64)
	Close() error
}

// handlers is a concurrency-safe action table shared by implementations.
type handlers struct {
	mu sync.RWMutex
	m  map[Action]Handler
}

func (h *handlers) set(a Action, fn Handler) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.m == nil {
		h.m = make(map[Action]Handler)
	}
	if fn == nil {
		delete(h.m, a)
		return
	}
	h.m[a] = fn
}

// invoke runs the handler for d.Action and reports whether one was registered.
func (h *handlers) invoke(d ActionDetails) bool {
	h.mu.RLock()
	fn, ok := h.m[d.Action]
	h.mu.RUnlock()
	if !ok {
		return false
	}
	fn(d)
	return true
}

// Noop discards everything.
type Noop struct{}

func (Noop) SetMetadata(*Metadata)            {}
func (Noop) SetActionHandler(Action, Handler) {}
func (Noop) SetPositionState(PositionState)   {}
func (Noop) SetPlaybackState(PlaybackStatus)  {}
func (Noop) SetVolume(float64)                {}
func (Noop) Close() error                     { return nil }

// Recorder keeps the last published values in memory and lets callers
// invoke actions directly. It backs the TUI key bindings and tests.
type Recorder struct {
	handlers

	mu       sync.Mutex
	metadata *Metadata
	position PositionState
	status   PlaybackStatus
	volume   float64
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{status: StatusNone}
}

func (r *Recorder) SetMetadata(md *Metadata) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.metadata = md
}

func (r *Recorder) SetActionHandler(a Action, h Handler) {
	r.set(a, h)
}

func (r *Recorder) SetPositionState(ps PositionState) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.position = ps
}

func (r *Recorder) SetPlaybackState(status PlaybackStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.status = status
}

func (r *Recorder) SetVolume(v float64) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.volume = v
}

func (r *Recorder) Close() error { return nil }

// Metadata returns the last published metadata.
func (r *Recorder) Metadata() *Metadata {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.metadata
}

// Position returns the last published position state.
func (r *Recorder) Position() PositionState {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.position
}

// Status returns the last published playback status.
func (r *Recorder) Status() PlaybackStatus {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// Volume returns the last published volume.
func (r *Recorder) Volume() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.volume
}

// Invoke runs the handler registered for d.Action.
func (r *Recorder) Invoke(d ActionDetails) bool {
	return r.invoke(d)
}

// Multi fans every call out to several sessions. Invocations arrive from
// whichever session the OS uses.
type Multi []Session

func (m Multi) SetMetadata(md *Metadata) {
	for _, s := range m {
		s.SetMetadata(md)
	}
}

func (m Multi) SetActionHandler(a Action, h Handler) {
	for _, s := range m {
		s.SetActionHandler(a, h)
	}
}

func (m Multi) SetPositionState(ps PositionState) {
	for _, s := range m {
		s.SetPositionState(ps)
	}
}

func (m Multi) SetPlaybackState(status PlaybackStatus) {
	for _, s := range m {
		s.SetPlaybackState(status)
	}
}

func (m Multi) SetVolume(v float64) {
	for _, s := range m {
		s.SetVolume(v)
	}
}

func (m Multi) Close() error {
	var first error
	for _, s := range m {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}
