// Package audio is the single audio output the playback engine drives.
package audio

import (
	"errors"
	"fmt"
	"time"
)

// EventType names an output event.
type EventType string

const (
	EventTimeUpdate     EventType = "timeupdate"
	EventDurationChange EventType = "durationchange"
	EventPlay           EventType = "play"
	EventPause          EventType = "pause"
	EventEnded          EventType = "ended"
	EventError          EventType = "error"
)

// MediaErrorCode classifies an error event.
type MediaErrorCode int

const (
	MediaErrAborted         MediaErrorCode = 1
	MediaErrNetwork         MediaErrorCode = 2
	MediaErrDecode          MediaErrorCode = 3
	MediaErrSrcNotSupported MediaErrorCode = 4
)

func (c MediaErrorCode) String() string {
	switch c {
	case MediaErrAborted:
		return "MEDIA_ERR_ABORTED"
	case MediaErrNetwork:
		return "MEDIA_ERR_NETWORK"
	case MediaErrDecode:
		return "MEDIA_ERR_DECODE"
	case MediaErrSrcNotSupported:
		return "MEDIA_ERR_SRC_NOT_SUPPORTED"
	default:
		return fmt.Sprintf("MEDIA_ERR_%d", int(c))
	}
}

// Event is emitted by an Output. Time and Duration are the output's view at
// the moment of the event. Gen is the generation SetSource returned for the
// source the event belongs to; events still queued from an earlier source
// carry an older Gen.
type Event struct {
	Type     EventType
	Gen      uint64
	Time     time.Duration
	Duration time.Duration
	Code     MediaErrorCode
	Err      error
}

// Source is what an Output plays: in-memory bytes or a remote URL. Duration
// is an optional hint used before the stream has been decoded.
type Source struct {
	Blob     []byte
	URL      string
	Duration time.Duration
}

// IsZero reports whether the source is empty.
func (s Source) IsZero() bool {
	return s.Blob == nil && s.URL == ""
}

// ErrNoSource is returned by Play when no source is set.
var ErrNoSource = errors.New("no audio source")

// ErrUnavailable is returned when audio output is not supported by the build.
var ErrUnavailable = errors.New("audio output unavailable in this build")

// Output is a single audio element. Only the playback engine calls it.
// Methods never block on event delivery.
type Output interface {
	// SetSource replaces the source and returns its generation, which is
	// stamped on every event emitted for it. A zero Source unloads the
	// output.
	SetSource(src Source) uint64
	Play() error
	Pause()
	SetCurrentTime(d time.Duration)
	SetVolume(v float64)
	Events() <-chan Event
	Close() error
}

// New returns a speaker output when enabled and supported, otherwise a
// silent output that keeps time without producing sound.
func New(enabled bool) Output {
	if enabled && Available {
		if out, err := NewSpeaker(); err == nil {
			return out
		}
	}
	return NewSilent()
}

// emitter delivers events without blocking the caller. Time updates are
// dropped when the buffer is full; other events are handed to a goroutine.
type emitter struct {
	ch   chan Event
	done chan struct{}
}

func newEmitter() emitter {
	return emitter{ch: make(chan Event, 64), done: make(chan struct{})}
}

func (e emitter) emit(ev Event) {
	select {
	case e.ch <- ev:
		return
	case <-e.done:
		return
	default:
	}
	if ev.Type == EventTimeUpdate {
		return
	}
	go func() {
		select {
		case e.ch <- ev:
		case <-e.done:
		}
	}()
}
