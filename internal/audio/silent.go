package audio

import (
	"sync"
	"time"
)

// DefaultTickInterval is how often time updates are emitted while playing.
const DefaultTickInterval = 250 * time.Millisecond

// Silent is an Output that produces no sound but keeps a clock, so queue
// traversal and time updates behave as with real audio. The duration comes
// from the Source hint; with no hint the song never ends on its own.
type Silent struct {
	emitter

	mu       sync.Mutex
	gen      uint64
	src      Source
	playing  bool
	pos      time.Duration
	dur      time.Duration
	started  time.Time
	stopTick chan struct{}
	closed   bool

	// TickInterval overrides DefaultTickInterval when set before Play.
	TickInterval time.Duration
	// Now returns the current time. Tests replace it.
	Now func() time.Time
}

// NewSilent creates a Silent output.
func NewSilent() *Silent {
	return &Silent{emitter: newEmitter(), Now: time.Now}
}

func (s *Silent) Events() <-chan Event {
	return s.ch
}

func (s *Silent) SetSource(src Source) uint64 {
	s.mu.Lock()
	s.stopLocked()
	s.gen++
	s.src = src
	s.pos = 0
	s.dur = src.Duration
	gen, dur := s.gen, s.dur
	s.mu.Unlock()

	if !src.IsZero() {
		s.emit(Event{Type: EventDurationChange, Gen: gen, Duration: dur})
	}
	return gen
}

func (s *Silent) Play() error {
	s.mu.Lock()
	if s.src.IsZero() {
		s.mu.Unlock()
		return ErrNoSource
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}
	s.playing = true
	s.started = s.Now()
	interval := s.TickInterval
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	stop := make(chan struct{})
	s.stopTick = stop
	gen, pos, dur := s.gen, s.pos, s.dur
	s.mu.Unlock()

	go s.tick(stop, interval)
	s.emit(Event{Type: EventPlay, Gen: gen, Time: pos, Duration: dur})
	return nil
}

func (s *Silent) Pause() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.stopLocked()
	gen, pos, dur := s.gen, s.pos, s.dur
	s.mu.Unlock()
	s.emit(Event{Type: EventPause, Gen: gen, Time: pos, Duration: dur})
}

func (s *Silent) SetCurrentTime(d time.Duration) {
	s.mu.Lock()
	if d < 0 {
		d = 0
	}
	if s.dur > 0 && d > s.dur {
		d = s.dur
	}
	s.pos = d
	s.started = s.Now()
	gen, dur := s.gen, s.dur
	s.mu.Unlock()
	s.emit(Event{Type: EventTimeUpdate, Gen: gen, Time: d, Duration: dur})
}

// SetVolume is accepted and ignored.
func (s *Silent) SetVolume(float64) {}

func (s *Silent) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.stopLocked()
	close(s.done)
	return nil
}

// Position returns the clock position.
func (s *Silent) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.positionLocked()
}

func (s *Silent) positionLocked() time.Duration {
	if !s.playing {
		return s.pos
	}
	return s.pos + s.Now().Sub(s.started)
}

// stopLocked freezes the clock and stops the ticker.
func (s *Silent) stopLocked() {
	if s.playing {
		s.pos = s.positionLocked()
	}
	s.playing = false
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

func (s *Silent) tick(stop chan struct{}, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}

		s.mu.Lock()
		if s.stopTick != stop {
			s.mu.Unlock()
			return
		}
		gen, pos, dur := s.gen, s.positionLocked(), s.dur
		ended := dur > 0 && pos >= dur
		if ended {
			s.pos = dur
			s.playing = false
			close(s.stopTick)
			s.stopTick = nil
		}
		s.mu.Unlock()

		if ended {
			s.emit(Event{Type: EventTimeUpdate, Gen: gen, Time: dur, Duration: dur})
			s.emit(Event{Type: EventEnded, Gen: gen, Time: dur, Duration: dur})
			return
		}
		s.emit(Event{Type: EventTimeUpdate, Gen: gen, Time: pos, Duration: dur})
	}
}
