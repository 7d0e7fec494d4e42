//go:build cgo

package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"math"
	"net/http"
	"sync"
	"time"

	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/effects"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/speaker"
)

// Available indicates whether speaker output is supported in this build.
const Available = true

// loadTimeout bounds fetching a remote source.
const loadTimeout = 2 * time.Minute

var (
	speakerOnce sync.Once
	speakerErr  error
)

const sampleRate = beep.SampleRate(44100)

func initSpeaker() error {
	speakerOnce.Do(func() {
		speakerErr = speaker.Init(sampleRate, sampleRate.N(time.Second/10))
	})
	return speakerErr
}

// Speaker plays MP3 sources through the system audio device.
type Speaker struct {
	emitter

	mu       sync.Mutex
	client   *http.Client
	gen      uint64
	src      Source
	loading  bool
	wantPlay bool
	playing  bool
	streamer beep.StreamSeekCloser
	format   beep.Format
	ctrl     *beep.Ctrl
	volume   *effects.Volume
	vol      float64
	stopTick chan struct{}
	closed   bool
}

// NewSpeaker initializes the audio device and returns a Speaker.
func NewSpeaker() (*Speaker, error) {
	if err := initSpeaker(); err != nil {
		return nil, fmt.Errorf("failed to initialize speaker: %w", err)
	}
	return &Speaker{
		emitter: newEmitter(),
		client:  &http.Client{Timeout: loadTimeout},
		vol:     1,
	}, nil
}

func (s *Speaker) Events() <-chan Event {
	return s.ch
}

// SetSource unloads the current stream and starts loading src in the
// background. A durationchange event follows once it is decoded.
func (s *Speaker) SetSource(src Source) uint64 {
	s.mu.Lock()
	s.gen++
	s.unloadLocked()
	s.src = src
	s.wantPlay = false
	gen := s.gen
	if src.IsZero() {
		s.mu.Unlock()
		return gen
	}
	s.loading = true
	s.mu.Unlock()

	go s.load(gen, src)
	return gen
}

func (s *Speaker) load(gen uint64, src Source) {
	data := src.Blob
	if data == nil {
		body, err := s.fetch(src.URL)
		if err != nil {
			s.fail(gen, MediaErrNetwork, err)
			return
		}
		data = body
	}

	streamer, format, err := mp3.Decode(io.NopCloser(bytes.NewReader(data)))
	if err != nil {
		s.fail(gen, MediaErrDecode, err)
		return
	}

	s.mu.Lock()
	if gen != s.gen || s.closed {
		s.mu.Unlock()
		streamer.Close()
		return
	}
	s.streamer = streamer
	s.format = format
	s.loading = false
	s.ctrl = &beep.Ctrl{Streamer: beep.Resample(4, format.SampleRate, sampleRate, streamer), Paused: true}
	s.volume = &effects.Volume{Streamer: s.ctrl, Base: 2}
	applyVolume(s.volume, s.vol)
	want := s.wantPlay
	dur := format.SampleRate.D(streamer.Len())
	s.mu.Unlock()

	speaker.Play(beep.Seq(s.volume, beep.Callback(func() {
		// Runs on the speaker goroutine with the speaker lock held.
		go s.finished(gen)
	})))

	s.emit(Event{Type: EventDurationChange, Gen: gen, Duration: dur})
	if want {
		if err := s.Play(); err != nil {
			s.fail(gen, MediaErrDecode, err)
		}
	}
}

func (s *Speaker) fetch(url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(context.Background(), loadTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

func (s *Speaker) fail(gen uint64, code MediaErrorCode, err error) {
	s.mu.Lock()
	if gen != s.gen {
		s.mu.Unlock()
		return
	}
	s.loading = false
	s.wantPlay = false
	s.stopTickerLocked()
	s.playing = false
	s.mu.Unlock()
	s.emit(Event{Type: EventError, Gen: gen, Code: code, Err: err})
}

func (s *Speaker) finished(gen uint64) {
	s.mu.Lock()
	if gen != s.gen || s.streamer == nil {
		s.mu.Unlock()
		return
	}
	s.playing = false
	s.stopTickerLocked()
	dur := s.durationLocked()
	s.mu.Unlock()
	s.emit(Event{Type: EventEnded, Gen: gen, Time: dur, Duration: dur})
}

// Play starts playback. While a source is still loading, playback starts as
// soon as it is decoded.
func (s *Speaker) Play() error {
	s.mu.Lock()
	if s.src.IsZero() {
		s.mu.Unlock()
		return ErrNoSource
	}
	if s.loading {
		s.wantPlay = true
		s.mu.Unlock()
		return nil
	}
	if s.ctrl == nil {
		s.mu.Unlock()
		return fmt.Errorf("source failed to load")
	}
	if s.playing {
		s.mu.Unlock()
		return nil
	}

	speaker.Lock()
	s.ctrl.Paused = false
	speaker.Unlock()

	s.playing = true
	stop := make(chan struct{})
	s.stopTick = stop
	pos, dur := s.positionLocked(), s.durationLocked()
	gen := s.gen
	s.mu.Unlock()

	go s.tick(gen, stop)
	s.emit(Event{Type: EventPlay, Gen: gen, Time: pos, Duration: dur})
	return nil
}

func (s *Speaker) Pause() {
	s.mu.Lock()
	s.wantPlay = false
	if !s.playing || s.ctrl == nil {
		s.mu.Unlock()
		return
	}
	speaker.Lock()
	s.ctrl.Paused = true
	speaker.Unlock()
	s.playing = false
	s.stopTickerLocked()
	gen, pos, dur := s.gen, s.positionLocked(), s.durationLocked()
	s.mu.Unlock()
	s.emit(Event{Type: EventPause, Gen: gen, Time: pos, Duration: dur})
}

func (s *Speaker) SetCurrentTime(d time.Duration) {
	s.mu.Lock()
	if s.streamer == nil {
		s.mu.Unlock()
		return
	}
	n := s.format.SampleRate.N(d)
	n = max(0, min(n, s.streamer.Len()-1))
	speaker.Lock()
	err := s.streamer.Seek(n)
	speaker.Unlock()
	gen, pos, dur := s.gen, s.positionLocked(), s.durationLocked()
	s.mu.Unlock()

	if err != nil {
		s.emit(Event{Type: EventError, Gen: gen, Code: MediaErrDecode, Err: err})
		return
	}
	s.emit(Event{Type: EventTimeUpdate, Gen: gen, Time: pos, Duration: dur})
}

func (s *Speaker) SetVolume(v float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vol = v
	if s.volume != nil {
		speaker.Lock()
		applyVolume(s.volume, v)
		speaker.Unlock()
	}
}

// applyVolume maps a linear 0..1 volume onto a base-2 gain.
func applyVolume(vol *effects.Volume, v float64) {
	if v <= 0 {
		vol.Silent = true
		return
	}
	vol.Silent = false
	vol.Volume = math.Log2(v)
}

func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.gen++
	s.unloadLocked()
	close(s.done)
	return nil
}

// unloadLocked stops playback and releases the decoded stream.
func (s *Speaker) unloadLocked() {
	s.stopTickerLocked()
	s.playing = false
	s.loading = false
	if s.ctrl != nil {
		speaker.Clear()
	}
	if s.streamer != nil {
		s.streamer.Close()
	}
	s.streamer = nil
	s.ctrl = nil
	s.volume = nil
}

func (s *Speaker) stopTickerLocked() {
	if s.stopTick != nil {
		close(s.stopTick)
		s.stopTick = nil
	}
}

func (s *Speaker) positionLocked() time.Duration {
	if s.streamer == nil {
		return 0
	}
	speaker.Lock()
	pos := s.streamer.Position()
	speaker.Unlock()
	return s.format.SampleRate.D(pos)
}

func (s *Speaker) durationLocked() time.Duration {
	if s.streamer == nil {
		return 0
	}
	return s.format.SampleRate.D(s.streamer.Len())
}

func (s *Speaker) tick(gen uint64, stop chan struct{}) {
	ticker := time.NewTicker(DefaultTickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
		}
		s.mu.Lock()
		if gen != s.gen {
			s.mu.Unlock()
			return
		}
		pos, dur := s.positionLocked(), s.durationLocked()
		s.mu.Unlock()
		s.emit(Event{Type: EventTimeUpdate, Gen: gen, Time: pos, Duration: dur})
	}
}
