package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/tessro/encore/internal/audio"
	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
	"github.com/tessro/encore/internal/mediasession"
	"github.com/tessro/encore/internal/notify"
	"github.com/tessro/encore/internal/queue"
)

type fakeOutput struct {
	mu      sync.Mutex
	gen     uint64
	src     audio.Source
	playing bool
	pos     time.Duration
	volume  float64
	playErr error
	loads   int
	events  chan audio.Event
}

func newFakeOutput() *fakeOutput {
	return &fakeOutput{events: make(chan audio.Event, 16)}
}

func (f *fakeOutput) SetSource(src audio.Source) uint64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gen++
	f.src = src
	f.playing = false
	f.pos = 0
	if !src.IsZero() {
		f.loads++
	}
	return f.gen
}

func (f *fakeOutput) Play() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.playErr != nil {
		return f.playErr
	}
	f.playing = true
	return nil
}

func (f *fakeOutput) Pause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.playing = false
}

func (f *fakeOutput) SetCurrentTime(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pos = d
}

func (f *fakeOutput) SetVolume(v float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.volume = v
}

func (f *fakeOutput) Events() <-chan audio.Event { return f.events }
func (f *fakeOutput) Close() error               { return nil }

// event stamps ev with the generation of the current source.
func (f *fakeOutput) event(ev audio.Event) audio.Event {
	f.mu.Lock()
	defer f.mu.Unlock()
	ev.Gen = f.gen
	return ev
}

func (f *fakeOutput) source() audio.Source {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.src
}

type fakeCache map[string][]byte

func (c fakeCache) GetBlob(_ context.Context, id string) []byte { return c[id] }

type fakeReach struct{ offline bool }

func (r *fakeReach) IsOffline() bool { return r.offline }

type fakeHistory struct {
	mu     sync.Mutex
	played []string
}

func (h *fakeHistory) RecordPlay(song core.Song) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.played = append(h.played, song.ID)
	return nil
}

func (h *fakeHistory) RecentlyPlayed() ([]core.HistoryEntry, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]core.HistoryEntry, 0, len(h.played))
	for i := len(h.played) - 1; i >= 0; i-- {
		out = append(out, core.HistoryEntry{Song: &core.Song{ID: h.played[i]}})
	}
	return out, nil
}

func song(id string, seconds int) core.Song {
	return core.Song{
		Kind:        core.SongKindDetailed,
		ID:          id,
		Name:        "Song " + id,
		Duration:    &seconds,
		DownloadURL: []core.Link{{Quality: "320kbps", URL: "https://cdn.example/" + id + ".mp4"}},
		Image:       []core.Link{{Quality: "500x500", URL: "https://img.example/" + id + ".jpg"}},
	}
}

type harness struct {
	engine  *Engine
	queue   *queue.Manager
	out     *fakeOutput
	session *mediasession.Recorder
	cache   fakeCache
	reach   *fakeReach
	history *fakeHistory
	toasts  *notify.Channel
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		queue:   queue.New(1),
		out:     newFakeOutput(),
		session: mediasession.NewRecorder(),
		cache:   fakeCache{},
		reach:   &fakeReach{},
		history: &fakeHistory{},
		toasts:  notify.NewChannel(32),
	}
	h.engine = New(h.queue, Options{
		Output:   h.out,
		Session:  h.session,
		Notifier: h.toasts,
		Cache:    h.cache,
		Offline:  h.reach,
		History:  h.history,
		Volume:   1,
	})
	t.Cleanup(func() { _ = h.engine.Close() })
	return h
}

func (h *harness) state(t *testing.T) core.PlaybackState {
	t.Helper()
	st, err := h.engine.GetState(context.Background())
	if err != nil {
		t.Fatalf("GetState() error = %v", err)
	}
	return *st
}

func currentID(st core.PlaybackState) string {
	if st.CurrentSong == nil {
		return ""
	}
	return st.CurrentSong.ID
}

func TestNewPanicsWithoutOutput(t *testing.T) {
	defer func() {
		err, ok := recover().(error)
		if !ok || !errors.Is(err, apperrors.ErrProviderMisuse) {
			t.Fatalf("recover() = %v, want ErrProviderMisuse", err)
		}
	}()
	New(queue.New(1), Options{})
}

func TestPlaySongReplacesQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	if err := h.engine.PlaySong(ctx, song("A", 180), true); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}

	q := h.queue.Snapshot()
	if got := core.SongIDs(q.Songs()); len(got) != 1 || got[0] != "A" {
		t.Fatalf("queue = %v, want [A]", got)
	}
	st := h.state(t)
	if currentID(st) != "A" || !st.IsPlaying {
		t.Errorf("state = %s playing=%v, want A playing", currentID(st), st.IsPlaying)
	}
	if st.Duration != 180*time.Second {
		t.Errorf("Duration = %v, want 3m", st.Duration)
	}
	if h.out.source().URL != "https://cdn.example/A.mp4" {
		t.Errorf("source = %+v, want remote URL", h.out.source())
	}
}

func TestPlaySongWithoutReplacingQueue(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_ = h.engine.PlaySong(ctx, song("A", 180), true)
	if err := h.engine.PlaySong(ctx, song("B", 200), false); err != nil {
		t.Fatalf("PlaySong() error = %v", err)
	}

	q := h.queue.Snapshot()
	if got := core.SongIDs(q.Songs()); len(got) != 2 || got[0] != "A" || got[1] != "B" {
		t.Fatalf("queue = %v, want [A B]", got)
	}
	if q.CurrentIndex != 0 {
		t.Errorf("CurrentIndex = %d, want 0", q.CurrentIndex)
	}
	st := h.state(t)
	if currentID(st) != "B" || !st.IsPlaying {
		t.Errorf("current = %s playing=%v, want B playing", currentID(st), st.IsPlaying)
	}

	// Appending more songs leaves the playing song alone.
	loads := h.out.loads
	h.queue.Append(song("C", 100))
	if h.out.loads != loads {
		t.Errorf("append reloaded the output")
	}
	if currentID(h.state(t)) != "B" {
		t.Errorf("current = %s, want B", currentID(h.state(t)))
	}
}

func TestPlaySongIntoEmptyQueueWithoutReplacing(t *testing.T) {
	h := newHarness(t)

	_ = h.engine.PlaySong(context.Background(), song("A", 60), false)

	if h.out.loads != 1 {
		t.Errorf("loads = %d, want 1", h.out.loads)
	}
	if st := h.state(t); currentID(st) != "A" || !st.IsPlaying {
		t.Errorf("state = %s playing=%v", currentID(st), st.IsPlaying)
	}
}

func TestPrevious(t *testing.T) {
	tests := []struct {
		name        string
		position    time.Duration
		wantCurrent string
		wantTime    time.Duration
	}{
		{"restarts after threshold", 3100 * time.Millisecond, "B", 0},
		{"retreats before threshold", 2900 * time.Millisecond, "A", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.queue.SetQueue([]core.Song{song("A", 180), song("B", 180)}, 1)
			h.engine.HandleEvent(h.out.event(audio.Event{Type: audio.EventTimeUpdate, Time: tt.position}))

			if err := h.engine.Previous(ctx); err != nil {
				t.Fatalf("Previous() error = %v", err)
			}

			st := h.state(t)
			if currentID(st) != tt.wantCurrent {
				t.Errorf("current = %s, want %s", currentID(st), tt.wantCurrent)
			}
			if st.CurrentTime != tt.wantTime {
				t.Errorf("CurrentTime = %v, want %v", st.CurrentTime, tt.wantTime)
			}
		})
	}
}

func TestSeekToClamps(t *testing.T) {
	tests := []struct {
		name string
		to   time.Duration
		want time.Duration
	}{
		{"negative", -10 * time.Second, 0},
		{"inside", 42 * time.Second, 42 * time.Second},
		{"past end", 500 * time.Second, 180 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.queue.SetQueue([]core.Song{song("A", 180)}, 0)

			if err := h.engine.SeekTo(context.Background(), tt.to); err != nil {
				t.Fatalf("SeekTo() error = %v", err)
			}
			if got := h.state(t).CurrentTime; got != tt.want {
				t.Errorf("CurrentTime = %v, want %v", got, tt.want)
			}
			if h.out.pos != tt.want {
				t.Errorf("output position = %v, want %v", h.out.pos, tt.want)
			}
			if got := h.session.Position().Position; got != tt.want {
				t.Errorf("session position = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSetVolumeClamps(t *testing.T) {
	tests := []struct {
		in, want float64
	}{
		{-0.5, 0},
		{0.4, 0.4},
		{1.5, 1},
	}

	for _, tt := range tests {
		h := newHarness(t)
		_ = h.engine.SetVolume(context.Background(), tt.in)
		if got := h.state(t).Volume; got != tt.want {
			t.Errorf("SetVolume(%v): Volume = %v, want %v", tt.in, got, tt.want)
		}
		if h.out.volume != tt.want {
			t.Errorf("SetVolume(%v): output volume = %v, want %v", tt.in, h.out.volume, tt.want)
		}
	}
}

func TestCachedSongPlaysFromBlob(t *testing.T) {
	h := newHarness(t)
	h.cache["A"] = []byte("audio")

	_ = h.engine.PlaySong(context.Background(), song("A", 60), true)

	src := h.out.source()
	if string(src.Blob) != "audio" || src.URL != "" {
		t.Errorf("source = %+v, want cached blob", src)
	}
	if !h.state(t).FromCache {
		t.Error("FromCache = false, want true")
	}
}

func TestOfflineSkipsUncachedSongs(t *testing.T) {
	h := newHarness(t)
	h.reach.offline = true
	h.cache["C"] = []byte("audio")

	_ = h.engine.PlaySong(context.Background(), song("A", 60), true)
	h.queue.AppendMany([]core.Song{song("B", 60), song("C", 60)})
	_ = h.engine.Next(context.Background())

	st := h.state(t)
	if currentID(st) != "C" {
		t.Fatalf("current = %s, want C", currentID(st))
	}
	if string(h.out.source().Blob) != "audio" {
		t.Errorf("source = %+v, want cached blob", h.out.source())
	}
}

func TestOfflineStopsAfterOneLap(t *testing.T) {
	h := newHarness(t)
	h.reach.offline = true
	h.queue.SetQueue([]core.Song{song("A", 60), song("B", 60), song("C", 60)}, 0)

	st := h.state(t)
	if st.IsPlaying {
		t.Error("IsPlaying = true with nothing playable")
	}
	if !h.out.source().IsZero() {
		t.Errorf("source = %+v, want unloaded", h.out.source())
	}
	if h.queue.Snapshot().CurrentIndex != 2 {
		t.Errorf("CurrentIndex = %d, want 2", h.queue.Snapshot().CurrentIndex)
	}
}

func TestEndedAdvances(t *testing.T) {
	h := newHarness(t)
	h.queue.SetQueue([]core.Song{song("A", 60), song("B", 60)}, 0)

	h.engine.HandleEvent(h.out.event(audio.Event{Type: audio.EventEnded}))

	st := h.state(t)
	if currentID(st) != "B" {
		t.Errorf("current = %s, want B", currentID(st))
	}
	if !st.IsPlaying {
		t.Error("IsPlaying = false after ended, want autoplay")
	}
}

func TestEndedOnSingleSongRestarts(t *testing.T) {
	h := newHarness(t)
	_ = h.engine.PlaySong(context.Background(), song("A", 60), true)
	loads := h.out.loads

	h.engine.HandleEvent(h.out.event(audio.Event{Type: audio.EventEnded}))

	if h.out.loads != loads+1 {
		t.Errorf("loads = %d, want %d", h.out.loads, loads+1)
	}
	if st := h.state(t); currentID(st) != "A" || !st.IsPlaying || st.CurrentTime != 0 {
		t.Errorf("state = %+v", st)
	}
}

func TestErrorEventResetsState(t *testing.T) {
	h := newHarness(t)
	h.cache["A"] = []byte("audio")
	_ = h.engine.PlaySong(context.Background(), song("A", 60), true)
	h.engine.HandleEvent(h.out.event(audio.Event{Type: audio.EventTimeUpdate, Time: 20 * time.Second}))

	h.engine.HandleEvent(h.out.event(audio.Event{Type: audio.EventError, Code: audio.MediaErrDecode}))

	st := h.state(t)
	if st.IsPlaying || st.CurrentTime != 0 || st.Duration != 0 {
		t.Errorf("state = %+v, want reset", st)
	}
	if currentID(st) != "A" {
		t.Errorf("current = %s, want A kept", currentID(st))
	}
}

func TestNetworkErrorSkipsRemoteSong(t *testing.T) {
	h := newHarness(t)
	h.queue.SetQueue([]core.Song{song("A", 60), song("B", 60)}, 0)

	h.engine.HandleEvent(h.out.event(audio.Event{Type: audio.EventError, Code: audio.MediaErrNetwork}))

	if got := currentID(h.state(t)); got != "B" {
		t.Errorf("current = %s, want B", got)
	}
}

func TestStaleEndedAfterNext(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.queue.SetQueue([]core.Song{song("A", 60), song("B", 60), song("C", 60)}, 0)
	ended := h.out.event(audio.Event{Type: audio.EventEnded})

	if err := h.engine.Next(ctx); err != nil {
		t.Fatalf("Next() error = %v", err)
	}
	h.engine.HandleEvent(ended)

	if got := currentID(h.state(t)); got != "B" {
		t.Errorf("current = %s, want B", got)
	}
	if h.queue.Snapshot().CurrentIndex != 1 {
		t.Errorf("CurrentIndex = %d, want 1", h.queue.Snapshot().CurrentIndex)
	}
}

func TestStaleEventsIgnored(t *testing.T) {
	tests := []struct {
		name string
		ev   audio.Event
	}{
		{"time update", audio.Event{Type: audio.EventTimeUpdate, Time: 20 * time.Second}},
		{"network error", audio.Event{Type: audio.EventError, Code: audio.MediaErrNetwork}},
		{"play", audio.Event{Type: audio.EventPlay}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			ctx := context.Background()
			h.queue.SetQueue([]core.Song{song("A", 60), song("B", 60), song("C", 60)}, 0)
			stale := h.out.event(tt.ev)
			if err := h.engine.Next(ctx); err != nil {
				t.Fatalf("Next() error = %v", err)
			}

			h.engine.HandleEvent(stale)

			st := h.state(t)
			if currentID(st) != "B" {
				t.Errorf("current = %s, want B", currentID(st))
			}
			if st.CurrentTime != 0 || st.IsPlaying {
				t.Errorf("state = %+v, want untouched", st)
			}
		})
	}
}

func TestPlayRejectedLeavesPaused(t *testing.T) {
	h := newHarness(t)
	h.queue.SetQueue([]core.Song{song("A", 60)}, 0)
	h.out.playErr = errors.New("not allowed")

	if err := h.engine.TogglePlayPause(context.Background()); err == nil {
		t.Fatal("TogglePlayPause() error = nil, want rejection")
	}
	if h.state(t).IsPlaying {
		t.Error("IsPlaying = true after rejected play")
	}
}

func TestTogglePlayPause(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.queue.SetQueue([]core.Song{song("A", 60)}, 0)

	_ = h.engine.TogglePlayPause(ctx)
	if !h.state(t).IsPlaying {
		t.Fatal("IsPlaying = false after first toggle")
	}
	_ = h.engine.TogglePlayPause(ctx)
	if h.state(t).IsPlaying {
		t.Fatal("IsPlaying = true after second toggle")
	}
}

func TestPlayEmptyQueue(t *testing.T) {
	h := newHarness(t)
	if err := h.engine.Play(context.Background()); !errors.Is(err, apperrors.ErrQueueEmpty) {
		t.Errorf("Play() error = %v, want ErrQueueEmpty", err)
	}
}

func TestClearUnloads(t *testing.T) {
	h := newHarness(t)
	_ = h.engine.PlaySong(context.Background(), song("A", 60), true)

	h.queue.Clear()

	st := h.state(t)
	if st.HasSong() || st.IsPlaying {
		t.Errorf("state = %+v, want empty", st)
	}
	if h.session.Metadata() != nil {
		t.Error("session metadata kept after clear")
	}
	if h.session.Status() != mediasession.StatusNone {
		t.Errorf("session status = %s, want none", h.session.Status())
	}
}

func TestMediaSessionBinding(t *testing.T) {
	h := newHarness(t)
	h.queue.SetQueue([]core.Song{song("A", 180), song("B", 60)}, 0)

	md := h.session.Metadata()
	if md == nil || md.Title != "Song A" || md.Length != 180*time.Second {
		t.Fatalf("metadata = %+v", md)
	}
	if len(md.Artwork) != 1 || md.Artwork[0].Sizes != "500x500" {
		t.Errorf("artwork = %+v", md.Artwork)
	}

	h.session.Invoke(mediasession.ActionDetails{Action: mediasession.ActionNextTrack})
	if got := currentID(h.state(t)); got != "B" {
		t.Errorf("after nexttrack current = %s, want B", got)
	}

	h.session.Invoke(mediasession.ActionDetails{Action: mediasession.ActionSeekForward})
	if got := h.state(t).CurrentTime; got != DefaultSeekStep {
		t.Errorf("after seekforward CurrentTime = %v, want %v", got, DefaultSeekStep)
	}
	h.session.Invoke(mediasession.ActionDetails{Action: mediasession.ActionSeekTo, SeekTime: 30 * time.Second})
	if got := h.state(t).CurrentTime; got != 30*time.Second {
		t.Errorf("after seekto CurrentTime = %v, want 30s", got)
	}

	h.session.Invoke(mediasession.ActionDetails{Action: mediasession.ActionPlay})
	if h.session.Status() != mediasession.StatusPlaying {
		t.Errorf("status = %s, want playing", h.session.Status())
	}

	if h.session.Volume() != 1 {
		t.Errorf("session volume = %v, want 1 announced with the song", h.session.Volume())
	}
	h.session.Invoke(mediasession.ActionDetails{Action: mediasession.ActionSetVolume, Volume: 0.4})
	if got := h.state(t).Volume; got != 0.4 {
		t.Errorf("after setvolume Volume = %v, want 0.4", got)
	}
	if h.session.Volume() != 0.4 {
		t.Errorf("session volume = %v, want 0.4", h.session.Volume())
	}
}

func TestHistoryRecorded(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	_ = h.engine.PlaySong(ctx, song("A", 60), true)
	_ = h.engine.PlaySong(ctx, song("B", 60), true)

	recent, err := h.engine.GetRecentlyPlayed(ctx, 1)
	if err != nil {
		t.Fatalf("GetRecentlyPlayed() error = %v", err)
	}
	if len(recent) != 1 || recent[0].Song.ID != "B" {
		t.Errorf("recent = %+v, want [B]", recent)
	}
}

func TestSubscribeReceivesLatest(t *testing.T) {
	h := newHarness(t)
	ch, cancel := h.engine.Subscribe()
	defer cancel()

	_ = h.engine.PlaySong(context.Background(), song("A", 60), true)
	_ = h.engine.SetVolume(context.Background(), 0.25)

	select {
	case st := <-ch:
		if st.Volume != 0.25 || currentID(st) != "A" {
			t.Errorf("state = %+v", st)
		}
	default:
		t.Fatal("no state delivered")
	}
}

func TestRunConsumesEvents(t *testing.T) {
	h := newHarness(t)
	h.queue.SetQueue([]core.Song{song("A", 60)}, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		h.engine.Run(ctx)
		close(done)
	}()

	h.out.events <- h.out.event(audio.Event{Type: audio.EventPlay})
	deadline := time.After(2 * time.Second)
	for !h.state(t).IsPlaying {
		select {
		case <-deadline:
			t.Fatal("play event not applied")
		case <-time.After(5 * time.Millisecond):
		}
	}

	cancel()
	<-done
}
