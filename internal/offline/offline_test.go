package offline

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/tessro/encore/internal/core"
)

type fakeCache map[string]bool

func (f fakeCache) IsCached(id string) bool { return f[id] }

func (f fakeCache) CachedSongs() []core.Song {
	var out []core.Song
	for id, ok := range f {
		if ok {
			out = append(out, core.Song{ID: id})
		}
	}
	return out
}

type fixedReach bool

func (r fixedReach) IsOffline() bool { return bool(r) }

func songs(ids ...string) []core.Song {
	out := make([]core.Song, len(ids))
	for i, id := range ids {
		out[i] = core.Song{ID: id}
	}
	return out
}

func TestFilterSongs(t *testing.T) {
	idx := fakeCache{"A": true, "C": true}

	tests := []struct {
		name    string
		offline bool
		in      []string
		want    []string
	}{
		{"online returns input", false, []string{"A", "B"}, []string{"A", "B"}},
		{"offline keeps cached", true, []string{"A", "B"}, []string{"A"}},
		{"offline none cached", true, []string{"B"}, []string{}},
		{"offline preserves order", true, []string{"C", "B", "A"}, []string{"C", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewArbiter(fixedReach(tt.offline), idx, nil)
			got := core.SongIDs(a.FilterSongs(songs(tt.in...)))
			if !slices.Equal(got, tt.want) {
				t.Errorf("FilterSongs(%v) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestFilterSongsIsSubsequence(t *testing.T) {
	idx := fakeCache{"b": true, "d": true, "e": true}
	a := NewArbiter(fixedReach(true), idx, nil)
	in := songs("a", "b", "c", "d", "b", "e")

	out := a.FilterSongs(in)
	j := 0
	for _, s := range in {
		if j < len(out) && out[j].ID == s.ID {
			j++
		}
	}
	if j != len(out) {
		t.Errorf("FilterSongs() = %v is not a subsequence of input", core.SongIDs(out))
	}
}

func TestPredicates(t *testing.T) {
	idx := fakeCache{"A": true}

	online := NewArbiter(fixedReach(false), idx, nil)
	if !online.ShouldEnableQuery() || !online.IsContentAvailable(songs("B")) {
		t.Error("online predicates should be permissive")
	}

	offline := NewArbiter(fixedReach(true), idx, nil)
	if offline.ShouldEnableQuery() {
		t.Error("ShouldEnableQuery() = true while offline")
	}
	if offline.IsContentAvailable(songs("B")) {
		t.Error("IsContentAvailable([B]) = true while offline")
	}
	if !offline.IsContentAvailable(songs("B", "A")) {
		t.Error("IsContentAvailable([B, A]) = false while offline")
	}
	if offline.IsPlayable(core.Song{ID: "B"}) {
		t.Error("IsPlayable(B) = true while offline")
	}
	if len(offline.CachedSongsOnly()) != 1 {
		t.Errorf("CachedSongsOnly() = %v", offline.CachedSongsOnly())
	}

	offline.ForceOffline(false)
	if !offline.IsOffline() {
		t.Error("ForceOffline changed the mode")
	}
}

func TestMonitorCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	url := srv.URL

	m := NewMonitor(url, time.Hour, time.Second, nil)
	events, cancel := m.Subscribe()
	defer cancel()

	if !m.Check(context.Background()) || m.IsOffline() {
		t.Fatal("expected online while server is up")
	}

	srv.Close()
	if m.Check(context.Background()) {
		t.Fatal("expected unreachable after server closed")
	}
	if !m.IsOffline() {
		t.Error("IsOffline() = false after failed check")
	}

	select {
	case offline := <-events:
		if !offline {
			t.Error("transition = online, want offline")
		}
	case <-time.After(time.Second):
		t.Error("no transition delivered")
	}
}

func TestMonitorSetIgnoresRepeats(t *testing.T) {
	m := NewMonitor("", time.Hour, time.Second, nil)
	events, cancel := m.Subscribe()

	m.Set(false)
	select {
	case <-events:
		t.Fatal("no-op Set delivered an event")
	default:
	}

	m.Set(true)
	if got := <-events; !got {
		t.Error("expected offline event")
	}
	cancel()
	cancel()
}
