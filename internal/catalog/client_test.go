package catalog

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(srv.URL+"/", 5*time.Second, nil)
	c.retryWait = time.Millisecond
	return c
}

const songJSON = `{
	"id": "abc",
	"name": "Night Drive",
	"duration": 215,
	"album": {"id": "al1", "name": "Roads", "url": "https://example/al1"},
	"artists": {"primary": [{"id": "ar1", "name": "Nova"}], "featured": [], "all": []},
	"image": [{"quality": "50x50", "url": "https://img/50"}, {"quality": "500x500", "url": "https://img/500"}],
	"downloadUrl": [{"quality": "160kbps", "url": "https://cdn/160"}, {"quality": "320kbps", "url": "https://cdn/320"}]
}`

func TestBuildURL(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		params map[string]string
		want   string
	}{
		{"no params", "/songs", nil, "/songs"},
		{"empty params", "/songs", map[string]string{}, "/songs"},
		{"single param", "/search/songs", map[string]string{"query": "lo fi"}, "/search/songs?query=lo+fi"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildURL(tt.path, tt.params); got != tt.want {
				t.Errorf("BuildURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGetSongByID(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/songs/abc" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte(`{"success": true, "data": [` + songJSON + `]}`))
	})

	song, err := c.GetSongByID(context.Background(), "abc")
	if err != nil {
		t.Fatalf("GetSongByID() error = %v", err)
	}
	if song.Kind != core.SongKindDetailed {
		t.Errorf("Kind = %q, want detailed", song.Kind)
	}
	if song.Name != "Night Drive" || song.Length() != 215*time.Second {
		t.Errorf("song = %+v", song)
	}
	if got := song.PreferredDownloadURL(core.PreferredQuality); got != "https://cdn/320" {
		t.Errorf("PreferredDownloadURL() = %q", got)
	}
	if song.PrimaryArtist() != "Nova" {
		t.Errorf("PrimaryArtist() = %q", song.PrimaryArtist())
	}
}

func TestGetSongByIDEmptyData(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success": true, "data": []}`))
	})

	_, err := c.GetSongByID(context.Background(), "missing")
	if !errors.Is(err, apperrors.ErrSongNotFound) {
		t.Errorf("GetSongByID() error = %v, want ErrSongNotFound", err)
	}
}

func TestGetSongs(t *testing.T) {
	var gotIDs string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotIDs = r.URL.Query().Get("ids")
		_, _ = w.Write([]byte(`{"success": true, "data": [` + songJSON + `]}`))
	})

	songs, err := c.GetSongs(context.Background(), []string{"abc", "", "abc", "def"})
	if err != nil {
		t.Fatalf("GetSongs() error = %v", err)
	}
	if gotIDs != "abc,def" {
		t.Errorf("ids = %q, want abc,def", gotIDs)
	}
	if len(songs) != 1 || songs[0].Kind != core.SongKindDetailed {
		t.Errorf("songs = %+v", songs)
	}
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/search/songs" || r.URL.Query().Get("query") != "night" || r.URL.Query().Get("limit") != "5" {
			t.Errorf("unexpected request %s", r.URL)
		}
		_, _ = w.Write([]byte(`{"success": true, "data": {"total": 1, "start": 0, "results": [` + songJSON + `]}}`))
	})

	res, err := c.Search(context.Background(), SearchOptions{Query: "night", Limit: 5})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Total != 1 || len(res.Results) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Results[0].Kind != core.SongKindSummary {
		t.Errorf("Kind = %q, want summary", res.Results[0].Kind)
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	c := New("http://unused", time.Second, nil)
	if _, err := c.Search(context.Background(), SearchOptions{Query: "  "}); err == nil {
		t.Error("Search() error = nil, want error")
	}
}

func TestGetAlbum(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("id") != "al1" {
			t.Errorf("id = %q", r.URL.Query().Get("id"))
		}
		_, _ = w.Write([]byte(`{"success": true, "data": {"id": "al1", "name": "Roads", "songs": [` + songJSON + `]}}`))
	})

	album, err := c.GetAlbum(context.Background(), "al1")
	if err != nil {
		t.Fatalf("GetAlbum() error = %v", err)
	}
	if !album.HasSongs() || album.Songs[0].Kind != core.SongKindDetailed {
		t.Errorf("album = %+v", album)
	}
}

func TestRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success": true, "data": [` + songJSON + `]}`))
	})

	if _, err := c.GetSongByID(context.Background(), "abc"); err != nil {
		t.Fatalf("GetSongByID() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestGivesUpAfterRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"message": "upstream down"}`))
	})

	_, err := c.GetSongByID(context.Background(), "abc")
	if !errors.Is(err, apperrors.ErrNetwork) {
		t.Errorf("error = %v, want ErrNetwork", err)
	}
	if !strings.Contains(err.Error(), "upstream down") {
		t.Errorf("error = %q, want server message", err)
	}
	if got := calls.Load(); got != maxRetries+1 {
		t.Errorf("calls = %d, want %d", got, maxRetries+1)
	}
}

func TestDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"message": "song not found"}`))
	})

	_, err := c.GetSongByID(context.Background(), "abc")
	if !IsNotFoundError(err) {
		t.Errorf("IsNotFoundError(%v) = false", err)
	}
	if !errors.Is(err, apperrors.ErrSongNotFound) {
		t.Errorf("error = %v, want ErrSongNotFound", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestResolve(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"success": true, "data": [` + songJSON + `]}`))
	})
	ctx := context.Background()

	detailed := core.Song{ID: "x", Kind: core.SongKindDetailed}
	if got, _ := c.Resolve(ctx, detailed); got.ID != "x" {
		t.Errorf("Resolve(detailed) = %+v", got)
	}
	if calls.Load() != 0 {
		t.Error("detailed song fetched")
	}

	got, err := c.Resolve(ctx, core.Song{ID: "abc", Kind: core.SongKindSummary})
	if err != nil {
		t.Fatalf("Resolve() error = %v", err)
	}
	if got.BestDownloadURL() != "https://cdn/320" {
		t.Errorf("Resolve(summary) = %+v", got)
	}
}

func TestAPIError(t *testing.T) {
	err := &APIError{Status: 401, Message: "nope"}
	if got := err.Error(); got != "catalog API error 401: nope" {
		t.Errorf("Error() = %q", got)
	}
}
