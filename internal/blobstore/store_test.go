package blobstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/tessro/encore/internal/errors"
)

func engines(t *testing.T) map[string]Store {
	t.Helper()
	b, err := OpenBolt(t.TempDir())
	if err != nil {
		t.Fatalf("OpenBolt() error = %v", err)
	}
	t.Cleanup(func() { b.Close() })
	return map[string]Store{
		"bolt":   b,
		"memory": NewMemory(),
	}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			got, err := s.Get(ctx, MusicApp, StoreAudio, "missing")
			if err != nil || got != nil {
				t.Fatalf("Get(missing) = %v, %v; want nil, nil", got, err)
			}

			if err := s.Put(ctx, MusicApp, StoreAudio, AudioKey("b"), []byte("bbb")); err != nil {
				t.Fatal(err)
			}
			if err := s.Put(ctx, MusicApp, StoreAudio, AudioKey("a"), []byte("aaa")); err != nil {
				t.Fatal(err)
			}

			got, err = s.Get(ctx, MusicApp, StoreAudio, "a")
			if err != nil || string(got) != "aaa" {
				t.Fatalf("Get(a) = %q, %v", got, err)
			}

			all, err := s.GetAll(ctx, MusicApp, StoreAudio)
			if err != nil {
				t.Fatal(err)
			}
			if len(all) != 2 || all[0].Key != "a" || all[1].Key != "b" {
				t.Fatalf("GetAll() = %+v", all)
			}

			if err := s.Delete(ctx, MusicApp, StoreAudio, "a"); err != nil {
				t.Fatal(err)
			}
			if err := s.Delete(ctx, MusicApp, StoreAudio, "a"); err != nil {
				t.Fatalf("second Delete() error = %v", err)
			}
			if got, _ := s.Get(ctx, MusicApp, StoreAudio, "a"); got != nil {
				t.Errorf("Get(a) after delete = %q", got)
			}

			if err := s.Clear(ctx, MusicApp, StoreAudio); err != nil {
				t.Fatal(err)
			}
			all, _ = s.GetAll(ctx, MusicApp, StoreAudio)
			if len(all) != 0 {
				t.Errorf("GetAll() after clear = %+v", all)
			}
		})
	}
}

func TestStoreReturnsCopies(t *testing.T) {
	ctx := context.Background()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			value := []byte("abc")
			if err := s.Put(ctx, MusicApp, StoreSongs, "x", value); err != nil {
				t.Fatal(err)
			}
			value[0] = 'z'

			got, _ := s.Get(ctx, MusicApp, StoreSongs, "x")
			if string(got) != "abc" {
				t.Fatalf("Get() = %q, want unaffected by caller mutation", got)
			}
			got[1] = 'z'
			again, _ := s.Get(ctx, MusicApp, StoreSongs, "x")
			if string(again) != "abc" {
				t.Errorf("Get() = %q, want unaffected by result mutation", again)
			}
		})
	}
}

func TestStoreUnknownStore(t *testing.T) {
	ctx := context.Background()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			err := s.Put(ctx, MusicApp, "favorites", "k", nil)
			if !errors.Is(err, apperrors.ErrStorage) {
				t.Errorf("Put(unknown store) error = %v, want ErrStorage", err)
			}
			_, err = s.Get(ctx, DB("nope"), StoreAudio, "k")
			if !errors.Is(err, apperrors.ErrStorage) {
				t.Errorf("Get(unknown db) error = %v, want ErrStorage", err)
			}
		})
	}
}

func TestStoreCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for name, s := range engines(t) {
		t.Run(name, func(t *testing.T) {
			if err := s.Put(ctx, MusicApp, StoreAudio, "k", []byte("v")); !errors.Is(err, context.Canceled) {
				t.Errorf("Put() error = %v, want context.Canceled", err)
			}
		})
	}
}

func TestBoltPersistsAcrossOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	b, err := OpenBolt(dir)
	if err != nil {
		t.Fatal(err)
	}
	if err := b.Put(ctx, Favorites, StoreFavorites, "s1", []byte(`{"id":"s1"}`)); err != nil {
		t.Fatal(err)
	}
	if err := b.Close(); err != nil {
		t.Fatal(err)
	}

	b, err = OpenBolt(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()

	got, err := b.Get(ctx, Favorites, StoreFavorites, "s1")
	if err != nil || string(got) != `{"id":"s1"}` {
		t.Errorf("Get() = %q, %v", got, err)
	}
	v, err := b.Version(MusicApp)
	if err != nil || v != 1 {
		t.Errorf("Version() = %d, %v; want 1", v, err)
	}
	for _, schema := range Schemas {
		if _, err := os.Stat(filepath.Join(dir, string(schema.DB)+".db")); err != nil {
			t.Errorf("database file for %s: %v", schema.DB, err)
		}
	}
}

func TestEstimateUsage(t *testing.T) {
	ctx := context.Background()

	m := NewMemory()
	m.Quota = 100
	_ = m.Put(ctx, MusicApp, StoreAudio, "k", make([]byte, 9))
	u, err := m.EstimateUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.UsedBytes != 10 || u.QuotaBytes != 100 || u.Percent() != 10 {
		t.Errorf("memory usage = %+v", u)
	}

	b, err := OpenBolt(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer b.Close()
	u, err = b.EstimateUsage(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.UsedBytes == 0 || u.QuotaBytes < u.UsedBytes {
		t.Errorf("bolt usage = %+v", u)
	}
}
