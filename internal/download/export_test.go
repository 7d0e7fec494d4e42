package download

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/mholt/archives"

	"github.com/tessro/encore/internal/blobstore"
	"github.com/tessro/encore/internal/cache"
	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
)

func exportFixture(t *testing.T) *Coordinator {
	t.Helper()
	store := blobstore.NewMemory()
	idx := cache.New(store, nil)
	idx.Add(&cache.CachedSong{ID: "1", Metadata: core.Song{ID: "1", Name: "Hello/World"}, Audio: []byte("one")})
	idx.Add(&cache.CachedSong{ID: "2", Metadata: core.Song{ID: "2", Name: "Hello/World"}, Audio: []byte("two")})
	idx.Add(&cache.CachedSong{ID: "3", Metadata: core.Song{ID: "3", Name: "No audio"}})
	return New(store, idx, Options{})
}

type cancelPicker struct{}

func (cancelPicker) PickDirectory(context.Context) (string, error) {
	return "", apperrors.ErrDirectoryNotChosen
}

func TestSanitizeFileName(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Hello World", "Hello World"},
		{"AC/DC: Live?", "AC_DC_ Live"},
		{"  ..dots..  ", "dots"},
		{"Café (Remix)", "Café (Remix)"},
	}
	for _, tt := range tests {
		if got := SanitizeFileName(tt.in); got != tt.want {
			t.Errorf("SanitizeFileName(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestSaveToDevice(t *testing.T) {
	c := exportFixture(t)
	dir := t.TempDir()

	summary, err := c.SaveToDevice(context.Background(), StaticPicker(dir))
	if err != nil {
		t.Fatalf("SaveToDevice() error = %v", err)
	}
	if summary.Written() != 2 || summary.Failed() != 0 {
		t.Fatalf("summary = %d written, %d failed", summary.Written(), summary.Failed())
	}

	entries, _ := os.ReadDir(dir)
	if len(entries) != 2 {
		t.Fatalf("files = %v", entries)
	}
	if _, err := os.Stat(filepath.Join(dir, "Hello_World.mp3")); err != nil {
		t.Error(err)
	}
	if _, err := os.Stat(filepath.Join(dir, "Hello_World (2).mp3")); err != nil {
		t.Error(err)
	}
}

func TestSaveToDeviceCancelled(t *testing.T) {
	c := exportFixture(t)
	_, err := c.SaveToDevice(context.Background(), cancelPicker{})
	if !errors.Is(err, apperrors.ErrDirectoryNotChosen) {
		t.Errorf("SaveToDevice() error = %v, want ErrDirectoryNotChosen", err)
	}
}

func TestSaveToDeviceNothingCached(t *testing.T) {
	store := blobstore.NewMemory()
	c := New(store, cache.New(store, nil), Options{})
	_, err := c.SaveToDevice(context.Background(), StaticPicker(t.TempDir()))
	if !errors.Is(err, apperrors.ErrNothingCached) {
		t.Errorf("SaveToDevice() error = %v, want ErrNothingCached", err)
	}
}

func TestExportArchive(t *testing.T) {
	c := exportFixture(t)
	for _, name := range []string{"songs.zip", "songs.tar.gz"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			summary, err := c.ExportArchive(context.Background(), path)
			if err != nil {
				t.Fatalf("ExportArchive() error = %v", err)
			}
			if summary.Written() != 2 {
				t.Errorf("Written() = %d, want 2", summary.Written())
			}
			info, err := os.Stat(path)
			if err != nil || info.Size() == 0 {
				t.Errorf("archive missing or empty: %v", err)
			}
		})
	}

	if _, err := c.ExportArchive(context.Background(), filepath.Join(t.TempDir(), "x.rar")); err == nil {
		t.Error("ExportArchive(.rar) succeeded")
	}
}

type failingArchiver struct{ err error }

func (f failingArchiver) Archive(_ context.Context, out io.Writer, _ []archives.FileInfo) error {
	if _, err := out.Write([]byte("partial")); err != nil {
		return err
	}
	return f.err
}

func TestWriteArchive(t *testing.T) {
	boom := errors.New("boom")
	tests := []struct {
		name     string
		err      error
		wantFile bool
	}{
		{"success keeps file", nil, true},
		{"failure removes file", boom, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "out.zip")
			err := writeArchive(context.Background(), path, failingArchiver{err: tt.err}, nil)
			if !errors.Is(err, tt.err) {
				t.Fatalf("writeArchive() error = %v, want %v", err, tt.err)
			}
			_, statErr := os.Stat(path)
			if got := statErr == nil; got != tt.wantFile {
				t.Errorf("file exists = %v, want %v", got, tt.wantFile)
			}
		})
	}

	if err := writeArchive(context.Background(), filepath.Join(t.TempDir(), "missing", "out.zip"), failingArchiver{}, nil); err == nil {
		t.Error("writeArchive() into missing directory succeeded")
	}
}
