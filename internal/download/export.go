package download

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/mholt/archives"

	"github.com/tessro/encore/internal/cache"
	apperrors "github.com/tessro/encore/internal/errors"
)

// DirectoryPicker asks the user for a destination directory. It returns
// errors.ErrDirectoryNotChosen when the user cancels.
type DirectoryPicker interface {
	PickDirectory(ctx context.Context) (string, error)
}

// ExportSummary reports the files written by an export. Data holds the
// written paths; Errors holds one error per file that could not be written.
type ExportSummary struct {
	Dir string
	apperrors.PartialResult[[]string]
}

// Written returns the number of files written.
func (s *ExportSummary) Written() int {
	return len(s.Data)
}

// Failed returns the number of files that could not be written.
func (s *ExportSummary) Failed() int {
	return len(s.Errors)
}

var unsafeName = regexp.MustCompile(`[^\p{L}\d ._,()'\-]+`)

// SanitizeFileName replaces characters that are unsafe in file names.
func SanitizeFileName(name string) string {
	name = unsafeName.ReplaceAllString(name, "_")
	name = strings.Trim(name, " ._")
	return name
}

// SaveToDevice asks picker for a directory once and writes every cached
// song's audio into it as {name}.mp3.
func (c *Coordinator) SaveToDevice(ctx context.Context, picker DirectoryPicker) (*ExportSummary, error) {
	songs := c.playable()
	if len(songs) == 0 {
		return nil, apperrors.ErrNothingCached
	}

	dir, err := picker.PickDirectory(ctx)
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return nil, apperrors.ErrDirectoryNotChosen
	}

	summary := c.writeFiles(ctx, dir, songs)
	c.logger.Info("saved songs to device", "dir", dir, "written", summary.Written(), "failed", summary.Failed())
	return summary, nil
}

// ExportArchive writes every cached song into an archive at path. The format
// follows the extension: .zip, .tar, or .tar.gz/.tgz.
func (c *Coordinator) ExportArchive(ctx context.Context, path string) (*ExportSummary, error) {
	songs := c.playable()
	if len(songs) == 0 {
		return nil, apperrors.ErrNothingCached
	}

	format, err := archiveFormat(path)
	if err != nil {
		return nil, err
	}

	staging, err := os.MkdirTemp("", "encore-export-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(staging)

	summary := c.writeFiles(ctx, staging, songs)
	if summary.Written() == 0 {
		return summary, summary.Err()
	}

	fileMap := make(map[string]string, summary.Written())
	for _, p := range summary.Data {
		fileMap[p] = filepath.Base(p)
	}
	files, err := archives.FilesFromDisk(ctx, nil, fileMap)
	if err != nil {
		return nil, fmt.Errorf("failed to collect files: %w", err)
	}

	if err := writeArchive(ctx, path, format, files); err != nil {
		return nil, err
	}

	archived := &ExportSummary{Dir: path}
	for _, p := range summary.Data {
		archived.Data = append(archived.Data, filepath.Base(p))
	}
	archived.Errors = summary.Errors
	c.logger.Info("exported archive", "path", path, "songs", archived.Written())
	return archived, nil
}

// writeArchive creates path and archives files into it. Nothing is left at
// path on failure.
func writeArchive(ctx context.Context, path string, format archives.Archiver, files []archives.FileInfo) error {
	out, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("cannot create output file: %w", err)
	}
	err = format.Archive(ctx, out, files)
	if err != nil {
		err = fmt.Errorf("failed to create archive: %w", err)
	}
	if cerr := out.Close(); err == nil && cerr != nil {
		err = fmt.Errorf("failed to close archive: %w", cerr)
	}
	if err != nil {
		_ = os.Remove(path)
		return err
	}
	return nil
}

func archiveFormat(path string) (archives.Archiver, error) {
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".tar.gz"), strings.HasSuffix(lower, ".tgz"):
		return archives.CompressedArchive{
			Archival:    archives.Tar{},
			Compression: archives.Gz{},
		}, nil
	case strings.HasSuffix(lower, ".tar"):
		return archives.Tar{}, nil
	case strings.HasSuffix(lower, ".zip"):
		return archives.Zip{}, nil
	default:
		return nil, fmt.Errorf("unsupported archive format: %s (use .zip, .tar, or .tar.gz)", filepath.Ext(path))
	}
}

func (c *Coordinator) playable() []cache.CachedSong {
	var out []cache.CachedSong
	for _, e := range c.cache.Snapshot() {
		if e.HasAudio() {
			out = append(out, e)
		}
	}
	return out
}

func (c *Coordinator) writeFiles(ctx context.Context, dir string, songs []cache.CachedSong) *ExportSummary {
	summary := &ExportSummary{Dir: dir}
	used := make(map[string]int)

	for _, s := range songs {
		if err := ctx.Err(); err != nil {
			summary.AddError(err)
			break
		}

		base := SanitizeFileName(s.Metadata.Name)
		if base == "" {
			base = SanitizeFileName(s.ID)
		}
		used[base]++
		if n := used[base]; n > 1 {
			base = fmt.Sprintf("%s (%d)", base, n)
		}

		path := filepath.Join(dir, base+".mp3")
		if err := os.WriteFile(path, s.Audio, 0644); err != nil {
			summary.AddError(fmt.Errorf("%s: %w", s.Metadata.Name, err))
			continue
		}
		summary.Data = append(summary.Data, path)
	}
	return summary
}
