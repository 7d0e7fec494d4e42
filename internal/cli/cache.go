package cli

import (
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
	"github.com/tessro/encore/internal/cache"
	"github.com/tessro/encore/internal/download"
	apperrors "github.com/tessro/encore/internal/errors"
)

var (
	cacheExportDir     string
	cacheExportArchive string
	cacheYes           bool
	cacheFromQueue     bool
)

var cacheCmd = &cobra.Command{
	Use:     "cache",
	Aliases: []string{"offline"},
	Short:   "Manage songs downloaded for offline play",
	RunE:    runCacheList,
}

var cacheListCmd = &cobra.Command{
	Use:   "list",
	Short: "List downloaded songs",
	RunE:  runCacheList,
}

var cacheDownloadCmd = &cobra.Command{
	Use:   "download [id...]",
	Short: "Download songs for offline play",
	Long: `Download songs by catalog ID, or every song in the queue with --queue.

Examples:
  encore cache download 3IoDK8qI 8tLrCvQs
  encore cache download --queue`,
	RunE: runCacheDownload,
}

var cacheRemoveCmd = &cobra.Command{
	Use:   "remove <id...>",
	Short: "Delete downloaded songs",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runCacheRemove,
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every downloaded song",
	RunE:  runCacheClear,
}

var cacheExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Save downloaded songs as audio files",
	Long: `Write every downloaded song to a directory as "Artist - Title.mp3",
or into a single archive. Without --dir or --archive a directory picker
is shown.

Examples:
  encore cache export --dir ~/Music/encore
  encore cache export --archive songs.zip`,
	RunE: runCacheExport,
}

var cacheUsageCmd = &cobra.Command{
	Use:   "usage",
	Short: "Show storage usage",
	RunE:  runCacheUsage,
}

func init() {
	cacheDownloadCmd.Flags().BoolVar(&cacheFromQueue, "queue", false, "download every song in the queue")
	cacheClearCmd.Flags().BoolVarP(&cacheYes, "yes", "y", false, "do not ask for confirmation")
	cacheExportCmd.Flags().StringVar(&cacheExportDir, "dir", "", "directory to write songs to")
	cacheExportCmd.Flags().StringVar(&cacheExportArchive, "archive", "", "archive file to write (.zip, .tar, .tar.gz)")
	cacheExportCmd.MarkFlagsMutuallyExclusive("dir", "archive")

	cacheCmd.AddCommand(cacheListCmd)
	cacheCmd.AddCommand(cacheDownloadCmd)
	cacheCmd.AddCommand(cacheRemoveCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	cacheCmd.AddCommand(cacheExportCmd)
	cacheCmd.AddCommand(cacheUsageCmd)
	rootCmd.AddCommand(cacheCmd)
}

func runCacheList(cmd *cobra.Command, args []string) error {
	return withStorage(cmd.Context(), func(a *app.App) error {
		songs := a.Cache.Snapshot()

		if JSONOutput() {
			out := lo.Map(songs, func(s cache.CachedSong, _ int) map[string]any {
				return map[string]any{
					"song":          toSongJSON(s.Metadata, s.HasAudio()),
					"size":          s.Size(),
					"cached_at":     s.CachedAt,
					"last_accessed": s.LastAccessed,
				}
			})
			return printJSON(map[string]any{"songs": out, "total": len(songs)})
		}

		if len(songs) == 0 {
			NormalF("No songs downloaded")
			return nil
		}

		table := NewTable("ID", "SONG", "SIZE", "DOWNLOADED", "LAST PLAYED")
		for _, s := range songs {
			table.Row(s.ID, TruncateString(songLine(s.Metadata), 50), FormatBytes(s.Size()), FormatAgo(s.CachedAt), FormatAgo(s.LastAccessed))
		}
		table.Flush()

		if GetOutputMode() == OutputNormal {
			NormalF("\n%d songs, %s", len(songs), FormatBytes(a.Cache.TotalSize()))
		}
		return nil
	})
}

func runCacheDownload(cmd *cobra.Command, args []string) error {
	if len(args) == 0 && !cacheFromQueue {
		return errors.New("give song IDs or --queue")
	}

	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		a.Monitor.Check(ctx)

		queued := a.Queue.Snapshot()
		songs := queued.Songs()
		if len(args) > 0 {
			var err error
			if songs, err = a.Songs(ctx, args); err != nil {
				return err
			}
		}
		if len(songs) == 0 {
			return apperrors.ErrQueueEmpty
		}

		if GetOutputMode() == OutputNormal {
			NormalF("Downloading %d songs...", len(songs))
		}
		results, err := a.Download(ctx, songs)

		if JSONOutput() {
			out := lo.Map(results, func(r download.Result, _ int) map[string]string {
				m := map[string]string{"id": r.SongID, "status": string(r.Status)}
				if r.Err != nil {
					m["error"] = r.Err.Error()
				}
				return m
			})
			if perr := printJSON(map[string]any{"results": out}); perr != nil {
				return perr
			}
			return err
		}

		for _, r := range results {
			NormalF("%s %s  %s", StatusIcon(r.Status == download.StatusCached || r.Status == download.StatusSkippedCached), r.SongID, r.Status)
		}
		cached := lo.CountBy(results, func(r download.Result) bool { return r.Status == download.StatusCached })
		if GetOutputMode() == OutputNormal {
			NormalF("\n%d downloaded, %s used", cached, FormatBytes(a.Cache.TotalSize()))
		}
		return err
	})
}

func runCacheRemove(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		var errs []error
		for _, id := range args {
			if !a.Cache.IsCached(id) {
				errs = append(errs, fmt.Errorf("%s: %w", id, apperrors.ErrNotCached))
				continue
			}
			if err := a.Downloads.Remove(ctx, id); err != nil {
				errs = append(errs, err)
				continue
			}
			if !JSONOutput() {
				NormalF("Removed %s", id)
			}
		}
		if JSONOutput() {
			_ = printJSON(map[string]any{"status": "removed", "failed": len(errs)})
		}
		return apperrors.Join(errs...)
	})
}

func runCacheClear(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		n := a.Cache.Count()
		if n == 0 {
			return report("cleared", "No songs downloaded")
		}

		if !cacheYes {
			if !Interactive() {
				return errors.New("refusing to delete downloads without --yes")
			}
			ok, err := confirm(fmt.Sprintf("Delete %d downloaded songs (%s)?", n, FormatBytes(a.Cache.TotalSize())))
			if err != nil || !ok {
				return err
			}
		}

		if err := a.Downloads.ClearAll(ctx); err != nil {
			return err
		}
		return report("cleared", "Deleted %d songs", n)
	})
}

func runCacheExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		var (
			summary *download.ExportSummary
			err     error
		)
		switch {
		case cacheExportArchive != "":
			summary, err = a.Downloads.ExportArchive(ctx, cacheExportArchive)
		case cacheExportDir != "":
			summary, err = a.Downloads.SaveToDevice(ctx, download.StaticPicker(cacheExportDir))
		case Interactive():
			summary, err = a.Downloads.SaveToDevice(ctx, download.HuhPicker{Title: "Save downloaded songs to"})
		default:
			return errors.New("give --dir or --archive")
		}
		if err != nil {
			return err
		}

		if JSONOutput() {
			return printJSON(map[string]any{
				"path":    summary.Dir,
				"written": summary.Written(),
				"failed":  summary.Failed(),
			})
		}
		NormalF("Wrote %d songs to %s", summary.Written(), summary.Dir)
		if summary.HasErrors() {
			return errors.New(summary.ErrorSummary())
		}
		return nil
	})
}

func runCacheUsage(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		usage, err := a.Store.EstimateUsage(ctx)
		if err != nil {
			return err
		}

		if JSONOutput() {
			return printJSON(map[string]any{
				"songs":   a.Cache.Count(),
				"cached":  a.Cache.TotalSize(),
				"used":    usage.UsedBytes,
				"quota":   usage.QuotaBytes,
				"percent": usage.Percent(),
			})
		}

		NormalF("Songs:      %d (%s)", a.Cache.Count(), FormatBytes(a.Cache.TotalSize()))
		NormalF("Storage:    %s", FormatBytes(int64(usage.UsedBytes)))
		if usage.QuotaBytes > 0 {
			NormalF("Available:  %s (%.1f%% used)", FormatBytes(int64(usage.QuotaBytes)), usage.Percent())
		}
		return nil
	})
}

// confirm asks a yes/no question.
func confirm(title string) (bool, error) {
	var ok bool
	err := huh.NewConfirm().
		Title(title).
		Affirmative("Yes").
		Negative("No").
		Value(&ok).
		Run()
	if errors.Is(err, huh.ErrUserAborted) {
		return false, nil
	}
	return ok, err
}
