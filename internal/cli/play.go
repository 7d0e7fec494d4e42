package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
)

var (
	playNext    bool
	playAppend  bool
	playShuffle bool
	playSearch  bool
	playCached  bool
	playFollow  bool
	playStart   int
)

var playCmd = &cobra.Command{
	Use:   "play [id...]",
	Short: "Play songs in the foreground",
	Long: `Play songs by catalog ID and keep playing until interrupted.
Without arguments, resumes the saved queue.

Examples:
  encore play                     # Resume the saved queue
  encore play 3IoDK8qI 8tLrCvQs   # Replace the queue with two songs
  encore play --next 3IoDK8qI     # Play a song after the current one
  encore play --search "starlight" # Search and play the results
  encore play --cached --shuffle  # Shuffle everything downloaded
  encore play --follow            # Print playback events as they happen`,
	RunE: runPlay,
}

func init() {
	playCmd.Flags().BoolVar(&playNext, "next", false, "insert after the current song instead of replacing the queue")
	playCmd.Flags().BoolVar(&playAppend, "append", false, "append to the queue instead of replacing it")
	playCmd.Flags().BoolVar(&playShuffle, "shuffle", false, "enable shuffle")
	playCmd.Flags().BoolVarP(&playSearch, "search", "s", false, "treat arguments as a search query")
	playCmd.Flags().BoolVar(&playCached, "cached", false, "play every downloaded song")
	playCmd.Flags().BoolVarP(&playFollow, "follow", "f", false, "print playback events")
	playCmd.Flags().IntVar(&playStart, "start", 0, "queue position to start from when replacing the queue")
	addTailFlags(playCmd)
	playCmd.MarkFlagsMutuallyExclusive("next", "append")
	playCmd.MarkFlagsMutuallyExclusive("cached", "search")
	rootCmd.AddCommand(playCmd)
}

func runPlay(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := openApp(ctx, openPlayer, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.Start(ctx)
	if playShuffle {
		a.Queue.SetShuffle(true)
	}

	if err := startPlayback(ctx, a, args); err != nil {
		return err
	}

	st, _ := a.Engine.GetState(ctx)
	if st.HasSong() && GetOutputMode() == OutputNormal && !playFollow {
		NormalF("▶ %s", songLine(*st.CurrentSong))
		NormalF("  Press Ctrl+C to stop")
	}

	if playFollow {
		return follow(ctx, a)
	}
	<-ctx.Done()
	return nil
}

// startPlayback resolves args into songs, updates the queue, and starts
// the engine.
func startPlayback(ctx context.Context, a *app.App, args []string) error {
	switch {
	case playCached:
		return a.PlayCached(ctx)

	case len(args) == 0:
		return a.Engine.Play(ctx)
	}

	songs, err := songsFromArgs(ctx, a, args)
	if err != nil {
		return err
	}

	if playNext || playAppend {
		n, err := a.Enqueue(ctx, songs, playNext)
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.WithSuggestion(apperrors.ErrNotCached, "None of these songs are downloaded")
		}
		if JSONOutput() {
			_ = printJSON(map[string]any{"status": "queued", "count": n})
		}
		return a.Engine.Play(ctx)
	}

	if err := a.PlaySongs(ctx, songs, playStart); err != nil {
		return err
	}
	if JSONOutput() {
		out := make([]songJSON, len(songs))
		for i, s := range songs {
			out[i] = toSongJSON(s, a.Cache.IsCached(s.ID))
		}
		_ = printJSON(map[string]any{"status": "playing", "songs": out})
	}
	return nil
}

func songsFromArgs(ctx context.Context, a *app.App, args []string) ([]core.Song, error) {
	if !playSearch {
		return a.Songs(ctx, args)
	}
	query := strings.Join(args, " ")
	songs, err := a.Search(ctx, query, 20)
	if err != nil {
		return nil, err
	}
	if len(songs) == 0 {
		return nil, fmt.Errorf("no results found for '%s': %w", query, apperrors.ErrSongNotFound)
	}
	return songs, nil
}
