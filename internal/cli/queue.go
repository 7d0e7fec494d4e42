package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
)

var (
	queueLimit   int
	queueAddNext bool
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Manage the play queue",
	Long:  `View and manage the saved play queue. Positions start at 1.`,
	RunE:  runQueueList,
}

var queueShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the queue",
	RunE:  runQueueList,
}

var queueAddCmd = &cobra.Command{
	Use:   "add <id...>",
	Short: "Add songs to the queue",
	Long: `Add songs by catalog ID to the end of the queue, or after the
current song with --next. While offline only downloaded songs are added.

Examples:
  encore queue add 3IoDK8qI
  encore queue add --next 3IoDK8qI 8tLrCvQs`,
	Args: cobra.MinimumNArgs(1),
	RunE: runQueueAdd,
}

var queueRemoveCmd = &cobra.Command{
	Use:   "remove <position>",
	Short: "Remove a song from the queue",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueRemove,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Clear the queue",
	RunE:  runQueueClear,
}

var queueMoveCmd = &cobra.Command{
	Use:   "move <from> <to>",
	Short: "Move a song in the queue",
	Args:  cobra.ExactArgs(2),
	RunE:  runQueueMove,
}

var queueJumpCmd = &cobra.Command{
	Use:   "jump <position>",
	Short: "Make a queued song the current one",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueJump,
}

func init() {
	queueCmd.Flags().IntVarP(&queueLimit, "limit", "l", 20, "Maximum number of songs to show")
	queueShowCmd.Flags().IntVarP(&queueLimit, "limit", "l", 20, "Maximum number of songs to show")
	queueAddCmd.Flags().BoolVar(&queueAddNext, "next", false, "insert after the current song")

	queueCmd.AddCommand(queueShowCmd)
	queueCmd.AddCommand(queueAddCmd)
	queueCmd.AddCommand(queueRemoveCmd)
	queueCmd.AddCommand(queueClearCmd)
	queueCmd.AddCommand(queueMoveCmd)
	queueCmd.AddCommand(queueJumpCmd)
	rootCmd.AddCommand(queueCmd)
}

// withStorage opens the App without audio and runs fn.
func withStorage(ctx context.Context, fn func(a *app.App) error) error {
	a, err := openApp(ctx, openStorage, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()
	return fn(a)
}

func runQueueList(cmd *cobra.Command, args []string) error {
	return withStorage(cmd.Context(), func(a *app.App) error {
		queue := a.Queue.Snapshot()

		if queue.IsEmpty() {
			if JSONOutput() {
				return printJSON(map[string]any{
					"queue":   []any{},
					"message": "Queue is empty",
				})
			}
			NormalF("Queue is empty")
			return nil
		}

		entries := queue.Entries
		if queueLimit > 0 && len(entries) > queueLimit {
			entries = entries[:queueLimit]
		}

		if JSONOutput() {
			output := make([]map[string]any, len(entries))
			for i, e := range entries {
				output[i] = map[string]any{
					"position": i + 1,
					"current":  i == queue.CurrentIndex,
					"song":     toSongJSON(e.Song, a.Cache.IsCached(e.Song.ID)),
				}
			}
			return printJSON(map[string]any{
				"queue":   output,
				"total":   queue.Len(),
				"shuffle": queue.ShuffleEnabled,
			})
		}

		if GetOutputMode() == OutputNormal {
			shuffle := ""
			if queue.ShuffleEnabled {
				shuffle = " (shuffle)"
			}
			NormalF("Queue%s:", shuffle)
		}
		for i, e := range entries {
			prefix := "  "
			if i == queue.CurrentIndex {
				prefix = "▶ "
			}
			cached := ""
			if a.Cache.IsCached(e.Song.ID) {
				cached = " ✓"
			}
			NormalF("%s%d. %s (%s)%s", prefix, i+1, songLine(e.Song), FormatDuration(e.Song.Length()), cached)
		}

		if queue.Len() > len(entries) {
			NormalF("\n... and %d more songs", queue.Len()-len(entries))
		}
		return nil
	})
}

func runQueueAdd(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		songs, err := a.Songs(ctx, args)
		if err != nil {
			return err
		}
		n, err := a.Enqueue(ctx, songs, queueAddNext)
		if err != nil {
			return err
		}

		if JSONOutput() {
			return printJSON(map[string]any{"status": "added", "count": n})
		}
		NormalF("Added %d of %d songs to the queue", n, len(songs))
		return nil
	})
}

func runQueueRemove(cmd *cobra.Command, args []string) error {
	pos, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	return withStorage(cmd.Context(), func(a *app.App) error {
		if err := a.Queue.RemoveAt(pos); err != nil {
			return err
		}
		return report("removed", "Removed song at position %d", pos+1)
	})
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	return withStorage(cmd.Context(), func(a *app.App) error {
		a.Queue.Clear()
		return report("cleared", "Queue cleared")
	})
}

func runQueueMove(cmd *cobra.Command, args []string) error {
	from, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	to, err := parsePosition(args[1])
	if err != nil {
		return err
	}
	return withStorage(cmd.Context(), func(a *app.App) error {
		if err := a.Queue.Reorder(from, to); err != nil {
			return err
		}
		return report("moved", "Moved %d → %d", from+1, to+1)
	})
}

func runQueueJump(cmd *cobra.Command, args []string) error {
	pos, err := parsePosition(args[0])
	if err != nil {
		return err
	}
	return withStorage(cmd.Context(), func(a *app.App) error {
		if err := a.Queue.Jump(pos); err != nil {
			return err
		}
		return report("jumped", "Position %d is now current", pos+1)
	})
}

// parsePosition converts a 1-based position argument to an index.
func parsePosition(arg string) (int, error) {
	n, err := strconv.Atoi(arg)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("invalid position: %s", arg)
	}
	return n - 1, nil
}

// report prints a one-line result, or {"status": status} as JSON.
func report(status, format string, args ...any) error {
	if JSONOutput() {
		return printJSON(map[string]string{"status": status})
	}
	NormalF(format, args...)
	return nil
}
