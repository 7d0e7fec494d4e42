package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
	"github.com/tessro/encore/internal/tail"
)

var (
	tailNoEmoji   bool
	tailTimestamp bool
	tailFormat    string
	tailHistory   int
)

// addTailFlags registers the event formatting flags used by --follow.
func addTailFlags(cmd *cobra.Command) {
	cmd.Flags().BoolVar(&tailNoEmoji, "no-emoji", false, "disable emoji output")
	cmd.Flags().BoolVarP(&tailTimestamp, "timestamp", "t", false, "show timestamps")
	cmd.Flags().StringVar(&tailFormat, "format", "", "custom event template, e.g. '{{.Artist}} - {{.Title}}'")
	cmd.Flags().IntVar(&tailHistory, "history", 5, "recently played songs to print before following")
}

// follow prints playback events until ctx is done.
func follow(ctx context.Context, a *app.App) error {
	formatter := tail.NewFormatter(
		tail.WithEmoji(!tailNoEmoji && GetOutputMode() == OutputNormal),
		tail.WithTimestamp(tailTimestamp),
		tail.WithTemplate(tailFormat),
	)

	showRecent(ctx, a)

	watcher := tail.NewWatcher(a.Engine)
	errCh := make(chan error, 1)
	go func() {
		errCh <- watcher.Start(ctx)
	}()

	for {
		select {
		case event, ok := <-watcher.Events():
			if !ok {
				return waitErr(<-errCh)
			}
			fmt.Fprintln(stdout, formatter.Format(event))
		case err := <-errCh:
			return waitErr(err)
		}
	}
}

func waitErr(err error) error {
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// showRecent prints recently played songs, oldest first, so the newest is
// just above the live events.
func showRecent(ctx context.Context, a *app.App) {
	if tailHistory <= 0 {
		return
	}
	history, err := a.Engine.GetRecentlyPlayed(ctx, tailHistory)
	if err != nil {
		return
	}
	for i := len(history) - 1; i >= 0; i-- {
		entry := history[i]
		if entry.Song == nil {
			continue
		}
		timestamp := ""
		if tailTimestamp {
			timestamp = entry.PlayedAt.Local().Format("15:04:05") + " "
		}
		emoji := ""
		if !tailNoEmoji {
			emoji = "⏪ "
		}
		fmt.Fprintf(stdout, "%s%s%s\n", timestamp, emoji, songLine(*entry.Song))
	}
}
