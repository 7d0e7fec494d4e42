package cli

import (
	"context"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/notify"
	"github.com/tessro/encore/internal/tui"
)

var tuiCmd = &cobra.Command{
	Use:     "ui [id...]",
	Aliases: []string{"tui"},
	Short:   "Launch the interactive player",
	Long: `Launch the interactive terminal player.

The dashboard provides a live view with:
  • Now Playing - current song, progress, stream or cached source
  • Queue - the play queue, with reordering and removal
  • Offline - downloaded songs and storage used
  • Recently Played - playback history

Arguments, if any, replace the queue before the dashboard opens.

Keyboard shortcuts:
  q, Ctrl+C    Quit
  ?            Help
  /            Search
  Space        Play/Pause
  n / p        Next / previous song
  ←/→          Seek
  +/-          Volume up/down
  D            Download current song
  Tab          Switch panel`,
	Annotations: map[string]string{annotationOwnsTerminal: ""},
	RunE:        runTUI,
}

func init() {
	rootCmd.AddCommand(tuiCmd)
}

func runTUI(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	notes := notify.NewChannel(32)
	a, err := openApp(ctx, openPlayer, notes)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	a.Start(ctx)

	if len(args) > 0 {
		songs, err := a.Songs(ctx, args)
		if err != nil {
			return err
		}
		if err := a.PlaySongs(ctx, songs, 0); err != nil {
			return err
		}
	}

	return tui.Run(a, notes.C())
}
