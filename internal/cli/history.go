package cli

import (
	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
)

var (
	historyLimit    int
	historySearches bool
	historyClear    bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recently played songs",
	Long: `Show recently played songs, newest first.

Examples:
  encore history
  encore history --searches
  encore history --clear`,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "l", 20, "Maximum number of entries to show")
	historyCmd.Flags().BoolVar(&historySearches, "searches", false, "show recent searches instead")
	historyCmd.Flags().BoolVar(&historyClear, "clear", false, "forget play and search history")
	historyCmd.MarkFlagsMutuallyExclusive("searches", "clear")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		switch {
		case historyClear:
			if err := a.Prefs.ClearHistory(); err != nil {
				return err
			}
			return report("cleared", "History cleared")

		case historySearches:
			searches, err := a.Prefs.SearchHistory()
			if err != nil {
				return err
			}
			if JSONOutput() {
				return printJSON(map[string]any{"searches": searches})
			}
			for _, q := range searches {
				NormalF("%s", q)
			}
			return nil
		}

		entries, err := a.Engine.GetRecentlyPlayed(ctx, historyLimit)
		if err != nil {
			return err
		}

		if JSONOutput() {
			out := make([]map[string]any, 0, len(entries))
			for _, e := range entries {
				if e.Song == nil {
					continue
				}
				out = append(out, map[string]any{
					"song":      toSongJSON(*e.Song, a.Cache.IsCached(e.Song.ID)),
					"played_at": e.PlayedAt,
				})
			}
			return printJSON(map[string]any{"history": out})
		}

		if len(entries) == 0 {
			NormalF("No history yet")
			return nil
		}
		table := NewTable("PLAYED", "SONG", "ID")
		for _, e := range entries {
			if e.Song == nil {
				continue
			}
			table.Row(FormatAgo(e.PlayedAt), TruncateString(songLine(*e.Song), 60), e.Song.ID)
		}
		table.Flush()
		return nil
	})
}
