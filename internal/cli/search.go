package cli

import (
	"strings"

	"github.com/spf13/cobra"
	"github.com/tessro/encore/internal/app"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Search the catalog",
	Long: `Search the catalog for songs. While offline, downloaded songs are
searched by name and artist instead.

Examples:
  encore search "starlight"
  encore search --limit 5 nova`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "l", 10, "Maximum number of results")
	rootCmd.AddCommand(searchCmd)
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withStorage(ctx, func(a *app.App) error {
		a.Monitor.Check(ctx)

		songs, err := a.Search(ctx, strings.Join(args, " "), searchLimit)
		if err != nil {
			return err
		}

		if JSONOutput() {
			out := make([]songJSON, len(songs))
			for i, s := range songs {
				out[i] = toSongJSON(s, a.Cache.IsCached(s.ID))
			}
			return printJSON(map[string]any{"results": out})
		}

		if len(songs) == 0 {
			NormalF("No results found")
			return nil
		}
		table := NewTable("ID", "SONG", "ALBUM", "", "")
		for _, s := range songs {
			table.Row(s.ID, TruncateString(songLine(s), 50), TruncateString(s.Album.Name, 30),
				FormatDuration(s.Length()), StatusIcon(a.Cache.IsCached(s.ID)))
		}
		table.Flush()
		return nil
	})
}
