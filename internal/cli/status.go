package cli

import (
	"errors"
	"strings"

	"github.com/samber/lo"
	"github.com/spf13/cobra"
	apperrors "github.com/tessro/encore/internal/errors"
	"github.com/tessro/encore/internal/mediasession"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show current playback status",
	Long:  `Shows what the player running in another terminal is playing.`,
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	p, err := dialPlayer()
	if errors.Is(err, apperrors.ErrPlayerNotRunning) {
		if JSONOutput() {
			return printJSON(map[string]any{
				"playing": false,
				"message": "No active playback",
			})
		}
		NormalF("No active playback")
		return nil
	}
	if err != nil {
		return err
	}
	defer func() { _ = p.Close() }()

	st, err := p.Status(ctx)
	if err != nil {
		return err
	}

	if JSONOutput() {
		return printJSON(statusJSON(st))
	}
	printStatus(st)
	return nil
}

func statusJSON(st mediasession.RemoteStatus) map[string]any {
	out := map[string]any{
		"playing": st.Status == mediasession.StatusPlaying,
		"status":  string(st.Status),
		"volume":  volumePercent(st.Volume),
	}
	if st.HasTrack() {
		out["song"] = map[string]any{
			"title":    st.Title,
			"artist":   st.Artist,
			"album":    st.Album,
			"duration": FormatDuration(st.Length),
		}
		out["position"] = FormatDuration(st.Position)
		out["progress_percent"] = progressPercent(st)
	}
	return out
}

func printStatus(st mediasession.RemoteStatus) {
	if !st.HasTrack() {
		NormalF("No song loaded")
		return
	}

	playIcon := "▶"
	if st.Status != mediasession.StatusPlaying {
		playIcon = "⏸"
	}
	NormalF("%s %s", playIcon, st.Title)
	if st.Artist != "" || st.Album != "" {
		NormalF("  %s", strings.Join(lo.Compact([]string{st.Artist, st.Album}), " — "))
	}
	NormalF("  %s %s / %s", formatProgressBar(progressPercent(st), 30), FormatDuration(st.Position), FormatDuration(st.Length))
	NormalF("  🔊 %d%%", volumePercent(st.Volume))
}

func progressPercent(st mediasession.RemoteStatus) float64 {
	if st.Length <= 0 {
		return 0
	}
	return min(float64(st.Position)/float64(st.Length)*100, 100)
}

func formatProgressBar(percent float64, width int) string {
	filled := max(0, min(int(percent/100*float64(width)), width))
	return strings.Repeat("━", filled) + strings.Repeat("─", width-filled)
}
