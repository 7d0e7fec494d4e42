package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/encore/internal/core"
	"github.com/tessro/encore/internal/tui/styles"
)

// NowPlaying displays the current song
type NowPlaying struct{}

// NewNowPlaying creates a new NowPlaying component
func NewNowPlaying() *NowPlaying {
	return &NowPlaying{}
}

// Render renders the now playing panel
func (n *NowPlaying) Render(state *core.PlaybackState, shuffle bool, width, height int, focused bool) string {
	title := styles.PanelTitle("Now Playing", focused)

	var content string
	if !state.HasSong() {
		content = styles.Muted.Render("Nothing playing")
		if state != nil && state.Offline {
			content += "  " + styles.SourceBadge(false, true)
		}
	} else {
		content = n.renderSong(state, shuffle, width-4)
	}

	panel := styles.Panel(focused).
		Width(width).
		Height(height)

	return panel.Render(lipgloss.JoinVertical(lipgloss.Left,
		title,
		"",
		content,
	))
}

func (n *NowPlaying) renderSong(state *core.PlaybackState, shuffle bool, width int) string {
	song := state.CurrentSong

	icon := styles.StatusIcon(state.IsPlaying)
	title := styles.Title.Width(max(width-4, 1)).Render(song.Name)

	artist := styles.Subtitle.Render(song.ArtistNames())
	album := styles.Dim.Render(song.Album.Name)

	// Account for the times on either side
	progressWidth := max(width-14, 10)
	duration := state.Duration
	if duration <= 0 {
		duration = song.Length()
	}
	progress := fmt.Sprintf("%s %s %s",
		formatDuration(state.CurrentTime),
		styles.ProgressBar(state.ProgressPercent(), progressWidth),
		formatDuration(duration))

	info := fmt.Sprintf("🔊 %d%%", int(state.Volume*100+0.5))
	if shuffle {
		info += "  🔀"
	}
	info = styles.Muted.Render(info) + "  " + styles.SourceBadge(state.FromCache, state.Offline)

	return lipgloss.JoinVertical(lipgloss.Left,
		icon+" "+title,
		"  "+artist,
		"  "+album,
		"",
		progress,
		"",
		info,
		n.renderControls(state),
	)
}

func (n *NowPlaying) renderControls(state *core.PlaybackState) string {
	controls := styles.Dim.Render("⏮ ")
	if state.IsPlaying {
		controls += styles.Playing.Render("⏸")
	} else {
		controls += styles.Paused.Render("▶")
	}
	controls += styles.Dim.Render(" ⏭")

	return lipgloss.NewStyle().
		Align(lipgloss.Center).
		Render(controls)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	m := d / time.Minute
	s := (d % time.Minute) / time.Second
	return fmt.Sprintf("%d:%02d", m, s)
}

// truncate shortens s to at most max runes, marking the cut with "...".
func truncate(s string, max int) string {
	if max <= 0 {
		return ""
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 3 {
		return string(r[:max])
	}
	return string(r[:max-3]) + "..."
}

// fit splits the available width between a title and an artist, giving the
// artist at least a third (and never less than floor runes).
func fit(title, artist string, available, floor int) (string, string) {
	tl, al := len([]rune(title)), len([]rune(artist))
	if tl+al <= available {
		return title, artist
	}
	minArtist := max(available/3, floor)
	minArtist = min(minArtist, available-floor)
	artistSpace := min(al, minArtist)
	return truncate(title, available-artistSpace), truncate(artist, artistSpace)
}
