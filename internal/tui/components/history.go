package components

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/encore/internal/core"
	"github.com/tessro/encore/internal/tui/styles"
)

// History displays recently played songs
type History struct {
	now func() time.Time
}

// NewHistory creates a new History component
func NewHistory() *History {
	return &History{now: time.Now}
}

// Render renders the history panel
func (h *History) Render(entries []core.HistoryEntry, width, height int, focused bool) string {
	title := styles.PanelTitle("Recently Played", focused)

	var content string
	if len(entries) == 0 {
		content = styles.Muted.Render("No history yet")
	} else {
		content = h.renderHistory(entries, width-4, height-4)
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

func (h *History) renderHistory(entries []core.HistoryEntry, width, maxLines int) string {
	lines := make([]string, 0, maxLines)

	// icon + spaces + " — " + time padding
	const overhead = 14

	for _, entry := range entries {
		if len(lines) >= maxLines {
			break
		}
		song := entry.Song
		if song == nil {
			continue
		}

		ago := formatTimeAgo(entry.PlayedAt, h.now())
		name, artist := fit(song.Name, song.PrimaryArtist(), width-overhead-len(ago), 8)

		info := fmt.Sprintf("%s — %s", name, artist)
		padding := max(width-2-lipgloss.Width(info)-len(ago), 1)

		lines = append(lines, fmt.Sprintf("%s %s%s%s",
			styles.Dim.Render("✓"),
			info,
			lipgloss.NewStyle().Width(padding).Render(""),
			styles.Dim.Render(ago)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}

func formatTimeAgo(t, now time.Time) string {
	d := now.Sub(t)

	if d < time.Minute {
		return "now"
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm", int(d.Minutes()))
	}
	if d < 24*time.Hour {
		return fmt.Sprintf("%dh", int(d.Hours()))
	}
	return t.Format("Jan 2")
}
