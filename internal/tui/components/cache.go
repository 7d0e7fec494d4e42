package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"
	"github.com/samber/lo"
	"github.com/tessro/encore/internal/cache"
	"github.com/tessro/encore/internal/tui/styles"
)

// Cache lists the songs stored for offline play.
type Cache struct {
	selected int
}

// NewCache creates a new Cache component
func NewCache() *Cache {
	return &Cache{}
}

// SelectNext moves the selection down, bounded by n entries.
func (c *Cache) SelectNext(n int) {
	if c.selected < n-1 {
		c.selected++
	}
}

// SelectPrev moves the selection up.
func (c *Cache) SelectPrev() {
	if c.selected > 0 {
		c.selected--
	}
}

// Selected returns the selected index
func (c *Cache) Selected() int {
	return c.selected
}

// Render renders the cache panel. downloading marks an active download.
func (c *Cache) Render(songs []cache.CachedSong, downloading bool, width, height int, focused bool) string {
	if c.selected >= len(songs) {
		c.selected = max(len(songs)-1, 0)
	}

	total := lo.SumBy(songs, func(s cache.CachedSong) int64 { return s.Size() })
	heading := fmt.Sprintf("Offline (%d · %s)", len(songs), humanize.Bytes(uint64(total)))
	if downloading {
		heading += " ⇣"
	}
	title := styles.PanelTitle(heading, focused)

	var content string
	if len(songs) == 0 {
		content = styles.Muted.Render("No songs downloaded")
	} else {
		content = c.renderSongs(songs, width-4, height-4, focused)
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

func (c *Cache) renderSongs(songs []cache.CachedSong, width, maxLines int, focused bool) string {
	start := 0
	if c.selected >= maxLines {
		start = c.selected - maxLines + 1
	}
	end := min(start+maxLines, len(songs))

	lines := make([]string, 0, end-start)
	for i := start; i < end; i++ {
		s := songs[i]
		size := humanize.Bytes(uint64(s.Size()))
		name := truncate(s.Metadata.Name, max(width-len(size)-4, 1))

		padding := max(width-2-lipgloss.Width(name)-len(size), 1)
		marker := "  "
		if focused && i == c.selected {
			marker = styles.Highlight.Render("> ")
		}
		line := marker + name + lipgloss.NewStyle().Width(padding).Render("") + styles.Dim.Render(size)
		if !s.HasAudio() {
			line = styles.Dim.Render(marker + name + " (metadata only)")
		}
		lines = append(lines, line)
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
