package components

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/tessro/encore/internal/core"
	"github.com/tessro/encore/internal/tui/styles"
)

// Queue displays the play queue
type Queue struct {
	offset   int
	selected int
}

// NewQueue creates a new Queue component
func NewQueue() *Queue {
	return &Queue{}
}

// SelectNext moves the selection down, bounded by n entries.
func (q *Queue) SelectNext(n int) {
	if q.selected < n-1 {
		q.selected++
	}
}

// SelectPrev moves the selection up.
func (q *Queue) SelectPrev() {
	if q.selected > 0 {
		q.selected--
	}
}

// Select moves the selection to index i.
func (q *Queue) Select(i int) {
	q.selected = max(i, 0)
}

// Selected returns the selected index
func (q *Queue) Selected() int {
	return q.selected
}

// Clamp keeps the selection within a queue of n entries.
func (q *Queue) Clamp(n int) {
	if q.selected >= n {
		q.selected = max(n-1, 0)
	}
}

// Render renders the queue panel
func (q *Queue) Render(queue *core.Queue, width, height int, focused bool) string {
	title := styles.PanelTitle("Queue", focused)

	var content string
	if queue.IsEmpty() {
		content = styles.Muted.Render("Queue is empty")
	} else {
		title = styles.PanelTitle(fmt.Sprintf("Queue (%d)", queue.Len()), focused)
		content = q.renderQueue(queue, width-4, height-4, focused)
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

func (q *Queue) renderQueue(queue *core.Queue, width, maxLines int, focused bool) string {
	entries := queue.Entries
	q.Clamp(len(entries))

	// Leave room for the "more" indicator
	visible := max(maxLines-1, 1)

	// Keep the selection on screen
	if q.selected < q.offset {
		q.offset = q.selected
	}
	if q.selected >= q.offset+visible {
		q.offset = q.selected - visible + 1
	}
	if q.offset >= len(entries) {
		q.offset = 0
	}

	start := q.offset
	end := min(start+visible, len(entries))

	lines := make([]string, 0, end-start+1)

	// "XX. " + "▶ " + " — "
	const overhead = 9

	for i := start; i < end; i++ {
		song := entries[i].Song
		num := fmt.Sprintf("%2d.", i+1)
		name, artist := fit(song.Name, song.PrimaryArtist(), width-overhead, 10)

		var line string
		if i == queue.CurrentIndex {
			line = styles.Playing.Render(fmt.Sprintf("%s ▶ %s — %s", num, name, artist))
		} else {
			line = fmt.Sprintf("%s   %s — %s",
				styles.Dim.Render(num),
				name,
				styles.Muted.Render(artist))
		}
		if focused && i == q.selected {
			line = styles.Selected.Render(line)
		}

		lines = append(lines, line)
	}

	if end < len(entries) {
		lines = append(lines, styles.Dim.Render(fmt.Sprintf("    ... and %d more", len(entries)-end)))
	}

	return lipgloss.JoinVertical(lipgloss.Left, lines...)
}
