package styles

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Palette is the set of colors a theme is built from.
type Palette struct {
	Primary   lipgloss.Color
	Accent    lipgloss.Color
	Playing   lipgloss.Color
	Warning   lipgloss.Color
	Error     lipgloss.Color
	Border    lipgloss.Color
	Text      lipgloss.Color
	TextMuted lipgloss.Color
	TextDim   lipgloss.Color
	Selected  lipgloss.Color
}

var (
	Dark = Palette{
		Primary:   lipgloss.Color("#7C3AED"), // Purple
		Accent:    lipgloss.Color("#F59E0B"), // Amber
		Playing:   lipgloss.Color("#10B981"), // Green
		Warning:   lipgloss.Color("#F59E0B"),
		Error:     lipgloss.Color("#EF4444"),
		Border:    lipgloss.Color("#4B5563"),
		Text:      lipgloss.Color("#F9FAFB"),
		TextMuted: lipgloss.Color("#9CA3AF"),
		TextDim:   lipgloss.Color("#6B7280"),
		Selected:  lipgloss.Color("#374151"),
	}

	Light = Palette{
		Primary:   lipgloss.Color("#6D28D9"),
		Accent:    lipgloss.Color("#B45309"),
		Playing:   lipgloss.Color("#047857"),
		Warning:   lipgloss.Color("#B45309"),
		Error:     lipgloss.Color("#B91C1C"),
		Border:    lipgloss.Color("#D1D5DB"),
		Text:      lipgloss.Color("#111827"),
		TextMuted: lipgloss.Color("#4B5563"),
		TextDim:   lipgloss.Color("#6B7280"),
		Selected:  lipgloss.Color("#E5E7EB"),
	}
)

// Text styles
var (
	Title     lipgloss.Style
	Subtitle  lipgloss.Style
	Label     lipgloss.Style
	Highlight lipgloss.Style
	Muted     lipgloss.Style
	Dim       lipgloss.Style
	Playing   lipgloss.Style
	Paused    lipgloss.Style
	Badge     lipgloss.Style
	ErrorText lipgloss.Style
	Selected  lipgloss.Style
)

// Border styles
var (
	BorderStyle   lipgloss.Style
	FocusedBorder lipgloss.Style
)

var current = Dark

func init() {
	apply(Dark)
}

// Use switches the active theme. "light" selects the light palette, "dark"
// the dark one, and anything else follows the terminal background.
func Use(theme string) {
	switch theme {
	case "light":
		apply(Light)
	case "dark":
		apply(Dark)
	default:
		if lipgloss.HasDarkBackground() {
			apply(Dark)
		} else {
			apply(Light)
		}
	}
}

// Current returns the active palette.
func Current() Palette {
	return current
}

func apply(p Palette) {
	current = p

	Title = lipgloss.NewStyle().Bold(true).Foreground(p.Text)
	Subtitle = lipgloss.NewStyle().Foreground(p.TextMuted)
	Label = lipgloss.NewStyle().Foreground(p.TextDim)
	Highlight = lipgloss.NewStyle().Bold(true).Foreground(p.Primary)
	Muted = lipgloss.NewStyle().Foreground(p.TextMuted)
	Dim = lipgloss.NewStyle().Foreground(p.TextDim)
	Playing = lipgloss.NewStyle().Foreground(p.Playing)
	Paused = lipgloss.NewStyle().Foreground(p.Warning)
	Badge = lipgloss.NewStyle().Bold(true).Foreground(p.Accent)
	ErrorText = lipgloss.NewStyle().Foreground(p.Error)
	Selected = lipgloss.NewStyle().Background(p.Selected)

	BorderStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Border)
	FocusedBorder = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(p.Primary)
}

// Panel creates a styled panel with optional focus
func Panel(focused bool) lipgloss.Style {
	if focused {
		return FocusedBorder.Padding(0, 1)
	}
	return BorderStyle.Padding(0, 1)
}

// PanelTitle creates a styled panel title
func PanelTitle(title string, focused bool) string {
	style := Label
	if focused {
		style = Highlight
	}
	return style.Render(" " + title + " ")
}

// ProgressBar creates a progress bar string
func ProgressBar(percent float64, width int) string {
	filled := int(percent / 100 * float64(width))
	filled = max(0, min(filled, width))

	filledStyle := lipgloss.NewStyle().Foreground(current.Primary)
	emptyStyle := lipgloss.NewStyle().Foreground(current.Border)

	return filledStyle.Render(strings.Repeat("━", filled)) +
		emptyStyle.Render(strings.Repeat("─", width-filled))
}

// StatusIcon returns an icon for playback status
func StatusIcon(playing bool) string {
	if playing {
		return Playing.Render("▶")
	}
	return Paused.Render("⏸")
}

// SourceBadge labels where the current audio comes from.
func SourceBadge(fromCache, offline bool) string {
	switch {
	case offline:
		return Badge.Render("OFFLINE")
	case fromCache:
		return Badge.Render("CACHED")
	default:
		return Dim.Render("STREAM")
	}
}
