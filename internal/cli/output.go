package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	"github.com/tessro/encore/internal/core"
)

// OutputMode represents the output format.
type OutputMode int

const (
	OutputNormal OutputMode = iota
	OutputMinimal
	OutputJSON
)

var stdout io.Writer = os.Stdout

// GetOutputMode returns the current output mode. Piped output drops the
// decorations meant for a terminal.
func GetOutputMode() OutputMode {
	if JSONOutput() {
		return OutputJSON
	}
	if !isTerminal(os.Stdout) {
		return OutputMinimal
	}
	return OutputNormal
}

// isTerminal reports whether f is an interactive terminal.
func isTerminal(f *os.File) bool {
	fd := f.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

// Interactive reports whether prompts can be shown.
func Interactive() bool {
	return !JSONOutput() && isTerminal(os.Stdin) && isTerminal(os.Stdout)
}

func printJSON(v any) error {
	enc := json.NewEncoder(stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// Table provides a simple table formatter.
type Table struct {
	w *tabwriter.Writer
}

// NewTable creates a new table with the given headers.
func NewTable(headers ...string) *Table {
	return NewTableWriter(stdout, headers...)
}

// NewTableWriter creates a table writing to a specific writer.
func NewTableWriter(out io.Writer, headers ...string) *Table {
	t := &Table{w: tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)}
	if len(headers) > 0 && GetOutputMode() != OutputMinimal {
		_, _ = t.w.Write([]byte(strings.Join(headers, "\t") + "\n"))
	}
	return t
}

// Row adds a row to the table.
func (t *Table) Row(values ...string) {
	_, _ = t.w.Write([]byte(strings.Join(values, "\t") + "\n"))
}

// Flush writes the table output.
func (t *Table) Flush() {
	_ = t.w.Flush()
}

// NormalF prints formatted output followed by a newline.
func NormalF(format string, args ...any) {
	_, _ = fmt.Fprintf(stdout, format+"\n", args...)
}

// StatusIcon returns an icon for the given boolean status.
func StatusIcon(active bool) string {
	if active {
		return "●"
	}
	return "○"
}

// TruncateString truncates a string to maxLen runes, adding "..." if truncated.
func TruncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:maxLen])
	}
	return string(r[:maxLen-3]) + "..."
}

// FormatDuration formats a duration as mm:ss or hh:mm:ss.
func FormatDuration(d time.Duration) string {
	seconds := max(int(d.Round(time.Second)/time.Second), 0)
	h := seconds / 3600
	m := (seconds % 3600) / 60
	s := seconds % 60

	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// FormatBytes formats a byte count for people.
func FormatBytes(n int64) string {
	return humanize.Bytes(uint64(max(n, 0)))
}

// FormatAgo formats a past time relative to now.
func FormatAgo(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return humanize.Time(t)
}

// songJSON is the JSON shape of a song in command output.
type songJSON struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Artist   string `json:"artist,omitempty"`
	Album    string `json:"album,omitempty"`
	Duration string `json:"duration,omitempty"`
	Cached   bool   `json:"cached"`
}

func toSongJSON(s core.Song, cached bool) songJSON {
	out := songJSON{
		ID:     s.ID,
		Name:   s.Name,
		Artist: s.ArtistNames(),
		Album:  s.Album.Name,
		Cached: cached,
	}
	if d := s.Length(); d > 0 {
		out.Duration = FormatDuration(d)
	}
	return out
}

// songLine renders "Name — Artist" for terminal output.
func songLine(s core.Song) string {
	if artists := s.ArtistNames(); artists != "" {
		return s.Name + " — " + artists
	}
	return s.Name
}
