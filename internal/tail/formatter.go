package tail

import (
	"bytes"
	"fmt"
	"math"
	"strings"
	"text/template"
	"time"

	"github.com/tessro/encore/internal/core"
)

// Formatter formats events for output.
type Formatter struct {
	showEmoji     bool
	showTimestamp bool
	template      *template.Template
}

// FormatterOption configures a Formatter.
type FormatterOption func(*Formatter)

// WithEmoji enables emoji output.
func WithEmoji(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showEmoji = enabled
	}
}

// WithTimestamp enables timestamp output.
func WithTimestamp(enabled bool) FormatterOption {
	return func(f *Formatter) {
		f.showTimestamp = enabled
	}
}

// WithTemplate sets a custom format template. An invalid template is ignored.
func WithTemplate(tmpl string) FormatterOption {
	return func(f *Formatter) {
		if tmpl == "" {
			return
		}
		if t, err := template.New("format").Parse(tmpl); err == nil {
			f.template = t
		}
	}
}

// NewFormatter creates a new formatter with the given options.
func NewFormatter(opts ...FormatterOption) *Formatter {
	f := &Formatter{showEmoji: true}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Format formats an event as a string.
func (f *Formatter) Format(e Event) string {
	if f.template != nil {
		return f.formatTemplate(e)
	}
	return f.formatLine(e)
}

func (f *Formatter) formatLine(e Event) string {
	var parts []string
	if f.showTimestamp {
		parts = append(parts, e.Timestamp.Format("15:04:05"))
	}
	if f.showEmoji {
		parts = append(parts, eventEmoji(e.Type))
	}
	parts = append(parts, eventDescription(e))
	return strings.Join(parts, " ")
}

type templateData struct {
	Type      string
	Emoji     string
	Timestamp time.Time
	Time      string
	ID        string
	Title     string
	Artist    string
	Album     string
	Volume    int
	Offline   bool
	Cached    bool
}

func (f *Formatter) formatTemplate(e Event) string {
	data := templateData{
		Type:      eventTypeName(e.Type),
		Emoji:     eventEmoji(e.Type),
		Timestamp: e.Timestamp,
		Time:      e.Timestamp.Format("15:04:05"),
	}
	if e.Current != nil {
		data.Volume = volumePercent(e.Current.Volume)
		data.Offline = e.Current.Offline
		data.Cached = e.Current.FromCache
		if s := e.Current.CurrentSong; s != nil {
			data.ID = s.ID
			data.Title = s.Name
			data.Artist = s.ArtistNames()
			data.Album = s.Album.Name
		}
	}

	var buf bytes.Buffer
	if err := f.template.Execute(&buf, data); err != nil {
		return f.formatLine(e)
	}
	return buf.String()
}

func volumePercent(v float64) int {
	return int(math.Round(v * 100))
}

func songLabel(s *core.Song) string {
	if artist := s.ArtistNames(); artist != "" {
		return artist + " - " + s.Name
	}
	return s.Name
}

func eventDescription(e Event) string {
	switch e.Type {
	case EventSongChange:
		if e.Current != nil && e.Current.CurrentSong != nil {
			label := "Now playing: " + songLabel(e.Current.CurrentSong)
			if e.Current.FromCache {
				label += " (offline copy)"
			}
			return label
		}
		return "Song changed"

	case EventSongComplete:
		if e.Previous != nil && e.Previous.CurrentSong != nil {
			return "Finished: " + songLabel(e.Previous.CurrentSong)
		}
		return "Song completed"

	case EventSongSkip:
		if e.Previous != nil && e.Previous.CurrentSong != nil {
			return "Skipped: " + songLabel(e.Previous.CurrentSong)
		}
		return "Song skipped"

	case EventPause:
		return "Paused"

	case EventResume:
		return "Resumed"

	case EventVolumeChange:
		if e.Current != nil {
			return fmt.Sprintf("Volume: %d%%", volumePercent(e.Current.Volume))
		}
		return "Volume changed"

	case EventNetworkChange:
		if e.Current != nil && e.Current.Offline {
			return "Offline: only downloaded songs will play"
		}
		return "Back online"

	case EventStop:
		return "Stopped"

	default:
		return "Unknown event"
	}
}

func eventEmoji(t EventType) string {
	switch t {
	case EventSongChange:
		return "🎵"
	case EventSongComplete:
		return "✅"
	case EventSongSkip:
		return "⏭️"
	case EventPause:
		return "⏸️"
	case EventResume:
		return "▶️"
	case EventVolumeChange:
		return "🔊"
	case EventNetworkChange:
		return "📡"
	case EventStop:
		return "⏹️"
	default:
		return "❓"
	}
}

func eventTypeName(t EventType) string {
	switch t {
	case EventSongChange:
		return "song_change"
	case EventSongComplete:
		return "song_complete"
	case EventSongSkip:
		return "song_skip"
	case EventPause:
		return "pause"
	case EventResume:
		return "resume"
	case EventVolumeChange:
		return "volume_change"
	case EventNetworkChange:
		return "network_change"
	case EventStop:
		return "stop"
	default:
		return "unknown"
	}
}
