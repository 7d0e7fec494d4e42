package core

import (
	"strings"
	"time"
)

// SongKind discriminates between the two shapes of song the catalog returns.
type SongKind string

const (
	// SongKindSummary is a search result: no download URLs are guaranteed.
	SongKindSummary SongKind = "summary"
	// SongKindDetailed is a full getSongById record.
	SongKindDetailed SongKind = "detailed"
)

// PreferredQuality is the download variant picked when available.
const PreferredQuality = "320kbps"

// Artist is an artist credit on a song.
type Artist struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Role  string `json:"role,omitempty"`
	URL   string `json:"url,omitempty"`
	Image []Link `json:"image,omitempty"`
}

// Artists groups artist credits by role.
type Artists struct {
	Primary  []Artist `json:"primary"`
	Featured []Artist `json:"featured"`
	All      []Artist `json:"all"`
}

// AlbumRef is the album a song belongs to.
type AlbumRef struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
}

// Link is a quality-tagged URL, used for both image and download variants.
type Link struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
}

// Song is a playable catalog entry.
type Song struct {
	Kind        SongKind `json:"kind"`
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Duration    *int     `json:"duration"`
	Album       AlbumRef `json:"album"`
	Artists     Artists  `json:"artists"`
	Image       []Link   `json:"image"`
	DownloadURL []Link   `json:"downloadUrl"`
}

// IsDetailed reports whether the song carries download URLs.
func (s *Song) IsDetailed() bool {
	return s != nil && (s.Kind == SongKindDetailed || len(s.DownloadURL) > 0)
}

// Length returns the catalog duration, or zero when unknown.
func (s *Song) Length() time.Duration {
	if s == nil || s.Duration == nil {
		return 0
	}
	return time.Duration(*s.Duration) * time.Second
}

// PrimaryArtist returns the first primary artist name.
func (s *Song) PrimaryArtist() string {
	if s == nil {
		return ""
	}
	if len(s.Artists.Primary) > 0 {
		return s.Artists.Primary[0].Name
	}
	if len(s.Artists.All) > 0 {
		return s.Artists.All[0].Name
	}
	return ""
}

// ArtistNames joins the primary artists with ", ".
func (s *Song) ArtistNames() string {
	if s == nil {
		return ""
	}
	names := make([]string, 0, len(s.Artists.Primary))
	for _, a := range s.Artists.Primary {
		names = append(names, a.Name)
	}
	if len(names) == 0 {
		return s.PrimaryArtist()
	}
	return strings.Join(names, ", ")
}

// PreferredDownloadURL returns the URL for quality if present, otherwise the
// highest-index (best) variant. Empty when the song has no download URLs.
func (s *Song) PreferredDownloadURL(quality string) string {
	if s == nil || len(s.DownloadURL) == 0 {
		return ""
	}
	for _, d := range s.DownloadURL {
		if d.Quality == quality {
			return d.URL
		}
	}
	return s.DownloadURL[len(s.DownloadURL)-1].URL
}

// BestDownloadURL returns the highest-quality download variant.
func (s *Song) BestDownloadURL() string {
	if s == nil || len(s.DownloadURL) == 0 {
		return ""
	}
	return s.DownloadURL[len(s.DownloadURL)-1].URL
}

// LargestImage returns the highest-resolution image variant.
func (s *Song) LargestImage() (Link, bool) {
	if s == nil || len(s.Image) == 0 {
		return Link{}, false
	}
	return s.Image[len(s.Image)-1], true
}

// Clone returns a deep copy so cached metadata never aliases catalog data.
func (s *Song) Clone() *Song {
	if s == nil {
		return nil
	}
	c := *s
	if s.Duration != nil {
		d := *s.Duration
		c.Duration = &d
	}
	c.Artists = Artists{
		Primary:  cloneArtists(s.Artists.Primary),
		Featured: cloneArtists(s.Artists.Featured),
		All:      cloneArtists(s.Artists.All),
	}
	c.Image = append([]Link(nil), s.Image...)
	c.DownloadURL = append([]Link(nil), s.DownloadURL...)
	return &c
}

func cloneArtists(in []Artist) []Artist {
	if in == nil {
		return nil
	}
	out := make([]Artist, len(in))
	for i, a := range in {
		a.Image = append([]Link(nil), a.Image...)
		out[i] = a
	}
	return out
}

// SongIDs returns the IDs of songs in order.
func SongIDs(songs []Song) []string {
	ids := make([]string, len(songs))
	for i, s := range songs {
		ids[i] = s.ID
	}
	return ids
}
