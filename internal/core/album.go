package core

// AlbumKind discriminates full album records from search results.
type AlbumKind string

const (
	AlbumKindAlbum        AlbumKind = "album"
	AlbumKindSearchResult AlbumKind = "search_result"
)

// Album is a catalog album. Songs is only populated for AlbumKindAlbum.
type Album struct {
	Kind    AlbumKind `json:"kind"`
	ID      string    `json:"id"`
	Name    string    `json:"name"`
	Year    string    `json:"year,omitempty"`
	URL     string    `json:"url"`
	Artists Artists   `json:"artists"`
	Image   []Link    `json:"image"`
	Songs   []Song    `json:"songs,omitempty"`
}

// HasSongs reports whether the album carries its track list.
func (a *Album) HasSongs() bool {
	return a != nil && a.Kind == AlbumKindAlbum && len(a.Songs) > 0
}
