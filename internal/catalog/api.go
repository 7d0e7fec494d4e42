package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/samber/lo"

	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
)

type songsResponse struct {
	Success bool        `json:"success"`
	Data    []core.Song `json:"data"`
}

// SearchResult is one page of song search results.
type SearchResult struct {
	Total   int         `json:"total"`
	Start   int         `json:"start"`
	Results []core.Song `json:"results"`
}

type searchResponse struct {
	Success bool         `json:"success"`
	Data    SearchResult `json:"data"`
}

type albumResponse struct {
	Success bool       `json:"success"`
	Data    core.Album `json:"data"`
}

// GetSongByID returns the detailed record for id.
func (c *Client) GetSongByID(ctx context.Context, id string) (*core.Song, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("song id cannot be empty")
	}
	var resp songsResponse
	if err := c.Get(ctx, "/songs/"+url.PathEscape(id), &resp); err != nil {
		return nil, err
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("%w: %s", apperrors.ErrSongNotFound, id)
	}
	song := resp.Data[0]
	song.Kind = core.SongKindDetailed
	return &song, nil
}

// GetSongs returns detailed records for ids in one request. Unknown ids are
// omitted.
func (c *Client) GetSongs(ctx context.Context, ids []string) ([]core.Song, error) {
	ids = lo.Compact(lo.Uniq(ids))
	if len(ids) == 0 {
		return nil, nil
	}
	var resp songsResponse
	path := BuildURL("/songs", map[string]string{"ids": strings.Join(ids, ",")})
	if err := c.Get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return lo.Map(resp.Data, func(s core.Song, _ int) core.Song {
		s.Kind = core.SongKindDetailed
		return s
	}), nil
}

// SearchOptions configures a song search.
type SearchOptions struct {
	Query string
	Page  int
	Limit int
}

// Search finds songs matching the query. Results are summaries.
func (c *Client) Search(ctx context.Context, opts SearchOptions) (*SearchResult, error) {
	if strings.TrimSpace(opts.Query) == "" {
		return nil, fmt.Errorf("search query cannot be empty")
	}
	params := map[string]string{"query": opts.Query}
	if opts.Page > 0 {
		params["page"] = strconv.Itoa(opts.Page)
	}
	if opts.Limit > 0 {
		params["limit"] = strconv.Itoa(opts.Limit)
	}

	var resp searchResponse
	if err := c.Get(ctx, BuildURL("/search/songs", params), &resp); err != nil {
		return nil, err
	}
	for i := range resp.Data.Results {
		resp.Data.Results[i].Kind = core.SongKindSummary
	}
	return &resp.Data, nil
}

// GetAlbum returns an album with its songs.
func (c *Client) GetAlbum(ctx context.Context, id string) (*core.Album, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("album id cannot be empty")
	}
	var resp albumResponse
	if err := c.Get(ctx, BuildURL("/albums", map[string]string{"id": id}), &resp); err != nil {
		return nil, err
	}
	album := resp.Data
	album.Kind = core.AlbumKindAlbum
	for i := range album.Songs {
		album.Songs[i].Kind = core.SongKindDetailed
	}
	return &album, nil
}

// Resolve returns song unchanged when it is already detailed, and otherwise
// fetches its detailed record.
func (c *Client) Resolve(ctx context.Context, song core.Song) (core.Song, error) {
	if song.IsDetailed() {
		return song, nil
	}
	detailed, err := c.GetSongByID(ctx, song.ID)
	if err != nil {
		return song, err
	}
	return *detailed, nil
}
