package download

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/tessro/encore/internal/core"
	apperrors "github.com/tessro/encore/internal/errors"
)

// fetch GETs url and returns the body. Non-2xx responses are errors.
func (c *Coordinator) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("fetch %s: %w", url, apperrors.ErrTimeout)
		}
		return nil, apperrors.Network("fetch "+url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("fetch %s: %w: status %d", url, apperrors.ErrNetwork, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("read %s: %w", url, apperrors.ErrTimeout)
		}
		return nil, apperrors.Network("read "+url, err)
	}
	return body, nil
}

// fetchImages downloads every image variant of song. Failures are logged and
// the variant is skipped.
func (c *Coordinator) fetchImages(ctx context.Context, song core.Song) map[string][]byte {
	if len(song.Image) == 0 {
		return nil
	}
	images := make(map[string][]byte, len(song.Image))
	for _, img := range song.Image {
		if img.URL == "" {
			continue
		}
		data, err := c.fetch(ctx, img.URL)
		if err != nil {
			c.logger.Debug("skipping image variant", "song", song.ID, "quality", img.Quality, "error", err)
			continue
		}
		images[img.Quality] = data
	}
	return images
}
