// Package catalog is a client for the remote song catalog.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tessro/encore/internal/config"
	apperrors "github.com/tessro/encore/internal/errors"
)

const (
	// DefaultBaseURL is the public catalog API.
	DefaultBaseURL = "https://saavn.dev/api"

	// Retry configuration for transient errors
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Client is a catalog API client.
type Client struct {
	httpClient *http.Client
	baseURL    string
	retryWait  time.Duration
	logger     *slog.Logger
}

// New creates a client for baseURL.
func New(baseURL string, timeout time.Duration, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		retryWait:  baseRetryWait,
		logger:     logger.With("component", "catalog"),
	}
}

// NewFromConfig creates a client from the catalog section.
func NewFromConfig(cfg *config.Config, logger *slog.Logger) *Client {
	return New(cfg.Catalog.BaseURL, cfg.CatalogTimeout(), logger)
}

// BaseURL returns the API root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs a GET request against the catalog and decodes the JSON body
// into result.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	fullURL := c.baseURL + path
	c.logger.Debug("request", "method", http.MethodGet, "url", fullURL)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			wait := c.retryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			c.logger.Debug("retrying", "attempt", attempt, "max", maxRetries, "wait", wait, "error", lastErr)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return apperrors.Network("catalog request", ctx.Err())
			}
			lastErr = apperrors.Network("catalog request", err)
			continue // Retry on network error
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = apperrors.Network("read catalog response", err)
			continue
		}

		c.logger.Debug("response", "status", resp.StatusCode)

		// Retry on 5xx server errors
		if resp.StatusCode >= 500 {
			lastErr = parseAPIError(resp.StatusCode, respBody)
			continue
		}

		// Don't retry 4xx errors
		if resp.StatusCode >= 400 {
			return parseAPIError(resp.StatusCode, respBody)
		}

		if result != nil && len(respBody) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}
		return nil
	}

	return fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

func parseAPIError(status int, body []byte) error {
	apiErr := &APIError{Status: status}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = strings.TrimSpace(string(body))
	}
	apiErr.Status = status
	return apiErr
}

// APIError is a non-2xx catalog response.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Status >= 500 {
		return fmt.Sprintf("catalog server error %d: %s", e.Status, e.Message)
	}
	return fmt.Sprintf("catalog API error %d: %s", e.Status, e.Message)
}

// Unwrap classifies server errors as network failures.
func (e *APIError) Unwrap() error {
	if e.Status >= 500 {
		return apperrors.ErrNetwork
	}
	if e.Status == http.StatusNotFound {
		return apperrors.ErrSongNotFound
	}
	return nil
}

// IsNotFoundError reports whether err is a 404 from the catalog.
func IsNotFoundError(err error) bool {
	var apiErr *APIError
	return apperrors.As(err, &apiErr) && apiErr.Status == http.StatusNotFound
}

// BuildURL builds a URL with query parameters.
func BuildURL(path string, params map[string]string) string {
	if len(params) == 0 {
		return path
	}

	u, _ := url.Parse(path)
	q := u.Query()
	for k, v := range params {
		q.Set(k, v)
	}
	u.RawQuery = q.Encode()
	return u.String()
}
