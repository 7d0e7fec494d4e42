package config

import (
	"errors"
	"fmt"
	"net/url"
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if err := c.Catalog.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("catalog: %w", err))
	}
	if err := c.Storage.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("storage: %w", err))
	}
	if err := c.Download.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("download: %w", err))
	}
	if err := c.Offline.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("offline: %w", err))
	}
	if err := c.Playback.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("playback: %w", err))
	}
	if err := c.TUI.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("tui: %w", err))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("log: %w", err))
	}

	return errors.Join(errs...)
}

// Validate checks CatalogConfig for errors.
func (c *CatalogConfig) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base_url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("invalid base_url: scheme must be http or https")
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	return nil
}

// Validate checks StorageConfig for errors.
func (c *StorageConfig) Validate() error {
	switch c.Engine {
	case "", "bolt", "memory":
		// valid
	default:
		return fmt.Errorf("invalid engine: %s (must be bolt or memory)", c.Engine)
	}
	return nil
}

// Validate checks DownloadConfig for errors.
func (c *DownloadConfig) Validate() error {
	switch c.Policy {
	case "", "single", "per-song":
		// valid
	default:
		return fmt.Errorf("invalid policy: %s (must be single or per-song)", c.Policy)
	}
	if c.MaxParallel < 0 {
		return errors.New("max_parallel must be non-negative")
	}
	if c.Timeout < 0 {
		return errors.New("timeout must be non-negative")
	}
	return nil
}

// Validate checks OfflineConfig for errors.
func (c *OfflineConfig) Validate() error {
	if c.CheckURL != "" {
		if _, err := url.Parse(c.CheckURL); err != nil {
			return fmt.Errorf("invalid check_url: %w", err)
		}
	}
	if c.Interval < 0 || c.Timeout < 0 {
		return errors.New("interval and timeout must be non-negative")
	}
	return nil
}

// Validate checks PlaybackConfig for errors.
func (c *PlaybackConfig) Validate() error {
	if c.Volume < 0 || c.Volume > 100 {
		return errors.New("volume must be between 0 and 100")
	}
	if c.RestartThreshold < 0 {
		return errors.New("restart_threshold must be non-negative")
	}
	return nil
}

// Validate checks TUIConfig for errors.
func (c *TUIConfig) Validate() error {
	switch c.Theme {
	case "", "auto", "dark", "light":
		// valid
	default:
		return fmt.Errorf("invalid theme: %s (must be auto, dark, or light)", c.Theme)
	}
	if c.RefreshInterval < 0 {
		return errors.New("refresh_interval must be non-negative")
	}
	return nil
}

// Validate checks LogConfig for errors.
func (c *LogConfig) Validate() error {
	switch c.Level {
	case "", "debug", "info", "warn", "error":
		// valid
	default:
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, or error)", c.Level)
	}
	return nil
}
