package config

import (
	"os"
	"path/filepath"
)

// Default returns a Config populated with sensible defaults.
func Default() *Config {
	return &Config{
		Catalog: CatalogConfig{
			BaseURL: "https://saavn.dev/api",
			Timeout: 15,
		},
		Storage: StorageConfig{
			DataDir: defaultDataDir(),
			Engine:  "bolt",
		},
		Download: DownloadConfig{
			Policy:           "single",
			MaxParallel:      2,
			Timeout:          120,
			PreferredQuality: "320kbps",
			Images:           true,
		},
		Offline: OfflineConfig{
			CheckURL: "https://saavn.dev/api",
			Interval: 15,
			Timeout:  5,
		},
		Playback: PlaybackConfig{
			Volume:           100,
			Shuffle:          false,
			RestartThreshold: 3,
			Audio:            true,
		},
		MediaSession: MediaSessionConfig{
			Enabled: true,
		},
		Notify: NotifyConfig{
			Desktop: true,
		},
		TUI: TUIConfig{
			Theme:           "auto",
			RefreshInterval: 500,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// ApplyDefaults fills in zero values with sensible defaults.
func (c *Config) ApplyDefaults() {
	d := Default()

	// Catalog
	if c.Catalog.BaseURL == "" {
		c.Catalog.BaseURL = d.Catalog.BaseURL
	}
	if c.Catalog.Timeout == 0 {
		c.Catalog.Timeout = d.Catalog.Timeout
	}

	// Storage
	if c.Storage.DataDir == "" {
		c.Storage.DataDir = d.Storage.DataDir
	}
	if c.Storage.Engine == "" {
		c.Storage.Engine = d.Storage.Engine
	}

	// Download
	if c.Download.Policy == "" {
		c.Download.Policy = d.Download.Policy
	}
	if c.Download.MaxParallel == 0 {
		c.Download.MaxParallel = d.Download.MaxParallel
	}
	if c.Download.Timeout == 0 {
		c.Download.Timeout = d.Download.Timeout
	}
	if c.Download.PreferredQuality == "" {
		c.Download.PreferredQuality = d.Download.PreferredQuality
	}

	// Offline
	if c.Offline.CheckURL == "" {
		c.Offline.CheckURL = c.Catalog.BaseURL
	}
	if c.Offline.Interval == 0 {
		c.Offline.Interval = d.Offline.Interval
	}
	if c.Offline.Timeout == 0 {
		c.Offline.Timeout = d.Offline.Timeout
	}

	// Playback
	if c.Playback.Volume == 0 {
		c.Playback.Volume = d.Playback.Volume
	}
	if c.Playback.RestartThreshold == 0 {
		c.Playback.RestartThreshold = d.Playback.RestartThreshold
	}

	// TUI
	if c.TUI.Theme == "" {
		c.TUI.Theme = d.TUI.Theme
	}
	if c.TUI.RefreshInterval == 0 {
		c.TUI.RefreshInterval = d.TUI.RefreshInterval
	}

	// Log
	if c.Log.Level == "" {
		c.Log.Level = d.Log.Level
	}
}

// defaultDataDir returns $XDG_DATA_HOME/encore or ~/.local/share/encore.
func defaultDataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "encore")
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ".encore"
	}
	return filepath.Join(home, ".local", "share", "encore")
}
