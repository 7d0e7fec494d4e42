package config

import "time"

// Config is the root configuration structure.
type Config struct {
	Catalog      CatalogConfig      `toml:"catalog"`
	Storage      StorageConfig      `toml:"storage"`
	Download     DownloadConfig     `toml:"download"`
	Offline      OfflineConfig      `toml:"offline"`
	Playback     PlaybackConfig     `toml:"playback"`
	MediaSession MediaSessionConfig `toml:"media_session"`
	Notify       NotifyConfig       `toml:"notify"`
	TUI          TUIConfig          `toml:"tui"`
	Log          LogConfig          `toml:"log"`
}

// CatalogConfig holds catalog API settings.
type CatalogConfig struct {
	BaseURL string `toml:"base_url" env:"ENCORE_CATALOG_BASE_URL"`
	Timeout int    `toml:"timeout" env:"ENCORE_CATALOG_TIMEOUT"` // seconds
}

// StorageConfig holds local persistence settings.
type StorageConfig struct {
	DataDir string `toml:"data_dir" env:"ENCORE_DATA_DIR"`
	Engine  string `toml:"engine" env:"ENCORE_STORAGE_ENGINE"` // bolt or memory
}

// DownloadConfig holds offline download settings.
type DownloadConfig struct {
	Policy           string `toml:"policy" env:"ENCORE_DOWNLOAD_POLICY"` // single or per-song
	MaxParallel      int    `toml:"max_parallel" env:"ENCORE_DOWNLOAD_MAX_PARALLEL"`
	Timeout          int    `toml:"timeout" env:"ENCORE_DOWNLOAD_TIMEOUT"` // seconds
	PreferredQuality string `toml:"preferred_quality" env:"ENCORE_DOWNLOAD_QUALITY"`
	Images           bool   `toml:"images" env:"ENCORE_DOWNLOAD_IMAGES"`
}

// OfflineConfig holds reachability check settings.
type OfflineConfig struct {
	CheckURL string `toml:"check_url" env:"ENCORE_OFFLINE_CHECK_URL"`
	Interval int    `toml:"interval" env:"ENCORE_OFFLINE_INTERVAL"` // seconds
	Timeout  int    `toml:"timeout" env:"ENCORE_OFFLINE_TIMEOUT"`   // seconds
}

// PlaybackConfig holds default playback settings.
type PlaybackConfig struct {
	Volume           int  `toml:"volume" env:"ENCORE_VOLUME"` // percent
	Shuffle          bool `toml:"shuffle" env:"ENCORE_SHUFFLE"`
	RestartThreshold int  `toml:"restart_threshold" env:"ENCORE_RESTART_THRESHOLD"` // seconds
	Audio            bool `toml:"audio" env:"ENCORE_AUDIO"`
}

// MediaSessionConfig holds OS media control settings.
type MediaSessionConfig struct {
	Enabled bool `toml:"enabled" env:"ENCORE_MEDIA_SESSION"`
}

// NotifyConfig holds notification settings.
type NotifyConfig struct {
	Desktop bool `toml:"desktop" env:"ENCORE_NOTIFY_DESKTOP"`
}

// TUIConfig holds terminal UI settings.
type TUIConfig struct {
	Theme           string `toml:"theme" env:"ENCORE_TUI_THEME"`
	RefreshInterval int    `toml:"refresh_interval" env:"ENCORE_TUI_REFRESH_INTERVAL"` // ms
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"ENCORE_LOG_LEVEL"`
	File  string `toml:"file" env:"ENCORE_LOG_FILE"`
}

// CatalogTimeout returns the catalog request timeout.
func (c *Config) CatalogTimeout() time.Duration {
	return time.Duration(c.Catalog.Timeout) * time.Second
}

// DownloadTimeout returns the per-download timeout.
func (c *Config) DownloadTimeout() time.Duration {
	return time.Duration(c.Download.Timeout) * time.Second
}

// CheckInterval returns the reachability check interval.
func (c *Config) CheckInterval() time.Duration {
	return time.Duration(c.Offline.Interval) * time.Second
}

// CheckTimeout returns the reachability check timeout.
func (c *Config) CheckTimeout() time.Duration {
	return time.Duration(c.Offline.Timeout) * time.Second
}

// RestartThreshold returns how far into a song "previous" restarts it.
func (c *Config) RestartThreshold() time.Duration {
	return time.Duration(c.Playback.RestartThreshold) * time.Second
}
