package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/tessro/encore/internal/config"
)

// Setup configures the default slog logger from cfg and returns a function
// that closes the log file, if one was opened.
//
// When quiet is set (the TUI owns the terminal) and no file is configured,
// log output is discarded.
func Setup(cfg config.LogConfig, quiet bool) (func() error, error) {
	var w io.Writer = os.Stderr
	closer := func() error { return nil }

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return closer, err
		}
		f, err := os.OpenFile(cfg.File, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
		if err != nil {
			return closer, err
		}
		w = f
		closer = f.Close
	} else if quiet {
		w = io.Discard
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: ParseLevel(cfg.Level),
	})
	slog.SetDefault(slog.New(handler))
	return closer, nil
}

// ParseLevel maps a config level name to a slog level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
