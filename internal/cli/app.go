package cli

import (
	"context"
	"log/slog"

	"github.com/tessro/encore/internal/app"
	"github.com/tessro/encore/internal/audio"
	"github.com/tessro/encore/internal/mediasession"
	"github.com/tessro/encore/internal/notify"
)

// openMode selects how much of the player a command needs.
type openMode int

const (
	// openStorage opens the stores without audio or OS media controls.
	openStorage openMode = iota
	// openPlayer opens everything needed to play audio.
	openPlayer
)

// openApp opens the App for a command. Close it when done.
func openApp(ctx context.Context, mode openMode, notes notify.Notifier) (*app.App, error) {
	opts := app.Options{
		Config:    cfg,
		Logger:    slog.Default(),
		Ephemeral: ephemeral,
		Notifier:  notes,
	}
	if mode == openStorage {
		opts.Output = audio.NewSilent()
		opts.Session = mediasession.Noop{}
	}

	a := app.New(opts)
	if err := a.Open(ctx); err != nil {
		return nil, err
	}
	return a, nil
}
