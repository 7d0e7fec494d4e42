package download

import (
	"context"
	"errors"
	"os"

	"github.com/charmbracelet/huh"

	apperrors "github.com/tessro/encore/internal/errors"
)

// HuhPicker prompts for a directory with an interactive file picker.
type HuhPicker struct {
	Title string
	Start string
}

// PickDirectory implements DirectoryPicker.
func (p HuhPicker) PickDirectory(ctx context.Context) (string, error) {
	start := p.Start
	if start == "" {
		if home, err := os.UserHomeDir(); err == nil {
			start = home
		} else {
			start = "."
		}
	}
	title := p.Title
	if title == "" {
		title = "Save songs to"
	}

	var dir string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewFilePicker().
				Title(title).
				CurrentDirectory(start).
				DirAllowed(true).
				FileAllowed(false).
				Value(&dir),
		),
	)
	if err := form.RunWithContext(ctx); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return "", apperrors.ErrDirectoryNotChosen
		}
		return "", err
	}
	if dir == "" {
		return "", apperrors.ErrDirectoryNotChosen
	}
	return dir, nil
}

// StaticPicker always returns Dir. It backs non-interactive exports.
type StaticPicker string

// PickDirectory implements DirectoryPicker.
func (p StaticPicker) PickDirectory(context.Context) (string, error) {
	if p == "" {
		return "", apperrors.ErrDirectoryNotChosen
	}
	if err := os.MkdirAll(string(p), 0755); err != nil {
		return "", err
	}
	return string(p), nil
}
