package errors

import (
	"errors"
	"fmt"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNetwork            = errors.New("network error")
	ErrTimeout            = errors.New("request timeout")
	ErrStorage            = errors.New("storage failure")
	ErrMediaDecode        = errors.New("media decode failure")
	ErrBackupValidation   = errors.New("invalid backup")
	ErrProviderMisuse     = errors.New("used before initialization")
	ErrNotCached          = errors.New("song not cached")
	ErrNothingCached      = errors.New("no cached songs")
	ErrQueueEmpty         = errors.New("queue is empty")
	ErrSongNotFound       = errors.New("song not found")
	ErrNoSource           = errors.New("no playable source")
	ErrDirectoryNotChosen = errors.New("no directory chosen")
	ErrConfigNotFound     = errors.New("config file not found")
	ErrInvalidConfig      = errors.New("invalid configuration")
	ErrPlayerNotRunning   = errors.New("no player running")
)

// AppError wraps an error with a user-friendly suggestion.
type AppError struct {
	Err        error
	Suggestion string
}

func (e *AppError) Error() string {
	return e.Err.Error()
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &AppError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// Storage wraps err as a storage failure, keeping the original in the chain.
func Storage(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrStorage, err)
}

// Network wraps err as a network failure, keeping the original in the chain.
func Network(op string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", op, ErrNetwork, err)
}

// Misuse panics with a provider-misuse error. It is reserved for programming
// errors such as using a component before it has been opened.
func Misuse(what string) {
	panic(fmt.Errorf("%s: %w", what, ErrProviderMisuse))
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var appErr *AppError
	if errors.As(err, &appErr) && appErr.Suggestion != "" {
		return appErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	if errors.Is(err, ErrNetwork) || errors.Is(err, ErrTimeout) ||
		strings.Contains(errStr, "connection refused") || strings.Contains(errStr, "no such host") {
		return "Check your internet connection and try again. Cached songs still play offline"
	}

	if errors.Is(err, ErrStorage) || strings.Contains(errStr, "no space left") {
		return "Free some disk space or run 'encore cache clear'"
	}

	if errors.Is(err, ErrBackupValidation) {
		return "The backup file is not a valid encore export. Nothing was imported"
	}

	if errors.Is(err, ErrNotCached) || errors.Is(err, ErrNothingCached) {
		return "Run 'encore cache download <id>' while online to keep songs for offline use"
	}

	if errors.Is(err, ErrQueueEmpty) {
		return "Add songs with 'encore play <id>'"
	}

	if errors.Is(err, ErrPlayerNotRunning) {
		return "Start a player with 'encore play' or 'encore ui'"
	}

	if errors.Is(err, ErrSongNotFound) {
		return "Check the song ID, or search with 'encore play --search <query>'"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) {
		return "Run 'encore config init' to create a configuration file"
	}

	if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
		return "The catalog is having issues. Try again in a moment"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// New returns an error that formats as the given text.
func New(text string) error {
	return errors.New(text)
}

// Join returns an error that wraps the given errors.
func Join(errs ...error) error {
	return errors.Join(errs...)
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// Err joins all collected errors, or returns nil.
func (p *PartialResult[T]) Err() error {
	return errors.Join(p.Errors...)
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
