// Package notify shows short user-facing messages: desktop notifications,
// log lines, or toasts in the terminal UI.
package notify

import (
	"log/slog"
	"sync"

	"github.com/gen2brain/beeep"
)

// Level is the severity of a notification.
type Level string

const (
	LevelInfo    Level = "info"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is one transient message.
type Notification struct {
	Level   Level
	Title   string
	Message string
}

// Notifier delivers notifications. Implementations must not block.
type Notifier interface {
	Notify(n Notification)
}

// Info is shorthand for an info-level notification.
func Info(n Notifier, title, msg string) {
	n.Notify(Notification{Level: LevelInfo, Title: title, Message: msg})
}

// Warn is shorthand for a warning notification.
func Warn(n Notifier, title, msg string) {
	n.Notify(Notification{Level: LevelWarning, Title: title, Message: msg})
}

// Error is shorthand for an error notification.
func Error(n Notifier, title, msg string) {
	n.Notify(Notification{Level: LevelError, Title: title, Message: msg})
}

// Desktop shows notifications through the OS notification service.
type Desktop struct {
	logger *slog.Logger
}

// NewDesktop creates a Desktop notifier using appName as the sender.
func NewDesktop(appName string, logger *slog.Logger) *Desktop {
	if logger == nil {
		logger = slog.Default()
	}
	beeep.AppName = appName
	return &Desktop{logger: logger}
}

func (d *Desktop) Notify(n Notification) {
	go func() {
		if err := beeep.Notify(n.Title, n.Message, ""); err != nil {
			d.logger.Debug("desktop notification failed", "error", err)
		}
	}()
}

// Log writes notifications to a logger.
type Log struct {
	Logger *slog.Logger
}

func (l Log) Notify(n Notification) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	switch n.Level {
	case LevelError:
		logger.Error(n.Message, "title", n.Title)
	case LevelWarning:
		logger.Warn(n.Message, "title", n.Title)
	default:
		logger.Info(n.Message, "title", n.Title)
	}
}

// Multi delivers to every notifier in order.
type Multi []Notifier

func (m Multi) Notify(n Notification) {
	for _, x := range m {
		x.Notify(n)
	}
}

// Channel queues notifications for a consumer such as the TUI. When the
// buffer is full the oldest pending notification is dropped.
type Channel struct {
	mu sync.Mutex
	ch chan Notification
}

// NewChannel creates a Channel with room for size pending notifications.
func NewChannel(size int) *Channel {
	if size <= 0 {
		size = 16
	}
	return &Channel{ch: make(chan Notification, size)}
}

func (c *Channel) Notify(n Notification) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for {
		select {
		case c.ch <- n:
			return
		default:
		}
		select {
		case <-c.ch:
		default:
		}
	}
}

// C returns the receive side.
func (c *Channel) C() <-chan Notification {
	return c.ch
}
