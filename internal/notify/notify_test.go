package notify

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestChannelDropsOldest(t *testing.T) {
	c := NewChannel(2)
	Info(c, "a", "1")
	Info(c, "b", "2")
	Warn(c, "c", "3")

	first := <-c.C()
	second := <-c.C()
	if first.Title != "b" || second.Title != "c" {
		t.Errorf("got %q, %q; want b, c", first.Title, second.Title)
	}
	if second.Level != LevelWarning {
		t.Errorf("level = %s", second.Level)
	}
}

func TestLogAndMulti(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))
	c := NewChannel(1)

	Error(Multi{Log{Logger: logger}, c}, "Download failed", "network error")

	if !strings.Contains(buf.String(), "level=ERROR") || !strings.Contains(buf.String(), "network error") {
		t.Errorf("log output = %q", buf.String())
	}
	if n := <-c.C(); n.Title != "Download failed" {
		t.Errorf("channel got %+v", n)
	}
}
