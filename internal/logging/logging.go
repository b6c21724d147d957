package logging

import (
	"io"
	"log/slog"
)

// New returns a text logger tagged with the given component. Debug switches
// the level from Info to Debug.
func New(w io.Writer, debug bool, component string) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	h := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(h).With("component", component)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}
