// Package logging builds the slog loggers used across jdc.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// Nop returns a logger that discards everything. Library code defaults
// to this when no logger is injected.
func Nop() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelInfo}))
}

// New returns a stderr logger; debug lowers the level threshold.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}
