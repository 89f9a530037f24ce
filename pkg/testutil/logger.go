package testutil

import (
	"io"
	"log/slog"
)

// NewTestLogger returns a logger that discards output so tests stay quiet.
func NewTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
