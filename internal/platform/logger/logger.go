package logger

import (
	"log/slog"
	"os"
)

// New returns the root structured logger. JSON output keeps log aggregation
// simple; services receive it via functional options.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}
