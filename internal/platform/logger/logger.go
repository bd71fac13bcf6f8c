package logger

import (
	"log/slog"
	"os"
)

// New returns a JSON slog logger writing to stdout. Services and handlers
// receive it via constructor options so tests can pass a silent logger.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
