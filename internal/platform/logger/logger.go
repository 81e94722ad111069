package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON to stdout; handlers and services
// receive it by injection rather than reading slog.Default.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
