package observability

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns the JSON logger every component derives from. Records
// logged with a request context carry trace_id, span_id and user_id.
func NewLogger(env string) *slog.Logger {
	return newLogger(env, os.Stdout)
}

func newLogger(env string, w io.Writer) *slog.Logger {
	level := slog.LevelInfo

	if env == "dev" {
		level = slog.LevelDebug
	}

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	return slog.New(NewContextHandler(handler))
}
