package observability

import (
	"log/slog"
	"os"
)

// NewLogger returns the JSON logger both binaries use. Records carry the
// environment, trace ids and, once auth has run, the acting principal. Dev
// logs at debug with source locations.
func NewLogger(env string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	if env == "dev" {
		opts.Level = slog.LevelDebug
		opts.AddSource = true
	}

	handler := slog.NewJSONHandler(os.Stdout, opts).
		WithAttrs([]slog.Attr{slog.String("env", env)})

	return slog.New(NewTraceHandler(handler))
}
