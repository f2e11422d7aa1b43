package logging

import (
	"io"
	"log/slog"
	"strings"

	slogctx "github.com/veqryn/slog-context"
)

// New builds a logger whose handler picks up attributes stored in the
// context with slogctx.Append and slogctx.Prepend.
func New(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}

	var h slog.Handler
	if strings.EqualFold(format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(slogctx.NewHandler(h, nil))
}

func parseLevel(level string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return slog.LevelInfo
	}
	return l
}
