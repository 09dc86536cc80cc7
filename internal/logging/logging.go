package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
)

// New creates a console slog.Logger on stderr with provided level string.
// Stdout stays free for command output and the editor.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, ColorFor(os.Stderr))
}

// ColorFor reports whether w is a terminal that should get colored output.
// NO_COLOR disables color everywhere.
func ColorFor(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(interface{ Fd() uintptr })
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// NewWithWriter builds the same handler on w.
func NewWithWriter(w io.Writer, level string, color bool) *slog.Logger {
	handler := tint.NewHandler(w, &tint.Options{
		Level:      levelFromString(level),
		TimeFormat: time.DateTime,
		NoColor:    !color,
	})
	return slog.New(handler)
}

func levelFromString(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "error":
		return slog.LevelError
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	default:
		return slog.LevelInfo
	}
}
