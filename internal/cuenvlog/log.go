// Package cuenvlog configures the process-wide structured logger.
// Mirrors the teacher's convention of a *slog.Logger passed down into
// long-lived components, with a single setup point at the CLI
// boundary.
package cuenvlog

import (
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
)

// Options configures the root logger.
type Options struct {
	Verbose int // 0=warn, 1=info, 2=debug
	Quiet   bool
	NoColor bool
	Writer  io.Writer
}

// New builds the root *slog.Logger for a cuenv invocation.
func New(opts Options) *slog.Logger {
	w := opts.Writer
	if w == nil {
		w = os.Stderr
	}

	level := slog.LevelWarn
	switch {
	case opts.Quiet:
		level = slog.LevelError
	case opts.Verbose >= 2:
		level = slog.LevelDebug
	case opts.Verbose == 1:
		level = slog.LevelInfo
	}

	handler := slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})
	return slog.New(handler)
}

// Colorize returns a color.Color-aware printer that degrades to plain
// text when noColor is set (fatih/color also disables color on its own
// when stdout isn't a terminal); used
// by commands that log a one-line status outside the structured
// logger (e.g. "task build: ok").
func Colorize(noColor bool) *color.Color {
	c := color.New(color.FgGreen)
	if noColor {
		c.DisableColor()
	}
	return c
}
