package report

import (
	"fmt"
	"io"
	"os"

	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"
	"golang.org/x/term"
)

// TerminalRenderer streams a colored, line-by-line rendering of bus
// events to an output writer: task output to stdout, progress/status
// lines to stderr (specification §4.11 "A terminal line-by-line
// stream").
type TerminalRenderer struct {
	Stdout io.Writer
	Stderr io.Writer

	started   *color.Color
	output    *color.Color
	completed *color.Color
	failed    *color.Color
	cached    *color.Color
}

// NewTerminalRenderer builds a renderer writing task output to stdout
// and lifecycle status lines to stderr, disabling color automatically
// when stderr isn't a terminal (specification's teacher-derived
// convention: colored output degrades gracefully for piped output).
func NewTerminalRenderer(stdout, stderr *os.File) *TerminalRenderer {
	noColor := !isatty.IsTerminal(stderr.Fd()) && !isatty.IsCygwinTerminal(stderr.Fd())
	mk := func(attrs ...color.Attribute) *color.Color {
		c := color.New(attrs...)
		if noColor {
			c.DisableColor()
		}
		return c
	}
	return &TerminalRenderer{
		Stdout:    stdout,
		Stderr:    stderr,
		started:   mk(color.FgCyan),
		output:    mk(color.Reset),
		completed: mk(color.FgGreen),
		failed:    mk(color.FgRed, color.Bold),
		cached:    mk(color.FgYellow),
	}
}

// Render renders ev to the appropriate stream.
func (t *TerminalRenderer) Render(ev eventbus.Event) {
	switch ev.Type {
	case eventbus.Started:
		t.started.Fprintf(t.Stderr, "» %s\n", ev.TaskFQDN)
	case eventbus.Output:
		fmt.Fprint(t.Stdout, ev.Payload)
	case eventbus.CacheHit:
		t.cached.Fprintf(t.Stderr, "⚡ %s (cached)\n", ev.TaskFQDN)
	case eventbus.Completed:
		t.completed.Fprintf(t.Stderr, "✓ %s\n", ev.TaskFQDN)
	case eventbus.Skipped:
		t.failed.Fprintf(t.Stderr, "✗ %s (skipped, upstream failed)\n", ev.TaskFQDN)
	}
}

// Run renders every event delivered to sub. The bus never closes a
// subscription's channel, so Run does not return on its own.
func (t *TerminalRenderer) Run(sub *eventbus.Subscription) {
	for ev := range sub.Events() {
		t.Render(ev)
	}
}

// TerminalWidth returns the current terminal column width, falling
// back to 80 when stderr isn't a terminal or the size can't be read.
func TerminalWidth() int {
	w, _, err := term.GetSize(int(os.Stderr.Fd()))
	if err != nil || w <= 0 {
		return 80
	}
	return w
}

// NewProgressBar builds a terminal progress bar for size-known,
// long-running operations (materialization, workspace snapshot
// download) (specification §4.11 "progress bars for materialization/
// download-sized operations").
func NewProgressBar(total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetWidth(min(TerminalWidth()-30, 40)),
		progressbar.OptionThrottle(65),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprint(os.Stderr, "\n") }),
	)
}
