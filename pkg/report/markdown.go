package report

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// RenderMarkdown writes r as a CI job-summary table (specification §4.11
// "A markdown summary for CI job-summary hooks").
func RenderMarkdown(w io.Writer, r PipelineReport) error {
	var b strings.Builder
	fmt.Fprintf(&b, "## cuenv: %s (%s)\n\n", r.Pipeline, strings.ToUpper(string(r.Status)))
	fmt.Fprintf(&b, "Project `%s`, completed in %dms.\n\n", r.Project, r.DurationMs)
	fmt.Fprintf(&b, "| Task | Status | Duration | Exit |\n|---|---|---|---|\n")
	for _, t := range r.Tasks {
		fmt.Fprintf(&b, "| `%s` | %s | %dms | %d |\n", t.Name, statusEmoji(t.Status), t.DurationMs, t.ExitCode)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func statusEmoji(s TaskStatus) string {
	switch s {
	case TaskSuccess:
		return "✅ success"
	case TaskCached:
		return "⚡ cached"
	case TaskSkipped:
		return "⏭️ skipped"
	default:
		return "❌ failed"
	}
}

// WriteCIJobSummary appends r's markdown rendering to the file named by
// GITHUB_STEP_SUMMARY, if set (specification §4.11 "detected via
// environment variables, e.g., GITHUB_STEP_SUMMARY"); it is a no-op
// when the variable is absent.
func WriteCIJobSummary(r PipelineReport) error {
	path := os.Getenv("GITHUB_STEP_SUMMARY")
	if path == "" {
		return nil
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	return RenderMarkdown(f, r)
}
