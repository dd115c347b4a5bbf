package report

import (
	"encoding/json"
	"os"
	"time"

	"github.com/cuenv-dev/cuenv/pkg/executor"
)

// TaskDetail augments an executor.Result with reporting-only fields the
// scheduler doesn't track on Result itself.
type TaskDetail struct {
	InputsMatched []string
	CacheKey      string
	Outputs       []string
}

// BuildReport assembles a PipelineReport from one executor run's
// results. details may be nil or partial; missing entries leave the
// corresponding optional fields empty.
func BuildReport(project, pipeline string, ctx Context, started, completed time.Time, results map[string]executor.Result, details map[string]TaskDetail) PipelineReport {
	tasks := make([]TaskReport, 0, len(results))
	for fqdn, res := range results {
		tr := TaskReport{
			Name:       fqdn,
			Status:     taskStatusOf(res),
			DurationMs: res.DurationMs,
			ExitCode:   res.ExitCode,
		}
		if d, ok := details[fqdn]; ok {
			tr.InputsMatched = d.InputsMatched
			tr.CacheKey = d.CacheKey
			tr.Outputs = d.Outputs
		}
		tasks = append(tasks, tr)
	}

	return PipelineReport{
		Version:     reportVersion,
		Project:     project,
		Pipeline:    pipeline,
		Context:     ctx,
		StartedAt:   FormatRFC3339UTC(started),
		CompletedAt: FormatRFC3339UTC(completed),
		DurationMs:  completed.Sub(started).Milliseconds(),
		Status:      pipelineStatusOf(tasks),
		Tasks:       tasks,
	}
}

func taskStatusOf(res executor.Result) TaskStatus {
	switch res.State {
	case executor.Success:
		if res.CacheHit {
			return TaskCached
		}
		return TaskSuccess
	case executor.Skipped:
		return TaskSkipped
	default: // Failed, Cancelled, or any non-terminal state recorded at report time
		return TaskFailed
	}
}

func pipelineStatusOf(tasks []TaskReport) PipelineStatus {
	if len(tasks) == 0 {
		return StatusPending
	}
	succeeded, failed := 0, 0
	for _, t := range tasks {
		switch t.Status {
		case TaskFailed:
			failed++
		default:
			succeeded++
		}
	}
	switch {
	case failed == 0:
		return StatusSuccess
	case succeeded == 0:
		return StatusFailed
	default:
		return StatusPartial
	}
}

// WriteJSON writes r as canonical indented JSON to path.
func WriteJSON(r PipelineReport, path string) error {
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, b, 0o644)
}

// DetectCIContext reads well-known CI provider environment variables
// into a Context, supporting the GitHub Actions and GitLab CI shapes
// most CI job-summary integrations target.
func DetectCIContext() Context {
	switch {
	case os.Getenv("GITHUB_ACTIONS") == "true":
		return Context{
			Provider: "github",
			Event:    os.Getenv("GITHUB_EVENT_NAME"),
			RefName:  os.Getenv("GITHUB_REF_NAME"),
			BaseRef:  os.Getenv("GITHUB_BASE_REF"),
			SHA:      os.Getenv("GITHUB_SHA"),
		}
	case os.Getenv("GITLAB_CI") == "true":
		return Context{
			Provider: "gitlab",
			Event:    os.Getenv("CI_PIPELINE_SOURCE"),
			RefName:  os.Getenv("CI_COMMIT_REF_NAME"),
			SHA:      os.Getenv("CI_COMMIT_SHA"),
		}
	default:
		return Context{}
	}
}
