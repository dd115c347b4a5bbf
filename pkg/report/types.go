// Package report renders task-execution output: a colored terminal
// stream, a JSON pipeline report, and a markdown CI job summary
// (specification §4.11, §6 "Pipeline report (JSON)").
package report

import "time"

// PipelineStatus is the report's top-level outcome (specification §6:
// "success | failed | partial | pending").
type PipelineStatus string

const (
	StatusSuccess PipelineStatus = "success"
	StatusFailed  PipelineStatus = "failed"
	StatusPartial PipelineStatus = "partial"
	StatusPending PipelineStatus = "pending"
)

// TaskStatus is one task's reported outcome (specification §6: "success
// | failed | cached | skipped").
type TaskStatus string

const (
	TaskSuccess TaskStatus = "success"
	TaskFailed  TaskStatus = "failed"
	TaskCached  TaskStatus = "cached"
	TaskSkipped TaskStatus = "skipped"
)

// Context identifies the CI invocation a report was produced under
// (specification §6 "context{provider,event,ref_name,base_ref,sha,
// changed_files}").
type Context struct {
	Provider     string   `json:"provider,omitempty"`
	Event        string   `json:"event,omitempty"`
	RefName      string   `json:"ref_name,omitempty"`
	BaseRef      string   `json:"base_ref,omitempty"`
	SHA          string   `json:"sha,omitempty"`
	ChangedFiles []string `json:"changed_files,omitempty"`
}

// TaskReport is one task's entry in the pipeline report.
type TaskReport struct {
	Name          string     `json:"name"`
	Status        TaskStatus `json:"status"`
	DurationMs    int64      `json:"duration_ms"`
	ExitCode      int        `json:"exit_code"`
	InputsMatched []string   `json:"inputs_matched,omitempty"`
	CacheKey      string     `json:"cache_key,omitempty"`
	Outputs       []string   `json:"outputs,omitempty"`
}

// PipelineReport is the JSON document written at pipeline completion
// (specification §6 "Pipeline report (JSON)").
type PipelineReport struct {
	Version     string         `json:"version"`
	Project     string         `json:"project"`
	Pipeline    string         `json:"pipeline"`
	Context     Context        `json:"context"`
	StartedAt   string         `json:"started_at"` // RFC3339 UTC
	CompletedAt string         `json:"completed_at"`
	DurationMs  int64          `json:"duration_ms"`
	Status      PipelineStatus `json:"status"`
	Tasks       []TaskReport   `json:"tasks"`
}

// FormatRFC3339UTC renders t as RFC3339 in UTC, the exact timestamp
// format the specification's pipeline report requires.
func FormatRFC3339UTC(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

const reportVersion = "1"
