package report

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRenderMarkdown_IncludesTaskRows(t *testing.T) {
	r := PipelineReport{
		Project: "app", Pipeline: "ci", Status: StatusSuccess, DurationMs: 500,
		Tasks: []TaskReport{{Name: "app:build", Status: TaskSuccess, DurationMs: 400}},
	}
	var b strings.Builder
	require.NoError(t, RenderMarkdown(&b, r))
	require.Contains(t, b.String(), "app:build")
	require.Contains(t, b.String(), "SUCCESS")
}

func TestWriteCIJobSummary_NoOpWithoutEnvVar(t *testing.T) {
	t.Setenv("GITHUB_STEP_SUMMARY", "")
	require.NoError(t, WriteCIJobSummary(PipelineReport{}))
}

func TestWriteCIJobSummary_AppendsToFileWhenSet(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summary.md")
	t.Setenv("GITHUB_STEP_SUMMARY", path)

	require.NoError(t, WriteCIJobSummary(PipelineReport{Project: "app", Pipeline: "ci", Status: StatusSuccess}))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Contains(t, string(data), "cuenv: ci")
}

func TestDetectCIContext_GitHubActions(t *testing.T) {
	t.Setenv("GITHUB_ACTIONS", "true")
	t.Setenv("GITHUB_EVENT_NAME", "push")
	t.Setenv("GITHUB_REF_NAME", "main")
	ctx := DetectCIContext()
	require.Equal(t, "github", ctx.Provider)
	require.Equal(t, "push", ctx.Event)
}

func TestFormatRFC3339UTC_NormalizesToUTC(t *testing.T) {
	loc := time.FixedZone("test", 3600)
	ts := time.Date(2026, 1, 1, 1, 0, 0, 0, loc)
	require.Equal(t, "2026-01-01T00:00:00Z", FormatRFC3339UTC(ts))
}
