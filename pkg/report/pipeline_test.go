package report

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/cuenv-dev/cuenv/pkg/executor"
	"github.com/stretchr/testify/require"
)

func TestBuildReport_AllSuccessIsSuccess(t *testing.T) {
	results := map[string]executor.Result{
		"app:build": {FQDN: "app:build", State: executor.Success, DurationMs: 10},
		"app:test":  {FQDN: "app:test", State: executor.Success, CacheHit: true},
	}
	started := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	completed := started.Add(2 * time.Second)

	r := BuildReport("app", "ci", Context{Provider: "github"}, started, completed, results, nil)
	require.Equal(t, StatusSuccess, r.Status)
	require.Equal(t, "2026-01-01T00:00:00Z", r.StartedAt)
	require.Equal(t, int64(2000), r.DurationMs)
	require.Len(t, r.Tasks, 2)
}

func TestBuildReport_MixedIsPartial(t *testing.T) {
	results := map[string]executor.Result{
		"app:build": {FQDN: "app:build", State: executor.Success},
		"app:lint":  {FQDN: "app:lint", State: executor.Failed},
	}
	r := BuildReport("app", "ci", Context{}, time.Now(), time.Now(), results, nil)
	require.Equal(t, StatusPartial, r.Status)
}

func TestBuildReport_AllFailedIsFailed(t *testing.T) {
	results := map[string]executor.Result{
		"app:build": {FQDN: "app:build", State: executor.Failed},
	}
	r := BuildReport("app", "ci", Context{}, time.Now(), time.Now(), results, nil)
	require.Equal(t, StatusFailed, r.Status)
}

func TestBuildReport_EmptyIsPending(t *testing.T) {
	r := BuildReport("app", "ci", Context{}, time.Now(), time.Now(), nil, nil)
	require.Equal(t, StatusPending, r.Status)
}

func TestBuildReport_CacheHitReportsCachedStatus(t *testing.T) {
	results := map[string]executor.Result{
		"app:build": {FQDN: "app:build", State: executor.Success, CacheHit: true},
	}
	r := BuildReport("app", "ci", Context{}, time.Now(), time.Now(), results, nil)
	require.Equal(t, TaskCached, r.Tasks[0].Status)
}

func TestBuildReport_DetailsAttachOptionalFields(t *testing.T) {
	results := map[string]executor.Result{
		"app:build": {FQDN: "app:build", State: executor.Success},
	}
	details := map[string]TaskDetail{
		"app:build": {CacheKey: "abc123", Outputs: []string{"dist/app"}},
	}
	r := BuildReport("app", "ci", Context{}, time.Now(), time.Now(), results, details)
	require.Equal(t, "abc123", r.Tasks[0].CacheKey)
	require.Equal(t, []string{"dist/app"}, r.Tasks[0].Outputs)
}

func TestPipelineReport_MarshalsLowercaseStatusEnums(t *testing.T) {
	r := BuildReport("app", "ci", Context{}, time.Now(), time.Now(), map[string]executor.Result{
		"app:build": {FQDN: "app:build", State: executor.Success},
	}, nil)
	raw, err := json.Marshal(r)
	require.NoError(t, err)
	require.Contains(t, string(raw), `"status":"success"`)
	require.Contains(t, string(raw), `"name":"app:build","status":"success"`) // task status reuses the same lowercase enum style
}
