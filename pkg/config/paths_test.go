package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestResolve_EnvOverridesWin(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("CUENV_STATE_DIR", filepath.Join(dir, "state"))
	t.Setenv("CUENV_CACHE_DIR", filepath.Join(dir, "cache"))
	t.Setenv("CUENV_RUNTIME_DIR", filepath.Join(dir, "run"))

	paths, err := Resolve()
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "state"), paths.StateDir)
	require.Equal(t, filepath.Join(dir, "cache"), paths.CacheDir)
	require.Equal(t, filepath.Join(dir, "run"), paths.RuntimeDir)
}

func TestCoordinatorSocketPath_HonorsOverride(t *testing.T) {
	t.Setenv("CUENV_COORDINATOR_SOCKET", "/tmp/custom.sock")
	paths := Paths{RuntimeDir: "/tmp/runtime"}
	require.Equal(t, "/tmp/custom.sock", paths.CoordinatorSocketPath())
}

func TestCoordinatorSocketPath_DefaultsUnderRuntimeDir(t *testing.T) {
	t.Setenv("CUENV_COORDINATOR_SOCKET", "")
	paths := Paths{RuntimeDir: "/tmp/runtime"}
	require.Equal(t, filepath.Join("/tmp/runtime", "coordinator.sock"), paths.CoordinatorSocketPath())
}

func TestApprovalsPath(t *testing.T) {
	paths := Paths{StateDir: "/tmp/state"}
	require.Equal(t, filepath.Join("/tmp/state", "approved.json"), paths.ApprovalsPath())
}

func TestEnsureDirs_CreatesAllThree(t *testing.T) {
	dir := t.TempDir()
	paths := Paths{
		StateDir:   filepath.Join(dir, "state"),
		CacheDir:   filepath.Join(dir, "cache"),
		RuntimeDir: filepath.Join(dir, "run"),
	}
	require.NoError(t, paths.EnsureDirs())
	for _, d := range []string{paths.StateDir, paths.CacheDir, paths.RuntimeDir} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		require.True(t, info.IsDir())
	}
}
