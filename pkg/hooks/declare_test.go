package hooks

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDeclared_MissingFileIsEmptyNotError(t *testing.T) {
	hooks, err := LoadDeclared(t.TempDir())
	require.NoError(t, err)
	require.Empty(t, hooks)
}

func TestLoadDeclared_ParsesHooksList(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cuenv.yaml"), []byte(`
hooks:
  - command: direnv
    args: ["export", "json"]
    source: true
    inputs: ["env.cue"]
  - command: ./setup.sh
    preload: true
    timeout_seconds: 5
`), 0o644))

	hooks, err := LoadDeclared(dir)
	require.NoError(t, err)
	require.Len(t, hooks, 2)
	require.Equal(t, "direnv", hooks[0].Command)
	require.True(t, hooks[0].Source)
	require.True(t, hooks[1].Preload)
	require.Equal(t, DefaultTimeout, hooks[0].Timeout)
}
