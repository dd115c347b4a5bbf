package materializer

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuenv-dev/cuenv/pkg/digest"
	"github.com/cuenv-dev/cuenv/pkg/fingerprint"
	"github.com/stretchr/testify/require"
)

func TestMaterialize_CopiesResolvedInputs(t *testing.T) {
	source := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "src"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(source, "src", "main.go"), []byte("package main"), 0o644))

	resolved := &fingerprint.ResolvedInputs{Files: []fingerprint.ResolvedInput{
		{RelPath: "src/main.go", Content: digest.Bytes([]byte("package main"))},
	}}

	hermeticRoot := filepath.Join(t.TempDir(), "hermetic")
	ws, err := Materialize(source, hermeticRoot, resolved)
	require.NoError(t, err)

	content, err := os.ReadFile(filepath.Join(ws.Root, "src", "main.go"))
	require.NoError(t, err)
	require.Equal(t, "package main", string(content))
}

func TestMaterialize_RejectsPathEscape(t *testing.T) {
	source := t.TempDir()
	resolved := &fingerprint.ResolvedInputs{Files: []fingerprint.ResolvedInput{
		{RelPath: "../escape.txt", Content: digest.Bytes([]byte("x"))},
	}}
	_, err := Materialize(source, filepath.Join(t.TempDir(), "hermetic"), resolved)
	require.Error(t, err)
}

func TestLinkSharedTarget_ReplacesExistingEntry(t *testing.T) {
	ws := &Workspace{Root: t.TempDir()}
	target := t.TempDir()

	dest := filepath.Join(ws.Root, "target")
	require.NoError(t, os.WriteFile(dest, []byte("stale"), 0o644))

	require.NoError(t, LinkSharedTarget(ws, "target", target))

	resolved, err := os.Readlink(dest)
	require.NoError(t, err)
	require.Equal(t, target, resolved)
}

func TestDiscard_RemovesWorkspace(t *testing.T) {
	root := t.TempDir()
	ws := &Workspace{Root: root}
	require.NoError(t, ws.Discard())
	_, err := os.Stat(root)
	require.True(t, os.IsNotExist(err))
}
