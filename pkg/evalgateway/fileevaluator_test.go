package evalgateway

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeManifest(t *testing.T, dir, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cuenv.yaml"), []byte(content), 0o644))
}

func TestFileEvaluator_EvaluateProject_LeafTask(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
name: demo
tasks:
  build:
    command: echo
    args: ["hi"]
    inputs: ["src/**"]
    outputs: ["out.txt"]
`)

	proj, err := NewFileEvaluator().EvaluateProject(dir)
	require.NoError(t, err)
	require.Equal(t, "demo", proj.Name)
	require.Len(t, proj.Tasks, 1)
	require.Equal(t, "echo", proj.Tasks["build"].Single.Command)
	require.Equal(t, []string{"hi"}, proj.Tasks["build"].Single.Args)
}

func TestFileEvaluator_EvaluateProject_ParallelGroupOrder(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `
name: demo
tasks:
  check:
    parallel:
      lint:
        command: lint
      test:
        command: test
`)
	proj, err := NewFileEvaluator().EvaluateProject(dir)
	require.NoError(t, err)
	require.Equal(t, []string{"lint", "test"}, proj.Tasks["check"].Parallel.Order)
}

func TestFileEvaluator_Evaluate_DiscoversNestedProjects(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "name: root\nmodule: true\ntasks: {}\n")
	writeManifest(t, filepath.Join(root, "services", "api"), "name: api\ntasks:\n  build:\n    command: go\n")

	mod, err := NewFileEvaluator().Evaluate(root)
	require.NoError(t, err)
	require.Len(t, mod.Projects, 2)
}

func TestFindModuleRoot_WalksUpToModuleMarker(t *testing.T) {
	root := t.TempDir()
	writeManifest(t, root, "name: root\nmodule: true\ntasks: {}\n")
	sub := filepath.Join(root, "a", "b")
	writeManifest(t, sub, "name: b\ntasks: {}\n")

	found, err := FindModuleRoot(sub)
	require.NoError(t, err)
	resolvedRoot, _ := filepath.EvalSymlinks(root)
	resolvedFound, _ := filepath.EvalSymlinks(found)
	require.Equal(t, resolvedRoot, resolvedFound)
}
