package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cuenv-dev/cuenv/pkg/evalgateway"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
	"github.com/stretchr/testify/require"
)

type fakeEvaluator struct {
	module evalgateway.Module
}

func (f fakeEvaluator) Evaluate(string) (evalgateway.Module, error) { return f.module, nil }
func (f fakeEvaluator) EvaluateProject(path string) (evalgateway.ProjectInstance, error) {
	for _, p := range f.module.Projects {
		if p.Path == path {
			return p, nil
		}
	}
	return evalgateway.ProjectInstance{}, nil
}

func TestBuild_AssignsProjectIDsAndFQDNs(t *testing.T) {
	mod := evalgateway.Module{
		Root: "/mod",
		Projects: []evalgateway.ProjectInstance{
			{Name: "api", Path: "services/api", Tasks: map[string]taskgraph.TaskDefinition{
				"build": {Single: &taskgraph.Task{Command: "go", Args: []string{"build"}}},
			}},
		},
	}
	reg, err := Build(fakeEvaluator{module: mod}, "/mod", nil)
	require.NoError(t, err)
	_, ok := reg.Tasks["api:build"]
	require.True(t, ok)
}

func TestBuild_DuplicateProjectNameDisambiguated(t *testing.T) {
	mod := evalgateway.Module{
		Projects: []evalgateway.ProjectInstance{
			{Name: "api", Path: "a/api", Tasks: map[string]taskgraph.TaskDefinition{"build": {Single: &taskgraph.Task{Command: "x"}}}},
			{Name: "api", Path: "b/api", Tasks: map[string]taskgraph.TaskDefinition{"build": {Single: &taskgraph.Task{Command: "y"}}}},
		},
	}
	reg, err := Build(fakeEvaluator{module: mod}, "/mod", nil)
	require.NoError(t, err)
	require.Len(t, reg.Tasks, 2)

	count := 0
	for fqdn := range reg.Tasks {
		if fqdn == "api:build" {
			count++
		}
	}
	require.Equal(t, 1, count, "exactly one project keeps the bare name")
}

func TestBuild_CrossProjectDependencyResolves(t *testing.T) {
	mod := evalgateway.Module{
		Projects: []evalgateway.ProjectInstance{
			{Name: "lib", Path: "lib", Tasks: map[string]taskgraph.TaskDefinition{
				"build": {Single: &taskgraph.Task{Command: "go", Args: []string{"build"}}},
			}},
			{Name: "app", Path: "app", Tasks: map[string]taskgraph.TaskDefinition{
				"build": {Single: &taskgraph.Task{Command: "go", Args: []string{"build"}, DependsOn: []string{"#lib:build"}}},
			}},
		},
	}
	reg, err := Build(fakeEvaluator{module: mod}, "/mod", nil)
	require.NoError(t, err)
	require.Equal(t, []string{"lib:build"}, reg.Tasks["app:build"].Single.DependsOn)
}

func TestBuild_TaskRefClonesAndMergesDeps(t *testing.T) {
	mod := evalgateway.Module{
		Projects: []evalgateway.ProjectInstance{
			{Name: "lib", Path: "lib", Tasks: map[string]taskgraph.TaskDefinition{
				"setup": {Single: &taskgraph.Task{Command: "echo"}},
				"build": {Single: &taskgraph.Task{Command: "go", Args: []string{"build"}, DependsOn: []string{"setup"}}},
			}},
			{Name: "app", Path: "app", Tasks: map[string]taskgraph.TaskDefinition{
				"extra":   {Single: &taskgraph.Task{Command: "echo"}},
				"inherit": {Single: &taskgraph.Task{TaskRef: "#lib:build", DependsOn: []string{"extra"}}},
			}},
		},
	}
	reg, err := Build(fakeEvaluator{module: mod}, "/mod", nil)
	require.NoError(t, err)

	inherited := reg.Tasks["app:inherit"].Single
	require.Equal(t, "go", inherited.Command)
	require.ElementsMatch(t, []string{"lib:setup", "app:extra"}, inherited.DependsOn)
}

func TestBuild_ContributorInjectsInstallTaskIdempotently(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "package-lock.json"), []byte("{}"), 0o644))

	mod := evalgateway.Module{
		Projects: []evalgateway.ProjectInstance{
			{Name: "web", Path: "web", Tasks: map[string]taskgraph.TaskDefinition{}},
		},
	}
	// Contributor detection reads from the real filesystem at
	// ModuleRoot/Path, so point ModuleRoot at dir directly and Path at "".
	mod.Projects[0].Path = ""
	reg, err := Build(fakeEvaluator{module: mod}, dir, DefaultContributors())
	require.NoError(t, err)
	_, ok := reg.Tasks["web:install"]
	require.True(t, ok)

	// Build applied the contributor to this same task map; a second
	// application finds "install" present and injects nothing.
	injected, err := npmInstallContributor(DetectContributorContext(dir), mod.Projects[0].Tasks)
	require.NoError(t, err)
	require.Equal(t, 0, injected)
}
