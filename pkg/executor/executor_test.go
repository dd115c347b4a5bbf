package executor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/cuenv-dev/cuenv/pkg/cachestore"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/cuenv-dev/cuenv/pkg/registry"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
	"github.com/stretchr/testify/require"
)

func newTestExecutor(t *testing.T, tasks map[string]taskgraph.TaskDefinition) *Executor {
	t.Helper()
	reg := &registry.Registry{
		ModuleRoot: t.TempDir(),
		Tasks:      tasks,
		ProjectIDs: map[string]string{},
	}
	cacheRoot := t.TempDir()
	return New(reg, cachestore.New(cacheRoot), eventbus.New(nil, 16), Options{MaxConcurrency: 2})
}

func singleTask(projectRoot, command string, args []string, dependsOn []string) taskgraph.TaskDefinition {
	return taskgraph.TaskDefinition{Single: &taskgraph.Task{
		Command:     command,
		Args:        args,
		DependsOn:   dependsOn,
		ProjectRoot: projectRoot,
		CachePolicy: taskgraph.CacheDisabled,
	}}
}

func TestRun_LinearDependencyOrder(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "marker")

	tasks := map[string]taskgraph.TaskDefinition{
		"app:a": singleTask(root, "sh", []string{"-c", "echo a >> " + marker}, nil),
		"app:b": singleTask(root, "sh", []string{"-c", "echo b >> " + marker}, []string{"app:a"}),
	}
	exec := newTestExecutor(t, tasks)

	results, err := exec.Run(context.Background(), []string{"app:b"})
	require.NoError(t, err)
	require.Equal(t, Success, results["app:a"].State)
	require.Equal(t, Success, results["app:b"].State)

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	require.Equal(t, "a\nb\n", string(data))
}

func TestRun_CycleDetected(t *testing.T) {
	root := t.TempDir()
	tasks := map[string]taskgraph.TaskDefinition{
		"app:a": singleTask(root, "true", nil, []string{"app:b"}),
		"app:b": singleTask(root, "true", nil, []string{"app:a"}),
	}
	exec := newTestExecutor(t, tasks)

	_, err := exec.Run(context.Background(), []string{"app:a"})
	require.Error(t, err)
}

func TestRun_FailFastSkipsDependents(t *testing.T) {
	root := t.TempDir()
	tasks := map[string]taskgraph.TaskDefinition{
		"app:a": singleTask(root, "false", nil, nil),
		"app:b": singleTask(root, "true", nil, []string{"app:a"}),
		"app:c": singleTask(root, "true", nil, []string{"app:b"}),
	}
	exec := newTestExecutor(t, tasks)

	results, err := exec.Run(context.Background(), []string{"app:c"})
	require.Error(t, err)
	require.Equal(t, Failed, results["app:a"].State)
	require.Equal(t, Skipped, results["app:b"].State)
	require.Equal(t, Skipped, results["app:c"].State)
}

func TestRun_NoFailFastRunsIndependentBranches(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "marker")
	tasks := map[string]taskgraph.TaskDefinition{
		"app:a": singleTask(root, "false", nil, nil),
		"app:b": singleTask(root, "sh", []string{"-c", "echo b >> " + marker}, nil),
	}
	reg := &registry.Registry{ModuleRoot: root, Tasks: tasks, ProjectIDs: map[string]string{}}
	exec := New(reg, cachestore.New(t.TempDir()), eventbus.New(nil, 16), Options{MaxConcurrency: 2, NoFailFast: true})

	results, err := exec.Run(context.Background(), []string{"app:a", "app:b"})
	require.Error(t, err)
	require.Equal(t, Failed, results["app:a"].State)
	require.Equal(t, Success, results["app:b"].State)

	data, readErr := os.ReadFile(marker)
	require.NoError(t, readErr)
	require.Equal(t, "b\n", string(data))
}

func TestRun_SequentialGroupStopsAtFirstFailure(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "marker")
	tasks := map[string]taskgraph.TaskDefinition{
		"app:ci": {Sequential: &taskgraph.Sequential{Children: []taskgraph.TaskDefinition{
			singleTask(root, "false", nil, nil),
			singleTask(root, "sh", []string{"-c", "echo ran >> " + marker}, nil),
		}}},
	}
	exec := newTestExecutor(t, tasks)

	_, err := exec.Run(context.Background(), []string{"app:ci"})
	require.Error(t, err)
	_, statErr := os.Stat(marker)
	require.True(t, os.IsNotExist(statErr))
}

func TestRun_ParallelGroupRunsAllChildrenEvenOnFailure(t *testing.T) {
	root := t.TempDir()
	marker := filepath.Join(root, "marker")
	tasks := map[string]taskgraph.TaskDefinition{
		"app:ci": {Parallel: &taskgraph.Parallel{
			Children: map[string]taskgraph.TaskDefinition{
				"lint": singleTask(root, "false", nil, nil),
				"test": singleTask(root, "sh", []string{"-c", "echo ran >> " + marker}, nil),
			},
			Order: []string{"lint", "test"},
		}},
		// registry.Build registers every Parallel child under its own FQDN.
		"app:ci.lint": singleTask(root, "false", nil, nil),
		"app:ci.test": singleTask(root, "sh", []string{"-c", "echo ran >> " + marker}, nil),
	}
	exec := newTestExecutor(t, tasks)

	_, err := exec.Run(context.Background(), []string{"app:ci"})
	require.Error(t, err)

	data, readErr := os.ReadFile(marker)
	require.NoError(t, readErr)
	require.Equal(t, "ran\n", string(data))
}

func TestRun_CacheHitOnSecondRun(t *testing.T) {
	root := t.TempDir()
	counter := filepath.Join(root, "counter")
	require.NoError(t, os.WriteFile(filepath.Join(root, "input.txt"), []byte("hello"), 0o644))

	tasks := map[string]taskgraph.TaskDefinition{
		"app:build": {Single: &taskgraph.Task{
			Command:     "sh",
			Args:        []string{"-c", "echo x >> " + counter},
			ProjectRoot: root,
			Inputs:      []taskgraph.Input{{Pattern: "input.txt"}},
			CachePolicy: taskgraph.CacheNormal,
		}},
	}
	reg := &registry.Registry{ModuleRoot: root, Tasks: tasks, ProjectIDs: map[string]string{}}
	cache := cachestore.New(t.TempDir())
	exec := New(reg, cache, eventbus.New(nil, 16), Options{MaxConcurrency: 2})

	results1, err := exec.Run(context.Background(), []string{"app:build"})
	require.NoError(t, err)
	require.False(t, results1["app:build"].CacheHit)

	results2, err := exec.Run(context.Background(), []string{"app:build"})
	require.NoError(t, err)
	require.True(t, results2["app:build"].CacheHit)

	data, readErr := os.ReadFile(counter)
	require.NoError(t, readErr)
	require.Equal(t, "x\n", string(data))
}

func TestRun_CrossProjectDependencyOrdersProducerFirst(t *testing.T) {
	producerRoot := t.TempDir()
	consumerRoot := t.TempDir()
	marker := filepath.Join(consumerRoot, "marker")

	tasks := map[string]taskgraph.TaskDefinition{
		"lib:build": singleTask(producerRoot, "sh", []string{"-c", "echo built > " + filepath.Join(producerRoot, "out.txt")}, nil),
		"app:use": {Single: &taskgraph.Task{
			Command:     "sh",
			Args:        []string{"-c", "echo used >> " + marker},
			ProjectRoot: consumerRoot,
			Inputs: []taskgraph.Input{{Cross: &taskgraph.CrossProjectInput{
				Project: "lib",
				Task:    "build",
			}}},
			CachePolicy: taskgraph.CacheDisabled,
		}},
	}
	reg := &registry.Registry{
		ModuleRoot: t.TempDir(),
		Tasks:      tasks,
		ProjectIDs: map[string]string{"lib": "lib", "app": "app"},
	}
	exec := New(reg, cachestore.New(t.TempDir()), eventbus.New(nil, 16), Options{MaxConcurrency: 2})

	results, err := exec.Run(context.Background(), []string{"app:use"})
	require.NoError(t, err)
	require.Equal(t, Success, results["lib:build"].State)
	require.Equal(t, Success, results["app:use"].State)
}
