package taskgraph

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBuildIndex_FlattensParallelGroups(t *testing.T) {
	tasks := map[string]TaskDefinition{
		"build": {Parallel: &Parallel{
			Order: []string{"a", "b"},
			Children: map[string]TaskDefinition{
				"a": {Single: &Task{Command: "echo", Args: []string{"a"}}},
				"b": {Single: &Task{Command: "echo", Args: []string{"b"}, DependsOn: []string{"a"}}},
			},
		}},
	}

	idx, err := BuildIndex(tasks)
	require.NoError(t, err)

	_, hasGroup := idx.Entries["build"]
	require.True(t, hasGroup)
	entryA, hasA := idx.Entries["build.a"]
	require.True(t, hasA)
	require.NotNil(t, entryA.Definition.Single)

	entryB, hasB := idx.Entries["build.b"]
	require.True(t, hasB)
	require.Equal(t, []string{"build.a"}, entryB.Definition.Single.DependsOn)
}

func TestBuildIndex_SequentialChildrenNotIndividuallyNamed(t *testing.T) {
	tasks := map[string]TaskDefinition{
		"deploy": {Sequential: &Sequential{Children: []TaskDefinition{
			{Single: &Task{Command: "echo", Args: []string{"1"}}},
			{Single: &Task{Command: "echo", Args: []string{"2"}}},
		}}},
	}
	idx, err := BuildIndex(tasks)
	require.NoError(t, err)
	require.Len(t, idx.Entries, 1)
	require.NotNil(t, idx.Entries["deploy"].Definition.Sequential)
}

func TestBuildIndex_PrivateNameConvention(t *testing.T) {
	tasks := map[string]TaskDefinition{
		"_setup": {Single: &Task{Command: "echo"}},
	}
	idx, err := BuildIndex(tasks)
	require.NoError(t, err)
	_, ok := idx.Entries["setup"]
	require.True(t, ok)
}

func TestBuildIndex_BareDepResolvesToSibling(t *testing.T) {
	tasks := map[string]TaskDefinition{
		"test": {Single: &Task{Command: "echo"}},
		"build": {Parallel: &Parallel{
			Order: []string{"a"},
			Children: map[string]TaskDefinition{
				"a": {Single: &Task{Command: "echo", DependsOn: []string{"test"}}},
			},
		}},
	}
	idx, err := BuildIndex(tasks)
	require.NoError(t, err)
	// A bare dep name inside a Parallel group resolves to a sibling
	// within that group, not the project's top-level "test" task.
	require.Equal(t, []string{"build.test"}, idx.Entries["build.a"].Definition.Single.DependsOn)
}

func TestBuildIndex_DottedDepIsProjectAbsolute(t *testing.T) {
	tasks := map[string]TaskDefinition{
		"test": {Single: &Task{Command: "echo"}},
		"build": {Parallel: &Parallel{
			Order: []string{"a", "b"},
			Children: map[string]TaskDefinition{
				"a": {Single: &Task{Command: "echo", DependsOn: []string{"test"}}},
				"b": {Single: &Task{Command: "echo", DependsOn: []string{".test"}}},
			},
		}},
	}
	idx, err := BuildIndex(tasks)
	require.NoError(t, err)
	// A leading "." still splits into a dotted form and is treated as
	// project-absolute, landing on the top-level "test" task.
	require.Equal(t, []string{"test"}, idx.Entries["build.b"].Definition.Single.DependsOn)
}

func TestResolve_SuggestsCloseMatch(t *testing.T) {
	tasks := map[string]TaskDefinition{
		"build": {Single: &Task{Command: "echo"}},
	}
	idx, err := BuildIndex(tasks)
	require.NoError(t, err)

	_, err = idx.Resolve("biuld")
	require.Error(t, err)
	require.Contains(t, err.Error(), "build")
}

func TestBuildIndex_DuplicateCanonicalNameIsError(t *testing.T) {
	tasks := map[string]TaskDefinition{
		"build":  {Single: &Task{Command: "echo"}},
		"_build": {Single: &Task{Command: "echo"}},
	}
	_, err := BuildIndex(tasks)
	require.Error(t, err)
}
