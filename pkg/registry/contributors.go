package registry

import (
	"os"
	"path/filepath"

	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
)

// ContributorContext carries per-project ecosystem signals (lockfile
// presence) available to contributor functions (specification §9
// "Contributor engine").
type ContributorContext struct {
	ProjectRoot string
	HasNpmLock  bool
	HasYarnLock bool
	HasPnpmLock bool
	HasBunLock  bool
	HasCargoLock bool
	HasGoSum    bool
}

// DetectContributorContext inspects projectRoot's top-level files for
// package-manager lockfiles.
func DetectContributorContext(projectRoot string) ContributorContext {
	exists := func(name string) bool {
		_, err := os.Stat(filepath.Join(projectRoot, name))
		return err == nil
	}
	return ContributorContext{
		ProjectRoot:  projectRoot,
		HasNpmLock:   exists("package-lock.json"),
		HasYarnLock:  exists("yarn.lock"),
		HasPnpmLock:  exists("pnpm-lock.yaml"),
		HasBunLock:   exists("bun.lockb"),
		HasCargoLock: exists("Cargo.lock"),
		HasGoSum:     exists("go.sum"),
	}
}

// Contributor is a deterministic, idempotent function that injects
// synthetic tasks into a project's raw task map based on detected
// ecosystem signals. Idempotency is enforced by checking the target
// name isn't already present before inserting (specification §4.3
// step 4, §9).
type Contributor func(ctx ContributorContext, tasks map[string]taskgraph.TaskDefinition) (injected int, err error)

// DefaultContributors returns the built-in contributor set, applied in
// order.
func DefaultContributors() []Contributor {
	return []Contributor{npmInstallContributor, cargoFetchContributor, goModDownloadContributor}
}

func injectIfAbsent(tasks map[string]taskgraph.TaskDefinition, name string, def taskgraph.TaskDefinition) int {
	if _, exists := tasks[name]; exists {
		return 0
	}
	tasks[name] = def
	return 1
}

func npmInstallContributor(ctx ContributorContext, tasks map[string]taskgraph.TaskDefinition) (int, error) {
	if !ctx.HasNpmLock && !ctx.HasYarnLock && !ctx.HasPnpmLock && !ctx.HasBunLock {
		return 0, nil
	}
	cmd, args := "npm", []string{"ci"}
	switch {
	case ctx.HasBunLock:
		cmd, args = "bun", []string{"install", "--frozen-lockfile"}
	case ctx.HasPnpmLock:
		cmd, args = "pnpm", []string{"install", "--frozen-lockfile"}
	case ctx.HasYarnLock:
		cmd, args = "yarn", []string{"install", "--frozen-lockfile"}
	}
	return injectIfAbsent(tasks, "install", taskgraph.TaskDefinition{Single: &taskgraph.Task{
		Command:     cmd,
		Args:        args,
		Inputs:      []taskgraph.Input{{Pattern: "package.json"}, {Pattern: lockfilePattern(ctx)}},
		Outputs:     []string{"node_modules/**"},
		CachePolicy: taskgraph.CacheNormal,
		ProjectRoot: ctx.ProjectRoot,
	}}), nil
}

func lockfilePattern(ctx ContributorContext) string {
	switch {
	case ctx.HasBunLock:
		return "bun.lockb"
	case ctx.HasPnpmLock:
		return "pnpm-lock.yaml"
	case ctx.HasYarnLock:
		return "yarn.lock"
	default:
		return "package-lock.json"
	}
}

func cargoFetchContributor(ctx ContributorContext, tasks map[string]taskgraph.TaskDefinition) (int, error) {
	if !ctx.HasCargoLock {
		return 0, nil
	}
	return injectIfAbsent(tasks, "fetch", taskgraph.TaskDefinition{Single: &taskgraph.Task{
		Command:     "cargo",
		Args:        []string{"fetch"},
		Inputs:      []taskgraph.Input{{Pattern: "Cargo.toml"}, {Pattern: "Cargo.lock"}},
		CachePolicy: taskgraph.CacheNormal,
		ProjectRoot: ctx.ProjectRoot,
	}}), nil
}

func goModDownloadContributor(ctx ContributorContext, tasks map[string]taskgraph.TaskDefinition) (int, error) {
	if !ctx.HasGoSum {
		return 0, nil
	}
	return injectIfAbsent(tasks, "download", taskgraph.TaskDefinition{Single: &taskgraph.Task{
		Command:     "go",
		Args:        []string{"mod", "download"},
		Inputs:      []taskgraph.Input{{Pattern: "go.mod"}, {Pattern: "go.sum"}},
		CachePolicy: taskgraph.CacheNormal,
		ProjectRoot: ctx.ProjectRoot,
	}}), nil
}
