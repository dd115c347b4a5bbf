// Package evalgateway bridges to the external typed config engine
// (specification §1, §4 "Config evaluator gateway"). The real engine
// is an out-of-scope collaborator; this package defines the Evaluator
// contract plus a reference implementation that discovers projects by
// walking for module markers and decoding a YAML task manifest, so
// every downstream component (registry, executor, hooks) can be
// exercised without embedding a full config-language interpreter.
package evalgateway

import "github.com/cuenv-dev/cuenv/pkg/taskgraph"

// ProjectInstance is one evaluated project (specification §3).
type ProjectInstance struct {
	Name     string // declared name
	Path     string // relative to the module root
	Manifest string // absolute path to the manifest file that produced Tasks
	Tasks    map[string]taskgraph.TaskDefinition
}

// Module is the evaluator's output for an entire module: every
// project instance rooted under a single module root (specification
// §3 [ADDED] "Module").
type Module struct {
	Root     string
	Projects []ProjectInstance
}

// Evaluator is the external typed-config engine contract. Production
// cuenv bridges to the CUE-based engine; this interface is all the
// rest of the system depends on.
type Evaluator interface {
	// Evaluate discovers and evaluates every project under moduleRoot,
	// returning a fully-populated Module.
	Evaluate(moduleRoot string) (Module, error)

	// EvaluateProject evaluates a single project's manifest at path,
	// used by the registry when it needs to pull in one additional
	// project lazily (specification §4.3 "a callback to evaluate a
	// manifest at a given path").
	EvaluateProject(path string) (ProjectInstance, error)
}
