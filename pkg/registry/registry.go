// Package registry builds the cross-project, FQDN-keyed task registry
// for a whole module (specification §4.3).
package registry

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/evalgateway"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
)

// Registry is the global FQDN -> TaskDefinition map produced by
// Build, plus enough bookkeeping to print useful diagnostics.
type Registry struct {
	ModuleRoot   string
	Tasks        map[string]taskgraph.TaskDefinition // FQDN -> definition, depends_on already FQDNs
	Order        []string                            // FQDNs in stable discovery order
	ProjectIDs   map[string]string                   // declared project name -> assigned project id (first occurrence only)
	projectIndex map[string]*taskgraph.Index         // project id -> its per-project index
}

type projectEntry struct {
	instance evalgateway.ProjectInstance
	id       string
}

// Build discovers every project under moduleRoot via evaluator,
// assigns stable project ids, applies contributors, canonicalizes
// every dependency to an FQDN, and resolves task_ref placeholders
// (specification §4.3 steps 1-7).
func Build(evaluator evalgateway.Evaluator, moduleRoot string, contributors []Contributor) (*Registry, error) {
	module, err := evaluator.Evaluate(moduleRoot)
	if err != nil {
		return nil, cuenverr.Wrap(cuenverr.ConfigEvaluation, "discover projects", moduleRoot, err)
	}

	entries, projectIDs := assignProjectIDs(module.Projects)

	for _, pe := range entries {
		ctx := DetectContributorContext(filepath.Join(moduleRoot, pe.instance.Path))
		for _, c := range contributors {
			if _, err := c(ctx, pe.instance.Tasks); err != nil {
				return nil, fmt.Errorf("apply contributor to project %q: %w", pe.id, err)
			}
		}
	}

	reg := &Registry{
		ModuleRoot:   moduleRoot,
		Tasks:        map[string]taskgraph.TaskDefinition{},
		ProjectIDs:   projectIDs,
		projectIndex: map[string]*taskgraph.Index{},
	}

	for _, pe := range entries {
		idx, err := taskgraph.BuildIndex(pe.instance.Tasks)
		if err != nil {
			return nil, fmt.Errorf("build task index for project %q: %w", pe.id, err)
		}
		reg.projectIndex[pe.id] = idx

		for _, canon := range idx.Order {
			fqdn := pe.id + ":" + canon
			def, err := canonicalizeDefDeps(idx.Entries[canon].Definition, pe.id, projectIDs)
			if err != nil {
				return nil, err
			}
			if _, exists := reg.Tasks[fqdn]; exists {
				return nil, cuenverr.New(cuenverr.DuplicateFQDN, "build registry", fqdn)
			}
			reg.Tasks[fqdn] = def
			reg.Order = append(reg.Order, fqdn)
		}
	}

	if err := reg.resolveTaskRefs(); err != nil {
		return nil, err
	}

	if err := reg.validateDependenciesResolve(); err != nil {
		return nil, err
	}

	return reg, nil
}

// assignProjectIDs gives each project a stable id: its declared name,
// or a path-disambiguated variant on collision (specification §4.3
// step 2-3).
func assignProjectIDs(projects []evalgateway.ProjectInstance) ([]projectEntry, map[string]string) {
	used := map[string]bool{}
	firstNameToID := map[string]string{}
	entries := make([]projectEntry, 0, len(projects))

	for _, p := range projects {
		id := p.Name
		if id == "" {
			id = p.Path
		}
		if used[id] {
			disambiguator := sanitizePathSegment(p.Path)
			candidate := id + "-" + disambiguator
			for i := 2; used[candidate]; i++ {
				candidate = fmt.Sprintf("%s-%s-%d", id, disambiguator, i)
			}
			id = candidate
		}
		used[id] = true
		if _, ok := firstNameToID[p.Name]; !ok {
			firstNameToID[p.Name] = id
		}
		entries = append(entries, projectEntry{instance: p, id: id})
	}
	return entries, firstNameToID
}

func sanitizePathSegment(path string) string {
	s := strings.ReplaceAll(path, string(filepath.Separator), "-")
	s = strings.Trim(s, "-")
	if s == "" {
		return "root"
	}
	return s
}

// canonicalizeDefDeps converts every depends_on entry of a leaf Single
// task to a full FQDN. Group definitions (Sequential/Parallel) carry
// no depends_on of their own. Sequential children are anonymous, so
// their deps are converted here, recursively; Parallel children are
// individually registered and canonicalized as their own FQDN entries.
func canonicalizeDefDeps(def taskgraph.TaskDefinition, owningProjectID string, projectIDs map[string]string) (taskgraph.TaskDefinition, error) {
	if def.Sequential != nil {
		children := make([]taskgraph.TaskDefinition, 0, len(def.Sequential.Children))
		for _, child := range def.Sequential.Children {
			c, err := canonicalizeDefDeps(child, owningProjectID, projectIDs)
			if err != nil {
				return taskgraph.TaskDefinition{}, err
			}
			children = append(children, c)
		}
		return taskgraph.TaskDefinition{Sequential: &taskgraph.Sequential{Children: children}}, nil
	}
	if def.Single == nil {
		return def, nil
	}
	t := *def.Single
	fqdns := make([]string, 0, len(t.DependsOn))
	for _, dep := range t.DependsOn {
		fqdn, err := depToFQDN(dep, owningProjectID, projectIDs)
		if err != nil {
			return taskgraph.TaskDefinition{}, err
		}
		fqdns = append(fqdns, fqdn)
	}
	t.DependsOn = dedupeStrings(fqdns)
	return taskgraph.TaskDefinition{Single: &t}, nil
}

// depToFQDN converts one already-project-canonical dependency string
// to an FQDN. A "#projectName:task.path" form is cross-project
// (specification §4.3 step 6); anything else was already canonicalized
// relative to its own project by taskgraph.BuildIndex, so it only
// needs the owning project's id prefixed.
func depToFQDN(dep, owningProjectID string, projectIDs map[string]string) (string, error) {
	if strings.HasPrefix(dep, "#") {
		rest := dep[1:]
		idx := strings.Index(rest, ":")
		if idx < 0 {
			return "", cuenverr.New(cuenverr.ConfigEvaluation, "parse cross-project dependency", dep)
		}
		projectName, rawPath := rest[:idx], rest[idx+1:]
		targetID, ok := projectIDs[projectName]
		if !ok {
			return "", cuenverr.New(cuenverr.ConfigEvaluation, "resolve cross-project dependency target", dep)
		}
		path, err := taskgraph.ParsePath(rawPath)
		if err != nil {
			return "", err
		}
		return targetID + ":" + path.Canonical(), nil
	}
	return owningProjectID + ":" + dep, nil
}

func dedupeStrings(in []string) []string {
	seen := map[string]bool{}
	out := make([]string, 0, len(in))
	for _, s := range in {
		if !seen[s] {
			seen[s] = true
			out = append(out, s)
		}
	}
	return out
}

// validateDependenciesResolve checks every dep in the final registry
// resolves in the map (specification §4.3 "Invariants").
func (r *Registry) validateDependenciesResolve() error {
	for fqdn, def := range r.Tasks {
		if def.Single == nil {
			continue
		}
		for _, dep := range def.Single.DependsOn {
			if _, ok := r.Tasks[dep]; !ok {
				return cuenverr.New(cuenverr.TaskNotFound, "resolve dependency "+dep+" of "+fqdn, dep)
			}
		}
	}
	return nil
}
