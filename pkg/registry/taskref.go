package registry

import (
	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
)

const maxTaskRefChainDepth = 32

// resolveTaskRefs replaces every placeholder task (non-empty TaskRef)
// with a clone of the referenced task, merging in the placeholder's
// own dependencies (specification §4.3 step 5). Dependency FQDN
// canonicalization has already run for every task by this point
// (including the placeholder's own depends_on addenda, read relative
// to the placeholder's declaring project), so merging here is a pure
// FQDN-set union.
func (r *Registry) resolveTaskRefs() error {
	for fqdn, def := range r.Tasks {
		if def.Single == nil || def.Single.TaskRef == "" {
			continue
		}
		resolved, err := r.resolveTaskRefChain(fqdn, def.Single.TaskRef, def.Single.DependsOn, 0)
		if err != nil {
			return err
		}
		r.Tasks[fqdn] = taskgraph.TaskDefinition{Single: resolved}
	}
	return nil
}

func (r *Registry) resolveTaskRefChain(placeholderFQDN, ref string, placeholderDeps []string, depth int) (*taskgraph.Task, error) {
	if depth >= maxTaskRefChainDepth {
		return nil, cuenverr.New(cuenverr.ConfigEvaluation, "resolve task_ref chain (too deep, possible cycle)", placeholderFQDN)
	}

	targetFQDN, err := depToFQDN(ref, owningProjectOf(placeholderFQDN), r.ProjectIDs)
	if err != nil {
		return nil, err
	}
	targetDef, ok := r.Tasks[targetFQDN]
	if !ok || targetDef.Single == nil {
		return nil, cuenverr.New(cuenverr.TaskNotFound, "resolve task_ref target", targetFQDN)
	}

	if targetDef.Single.TaskRef != "" {
		return r.resolveTaskRefChain(placeholderFQDN, targetDef.Single.TaskRef, dedupeStrings(append(append([]string{}, targetDef.Single.DependsOn...), placeholderDeps...)), depth+1)
	}

	clone := *targetDef.Single
	clone.DependsOn = dedupeStrings(append(append([]string{}, targetDef.Single.DependsOn...), placeholderDeps...))
	clone.TaskRef = ""
	return &clone, nil
}

func owningProjectOf(fqdn string) string {
	for i := 0; i < len(fqdn); i++ {
		if fqdn[i] == ':' {
			return fqdn[:i]
		}
	}
	return fqdn
}
