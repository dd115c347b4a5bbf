package executor

import (
	"fmt"
	"strings"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
)

type nodeKind int

const (
	kindLeaf nodeKind = iota
	kindSequential
	kindParallel
)

// node is one vertex of the execution plan: either a real Single task
// (kindLeaf) or a synthetic barrier representing a Sequential/Parallel
// group (specification §4.7 step 1, "transitive closure").
type node struct {
	id       string
	kind     nodeKind
	task     *taskgraph.Task // set iff kindLeaf
	children []string        // ordered child node ids, set iff group
	deps     []string        // node ids this node waits on before it can run
}

// plan is the full set of nodes reachable from the requested roots,
// plus their dependency edges.
type plan struct {
	nodes map[string]*node
	roots []string
}

// buildPlan expands every requested root FQDN (and everything it
// transitively depends on or contains) into a plan.
func (e *Executor) buildPlan(roots []string) (*plan, error) {
	p := &plan{nodes: map[string]*node{}, roots: roots}
	for _, fqdn := range roots {
		if err := e.expand(fqdn, p); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// expand materializes the node for id (an FQDN) and recursively
// expands its dependencies and, for groups, its children.
func (e *Executor) expand(id string, p *plan) error {
	if _, ok := p.nodes[id]; ok {
		return nil
	}
	def, ok := e.Registry.Tasks[id]
	if !ok {
		return cuenverr.New(cuenverr.TaskNotFound, "expand execution plan", id)
	}

	switch {
	case def.Single != nil:
		n := &node{id: id, kind: kindLeaf, task: def.Single, deps: append([]string(nil), def.Single.DependsOn...)}
		if err := e.addCrossProjectDeps(n); err != nil {
			return err
		}
		p.nodes[id] = n
		for _, dep := range n.deps {
			if err := e.expand(dep, p); err != nil {
				return err
			}
		}

	case def.Sequential != nil:
		n := &node{id: id, kind: kindSequential}
		p.nodes[id] = n
		var prev string
		for i, child := range def.Sequential.Children {
			childID := fmt.Sprintf("%s#seq%d", id, i)
			if err := e.expandInline(childID, child, p); err != nil {
				return err
			}
			if prev != "" {
				p.nodes[childID].deps = append(p.nodes[childID].deps, prev)
			}
			n.children = append(n.children, childID)
			prev = childID
		}
		if prev != "" {
			n.deps = append(n.deps, prev)
		}

	case def.Parallel != nil:
		n := &node{id: id, kind: kindParallel}
		p.nodes[id] = n
		for _, name := range def.Parallel.Order {
			childID := id + "." + name
			if err := e.expand(childID, p); err != nil {
				return err
			}
			n.children = append(n.children, childID)
			n.deps = append(n.deps, childID)
		}
	}
	return nil
}

// expandInline materializes a Sequential child that has no FQDN of
// its own (specification §4.2: Sequential children are anonymous).
func (e *Executor) expandInline(syntheticID string, def taskgraph.TaskDefinition, p *plan) error {
	switch {
	case def.Single != nil:
		n := &node{id: syntheticID, kind: kindLeaf, task: def.Single, deps: append([]string(nil), def.Single.DependsOn...)}
		if err := e.addCrossProjectDeps(n); err != nil {
			return err
		}
		p.nodes[syntheticID] = n
		for _, dep := range n.deps {
			if err := e.expand(dep, p); err != nil {
				return err
			}
		}
	case def.Sequential != nil:
		n := &node{id: syntheticID, kind: kindSequential}
		p.nodes[syntheticID] = n
		var prev string
		for i, child := range def.Sequential.Children {
			childID := fmt.Sprintf("%s#seq%d", syntheticID, i)
			if err := e.expandInline(childID, child, p); err != nil {
				return err
			}
			if prev != "" {
				p.nodes[childID].deps = append(p.nodes[childID].deps, prev)
			}
			n.children = append(n.children, childID)
			prev = childID
		}
		if prev != "" {
			n.deps = append(n.deps, prev)
		}
	case def.Parallel != nil:
		n := &node{id: syntheticID, kind: kindParallel}
		p.nodes[syntheticID] = n
		for _, name := range def.Parallel.Order {
			childID := syntheticID + "." + name
			if err := e.expand(childID, p); err != nil {
				return err
			}
			n.children = append(n.children, childID)
			n.deps = append(n.deps, childID)
		}
	}
	return nil
}

type dfsColor int

const (
	white dfsColor = iota
	gray
	black
)

// detectCycle runs a colored-node DFS over p's dependency edges,
// reporting the full cycle path on failure (specification §4.7 step 2).
func (p *plan) detectCycle() error {
	colors := make(map[string]dfsColor, len(p.nodes))
	var stack []string

	var visit func(id string) error
	visit = func(id string) error {
		colors[id] = gray
		stack = append(stack, id)
		for _, dep := range p.nodes[id].deps {
			switch colors[dep] {
			case white:
				if err := visit(dep); err != nil {
					return err
				}
			case gray:
				cycleStart := 0
				for i, s := range stack {
					if s == dep {
						cycleStart = i
						break
					}
				}
				cyclePath := append(append([]string(nil), stack[cycleStart:]...), dep)
				return cuenverr.New(cuenverr.CycleDetected, "schedule tasks", strings.Join(cyclePath, " -> "))
			}
		}
		stack = stack[:len(stack)-1]
		colors[id] = black
		return nil
	}

	for id := range p.nodes {
		if colors[id] == white {
			if err := visit(id); err != nil {
				return err
			}
		}
	}
	return nil
}

// addCrossProjectDeps adds an implicit dependency edge for every
// cross-project input reference so the scheduler always runs the
// producing task first (specification §4.4 "Cross-project input
// references": "resolved by running the producing task first").
func (e *Executor) addCrossProjectDeps(n *node) error {
	for _, in := range n.task.Inputs {
		if in.Cross == nil {
			continue
		}
		targetID, ok := e.Registry.ProjectIDs[in.Cross.Project]
		if !ok {
			return cuenverr.New(cuenverr.TaskNotFound, "resolve cross-project input producer", in.Cross.Project)
		}
		path, err := taskgraph.ParsePath(in.Cross.Task)
		if err != nil {
			return err
		}
		producerFQDN := targetID + ":" + path.Canonical()
		if !containsString(n.deps, producerFQDN) {
			n.deps = append(n.deps, producerFQDN)
		}
	}
	return nil
}

func containsString(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

// dependents returns, for every node id, the set of node ids that
// list it as a dependency.
func (p *plan) dependents() map[string][]string {
	out := make(map[string][]string, len(p.nodes))
	for id, n := range p.nodes {
		for _, dep := range n.deps {
			out[dep] = append(out[dep], id)
		}
	}
	return out
}
