package taskgraph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
)

// IndexEntry is one canonically-named entry of a built Index: either a
// leaf Task or a Sequential/Parallel group, reachable at Path.
type IndexEntry struct {
	Path       Path
	Definition TaskDefinition
}

// Index is the canonicalized, flattened view of one project's raw
// task map (specification §4.2 "build_index"). Parallel groups are
// flattened so each child is independently addressable by its dotted
// canonical name; Sequential groups keep their children anonymous,
// addressable only as part of the parent group.
type Index struct {
	Entries map[string]IndexEntry
	Order   []string // canonical names in first-registered order
}

// BuildIndex canonicalizes every task and nested group in tasks,
// flattening Parallel groups and canonicalizing every depends_on entry
// relative to its declaring task's namespace.
func BuildIndex(tasks map[string]TaskDefinition) (*Index, error) {
	idx := &Index{Entries: map[string]IndexEntry{}}

	rawNames := make([]string, 0, len(tasks))
	for name := range tasks {
		rawNames = append(rawNames, name)
	}
	sort.Strings(rawNames)

	for _, rawName := range rawNames {
		name := stripPrivatePrefix(rawName)
		path, err := ParsePath(name)
		if err != nil {
			return nil, err
		}
		if err := idx.register(path, tasks[rawName]); err != nil {
			return nil, err
		}
	}
	return idx, nil
}

func stripPrivatePrefix(raw string) string {
	return strings.TrimPrefix(raw, "_")
}

func (idx *Index) register(path Path, def TaskDefinition) error {
	canon := path.Canonical()
	if _, exists := idx.Entries[canon]; exists {
		return cuenverr.New(cuenverr.DuplicateFQDN, "build task index", canon)
	}

	canonDef, err := canonicalizeDeps(path, def)
	if err != nil {
		return err
	}
	idx.Entries[canon] = IndexEntry{Path: path, Definition: canonDef}
	idx.Order = append(idx.Order, canon)

	switch {
	case def.Sequential != nil:
		// Anonymous children are not independently indexed, but their
		// own nested Parallel groups still flatten under this path.
		for _, child := range def.Sequential.Children {
			if err := registerNestedOnly(idx, path, child); err != nil {
				return err
			}
		}
	case def.Parallel != nil:
		for _, childName := range def.Parallel.Order {
			childPath := path.Join(Path{Segments: []string{childName}})
			if err := idx.register(childPath, def.Parallel.Children[childName]); err != nil {
				return err
			}
		}
	}
	return nil
}

// registerNestedOnly walks a Sequential child's own nested groups
// without giving the child itself a canonical name, since Sequential
// children have no declared name (specification §4.2 algorithmic
// notes: "does not rewrite child names with numeric indices").
func registerNestedOnly(idx *Index, parentPath Path, def TaskDefinition) error {
	switch {
	case def.Sequential != nil:
		for _, child := range def.Sequential.Children {
			if err := registerNestedOnly(idx, parentPath, child); err != nil {
				return err
			}
		}
	case def.Parallel != nil:
		for _, childName := range def.Parallel.Order {
			childPath := parentPath.Join(Path{Segments: []string{childName}})
			if err := idx.register(childPath, def.Parallel.Children[childName]); err != nil {
				return err
			}
		}
	}
	return nil
}

// canonicalizeDeps rewrites every depends_on entry reachable from def
// into canonical, project-relative dotted form, per the namespace
// rules of specification §4.2: a task's own deps are relative to its
// parent path; a Parallel child's bare deps resolve to siblings
// (relative to the group's own path, which is that child's parent).
func canonicalizeDeps(path Path, def TaskDefinition) (TaskDefinition, error) {
	switch {
	case def.Single != nil:
		t := *def.Single
		canon := make([]string, 0, len(t.DependsOn))
		for _, raw := range t.DependsOn {
			c, err := canonicalizeDepRelative(path, raw)
			if err != nil {
				return TaskDefinition{}, err
			}
			canon = append(canon, c)
		}
		t.DependsOn = canon
		return TaskDefinition{Single: &t}, nil

	case def.Sequential != nil:
		children := make([]TaskDefinition, 0, len(def.Sequential.Children))
		for _, child := range def.Sequential.Children {
			c, err := canonicalizeDeps(path, child)
			if err != nil {
				return TaskDefinition{}, err
			}
			children = append(children, c)
		}
		return TaskDefinition{Sequential: &Sequential{Children: children}}, nil

	case def.Parallel != nil:
		newChildren := make(map[string]TaskDefinition, len(def.Parallel.Children))
		for _, name := range def.Parallel.Order {
			childPath := path.Join(Path{Segments: []string{name}})
			c, err := canonicalizeDeps(childPath, def.Parallel.Children[name])
			if err != nil {
				return TaskDefinition{}, err
			}
			newChildren[name] = c
		}
		return TaskDefinition{Parallel: &Parallel{Children: newChildren, Order: append([]string(nil), def.Parallel.Order...)}}, nil

	default:
		return def, nil
	}
}

func canonicalizeDepRelative(taskPath Path, raw string) (string, error) {
	// "#project:task.path" names another project; the registry resolves it.
	if strings.HasPrefix(raw, "#") {
		return raw, nil
	}
	if strings.ContainsAny(raw, ".:") {
		p, err := ParsePath(raw)
		if err != nil {
			return "", err
		}
		return p.Canonical(), nil
	}
	bare, err := ParsePath(raw)
	if err != nil {
		return "", err
	}
	namespace, ok := taskPath.Parent()
	if !ok {
		namespace = Path{}
	}
	return namespace.Join(bare).Canonical(), nil
}

// Resolve looks up raw within the index, returning a TaskNotFound
// error carrying the available canonical names and a best-effort
// suggestion (Damerau-Levenshtein distance <= 2) on miss.
func (idx *Index) Resolve(raw string) (*IndexEntry, error) {
	path, err := ParsePath(raw)
	if err != nil {
		return nil, err
	}
	canon := path.Canonical()
	if entry, ok := idx.Entries[canon]; ok {
		return &entry, nil
	}

	suggestion, found := closestMatch(canon, idx.Order, 2)
	msg := fmt.Sprintf("available: %s", strings.Join(idx.Order, ", "))
	if found {
		msg = fmt.Sprintf("did you mean %q? (%s)", suggestion, msg)
	}
	return nil, cuenverr.New(cuenverr.TaskNotFound, "resolve task", canon+": "+msg)
}
