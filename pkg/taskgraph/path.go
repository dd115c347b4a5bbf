package taskgraph

import (
	"strings"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
)

// Path is a parsed, canonical task path: a non-empty list of segments,
// none of which contain "." or ":" (specification §3 "TaskPath").
type Path struct {
	Segments []string
}

// ParsePath parses a raw task-path string. ':' is treated as
// equivalent to '.'; surrounding and inter-segment whitespace is
// trimmed; empty segments are dropped. An empty result, or any
// remaining segment containing '.' or ':', is an InvalidTaskName
// error (specification §4.2 "parse_path").
func ParsePath(raw string) (Path, error) {
	trimmed := strings.TrimSpace(raw)
	normalized := strings.ReplaceAll(trimmed, ":", ".")

	// Splitting on "." after folding ":" into "." already guarantees no
	// surviving segment can contain either character.
	rawSegments := strings.Split(normalized, ".")
	var segments []string
	for _, s := range rawSegments {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		segments = append(segments, s)
	}
	if len(segments) == 0 {
		return Path{}, cuenverr.New(cuenverr.InvalidTaskName, "parse task path", raw)
	}
	return Path{Segments: segments}, nil
}

// Canonical joins the segments with '.', the canonical form
// (specification §3 "TaskPath").
func (p Path) Canonical() string {
	return strings.Join(p.Segments, ".")
}

// Parent returns the path with its final segment removed (the
// namespace a dependency declared inside this task resolves relative
// to), and whether a parent exists.
func (p Path) Parent() (Path, bool) {
	if len(p.Segments) <= 1 {
		return Path{}, false
	}
	return Path{Segments: append([]string(nil), p.Segments[:len(p.Segments)-1]...)}, true
}

// Join appends raw child segments onto p, producing a new Path without
// re-validating already-canonical segments.
func (p Path) Join(child Path) Path {
	segs := append([]string(nil), p.Segments...)
	segs = append(segs, child.Segments...)
	return Path{Segments: segs}
}
