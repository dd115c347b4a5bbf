// Package fingerprint resolves a task's declared input patterns against
// a project root and computes its cache key (specification §4.4).
package fingerprint

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/digest"
)

// ResolvedInput is one file pulled into a task's input set, keyed by
// its project-relative path.
type ResolvedInput struct {
	RelPath string
	Content digest.Digest
}

// ResolvedInputs is the full input set for one fingerprint+execute
// cycle. Files are kept sorted by RelPath so downstream consumers
// never need to re-sort for determinism.
type ResolvedInputs struct {
	ProjectRoot string
	Files       []ResolvedInput
}

// hasGlobMeta reports whether pattern contains any glob metacharacter,
// distinguishing prefix patterns from glob patterns (specification
// §4.4 "Pattern semantics").
func hasGlobMeta(pattern string) bool {
	return strings.ContainsAny(pattern, "*?[")
}

// ResolveInputs walks projectRoot once, then matches every pattern
// against the discovered relative paths, unioning the results.
// changedFiles, when non-nil, restricts the walk to that explicit set
// (used for incremental re-fingerprinting against a known-changed
// file list rather than a full project walk).
func ResolveInputs(patterns []string, projectRoot string, changedFiles []string) (*ResolvedInputs, error) {
	absRoot, err := filepath.Abs(projectRoot)
	if err != nil {
		return nil, cuenverr.Wrap(cuenverr.PathSafety, "resolve project root", projectRoot, err)
	}

	var candidates []string
	if changedFiles != nil {
		candidates = changedFiles
	} else {
		candidates, err = walkRelPaths(absRoot)
		if err != nil {
			return nil, err
		}
	}

	matched := map[string]bool{}
	for _, pattern := range patterns {
		for _, rel := range candidates {
			if matchesPattern(pattern, rel) {
				matched[rel] = true
			}
		}
	}

	relPaths := make([]string, 0, len(matched))
	for rel := range matched {
		relPaths = append(relPaths, rel)
	}
	sort.Strings(relPaths)

	files := make([]ResolvedInput, 0, len(relPaths))
	for _, rel := range relPaths {
		content, err := readFileDigest(absRoot, rel)
		if err != nil {
			return nil, err
		}
		files = append(files, ResolvedInput{RelPath: rel, Content: content})
	}

	return &ResolvedInputs{ProjectRoot: absRoot, Files: files}, nil
}

func matchesPattern(pattern, relPath string) bool {
	if !hasGlobMeta(pattern) {
		return relPath == pattern || strings.HasPrefix(relPath, pattern)
	}
	ok, err := doublestar.Match(pattern, relPath)
	return err == nil && ok
}

// walkRelPaths lists every regular (or safely-followed-symlink)
// file under root, relative to root, skipping VCS/dependency dirs.
func walkRelPaths(root string) ([]string, error) {
	var out []string
	err := filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return relErr
		}
		if rel == "." {
			return nil
		}
		if d.IsDir() {
			if skipWalkDirs[d.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		out = append(out, filepath.ToSlash(rel))
		return nil
	})
	if err != nil {
		return nil, cuenverr.Wrap(cuenverr.PathSafety, "walk project root", root, err)
	}
	return out, nil
}

var skipWalkDirs = map[string]bool{
	".git": true, ".cuenv": true, "node_modules": true, "vendor": true, "target": true,
}

// readFileDigest reads root/relPath and hashes its contents, following
// symlinks only when their resolved target stays inside root
// (specification §4.4 "Edge policies").
func readFileDigest(root, relPath string) (digest.Digest, error) {
	abs := filepath.Join(root, filepath.FromSlash(relPath))

	info, err := os.Lstat(abs)
	if err != nil {
		return digest.Digest{}, cuenverr.Wrap(cuenverr.MissingInput, "read input", relPath, err)
	}
	if info.Mode()&os.ModeSymlink != 0 {
		target, err := filepath.EvalSymlinks(abs)
		if err != nil {
			return digest.Digest{}, cuenverr.Wrap(cuenverr.MissingInput, "resolve symlink", relPath, err)
		}
		if !withinRoot(root, target) {
			return digest.Digest{}, cuenverr.New(cuenverr.PathSafety, "symlink escapes project root", relPath)
		}
	}

	content, err := os.ReadFile(abs)
	if err != nil {
		return digest.Digest{}, cuenverr.Wrap(cuenverr.MissingInput, "read input", relPath, err)
	}
	return digest.Bytes(content), nil
}

func withinRoot(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
