// Package materializer assembles a hermetic per-task workspace before
// process execution (specification §4.6).
package materializer

import (
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/fingerprint"
)

// Workspace is a materialized hermetic directory, ready for process
// execution.
type Workspace struct {
	Root string
}

// Materialize builds a fresh hermetic workspace: every resolved input
// is copied to its canonical rel_path under a new directory
// (specification §4.6 steps 1-2). Callers apply cross-project output
// mappings into resolved beforehand (fingerprint.ApplyCrossProjectMappings,
// per step 3) and read file contents from sourceRoot.
func Materialize(sourceRoot, hermeticRoot string, resolved *fingerprint.ResolvedInputs) (*Workspace, error) {
	if err := os.MkdirAll(hermeticRoot, 0o755); err != nil {
		return nil, cuenverr.Wrap(cuenverr.PathSafety, "create hermetic root", hermeticRoot, err)
	}

	for _, f := range resolved.Files {
		dst, err := safeJoin(hermeticRoot, f.RelPath)
		if err != nil {
			return nil, err
		}
		src, err := safeJoin(sourceRoot, f.RelPath)
		if err != nil {
			return nil, err
		}
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return nil, cuenverr.Wrap(cuenverr.PathSafety, "create workspace subdir", dst, err)
		}
		if err := copyFile(src, dst); err != nil {
			return nil, cuenverr.Wrap(cuenverr.PathSafety, "materialize input", f.RelPath, err)
		}
	}

	return &Workspace{Root: hermeticRoot}, nil
}

// safeJoin joins root and relPath and verifies the canonicalized
// result still lies within root (specification §4.6 "Path safety").
func safeJoin(root, relPath string) (string, error) {
	joined := filepath.Join(root, filepath.FromSlash(relPath))
	canonicalRoot, err := filepath.Abs(root)
	if err != nil {
		return "", cuenverr.Wrap(cuenverr.PathSafety, "canonicalize root", root, err)
	}
	canonical, err := filepath.Abs(joined)
	if err != nil {
		return "", cuenverr.Wrap(cuenverr.PathSafety, "canonicalize destination", joined, err)
	}
	rel, err := filepath.Rel(canonicalRoot, canonical)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", cuenverr.New(cuenverr.PathSafety, "path escapes hermetic root", relPath)
	}
	return canonical, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	info, err := in.Stat()
	if err != nil {
		return err
	}
	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, info.Mode())
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = io.Copy(out, in)
	return err
}

// LinkSharedTarget replaces any existing file or symlink at
// destination with a symlink to target — the Cargo shared-target-dir
// strategy (specification §4.6 step 4).
func LinkSharedTarget(workspace *Workspace, relDest, target string) error {
	dst, err := safeJoin(workspace.Root, relDest)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return cuenverr.Wrap(cuenverr.PathSafety, "create shared-target parent", dst, err)
	}
	if _, err := os.Lstat(dst); err == nil {
		if err := os.Remove(dst); err != nil {
			return cuenverr.Wrap(cuenverr.PathSafety, "replace existing shared-target entry", dst, err)
		}
	}
	if err := os.Symlink(target, dst); err != nil {
		return cuenverr.Wrap(cuenverr.PathSafety, "link shared target dir", dst, err)
	}
	return nil
}

// Discard removes the hermetic workspace after its snapshot has been
// captured (specification §4.6 step 5).
func (w *Workspace) Discard() error {
	return os.RemoveAll(w.Root)
}
