// Package cachestore implements the two-level sharded,
// content-addressed cache store (specification §4.5).
package cachestore

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/digest"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
	"github.com/klauspost/compress/zstd"
)

// Metadata is the ground-truth existence marker for a cache entry
// (metadata.json).
type Metadata struct {
	Key         string            `json:"key"`
	Command     string            `json:"command"`
	Args        []string          `json:"args,omitempty"`
	Outputs     map[string]string `json:"outputs"` // rel_path -> sha256
	ExitCode    int               `json:"exit_code"`
	DurationMs  int64             `json:"duration_ms"`
}

// Entry is a materialized view of a stored cache entry.
type Entry struct {
	Root     string
	Metadata Metadata
}

// Store is a filesystem-backed, two-level sharded content-addressed
// cache store rooted at Root.
type Store struct {
	Root string

	mu        sync.Mutex
	inflight  map[string]*inflightBuild
}

type inflightBuild struct {
	done chan struct{}
	err  error
}

// New opens (without requiring it to yet exist) a cache store rooted
// at root.
func New(root string) *Store {
	return &Store{Root: root, inflight: map[string]*inflightBuild{}}
}

func (s *Store) entryDir(key string) (string, error) {
	d := digest.Digest{Hash: key}
	a, b, full, err := d.ShardPath()
	if err != nil {
		return "", cuenverr.Wrap(cuenverr.CacheIO, "shard cache key", key, err)
	}
	return filepath.Join(s.Root, a, b, full), nil
}

// Lookup returns the cache entry for key, or (Entry{}, false) when
// absent or when policy excludes reading (specification §4.5
// "Interface").
func (s *Store) Lookup(key string, policy taskgraph.CachePolicy) (Entry, bool, error) {
	if policy == taskgraph.CacheWriteOnly || policy == taskgraph.CacheDisabled {
		return Entry{}, false, nil
	}

	dir, err := s.entryDir(key)
	if err != nil {
		return Entry{}, false, err
	}
	metaPath := filepath.Join(dir, "metadata.json")
	raw, err := os.ReadFile(metaPath)
	if err != nil {
		if os.IsNotExist(err) {
			return Entry{}, false, nil
		}
		return Entry{}, false, cuenverr.Wrap(cuenverr.CacheIO, "read cache metadata", metaPath, err)
	}

	var meta Metadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		// A partially written or corrupt entry is treated as absent.
		return Entry{}, false, nil
	}
	return Entry{Root: dir, Metadata: meta}, true, nil
}

// StoreResult is the payload persisted for one completed task
// execution.
type StoreResult struct {
	Meta        Metadata
	OutputsRoot string // directory holding the task's produced output files, by rel_path
	HermeticRoot string // the full hermetic workspace, snapshotted into workspace.tar.zst
	Stdout      []byte
	Stderr      []byte
}

// Store persists result under key, doing nothing when policy excludes
// writing. Writes go to a temp sibling directory, then rename
// atomically into place so readers only ever see a fully written
// entry or none (specification §4.5 "Guarantees").
func (s *Store) Store(key string, result StoreResult, policy taskgraph.CachePolicy) error {
	if policy == taskgraph.CacheReadOnly || policy == taskgraph.CacheDisabled {
		return nil
	}

	dir, err := s.entryDir(key)
	if err != nil {
		return err
	}
	if _, err := os.Stat(filepath.Join(dir, "metadata.json")); err == nil {
		return nil // already present; entries are never modified after creation
	}

	tmp := dir + ".tmp-" + randomSuffix()
	if err := os.MkdirAll(tmp, 0o755); err != nil {
		return cuenverr.Wrap(cuenverr.CacheIO, "create temp cache entry", tmp, err)
	}
	defer os.RemoveAll(tmp)

	if err := writeOutputs(tmp, result.OutputsRoot); err != nil {
		return err
	}
	if err := writeLogs(tmp, result.Stdout, result.Stderr); err != nil {
		return err
	}
	if result.HermeticRoot != "" {
		if err := writeWorkspaceSnapshot(tmp, result.HermeticRoot); err != nil {
			return err
		}
	}

	metaBytes, err := json.MarshalIndent(result.Meta, "", "  ")
	if err != nil {
		return cuenverr.Wrap(cuenverr.CacheIO, "marshal cache metadata", dir, err)
	}
	if err := os.WriteFile(filepath.Join(tmp, "metadata.json"), metaBytes, 0o644); err != nil {
		return cuenverr.Wrap(cuenverr.CacheIO, "write cache metadata", dir, err)
	}

	if err := os.MkdirAll(filepath.Dir(dir), 0o755); err != nil {
		return cuenverr.Wrap(cuenverr.CacheIO, "create cache shard dir", dir, err)
	}
	if err := os.Rename(tmp, dir); err != nil {
		if os.IsExist(err) {
			return nil // lost the race to another writer; their entry is equally valid
		}
		return cuenverr.Wrap(cuenverr.CacheIO, "publish cache entry", dir, err)
	}
	return nil
}

// MaterializeOutputs copies every file under entry's outputs/ tree
// into destination, returning the count of files written.
func (s *Store) MaterializeOutputs(entry Entry, destination string) (int, error) {
	outputsRoot := filepath.Join(entry.Root, "outputs")
	count := 0
	err := filepath.WalkDir(outputsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(outputsRoot, path)
		if err != nil {
			return err
		}
		dst := filepath.Join(destination, rel)
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		if err := copyFile(path, dst); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return 0, cuenverr.Wrap(cuenverr.CacheIO, "materialize cached outputs", destination, err)
	}
	return count, nil
}

func writeOutputs(tmp, outputsRoot string) error {
	dst := filepath.Join(tmp, "outputs")
	if outputsRoot == "" {
		return os.MkdirAll(dst, 0o755)
	}
	return filepath.WalkDir(outputsRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, relErr := filepath.Rel(outputsRoot, path)
		if relErr != nil {
			return relErr
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}

func writeLogs(tmp string, stdout, stderr []byte) error {
	logsDir := filepath.Join(tmp, "logs")
	if err := os.MkdirAll(logsDir, 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(logsDir, "stdout.log"), stdout, 0o644); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(logsDir, "stderr.log"), stderr, 0o644)
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

func writeWorkspaceSnapshot(tmp, hermeticRoot string) error {
	f, err := os.Create(filepath.Join(tmp, "workspace.tar.zst"))
	if err != nil {
		return cuenverr.Wrap(cuenverr.CacheIO, "create workspace snapshot", tmp, err)
	}
	defer f.Close()

	enc, err := zstd.NewWriter(f)
	if err != nil {
		return cuenverr.Wrap(cuenverr.CacheIO, "open zstd writer", tmp, err)
	}
	defer enc.Close()

	return tarDirInto(enc, hermeticRoot)
}
