// Package config resolves cuenv's platform-appropriate filesystem
// locations (specification §6 "Filesystem locations") with environment
// variable overrides taking precedence over XDG/platform defaults.
package config

import (
	"os"
	"path/filepath"
	"runtime"
)

// Paths holds the resolved state/cache/runtime directories for one
// process invocation.
type Paths struct {
	StateDir   string // approvals, hook state
	CacheDir   string // content-addressed cache store root
	RuntimeDir string // sockets, PID file, lock file
}

// Resolve computes Paths from environment overrides, falling back to
// XDG Base Directory locations on Linux and Application Support /
// Caches / TMPDIR on macOS.
func Resolve() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}

	state, err := firstNonEmpty("CUENV_STATE_DIR", func() (string, error) { return defaultStateDir(home) })
	if err != nil {
		return Paths{}, err
	}
	cache, err := firstNonEmpty("CUENV_CACHE_DIR", func() (string, error) { return defaultCacheDir(home) })
	if err != nil {
		return Paths{}, err
	}
	runtime_, err := firstNonEmpty("CUENV_RUNTIME_DIR", func() (string, error) { return defaultRuntimeDir(home) })
	if err != nil {
		return Paths{}, err
	}

	return Paths{StateDir: state, CacheDir: cache, RuntimeDir: runtime_}, nil
}

// ApprovalsPath returns the path to the approvals file under the state
// directory (specification §6 "Approvals file").
func (p Paths) ApprovalsPath() string {
	return filepath.Join(p.StateDir, "approved.json")
}

// CoordinatorSocketPath returns the Unix socket path, honoring the
// CUENV_COORDINATOR_SOCKET override.
func (p Paths) CoordinatorSocketPath() string {
	if override := os.Getenv("CUENV_COORDINATOR_SOCKET"); override != "" {
		return override
	}
	return filepath.Join(p.RuntimeDir, "coordinator.sock")
}

// CoordinatorPIDPath returns the coordinator's PID file path.
func (p Paths) CoordinatorPIDPath() string {
	return filepath.Join(p.RuntimeDir, "coordinator.pid")
}

// CoordinatorLockPath returns the coordinator's advisory lock file path.
func (p Paths) CoordinatorLockPath() string {
	return filepath.Join(p.RuntimeDir, "coordinator.lock")
}

func firstNonEmpty(envVar string, fallback func() (string, error)) (string, error) {
	if v := os.Getenv(envVar); v != "" {
		if filepath.IsAbs(v) {
			return filepath.Clean(v), nil
		}
		abs, err := filepath.Abs(v)
		if err != nil {
			return "", err
		}
		return filepath.Clean(abs), nil
	}
	return fallback()
}

func defaultStateDir(home string) (string, error) {
	if xdg := os.Getenv("XDG_STATE_HOME"); xdg != "" && runtime.GOOS == "linux" {
		return filepath.Join(xdg, "cuenv"), nil
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Application Support", "cuenv"), nil
	default:
		return filepath.Join(home, ".local", "state", "cuenv"), nil
	}
}

func defaultCacheDir(home string) (string, error) {
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" && runtime.GOOS == "linux" {
		return filepath.Join(xdg, "cuenv"), nil
	}
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(home, "Library", "Caches", "cuenv"), nil
	default:
		return filepath.Join(home, ".cache", "cuenv"), nil
	}
}

func defaultRuntimeDir(home string) (string, error) {
	if xdg := os.Getenv("XDG_RUNTIME_DIR"); xdg != "" && runtime.GOOS == "linux" {
		return filepath.Join(xdg, "cuenv"), nil
	}
	if tmp := os.Getenv("TMPDIR"); tmp != "" {
		return filepath.Join(tmp, "cuenv"), nil
	}
	return filepath.Join(os.TempDir(), "cuenv"), nil
}

// EnsureDirs creates every directory in p with 0700 permissions
// (state and runtime dirs may hold secrets/sockets).
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.StateDir, p.CacheDir, p.RuntimeDir} {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return nil
}
