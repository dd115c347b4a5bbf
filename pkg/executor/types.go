// Package executor implements the DAG task scheduler: dependency
// closure, cycle detection, bounded-concurrency execution, and
// cache-aware task running (specification §4.7).
package executor

import (
	"runtime"

	"github.com/cuenv-dev/cuenv/pkg/cachestore"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/cuenv-dev/cuenv/pkg/registry"
)

// State is a node's lifecycle state within one Run.
type State int

const (
	Pending State = iota
	Running
	Success
	Failed
	Skipped
	Cancelled
)

func (s State) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Success:
		return "success"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (s State) Terminal() bool {
	return s == Success || s == Failed || s == Skipped || s == Cancelled
}

// Options configures one Run invocation.
type Options struct {
	MaxConcurrency int
	CaptureOutput  bool
	ToolVersion    string
	Platform       string
	Salt           []byte
	NoFailFast     bool  // fail-fast is the specification default; set true to run every independent branch to completion instead
	GracePeriod    int64 // milliseconds between SIGTERM and SIGKILL
}

// DefaultGracePeriodMs is the default SIGTERM->SIGKILL grace period.
const DefaultGracePeriodMs = 5000

// Result is one node's outcome after Run returns.
type Result struct {
	FQDN       string
	State      State
	ExitCode   int
	DurationMs int64
	CacheHit   bool
	Err        error
}

// Executor runs tasks from a built Registry against a Store and
// publishes lifecycle events to a Bus.
type Executor struct {
	Registry *registry.Registry
	Cache    *cachestore.Store
	Bus      *eventbus.Bus
	Opts     Options
}

// New constructs an Executor with sane option defaults filled in.
func New(reg *registry.Registry, cache *cachestore.Store, bus *eventbus.Bus, opts Options) *Executor {
	if opts.MaxConcurrency <= 0 {
		opts.MaxConcurrency = runtime.NumCPU()
	}
	if opts.GracePeriod <= 0 {
		opts.GracePeriod = DefaultGracePeriodMs
	}
	return &Executor{Registry: reg, Cache: cache, Bus: bus, Opts: opts}
}
