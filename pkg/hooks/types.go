// Package hooks implements the per-directory hook lifecycle manager:
// approval gating, sequential fail-fast execution, input-fingerprint
// skip, source-env mutation, and preload/backgrounded hooks
// (specification §4.8).
package hooks

import "time"

// Hook is one user-declared side-effecting command tied to a
// directory's enter/exit lifecycle.
type Hook struct {
	Command string
	Args    []string
	Dir     string
	Source  bool          // stdout KEY=VALUE lines mutate the parent environment
	Preload bool          // parent returns immediately after spawning; awaited later
	Inputs  []string      // patterns; fingerprint gates re-execution
	Timeout time.Duration
}

// HookStatus is a HookResult's lifecycle stage.
type HookStatus int

const (
	Pending HookStatus = iota
	Running
	Completed
	Failed
)

func (s HookStatus) String() string {
	switch s {
	case Pending:
		return "pending"
	case Running:
		return "running"
	case Completed:
		return "completed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// HookResult is one hook invocation's recorded outcome.
type HookResult struct {
	Hook       Hook
	Status     HookStatus
	Stdout     []byte
	Stderr     []byte
	ExitCode   int
	Err        error
	StartedAt  time.Time
	FinishedAt time.Time
	DurationMs int64
}

// DirState is a directory's position in the approval/execution state
// machine (specification §4.8):
//
//	Unknown -> PendingApproval -> Approved -> Idle -> Running -> Idle
//	                                     \-> Failed -> Idle (on next trigger)
type DirState int

const (
	Unknown DirState = iota
	PendingApproval
	Approved
	Idle
	DirRunning
	DirFailed
)

func (s DirState) String() string {
	switch s {
	case Unknown:
		return "unknown"
	case PendingApproval:
		return "pending_approval"
	case Approved:
		return "approved"
	case Idle:
		return "idle"
	case DirRunning:
		return "running"
	case DirFailed:
		return "failed"
	default:
		return "unknown"
	}
}

const DefaultTimeout = 300 * time.Second
