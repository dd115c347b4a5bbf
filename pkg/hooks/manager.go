package hooks

import (
	"context"
	"os"
	"sync"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
)

// dirState is one directory's mutable lifecycle bookkeeping.
type dirState struct {
	mu              sync.Mutex
	state           DirState
	lastFingerprint map[int]string // hook index -> last successful execution's inputs fingerprint
	pendingTrigger  bool
	running         bool
	preload         map[int]*preloadFuture
}

// preloadFuture is the handle for a backgrounded (preload) hook:
// Trigger returns immediately after spawning it, and a later call to
// Manager.AwaitPreload blocks until it completes.
type preloadFuture struct {
	done chan struct{}
	res  HookResult
}

// Manager runs a module's declared hooks per directory, gated by
// on-disk approval (specification §4.8).
type Manager struct {
	approvals *ApprovalStore

	mu   sync.Mutex
	dirs map[string]*dirState
}

// New constructs a Manager backed by the approvals file at approvalsPath.
func New(approvalsPath string) *Manager {
	return &Manager{approvals: NewApprovalStore(approvalsPath), dirs: map[string]*dirState{}}
}

func (m *Manager) stateFor(dir string) *dirState {
	m.mu.Lock()
	defer m.mu.Unlock()
	ds, ok := m.dirs[dir]
	if !ok {
		ds = &dirState{state: Unknown, lastFingerprint: map[int]string{}, preload: map[int]*preloadFuture{}}
		m.dirs[dir] = ds
	}
	return ds
}

// Approve records approval for dir's current hook declarations, so a
// subsequent Trigger no longer blocks at PendingApproval.
func (m *Manager) Approve(dir string, declared []Hook, approver string) error {
	hash, err := ConfigHash(declared)
	if err != nil {
		return err
	}
	if err := m.approvals.Approve(hash, approver); err != nil {
		return err
	}
	ds := m.stateFor(dir)
	ds.mu.Lock()
	ds.state = Idle
	ds.mu.Unlock()
	return nil
}

// State reports dir's current lifecycle state.
func (m *Manager) State(dir string) DirState {
	ds := m.stateFor(dir)
	ds.mu.Lock()
	defer ds.mu.Unlock()
	return ds.state
}

// TriggerResult is the outcome of one Trigger call.
type TriggerResult struct {
	Results      []HookResult
	EnvMutations map[string]string
}

// Trigger fires dir's declared hooks on a directory-enter/exit event.
// If dir's config hash isn't approved, it transitions to
// PendingApproval and returns an ApprovalRequired error without
// running anything. If a hook sequence is already running for dir,
// the trigger is coalesced (at most one pending retrigger is kept) and
// Trigger returns immediately with a nil result.
func (m *Manager) Trigger(ctx context.Context, dir string, declared []Hook) (*TriggerResult, error) {
	ds := m.stateFor(dir)

	hash, err := ConfigHash(declared)
	if err != nil {
		return nil, err
	}
	approved, err := m.approvals.IsApproved(hash)
	if err != nil {
		return nil, err
	}
	if !approved {
		ds.mu.Lock()
		ds.state = PendingApproval
		ds.mu.Unlock()
		return nil, cuenverr.New(cuenverr.ApprovalRequired, "trigger hooks", dir)
	}

	ds.mu.Lock()
	if ds.state == Unknown || ds.state == PendingApproval {
		ds.state = Approved
	}
	if ds.running {
		ds.pendingTrigger = true
		ds.mu.Unlock()
		return nil, nil
	}
	ds.running = true
	ds.state = DirRunning
	ds.mu.Unlock()

	result, runErr := m.runSequential(ctx, ds, declared)

	ds.mu.Lock()
	ds.running = false
	if runErr != nil {
		ds.state = DirFailed
	} else {
		ds.state = Idle
	}
	retrigger := ds.pendingTrigger
	ds.pendingTrigger = false
	ds.mu.Unlock()

	if retrigger {
		go func() { _, _ = m.Trigger(ctx, dir, declared) }()
	}

	return result, runErr
}

// runSequential executes declared in order with fail-fast semantics,
// skipping hooks whose inputs fingerprint is unchanged since their
// last successful run, applying source:true env mutations as each
// hook completes, and backgrounding preload hooks.
func (m *Manager) runSequential(ctx context.Context, ds *dirState, declared []Hook) (*TriggerResult, error) {
	out := &TriggerResult{EnvMutations: map[string]string{}}
	env := os.Environ()

	for i, h := range declared {
		fp, err := inputsFingerprint(h)
		if err != nil {
			return out, err
		}

		ds.mu.Lock()
		last, seen := ds.lastFingerprint[i]
		ds.mu.Unlock()
		if fp != "" && seen && last == fp {
			out.Results = append(out.Results, HookResult{Hook: h, Status: Completed})
			continue
		}

		if h.Preload {
			future := &preloadFuture{done: make(chan struct{})}
			ds.mu.Lock()
			ds.preload[i] = future
			ds.mu.Unlock()
			go func(idx int, hook Hook, envCopy []string) {
				res := runOne(ctx, hook, envCopy)
				future.res = res
				close(future.done)
			}(i, h, append([]string(nil), env...))
			out.Results = append(out.Results, HookResult{Hook: h, Status: Running})
			continue
		}

		res := runOne(ctx, h, env)
		out.Results = append(out.Results, res)

		if res.Status == Failed {
			return out, res.Err
		}

		if h.Source {
			mutations := parseSourceEnv(res.Stdout)
			for k, v := range mutations {
				out.EnvMutations[k] = v
				env = append(env, k+"="+v)
			}
		}

		if fp != "" {
			ds.mu.Lock()
			ds.lastFingerprint[i] = fp
			ds.mu.Unlock()
		}
	}

	return out, nil
}

// AwaitPreload blocks until the backgrounded hook at index hookIdx
// (declared for dir in the most recent Trigger call) has completed,
// returning its result (specification §4.8: "subsequent environment
// queries await completion via the coordinator").
func (m *Manager) AwaitPreload(dir string, hookIdx int) (HookResult, bool) {
	ds := m.stateFor(dir)
	ds.mu.Lock()
	future, ok := ds.preload[hookIdx]
	ds.mu.Unlock()
	if !ok {
		return HookResult{}, false
	}
	<-future.done
	return future.res, true
}
