package executor

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"github.com/cuenv-dev/cuenv/pkg/cachestore"
	"github.com/cuenv-dev/cuenv/pkg/eventbus"
	"github.com/cuenv-dev/cuenv/pkg/fingerprint"
	"github.com/cuenv-dev/cuenv/pkg/materializer"
	"github.com/cuenv-dev/cuenv/pkg/taskgraph"
)

// run carries the mutable state of one Executor.Run invocation.
type run struct {
	exec       *Executor
	plan       *plan
	dependents map[string][]string
	remaining  map[string]int

	mu      sync.Mutex
	states  map[string]State
	results map[string]Result
	outputs map[string]fingerprint.ProducerOutputs

	sem     chan struct{}
	doneCh  chan string
	pending []string // leaf node ids ready to run but waiting on a worker slot

	ctx        context.Context
	cancel     context.CancelCauseFunc
	failFast   bool
	firstError error
}

// Run executes every task reachable from roots (specification §4.7).
// roots are FQDNs already present in Executor.Registry.Tasks.
func (e *Executor) Run(ctx context.Context, roots []string) (map[string]Result, error) {
	p, err := e.buildPlan(roots)
	if err != nil {
		return nil, err
	}
	if err := p.detectCycle(); err != nil {
		return nil, err
	}

	runCtx, cancel := context.WithCancelCause(ctx)
	r := &run{
		exec:       e,
		plan:       p,
		dependents: p.dependents(),
		remaining:  map[string]int{},
		states:     map[string]State{},
		results:    map[string]Result{},
		outputs:    map[string]fingerprint.ProducerOutputs{},
		sem:        make(chan struct{}, e.Opts.MaxConcurrency),
		doneCh:     make(chan string, len(p.nodes)+1),
		ctx:        runCtx,
		cancel:     cancel,
		failFast:   !e.Opts.NoFailFast,
	}
	defer cancel(nil)

	for id, n := range p.nodes {
		r.remaining[id] = len(n.deps)
	}

	for id := range p.nodes {
		if r.remaining[id] == 0 {
			r.activate(id)
		}
	}

	for r.countTerminal() < len(p.nodes) {
		if len(r.pending) > 0 && r.tryDispatch() {
			continue
		}
		id := <-r.doneCh
		r.onNodeDone(id)
	}

	if r.firstError != nil {
		return r.results, r.firstError
	}
	return r.results, nil
}

// activate decides, for a node whose deps are all now terminal (or
// which has no deps at all), whether it runs, is skipped, or (for a
// barrier) resolves immediately.
func (r *run) activate(id string) {
	n := r.plan.nodes[id]

	upstreamFailed := false
	for _, dep := range n.deps {
		if s := r.stateOf(dep); s == Failed || s == Cancelled || s == Skipped {
			upstreamFailed = true
		}
	}

	if upstreamFailed {
		r.finish(id, Result{FQDN: id, State: Skipped})
		return
	}

	switch n.kind {
	case kindLeaf:
		r.mu.Lock()
		r.pending = append(r.pending, id)
		r.mu.Unlock()
	case kindSequential, kindParallel:
		r.finish(id, Result{FQDN: id, State: Success})
	}
}

func (r *run) stateOf(id string) State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[id]
}

func (r *run) countTerminal() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	count := 0
	for _, s := range r.states {
		if s.Terminal() {
			count++
		}
	}
	return count
}

// tryDispatch pulls one pending leaf off the queue and, if a worker
// slot is free, spawns its execution.
func (r *run) tryDispatch() bool {
	select {
	case r.sem <- struct{}{}:
	default:
		return false
	}

	r.mu.Lock()
	if len(r.pending) == 0 {
		r.mu.Unlock()
		<-r.sem
		return false
	}
	id := r.pending[0]
	r.pending = r.pending[1:]
	r.mu.Unlock()

	go func() {
		defer func() { <-r.sem }()
		res := r.exec.runLeaf(r.ctx, r, id)
		r.finish(id, res)
	}()
	return true
}

// finish records a node's terminal outcome and notifies the run loop.
func (r *run) finish(id string, res Result) {
	if n := r.plan.nodes[id]; n.kind == kindParallel && res.State == Skipped {
		for _, c := range n.children {
			if r.stateOf(c) == Failed {
				res.State = Failed
			}
		}
	}
	parallelChild := false
	for _, other := range r.plan.nodes {
		if other.kind == kindParallel && containsString(other.children, id) {
			parallelChild = true
		}
	}

	r.mu.Lock()
	r.states[id] = res.State
	r.results[id] = res
	if res.State == Failed && r.firstError == nil {
		r.firstError = res.Err
		if r.firstError == nil {
			r.firstError = fmt.Errorf("task %s failed", id)
		}
	}
	r.mu.Unlock()

	// A failing Parallel-group child leaves its siblings running; the
	// group itself then fails and cancels the rest of the run.
	if res.State == Failed && r.failFast && !parallelChild {
		r.cancel(r.firstError)
	}

	select {
	case r.doneCh <- id:
	default:
		go func() { r.doneCh <- id }()
	}
}

// onNodeDone propagates a just-terminated node's completion to its
// dependents, activating any that have become ready.
func (r *run) onNodeDone(id string) {
	for _, dependent := range r.dependents[id] {
		r.mu.Lock()
		r.remaining[dependent]--
		ready := r.remaining[dependent] == 0
		r.mu.Unlock()
		if ready {
			r.activate(dependent)
		}
	}
}

// runLeaf resolves inputs, fingerprints, checks the cache, and on a
// miss materializes a hermetic workspace and runs the task's command
// (specification §4.7 step 5).
func (e *Executor) runLeaf(ctx context.Context, r *run, id string) Result {
	start := time.Now()
	n := r.plan.nodes[id]
	t := n.task

	if ctx.Err() != nil {
		return Result{FQDN: id, State: Cancelled}
	}

	patterns := make([]string, 0, len(t.Inputs))
	for _, in := range t.Inputs {
		if in.Pattern != "" {
			patterns = append(patterns, in.Pattern)
		}
	}

	resolved, err := fingerprint.ResolveInputs(patterns, t.ProjectRoot, nil)
	if err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}

	if err := e.applyCrossInputs(r, t, resolved); err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}

	key, err := fingerprint.Fingerprint(resolved, fingerprint.EnvelopeExtras{
		Command:     t.Command,
		Args:        t.Args,
		Shell:       t.Shell,
		Env:         t.Env,
		ToolVersion: e.Opts.ToolVersion,
		Platform:    e.Opts.Platform,
	}, e.Opts.Salt)
	if err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}

	if entry, hit, err := e.Cache.Lookup(key.Hash, t.CachePolicy); err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	} else if hit {
		e.emit(id, eventbus.CacheHit, "")
		if _, err := e.Cache.MaterializeOutputs(entry, t.ProjectRoot); err != nil {
			return Result{FQDN: id, State: Failed, Err: err}
		}
		if resolvedOutputs, err := fingerprint.ResolveInputs(t.Outputs, t.ProjectRoot, nil); err == nil {
			r.storeOutputs(id, resolvedOutputs)
		}
		return Result{FQDN: id, State: Success, CacheHit: true, DurationMs: time.Since(start).Milliseconds()}
	}

	e.emit(id, eventbus.Started, "")

	hermeticRoot, err := os.MkdirTemp("", "cuenv-hermetic-*")
	if err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}
	defer os.RemoveAll(hermeticRoot)

	ws, err := materializer.Materialize(t.ProjectRoot, hermeticRoot, resolved)
	if err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}

	proc := runProcess(ctx, resolveCommand(t), t.Args, envSlice(t.Env), ws.Root, time.Duration(e.Opts.GracePeriod)*time.Millisecond)
	e.emit(id, eventbus.Output, string(proc.Stdout)+string(proc.Stderr))

	if proc.Err != nil && ctx.Err() != nil {
		return Result{FQDN: id, State: Cancelled, Err: proc.Err}
	}
	if proc.ExitCode != 0 {
		return Result{FQDN: id, State: Failed, ExitCode: proc.ExitCode,
			Err: cuenverr.New(cuenverr.ProcessFailed, "run task", id)}
	}

	resolvedOutputs, err := fingerprint.ResolveInputs(t.Outputs, ws.Root, nil)
	if err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}

	if err := copyResolvedFiles(ws.Root, t.ProjectRoot, resolvedOutputs.Files); err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}
	r.storeOutputs(id, resolvedOutputs)

	stagedOutputs, err := stageResolvedFiles(ws.Root, resolvedOutputs.Files)
	if err != nil {
		return Result{FQDN: id, State: Failed, Err: err}
	}
	defer os.RemoveAll(stagedOutputs)

	_ = e.Cache.Store(key.Hash, cachestore.StoreResult{
		Meta:         cachestore.Metadata{Key: key.Hash, Command: t.Command, Args: t.Args, ExitCode: 0, Outputs: digestsOf(resolvedOutputs.Files)},
		OutputsRoot:  stagedOutputs,
		HermeticRoot: ws.Root,
		Stdout:       proc.Stdout,
		Stderr:       proc.Stderr,
	}, t.CachePolicy)

	e.emit(id, eventbus.Completed, "")
	return Result{FQDN: id, State: Success, DurationMs: time.Since(start).Milliseconds()}
}

func resolveCommand(t *taskgraph.Task) string {
	if t.Shell != nil {
		return t.Shell.Command
	}
	return t.Command
}

func envSlice(env map[string]string) []string {
	out := make([]string, 0, len(env))
	for k, v := range env {
		out = append(out, k+"="+v)
	}
	return out
}

func (e *Executor) emit(fqdn string, typ eventbus.EventType, payload string) {
	if e.Bus == nil {
		return
	}
	e.Bus.Publish(eventbus.Event{TaskFQDN: fqdn, Type: typ, Payload: payload, Timestamp: time.Now().UnixNano()})
}

// applyCrossInputs maps declared outputs from already-completed
// producer tasks into resolved, for every Cross-project input entry.
func (e *Executor) applyCrossInputs(r *run, t *taskgraph.Task, resolved *fingerprint.ResolvedInputs) error {
	for _, in := range t.Inputs {
		if in.Cross == nil {
			continue
		}
		targetID, ok := e.Registry.ProjectIDs[in.Cross.Project]
		if !ok {
			return cuenverr.New(cuenverr.TaskNotFound, "resolve cross-project producer", in.Cross.Project)
		}
		path, err := taskgraph.ParsePath(in.Cross.Task)
		if err != nil {
			return err
		}
		producerFQDN := targetID + ":" + path.Canonical()

		r.mu.Lock()
		producerOutputs := r.outputs[producerFQDN]
		r.mu.Unlock()

		if err := fingerprint.ApplyCrossProjectMappings(resolved, in.Cross.Map, producerOutputs); err != nil {
			return err
		}
	}
	return nil
}

// storeOutputs records a just-resolved output set for id, so dependent
// tasks' cross-project input mappings can find it without re-resolving.
func (r *run) storeOutputs(id string, resolved *fingerprint.ResolvedInputs) {
	outs := make(fingerprint.ProducerOutputs, len(resolved.Files))
	for _, f := range resolved.Files {
		outs[f.RelPath] = f.Content
	}
	r.mu.Lock()
	r.outputs[id] = outs
	r.mu.Unlock()
}

// digestsOf renders a resolved file list as a rel_path -> digest string
// map, for cachestore.Metadata.Outputs.
func digestsOf(files []fingerprint.ResolvedInput) map[string]string {
	digests := make(map[string]string, len(files))
	for _, f := range files {
		digests[f.RelPath] = f.Content.String()
	}
	return digests
}

// copyResolvedFiles copies every already-resolved file from srcRoot
// into dstRoot, so a task's declared outputs land where the user
// expects them on disk.
func copyResolvedFiles(srcRoot, dstRoot string, files []fingerprint.ResolvedInput) error {
	for _, f := range files {
		src := filepath.Join(srcRoot, filepath.FromSlash(f.RelPath))
		dst := filepath.Join(dstRoot, filepath.FromSlash(f.RelPath))
		if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
			return err
		}
		data, err := os.ReadFile(src)
		if err != nil {
			return err
		}
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return err
		}
	}
	return nil
}

// stageResolvedFiles copies every already-resolved file from
// hermeticRoot into a fresh temp directory, so the cache store's
// outputs/ tree holds exactly a task's declared outputs rather than
// its whole hermetic workspace (specification §4.5).
func stageResolvedFiles(hermeticRoot string, files []fingerprint.ResolvedInput) (string, error) {
	staged, err := os.MkdirTemp("", "cuenv-outputs-*")
	if err != nil {
		return "", err
	}
	if err := copyResolvedFiles(hermeticRoot, staged, files); err != nil {
		os.RemoveAll(staged)
		return "", err
	}
	return staged, nil
}
