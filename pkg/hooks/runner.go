package hooks

import (
	"bytes"
	"context"
	"os/exec"
	"time"

	"github.com/cuenv-dev/cuenv/internal/cuenverr"
)

// runOne spawns h.Command/h.Args in h.Dir with env as its complete
// environment, enforcing h.Timeout (specification
// §4.8 "bounded timeout; timeout transitions the hook to Failed").
func runOne(ctx context.Context, h Hook, env []string) HookResult {
	result := HookResult{Hook: h, Status: Running, StartedAt: time.Now()}

	timeout := h.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	runCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cmd := exec.CommandContext(runCtx, h.Command, h.Args...)
	cmd.Dir = h.Dir
	cmd.Env = env

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result.FinishedAt = time.Now()
	result.DurationMs = result.FinishedAt.Sub(result.StartedAt).Milliseconds()
	result.Stdout = stdout.Bytes()
	result.Stderr = stderr.Bytes()

	if runCtx.Err() == context.DeadlineExceeded {
		result.Status = Failed
		result.Err = cuenverr.New(cuenverr.Timeout, "run hook", h.Command)
		return result
	}

	if exitErr, ok := err.(*exec.ExitError); ok {
		result.Status = Failed
		result.ExitCode = exitErr.ExitCode()
		result.Err = cuenverr.New(cuenverr.ProcessFailed, "run hook", h.Command)
		return result
	}
	if err != nil {
		result.Status = Failed
		result.Err = err
		return result
	}

	result.Status = Completed
	return result
}
