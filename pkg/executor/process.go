package executor

import (
	"bytes"
	"context"
	"os/exec"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// processResult is the outcome of spawning one task's command.
type processResult struct {
	ExitCode int
	Stdout   []byte
	Stderr   []byte
	Err      error
}

// runProcess spawns command/args in workDir as its own process group,
// so cancellation can signal the whole group rather than just the
// direct child (specification §4.7 step 7, "propagated to process
// groups"). On ctx cancellation it sends SIGTERM, then SIGKILL after
// gracePeriod if the group hasn't exited.
func runProcess(ctx context.Context, command string, args []string, env []string, workDir string, gracePeriod time.Duration) processResult {
	cmd := exec.Command(command, args...)
	cmd.Dir = workDir
	cmd.Env = env
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return processResult{ExitCode: -1, Err: err}
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	select {
	case err := <-waitDone:
		return processResult{ExitCode: exitCodeOf(err), Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Err: runErrOrNil(err)}
	case <-ctx.Done():
		pgid := cmd.Process.Pid
		_ = unix.Kill(-pgid, syscall.SIGTERM)
		select {
		case err := <-waitDone:
			return processResult{ExitCode: exitCodeOf(err), Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Err: context.Cause(ctx)}
		case <-time.After(gracePeriod):
			_ = unix.Kill(-pgid, syscall.SIGKILL)
			<-waitDone
			return processResult{ExitCode: -1, Stdout: stdout.Bytes(), Stderr: stderr.Bytes(), Err: context.Cause(ctx)}
		}
	}
}

func exitCodeOf(err error) int {
	if err == nil {
		return 0
	}
	if exitErr, ok := err.(*exec.ExitError); ok {
		return exitErr.ExitCode()
	}
	return -1
}

func runErrOrNil(err error) error {
	if _, ok := err.(*exec.ExitError); ok {
		return nil // non-zero exit is reported via ExitCode, not Err
	}
	return err
}
