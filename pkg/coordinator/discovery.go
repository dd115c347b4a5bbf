package coordinator

import (
	"context"
	"fmt"
	"net"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/cuenv-dev/cuenv/internal/cuenverr"
	"golang.org/x/sys/unix"
)

// PingTimeout is the per-attempt coordinator connect/ping timeout
// (specification §5 "the coordinator connect has a 0.5 s ping
// timeout").
const PingTimeout = 500 * time.Millisecond

// DiscoveryBudget is the total time a client spends polling for the
// coordinator socket to appear after spawning it (specification §5
// "coordinator startup polls up to 5 s").
const DiscoveryBudget = 5 * time.Second

// LockStaleness is the lock-file age past which acquireLock discards
// the file's previous content before writing its own PID. The flock
// itself is held until release or process exit; a lock held by a live
// process is never taken over, whatever the file's age.
const LockStaleness = 30 * time.Second

// Ping dials socketPath and round-trips a Ping/Pong within
// PingTimeout, reporting whether a live coordinator answered.
func Ping(socketPath string) bool {
	nc, err := net.DialTimeout("unix", socketPath, PingTimeout)
	if err != nil {
		return false
	}
	defer nc.Close()
	_ = nc.SetDeadline(time.Now().Add(PingTimeout))

	if err := writeFrame(nc, Message{MsgType: MsgRegister, Payload: mustEncode(RegisterPayload{Kind: ClientProducer, Command: "ping"})}); err != nil {
		return false
	}
	if _, err := readFrame(nc); err != nil { // RegisterAck
		return false
	}
	if err := writeFrame(nc, Message{MsgType: MsgPing}); err != nil {
		return false
	}
	msg, err := readFrame(nc)
	return err == nil && msg.MsgType == MsgPong
}

// SpawnFunc launches a coordinator subprocess in the background,
// returning once it has been started (not once it is ready).
type SpawnFunc func() error

// DefaultSpawn execs the current binary with a "coordinator serve"
// argument pair, detached from the current process group.
func DefaultSpawn(socketPath string) SpawnFunc {
	return func() error {
		self, err := os.Executable()
		if err != nil {
			return err
		}
		cmd := exec.Command(self, "coordinator", "serve", "--socket", socketPath)
		cmd.Stdout = nil
		cmd.Stderr = nil
		cmd.SysProcAttr = &syscall.SysProcAttr{Setsid: true}
		return cmd.Start()
	}
}

// EnsureRunning implements the client discovery protocol
// (specification §4.10 "Discovery protocol"): probe the socket; if a
// live coordinator answers, return immediately. Otherwise detect and
// clear a stale socket/lock, acquire the lock, spawn a coordinator, and
// poll up to DiscoveryBudget for it to become reachable.
func EnsureRunning(ctx context.Context, socketPath, pidPath, lockPath string, spawn SpawnFunc) error {
	if Ping(socketPath) {
		return nil
	}

	clearStaleState(socketPath, pidPath, lockPath)

	lock, err := acquireLock(lockPath)
	if err != nil {
		return cuenverr.Wrap(cuenverr.CoordinatorUnavailable, "acquire coordinator lock", lockPath, err)
	}
	defer lock.release()

	// Another process may have started the coordinator while we waited
	// for the lock.
	if Ping(socketPath) {
		return nil
	}

	if err := spawn(); err != nil {
		return cuenverr.Wrap(cuenverr.CoordinatorUnavailable, "spawn coordinator", socketPath, err)
	}

	b := backoff.WithContext(newPollBackoff(), ctx)
	return backoff.Retry(func() error {
		if Ping(socketPath) {
			return nil
		}
		return fmt.Errorf("coordinator socket not yet reachable")
	}, b)
}

func newPollBackoff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 50 * time.Millisecond
	b.MaxInterval = 500 * time.Millisecond
	b.MaxElapsedTime = DiscoveryBudget
	return b
}

// clearStaleState detects a socket that exists but doesn't answer, and
// a PID file whose process is confirmed to be an abandoned cuenv
// coordinator (specification §4.10 "Staleness detection"); it sends
// SIGTERM and removes the socket so a fresh coordinator can bind.
func clearStaleState(socketPath, pidPath, lockPath string) {
	if _, err := os.Stat(socketPath); err != nil {
		return // no stale socket to clear
	}
	pid, ok := readPID(pidPath)
	if !ok {
		_ = os.Remove(socketPath)
		return
	}
	if isCoordinatorProcess(pid) {
		_ = syscall.Kill(pid, syscall.SIGTERM)
	}
	_ = os.Remove(socketPath)
	_ = os.Remove(pidPath)
}

func readPID(pidPath string) (int, bool) {
	raw, err := os.ReadFile(pidPath)
	if err != nil {
		return 0, false
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil || pid <= 0 {
		return 0, false
	}
	return pid, true
}

// isCoordinatorProcess verifies pid is actually a cuenv coordinator
// before signaling it, via process introspection (specification §4.10:
// "on Linux /proc/<pid>/cmdline, on macOS ps -p").
func isCoordinatorProcess(pid int) bool {
	if runtime.GOOS == "linux" {
		raw, err := os.ReadFile(fmt.Sprintf("/proc/%d/cmdline", pid))
		if err != nil {
			return false
		}
		return strings.Contains(string(raw), "coordinator")
	}
	out, err := exec.Command("ps", "-p", strconv.Itoa(pid), "-o", "command=").Output()
	if err != nil {
		return false
	}
	return strings.Contains(string(out), "coordinator")
}

type fileLock struct {
	f *os.File
}

// acquireLock blocks until it holds an exclusive advisory flock on
// lockPath, then writes the current PID into it so a peer can
// attribute the lock.
func acquireLock(lockPath string) (*fileLock, error) {
	f, err := os.OpenFile(lockPath, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, err
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, err
	}
	if info, statErr := f.Stat(); statErr == nil && time.Since(info.ModTime()) > LockStaleness {
		_ = f.Truncate(0)
	}
	_, _ = f.Seek(0, 0)
	_, _ = f.WriteString(strconv.Itoa(os.Getpid()))
	return &fileLock{f: f}, nil
}

func (l *fileLock) release() {
	_ = unix.Flock(int(l.f.Fd()), unix.LOCK_UN)
	_ = l.f.Close()
}
