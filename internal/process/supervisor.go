package process

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"sightline/internal/logging"
)

// DefaultGracePeriod is how long a terminated process may take to exit
// before it is killed.
const DefaultGracePeriod = 5 * time.Second

// ErrTerminationTimeout reports that a process ignored the termination
// request and had to be killed.
var ErrTerminationTimeout = errors.New("termination timeout")

// SpawnError reports that the executable could not be resolved or the OS
// refused to start it.
type SpawnError struct {
	Command string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("start %s: %v", e.Command, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// NotFound reports whether the executable could not be located.
func (e *SpawnError) NotFound() bool {
	return errors.Is(e.Err, exec.ErrNotFound) || errors.Is(e.Err, os.ErrNotExist)
}

// Process is the view of a running tool the batch coordinator works with.
type Process interface {
	PID() int
	Stdout() io.Reader
	Stderr() io.Reader
	Wait() (int, error)
	Terminate(grace time.Duration) error
	Release()
}

// Launcher starts external processes. Supervisor is the production
// implementation; tests substitute fakes.
type Launcher interface {
	Launch(ctx context.Context, command string, args []string) (Process, error)
}

// Supervisor spawns external tools.
type Supervisor struct {
	logger *slog.Logger
	// Env entries are appended to the parent environment.
	Env []string
	// Dir is the working directory for spawned tools; empty inherits ours.
	Dir string
}

// NewSupervisor constructs a supervisor that logs through logger.
func NewSupervisor(logger *slog.Logger) *Supervisor {
	return &Supervisor{logger: logging.NewComponentLogger(logger, "process")}
}

// Launch implements Launcher.
func (s *Supervisor) Launch(ctx context.Context, command string, args []string) (Process, error) {
	h, err := s.Start(ctx, command, args)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Start spawns command with args and returns an owned handle. Cancelling ctx
// terminates the process group. Failures to resolve or spawn the executable
// are returned as *SpawnError.
func (s *Supervisor) Start(ctx context.Context, command string, args []string) (*Handle, error) {
	logger := s.logger
	if logger == nil {
		logger = logging.NewNop()
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return nil, &SpawnError{Command: command, Err: exec.ErrNotFound}
	}

	cmd := exec.CommandContext(ctx, command, args...) //nolint:gosec
	if cmd.Err != nil {
		return nil, &SpawnError{Command: command, Err: cmd.Err}
	}
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	cmd.Dir = s.Dir
	configureProcAttr(cmd)
	cmd.Cancel = func() error { return signalTerminate(cmd.Process) }
	cmd.WaitDelay = DefaultGracePeriod

	// Pipes are created by hand so that Wait never closes the read ends
	// while a drain is still consuming them.
	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		return nil, &SpawnError{Command: command, Err: fmt.Errorf("stdout pipe: %w", err)}
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		stdoutR.Close()
		stdoutW.Close()
		return nil, &SpawnError{Command: command, Err: fmt.Errorf("stderr pipe: %w", err)}
	}
	cmd.Stdout = stdoutW
	cmd.Stderr = stderrW

	if err := cmd.Start(); err != nil {
		for _, f := range []*os.File{stdoutR, stdoutW, stderrR, stderrW} {
			f.Close()
		}
		return nil, &SpawnError{Command: command, Err: err}
	}
	stdoutW.Close()
	stderrW.Close()

	h := &Handle{
		cmd:    cmd,
		stdout: stdoutR,
		stderr: stderrR,
		done:   make(chan struct{}),
	}
	h.logger = logger.With(logging.Int(logging.FieldPID, h.PID()))
	go h.reap()

	h.logger.Debug("process started",
		logging.String("command", command),
		logging.String("args", strings.Join(args, " ")),
	)
	return h, nil
}

// Handle is an exclusively owned running process.
type Handle struct {
	cmd    *exec.Cmd
	stdout *os.File
	stderr *os.File
	logger *slog.Logger

	done     chan struct{}
	exitCode int
	waitErr  error

	termMu      sync.Mutex
	releaseOnce sync.Once
}

func (h *Handle) reap() {
	err := h.cmd.Wait()
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		h.exitCode = 0
	case errors.As(err, &exitErr):
		h.exitCode = exitErr.ExitCode()
	default:
		h.exitCode = -1
		if state := h.cmd.ProcessState; state != nil {
			h.exitCode = state.ExitCode()
		}
		h.waitErr = fmt.Errorf("wait %s: %w", h.cmd.Path, err)
	}
	close(h.done)
}

// PID returns the OS process identifier.
func (h *Handle) PID() int {
	if h.cmd.Process == nil {
		return 0
	}
	return h.cmd.Process.Pid
}

// Stdout returns the process standard output stream.
func (h *Handle) Stdout() io.Reader { return h.stdout }

// Stderr returns the process standard error stream.
func (h *Handle) Stderr() io.Reader { return h.stderr }

// Exited reports whether the process has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits and returns its exit code. A non-zero
// exit is not an error; the error is reserved for failures to wait at all.
// Processes killed by a signal report -1. Repeated calls return the cached
// result.
func (h *Handle) Wait() (int, error) {
	<-h.done
	return h.exitCode, h.waitErr
}

// Terminate asks the process group to exit and kills it if it is still
// running after grace. It returns ErrTerminationTimeout when the kill was
// needed. Calling Terminate on an exited process is a no-op.
func (h *Handle) Terminate(grace time.Duration) error {
	h.termMu.Lock()
	defer h.termMu.Unlock()

	if h.Exited() {
		return nil
	}
	if grace <= 0 {
		grace = DefaultGracePeriod
	}

	if err := signalTerminate(h.cmd.Process); err != nil && !h.Exited() {
		h.logger.Debug("terminate signal failed", logging.Error(err))
	}

	timer := time.NewTimer(grace)
	defer timer.Stop()
	select {
	case <-h.done:
		h.logger.Debug("process terminated")
		return nil
	case <-timer.C:
	}

	if err := signalKill(h.cmd.Process); err != nil && !h.Exited() {
		return fmt.Errorf("kill process %d: %w", h.PID(), err)
	}
	<-h.done
	logging.WarnWithContext(h.logger, "process ignored termination request; killed", "termination_timeout",
		logging.Duration("grace", grace),
		logging.String(logging.FieldErrorHint, "the tool did not handle SIGTERM within the grace period"),
		logging.String(logging.FieldImpact, "partial output may remain on disk"),
	)
	return ErrTerminationTimeout
}

// Release kills whatever is left of the process group, reaps the process
// and closes the output streams, which unblocks any reader still attached.
// The group is killed even after the tool itself exited so that background
// children holding the pipes do not outlive the job. Only the first call has
// any effect.
func (h *Handle) Release() {
	h.releaseOnce.Do(func() {
		if !h.Exited() {
			_ = signalKill(h.cmd.Process)
			<-h.done
		}
		if err := killGroup(h.PID()); err != nil {
			h.logger.Debug("kill leftover process group failed", logging.Error(err))
		}
		h.stdout.Close()
		h.stderr.Close()
	})
}

// BuildArgs renders the tool command line:
// <input> --output <output> [extra tokens split on whitespace].
func BuildArgs(input, output, extra string) []string {
	args := []string{input, "--output", output}
	return append(args, strings.Fields(extra)...)
}
