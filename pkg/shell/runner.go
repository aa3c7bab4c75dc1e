// Package shell relays command lines typed in the UI to the platform shell
// and returns their combined, decoded output.
package shell

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/platform"
	"github.com/entrhq/hearth/pkg/types"
)

// waitDelay bounds how long Wait keeps copying output after the process was
// killed, for grandchildren that inherited the pipes.
const waitDelay = 2 * time.Second

// Runner executes shell commands in a session working directory. A "cd"
// command moves the session directory instead of spawning a shell, so later
// commands run where the user navigated to.
type Runner struct {
	mu      sync.Mutex
	dir     string
	policy  Policy
	timeout time.Duration
	logger  *logging.Logger
}

// Option configures a Runner.
type Option func(*Runner)

// WithPolicy rejects commands the policy blocks before they are spawned.
func WithPolicy(p Policy) Option {
	return func(r *Runner) {
		r.policy = p
	}
}

// WithTimeout kills commands that run longer than d. Zero disables the limit.
func WithTimeout(d time.Duration) Option {
	return func(r *Runner) {
		r.timeout = d
	}
}

// WithLogger sets the logger used for execution traces.
func WithLogger(l *logging.Logger) Option {
	return func(r *Runner) {
		r.logger = l
	}
}

// NewRunner creates a runner whose session starts in dir, or in the process
// working directory when dir is empty.
func NewRunner(dir string, opts ...Option) (*Runner, error) {
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("cannot get current directory: %w", err)
		}
		dir = wd
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("cannot resolve directory '%s': %w", dir, err)
	}

	r := &Runner{
		dir:    abs,
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Dir returns the session working directory.
func (r *Runner) Dir() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dir
}

// Execute runs command and returns its trimmed output. A non-zero exit status
// is reported as an error carrying the output.
func (r *Runner) Execute(ctx context.Context, command string) (string, error) {
	// "cd <path>" is matched on the raw line; only a bare "cd" may carry
	// surrounding whitespace.
	if len(command) >= 3 && strings.EqualFold(command[:3], "cd ") {
		return r.changeDir(strings.TrimSpace(command[3:]))
	}

	trimmed := strings.TrimSpace(command)
	if strings.EqualFold(trimmed, "cd") {
		return currentDirMessage(r.Dir()), nil
	}
	if trimmed == "" {
		return "", fmt.Errorf("command cannot be empty")
	}

	if r.policy != nil {
		if pattern, blocked := r.policy.Blocked(trimmed); blocked {
			r.logger.Warnf("blocked command %q (pattern %q)", trimmed, pattern.Pattern)
			return "", &PolicyError{Command: trimmed, Pattern: pattern}
		}
	}

	return r.run(ctx, command)
}

func (r *Runner) changeDir(path string) (string, error) {
	if path == "" {
		return "", fmt.Errorf("cannot change directory to '': no path given")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	target := path
	if !filepath.IsAbs(target) {
		target = filepath.Join(r.dir, target)
	}
	target = filepath.Clean(target)

	info, err := os.Stat(target)
	if err != nil {
		return "", fmt.Errorf("cannot change directory to '%s': %w", path, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("cannot change directory to '%s': not a directory", path)
	}

	r.dir = target
	r.logger.Debugf("session directory changed to %s", target)
	return currentDirMessage(target), nil
}

func currentDirMessage(dir string) string {
	return fmt.Sprintf("Current directory: %s", dir)
}

//nolint:gocyclo // Complexity is acceptable for command execution logic
func (r *Runner) run(ctx context.Context, command string) (string, error) {
	dir := r.Dir()

	execCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	emit := EmitterFromContext(ctx)
	execID := "cmd_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]

	if emit != nil {
		emit(types.NewCommandExecutionStartEvent(execID, command, dir))
	}

	stdout := newStreamWriter("stdout", execID, emit)
	stderr := newStreamWriter("stderr", execID, emit)

	cmd := platform.ShellCommand(execCtx, command)
	cmd.Dir = dir
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	cmd.WaitDelay = waitDelay

	r.logger.Debugf("executing %q in %s (id %s)", command, dir, execID)
	start := time.Now()

	if err := cmd.Start(); err != nil {
		if emit != nil {
			emit(types.NewCommandExecutionFailedEvent(execID, -1, time.Since(start).String(), err))
		}
		return "", fmt.Errorf("failed to execute command: %w", err)
	}

	waitErr := cmd.Wait()
	duration := time.Since(start)
	stdout.flush()
	stderr.flush()

	result := combine(Decode(stdout.Bytes()), Decode(stderr.Bytes()))

	exitCode := 0
	if waitErr != nil {
		exitCode = -1
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			exitCode = exitErr.ExitCode()
		}
	}

	switch {
	case waitErr != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil:
		r.logger.Warnf("command %s timed out after %s", execID, r.timeout)
		if emit != nil {
			emit(types.NewCommandExecutionCanceledEvent(execID, duration.String()))
		}
		return "", fmt.Errorf("command timed out after %s: %s", r.timeout, strings.TrimSpace(result))

	case waitErr != nil && ctx.Err() != nil:
		r.logger.Infof("command %s canceled after %s", execID, duration)
		if emit != nil {
			emit(types.NewCommandExecutionCanceledEvent(execID, duration.String()))
		}
		return "", fmt.Errorf("command canceled: %w", ctx.Err())

	case waitErr != nil:
		r.logger.Debugf("command %s failed with exit code %d", execID, exitCode)
		if emit != nil {
			emit(types.NewCommandExecutionFailedEvent(execID, exitCode, duration.String(), waitErr))
		}
		return "", fmt.Errorf("command failed: %s", strings.TrimRight(result, " \t\r\n"))
	}

	r.logger.Debugf("command %s completed in %s", execID, duration)
	if emit != nil {
		emit(types.NewCommandExecutionCompleteEvent(execID, exitCode, duration.String()))
	}
	return strings.TrimSpace(result), nil
}
