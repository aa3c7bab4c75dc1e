// Package platform hides the operating-system differences the host cares
// about: which shell runs a command line, how a child is detached from the
// host so it outlives it without a console window, and where the running
// executable lives.
package platform

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// Process describes a spawned, detached child.
type Process struct {
	PID  int
	Args []string
}

// Spawner starts a detached process. The returned Process carries no handle:
// callers cannot wait on, signal or supervise it.
type Spawner interface {
	Spawn(name string, args []string, dir string) (*Process, error)
}

// LookPathFunc resolves an executable name against PATH.
type LookPathFunc func(file string) (string, error)

// DetachedSpawner launches children in their own process group (Unix) or
// without a console window (Windows) with stdio discarded.
type DetachedSpawner struct{}

// Spawn starts name with args in dir and returns as soon as the process exists.
// The exit status is reaped in the background and discarded.
func (DetachedSpawner) Spawn(name string, args []string, dir string) (*Process, error) {
	cmd := exec.Command(name, args...)
	cmd.Dir = dir
	setDetached(cmd)

	if err := cmd.Start(); err != nil {
		return nil, err
	}

	// Reap so the child never lingers as a zombie on Unix.
	go func() {
		_ = cmd.Wait()
	}()

	return &Process{
		PID:  cmd.Process.Pid,
		Args: append([]string{name}, args...),
	}, nil
}

// ShellCommand builds a command that runs line through the platform shell:
// "cmd /c" on Windows and "sh -c" elsewhere.
func ShellCommand(ctx context.Context, line string) *exec.Cmd {
	return shellCommand(ctx, line)
}

// ShellName returns the program ShellCommand runs.
func ShellName() string {
	return shellName
}

// ExecutableDir returns the directory containing the running executable,
// with symlinks resolved.
func ExecutableDir() (string, error) {
	exe, err := os.Executable()
	if err != nil {
		return "", fmt.Errorf("cannot get executable path: %w", err)
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	return filepath.Dir(exe), nil
}
