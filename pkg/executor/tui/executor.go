// Package tui provides a terminal user interface for the Hearth host.
//
// The TUI codebase is split into multiple files:
// - executor.go: Executor and program lifecycle
// - model.go: Core model structure and state
// - update.go: Bubble Tea Update function and message handling
// - view.go: Bubble Tea View function and rendering
// - highlight.go: Syntax highlighting of JSON results
// - helpers.go: Utility functions
// - styles.go: Color schemes and styling
package tui

import (
	"context"
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// commandStopTimeout bounds how long Run waits for a canceled command on exit.
const commandStopTimeout = 5 * time.Second

// Executor is a TUI-based executor for running host commands interactively.
type Executor struct {
	invoker Invoker
	workDir func() string
	header  string
	program *tea.Program
}

// Option configures an Executor.
type Option func(*Executor)

// WithWorkingDir sets the function used to show the session directory.
func WithWorkingDir(dir func() string) Option {
	return func(e *Executor) {
		e.workDir = dir
	}
}

// WithHeader sets the text rendered as the ASCII art header.
func WithHeader(text string) Option {
	return func(e *Executor) {
		e.header = text
	}
}

// NewExecutor creates a new TUI executor for the given host.
func NewExecutor(invoker Invoker, opts ...Option) *Executor {
	e := &Executor{invoker: invoker}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run starts the TUI and blocks until the user exits or ctx is canceled.
func (e *Executor) Run(ctx context.Context) error {
	m := initialModel(e.invoker)
	m.workDir = e.workDir
	m.ctx = ctx
	if e.header != "" {
		m.header = e.header
	}

	e.program = tea.NewProgram(
		&m,
		tea.WithContext(ctx),
		tea.WithAltScreen(),
		tea.WithMouseCellMotion(),
	)
	m.send = e.program.Send

	_, err := e.program.Run()

	// Do not leave a shell command running once the UI is gone.
	m.cancelRunning()
	m.waitRunning(commandStopTimeout)

	if err != nil && ctx.Err() == nil {
		return fmt.Errorf("failed to run TUI program: %w", err)
	}
	return nil
}
