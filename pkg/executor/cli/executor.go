// Package cli provides a line-oriented terminal front-end for the Hearth host.
//
// Example usage:
//
//	package main
//
//	import (
//	    "context"
//	    "log"
//
//	    "github.com/entrhq/hearth/pkg/executor/cli"
//	    "github.com/entrhq/hearth/pkg/host"
//	)
//
//	func main() {
//	    h, err := host.NewFromConfig(nil, nil)
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//
//	    executor := cli.NewExecutor(h, cli.WithStreaming(true))
//	    if err := executor.Run(context.Background()); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/entrhq/hearth/pkg/executor/slash"
	"github.com/entrhq/hearth/pkg/host"
	"github.com/entrhq/hearth/pkg/shell"
	"github.com/entrhq/hearth/pkg/types"
)

// Invoker runs a host command by name.
type Invoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) host.Response
}

// Executor is a CLI-based executor that reads one line at a time and
// relays it to the host.
type Executor struct {
	invoker Invoker
	reader  *bufio.Reader
	writer  io.Writer

	// Display options
	streaming bool

	mu       sync.Mutex
	streamed bool
}

// ExecutorOption is a function that configures an Executor.
type ExecutorOption func(*Executor)

// WithStreaming enables printing shell output line by line while a command runs.
func WithStreaming(stream bool) ExecutorOption {
	return func(e *Executor) {
		e.streaming = stream
	}
}

// WithWriter sets a custom output writer (default is os.Stdout).
func WithWriter(w io.Writer) ExecutorOption {
	return func(e *Executor) {
		e.writer = w
	}
}

// WithReader sets a custom input reader (default is os.Stdin).
func WithReader(r io.Reader) ExecutorOption {
	return func(e *Executor) {
		e.reader = bufio.NewReader(r)
	}
}

// NewExecutor creates a new CLI executor for the given host.
func NewExecutor(invoker Invoker, opts ...ExecutorOption) *Executor {
	e := &Executor{
		invoker: invoker,
		reader:  bufio.NewReader(os.Stdin),
		writer:  os.Stdout,
	}

	for _, opt := range opts {
		opt(e)
	}

	return e
}

// Run starts the read-eval-print loop.
// Returns when the user exits, input ends or ctx is canceled.
func (e *Executor) Run(ctx context.Context) error {
	fmt.Fprintln(e.writer, "Hearth")
	fmt.Fprintln(e.writer, "Type a shell command or /help and press Enter. Type 'exit' or 'quit' to leave.")
	fmt.Fprintln(e.writer)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		fmt.Fprint(e.writer, "> ")
		input, err := e.reader.ReadString('\n')
		if err != nil && (err != io.EOF || input == "") {
			if err == io.EOF {
				fmt.Fprintln(e.writer)
				return nil
			}
			return fmt.Errorf("failed to read input: %w", err)
		}

		input = strings.TrimSpace(input)

		if input == "exit" || input == "quit" {
			return nil
		}

		if input == "" {
			continue
		}

		e.handleLine(ctx, input)

		if err == io.EOF {
			return nil
		}
	}
}

// handleLine resolves and runs one input line, printing the outcome.
func (e *Executor) handleLine(ctx context.Context, input string) {
	req, err := slash.Resolve(input)
	if err != nil {
		e.printError(err.Error())
		return
	}

	if req.Help {
		fmt.Fprintln(e.writer, slash.HelpText())
		return
	}

	e.mu.Lock()
	e.streamed = false
	e.mu.Unlock()

	runCtx := ctx
	if e.streaming {
		runCtx = shell.WithEmitter(ctx, e.handleEvent)
	}

	resp := e.invoker.Invoke(runCtx, req.Command, req.ArgsJSON())

	e.mu.Lock()
	// Streamed output has already been printed.
	streamed := e.streamed && req.Command == host.CmdExecuteCommand
	e.mu.Unlock()

	if !resp.OK {
		if streamed {
			e.printError(slash.StreamedError(resp.Error))
		} else {
			e.printError(resp.Error)
		}
		return
	}

	if streamed {
		return
	}

	text, _ := slash.Format(resp)
	if text != "" {
		fmt.Fprintln(e.writer, text)
	}
}

// handleEvent prints shell output events. It is called from the goroutines
// copying the child's output.
func (e *Executor) handleEvent(event *types.HostEvent) {
	if event.Type != types.EventTypeCommandOutput || event.CommandExecution == nil {
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.streamed = true
	fmt.Fprint(e.writer, event.CommandExecution.Output)
}

func (e *Executor) printError(msg string) {
	fmt.Fprintf(e.writer, "❌ Error: %s\n", msg)
}
