package host

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/shell"
	"github.com/entrhq/hearth/pkg/types"
)

// Response is what the UI receives for every invocation. Exactly one of
// Value or Error is meaningful, as indicated by OK.
type Response struct {
	OK    bool        `json:"ok"`
	Value interface{} `json:"value,omitempty"`
	Error string      `json:"error,omitempty"`
}

// Registry holds the commands available to the UI.
type Registry struct {
	mu       sync.RWMutex
	commands map[string]Command
	order    []string
	emit     types.Emitter
	logger   *logging.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithEmitter publishes invocation events and streamed command output to emit.
func WithEmitter(emit types.Emitter) RegistryOption {
	return func(r *Registry) {
		r.emit = emit
	}
}

// WithRegistryLogger sets the registry's logger.
func WithRegistryLogger(l *logging.Logger) RegistryOption {
	return func(r *Registry) {
		r.logger = l
	}
}

// NewRegistry creates an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		commands: make(map[string]Command),
		logger:   logging.Discard(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Register adds cmd. Names must be unique.
func (r *Registry) Register(cmd Command) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := cmd.Name()
	if _, exists := r.commands[name]; exists {
		return fmt.Errorf("command %s already registered", name)
	}
	r.commands[name] = cmd
	r.order = append(r.order, name)
	return nil
}

// Get returns the command registered under name.
func (r *Registry) Get(name string) (Command, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cmd, ok := r.commands[name]
	return cmd, ok
}

// Commands returns all commands in registration order.
func (r *Registry) Commands() []Command {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Command, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.commands[name])
	}
	return out
}

// Invoke runs the named command and converts its outcome into a Response.
// Errors never escape: they become the Response's error string.
func (r *Registry) Invoke(ctx context.Context, name string, args json.RawMessage) Response {
	cmd, ok := r.Get(name)
	if !ok {
		r.logger.Warnf("unknown command %q", name)
		return Response{Error: fmt.Sprintf("unknown command '%s'", name)}
	}

	if r.emit != nil {
		if shell.EmitterFromContext(ctx) == nil {
			ctx = shell.WithEmitter(ctx, r.emit)
		}
		r.emit(types.NewCommandInvokedEvent(name))
	}

	r.logger.Debugf("invoking %s", name)
	value, err := cmd.Invoke(ctx, args)
	if err != nil {
		r.logger.Infof("%s failed: %v", name, err)
		if r.emit != nil {
			r.emit(types.NewCommandErrorEvent(name, err))
		}
		return Response{Error: err.Error()}
	}

	if r.emit != nil {
		r.emit(types.NewCommandResultEvent(name, value))
	}
	return Response{OK: true, Value: value}
}
