package types

import "time"

// HostEventType defines the type of event emitted by the host.
type HostEventType string

const (
	EventTypeCommandInvoked           HostEventType = "command_invoked"            // EventTypeCommandInvoked indicates a host command was dispatched.
	EventTypeCommandResult            HostEventType = "command_result"             // EventTypeCommandResult indicates a host command returned a value.
	EventTypeCommandError             HostEventType = "command_error"              // EventTypeCommandError indicates a host command returned an error.
	EventTypeCommandExecutionStart    HostEventType = "command_execution_start"    // EventTypeCommandExecutionStart indicates a shell command has started executing.
	EventTypeCommandOutput            HostEventType = "command_output"             // EventTypeCommandOutput indicates output from a running shell command.
	EventTypeCommandExecutionComplete HostEventType = "command_execution_complete" // EventTypeCommandExecutionComplete indicates a shell command finished successfully.
	EventTypeCommandExecutionFailed   HostEventType = "command_execution_failed"   // EventTypeCommandExecutionFailed indicates a shell command exited non-zero or could not start.
	EventTypeCommandExecutionCanceled HostEventType = "command_execution_canceled" // EventTypeCommandExecutionCanceled indicates a shell command was canceled or timed out.
	EventTypeProcessSpawned           HostEventType = "process_spawned"            // EventTypeProcessSpawned indicates an external process was launched and detached.
)

// HostEvent represents an event emitted by the host while serving a command.
type HostEvent struct {
	// Type indicates the kind of event.
	Type HostEventType `json:"type"`

	// Time is when the event was created.
	Time time.Time `json:"time"`

	// Command is the host command name (for invoke events).
	Command string `json:"command,omitempty"`

	// Value is the command result (for result events).
	Value interface{} `json:"value,omitempty"`

	// Error contains error information for failure events.
	Error error `json:"-"`

	// ErrorMessage is the rendered error, kept for serialization.
	ErrorMessage string `json:"error,omitempty"`

	// CommandExecution contains shell execution information (for shell events).
	CommandExecution *CommandExecution `json:"execution,omitempty"`

	// Process contains spawn information (for process events).
	Process *ProcessInfo `json:"process,omitempty"`

	// Metadata holds optional additional information about the event.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// CommandExecution contains information about shell command execution.
type CommandExecution struct {
	// Command is the shell command being executed.
	Command string `json:"command,omitempty"`

	// WorkingDir is the working directory for the command.
	WorkingDir string `json:"working_dir,omitempty"`

	// Output is one line of output (for CommandOutput events).
	Output string `json:"output,omitempty"`

	// StreamType indicates whether output is from stdout or stderr.
	StreamType string `json:"stream,omitempty"` // "stdout" or "stderr"

	// ExitCode is the command's exit code (for completion/failed events).
	ExitCode int `json:"exit_code"`

	// Duration is how long the command took to execute.
	Duration string `json:"duration,omitempty"`

	// ExecutionID is a unique identifier for this command execution.
	ExecutionID string `json:"execution_id"`
}

// ProcessInfo describes a detached external process.
type ProcessInfo struct {
	// Name is a short label for the process ("companion", "ollama").
	Name string `json:"name"`

	// PID is the operating system process id.
	PID int `json:"pid"`

	// Args is the full argument vector used to spawn it.
	Args []string `json:"args"`
}

func newEvent(t HostEventType) *HostEvent {
	return &HostEvent{
		Type:     t,
		Time:     time.Now(),
		Metadata: make(map[string]interface{}),
	}
}

// NewCommandInvokedEvent creates a host command dispatch event.
func NewCommandInvokedEvent(command string) *HostEvent {
	e := newEvent(EventTypeCommandInvoked)
	e.Command = command
	return e
}

// NewCommandResultEvent creates a host command result event.
func NewCommandResultEvent(command string, value interface{}) *HostEvent {
	e := newEvent(EventTypeCommandResult)
	e.Command = command
	e.Value = value
	return e
}

// NewCommandErrorEvent creates a host command error event.
func NewCommandErrorEvent(command string, err error) *HostEvent {
	e := newEvent(EventTypeCommandError)
	e.Command = command
	e.setError(err)
	return e
}

// NewCommandExecutionStartEvent creates a command execution start event.
func NewCommandExecutionStartEvent(executionID, command, workingDir string) *HostEvent {
	e := newEvent(EventTypeCommandExecutionStart)
	e.CommandExecution = &CommandExecution{
		ExecutionID: executionID,
		Command:     command,
		WorkingDir:  workingDir,
	}
	return e
}

// NewCommandOutputEvent creates a command output event.
func NewCommandOutputEvent(executionID, output, streamType string) *HostEvent {
	e := newEvent(EventTypeCommandOutput)
	e.CommandExecution = &CommandExecution{
		ExecutionID: executionID,
		Output:      output,
		StreamType:  streamType,
	}
	return e
}

// NewCommandExecutionCompleteEvent creates a command execution complete event.
func NewCommandExecutionCompleteEvent(executionID string, exitCode int, duration string) *HostEvent {
	e := newEvent(EventTypeCommandExecutionComplete)
	e.CommandExecution = &CommandExecution{
		ExecutionID: executionID,
		ExitCode:    exitCode,
		Duration:    duration,
	}
	return e
}

// NewCommandExecutionFailedEvent creates a command execution failed event.
func NewCommandExecutionFailedEvent(executionID string, exitCode int, duration string, err error) *HostEvent {
	e := newEvent(EventTypeCommandExecutionFailed)
	e.setError(err)
	e.CommandExecution = &CommandExecution{
		ExecutionID: executionID,
		ExitCode:    exitCode,
		Duration:    duration,
	}
	return e
}

// NewCommandExecutionCanceledEvent creates a command execution canceled event.
func NewCommandExecutionCanceledEvent(executionID string, duration string) *HostEvent {
	e := newEvent(EventTypeCommandExecutionCanceled)
	e.CommandExecution = &CommandExecution{
		ExecutionID: executionID,
		Duration:    duration,
		ExitCode:    -1, // Indicate cancellation
	}
	return e
}

// NewProcessSpawnedEvent creates an event for a detached process launch.
func NewProcessSpawnedEvent(name string, pid int, args []string) *HostEvent {
	e := newEvent(EventTypeProcessSpawned)
	e.Process = &ProcessInfo{Name: name, PID: pid, Args: args}
	return e
}

func (e *HostEvent) setError(err error) {
	e.Error = err
	if err != nil {
		e.ErrorMessage = err.Error()
	}
}

// WithMetadata adds metadata to the event and returns the event for chaining.
func (e *HostEvent) WithMetadata(key string, value interface{}) *HostEvent {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// IsCommandExecutionEvent returns true if this is any shell execution event.
func (e *HostEvent) IsCommandExecutionEvent() bool {
	return e.Type == EventTypeCommandExecutionStart ||
		e.Type == EventTypeCommandOutput ||
		e.Type == EventTypeCommandExecutionComplete ||
		e.Type == EventTypeCommandExecutionFailed ||
		e.Type == EventTypeCommandExecutionCanceled
}

// IsTerminal returns true if the event ends a shell execution.
func (e *HostEvent) IsTerminal() bool {
	return e.Type == EventTypeCommandExecutionComplete ||
		e.Type == EventTypeCommandExecutionFailed ||
		e.Type == EventTypeCommandExecutionCanceled
}

// Emitter receives host events. Implementations must not block for long.
type Emitter func(*HostEvent)
