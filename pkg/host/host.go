package host

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/entrhq/hearth/pkg/companion"
	"github.com/entrhq/hearth/pkg/config"
	"github.com/entrhq/hearth/pkg/knowledgebase"
	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/ollama"
	"github.com/entrhq/hearth/pkg/platform"
	"github.com/entrhq/hearth/pkg/shell"
	"github.com/entrhq/hearth/pkg/types"
)

// Options wires the host's collaborators.
type Options struct {
	Shell              ShellRunner
	Companion          CompanionLauncher
	Ollama             OllamaService
	KnowledgeBases     KnowledgeBases
	AutoStartCompanion bool
	Emitter            types.Emitter
	Logger             *logging.Logger
}

// Host owns the command registry and the startup hook.
type Host struct {
	registry  *Registry
	shell     ShellRunner
	companion CompanionLauncher
	autoStart bool
	logger    *logging.Logger
}

// New registers every host command against the given collaborators.
func New(opts Options) (*Host, error) {
	logger := opts.Logger
	if logger == nil {
		logger = logging.Discard()
	}

	registry := NewRegistry(WithEmitter(opts.Emitter), WithRegistryLogger(logger))
	commands := []Command{
		&ExecuteCommand{Shell: opts.Shell},
		&StartPythonServer{Companion: opts.Companion},
		&CheckPythonServer{Companion: opts.Companion},
		&CheckOllamaService{Ollama: opts.Ollama},
		&StartOllamaService{Ollama: opts.Ollama},
		&ListOllamaModels{Ollama: opts.Ollama},
		&CreateKnowledgeBase{KnowledgeBases: opts.KnowledgeBases},
		&ListKnowledgeBases{KnowledgeBases: opts.KnowledgeBases},
		&ListKnowledgeBaseFiles{KnowledgeBases: opts.KnowledgeBases},
		&DeleteKnowledgeBase{KnowledgeBases: opts.KnowledgeBases},
		&ImportDocument{KnowledgeBases: opts.KnowledgeBases},
	}
	for _, cmd := range commands {
		if err := registry.Register(cmd); err != nil {
			return nil, err
		}
	}

	return &Host{
		registry:  registry,
		shell:     opts.Shell,
		companion: opts.Companion,
		autoStart: opts.AutoStartCompanion,
		logger:    logger,
	}, nil
}

// NewFromConfig builds a host from the global configuration sections.
// config.Initialize must have been called.
func NewFromConfig(logger *logging.Logger, emit types.Emitter) (*Host, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	exeDir, err := platform.ExecutableDir()
	if err != nil {
		return nil, err
	}
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("cannot get current directory: %w", err)
	}
	paths := config.Paths{ExeDir: exeDir, Cwd: cwd}

	policy := config.GetCommandPolicy()
	runner, err := shell.NewRunner(cwd,
		shell.WithPolicy(policy),
		shell.WithTimeout(policy.Timeout()),
		shell.WithLogger(logger.Component("shell")),
	)
	if err != nil {
		return nil, err
	}

	companionSection := config.GetCompanion()
	launcher := companion.New(companion.ConfigFromSection(companionSection),
		companion.WithPaths(paths),
		companion.WithLogger(logger.Component("companion")),
	)

	ollamaSvc := ollama.New(ollama.ConfigFromSection(config.GetOllama()),
		ollama.WithLogger(logger.Component("ollama")),
	)

	store := knowledgebase.NewStore(
		knowledgebase.RootFromSection(config.GetKnowledgeBase(), paths),
		knowledgebase.WithLogger(logger.Component("knowledgebase")),
	)

	return New(Options{
		Shell:              runner,
		Companion:          launcher,
		Ollama:             ollamaSvc,
		KnowledgeBases:     store,
		AutoStartCompanion: companionSection.ShouldAutoStart(),
		Emitter:            emit,
		Logger:             logger,
	})
}

// Registry returns the command registry.
func (h *Host) Registry() *Registry {
	return h.registry
}

// WorkingDir reports the shell session directory, or "" when the shell
// runner does not track one.
func (h *Host) WorkingDir() string {
	if d, ok := h.shell.(interface{ Dir() string }); ok {
		return d.Dir()
	}
	return ""
}

// Invoke runs the named command.
func (h *Host) Invoke(ctx context.Context, name string, args json.RawMessage) Response {
	return h.registry.Invoke(ctx, name, args)
}

// Setup runs once at launch: it tries to start the companion server and logs
// the outcome. A failure never stops the host.
func (h *Host) Setup(ctx context.Context) {
	if !h.autoStart {
		h.logger.Infof("companion auto-start disabled")
		return
	}

	resp := h.registry.Invoke(ctx, CmdStartPythonServer, nil)
	if !resp.OK {
		h.logger.Errorf("companion server failed to start: %s", resp.Error)
		return
	}
	h.logger.Infof("%v", resp.Value)
}
