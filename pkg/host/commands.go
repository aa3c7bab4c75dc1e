package host

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/entrhq/hearth/pkg/companion"
	"github.com/entrhq/hearth/pkg/knowledgebase"
	"github.com/entrhq/hearth/pkg/ollama"
	"github.com/entrhq/hearth/pkg/shell"
	"github.com/entrhq/hearth/pkg/types"
)

// Command names invoked by the UI.
const (
	CmdExecuteCommand         = "execute_command"
	CmdStartPythonServer      = "start_python_server"
	CmdCheckPythonServer      = "check_python_server"
	CmdCheckOllamaService     = "check_ollama_service"
	CmdStartOllamaService     = "start_ollama_service"
	CmdListOllamaModels       = "list_ollama_models"
	CmdCreateKnowledgeBase    = "create_knowledge_base"
	CmdListKnowledgeBases     = "list_knowledge_bases"
	CmdListKnowledgeBaseFiles = "list_knowledge_base_files"
	CmdDeleteKnowledgeBase    = "delete_knowledge_base"
	CmdImportDocument         = "import_document"
)

// ShellRunner runs command lines typed in the UI.
type ShellRunner interface {
	Execute(ctx context.Context, command string) (string, error)
}

// CompanionLauncher starts and probes the companion server.
type CompanionLauncher interface {
	Start(ctx context.Context) (*companion.Launch, error)
	Health(ctx context.Context) companion.Health
}

// OllamaService checks, starts and queries Ollama.
type OllamaService interface {
	Check(ctx context.Context) (ollama.Status, error)
	Start(ctx context.Context) (int, error)
	Models(ctx context.Context) ([]string, error)
}

// KnowledgeBases manages knowledge base folders.
type KnowledgeBases interface {
	Create(name string) (*knowledgebase.Created, error)
	List() ([]knowledgebase.Folder, error)
	Files(ref string) ([]knowledgebase.File, error)
	Delete(id string) error
	Import(ctx context.Context, ref, source string) (*knowledgebase.Document, error)
}

func emitSpawned(ctx context.Context, name string, pid int, args []string) {
	if emit := shell.EmitterFromContext(ctx); emit != nil {
		emit(types.NewProcessSpawnedEvent(name, pid, args))
	}
}

// ExecuteCommand relays a shell command line.
type ExecuteCommand struct {
	Shell ShellRunner
}

func (c *ExecuteCommand) Name() string { return CmdExecuteCommand }

func (c *ExecuteCommand) Description() string {
	return "Run a command through the system shell and return its combined output. \"cd <dir>\" changes the session directory."
}

func (c *ExecuteCommand) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"command": stringProperty("The command line to execute"),
	}, []string{"command"})
}

func (c *ExecuteCommand) Invoke(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Command string `json:"command"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	return c.Shell.Execute(ctx, input.Command)
}

// StartPythonServer launches the companion server.
type StartPythonServer struct {
	Companion CompanionLauncher
}

func (c *StartPythonServer) Name() string { return CmdStartPythonServer }

func (c *StartPythonServer) Description() string {
	return "Locate the bundled companion script and start it with the system Python."
}

func (c *StartPythonServer) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{}, nil)
}

func (c *StartPythonServer) Invoke(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	launch, err := c.Companion.Start(ctx)
	if err != nil {
		return nil, err
	}
	emitSpawned(ctx, "companion", launch.PID, []string{launch.Interpreter, launch.Script})
	return launch.Message(), nil
}

// CheckPythonServer probes the companion server's health endpoint once.
type CheckPythonServer struct {
	Companion CompanionLauncher
}

func (c *CheckPythonServer) Name() string { return CmdCheckPythonServer }

func (c *CheckPythonServer) Description() string {
	return "Probe the companion server's health endpoint."
}

func (c *CheckPythonServer) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{}, nil)
}

func (c *CheckPythonServer) Invoke(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return c.Companion.Health(ctx), nil
}

// CheckOllamaService reports whether Ollama is installed and running.
type CheckOllamaService struct {
	Ollama OllamaService
}

func (c *CheckOllamaService) Name() string { return CmdCheckOllamaService }

func (c *CheckOllamaService) Description() string {
	return "Report whether Ollama is installed and whether its API is answering."
}

func (c *CheckOllamaService) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{}, nil)
}

func (c *CheckOllamaService) Invoke(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return c.Ollama.Check(ctx)
}

// StartOllamaService launches "ollama serve".
type StartOllamaService struct {
	Ollama OllamaService
}

func (c *StartOllamaService) Name() string { return CmdStartOllamaService }

func (c *StartOllamaService) Description() string {
	return "Start the Ollama service in the background."
}

func (c *StartOllamaService) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{}, nil)
}

func (c *StartOllamaService) Invoke(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	pid, err := c.Ollama.Start(ctx)
	if err != nil {
		return nil, err
	}
	emitSpawned(ctx, "ollama", pid, []string{"ollama", "serve"})
	return ollama.StartedMessage(pid), nil
}

// ListOllamaModels lists the models Ollama has installed.
type ListOllamaModels struct {
	Ollama OllamaService
}

func (c *ListOllamaModels) Name() string { return CmdListOllamaModels }

func (c *ListOllamaModels) Description() string {
	return "List the models installed in the running Ollama service."
}

func (c *ListOllamaModels) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{}, nil)
}

func (c *ListOllamaModels) Invoke(ctx context.Context, _ json.RawMessage) (interface{}, error) {
	return c.Ollama.Models(ctx)
}

// CreateKnowledgeBase creates a knowledge base folder.
type CreateKnowledgeBase struct {
	KnowledgeBases KnowledgeBases
}

func (c *CreateKnowledgeBase) Name() string { return CmdCreateKnowledgeBase }

func (c *CreateKnowledgeBase) Description() string {
	return "Create a knowledge base folder with an id marker."
}

func (c *CreateKnowledgeBase) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"name": stringProperty("Folder name of the new knowledge base"),
	}, []string{"name"})
}

func (c *CreateKnowledgeBase) Invoke(_ context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Name string `json:"name"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	return c.KnowledgeBases.Create(input.Name)
}

// ListKnowledgeBases lists knowledge base folders.
type ListKnowledgeBases struct {
	KnowledgeBases KnowledgeBases
}

func (c *ListKnowledgeBases) Name() string { return CmdListKnowledgeBases }

func (c *ListKnowledgeBases) Description() string {
	return "List knowledge base folders with their ids."
}

func (c *ListKnowledgeBases) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{}, nil)
}

func (c *ListKnowledgeBases) Invoke(_ context.Context, _ json.RawMessage) (interface{}, error) {
	return c.KnowledgeBases.List()
}

// ListKnowledgeBaseFiles lists the documents in one knowledge base.
type ListKnowledgeBaseFiles struct {
	KnowledgeBases KnowledgeBases
}

func (c *ListKnowledgeBaseFiles) Name() string { return CmdListKnowledgeBaseFiles }

func (c *ListKnowledgeBaseFiles) Description() string {
	return "List the documents stored in a knowledge base."
}

func (c *ListKnowledgeBaseFiles) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"ref": stringProperty("Knowledge base id or folder name"),
	}, []string{"ref"})
}

func (c *ListKnowledgeBaseFiles) Invoke(_ context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Ref string `json:"ref"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	return c.KnowledgeBases.Files(input.Ref)
}

// DeleteKnowledgeBase removes a knowledge base by id.
type DeleteKnowledgeBase struct {
	KnowledgeBases KnowledgeBases
}

func (c *DeleteKnowledgeBase) Name() string { return CmdDeleteKnowledgeBase }

func (c *DeleteKnowledgeBase) Description() string {
	return "Delete a knowledge base folder and its documents."
}

func (c *DeleteKnowledgeBase) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"id": stringProperty("Knowledge base id"),
	}, []string{"id"})
}

func (c *DeleteKnowledgeBase) Invoke(_ context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		ID string `json:"id"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	if err := c.KnowledgeBases.Delete(input.ID); err != nil {
		return nil, err
	}
	return map[string]interface{}{"success": true, "id": strings.TrimSpace(input.ID)}, nil
}

// ImportDocument copies a document into a knowledge base.
type ImportDocument struct {
	KnowledgeBases KnowledgeBases
}

func (c *ImportDocument) Name() string { return CmdImportDocument }

func (c *ImportDocument) Description() string {
	return fmt.Sprintf("Copy a document (%s) into a knowledge base.", strings.Join(knowledgebase.SupportedExtensions, ", "))
}

func (c *ImportDocument) Schema() map[string]interface{} {
	return BaseSchema(map[string]interface{}{
		"ref":  stringProperty("Knowledge base id or folder name"),
		"path": stringProperty("Path of the document to import"),
	}, []string{"ref", "path"})
}

func (c *ImportDocument) Invoke(ctx context.Context, args json.RawMessage) (interface{}, error) {
	var input struct {
		Ref  string `json:"ref"`
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &input); err != nil {
		return nil, err
	}
	if strings.TrimSpace(input.Path) == "" {
		return nil, fmt.Errorf("document path cannot be empty")
	}
	return c.KnowledgeBases.Import(ctx, input.Ref, input.Path)
}
