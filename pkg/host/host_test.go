package host

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hearth/pkg/companion"
	"github.com/entrhq/hearth/pkg/knowledgebase"
	"github.com/entrhq/hearth/pkg/logging"
	"github.com/entrhq/hearth/pkg/ollama"
	"github.com/entrhq/hearth/pkg/shell"
	"github.com/entrhq/hearth/pkg/types"
)

type fakeShell struct {
	got    string
	out    string
	err    error
	stream bool
}

func (f *fakeShell) Execute(ctx context.Context, command string) (string, error) {
	f.got = command
	f.stream = shell.EmitterFromContext(ctx) != nil
	return f.out, f.err
}

type fakeCompanion struct {
	launch *companion.Launch
	err    error
	starts int
}

func (f *fakeCompanion) Start(context.Context) (*companion.Launch, error) {
	f.starts++
	return f.launch, f.err
}

func (f *fakeCompanion) Health(context.Context) companion.Health {
	return companion.Health{URL: "http://127.0.0.1:5000/api/health", Running: true, Status: "ok", Message: "companion server is running (status: ok)"}
}

type fakeOllama struct {
	status ollama.Status
	pid    int
	err    error
	models []string
}

func (f *fakeOllama) Check(context.Context) (ollama.Status, error) { return f.status, nil }
func (f *fakeOllama) Start(context.Context) (int, error)           { return f.pid, f.err }
func (f *fakeOllama) Models(context.Context) ([]string, error)     { return f.models, f.err }

type fakeKB struct {
	name    string
	deleted string
	ref     string
	source  string
	err     error
}

func (f *fakeKB) Create(name string) (*knowledgebase.Created, error) {
	f.name = name
	if f.err != nil {
		return nil, f.err
	}
	return &knowledgebase.Created{Success: true, ID: "a1b2c3d4", Name: name, Path: "/kb/" + name}, nil
}

func (f *fakeKB) List() ([]knowledgebase.Folder, error) {
	return []knowledgebase.Folder{{ID: "a1b2c3d4", Name: "docs", Path: "/kb/docs"}}, nil
}

func (f *fakeKB) Files(ref string) ([]knowledgebase.File, error) {
	f.ref = ref
	return []knowledgebase.File{{Name: "a.txt", Path: "/kb/docs/a.txt", Size: 3, ModifiedAt: 1}}, nil
}

func (f *fakeKB) Delete(id string) error {
	f.deleted = id
	return f.err
}

func (f *fakeKB) Import(_ context.Context, ref, source string) (*knowledgebase.Document, error) {
	f.ref, f.source = ref, source
	return &knowledgebase.Document{Name: "a.txt", Path: "/kb/docs/a.txt", Size: 3, Extension: ".txt", Tokens: 1}, nil
}

type eventLog struct {
	mu     sync.Mutex
	events []*types.HostEvent
}

func (l *eventLog) emit(e *types.HostEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, e)
}

func (l *eventLog) kinds() []types.HostEventType {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]types.HostEventType, len(l.events))
	for i, e := range l.events {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	host      *Host
	shell     *fakeShell
	companion *fakeCompanion
	ollama    *fakeOllama
	kb        *fakeKB
	events    *eventLog
	logs      *bytes.Buffer
}

func newFixture(t *testing.T, autoStart bool) *fixture {
	t.Helper()
	f := &fixture{
		shell:     &fakeShell{out: "ok"},
		companion: &fakeCompanion{launch: &companion.Launch{PID: 99, Script: "/app/python/main.py", Interpreter: "python"}},
		ollama:    &fakeOllama{pid: 1234, status: ollama.Status{Installed: true, Running: true, Message: ollama.MessageRunning}},
		kb:        &fakeKB{},
		events:    &eventLog{},
		logs:      &bytes.Buffer{},
	}

	h, err := New(Options{
		Shell:              f.shell,
		Companion:          f.companion,
		Ollama:             f.ollama,
		KnowledgeBases:     f.kb,
		AutoStartCompanion: autoStart,
		Emitter:            f.events.emit,
		Logger:             logging.NewWriterLogger("host", f.logs),
	})
	require.NoError(t, err)
	f.host = h
	return f
}

func TestNew_RegistersAllCommands(t *testing.T) {
	f := newFixture(t, false)

	var names []string
	for _, cmd := range f.host.Registry().Commands() {
		names = append(names, cmd.Name())
		assert.NotEmpty(t, cmd.Description())
		assert.Equal(t, "object", cmd.Schema()["type"])
	}
	assert.Equal(t, []string{
		"execute_command",
		"start_python_server",
		"check_python_server",
		"check_ollama_service",
		"start_ollama_service",
		"list_ollama_models",
		"create_knowledge_base",
		"list_knowledge_bases",
		"list_knowledge_base_files",
		"delete_knowledge_base",
		"import_document",
	}, names)
}

func TestInvoke_ExecuteCommand(t *testing.T) {
	f := newFixture(t, false)

	resp := f.host.Invoke(context.Background(), CmdExecuteCommand, json.RawMessage(`{"command":"dir"}`))
	assert.Equal(t, Response{OK: true, Value: "ok"}, resp)
	assert.Equal(t, "dir", f.shell.got)
	assert.True(t, f.shell.stream, "registry emitter should reach the shell through the context")

	assert.Equal(t, []types.HostEventType{
		types.EventTypeCommandInvoked,
		types.EventTypeCommandResult,
	}, f.events.kinds())
}

func TestInvoke_ErrorBecomesString(t *testing.T) {
	f := newFixture(t, false)
	f.shell.err = errors.New("command failed: access denied")

	resp := f.host.Invoke(context.Background(), CmdExecuteCommand, json.RawMessage(`{"command":"x"}`))
	assert.Equal(t, Response{Error: "command failed: access denied"}, resp)
	assert.Equal(t, types.EventTypeCommandError, f.events.kinds()[1])
}

func TestInvoke_UnknownCommand(t *testing.T) {
	f := newFixture(t, false)

	resp := f.host.Invoke(context.Background(), "format_disk", nil)
	assert.Equal(t, Response{Error: "unknown command 'format_disk'"}, resp)
	assert.Empty(t, f.events.kinds())
}

func TestInvoke_InvalidArguments(t *testing.T) {
	f := newFixture(t, false)

	resp := f.host.Invoke(context.Background(), CmdCreateKnowledgeBase, json.RawMessage(`{"name":42}`))
	assert.False(t, resp.OK)
	assert.Contains(t, resp.Error, "invalid arguments")
}

func TestInvoke_StartPythonServer(t *testing.T) {
	f := newFixture(t, false)

	resp := f.host.Invoke(context.Background(), CmdStartPythonServer, nil)
	assert.Equal(t, Response{OK: true, Value: "companion server started, pid 99"}, resp)
	assert.Contains(t, f.events.kinds(), types.EventTypeProcessSpawned)
}

func TestInvoke_Ollama(t *testing.T) {
	f := newFixture(t, false)

	resp := f.host.Invoke(context.Background(), CmdCheckOllamaService, json.RawMessage(`{}`))
	require.True(t, resp.OK)
	assert.Equal(t, f.ollama.status, resp.Value)

	resp = f.host.Invoke(context.Background(), CmdStartOllamaService, nil)
	assert.Equal(t, Response{OK: true, Value: "Ollama service started, pid 1234"}, resp)

	f.ollama.models = []string{"llama3.2:3b"}
	resp = f.host.Invoke(context.Background(), CmdListOllamaModels, nil)
	assert.Equal(t, Response{OK: true, Value: []string{"llama3.2:3b"}}, resp)

	f.ollama.err = errors.New("Ollama is not installed, cannot start the service")
	resp = f.host.Invoke(context.Background(), CmdStartOllamaService, nil)
	assert.Equal(t, Response{Error: "Ollama is not installed, cannot start the service"}, resp)
}

func TestInvoke_KnowledgeBase(t *testing.T) {
	f := newFixture(t, false)

	resp := f.host.Invoke(context.Background(), CmdCreateKnowledgeBase, json.RawMessage(`{"name":"docs"}`))
	require.True(t, resp.OK)
	assert.Equal(t, "docs", f.kb.name)

	data, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"ok":true,"value":{"success":true,"id":"a1b2c3d4","name":"docs","path":"/kb/docs"}}`, string(data))

	resp = f.host.Invoke(context.Background(), CmdListKnowledgeBases, nil)
	require.True(t, resp.OK)
	assert.Len(t, resp.Value, 1)

	resp = f.host.Invoke(context.Background(), CmdListKnowledgeBaseFiles, json.RawMessage(`{"ref":"a1b2c3d4"}`))
	require.True(t, resp.OK)
	assert.Equal(t, "a1b2c3d4", f.kb.ref)

	resp = f.host.Invoke(context.Background(), CmdDeleteKnowledgeBase, json.RawMessage(`{"id":"a1b2c3d4"}`))
	assert.Equal(t, Response{OK: true, Value: map[string]interface{}{"success": true, "id": "a1b2c3d4"}}, resp)
	assert.Equal(t, "a1b2c3d4", f.kb.deleted)

	resp = f.host.Invoke(context.Background(), CmdImportDocument, json.RawMessage(`{"ref":"docs","path":"/tmp/a.txt"}`))
	require.True(t, resp.OK)
	assert.Equal(t, "/tmp/a.txt", f.kb.source)

	resp = f.host.Invoke(context.Background(), CmdImportDocument, json.RawMessage(`{"ref":"docs"}`))
	assert.Equal(t, Response{Error: "document path cannot be empty"}, resp)
}

func TestInvoke_CheckPythonServer(t *testing.T) {
	f := newFixture(t, false)

	resp := f.host.Invoke(context.Background(), CmdCheckPythonServer, nil)
	require.True(t, resp.OK)
	health, ok := resp.Value.(companion.Health)
	require.True(t, ok)
	assert.True(t, health.Running)
}

func TestSetup_StartsCompanion(t *testing.T) {
	f := newFixture(t, true)

	f.host.Setup(context.Background())
	assert.Equal(t, 1, f.companion.starts)
	assert.Contains(t, f.logs.String(), "[INFO] companion server started, pid 99")
}

func TestSetup_FailureIsLogged(t *testing.T) {
	f := newFixture(t, true)
	f.companion.err = errors.New("failed to start companion server: companion script not found (searched: /a)")

	assert.NotPanics(t, func() { f.host.Setup(context.Background()) })
	assert.Contains(t, f.logs.String(), "[ERROR] companion server failed to start: failed to start companion server: companion script not found")
}

func TestSetup_Disabled(t *testing.T) {
	f := newFixture(t, false)

	f.host.Setup(context.Background())
	assert.Equal(t, 0, f.companion.starts)
	assert.Contains(t, f.logs.String(), "companion auto-start disabled")
}

func TestRegistry_DuplicateRegistration(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(&ExecuteCommand{}))
	assert.EqualError(t, r.Register(&ExecuteCommand{}), "command execute_command already registered")
}

func TestDecodeArgs(t *testing.T) {
	var v struct {
		Name string `json:"name"`
	}
	assert.NoError(t, decodeArgs(nil, &v))
	assert.NoError(t, decodeArgs(json.RawMessage(" null "), &v))
	require.NoError(t, decodeArgs(json.RawMessage(`{"name":"x"}`), &v))
	assert.Equal(t, "x", v.Name)
	assert.Error(t, decodeArgs(json.RawMessage(`{`), &v))
}

func TestWorkingDir(t *testing.T) {
	f := newFixture(t, false)
	assert.Empty(t, f.host.WorkingDir())

	runner, err := shell.NewRunner(t.TempDir())
	require.NoError(t, err)
	h, err := New(Options{Shell: runner})
	require.NoError(t, err)
	assert.Equal(t, runner.Dir(), h.WorkingDir())
}
