package tui

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/entrhq/hearth/pkg/host"
	"github.com/entrhq/hearth/pkg/shell"
	"github.com/entrhq/hearth/pkg/types"
)

type fakeInvoker struct {
	name   string
	args   string
	resp   host.Response
	stream []string
	block  bool // wait for cancellation before returning
}

func (f *fakeInvoker) Invoke(ctx context.Context, name string, args json.RawMessage) host.Response {
	f.name, f.args = name, string(args)
	if f.block {
		<-ctx.Done()
		return host.Response{Error: "command canceled: " + ctx.Err().Error()}
	}
	if emit := shell.EmitterFromContext(ctx); emit != nil {
		for _, line := range f.stream {
			emit(types.NewCommandOutputEvent("cmd_test", line, "stdout"))
		}
	}
	return f.resp
}

func newTestModel(t *testing.T, inv *fakeInvoker) *model {
	t.Helper()
	m := initialModel(inv)
	m.workDir = func() string { return "/work" }
	_, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	require.True(t, m.ready)
	return &m
}

func typeAndEnter(m *model, input string) tea.Cmd {
	m.textarea.SetValue(input)
	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	return cmd
}

// drain runs cmd and any batched commands, returning the produced messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func findResult(msgs []tea.Msg) (resultMsg, bool) {
	for _, msg := range msgs {
		if r, ok := msg.(resultMsg); ok {
			return r, true
		}
	}
	return resultMsg{}, false
}

func TestEnter_RunsShellCommand(t *testing.T) {
	inv := &fakeInvoker{resp: host.Response{OK: true, Value: "hello"}}
	m := newTestModel(t, inv)

	cmd := typeAndEnter(m, "echo hello")
	assert.True(t, m.busy)
	assert.Equal(t, "Running command...", m.loadingMessage)
	assert.Empty(t, m.textarea.Value())

	res, ok := findResult(drain(cmd))
	require.True(t, ok)
	assert.Equal(t, host.CmdExecuteCommand, inv.name)
	assert.JSONEq(t, `{"command":"echo hello"}`, inv.args)

	_, _ = m.Update(res)
	assert.False(t, m.busy)
	assert.Equal(t, "hello", m.lastOutput)
	assert.Contains(t, m.content.String(), "$ echo hello")
	assert.Contains(t, m.content.String(), "hello")
}

func TestEnter_SlashCommandJSONResult(t *testing.T) {
	inv := &fakeInvoker{resp: host.Response{OK: true, Value: []string{"llama3.2:3b"}}}
	m := newTestModel(t, inv)

	res, ok := findResult(drain(typeAndEnter(m, "/ollama models")))
	require.True(t, ok)
	assert.Equal(t, host.CmdListOllamaModels, inv.name)

	_, _ = m.Update(res)
	assert.Equal(t, "[\n  \"llama3.2:3b\"\n]", m.lastOutput)
	assert.Contains(t, m.content.String(), "llama3.2:3b")
}

func TestEnter_ErrorResult(t *testing.T) {
	inv := &fakeInvoker{resp: host.Response{Error: "knowledge base 'x' not found"}}
	m := newTestModel(t, inv)

	res, ok := findResult(drain(typeAndEnter(m, "/kb files x")))
	require.True(t, ok)
	_, _ = m.Update(res)

	assert.Contains(t, m.content.String(), "Error: knowledge base 'x' not found")
	assert.False(t, m.busy)
}

func TestEnter_ResolveErrorAndHelp(t *testing.T) {
	inv := &fakeInvoker{}
	m := newTestModel(t, inv)

	assert.Nil(t, findResultOrNil(drain(typeAndEnter(m, "/bogus"))))
	assert.Contains(t, m.content.String(), "unknown command '/bogus'")
	assert.False(t, m.busy)

	typeAndEnter(m, "/help")
	assert.Contains(t, m.content.String(), "/kb new <name>")
	assert.Empty(t, inv.name)
}

func findResultOrNil(msgs []tea.Msg) *resultMsg {
	if r, ok := findResult(msgs); ok {
		return &r
	}
	return nil
}

func TestEnter_Quit(t *testing.T) {
	m := newTestModel(t, &fakeInvoker{})

	msgs := drain(typeAndEnter(m, "exit"))
	assert.Contains(t, msgs, tea.Quit())
}

func TestEnter_BusyRejectsInput(t *testing.T) {
	inv := &fakeInvoker{}
	m := newTestModel(t, inv)
	m.busy = true

	typeAndEnter(m, "ls")
	assert.Empty(t, inv.name)
	assert.True(t, m.toast.active)
	assert.Equal(t, "ls", m.textarea.Value())
}

func TestCtrlC_CancelsRunningCommand(t *testing.T) {
	inv := &fakeInvoker{block: true}
	m := newTestModel(t, inv)

	cmd := typeAndEnter(m, "tail -f app.log")
	require.True(t, m.busy)

	results := make(chan []tea.Msg, 1)
	go func() { results <- drain(cmd) }()

	_, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Nil(t, quit, "first Ctrl+C should cancel, not quit")
	assert.True(t, m.canceling)
	assert.Equal(t, "Canceling...", m.loadingMessage)

	var msgs []tea.Msg
	select {
	case msgs = <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("command was not canceled")
	}
	res, ok := findResult(msgs)
	require.True(t, ok)
	assert.True(t, m.waitRunning(time.Second))

	_, _ = m.Update(res)
	assert.False(t, m.busy)
	assert.False(t, m.canceling)
	assert.Nil(t, m.cancelCommand)
	assert.Contains(t, m.content.String(), "command canceled: context canceled")

	_, quit = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Contains(t, drain(quit), tea.Quit())
}

func TestCtrlC_SecondPressQuitsWhileCanceling(t *testing.T) {
	inv := &fakeInvoker{block: true}
	m := newTestModel(t, inv)

	cmd := typeAndEnter(m, "ping example.com")
	results := make(chan []tea.Msg, 1)
	go func() { results <- drain(cmd) }()

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	_, quit := m.Update(tea.KeyMsg{Type: tea.KeyCtrlC})
	assert.Contains(t, drain(quit), tea.Quit())

	select {
	case <-results:
	case <-time.After(2 * time.Second):
		t.Fatal("command still running after quit")
	}
}

func TestExit_CancelsRunningCommand(t *testing.T) {
	inv := &fakeInvoker{block: true}
	m := newTestModel(t, inv)

	cmd := typeAndEnter(m, "sleep 100")
	results := make(chan []tea.Msg, 1)
	go func() { results <- drain(cmd) }()

	assert.Contains(t, drain(typeAndEnter(m, "exit")), tea.Quit())
	assert.True(t, m.waitRunning(2*time.Second))
	<-results
}

func TestInvoke_UsesProgramContext(t *testing.T) {
	inv := &fakeInvoker{block: true}
	m := newTestModel(t, inv)
	ctx, cancel := context.WithCancel(context.Background())
	m.ctx = ctx

	cmd := typeAndEnter(m, "sleep 100")
	results := make(chan []tea.Msg, 1)
	go func() { results <- drain(cmd) }()

	cancel()
	select {
	case msgs := <-results:
		res, ok := findResult(msgs)
		require.True(t, ok)
		assert.Equal(t, "command canceled: context canceled", res.resp.Error)
	case <-time.After(2 * time.Second):
		t.Fatal("command ignored the program context")
	}
}

func TestStreamedOutput(t *testing.T) {
	inv := &fakeInvoker{
		resp:   host.Response{OK: true, Value: "one\ntwo"},
		stream: []string{"one\n", "two\n"},
	}
	m := newTestModel(t, inv)

	var sent []tea.Msg
	m.send = func(msg tea.Msg) { sent = append(sent, msg) }

	res, ok := findResult(drain(typeAndEnter(m, "seq 2")))
	require.True(t, ok)
	require.Len(t, sent, 2)

	for _, msg := range sent {
		_, _ = m.Update(msg)
	}
	assert.True(t, m.streamed)
	before := m.content.String()

	_, _ = m.Update(res)
	assert.Equal(t, "one\ntwo", m.lastOutput)
	assert.Equal(t, 1, strings.Count(m.content.String(), "two"), "value should not be printed twice")
	assert.True(t, strings.HasPrefix(m.content.String(), before))
}

func TestStreamedFailure(t *testing.T) {
	inv := &fakeInvoker{
		resp:   host.Response{Error: "command failed: one\nboom"},
		stream: []string{"one\n", "boom\n"},
	}
	m := newTestModel(t, inv)

	var sent []tea.Msg
	m.send = func(msg tea.Msg) { sent = append(sent, msg) }

	res, ok := findResult(drain(typeAndEnter(m, "false")))
	require.True(t, ok)
	for _, msg := range sent {
		_, _ = m.Update(msg)
	}
	_, _ = m.Update(res)

	assert.Equal(t, 1, strings.Count(m.content.String(), "boom"))
	assert.Contains(t, m.content.String(), "Error: command failed")
	assert.Equal(t, "command failed: one\nboom", m.lastOutput)
}

func TestCopyLastOutput(t *testing.T) {
	orig := clipboardWriteAll
	t.Cleanup(func() { clipboardWriteAll = orig })

	var copied string
	clipboardWriteAll = func(text string) error {
		copied = text
		return nil
	}

	m := newTestModel(t, &fakeInvoker{})

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, "Nothing to copy", m.toast.message)

	m.lastOutput = "hello"
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, "hello", copied)
	assert.Equal(t, "Copied", m.toast.message)

	clipboardWriteAll = func(string) error { return errors.New("no clipboard utility") }
	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, "Copy failed", m.toast.message)
	assert.True(t, m.toast.isError)
}

func TestClearScreen(t *testing.T) {
	m := newTestModel(t, &fakeInvoker{})
	m.content.WriteString("old output")

	_, _ = m.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.Empty(t, m.content.String())
}

func TestView(t *testing.T) {
	m := initialModel(&fakeInvoker{})
	assert.Equal(t, "Initializing...", m.View())

	tm := newTestModel(t, &fakeInvoker{})
	view := tm.View()
	assert.Contains(t, view, "██╗  ██╗")
	assert.Contains(t, view, "Working directory: /work")

	tm.busy = true
	tm.loadingMessage = "Listing models..."
	assert.Contains(t, tm.View(), "Listing models...")
}

func TestHighlight(t *testing.T) {
	out := highlight("{\n  \"running\": true\n}", "json")
	assert.Contains(t, out, "running")
	assert.Equal(t, 2, strings.Count(out, "\n"))

	assert.Contains(t, highlight("plain", "no-such-language"), "plain")
}
