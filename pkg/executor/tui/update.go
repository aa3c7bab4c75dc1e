package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/entrhq/hearth/pkg/executor/slash"
	"github.com/entrhq/hearth/pkg/host"
	"github.com/entrhq/hearth/pkg/shell"
	"github.com/entrhq/hearth/pkg/types"
)

// clipboardWriteAll is swapped out in tests.
var clipboardWriteAll = clipboard.WriteAll

// Update handles all state updates for the TUI model.
// This is the main event loop handler for Bubble Tea.
func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var (
		tiCmd tea.Cmd
		vpCmd tea.Cmd
	)

	var spinnerCmd tea.Cmd
	m.spinner, spinnerCmd = m.spinner.Update(msg)

	oldHeight := m.textarea.Height()
	m.textarea, tiCmd = m.textarea.Update(msg)
	if oldHeight != m.textarea.Height() && m.ready {
		m.recalculateLayout()
	}
	m.updateTextAreaHeight()

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowResize(msg)

	case outputMsg:
		return m.handleOutput(msg)

	case resultMsg:
		return m.handleResult(msg)

	case tea.MouseMsg:
		m.viewport, vpCmd = m.viewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case tea.KeyMsg:
		return m.handleKeyPress(msg, vpCmd, tiCmd, spinnerCmd)
	}

	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
}

// calculateViewportHeight computes the viewport height from the current layout.
func (m *model) calculateViewportHeight() int {
	headerHeight := 10                     // ASCII art (7) + tips (1) + status bar (1) + blank line (1)
	inputHeight := m.textarea.Height() + 2 // textarea height + border
	statusBarHeight := 1
	loadingHeight := 0
	if m.busy {
		loadingHeight = 1
	}

	viewportHeight := m.height - headerHeight - inputHeight - statusBarHeight - loadingHeight
	if viewportHeight < 5 {
		viewportHeight = 5
	}
	return viewportHeight
}

func (m *model) handleWindowResize(msg tea.WindowSizeMsg) (tea.Model, tea.Cmd) {
	m.viewport, _ = m.viewport.Update(msg)

	m.width = msg.Width
	m.height = msg.Height

	m.viewport.Width = m.width - 4
	m.viewport.Height = m.calculateViewportHeight()
	m.textarea.SetWidth(m.width - 8)
	m.ready = true
	m.recalculateLayout()
	return m, nil
}

// handleOutput appends a streamed line of shell output.
func (m *model) handleOutput(msg outputMsg) (tea.Model, tea.Cmd) {
	m.streamed = true
	line := strings.TrimRight(msg.line, "\r\n")
	if msg.stream == "stderr" {
		m.content.WriteString(errorStyle.Render(line))
	} else {
		m.content.WriteString(toolResultStyle.Render(line))
	}
	m.content.WriteString("\n")
	m.recalculateLayout()
	return m, nil
}

// handleResult renders a finished host command.
func (m *model) handleResult(msg resultMsg) (tea.Model, tea.Cmd) {
	m.busy = false
	m.canceling = false
	m.cancelCommand = nil
	defer m.recalculateLayout()

	streamed := m.streamed && msg.command == host.CmdExecuteCommand

	if !msg.resp.OK {
		m.lastOutput = msg.resp.Error
		errText := msg.resp.Error
		if streamed {
			errText = slash.StreamedError(errText)
		}
		m.content.WriteString(formatEntry("  ❌ Error: ", errText, errorStyle, m.width, false))
		m.content.WriteString("\n\n")
		return m, nil
	}

	text, isJSON := slash.Format(msg.resp)
	m.lastOutput = text

	// Streamed output is already on screen.
	if streamed {
		m.content.WriteString("\n")
		return m, nil
	}

	switch {
	case text == "":
		m.content.WriteString(toolStyle.Render("  ✓ Done"))
	case isJSON:
		m.content.WriteString(highlight(text, "json"))
	default:
		m.content.WriteString(toolResultStyle.Render(text))
	}
	m.content.WriteString("\n\n")
	return m, nil
}

// handleKeyPress processes keyboard input
func (m *model) handleKeyPress(msg tea.KeyMsg, vpCmd, tiCmd, spinnerCmd tea.Cmd) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		// The first Ctrl+C stops a running command, the next one quits.
		if m.busy && !m.canceling && m.cancelCommand != nil {
			m.cancelCommand()
			m.canceling = true
			m.loadingMessage = "Canceling..."
			return m, nil
		}
		m.cancelRunning()
		return m, tea.Quit

	case tea.KeyEsc:
		m.textarea.Reset()
		m.updateTextAreaHeight()
		return m, nil

	case tea.KeyCtrlY:
		return m.handleCopy()

	case tea.KeyCtrlL:
		m.content.Reset()
		m.recalculateLayout()
		return m, nil

	case tea.KeyPgUp, tea.KeyPgDown:
		m.viewport, vpCmd = m.viewport.Update(msg)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)

	case tea.KeyEnter:
		if msg.Alt {
			m.textarea.InsertString("\n")
			m.updateTextAreaHeight()
			return m, nil
		}
		return m.handleEnter(tiCmd, vpCmd, spinnerCmd)
	}

	return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
}

// handleCopy copies the last command output to the system clipboard.
func (m *model) handleCopy() (tea.Model, tea.Cmd) {
	if m.lastOutput == "" {
		m.showToast("Nothing to copy", "", "📋", false)
		return m, nil
	}
	if err := clipboardWriteAll(m.lastOutput); err != nil {
		m.showToast("Copy failed", err.Error(), "❌", true)
		return m, nil
	}
	m.showToast("Copied", "Last output copied to clipboard", "📋", false)
	return m, nil
}

// handleEnter resolves the typed line and starts the host command.
func (m *model) handleEnter(tiCmd, vpCmd, spinnerCmd tea.Cmd) (tea.Model, tea.Cmd) {
	input := strings.TrimSpace(m.textarea.Value())
	if input == "" {
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
	}

	if input == "exit" || input == "quit" {
		m.cancelRunning()
		return m, tea.Quit
	}

	if m.busy {
		m.showToast("Busy", "Wait for the current command to finish", "⏳", true)
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
	}

	m.textarea.Reset()
	m.updateTextAreaHeight()

	if strings.HasPrefix(input, "/") {
		m.content.WriteString(userStyle.Render(input))
	} else {
		m.content.WriteString(bashPromptStyle.Render(fmt.Sprintf("$ %s", input)))
	}
	m.content.WriteString("\n")

	req, err := slash.Resolve(input)
	if err != nil {
		m.content.WriteString(formatEntry("  ❌ Error: ", err.Error(), errorStyle, m.width, false))
		m.content.WriteString("\n\n")
		m.recalculateLayout()
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
	}

	if req.Help {
		m.content.WriteString(tipsStyle.Render(slash.HelpText()))
		m.content.WriteString("\n\n")
		m.recalculateLayout()
		return m, tea.Batch(tiCmd, vpCmd, spinnerCmd)
	}

	m.busy = true
	m.streamed = false
	m.loadingMessage = loadingMessage(req.Command)
	m.recalculateLayout()

	return m, tea.Batch(tiCmd, vpCmd, spinnerCmd, m.invoke(req))
}

// invoke runs req off the event loop under a context that Ctrl+C cancels.
// Shell output is forwarded through send while the command runs.
func (m *model) invoke(req slash.Request) tea.Cmd {
	base := m.ctx
	if base == nil {
		base = context.Background()
	}
	ctx, cancel := context.WithCancel(base)
	done := make(chan struct{})
	m.cancelCommand = cancel
	m.commandDone = done

	invoker := m.invoker
	send := m.send
	return func() tea.Msg {
		defer close(done)
		defer cancel()

		runCtx := ctx
		if send != nil {
			runCtx = shell.WithEmitter(ctx, func(event *types.HostEvent) {
				if event.Type == types.EventTypeCommandOutput && event.CommandExecution != nil {
					send(outputMsg{line: event.CommandExecution.Output, stream: event.CommandExecution.StreamType})
				}
			})
		}
		return resultMsg{
			command: req.Command,
			resp:    invoker.Invoke(runCtx, req.Command, req.ArgsJSON()),
		}
	}
}

// cancelRunning cancels the in-flight command, if any.
func (m *model) cancelRunning() {
	if m.cancelCommand != nil {
		m.cancelCommand()
		m.cancelCommand = nil
	}
}

// waitRunning waits up to timeout for the in-flight invoke to return.
// It reports false when the command is still running.
func (m *model) waitRunning(timeout time.Duration) bool {
	if m.commandDone == nil {
		return true
	}
	select {
	case <-m.commandDone:
		return true
	case <-time.After(timeout):
		return false
	}
}

// recalculateLayout updates viewport content and scrolls to bottom
func (m *model) recalculateLayout() {
	m.viewport.Height = m.calculateViewportHeight()
	m.viewport.SetContent(m.content.String())
	m.viewport.GotoBottom()
}
