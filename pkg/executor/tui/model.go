package tui

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/hearth/pkg/host"
)

// Invoker runs a host command by name.
type Invoker interface {
	Invoke(ctx context.Context, name string, args json.RawMessage) host.Response
}

// model represents the state of the TUI application.
type model struct {
	// Bubble Tea components
	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	// Host integration
	invoker Invoker
	send    func(tea.Msg) // program.Send; nil disables streaming
	workDir func() string
	ctx     context.Context

	// Customization
	header string // Header text rendered as ASCII art

	// Content buffers
	content *strings.Builder

	// UI state
	toast *toastNotification

	// Command state
	busy           bool
	canceling      bool
	loadingMessage string
	streamed       bool
	lastOutput     string
	cancelCommand  context.CancelFunc
	commandDone    chan struct{} // closed when the in-flight invoke returns

	// Window dimensions
	width  int
	height int
	ready  bool
}

// resultMsg carries a finished host command back to the event loop.
type resultMsg struct {
	command string
	resp    host.Response
}

// outputMsg carries one streamed line of shell output.
type outputMsg struct {
	line   string
	stream string
}

// toastNotification represents a temporary notification message
type toastNotification struct {
	active    bool
	message   string
	details   string
	icon      string
	isError   bool
	showUntil time.Time
}

const defaultHeader = "HEARTH"

func initialModel(invoker Invoker) model {
	ta := textarea.New()
	ta.Placeholder = "Type a shell command or /help..."
	ta.Focus()
	ta.Prompt = "> "
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(1)
	ta.MaxHeight = 6
	ta.FocusedStyle.CursorLine = lipgloss.NewStyle()
	ta.FocusedStyle.Prompt = lipgloss.NewStyle().Foreground(salmonPink)
	ta.KeyMap.InsertNewline.SetEnabled(false)

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(salmonPink)

	return model{
		viewport: viewport.New(80, 20),
		textarea: ta,
		spinner:  s,
		invoker:  invoker,
		header:   defaultHeader,
		content:  &strings.Builder{},
		toast:    &toastNotification{},
	}
}

// Init implements tea.Model.
func (m *model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, m.spinner.Tick)
}
