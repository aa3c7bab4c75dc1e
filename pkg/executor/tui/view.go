package tui

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/entrhq/hearth/pkg/ui"
)

// View renders the entire TUI interface.
// This is called by Bubble Tea whenever the UI needs to be redrawn.
func (m *model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	sections := []string{
		m.buildHeader(),
		m.buildTips(),
		m.buildTopStatus(),
		"",
		m.viewport.View(),
	}
	if m.busy {
		sections = append(sections, m.buildLoadingIndicator())
	}
	sections = append(sections, m.buildInputBox(), m.buildBottomBar())

	baseView := lipgloss.JoinVertical(lipgloss.Left, sections...)

	if m.toast.active && time.Now().Before(m.toast.showUntil) {
		baseView = renderToastOverlay(baseView, m.renderToast())
	}
	return baseView
}

// buildHeader renders the ASCII art header
func (m *model) buildHeader() string {
	return headerStyle.Render(ui.GenerateASCIIArt(m.header))
}

func (m *model) buildTips() string {
	return tipsStyle.Render(`  Tips: Type a shell command • /help for host commands • Alt+Enter for new line • Ctrl+Y to copy last output • Ctrl+L to clear • Ctrl+C to cancel or exit`)
}

// buildTopStatus renders the session working directory
func (m *model) buildTopStatus() string {
	return statusBarStyle.Render(fmt.Sprintf(" Working directory: %s", m.currentDir()))
}

func (m *model) currentDir() string {
	if m.workDir != nil {
		return m.workDir()
	}
	cwd, err := os.Getwd()
	if err != nil {
		return "~"
	}
	return cwd
}

// buildLoadingIndicator renders the spinner while a command runs
func (m *model) buildLoadingIndicator() string {
	loadingStyle := lipgloss.NewStyle().
		Foreground(salmonPink).
		Width(m.width-4).
		Padding(0, 2)
	return loadingStyle.Render(fmt.Sprintf("%s %s", m.spinner.View(), m.loadingMessage))
}

func (m *model) buildInputBox() string {
	return inputBoxStyle.Width(m.width - 4).Render(m.textarea.View())
}

func (m *model) buildBottomBar() string {
	bottomLeft := "hearth"
	bottomCenter := "Enter to run • Alt+Enter for new line"
	bottomRight := "ready"
	if m.busy {
		bottomRight = "busy"
	}

	totalUsed := len(bottomLeft) + len(bottomCenter) + len(bottomRight)
	leftPadding := (m.width - totalUsed) / 3
	rightPadding := m.width - totalUsed - leftPadding*2
	if leftPadding < 2 {
		leftPadding = 2
	}
	if rightPadding < 2 {
		rightPadding = 2
	}

	return statusBarStyle.Width(m.width).Render(
		bottomLeft +
			strings.Repeat(" ", leftPadding) +
			bottomCenter +
			strings.Repeat(" ", rightPadding) +
			bottomRight,
	)
}

// renderToast renders a toast notification
func (m *model) renderToast() string {
	boxWidth := m.width - 4
	if boxWidth < 40 {
		boxWidth = 40
	}

	var content strings.Builder
	content.WriteString(fmt.Sprintf("%s %s", m.toast.icon, m.toast.message))
	if m.toast.details != "" {
		content.WriteString("\n")
		content.WriteString(m.toast.details)
	}

	borderColor := salmonPink
	if m.toast.isError {
		borderColor = alertRed
	}

	boxStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 1).
		Width(boxWidth)

	return "\n" + boxStyle.Render(content.String()) + "\n"
}

// renderToastOverlay places content over the bottom of the base view.
func renderToastOverlay(baseView, content string) string {
	baseLines := strings.Split(baseView, "\n")
	overlayLines := strings.Split(content, "\n")
	if len(overlayLines) >= len(baseLines) {
		return content
	}
	start := len(baseLines) - len(overlayLines) - 2
	if start < 0 {
		start = 0
	}
	copy(baseLines[start:], overlayLines)
	return strings.Join(baseLines, "\n")
}

// showToast displays a toast notification to the user
func (m *model) showToast(message, details, icon string, isError bool) {
	m.toast.active = true
	m.toast.message = message
	m.toast.details = details
	m.toast.icon = icon
	m.toast.isError = isError
	m.toast.showUntil = time.Now().Add(3 * time.Second)
}
