package app

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"stocktool/internal/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var sections []string

	header := styles.Header.Render("stocktool")
	sections = append(sections, header)

	chatView := m.chat.View()
	if m.chat.IsEmpty() {
		welcomeStyle := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Width(m.width).
			Align(lipgloss.Center).
			Padding(2, 0)
		chatView = welcomeStyle.Render(m.text.Welcome)
	}
	sections = append(sections, chatView)

	if m.state == StateStreaming {
		// Show disabled input during streaming
		disabledInput := lipgloss.NewStyle().
			Foreground(styles.Muted).
			Italic(true).
			Border(lipgloss.RoundedBorder()).
			BorderForeground(styles.Muted).
			Padding(0, 1).
			Width(m.width - 2).
			Render(m.text.Waiting)
		sections = append(sections, disabledInput)
	} else {
		sections = append(sections, m.input.View())
	}

	sections = append(sections, m.renderStatusBar())

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// renderStatusBar renders the status bar at the bottom
func (m Model) renderStatusBar() string {
	var status string
	var statusStyle lipgloss.Style

	switch m.state {
	case StateIdle:
		status = m.text.Ready
		if m.notice != "" {
			status = m.notice
		}
		statusStyle = styles.StatusBar
	case StateStreaming:
		status = m.text.Streaming
		statusStyle = styles.StatusBarStreaming
	case StateError:
		status = m.text.ErrorPrefix
		if m.lastFailure != nil {
			status = fmt.Sprintf("%s: %s", m.text.ErrorPrefix, m.lastFailure.Message)
			if m.lastFailure.Retryable() {
				status = fmt.Sprintf("%s (%s)", status, m.text.RetryHint)
			}
		}
		statusStyle = styles.StatusBarError
	}

	left := statusStyle.Render(status)
	help := styles.StatusBar.Render(m.text.Help)

	leftWidth := lipgloss.Width(left)
	rightWidth := lipgloss.Width(help)
	spacerWidth := m.width - leftWidth - rightWidth - 2
	if spacerWidth < 0 {
		spacerWidth = 0
	}
	spacer := strings.Repeat(" ", spacerWidth)

	return lipgloss.JoinHorizontal(lipgloss.Top, left, spacer, help)
}
