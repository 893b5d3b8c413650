package app

import (
	"context"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"stocktool/internal/config"
	"stocktool/internal/messages"
	sdk "stocktool/sdk/chat"
)

// Update handles all application messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true

		// Reserve space for: header (1), input (5), status bar (1), padding (2)
		chatHeight := msg.Height - 9
		if chatHeight < 5 {
			chatHeight = 5
		}

		m.chat.SetSize(msg.Width, chatHeight)
		m.input.SetWidth(msg.Width)
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			if m.state == StateStreaming {
				return m.cancelSession()
			}
			return m, tea.Quit

		case "esc":
			if m.state == StateStreaming {
				return m.cancelSession()
			}
			return m, tea.Quit

		case "enter":
			if m.state != StateStreaming && strings.TrimSpace(m.input.Value()) != "" {
				return m.sendMessage()
			}

		case "ctrl+r":
			// Retry the failed exchange when the failure class warrants it
			if m.state == StateError && m.lastFailure != nil && m.lastFailure.Retryable() && m.lastRequest != nil {
				return m.startSession(*m.lastRequest)
			}

		case "ctrl+l":
			// New conversation
			if m.state != StateStreaming {
				m.chat.Clear()
				m.conversationID = nil
				m.lastFailure = nil
				m.notice = ""
				m.state = StateIdle
				return m, nil
			}

		case "ctrl+d":
			if m.state != StateStreaming && m.conversationID != nil {
				return m.deleteConversation()
			}
		}

	case messages.SnapshotMsg:
		return m.handleSnapshot(msg.Snapshot)

	case messages.StreamClosedMsg:
		m.session = nil
		return m, nil

	case messages.ToolsExpiredMsg:
		if m.state != StateStreaming {
			m.chat.ClearTools()
		}
		return m, nil

	case messages.HistoryLoadedMsg:
		m.conversationID = &msg.ConversationID
		m.chat.LoadHistory(msg.Messages)
		return m, nil

	case messages.HistoryErrorMsg:
		// A failed restore is not fatal; start fresh.
		m.conversationID = nil
		return m, nil
	}

	// Update child components when not streaming
	if m.state != StateStreaming {
		var cmd tea.Cmd
		m.input, cmd = m.input.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Always allow chat scrolling
	var cmd tea.Cmd
	m.chat, cmd = m.chat.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// handleSnapshot folds one session snapshot into the UI.
func (m Model) handleSnapshot(snap sdk.Snapshot) (tea.Model, tea.Cmd) {
	if m.session == nil {
		return m, nil
	}

	m.chat.ApplySnapshot(snap)
	if snap.ConversationID != nil {
		m.conversationID = snap.ConversationID
	}

	switch snap.Phase {
	case sdk.PhaseDone:
		m.chat.EndStreaming(snap.Cached)
		m.state = StateIdle
		m.lastFailure = nil
		m.saveLastConversation(snap)

		cmds := []tea.Cmd{m.input.Focus(), waitForSnapshot(m.session.Updates())}
		if m.chat.HasTools() {
			cmds = append(cmds, expireTools())
		}
		return m, tea.Batch(cmds...)

	case sdk.PhaseCancelled:
		// Keep whatever streamed before the abort.
		m.chat.EndStreaming(false)
		m.chat.ClearTools()
		m.state = StateIdle
		m.notice = m.text.Cancelled
		m.saveLastConversation(snap)
		return m, tea.Batch(m.input.Focus(), waitForSnapshot(m.session.Updates()))

	case sdk.PhaseFailed:
		m.chat.EndStreaming(false)
		m.chat.ClearTools()
		m.state = StateError
		m.lastFailure = snap.Err
		return m, tea.Batch(m.input.Focus(), waitForSnapshot(m.session.Updates()))

	default:
		m.state = StateStreaming
		return m, waitForSnapshot(m.session.Updates())
	}
}

// sendMessage sends the current input as a new exchange
func (m Model) sendMessage() (tea.Model, tea.Cmd) {
	content := strings.TrimSpace(m.input.Value())

	m.chat.AddUserMessage(content)
	m.input.Clear()

	req := sdk.ChatRequest{
		Prompt:         content,
		ModelID:        m.modelID,
		ConversationID: m.conversationID,
		Locale:         m.locale,
	}
	return m.startSession(req)
}

// startSession opens a fresh session for req. Sessions are single-use; a
// retry builds a new one from the remembered request.
func (m Model) startSession(req sdk.ChatRequest) (tea.Model, tea.Cmd) {
	m.lastRequest = &req
	m.lastFailure = nil
	m.notice = ""
	m.input.Blur()

	m.session = sdk.NewSession(m.client, m.store, nil)
	if err := m.session.Start(context.Background(), req); err != nil {
		m.session = nil
		m.lastFailure = &sdk.Failure{Class: sdk.FailureGeneric, Message: err.Error()}
		m.state = StateError
		return m, m.input.Focus()
	}

	m.state = StateStreaming
	m.chat.StartStreaming()
	return m, waitForSnapshot(m.session.Updates())
}

// deleteConversation removes the current conversation from the store and
// resets the transcript.
func (m Model) deleteConversation() (tea.Model, tea.Cmd) {
	if m.store != nil {
		if err := m.store.DeleteConversation(*m.conversationID); err == nil {
			config.ClearLastConversation()
		}
	}
	m.chat.Clear()
	m.conversationID = nil
	m.lastRequest = nil
	m.lastFailure = nil
	m.notice = m.text.Deleted
	m.state = StateIdle
	return m, nil
}

// cancelSession aborts the in-flight exchange.
func (m Model) cancelSession() (tea.Model, tea.Cmd) {
	if m.session != nil {
		m.session.Cancel()
		// The terminal snapshot arrives through the pending waitForSnapshot.
		return m, nil
	}
	m.state = StateIdle
	return m, m.input.Focus()
}
