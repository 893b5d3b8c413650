package chat

import (
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	sdk "stocktool/sdk/chat"
)

// Model represents the chat transcript component. Completed messages are
// settled; while a session streams, the live text and tool indicators come
// from the latest snapshot rather than being mutated in place.
type Model struct {
	viewport  viewport.Model
	messages  []Message
	streaming bool
	liveText  string
	liveTools []sdk.LiveToolState
	width     int
	height    int
	ready     bool
}

// New creates a new chat model
func New(width, height int) Model {
	vp := viewport.New(width, height)
	vp.SetContent("")
	vp.YPosition = 0

	return Model{
		viewport: vp,
		messages: []Message{},
		width:    width,
		height:   height,
		ready:    true,
	}
}

// Init initializes the chat component
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the chat component
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	var cmd tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "pgup":
			m.viewport.ViewUp()
		case "pgdown":
			m.viewport.ViewDown()
		}
	}

	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the chat component
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}
	return m.viewport.View()
}

// LoadHistory replaces the transcript with persisted messages.
func (m *Model) LoadHistory(msgs []sdk.FinalMessage) {
	m.messages = make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		m.messages = append(m.messages, Message{
			Role:    Role(msg.Role),
			Content: msg.Content,
			Cached:  msg.Cached,
		})
	}
	m.streaming = false
	m.liveText = ""
	m.liveTools = nil
	m.updateContent()
}

// AddUserMessage adds a user message to the chat
func (m *Model) AddUserMessage(content string) {
	m.messages = append(m.messages, Message{
		Role:    RoleUser,
		Content: content,
	})
	m.updateContent()
}

// StartStreaming opens the live assistant region.
func (m *Model) StartStreaming() {
	m.streaming = true
	m.liveText = ""
	m.liveTools = nil
	m.updateContent()
}

// ApplySnapshot refreshes the live region from the latest session state.
func (m *Model) ApplySnapshot(snap sdk.Snapshot) {
	m.liveText = snap.Text
	m.liveTools = snap.Tools
	m.updateContent()
}

// EndStreaming settles the live region into a completed message. Lingering
// tool indicators stay visible until ClearTools.
func (m *Model) EndStreaming(cached bool) {
	if m.streaming && (m.liveText != "" || len(m.liveTools) > 0) {
		m.messages = append(m.messages, Message{
			Role:    RoleAssistant,
			Content: m.liveText,
			Cached:  cached,
		})
	}
	m.streaming = false
	m.liveText = ""
	m.updateContent()
}

// ClearTools drops lingering tool indicators after the grace period.
func (m *Model) ClearTools() {
	m.liveTools = nil
	m.updateContent()
}

// HasTools reports whether tool indicators are currently shown.
func (m Model) HasTools() bool {
	return len(m.liveTools) > 0
}

// SetSize updates the chat dimensions
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height
	m.updateContent()
}

// updateContent rebuilds the viewport content from messages
func (m *Model) updateContent() {
	var content strings.Builder

	for i, msg := range m.messages {
		content.WriteString(msg.Render(m.width))
		if i < len(m.messages)-1 {
			content.WriteString("\n")
		}
	}

	if len(m.liveTools) > 0 {
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		for _, tool := range m.liveTools {
			content.WriteString(RenderTool(tool))
			content.WriteString("\n")
		}
	}

	if m.streaming {
		if content.Len() > 0 {
			content.WriteString("\n")
		}
		live := Message{Role: RoleAssistant, Content: m.liveText, IsStreaming: true}
		content.WriteString(live.Render(m.width))
	}

	m.viewport.SetContent(content.String())
	m.viewport.GotoBottom()
}

// Clear clears all messages
func (m *Model) Clear() {
	m.messages = []Message{}
	m.streaming = false
	m.liveText = ""
	m.liveTools = nil
	m.viewport.SetContent("")
}

// IsEmpty returns true if there are no messages
func (m Model) IsEmpty() bool {
	return len(m.messages) == 0 && !m.streaming
}
