package app

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"stocktool/internal/messages"
	sdk "stocktool/sdk/chat"
)

// toolLinger is how long completed tool indicators stay visible after the
// answer settles.
const toolLinger = 2 * time.Second

// waitForSnapshot blocks until the session publishes its next snapshot.
func waitForSnapshot(updates <-chan sdk.Snapshot) tea.Cmd {
	return func() tea.Msg {
		snap, ok := <-updates
		if !ok {
			return messages.StreamClosedMsg{}
		}
		return messages.SnapshotMsg{Snapshot: snap}
	}
}

// expireTools schedules the tool indicator cleanup.
func expireTools() tea.Cmd {
	return tea.Tick(toolLinger, func(time.Time) tea.Msg {
		return messages.ToolsExpiredMsg{}
	})
}

// loadHistory reads a persisted conversation off the UI loop.
func loadHistory(store *sdk.Store, conversationID string) tea.Cmd {
	return func() tea.Msg {
		msgs, err := store.Messages(conversationID)
		if err != nil {
			return messages.HistoryErrorMsg{Err: err}
		}
		return messages.HistoryLoadedMsg{
			ConversationID: conversationID,
			Messages:       msgs,
		}
	}
}
