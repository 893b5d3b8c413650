package messages

import (
	sdk "stocktool/sdk/chat"
)

// Session updates delivered to the bubbletea loop
type SnapshotMsg struct {
	Snapshot sdk.Snapshot
}

// StreamClosedMsg signals that the session's update channel has closed.
type StreamClosedMsg struct{}

// ToolsExpiredMsg clears lingering tool indicators after a grace period.
type ToolsExpiredMsg struct{}

// HistoryLoadedMsg carries a restored conversation.
type HistoryLoadedMsg struct {
	ConversationID string
	Messages       []sdk.FinalMessage
}

// HistoryErrorMsg reports a failed history load.
type HistoryErrorMsg struct {
	Err error
}
