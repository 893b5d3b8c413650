package app

import (
	tea "github.com/charmbracelet/bubbletea"

	"stocktool/internal/components/chat"
	"stocktool/internal/components/input"
	"stocktool/internal/config"
	sdk "stocktool/sdk/chat"
)

// State represents the application state
type State int

const (
	StateIdle State = iota
	StateStreaming
	StateError
)

// Options configures the application model.
type Options struct {
	Client  *sdk.Client
	Store   *sdk.Store
	ModelID string
	Locale  sdk.Locale
	// Resume names a conversation to reload on startup, empty for a fresh
	// transcript.
	Resume string
}

// Model is the main application model
type Model struct {
	chat    chat.Model
	input   input.Model
	client  *sdk.Client
	store   *sdk.Store
	session *sdk.Session

	modelID        string
	locale         sdk.Locale
	text           uiStrings
	state          State
	conversationID *string
	lastRequest    *sdk.ChatRequest
	lastFailure    *sdk.Failure
	// notice is a transient status bar message, cleared on the next action.
	notice string
	resume string

	width  int
	height int
	ready  bool
}

// New creates a new application model
func New(opts Options) Model {
	return Model{
		chat:    chat.New(80, 20),
		input:   input.New(80),
		client:  opts.Client,
		store:   opts.Store,
		modelID: opts.ModelID,
		locale:  opts.Locale,
		text:    stringsFor(opts.Locale),
		state:   StateIdle,
		resume:  opts.Resume,
	}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		m.input.Init(),
		m.chat.Init(),
	}
	if m.resume != "" && m.store != nil {
		cmds = append(cmds, loadHistory(m.store, m.resume))
	}
	return tea.Batch(cmds...)
}

// saveLastConversation records the active conversation for next startup.
func (m Model) saveLastConversation(snap sdk.Snapshot) {
	if snap.ConversationID == nil || m.store == nil {
		return
	}
	title := ""
	if summaries, err := m.store.Summaries(); err == nil {
		for _, s := range summaries {
			if s.ID == *snap.ConversationID {
				title = s.Title
				break
			}
		}
	}
	count := 0
	if msgs, err := m.store.Messages(*snap.ConversationID); err == nil {
		count = len(msgs)
	}
	config.SaveLastConversation(*snap.ConversationID, title, count, snap.Text)
}
