package chat

import (
	"encoding/json"
	"time"
)

// Locale selects the language the assistant answers in.
type Locale string

const (
	LocaleEN Locale = "en"
	LocaleJA Locale = "ja"
)

// ChatRequest is the request body for starting a streamed response.
// It is immutable once submitted.
type ChatRequest struct {
	Prompt         string  `json:"prompt"`
	SystemPrompt   string  `json:"system_prompt,omitempty"`
	ModelID        string  `json:"model_id"`
	ConversationID *string `json:"conversation_id,omitempty"`
	Locale         Locale  `json:"locale,omitempty"`
}

// ToolCallResult is the final structured result of one tool invocation,
// delivered only at stream completion.
type ToolCallResult struct {
	ID     string          `json:"id"`
	Name   string          `json:"name"`
	Result json.RawMessage `json:"result,omitempty"`
}

// ToolStatus is the live status of a tool invocation.
type ToolStatus string

const (
	ToolRunning   ToolStatus = "running"
	ToolCompleted ToolStatus = "completed"
	ToolError     ToolStatus = "error"
)

// LiveToolState tracks one in-flight tool invocation, keyed by tool name.
// Later updates for the same name overwrite the status.
type LiveToolState struct {
	Name        string     `json:"name"`
	Status      ToolStatus `json:"status"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// Phase is the lifecycle phase of a session.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseConnecting Phase = "connecting"
	PhaseStreaming  Phase = "streaming"
	PhaseFinalizing Phase = "finalizing"
	PhaseDone       Phase = "done"
	PhaseCancelled  Phase = "cancelled"
	PhaseFailed     Phase = "failed"
)

// Terminal reports whether no further transitions are possible from p.
func (p Phase) Terminal() bool {
	return p == PhaseDone || p == PhaseCancelled || p == PhaseFailed
}

// Snapshot is a read-only copy of session state handed to observers.
// Tools are sorted by first appearance.
type Snapshot struct {
	Phase          Phase
	Text           string
	Tools          []LiveToolState
	ConversationID *string
	Cached         bool
	// Degraded marks a stream whose response carried an unexpected content
	// type. Decoding proceeds anyway; the flag exists for diagnostics only.
	Degraded bool
	// Incomplete marks a done session whose stream ended without an
	// explicit done frame. The outcome is still success; the flag exists
	// for diagnostics only.
	Incomplete bool
	Err        *Failure
}

// FinalMessage is an immutable finalized assistant message.
type FinalMessage struct {
	ID             string           `json:"id"`
	ConversationID string           `json:"conversation_id"`
	Role           string           `json:"role"`
	Content        string           `json:"content"`
	ToolCalls      []ToolCallResult `json:"tool_calls,omitempty"`
	Cached         bool             `json:"cached,omitempty"`
	CreatedAt      time.Time        `json:"created_at"`
}

// ConversationSummary is the stored per-conversation listing entry.
type ConversationSummary struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Preview      string    `json:"preview"`
	MessageCount int       `json:"message_count"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// HealthResponse is the response from the health endpoint.
type HealthResponse struct {
	Status string `json:"status"`
	Model  string `json:"model,omitempty"`
}
