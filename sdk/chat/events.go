package chat

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// Event is one decoded frame from the response stream. The concrete types
// below form a closed set; servers may add new frame types at any time, and
// those arrive as UnknownEvent.
type Event interface {
	eventKind() string
}

// StartEvent opens a stream. Cached responses carry Cached=true and may have
// no tool activity at all.
type StartEvent struct {
	Model          string  `json:"model"`
	ConversationID *string `json:"conversation_id"`
	Cached         bool    `json:"cached"`
}

// ContentEvent carries one answer-text delta.
type ContentEvent struct {
	Delta string `json:"delta"`
}

// ToolBatchEvent announces a set of tool invocations the model has begun.
type ToolBatchEvent struct {
	ToolNames []string `json:"tool_names"`
}

// ToolUpdateEvent updates the status of a single named tool invocation.
type ToolUpdateEvent struct {
	ToolName    string     `json:"tool_name"`
	Status      ToolStatus `json:"status"`
	ErrorDetail string     `json:"error_detail,omitempty"`
}

// DoneEvent terminates a stream successfully.
type DoneEvent struct {
	ConversationID *string          `json:"conversation_id"`
	ToolCalls      []ToolCallResult `json:"tool_calls,omitempty"`
}

// ErrorEvent terminates a stream with a server-reported error.
type ErrorEvent struct {
	Message string `json:"message"`
}

// UnknownEvent holds a frame whose type this client does not recognize.
// Unknown types are ignored, not fatal.
type UnknownEvent struct {
	Type string
	Raw  []byte
}

func (StartEvent) eventKind() string      { return "start" }
func (ContentEvent) eventKind() string    { return "content" }
func (ToolBatchEvent) eventKind() string  { return "tool_calls" }
func (ToolUpdateEvent) eventKind() string { return "tool_call" }
func (DoneEvent) eventKind() string       { return "done" }
func (ErrorEvent) eventKind() string      { return "error" }
func (e UnknownEvent) eventKind() string  { return e.Type }

// parseEvent decodes one complete frame payload into an Event. The type
// field selects the variant; the payload is then strictly unmarshalled.
func parseEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid JSON frame: %q", truncateForLog(data))
	}

	kind := gjson.GetBytes(data, "type").String()

	switch kind {
	case "start":
		var ev StartEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode start frame: %w", err)
		}
		return ev, nil

	case "content":
		var ev ContentEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode content frame: %w", err)
		}
		return ev, nil

	case "tool_calls":
		var ev ToolBatchEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode tool_calls frame: %w", err)
		}
		return ev, nil

	case "tool_call":
		var ev ToolUpdateEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode tool_call frame: %w", err)
		}
		if ev.Status == "" {
			ev.Status = ToolRunning
		}
		return ev, nil

	case "done":
		var ev DoneEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode done frame: %w", err)
		}
		return ev, nil

	case "error":
		var ev ErrorEvent
		if err := json.Unmarshal(data, &ev); err != nil {
			return nil, fmt.Errorf("decode error frame: %w", err)
		}
		return ev, nil

	case "":
		return nil, fmt.Errorf("frame missing type field: %q", truncateForLog(data))

	default:
		raw := make([]byte, len(data))
		copy(raw, data)
		return UnknownEvent{Type: kind, Raw: raw}, nil
	}
}

func truncateForLog(b []byte) string {
	const max = 120
	if len(b) <= max {
		return string(b)
	}
	return string(b[:max]) + "..."
}
