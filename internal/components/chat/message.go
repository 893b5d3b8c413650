package chat

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/glamour"

	"stocktool/internal/styles"
	sdk "stocktool/sdk/chat"
)

// Role represents who sent the message
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message represents a chat message
type Message struct {
	Role        Role
	Content     string
	IsStreaming bool
	Cached      bool
}

// Render renders a message with the given width
func (m Message) Render(width int) string {
	var sb strings.Builder

	switch m.Role {
	case RoleUser:
		sb.WriteString(styles.UserLabel.Render("You"))
	case RoleAssistant:
		sb.WriteString(styles.AssistantLabel.Render("Assistant"))
		if m.Cached {
			sb.WriteString(" ")
			sb.WriteString(styles.CachedBadge.Render("(cached)"))
		}
	}
	sb.WriteString("\n")

	content := m.Content
	if m.Role == RoleAssistant && content != "" && !m.IsStreaming {
		// Markdown rendering only once the message settles; re-rendering on
		// every delta flickers badly.
		if rendered, err := renderMarkdown(content, width-4); err == nil {
			content = strings.TrimSpace(rendered)
		}
	}

	if m.IsStreaming {
		content += styles.StreamingCursor.Render("▊")
	}

	switch m.Role {
	case RoleUser:
		sb.WriteString(styles.UserMessage.Width(width - 2).Render(content))
	case RoleAssistant:
		sb.WriteString(styles.AssistantMessage.Width(width - 2).Render(content))
	}

	return sb.String()
}

// RenderTool renders one live tool indicator line.
func RenderTool(tool sdk.LiveToolState) string {
	var status string
	switch tool.Status {
	case sdk.ToolCompleted:
		status = styles.ToolStatusOK.Render("✓")
	case sdk.ToolError:
		status = styles.ToolStatusErr.Render("✗")
	default:
		status = styles.ToolStatusOK.Render("...")
	}

	line := fmt.Sprintf("%s %s %s", status, styles.ToolName.Render(displayToolName(tool.Name)), toolVerb(tool))
	return styles.ToolEvent.Render(line)
}

func toolVerb(tool sdk.LiveToolState) string {
	switch tool.Status {
	case sdk.ToolCompleted:
		return "done"
	case sdk.ToolError:
		if tool.ErrorDetail != "" {
			return truncate(tool.ErrorDetail, 50)
		}
		return "failed"
	default:
		return "running"
	}
}

// displayToolName turns snake_case tool identifiers into readable labels.
func displayToolName(name string) string {
	return strings.ReplaceAll(name, "_", " ")
}

// renderMarkdown renders markdown content for the terminal
func renderMarkdown(content string, width int) (string, error) {
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return content, err
	}
	return r.Render(content)
}

// truncate truncates a string to the given rune length
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
