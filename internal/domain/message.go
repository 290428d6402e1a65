package domain

import "time"

// Metadata keys recognized by the agent loop.
const (
	MetaCommand   = "command"
	MetaMediaType = "media_type"
)

// CommandClear wipes the conversation history for the chat.
const CommandClear = "clear"

// InboundMessage is one message received from a channel adapter.
// Immutable once constructed; produced exactly once per external message.
type InboundMessage struct {
	ID        string            // adapter-assigned unique id
	Channel   string            // channel adapter name, e.g. "telegram"
	ChatID    string            // conversation identifier
	SenderID  string            // platform user id
	Content   string            // text content
	Media     []string          // local file paths of pre-downloaded attachments
	Metadata  map[string]string // free-form, may carry a command directive
	Timestamp time.Time
}

// Command returns the command directive carried in metadata, if any.
func (m InboundMessage) Command() string {
	return m.Metadata[MetaCommand]
}

// OutboundMessage is one reply addressed back to a channel adapter.
type OutboundMessage struct {
	Channel     string
	ChatID      string
	RecipientID string
	Content     string
	Media       []string
	Metadata    map[string]string
}

// Message is one entry in a conversation history, OpenAI role convention:
// "system", "user", "assistant", "tool". Assistant entries may carry tool
// calls; tool entries carry the originating call id and tool name.
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
}

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)
