// Package domain holds the data types shared across foodvoice subsystems.
package domain

import "time"

// Role constants for conversation messages.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
	RoleTool      = "tool"
)

// Message is a single persisted turn in a conversation transcript.
type Message struct {
	Role       string     `json:"role"` // "user", "assistant", "system", "tool"
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"toolCalls,omitempty"`
	ToolCallID string     `json:"toolCallId,omitempty"`
	Timestamp  time.Time  `json:"timestamp"`
}

// ToolCall represents an LLM tool invocation within a message.
type ToolCall struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Input string `json:"input"` // JSON string
}

// Conversation is one start_conversation..stop_conversation span of a session.
type Conversation struct {
	ID        string     `json:"id"`
	SessionID string     `json:"sessionId"`
	StartedAt time.Time  `json:"startedAt"`
	EndedAt   *time.Time `json:"endedAt,omitempty"`
	Messages  []Message  `json:"messages,omitempty"`
}

// Ended reports whether the conversation has been closed.
func (c Conversation) Ended() bool {
	return c.EndedAt != nil
}
