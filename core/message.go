package core

import "github.com/google/uuid"

// Role identifies the author of a conversation message.
type Role string

const (
	// RoleUser marks input authored by the end user.
	RoleUser Role = "user"
	// RoleAssistant marks model-generated output, including tool call requests.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool result correlated to a prior tool call.
	RoleTool Role = "tool"
	// RoleSystem marks instruction content prepended to the conversation.
	RoleSystem Role = "system"
)

// ToolCall is a structured request, emitted by a model, to invoke a named
// tool with specific arguments. Arguments carries the serialized JSON payload
// exactly as produced by the provider.
type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments,omitempty"`
}

// Message is one entry in the append-only conversation log.
//
// Assistant messages that request tool invocations carry the full ToolCalls
// slice so provider adapters can reconstruct vendor wire formats. Tool
// messages carry the originating call id in ToolCallID; IsError marks a tool
// result that records an invocation failure rather than a payload.
// Messages are never mutated after being appended.
type Message struct {
	Role       Role       `json:"role"`
	Content    string     `json:"content,omitempty"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	ToolName   string     `json:"tool_name,omitempty"`
	IsError    bool       `json:"is_error,omitempty"`
}

// NewUserMessage builds a user-authored text message.
func NewUserMessage(text string) Message {
	return Message{Role: RoleUser, Content: text}
}

// NewAssistantMessage builds an assistant text message with optional tool calls.
func NewAssistantMessage(text string, calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, Content: text, ToolCalls: calls}
}

// NewToolResultMessage records the outcome of a tool call. If err is non-nil
// the message content carries the error text and IsError is set, making the
// failure visible to the model on the next iteration.
func NewToolResultMessage(call ToolCall, content string, err error) Message {
	msg := Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: call.ID,
		ToolName:   call.Name,
	}
	if err != nil {
		msg.Content = err.Error()
		msg.IsError = true
	}
	return msg
}

// NewID generates a unique identifier for messages, tool calls and
// conversations. Returns a string representation of a new UUID.
func NewID() string { return uuid.NewString() }
