package core

// AgentContext carries the per-conversation state threaded through engine
// executions. The engine mutates it only by appending to History; SessionData
// is an opaque bag owned by the caller and carried across turns.
type AgentContext struct {
	ConversationID string            `json:"conversation_id"`
	UserID         string            `json:"user_id,omitempty"`
	SessionData    map[string]any    `json:"session_data,omitempty"`
	History        []Message         `json:"history,omitempty"`
	Metadata       map[string]string `json:"metadata,omitempty"`
}

// NewAgentContext creates a context for a fresh conversation. An empty id is
// replaced with a generated UUID.
func NewAgentContext(conversationID string) *AgentContext {
	if conversationID == "" {
		conversationID = NewID()
	}
	return &AgentContext{
		ConversationID: conversationID,
		SessionData:    map[string]any{},
		Metadata:       map[string]string{},
	}
}

// StopReason explains why an execution terminated.
type StopReason string

const (
	// StopReasonComplete means the model produced a final answer.
	StopReasonComplete StopReason = "complete"
	// StopReasonMaxIterations means the iteration budget was exhausted. The
	// result still carries the best partial answer gathered so far; the
	// caller decides whether that is acceptable.
	StopReasonMaxIterations StopReason = "max_iterations"
)

// ResultMetadata aggregates execution accounting for one engine call.
type ResultMetadata struct {
	TokensUsed int   `json:"tokens_used"`
	LatencyMs  int64 `json:"latency_ms"`
	Iterations int   `json:"iterations"`
}

// Result is the terminal outcome of Engine.Execute. ToolCalls lists every
// call issued over all iterations, in request order.
type Result struct {
	Content    string         `json:"content"`
	ToolCalls  []ToolCall     `json:"tool_calls,omitempty"`
	StopReason StopReason     `json:"stop_reason"`
	Metadata   ResultMetadata `json:"metadata"`
}
