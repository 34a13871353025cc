package core

// StreamEventType discriminates the events emitted by Engine.ExecuteStream.
type StreamEventType string

const (
	// EventIteration precedes each loop pass.
	EventIteration StreamEventType = "iteration"
	// EventContentDelta carries an incremental chunk of assistant text.
	EventContentDelta StreamEventType = "content_delta"
	// EventToolCalls announces the tool invocations requested by the model.
	EventToolCalls StreamEventType = "tool_calls"
	// EventToolResult follows each completed tool invocation.
	EventToolResult StreamEventType = "tool_result"
	// EventDone terminates the stream with the final result.
	EventDone StreamEventType = "done"
	// EventError terminates the stream with a failure.
	EventError StreamEventType = "error"
)

// ToolResult pairs a completed tool call with its recorded outcome.
type ToolResult struct {
	Call    ToolCall `json:"call"`
	Content string   `json:"content"`
	IsError bool     `json:"is_error,omitempty"`
}

// StreamEvent is one element of the ordered event sequence produced by a
// streaming execution. Exactly one terminal event (done or error) closes the
// stream. Fields other than Type are populated according to the event kind.
type StreamEvent struct {
	Type      StreamEventType `json:"type"`
	Iteration int             `json:"iteration,omitempty"`
	Delta     string          `json:"delta,omitempty"`
	ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
	Result    *ToolResult     `json:"result,omitempty"`
	Response  *Result         `json:"response,omitempty"`
	Err       error           `json:"-"`
}

// IsTerminal reports whether this event closes the stream.
func (e StreamEvent) IsTerminal() bool {
	return e.Type == EventDone || e.Type == EventError
}
