package model

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/lovekaizen/agentsea/core"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the
// model. Parameters is a JSON Schema object (draft agnostic, minimal subset
// expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// NewToolDefinition builds a function-typed tool definition.
func NewToolDefinition(name, description string, parameters map[string]any) ToolDefinition {
	return ToolDefinition{
		Type: "function",
		Function: FunctionDefinition{
			Name:        name,
			Description: description,
			Parameters:  parameters,
		},
	}
}

// Request captures the normalized provider input produced by the engine.
type Request struct {
	System   string           `json:"system,omitempty"`
	Messages []core.Message   `json:"messages"`
	Tools    []ToolDefinition `json:"tools,omitempty"`
}

// TokenUsage captures token usage statistics for a response.
type TokenUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Response is a complete provider reply: either final text content, or one or
// more requested tool invocations, or both.
type Response struct {
	Content      string          `json:"content,omitempty"`
	ToolCalls    []core.ToolCall `json:"tool_calls,omitempty"`
	FinishReason string          `json:"finish_reason,omitempty"` // "stop", "length", "tool_calls", ...
	Usage        TokenUsage      `json:"usage"`
}

// Chunk is one element of a streaming reply. Delta carries incremental text;
// ToolCalls announces fully assembled tool call requests; the final chunk has
// Done set and carries the complete Response.
type Chunk struct {
	Delta     string          `json:"delta,omitempty"`
	ToolCalls []core.ToolCall `json:"tool_calls,omitempty"`
	Response  *Response       `json:"response,omitempty"`
	Done      bool            `json:"done,omitempty"`
}

// Info contains metadata about a provider implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", ...
	SupportsTools bool   `json:"supports_tools"`
}

// Provider is the uniform adapter contract every concrete backend must
// satisfy. The set of variants is closed at construction time; the engine
// never inspects the concrete type.
//
// Complete returns either final content or requested tool calls.
// CompleteStream yields the same reply incrementally; the channel is closed
// after the Done chunk, and transport failures arrive on the error channel.
// Wire-level request/response formats are adapter-internal.
type Provider interface {
	Complete(ctx context.Context, req Request) (*Response, error)
	CompleteStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error)
	Info() Info
}

// MockProvider is a lightweight in-memory Provider useful for tests and
// examples. Scripted responses are consumed in order; when the script is
// exhausted it echoes the last user message.
type MockProvider struct {
	info  Info
	mu    sync.Mutex
	steps []Response
}

// NewMockProvider constructs a MockProvider with tool support enabled.
func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// Enqueue appends a scripted response.
func (m *MockProvider) Enqueue(resp Response) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.steps = append(m.steps, resp)
}

// EnqueueText scripts a plain final answer.
func (m *MockProvider) EnqueueText(text string) {
	m.Enqueue(Response{Content: text, FinishReason: "stop"})
}

// EnqueueToolCalls scripts a reply requesting the given tool invocations.
func (m *MockProvider) EnqueueToolCalls(calls ...core.ToolCall) {
	m.Enqueue(Response{ToolCalls: calls, FinishReason: "tool_calls"})
}

func (m *MockProvider) next(req Request) Response {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.steps) > 0 {
		resp := m.steps[0]
		m.steps = m.steps[1:]
		return resp
	}

	var lastUser string
	for _, msg := range req.Messages {
		if msg.Role == core.RoleUser {
			lastUser = msg.Content
		}
	}
	return Response{Content: "Mock response to: " + lastUser, FinishReason: "stop"}
}

// Complete implements Provider.
func (m *MockProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, core.NewTransportError("mock.complete", err)
	}
	resp := m.next(req)
	return &resp, nil
}

// CompleteStream implements Provider; text is emitted in small chunks to
// exercise delta accumulation in consumers.
func (m *MockProvider) CompleteStream(ctx context.Context, req Request) (<-chan Chunk, <-chan error) {
	out := make(chan Chunk, 16)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp := m.next(req)

		for _, piece := range splitChunks(resp.Content, 8) {
			select {
			case <-ctx.Done():
				errCh <- core.NewTransportError("mock.stream", ctx.Err())
				return
			case out <- Chunk{Delta: piece}:
			}
			time.Sleep(time.Millisecond)
		}
		if len(resp.ToolCalls) > 0 {
			select {
			case <-ctx.Done():
				errCh <- core.NewTransportError("mock.stream", ctx.Err())
				return
			case out <- Chunk{ToolCalls: resp.ToolCalls}:
			}
		}
		out <- Chunk{Done: true, Response: &resp}
	}()

	return out, errCh
}

// Info implements Provider.
func (m *MockProvider) Info() Info { return m.info }

// splitChunks cuts s into rune-safe pieces of at most size characters.
func splitChunks(s string, size int) []string {
	if s == "" {
		return nil
	}
	runes := []rune(s)
	var pieces []string
	var b strings.Builder
	for i, r := range runes {
		b.WriteRune(r)
		if (i+1)%size == 0 || i == len(runes)-1 {
			pieces = append(pieces, b.String())
			b.Reset()
		}
	}
	return pieces
}
