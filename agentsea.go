// Package agentsea provides a high-level façade over the agent engine and
// its governance collaborators (tool registries, MCP servers, memory, cache,
// rate limiting and tenants). Most applications interact with this package
// by:
//  1. Creating an AgentSea via New() with a model provider
//  2. Registering local tools and/or MCP servers
//  3. Running conversations with Run (synchronous) or RunStream (incremental)
//
// The façade delegates the iterative model/tool loop to engine.Engine while
// keeping setup ergonomics concise. All defaults are safe for local
// development and testing; production deployments typically supply durable
// stores and a structured logger.
package agentsea

import (
	"context"
	"fmt"

	"github.com/lovekaizen/agentsea/core"
	"github.com/lovekaizen/agentsea/engine"
	"github.com/lovekaizen/agentsea/logging"
	"github.com/lovekaizen/agentsea/mcp"
	"github.com/lovekaizen/agentsea/memory"
	"github.com/lovekaizen/agentsea/model"
	"github.com/lovekaizen/agentsea/tool"
)

// Options configure the AgentSea façade. Engine-level tuning (iteration cap,
// timeouts, cache, quotas, rate limits) is passed through EngineOptions.
type Options struct {
	SystemPrompt string

	// Memory defaults to an in-memory store when nil.
	Memory memory.Store
	// Logger defaults to the no-op logger when nil.
	Logger logging.Logger

	// EngineOptions are applied to the underlying engine after the façade's
	// own wiring, so they can override any default.
	EngineOptions []func(o *engine.Options)
}

// WithSystemPrompt sets the system prompt for every run.
func WithSystemPrompt(prompt string) func(o *Options) {
	return func(o *Options) { o.SystemPrompt = prompt }
}

// WithMemory overrides the conversation store.
func WithMemory(store memory.Store) func(o *Options) {
	return func(o *Options) { o.Memory = store }
}

// WithLogger sets the structured logger shared by the façade's components.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithEngineOptions forwards extra options to the underlying engine.
func WithEngineOptions(optFns ...func(o *engine.Options)) func(o *Options) {
	return func(o *Options) { o.EngineOptions = append(o.EngineOptions, optFns...) }
}

// AgentSea aggregates the engine with its tool and MCP registries.
type AgentSea struct {
	engine *engine.Engine
	tools  *tool.Registry
	mcp    *mcp.Registry
	memory memory.Store
	logger logging.Logger
}

// New creates an AgentSea instance backed by the given provider.
func New(provider model.Provider, optFns ...func(o *Options)) (*AgentSea, error) {
	opts := Options{
		Memory: memory.NewInMemoryStore(),
		Logger: logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	tools := tool.NewRegistry()
	servers := mcp.NewRegistry(func(o *mcp.RegistryOptions) {
		o.Logger = opts.Logger
	})

	engineOpts := []func(o *engine.Options){
		engine.WithSystemPrompt(opts.SystemPrompt),
		engine.WithTools(tools),
		engine.WithMCP(servers),
		engine.WithMemory(opts.Memory),
		engine.WithLogger(opts.Logger),
	}
	engineOpts = append(engineOpts, opts.EngineOptions...)

	eng, err := engine.New(provider, engineOpts...)
	if err != nil {
		return nil, err
	}

	return &AgentSea{
		engine: eng,
		tools:  tools,
		mcp:    servers,
		memory: opts.Memory,
		logger: logging.OrNoOp(opts.Logger),
	}, nil
}

// RegisterTool adds a local tool.
func (a *AgentSea) RegisterTool(t tool.Tool) error { return a.tools.Register(t) }

// RegisterTools adds several local tools, reporting all failures.
func (a *AgentSea) RegisterTools(ts ...tool.Tool) error { return a.tools.RegisterMany(ts...) }

// AddMCPServer connects an MCP server and exposes its tools under the
// "server:tool" namespace.
func (a *AgentSea) AddMCPServer(ctx context.Context, spec mcp.ServerSpec) error {
	return a.mcp.AddServer(ctx, spec)
}

// MCP exposes the server registry for advanced management (reloads, info,
// custom transports).
func (a *AgentSea) MCP() *mcp.Registry { return a.mcp }

// Tools exposes the local tool registry.
func (a *AgentSea) Tools() *tool.Registry { return a.tools }

// Run executes one conversation turn synchronously.
func (a *AgentSea) Run(ctx context.Context, input string, actx *core.AgentContext) (*core.Result, error) {
	return a.engine.Execute(ctx, input, actx)
}

// RunStream executes one conversation turn, emitting incremental events.
func (a *AgentSea) RunStream(ctx context.Context, input string, actx *core.AgentContext) (<-chan core.StreamEvent, error) {
	return a.engine.ExecuteStream(ctx, input, actx)
}

// RunSync drains a streaming run and returns the final result together with
// the accumulated assistant text, for callers that want delta visibility
// without managing channels.
func (a *AgentSea) RunSync(ctx context.Context, input string, actx *core.AgentContext) (*core.Result, error) {
	events, err := a.engine.ExecuteStream(ctx, input, actx)
	if err != nil {
		return nil, err
	}
	for ev := range events {
		switch ev.Type {
		case core.EventDone:
			return ev.Response, nil
		case core.EventError:
			return nil, ev.Err
		}
	}
	return nil, fmt.Errorf("stream closed without a terminal event")
}

// Close disconnects all MCP servers.
func (a *AgentSea) Close() {
	a.mcp.DisconnectAll()
}
