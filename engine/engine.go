package engine

import (
	"fmt"
	"time"

	"github.com/lovekaizen/agentsea/cache"
	"github.com/lovekaizen/agentsea/logging"
	"github.com/lovekaizen/agentsea/mcp"
	"github.com/lovekaizen/agentsea/memory"
	"github.com/lovekaizen/agentsea/model"
	"github.com/lovekaizen/agentsea/ratelimit"
	"github.com/lovekaizen/agentsea/tenant"
	"github.com/lovekaizen/agentsea/tool"
)

const (
	// DefaultMaxIterations bounds the model/tool loop.
	DefaultMaxIterations = 10
	// DefaultMaxConcurrentTools bounds parallel tool execution within one
	// iteration.
	DefaultMaxConcurrentTools = 4
)

// Options configure an Engine.
type Options struct {
	SystemPrompt       string
	MaxIterations      int
	MaxConcurrentTools int

	// ProviderTimeout bounds each model request. Zero means no per-request
	// deadline beyond the caller's context.
	ProviderTimeout time.Duration
	// ToolTimeout bounds each tool call. A tool hitting it fails with a
	// timeout error fed back to the model; the loop continues.
	ToolTimeout time.Duration

	Tools  *tool.Registry
	MCP    *mcp.Registry
	Memory memory.Store
	Logger logging.Logger

	Cache    *cache.Cache
	CacheTTL time.Duration

	Tenants        *tenant.Manager
	TenantResource string

	RateLimiter   *ratelimit.TokenBucket
	TokensPerCall float64
}

// WithSystemPrompt sets the system prompt prepended to every model request.
func WithSystemPrompt(prompt string) func(o *Options) {
	return func(o *Options) { o.SystemPrompt = prompt }
}

// WithMaxIterations overrides the loop bound.
func WithMaxIterations(n int) func(o *Options) {
	return func(o *Options) { o.MaxIterations = n }
}

// WithMaxConcurrentTools overrides the per-iteration tool parallelism bound.
func WithMaxConcurrentTools(n int) func(o *Options) {
	return func(o *Options) { o.MaxConcurrentTools = n }
}

// WithProviderTimeout bounds each model request.
func WithProviderTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.ProviderTimeout = d }
}

// WithToolTimeout bounds each tool call.
func WithToolTimeout(d time.Duration) func(o *Options) {
	return func(o *Options) { o.ToolTimeout = d }
}

// WithTools attaches a local tool registry.
func WithTools(reg *tool.Registry) func(o *Options) {
	return func(o *Options) { o.Tools = reg }
}

// WithMCP attaches an MCP server registry; its namespaced tools are offered
// to the model alongside local ones.
func WithMCP(reg *mcp.Registry) func(o *Options) {
	return func(o *Options) { o.MCP = reg }
}

// WithMemory attaches a conversation store. When set, history is loaded by
// conversation id before each run and the run's messages are appended after
// it completes.
func WithMemory(store memory.Store) func(o *Options) {
	return func(o *Options) { o.Memory = store }
}

// WithLogger sets the structured logger.
func WithLogger(l logging.Logger) func(o *Options) {
	return func(o *Options) { o.Logger = l }
}

// WithCache caches final results of stateless single-turn runs under the
// given TTL.
func WithCache(c *cache.Cache, ttl time.Duration) func(o *Options) {
	return func(o *Options) { o.Cache = c; o.CacheTTL = ttl }
}

// WithTenantManager enforces the named resource quota per run. The tenant is
// identified by the "tenant_id" entry in the request context metadata; runs
// without one bypass the quota.
func WithTenantManager(tm *tenant.Manager, resource string) func(o *Options) {
	return func(o *Options) { o.Tenants = tm; o.TenantResource = resource }
}

// WithRateLimiter debits tokensPerCall from the bucket before every model
// request, blocking until they are available.
func WithRateLimiter(b *ratelimit.TokenBucket, tokensPerCall float64) func(o *Options) {
	return func(o *Options) { o.RateLimiter = b; o.TokensPerCall = tokensPerCall }
}

// Engine executes agent runs against a single model provider.
type Engine struct {
	provider model.Provider
	opts     Options
	logger   logging.Logger
}

// New constructs an Engine. The provider is required.
func New(provider model.Provider, optFns ...func(o *Options)) (*Engine, error) {
	if provider == nil {
		return nil, fmt.Errorf("engine: provider is required")
	}

	opts := Options{
		MaxIterations:      DefaultMaxIterations,
		MaxConcurrentTools: DefaultMaxConcurrentTools,
		TokensPerCall:      1,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.MaxIterations < 1 {
		opts.MaxIterations = 1
	}
	if opts.MaxConcurrentTools < 1 {
		opts.MaxConcurrentTools = 1
	}

	return &Engine{
		provider: provider,
		opts:     opts,
		logger:   logging.OrNoOp(opts.Logger),
	}, nil
}

// toolDefinitions merges local and MCP tool definitions offered to the model.
func (e *Engine) toolDefinitions() []model.ToolDefinition {
	var defs []model.ToolDefinition
	if e.opts.Tools != nil {
		for _, t := range e.opts.Tools.List() {
			defs = append(defs, model.NewToolDefinition(t.Name(), t.Description(), t.Parameters()))
		}
	}
	if e.opts.MCP != nil {
		for _, info := range e.opts.MCP.Tools() {
			defs = append(defs, model.NewToolDefinition(info.Name, info.Description, info.InputSchema))
		}
	}
	return defs
}
