package engine

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/lovekaizen/agentsea/core"
	"github.com/lovekaizen/agentsea/model"
)

// ErrQuotaExceeded is returned when the tenant quota denies a run before the
// first model request. Check with errors.Is.
var ErrQuotaExceeded = errors.New("tenant quota exceeded")

// Execute runs the full agent loop to completion and returns the final
// result. A run that exhausts the iteration budget is not an error: it
// returns the partial result with StopReason set to max iterations.
func (e *Engine) Execute(ctx context.Context, input string, actx *core.AgentContext) (*core.Result, error) {
	return e.run(ctx, input, actx, nil)
}

// run is the loop shared by Execute and ExecuteStream. emit is nil for the
// synchronous path; when set it receives the incremental events and the
// provider is driven through its streaming endpoint.
func (e *Engine) run(ctx context.Context, input string, actx *core.AgentContext, emit func(core.StreamEvent)) (*core.Result, error) {
	if actx == nil {
		actx = core.NewAgentContext("")
	}
	started := time.Now()

	tenantID := actx.Metadata["tenant_id"]
	if err := e.checkQuota(tenantID); err != nil {
		return nil, err
	}

	base, err := e.loadHistory(actx)
	if err != nil {
		return nil, err
	}

	// Responses are cached for stateless single-turn runs only; anything
	// with prior history depends on conversation state and is never cached.
	cacheKey := ""
	if emit == nil && e.opts.Cache != nil && len(base) == 0 {
		cacheKey = e.cacheKey(input)
		if v, ok := e.opts.Cache.Get(cacheKey); ok {
			if cached, ok := v.(core.Result); ok {
				e.logger.Debug("engine.cache.hit", "conversation_id", actx.ConversationID)
				return &cached, nil
			}
		}
	}

	userMsg := core.NewUserMessage(input)
	transcript := append(append([]core.Message(nil), base...), userMsg)
	newMsgs := []core.Message{userMsg}

	defs := e.toolDefinitions()
	var allCalls []core.ToolCall
	tokens := 0
	lastContent := ""
	var final *core.Result

	for iter := 1; iter <= e.opts.MaxIterations; iter++ {
		if emit != nil {
			emit(core.StreamEvent{Type: core.EventIteration, Iteration: iter})
		}
		e.logger.Debug("engine.iteration", "conversation_id", actx.ConversationID, "iteration", iter)

		if e.opts.RateLimiter != nil {
			if err := e.opts.RateLimiter.WaitForTokens(ctx, e.opts.TokensPerCall); err != nil {
				return nil, fmt.Errorf("rate limit wait: %w", err)
			}
		}

		req := model.Request{System: e.opts.SystemPrompt, Messages: transcript, Tools: defs}
		resp, err := e.completeOnce(ctx, req, iter, emit)
		if err != nil {
			return nil, err
		}
		tokens += resp.Usage.TotalTokens
		// Tool-call-only responses carry no text; keep the most recent
		// non-empty content as the partial answer for budget exhaustion.
		if resp.Content != "" {
			lastContent = resp.Content
		}

		if len(resp.ToolCalls) == 0 {
			assistant := core.NewAssistantMessage(resp.Content)
			newMsgs = append(newMsgs, assistant)
			final = &core.Result{
				Content:    resp.Content,
				ToolCalls:  allCalls,
				StopReason: core.StopReasonComplete,
				Metadata: core.ResultMetadata{
					TokensUsed: tokens,
					LatencyMs:  time.Since(started).Milliseconds(),
					Iterations: iter,
				},
			}
			break
		}

		if emit != nil {
			emit(core.StreamEvent{Type: core.EventToolCalls, Iteration: iter, ToolCalls: resp.ToolCalls})
		}
		allCalls = append(allCalls, resp.ToolCalls...)

		assistant := core.NewAssistantMessage(resp.Content, resp.ToolCalls...)
		transcript = append(transcript, assistant)
		newMsgs = append(newMsgs, assistant)

		results := e.runToolCalls(ctx, resp.ToolCalls)
		for i := range results {
			res := results[i]
			if emit != nil {
				emit(core.StreamEvent{Type: core.EventToolResult, Iteration: iter, Result: &res})
			}
			msg := core.Message{
				Role:       core.RoleTool,
				Content:    res.Content,
				ToolCallID: res.Call.ID,
				ToolName:   res.Call.Name,
				IsError:    res.IsError,
			}
			transcript = append(transcript, msg)
			newMsgs = append(newMsgs, msg)
		}
	}

	if final == nil {
		e.logger.Warn("engine.max_iterations", "conversation_id", actx.ConversationID, "iterations", e.opts.MaxIterations)
		final = &core.Result{
			Content:    lastContent,
			ToolCalls:  allCalls,
			StopReason: core.StopReasonMaxIterations,
			Metadata: core.ResultMetadata{
				TokensUsed: tokens,
				LatencyMs:  time.Since(started).Milliseconds(),
				Iterations: e.opts.MaxIterations,
			},
		}
	}

	if err := e.persist(actx, newMsgs); err != nil {
		return nil, err
	}
	actx.History = append(actx.History, newMsgs...)

	if cacheKey != "" && final.StopReason == core.StopReasonComplete {
		e.opts.Cache.Set(cacheKey, *final, e.opts.CacheTTL)
	}
	e.incrementQuota(tenantID)

	e.logger.Info("engine.completed",
		"conversation_id", actx.ConversationID,
		"stop_reason", string(final.StopReason),
		"iterations", final.Metadata.Iterations,
		"tokens", final.Metadata.TokensUsed,
		"latency_ms", final.Metadata.LatencyMs,
	)
	return final, nil
}

// completeOnce performs one provider round trip, applying the provider
// timeout. On the streaming path deltas are forwarded as they arrive and the
// assembled final response is returned.
func (e *Engine) completeOnce(ctx context.Context, req model.Request, iter int, emit func(core.StreamEvent)) (*model.Response, error) {
	if e.opts.ProviderTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ProviderTimeout)
		defer cancel()
	}

	if emit == nil {
		return e.provider.Complete(ctx, req)
	}

	chunks, errs := e.provider.CompleteStream(ctx, req)
	var resp *model.Response
	for chunk := range chunks {
		if chunk.Delta != "" {
			emit(core.StreamEvent{Type: core.EventContentDelta, Iteration: iter, Delta: chunk.Delta})
		}
		if chunk.Done {
			resp = chunk.Response
		}
	}
	if err := <-errs; err != nil {
		return nil, err
	}
	if resp == nil {
		return nil, core.NewTransportError("stream", errors.New("stream ended without a final response"))
	}
	return resp, nil
}

// loadHistory resolves the conversation's prior messages: the memory store
// when configured, the caller-supplied in-context history otherwise.
func (e *Engine) loadHistory(actx *core.AgentContext) ([]core.Message, error) {
	if e.opts.Memory == nil {
		return actx.History, nil
	}
	history, err := e.opts.Memory.History(actx.ConversationID)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	return history, nil
}

// persist appends the run's messages to memory as one batch, so a crash or
// failure mid-run never leaves a half-recorded iteration behind.
func (e *Engine) persist(actx *core.AgentContext, msgs []core.Message) error {
	if e.opts.Memory == nil || len(msgs) == 0 {
		return nil
	}
	if err := e.opts.Memory.Append(actx.ConversationID, msgs...); err != nil {
		return fmt.Errorf("persist history: %w", err)
	}
	return nil
}

func (e *Engine) checkQuota(tenantID string) error {
	if e.opts.Tenants == nil || tenantID == "" {
		return nil
	}
	decision, err := e.opts.Tenants.CheckQuota(tenantID, e.opts.TenantResource, 1)
	if err != nil {
		return fmt.Errorf("check quota: %w", err)
	}
	if !decision.Allowed {
		return fmt.Errorf("%w: tenant %s used %d of %d %s", ErrQuotaExceeded,
			tenantID, decision.Used, decision.Limit, e.opts.TenantResource)
	}
	return nil
}

func (e *Engine) incrementQuota(tenantID string) {
	if e.opts.Tenants == nil || tenantID == "" {
		return
	}
	if err := e.opts.Tenants.IncrementQuota(tenantID, e.opts.TenantResource, 1); err != nil {
		e.logger.Warn("engine.quota.increment_failed", "tenant_id", tenantID, "error", err)
	}
}

func (e *Engine) cacheKey(input string) string {
	sum := sha256.Sum256([]byte(e.opts.SystemPrompt + "\x1f" + input))
	return "engine:" + hex.EncodeToString(sum[:])
}
