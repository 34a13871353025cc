package engine

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/lovekaizen/agentsea/core"
	"github.com/lovekaizen/agentsea/mcp"
	"github.com/lovekaizen/agentsea/tool"
)

// runToolCalls executes one iteration's tool calls with bounded parallelism.
// Results come back in the original call order regardless of completion
// order. Individual failures never abort the batch; they are recorded as
// error results for the model to react to.
func (e *Engine) runToolCalls(ctx context.Context, calls []core.ToolCall) []core.ToolResult {
	results := make([]core.ToolResult, len(calls))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.opts.MaxConcurrentTools)
	for i, call := range calls {
		g.Go(func() error {
			results[i] = e.runToolCall(gctx, call)
			return nil
		})
	}
	// Workers never return errors; Wait is the join point.
	_ = g.Wait()

	return results
}

func (e *Engine) runToolCall(ctx context.Context, call core.ToolCall) (res core.ToolResult) {
	res = core.ToolResult{Call: call}

	defer func() {
		if r := recover(); r != nil {
			res.Content = fmt.Sprintf("tool %s panicked: %v", call.Name, r)
			res.IsError = true
			e.logger.Error("engine.tool.panic", "tool", call.Name, "panic", r)
		}
	}()

	if e.opts.ToolTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.opts.ToolTimeout)
		defer cancel()
	}

	started := time.Now()
	content, err := e.invokeTool(ctx, call)
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			err = tool.NewToolError(call.Name, "tool call timed out", tool.CodeTimeout, nil)
		}
		e.logger.Warn("engine.tool.failed", "tool", call.Name, "error", err, "duration_ms", time.Since(started).Milliseconds())
		res.Content = err.Error()
		res.IsError = true
		return res
	}

	e.logger.Debug("engine.tool.completed", "tool", call.Name, "duration_ms", time.Since(started).Milliseconds())
	res.Content = content
	return res
}

// invokeTool resolves a call against the local registry first, then the MCP
// registry for namespaced names.
func (e *Engine) invokeTool(ctx context.Context, call core.ToolCall) (string, error) {
	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return "", tool.NewToolError(call.Name, fmt.Sprintf("invalid tool arguments: %v", err), tool.CodeValidation, nil)
		}
	}

	if e.opts.Tools != nil && e.opts.Tools.Has(call.Name) {
		out, err := e.opts.Tools.Invoke(ctx, call.Name, args)
		if err != nil {
			return "", err
		}
		return stringifyResult(out)
	}

	if e.opts.MCP != nil {
		if _, _, ok := mcp.SplitName(call.Name); ok {
			return e.opts.MCP.Invoke(ctx, call.Name, args)
		}
	}

	return "", tool.NewToolError(call.Name, "tool not found", tool.CodeNotFound, nil)
}

// stringifyResult renders a tool's return value as message content. Strings
// pass through; everything else is JSON-encoded.
func stringifyResult(v any) (string, error) {
	switch out := v.(type) {
	case nil:
		return "", nil
	case string:
		return out, nil
	default:
		raw, err := json.Marshal(out)
		if err != nil {
			return "", fmt.Errorf("encode tool result: %w", err)
		}
		return string(raw), nil
	}
}
