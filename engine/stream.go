package engine

import (
	"context"

	"github.com/lovekaizen/agentsea/core"
)

// ExecuteStream runs the agent loop while emitting incremental events on the
// returned channel. The sequence per iteration is iteration, zero or more
// content deltas, then either the terminal event or tool_calls followed by
// one tool_result per call in request order. Exactly one terminal event
// (done or error) closes the channel.
//
// Cancelling ctx stops the run; the stream then terminates with an error
// event carrying the context error. A consumer that cancels and stops reading
// may miss that final event if the buffer is already full; the closed channel
// is the authoritative end-of-stream signal either way.
func (e *Engine) ExecuteStream(ctx context.Context, input string, actx *core.AgentContext) (<-chan core.StreamEvent, error) {
	out := make(chan core.StreamEvent, 16)

	send := func(ev core.StreamEvent) {
		select {
		case out <- ev:
		case <-ctx.Done():
		}
	}

	// Terminal events prefer the buffer so a live consumer always sees them,
	// but a cancelled-and-abandoned stream must not pin the goroutine: with
	// the buffer full the send falls back to waiting on ctx, and the closed
	// channel alone signals termination.
	sendTerminal := func(ev core.StreamEvent) {
		select {
		case out <- ev:
		default:
			select {
			case out <- ev:
			case <-ctx.Done():
			}
		}
	}

	go func() {
		defer close(out)

		result, err := e.run(ctx, input, actx, send)
		if err != nil {
			e.logger.Error("engine.stream.failed", "error", err)
			sendTerminal(core.StreamEvent{Type: core.EventError, Err: err})
			return
		}
		sendTerminal(core.StreamEvent{Type: core.EventDone, Iteration: result.Metadata.Iterations, Response: result})
	}()

	return out, nil
}
