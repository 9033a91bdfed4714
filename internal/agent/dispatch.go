package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/internal/permission"
	"github.com/floydai/floyd/pkg/types"
	"golang.org/x/sync/errgroup"
)

// ToolDispatchMaxAttempts bounds network-level retries on a tool
// dispatch (§4.6.3 step 4, MAX_RETRIES=3).
const ToolDispatchMaxAttempts = 3

// ToolDispatchRetryInitialInterval is the starting backoff interval,
// grounded on the teacher's newRetryBackoff (internal/session/loop.go),
// applied here to a single dispatch instead of the whole turn.
const ToolDispatchRetryInitialInterval = time.Second

// WithDoomLoopDetector attaches a doom-loop detector: repeated identical
// tool calls within a session are routed to a permission pause
// regardless of the configured verdict, grounded on the teacher's
// checkDoomLoop (internal/session/tools.go). Optional; a nil detector
// (the default) disables the check.
func (e *Engine) WithDoomLoopDetector(d *permission.DoomLoopDetector) *Engine {
	e.doomLoop = d
	return e
}

// dispatchBatch runs the tool dispatch sub-protocol for every call in
// calls, concurrently via errgroup (§5, "tool dispatches within one
// batch run as a bounded set of goroutines"), and returns one
// tool-result Message per call in the same declaration order calls
// arrived in. ToolFinishedEvent is re-serialized into that order before
// being sent on out, even though dispatch itself may complete
// out-of-order (§5, "re-serialized into declaration order").
func (e *Engine) dispatchBatch(ctx context.Context, out chan<- Event, calls []types.ToolUseBlock) []types.Message {
	results := make([]types.Message, len(calls))
	finished := make([]ToolFinishedEvent, len(calls))

	g := new(errgroup.Group)
	for i, call := range calls {
		i, call := i, call
		g.Go(func() error {
			results[i], finished[i] = e.dispatchOne(ctx, out, call)
			return nil
		})
	}
	_ = g.Wait()

	for _, f := range finished {
		out <- f
	}
	return results
}

// dispatchOne runs the five remaining steps of §4.6.3 for one tool_use
// block: permission check, argument handling, dispatch with retry,
// recording, and building the ToolFinishedEvent the caller emits.
func (e *Engine) dispatchOne(ctx context.Context, out chan<- Event, call types.ToolUseBlock) (types.Message, ToolFinishedEvent) {
	out <- ToolStartedEvent{CallID: call.ID, Tool: call.Name, Args: call.Input}

	if e.doomLoop != nil && e.doomLoop.Check(e.session.ID, call.Name, call.Input) {
		if !e.resolveAsk(ctx, out, call) {
			return deniedResult(call, "repeated identical call blocked pending confirmation")
		}
	} else {
		switch e.perms.Check(call.Name) {
		case types.VerdictDeny:
			return deniedResult(call, fmt.Sprintf("permission denied for tool %q", call.Name))
		case types.VerdictAsk:
			if !e.resolveAsk(ctx, out, call) {
				return deniedResult(call, fmt.Sprintf("permission denied for tool %q", call.Name))
			}
		case types.VerdictAllow:
			// proceed
		}
	}

	args := call.Input
	if args == nil {
		// The LLM adapter already logs parse failures (§4.3); here we
		// only need a marker the model can see, per §4.6.3 step 2.
		args = map[string]any{"_parseError": true}
	}

	// Once dispatch begins it is allowed to run to completion even if
	// the turn's ctx is cancelled mid-flight (§4.6.4, §5: "cancel is
	// cooperative, an in-flight tool dispatch is not interrupted").
	dispatchCtx := context.WithoutCancel(ctx)

	output, err := e.callToolWithRetry(dispatchCtx, call.Name, args)
	if err != nil {
		text := errkind.Humanize(err)
		return types.Message{Role: types.RoleTool, ToolUseID: call.ID, Content: []types.ContentBlock{types.TextBlock{Text: text}}},
			ToolFinishedEvent{CallID: call.ID, Tool: call.Name, Output: text, IsError: true}
	}

	output = truncateOutput(output)
	return types.Message{Role: types.RoleTool, ToolUseID: call.ID, Content: []types.ContentBlock{types.TextBlock{Text: output}}},
		ToolFinishedEvent{CallID: call.ID, Tool: call.Name, Output: output}
}

// ToolOutputMaxBytes caps a single tool result before it re-enters the
// conversation (§9 Open Question resolution: tool-output truncation,
// threshold left unspecified by spec.md).
const ToolOutputMaxBytes = 32 * 1024

// truncateOutput caps s at ToolOutputMaxBytes, appending a marker
// naming how many bytes were dropped so the model knows the result was
// cut short rather than genuinely short.
func truncateOutput(s string) string {
	if len(s) <= ToolOutputMaxBytes {
		return s
	}
	dropped := len(s) - ToolOutputMaxBytes
	return fmt.Sprintf("%s\n[truncated %d bytes]", s[:ToolOutputMaxBytes], dropped)
}

// resolveAsk pauses the batch on a permission.required pause event and
// blocks for a Resolution, updating the Permission Manager with the
// caller's answer (§4.6.3 step 1). It returns whether the call was
// approved.
func (e *Engine) resolveAsk(ctx context.Context, out chan<- Event, call types.ToolUseBlock) bool {
	resolveCh := make(chan Resolution, 1)
	permission.PublishRequired(call.ID, e.session.ID, call.Name)
	out <- PermissionAskEvent{CallID: call.ID, Tool: call.Name, Resolve: resolveCh}

	select {
	case res := <-resolveCh:
		response := "reject"
		if res.Approve {
			response = string(res.Scope)
			if err := e.perms.Grant(call.Name, res.Scope); err != nil {
				logging.Logger.Warn().Str("component", "agent").Err(err).Msg("failed to record permission grant")
			}
		} else if res.Scope != "" {
			if err := e.perms.Deny(call.Name, res.Scope); err != nil {
				logging.Logger.Warn().Str("component", "agent").Err(err).Msg("failed to record permission denial")
			}
		}
		permission.PublishResolved(call.ID, e.session.ID, response)
		return res.Approve
	case <-ctx.Done():
		permission.PublishResolved(call.ID, e.session.ID, "reject")
		return false
	}
}

func deniedResult(call types.ToolUseBlock, text string) (types.Message, ToolFinishedEvent) {
	msg := types.Message{
		Role:      types.RoleTool,
		ToolUseID: call.ID,
		Content:   []types.ContentBlock{types.TextBlock{Text: text}},
	}
	return msg, ToolFinishedEvent{CallID: call.ID, Tool: call.Name, Output: text, IsError: true}
}

// callToolWithRetry dispatches via the tool catalogue, retrying only
// ToolUnavailable failures (the MCP Client Manager's classification for
// "connection closed mid-call", §4.6.3 step 4) up to
// ToolDispatchMaxAttempts attempts total with exponential backoff
// starting at one second. Errors the tool itself reports (ToolError)
// are never retried — they are handed back to the model verbatim.
func (e *Engine) callToolWithRetry(ctx context.Context, name string, args map[string]any) (string, error) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = ToolDispatchRetryInitialInterval
	b.Multiplier = 2.0
	b.RandomizationFactor = 0.5
	bo := backoff.WithContext(backoff.WithMaxRetries(b, ToolDispatchMaxAttempts-1), ctx)

	var output string
	op := func() error {
		out, err := e.tools.CallTool(ctx, name, args)
		if err != nil {
			if errkind.Is(err, types.ToolUnavailable) {
				return err
			}
			return backoff.Permanent(err)
		}
		output = out
		return nil
	}

	if err := backoff.Retry(op, bo); err != nil {
		var perm *backoff.PermanentError
		if asPermanent(err, &perm) {
			return "", perm.Err
		}
		return "", err
	}
	return output, nil
}

func asPermanent(err error, target **backoff.PermanentError) bool {
	pe, ok := err.(*backoff.PermanentError)
	if !ok {
		return false
	}
	*target = pe
	return true
}
