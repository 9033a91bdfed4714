package agent

import (
	"context"
	"errors"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/event"
	"github.com/floydai/floyd/internal/llm"
	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/pkg/types"
)

// systemPromptText returns the text of session.Messages[0] if it is a
// system message, for req.System (§4.3's adapters fold history's system
// message out of the wire request and expect it separately).
func (e *Engine) systemPromptText() string {
	if len(e.session.Messages) == 0 || e.session.Messages[0].Role != types.RoleSystem {
		return ""
	}
	return e.session.Messages[0].Text()
}

// runTurn drives one call to SendMessage end to end: it is the sole
// writer of out and always closes it before returning (§4.6.1–§4.6.4).
func (e *Engine) runTurn(ctx context.Context, prompt string, out chan<- Event) {
	defer close(out)

	if prompt == "" {
		out <- ErrorEvent{Kind: types.ConfigError, Message: "a 0-length user message is rejected (§8)"}
		return
	}

	e.appendAndSave(ctx, types.NewTextMessage(types.RoleUser, prompt))

	for turn := 0; turn < e.maxTurns; turn++ {
		e.trimHistory()

		msg, stop, streamErr := e.streamTurn(ctx, out)

		switch {
		case streamErr != nil:
			msg.Incomplete = true
			e.appendAndSave(ctx, msg)
			kind, ok := errkind.KindOf(streamErr)
			if !ok {
				kind = types.ProtocolError
			}
			out <- ErrorEvent{Kind: kind, Message: streamErr.Error()}
			return

		case stop == types.StopCancelled:
			msg.Incomplete = true
			msg.Content = append(msg.Content, types.CancellationMarkerBlock{})
			e.appendAndSave(ctx, msg)
			out <- DoneEvent{Cancelled: true}
			return

		case stop == types.StopToolUse:
			e.appendAndSave(ctx, msg)
			calls := msg.ToolUses()
			if len(calls) == 0 {
				// Stream claimed tool_use but produced no tool-use
				// blocks; treat as a normal end rather than looping
				// forever on an empty batch.
				out <- DoneEvent{}
				return
			}
			results := e.dispatchBatch(ctx, out, calls)
			for _, r := range results {
				e.session.Messages = append(e.session.Messages, r)
			}
			e.save(ctx)
			continue

		default: // StopEndTurn, StopLength, StopContentFilter
			e.appendAndSave(ctx, msg)
			out <- DoneEvent{}
			return
		}
	}

	out <- ErrorEvent{Kind: types.ExhaustedTurns, Message: "max_turns reached without a final answer"}
}

func (e *Engine) appendAndSave(ctx context.Context, msg types.Message) {
	e.session.Messages = append(e.session.Messages, msg)
	e.save(ctx)
}

func (e *Engine) save(ctx context.Context) {
	if e.store == nil {
		return
	}
	if err := e.store.Save(ctx, e.session); err != nil {
		logging.Logger.Warn().
			Str("component", "agent").
			Str("session", e.session.ID).
			Err(err).
			Msg("session save failed, continuing turn possibly out of sync")
	}
	event.Publish(event.Event{
		Type: event.MessageAppended,
		Data: event.MessageAppendedData{SessionID: e.session.ID, Message: e.session.Messages[len(e.session.Messages)-1]},
	})
}

// streamTurn requests one stream from the LLM Client and drains it into
// an assistant Message, retrying exactly once on a transport failure
// observed before any event arrives (§4.6.6).
func (e *Engine) streamTurn(ctx context.Context, out chan<- Event) (types.Message, types.StopReason, error) {
	req := llm.StreamRequest{
		System:    e.systemPromptText(),
		History:   e.session.Messages,
		Tools:     e.tools.ListTools(ctx),
		Model:     e.model,
		MaxTokens: e.maxTokens,
	}

	for attempt := 0; ; attempt++ {
		ch, err := e.llm.Stream(ctx, req)
		if err != nil {
			if attempt == 0 && errkind.Is(err, types.TransportError) {
				continue
			}
			return types.Message{Role: types.RoleAssistant}, "", err
		}

		msg, stop, streamErr, contentSeen := e.drain(ch, out)
		if streamErr != nil && !contentSeen && attempt == 0 && errkind.Is(streamErr, types.TransportError) {
			continue
		}
		return msg, stop, streamErr
	}
}

// drain consumes one normalized event stream into an assistant Message,
// yielding text/tool events to the caller as they arrive (§4.6.1 step
// 3). contentSeen reports whether any text-delta or tool-call event was
// observed before a terminal event, the condition streamTurn uses to
// decide whether a transport failure is still retryable.
func (e *Engine) drain(ch <-chan types.StreamEvent, out chan<- Event) (msg types.Message, stop types.StopReason, err error, contentSeen bool) {
	var text string
	var order []string
	calls := make(map[string]*pendingToolCall)

	for ev := range ch {
		switch v := ev.(type) {
		case types.TextDeltaEvent:
			contentSeen = true
			text += v.Text
			out <- TextEvent{Text: v.Text}

		case types.ToolCallBeginEvent:
			contentSeen = true
			order = append(order, v.ID)
			calls[v.ID] = &pendingToolCall{name: v.Name}

		case types.ToolCallArgsDeltaEvent:
			// The adapter finalizes parsed arguments on
			// ToolCallEndEvent; deltas carry nothing this loop needs.

		case types.ToolCallEndEvent:
			if c, ok := calls[v.ID]; ok {
				c.args = v.Args
			}

		case types.UsageEvent:
			// Token accounting isn't modeled on Message; nothing to do.

		case types.StopEvent:
			return buildAssistantMessage(text, order, calls), v.Reason, nil, contentSeen

		case types.ErrorEvent:
			return buildAssistantMessage(text, order, calls), "", errkind.New(v.ErrKind, errors.New(v.Message)), contentSeen
		}
	}

	// Channel closed without a terminal event: a protocol violation
	// per the Client contract (§4.3, "ends with exactly one StopEvent
	// or one ErrorEvent").
	return buildAssistantMessage(text, order, calls), "", errkind.Newf(types.ProtocolError, "llm: stream closed without a stop or error event"), contentSeen
}

type pendingToolCall struct {
	name string
	args map[string]any
}

func buildAssistantMessage(text string, order []string, calls map[string]*pendingToolCall) types.Message {
	var content []types.ContentBlock
	if text != "" {
		content = append(content, types.TextBlock{Text: text})
	}
	for _, id := range order {
		c := calls[id]
		args := c.args
		if args == nil {
			// §4.3: a parse failure degrades to empty arguments, never
			// a fault; the adapter has already logged the diagnostic.
			args = map[string]any{}
		}
		content = append(content, types.ToolUseBlock{ID: id, Name: c.name, Input: args})
	}
	return types.Message{Role: types.RoleAssistant, Content: content}
}
