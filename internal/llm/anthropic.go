package llm

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/pkg/types"
)

// anthropicClient adapts the Anthropic messages API to Client (§4.3,
// "Anthropic-shaped adapter"), grounded on the streaming event switch in
// haasonsaas-nexus's AnthropicProvider.processStream.
type anthropicClient struct {
	client anthropic.Client
	model  string
	maxTok int
}

func newAnthropicClient(baseURL, apiKey, model string, maxTokens int) *anthropicClient {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	return &anthropicClient{
		client: anthropic.NewClient(opts...),
		model:  model,
		maxTok: maxTokens,
	}
}

func (c *anthropicClient) Stream(ctx context.Context, req StreamRequest) (<-chan types.StreamEvent, error) {
	messages, err := anthropicConvertMessages(req.History)
	if err != nil {
		return nil, err
	}

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTok
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		Messages:  messages,
		MaxTokens: int64(maxTokens),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: req.System}}
	}
	if len(req.Tools) > 0 {
		tools, err := anthropicConvertTools(req.Tools)
		if err != nil {
			return nil, err
		}
		params.Tools = tools
	}

	stream := c.client.Messages.NewStreaming(ctx, params)

	out := make(chan types.StreamEvent)
	go anthropicPump(ctx, stream, out)
	return out, nil
}

// anthropicPump drains stream into out, normalizing events per §4.3's
// four stream guarantees. It owns out: it is the only writer and it
// always closes out before returning.
func anthropicPump(ctx context.Context, stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- types.StreamEvent) {
	defer close(out)

	var (
		toolID    string
		toolName  string
		toolInput strings.Builder
		inTool    bool
		inTokens  int
		outTokens int

		stopReason = types.StopEndTurn
	)

	emit := func(ev types.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			out <- types.StopEvent{Reason: types.StopCancelled}
			return false
		}
	}

	for stream.Next() {
		if ctx.Err() != nil {
			emit(types.StopEvent{Reason: types.StopCancelled})
			return
		}

		event := stream.Current()
		switch event.Type {
		case "content_block_start":
			cbs := event.AsContentBlockStart()
			if cbs.ContentBlock.Type == "tool_use" {
				toolUse := cbs.ContentBlock.AsToolUse()
				toolID = toolUse.ID
				toolName = toolUse.Name
				toolInput.Reset()
				inTool = true
				if !emit(types.ToolCallBeginEvent{ID: toolID, Name: toolName}) {
					return
				}
			}

		case "content_block_delta":
			cbd := event.AsContentBlockDelta()
			switch cbd.Delta.Type {
			case "text_delta":
				if cbd.Delta.Text != "" {
					if !emit(types.TextDeltaEvent{Text: cbd.Delta.Text}) {
						return
					}
				}
			case "input_json_delta":
				if cbd.Delta.PartialJSON != "" {
					toolInput.WriteString(cbd.Delta.PartialJSON)
					if !emit(types.ToolCallArgsDeltaEvent{ID: toolID, Delta: cbd.Delta.PartialJSON}) {
						return
					}
				}
			}
			// thinking_delta is intentionally dropped: text-delta must
			// exclude reasoning content (§4.3).

		case "content_block_stop":
			if inTool {
				args := anthropicParseToolInput(toolInput.String(), toolName)
				if !emit(types.ToolCallEndEvent{ID: toolID, Args: args}) {
					return
				}
				inTool = false
			}

		case "message_start":
			ms := event.AsMessageStart()
			if ms.Message.Usage.InputTokens > 0 {
				inTokens = int(ms.Message.Usage.InputTokens)
			}

		case "message_delta":
			md := event.AsMessageDelta()
			if md.Usage.OutputTokens > 0 {
				outTokens = int(md.Usage.OutputTokens)
			}
			if md.Delta.StopReason == "tool_use" {
				stopReason = types.StopToolUse
			}

		case "message_stop":
			if inTokens > 0 || outTokens > 0 {
				if !emit(types.UsageEvent{InputTokens: inTokens, OutputTokens: outTokens}) {
					return
				}
			}
			emit(types.StopEvent{Reason: stopReason})
			return

		case "error":
			emit(types.ErrorEvent{ErrKind: types.TransportError, Message: "anthropic stream error"})
			return
		}
	}

	if err := stream.Err(); err != nil {
		if ctx.Err() != nil {
			emit(types.StopEvent{Reason: types.StopCancelled})
			return
		}
		emit(types.ErrorEvent{ErrKind: types.TransportError, Message: err.Error()})
		return
	}
}

// anthropicParseToolInput parses the accumulated JSON fragments for one
// tool call. A malformed or partial accumulation (the model's final
// tool-use block got cut off or emitted invalid JSON) must not crash
// the stream — it degrades to empty arguments plus a diagnostic log
// entry (§4.3).
func anthropicParseToolInput(raw, toolName string) map[string]any {
	if raw == "" {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal([]byte(raw), &args); err != nil {
		logging.Logger.Warn().
			Str("component", "llm.anthropic").
			Str("tool", toolName).
			Err(err).
			Msg("tool call arguments did not parse as JSON, dispatching with empty arguments")
		return map[string]any{}
	}
	return args
}

func anthropicConvertMessages(messages []types.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		if msg.Role == types.RoleSystem {
			continue
		}

		// Tool-role messages carry their result as ToolUseID plus plain
		// text (I1); Anthropic wants them folded into a tool_result
		// block on a user turn.
		if msg.Role == types.RoleTool {
			result = append(result, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolUseID, msg.Text(), false),
			))
			continue
		}

		var content []anthropic.ContentBlockParamUnion
		for _, block := range msg.Content {
			switch b := block.(type) {
			case types.TextBlock:
				if b.Text != "" {
					content = append(content, anthropic.NewTextBlock(b.Text))
				}
			case types.ToolUseBlock:
				content = append(content, anthropic.NewToolUseBlock(b.ID, b.Input, b.Name))
			case types.ToolResultBlock:
				content = append(content, anthropic.NewToolResultBlock(b.ToolUseID, b.Content, b.IsError))
			}
		}
		if len(content) == 0 {
			continue
		}

		if msg.Role == types.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func anthropicConvertTools(tools []types.ToolDescriptor) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(tools))
	for _, tool := range tools {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			return nil, errors.New("llm: invalid tool schema for " + tool.Name + ": " + err.Error())
		}
		toolParam := anthropic.ToolUnionParamOfTool(schema, tool.Name)
		if toolParam.OfTool == nil {
			return nil, errors.New("llm: invalid tool schema for " + tool.Name)
		}
		toolParam.OfTool.Description = anthropic.String(tool.Description)
		result = append(result, toolParam)
	}
	return result, nil
}
