package llm

import (
	"context"
	"encoding/json"
	"io"

	openai "github.com/sashabaranov/go-openai"

	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/pkg/types"
)

// openaiClient adapts the OpenAI-shaped chat-completions API to Client
// (§4.3, "OpenAI-shaped adapter" — serves openai, deepseek, and glm via
// api.z.ai through a BaseURL override), grounded on the index-keyed
// tool-call accumulation in haasonsaas-nexus's OpenAIProvider.processStream.
type openaiClient struct {
	client *openai.Client
	model  string
	maxTok int
}

func newOpenAIClient(baseURL, apiKey, model string, maxTokens int) *openaiClient {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &openaiClient{
		client: openai.NewClientWithConfig(cfg),
		model:  model,
		maxTok: maxTokens,
	}
}

func (c *openaiClient) Stream(ctx context.Context, req StreamRequest) (<-chan types.StreamEvent, error) {
	messages := openaiConvertMessages(req.System, req.History)

	model := req.Model
	if model == "" {
		model = c.model
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTok
	}

	chatReq := openai.ChatCompletionRequest{
		Model:     model,
		Messages:  messages,
		Stream:    true,
		MaxTokens: maxTokens,
	}
	if len(req.Tools) > 0 {
		chatReq.Tools = openaiConvertTools(req.Tools)
	}

	stream, err := c.client.CreateChatCompletionStream(ctx, chatReq)
	if err != nil {
		return nil, err
	}

	out := make(chan types.StreamEvent)
	go openaiPump(ctx, stream, out)
	return out, nil
}

type openaiToolCall struct {
	id, name string
	args     []byte
}

// openaiPump drains stream into out, normalizing events per §4.3's four
// stream guarantees. It owns out: it is the only writer and it always
// closes out before returning.
func openaiPump(ctx context.Context, stream *openai.ChatCompletionStream, out chan<- types.StreamEvent) {
	defer close(out)
	defer stream.Close()

	calls := make(map[int]*openaiToolCall)
	order := make([]int, 0, 4)
	begun := make(map[int]bool)
	stopReason := types.StopEndTurn

	emit := func(ev types.StreamEvent) bool {
		select {
		case out <- ev:
			return true
		case <-ctx.Done():
			out <- types.StopEvent{Reason: types.StopCancelled}
			return false
		}
	}

	flush := func(index int) bool {
		tc := calls[index]
		if tc == nil || tc.id == "" || tc.name == "" {
			return true
		}
		if !begun[index] {
			if !emit(types.ToolCallBeginEvent{ID: tc.id, Name: tc.name}) {
				return false
			}
			begun[index] = true
		}
		args := openaiParseToolInput(tc.args, tc.name)
		return emit(types.ToolCallEndEvent{ID: tc.id, Args: args})
	}

	for {
		if ctx.Err() != nil {
			emit(types.StopEvent{Reason: types.StopCancelled})
			return
		}

		response, err := stream.Recv()
		if err != nil {
			if err == io.EOF {
				for _, index := range order {
					if !flush(index) {
						return
					}
				}
				emit(types.StopEvent{Reason: stopReason})
				return
			}
			if ctx.Err() != nil {
				emit(types.StopEvent{Reason: types.StopCancelled})
				return
			}
			emit(types.ErrorEvent{ErrKind: types.TransportError, Message: err.Error()})
			return
		}

		if len(response.Choices) == 0 {
			continue
		}
		choice := response.Choices[0]
		delta := choice.Delta

		if delta.Content != "" {
			if !emit(types.TextDeltaEvent{Text: delta.Content}) {
				return
			}
		}

		for _, tc := range delta.ToolCalls {
			index := 0
			if tc.Index != nil {
				index = *tc.Index
			}
			if calls[index] == nil {
				calls[index] = &openaiToolCall{}
				order = append(order, index)
			}
			entry := calls[index]
			if tc.ID != "" {
				entry.id = tc.ID
			}
			if tc.Function.Name != "" {
				entry.name = tc.Function.Name
			}
			if tc.Function.Arguments != "" {
				entry.args = append(entry.args, []byte(tc.Function.Arguments)...)
				if begun[index] {
					if !emit(types.ToolCallArgsDeltaEvent{ID: entry.id, Delta: tc.Function.Arguments}) {
						return
					}
				}
			}
		}

		if choice.FinishReason == "tool_calls" {
			for _, index := range order {
				if !flush(index) {
					return
				}
			}
			calls = make(map[int]*openaiToolCall)
			order = order[:0]
			begun = make(map[int]bool)
			stopReason = types.StopToolUse
		} else if choice.FinishReason != "" {
			emit(types.StopEvent{Reason: types.StopEndTurn})
			return
		}
	}
}

// openaiParseToolInput parses one tool call's accumulated argument
// bytes. A malformed or partial accumulation must not crash the stream
// (§4.3) — it degrades to empty arguments plus a diagnostic log entry.
func openaiParseToolInput(raw []byte, toolName string) map[string]any {
	if len(raw) == 0 {
		return map[string]any{}
	}
	var args map[string]any
	if err := json.Unmarshal(raw, &args); err != nil {
		logging.Logger.Warn().
			Str("component", "llm.openai").
			Str("tool", toolName).
			Err(err).
			Msg("tool call arguments did not parse as JSON, dispatching with empty arguments")
		return map[string]any{}
	}
	return args
}

func openaiConvertMessages(system string, messages []types.Message) []openai.ChatCompletionMessage {
	result := make([]openai.ChatCompletionMessage, 0, len(messages)+1)
	if system != "" {
		result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: system})
	}

	for _, msg := range messages {
		switch msg.Role {
		case types.RoleSystem:
			if text := msg.Text(); text != "" {
				result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleSystem, Content: text})
			}

		case types.RoleUser:
			result = append(result, openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: msg.Text()})

		case types.RoleTool:
			result = append(result, openai.ChatCompletionMessage{
				Role:       openai.ChatMessageRoleTool,
				Content:    msg.Text(),
				ToolCallID: msg.ToolUseID,
			})

		case types.RoleAssistant:
			oaiMsg := openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: msg.Text()}
			if uses := msg.ToolUses(); len(uses) > 0 {
				oaiMsg.ToolCalls = make([]openai.ToolCall, len(uses))
				for i, u := range uses {
					args, _ := json.Marshal(u.Input)
					oaiMsg.ToolCalls[i] = openai.ToolCall{
						ID:   u.ID,
						Type: openai.ToolTypeFunction,
						Function: openai.FunctionCall{
							Name:      u.Name,
							Arguments: string(args),
						},
					}
				}
			}
			result = append(result, oaiMsg)
		}
	}
	return result
}

func openaiConvertTools(tools []types.ToolDescriptor) []openai.Tool {
	result := make([]openai.Tool, len(tools))
	for i, tool := range tools {
		var schema map[string]any
		if err := json.Unmarshal(tool.InputSchema, &schema); err != nil {
			schema = map[string]any{"type": "object", "properties": map[string]any{}}
		}
		result[i] = openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  schema,
			},
		}
	}
	return result
}
