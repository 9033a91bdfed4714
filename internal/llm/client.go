// Package llm implements the LLM Client (C3, §4.3): a provider-neutral
// streaming contract with two concrete adapters, one for the Anthropic
// messages API and one for the OpenAI-shaped chat-completions API shared
// by OpenAI, DeepSeek, and GLM.
package llm

import (
	"context"

	"github.com/floydai/floyd/pkg/types"
)

// StreamRequest is one turn's worth of context handed to a Client.
type StreamRequest struct {
	System    string
	History   []types.Message
	Tools     []types.ToolDescriptor
	Model     string
	MaxTokens int
}

// Client streams a completion as a normalized event sequence (§4.3).
// The returned channel is finite: it ends with exactly one StopEvent or
// one ErrorEvent. Every ToolCallBeginEvent(id) is followed by a matching
// ToolCallEndEvent(id) before the next StopEvent, unless an ErrorEvent
// intervenes. If ctx is cancelled before the stream completes, the
// adapter closes the underlying transport promptly and emits a single
// StopEvent{Reason: StopCancelled}; no further events follow.
type Client interface {
	Stream(ctx context.Context, req StreamRequest) (<-chan types.StreamEvent, error)
}
