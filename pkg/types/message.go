// Package types holds the data model shared across every component of the
// Floyd core: messages, sessions, tool descriptors, and the normalized
// stream event that crosses the LLM-adapter boundary.
package types

import (
	"encoding/json"
	"fmt"
)

// Role identifies who a message belongs to.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one turn (or partial turn) in a session's history.
//
// A "tool" role message always carries ToolUseID, pointing at the
// tool_use block it answers (invariant I1). Text-only messages carry a
// single TextBlock in Content; assistant messages that called tools carry
// a TextBlock (possibly empty) followed by one ToolUseBlock per call.
type Message struct {
	Role      Role           `json:"role"`
	Content   []ContentBlock `json:"content"`
	ToolUseID string         `json:"tool_use_id,omitempty"`

	// Incomplete marks an assistant message that was cut short by
	// cancellation (§4.6.4) or a mid-stream error (§7, ProtocolError).
	Incomplete bool `json:"incomplete,omitempty"`
}

// Text concatenates every TextBlock in the message, ignoring tool blocks.
func (m Message) Text() string {
	var out string
	for _, b := range m.Content {
		if t, ok := b.(TextBlock); ok {
			out += t.Text
		}
	}
	return out
}

// ToolUses returns every tool_use block in the message, in declaration
// order — the order the dispatch sub-protocol (§4.6.3) must honor.
func (m Message) ToolUses() []ToolUseBlock {
	var out []ToolUseBlock
	for _, b := range m.Content {
		if t, ok := b.(ToolUseBlock); ok {
			out = append(out, t)
		}
	}
	return out
}

// ContentBlock is one of TextBlock, ToolUseBlock, ToolResultBlock, or
// CancellationMarkerBlock.
type ContentBlock interface {
	blockKind() string
}

// TextBlock is plain assistant- or user-visible text.
type TextBlock struct {
	Text string `json:"text"`
}

func (TextBlock) blockKind() string { return "text" }

// ToolUseBlock announces a tool call the model wants executed. ID is
// unique within the session (invariant: "a tool_use block's id is unique
// within a session").
type ToolUseBlock struct {
	ID    string         `json:"id"`
	Name  string         `json:"name"`
	Input map[string]any `json:"input"`
}

func (ToolUseBlock) blockKind() string { return "tool_use" }

// ToolResultBlock carries the result of a tool call back to the model.
// ToolUseID must match an earlier ToolUseBlock.ID in the same session.
type ToolResultBlock struct {
	ToolUseID string `json:"tool_use_id"`
	Content   string `json:"content"`
	IsError   bool   `json:"is_error,omitempty"`
}

func (ToolResultBlock) blockKind() string { return "tool_result" }

// CancellationMarkerBlock marks the point in an assistant message's
// content where cancellation cut the turn short (§4.6.4, §8 scenario
// E6: "history contains an assistant message with exactly the received
// text fragments plus a cancellation marker block").
type CancellationMarkerBlock struct{}

func (CancellationMarkerBlock) blockKind() string { return "cancellation_marker" }

// rawMessage mirrors Message but with Content left as raw JSON so each
// block can be dispatched to its concrete type by a "type" discriminator,
// the same polymorphic-unmarshal shape the teacher uses for message parts.
type rawMessage struct {
	Role       Role              `json:"role"`
	Content    []json.RawMessage `json:"content"`
	ToolUseID  string            `json:"tool_use_id,omitempty"`
	Incomplete bool              `json:"incomplete,omitempty"`
}

type taggedBlock struct {
	Type string `json:"type"`
	TextBlock
	ToolUseBlock
	ToolResultBlock
	CancellationMarkerBlock
}

// MarshalJSON tags each block with a "type" discriminator on the wire.
func (m Message) MarshalJSON() ([]byte, error) {
	blocks := make([]json.RawMessage, len(m.Content))
	for i, b := range m.Content {
		var tb taggedBlock
		tb.Type = b.blockKind()
		switch v := b.(type) {
		case TextBlock:
			tb.TextBlock = v
		case ToolUseBlock:
			tb.ToolUseBlock = v
		case ToolResultBlock:
			tb.ToolResultBlock = v
		case CancellationMarkerBlock:
			tb.CancellationMarkerBlock = v
		default:
			return nil, fmt.Errorf("types: unknown content block %T", b)
		}
		data, err := json.Marshal(tb)
		if err != nil {
			return nil, err
		}
		blocks[i] = data
	}

	return json.Marshal(rawMessage{
		Role:       m.Role,
		Content:    blocks,
		ToolUseID:  m.ToolUseID,
		Incomplete: m.Incomplete,
	})
}

// UnmarshalJSON reverses MarshalJSON, restoring concrete block types.
func (m *Message) UnmarshalJSON(data []byte) error {
	var raw rawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	m.Role = raw.Role
	m.ToolUseID = raw.ToolUseID
	m.Incomplete = raw.Incomplete
	m.Content = make([]ContentBlock, 0, len(raw.Content))

	for _, rb := range raw.Content {
		var tb taggedBlock
		if err := json.Unmarshal(rb, &tb); err != nil {
			return fmt.Errorf("types: decode content block: %w", err)
		}
		switch tb.Type {
		case "text":
			m.Content = append(m.Content, tb.TextBlock)
		case "tool_use":
			m.Content = append(m.Content, tb.ToolUseBlock)
		case "tool_result":
			m.Content = append(m.Content, tb.ToolResultBlock)
		case "cancellation_marker":
			m.Content = append(m.Content, tb.CancellationMarkerBlock)
		default:
			return fmt.Errorf("types: unknown content block type %q", tb.Type)
		}
	}

	return nil
}

// NewTextMessage builds a single-block text message, the common case for
// user prompts and plain assistant replies.
func NewTextMessage(role Role, text string) Message {
	return Message{Role: role, Content: []ContentBlock{TextBlock{Text: text}}}
}
