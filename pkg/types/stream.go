package types

// StreamEventKind tags the variant of a StreamEvent on the wire and in
// switch statements, the same discriminator technique pkg/types/message.go
// uses for content blocks.
type StreamEventKind string

const (
	EventTextDelta         StreamEventKind = "text-delta"
	EventToolCallBegin     StreamEventKind = "tool-call-begin"
	EventToolCallArgsDelta StreamEventKind = "tool-call-args-delta"
	EventToolCallEnd       StreamEventKind = "tool-call-end"
	EventStop              StreamEventKind = "stop"
	EventError             StreamEventKind = "error"
	EventUsage             StreamEventKind = "usage"
)

// StopReason classifies why a stream ended normally.
type StopReason string

const (
	StopEndTurn       StopReason = "end"
	StopToolUse       StopReason = "tool_use"
	StopLength        StopReason = "length"
	StopContentFilter StopReason = "content_filter"
	StopCancelled     StopReason = "cancelled"
)

// StreamEvent is the normalized unit of output from any LLM adapter
// (§3, §4.3). It is ephemeral: producers must not retain a reference to
// a value once emitted. Every tool-related variant carries the
// originating call's id so multiple in-flight tool calls route
// correctly (§9, "id-based not position-based output routing").
type StreamEvent interface {
	Kind() StreamEventKind
}

// TextDeltaEvent is a fragment of assistant-visible text. Reasoning or
// thinking content, if a provider emits it, MUST NOT appear here.
type TextDeltaEvent struct {
	Text string
}

func (TextDeltaEvent) Kind() StreamEventKind { return EventTextDelta }

// ToolCallBeginEvent announces a new in-flight tool call.
type ToolCallBeginEvent struct {
	ID   string
	Name string
}

func (ToolCallBeginEvent) Kind() StreamEventKind { return EventToolCallBegin }

// ToolCallArgsDeltaEvent carries one incremental JSON fragment of a tool
// call's arguments, keyed by the call id from the matching
// ToolCallBeginEvent.
type ToolCallArgsDeltaEvent struct {
	ID    string
	Delta string
}

func (ToolCallArgsDeltaEvent) Kind() StreamEventKind { return EventToolCallArgsDelta }

// ToolCallEndEvent closes a tool call with its fully parsed arguments.
// Args is nil (not an error) when the adapter could not parse the
// accumulated JSON fragments — per §4.3, a parse failure degrades to
// empty arguments plus a diagnostic log entry, never a fault.
type ToolCallEndEvent struct {
	ID   string
	Args map[string]any
}

func (ToolCallEndEvent) Kind() StreamEventKind { return EventToolCallEnd }

// StopEvent terminates the sequence without error.
type StopEvent struct {
	Reason StopReason
}

func (StopEvent) Kind() StreamEventKind { return EventStop }

// ErrorEvent terminates the sequence with a classified failure.
type ErrorEvent struct {
	ErrKind ErrorKind
	Message string
}

func (ErrorEvent) Kind() StreamEventKind { return EventError }

// UsageEvent reports token accounting for the completed turn.
type UsageEvent struct {
	InputTokens  int
	OutputTokens int
}

func (UsageEvent) Kind() StreamEventKind { return EventUsage }
