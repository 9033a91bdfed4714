package agent

import "github.com/floydai/floyd/pkg/types"

// Event is one item of the lazy sequence SendMessage returns (§4.6,
// "sendMessage(prompt, cancel) -> lazy sequence of
// {text | toolStarted | toolFinished | error | done}"). PermissionAsk is
// an addition: the public contract names only that the engine "yields a
// pause event to the caller" for a verdict of ask (§4.2, §4.6.3 step 1);
// this is the concrete shape of that pause.
type Event interface {
	eventKind()
}

// TextEvent carries one delta of assistant-visible text.
type TextEvent struct {
	Text string
}

func (TextEvent) eventKind() {}

// ToolStartedEvent announces a tool dispatch about to run.
type ToolStartedEvent struct {
	CallID string
	Tool   string
	Args   map[string]any
}

func (ToolStartedEvent) eventKind() {}

// ToolFinishedEvent reports a tool dispatch's outcome. CallID is always
// present so the caller can route the output to the correct pending
// call when several tools ran in the same turn (§4.6.3 step 6).
type ToolFinishedEvent struct {
	CallID  string
	Tool    string
	Output  string
	IsError bool
}

func (ToolFinishedEvent) eventKind() {}

// PermissionAskEvent pauses the turn on a tool call whose verdict was
// ask. The caller resolves it by sending exactly one Resolution on
// Resolve; the loop blocks on that channel (or ctx cancellation) before
// continuing (§4.6.3 step 1, §5 "suspension points").
type PermissionAskEvent struct {
	CallID  string
	Tool    string
	Resolve chan<- Resolution
}

func (PermissionAskEvent) eventKind() {}

// Resolution answers a PermissionAskEvent: approve once|session|always,
// or deny.
type Resolution struct {
	Approve bool
	Scope   types.GrantScope
}

// ErrorEvent terminates the turn with a classified failure.
type ErrorEvent struct {
	Kind    types.ErrorKind
	Message string
}

func (ErrorEvent) eventKind() {}

// DoneEvent terminates the turn successfully (including on cancellation,
// per §4.6.4: cancellation ends with a normal done, not an error).
type DoneEvent struct {
	Cancelled bool
}

func (DoneEvent) eventKind() {}
