package agent

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/llm"
	"github.com/floydai/floyd/pkg/types"
)

// fakeLLM replays a queue of pre-built event slices, one per call to
// Stream, so a test can script a multi-turn conversation.
type fakeLLM struct {
	turns [][]types.StreamEvent
	calls int
}

func (f *fakeLLM) Stream(ctx context.Context, req llm.StreamRequest) (<-chan types.StreamEvent, error) {
	if f.calls >= len(f.turns) {
		panic("fakeLLM: more Stream calls than scripted turns")
	}
	events := f.turns[f.calls]
	f.calls++

	ch := make(chan types.StreamEvent, len(events))
	for _, e := range events {
		ch <- e
	}
	close(ch)
	return ch, nil
}

type fakeTools struct {
	tools  []types.ToolDescriptor
	result string
	err    error
}

func (f *fakeTools) ListTools(ctx context.Context) []types.ToolDescriptor { return f.tools }
func (f *fakeTools) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return f.result, f.err
}

type fakePerms struct {
	verdict types.Verdict
	granted []string
	denied  []string
}

func (f *fakePerms) Check(toolName string) types.Verdict { return f.verdict }
func (f *fakePerms) Grant(toolName string, scope types.GrantScope) error {
	f.granted = append(f.granted, toolName)
	return nil
}
func (f *fakePerms) Deny(toolName string, scope types.GrantScope) error {
	f.denied = append(f.denied, toolName)
	return nil
}

type fakeStore struct{ saves int }

func (f *fakeStore) Save(ctx context.Context, session *types.Session) error {
	f.saves++
	return nil
}

func newTestSession() *types.Session {
	return &types.Session{ID: "sess-1"}
}

func drainEvents(t *testing.T, ch <-chan Event, timeout time.Duration) []Event {
	t.Helper()
	var out []Event
	deadline := time.After(timeout)
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, ev)
		case <-deadline:
			t.Fatal("timed out draining events")
		}
	}
}

func TestSendMessagePlainTextEndsInDone(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{types.TextDeltaEvent{Text: "hi "}, types.TextDeltaEvent{Text: "there"}, types.StopEvent{Reason: types.StopEndTurn}},
	}}
	store := &fakeStore{}
	session := newTestSession()
	e := New(llmClient, &fakeTools{}, &fakePerms{}, store, session, "you are floyd", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "hello"), time.Second)

	require.Len(t, events, 3)
	assert.Equal(t, TextEvent{Text: "hi "}, events[0])
	assert.Equal(t, TextEvent{Text: "there"}, events[1])
	assert.Equal(t, DoneEvent{}, events[2])

	require.Len(t, session.Messages, 3) // system, user, assistant
	assert.Equal(t, types.RoleAssistant, session.Messages[2].Role)
	assert.Equal(t, "hi there", session.Messages[2].Text())
	assert.True(t, store.saves > 0)
}

func TestSendMessageDispatchesAllowedTool(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{
			types.ToolCallBeginEvent{ID: "call-1", Name: "read_file"},
			types.ToolCallEndEvent{ID: "call-1", Args: map[string]any{"path": "a.go"}},
			types.StopEvent{Reason: types.StopToolUse},
		},
		{types.TextDeltaEvent{Text: "done reading"}, types.StopEvent{Reason: types.StopEndTurn}},
	}}
	tools := &fakeTools{result: "package main"}
	perms := &fakePerms{verdict: types.VerdictAllow}
	e := New(llmClient, tools, perms, &fakeStore{}, newTestSession(), "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "read a.go"), time.Second)

	var sawStart, sawFinish, sawDone bool
	for _, ev := range events {
		switch v := ev.(type) {
		case ToolStartedEvent:
			sawStart = true
			assert.Equal(t, "read_file", v.Tool)
		case ToolFinishedEvent:
			sawFinish = true
			assert.Equal(t, "package main", v.Output)
			assert.False(t, v.IsError)
		case DoneEvent:
			sawDone = true
		}
	}
	assert.True(t, sawStart)
	assert.True(t, sawFinish)
	assert.True(t, sawDone)
	assert.Equal(t, 2, llmClient.calls)
}

func TestSendMessageDeniedToolShortCircuits(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{
			types.ToolCallBeginEvent{ID: "call-1", Name: "bash"},
			types.ToolCallEndEvent{ID: "call-1", Args: map[string]any{"command": "rm -rf /"}},
			types.StopEvent{Reason: types.StopToolUse},
		},
		{types.StopEvent{Reason: types.StopEndTurn}},
	}}
	tools := &fakeTools{}
	perms := &fakePerms{verdict: types.VerdictDeny}
	e := New(llmClient, tools, perms, &fakeStore{}, newTestSession(), "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "rm everything"), time.Second)

	var finish ToolFinishedEvent
	for _, ev := range events {
		if v, ok := ev.(ToolFinishedEvent); ok {
			finish = v
		}
	}
	assert.True(t, finish.IsError)
	assert.Contains(t, finish.Output, "permission denied")
}

func TestSendMessageAskApprovedDispatchesTool(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{
			types.ToolCallBeginEvent{ID: "call-1", Name: "write_file"},
			types.ToolCallEndEvent{ID: "call-1", Args: map[string]any{"path": "a.go"}},
			types.StopEvent{Reason: types.StopToolUse},
		},
		{types.StopEvent{Reason: types.StopEndTurn}},
	}}
	tools := &fakeTools{result: "ok"}
	perms := &fakePerms{verdict: types.VerdictAsk}
	e := New(llmClient, tools, perms, &fakeStore{}, newTestSession(), "", "claude", 1024)

	ch := e.SendMessage(context.Background(), "write a.go")

	var ask PermissionAskEvent
	var events []Event
	for ev := range ch {
		events = append(events, ev)
		if v, ok := ev.(PermissionAskEvent); ok {
			ask = v
			ask.Resolve <- Resolution{Approve: true, Scope: types.ScopeOnce}
		}
	}

	require.NotEmpty(t, ask.CallID)
	assert.Contains(t, perms.granted, "write_file")

	var finish ToolFinishedEvent
	for _, ev := range events {
		if v, ok := ev.(ToolFinishedEvent); ok {
			finish = v
		}
	}
	assert.False(t, finish.IsError)
	assert.Equal(t, "ok", finish.Output)
}

func TestSendMessageAskDeniedRecordsDenial(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{
			types.ToolCallBeginEvent{ID: "call-1", Name: "bash"},
			types.ToolCallEndEvent{ID: "call-1", Args: map[string]any{}},
			types.StopEvent{Reason: types.StopToolUse},
		},
		{types.StopEvent{Reason: types.StopEndTurn}},
	}}
	perms := &fakePerms{verdict: types.VerdictAsk}
	e := New(llmClient, &fakeTools{}, perms, &fakeStore{}, newTestSession(), "", "claude", 1024)

	ch := e.SendMessage(context.Background(), "run something")
	for ev := range ch {
		if v, ok := ev.(PermissionAskEvent); ok {
			v.Resolve <- Resolution{Approve: false, Scope: types.ScopeSession}
		}
	}

	assert.Contains(t, perms.denied, "bash")
}

func TestSendMessageToolParseFailureDegradesToEmptyArgs(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{
			types.ToolCallBeginEvent{ID: "call-1", Name: "bash"},
			types.ToolCallEndEvent{ID: "call-1", Args: nil},
			types.StopEvent{Reason: types.StopToolUse},
		},
		{types.StopEvent{Reason: types.StopEndTurn}},
	}}
	tools := &fakeTools{result: "ran"}
	e := New(llmClient, tools, &fakePerms{verdict: types.VerdictAllow}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "go"), time.Second)

	var started ToolStartedEvent
	for _, ev := range events {
		if v, ok := ev.(ToolStartedEvent); ok {
			started = v
		}
	}
	assert.Equal(t, map[string]any{}, started.Args)
}

func TestSendMessageErrorEventEndsTurnWithIncompleteMessage(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{
			types.TextDeltaEvent{Text: "partial"},
			types.ErrorEvent{ErrKind: types.ProtocolError, Message: "malformed frame"},
		},
	}}
	session := newTestSession()
	e := New(llmClient, &fakeTools{}, &fakePerms{}, &fakeStore{}, session, "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "hi"), time.Second)

	last := events[len(events)-1]
	errEv, ok := last.(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, types.ProtocolError, errEv.Kind)

	assistant := session.Messages[len(session.Messages)-1]
	assert.True(t, assistant.Incomplete)
}

func TestSendMessageCancelledEndsWithDoneCancelled(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{
			types.TextDeltaEvent{Text: "frag1 "},
			types.TextDeltaEvent{Text: "frag2 "},
			types.TextDeltaEvent{Text: "frag3"},
			types.StopEvent{Reason: types.StopCancelled},
		},
	}}
	session := newTestSession()
	e := New(llmClient, &fakeTools{}, &fakePerms{}, &fakeStore{}, session, "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "hi"), time.Second)

	last := events[len(events)-1].(DoneEvent)
	assert.True(t, last.Cancelled)

	assistant := session.Messages[len(session.Messages)-1]
	assert.True(t, assistant.Incomplete)
	assert.Equal(t, "frag1 frag2 frag3", assistant.Text())

	var sawMarker bool
	for _, b := range assistant.Content {
		if _, ok := b.(types.CancellationMarkerBlock); ok {
			sawMarker = true
		}
	}
	assert.True(t, sawMarker)
}

func TestSendMessageEmptyPromptIsConfigError(t *testing.T) {
	e := New(&fakeLLM{}, &fakeTools{}, &fakePerms{}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), ""), time.Second)

	require.Len(t, events, 1)
	errEv, ok := events[0].(ErrorEvent)
	require.True(t, ok)
	assert.Equal(t, types.ConfigError, errEv.Kind)
}

func TestSendMessageExhaustsMaxTurns(t *testing.T) {
	turns := make([][]types.StreamEvent, 0, MaxTurns)
	for i := 0; i < MaxTurns; i++ {
		turns = append(turns, []types.StreamEvent{
			types.ToolCallBeginEvent{ID: "call", Name: "noop"},
			types.ToolCallEndEvent{ID: "call", Args: map[string]any{}},
			types.StopEvent{Reason: types.StopToolUse},
		})
	}
	llmClient := &fakeLLM{turns: turns}
	tools := &fakeTools{result: "ok"}
	e := New(llmClient, tools, &fakePerms{verdict: types.VerdictAllow}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "loop forever"), time.Second)

	last := events[len(events)-1].(ErrorEvent)
	assert.Equal(t, types.ExhaustedTurns, last.Kind)
}

func TestSendMessageRetriesTransportErrorBeforeFirstEvent(t *testing.T) {
	llmClient := &fakeLLM{turns: [][]types.StreamEvent{
		{types.ErrorEvent{ErrKind: types.TransportError, Message: "connection reset"}},
		{types.TextDeltaEvent{Text: "recovered"}, types.StopEvent{Reason: types.StopEndTurn}},
	}}
	e := New(llmClient, &fakeTools{}, &fakePerms{}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	events := drainEvents(t, e.SendMessage(context.Background(), "hi"), time.Second)

	var sawDone bool
	for _, ev := range events {
		if _, ok := ev.(DoneEvent); ok {
			sawDone = true
		}
	}
	assert.True(t, sawDone)
	assert.Equal(t, 2, llmClient.calls)
}

func TestTrimHistoryKeepsSystemMessageAndFloor(t *testing.T) {
	session := &types.Session{ID: "sess-2", Messages: []types.Message{
		types.NewTextMessage(types.RoleSystem, "sys"),
	}}
	for i := 0; i < 50; i++ {
		session.Messages = append(session.Messages,
			types.NewTextMessage(types.RoleUser, bigText()),
			types.NewTextMessage(types.RoleAssistant, bigText()),
		)
	}
	e := New(&fakeLLM{}, &fakeTools{}, &fakePerms{}, &fakeStore{}, session, "", "claude", 1024)

	e.trimHistory()

	assert.Equal(t, types.RoleSystem, session.Messages[0].Role)
	assert.True(t, countNonSystem(session.Messages) >= MinRetainedNonSystem)
	assert.Less(t, len(session.Messages), 101)
}

func bigText() string {
	s := make([]byte, 10000)
	for i := range s {
		s[i] = 'x'
	}
	return string(s)
}

func TestCallToolWithRetryGivesUpAfterMaxAttempts(t *testing.T) {
	tools := &fakeTools{err: errkind.Newf(types.ToolUnavailable, "server gone")}
	e := New(&fakeLLM{}, tools, &fakePerms{}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	_, err := e.callToolWithRetry(context.Background(), "whatever", nil)
	require.Error(t, err)
	assert.True(t, errkind.Is(err, types.ToolUnavailable))
}

func TestCallToolWithRetryDoesNotRetryToolError(t *testing.T) {
	callCount := 0
	tools := &countingTool{err: errkind.New(types.ToolError, assertErrMsg("boom")), calls: &callCount}
	e := New(&fakeLLM{}, tools, &fakePerms{}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	_, err := e.callToolWithRetry(context.Background(), "whatever", nil)
	require.Error(t, err)
	assert.Equal(t, 1, callCount)
}

type assertErrMsg string

func (e assertErrMsg) Error() string { return string(e) }

type countingTool struct {
	err   error
	calls *int
}

func (c *countingTool) ListTools(ctx context.Context) []types.ToolDescriptor { return nil }
func (c *countingTool) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	*c.calls++
	return "", c.err
}

func TestDispatchOneTruncatesOversizedOutput(t *testing.T) {
	big := strings.Repeat("x", ToolOutputMaxBytes+100)
	tools := &fakeTools{result: big}
	e := New(&fakeLLM{}, tools, &fakePerms{verdict: types.VerdictAllow}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	out := make(chan Event, 4)
	msg, finished := e.dispatchOne(context.Background(), out, types.ToolUseBlock{ID: "call-1", Name: "read_file", Input: map[string]any{}})

	assert.False(t, finished.IsError)
	assert.LessOrEqual(t, len(finished.Output), ToolOutputMaxBytes+64)
	assert.Contains(t, finished.Output, "[truncated")
	assert.Equal(t, finished.Output, msg.Text())
}

// cancelAwareTool records whether ctx was already cancelled when
// CallTool ran, so a test can prove a detached context was passed.
type cancelAwareTool struct {
	sawCancelled bool
}

func (c *cancelAwareTool) ListTools(ctx context.Context) []types.ToolDescriptor { return nil }
func (c *cancelAwareTool) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	select {
	case <-ctx.Done():
		c.sawCancelled = true
	default:
	}
	return "done", nil
}

func TestDispatchOneDetachesFromCancelledTurnContext(t *testing.T) {
	tools := &cancelAwareTool{}
	e := New(&fakeLLM{}, tools, &fakePerms{verdict: types.VerdictAllow}, &fakeStore{}, newTestSession(), "", "claude", 1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	out := make(chan Event, 4)
	_, finished := e.dispatchOne(ctx, out, types.ToolUseBlock{ID: "call-1", Name: "read_file", Input: map[string]any{}})

	assert.False(t, finished.IsError)
	assert.Equal(t, "done", finished.Output)
	assert.False(t, tools.sawCancelled)
}
