package agent

import (
	"context"

	"github.com/floydai/floyd/internal/llm"
	"github.com/floydai/floyd/internal/permission"
	"github.com/floydai/floyd/pkg/types"
)

// MaxTurns bounds one call to SendMessage's tool-use iterations (§4.6.1,
// default 10). Exceeding it ends the turn with ExhaustedTurns.
const MaxTurns = 10

// ContextTokenThreshold triggers trimming when the estimated token count
// of the history exceeds it (§4.6.2, default 120000, below the
// teacher's 150000 — the teacher summarizes instead of dropping, this
// engine drops the oldest non-system messages per the spec).
const ContextTokenThreshold = 120000

// MinRetainedNonSystem is the floor trimHistory will not go below, so at
// least the most recent user turn and assistant reply survive (§4.6.2).
const MinRetainedNonSystem = 2

// ToolCatalogue is the subset of the MCP Client Manager the engine
// needs: the aggregated tool list and dispatch. mcpmanager.Manager and
// mcp.ToolRegistry both satisfy it.
type ToolCatalogue interface {
	ListTools(ctx context.Context) []types.ToolDescriptor
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// PermissionManager is the subset of internal/permission.Manager the
// engine needs to authorize a tool call and record a resolution.
type PermissionManager interface {
	Check(toolName string) types.Verdict
	Grant(toolName string, scope types.GrantScope) error
	Deny(toolName string, scope types.GrantScope) error
}

// SessionStore is the subset of internal/sessionstore.Store the engine
// needs to persist a turn.
type SessionStore interface {
	Save(ctx context.Context, session *types.Session) error
}

// Engine is one bound Agent Engine instance: a single Session, talking
// to one LLM, one tool catalogue, and one permission policy (§4.6
// "Pre: the engine has been bound to a provider, an MCP Client Manager,
// a Permission Manager, and a Session"). A Session is exclusively owned
// by the Engine that opened it (§3); callers must not mutate it
// concurrently.
type Engine struct {
	llm     llm.Client
	tools   ToolCatalogue
	perms   PermissionManager
	store   SessionStore
	session *types.Session

	model     string
	maxTokens int
	maxTurns  int

	// doomLoop is optional; see WithDoomLoopDetector.
	doomLoop *permission.DoomLoopDetector
}

// New binds an Engine to session. If session has no messages yet,
// systemPrompt is inserted as the first message (§3, "the system
// prompt, if present, is the first message and never removed by
// trimming").
func New(llmClient llm.Client, tools ToolCatalogue, perms PermissionManager, store SessionStore, session *types.Session, systemPrompt string, model string, maxTokens int) *Engine {
	if len(session.Messages) == 0 && systemPrompt != "" {
		session.Messages = append(session.Messages, types.NewTextMessage(types.RoleSystem, systemPrompt))
	}
	return &Engine{
		llm:       llmClient,
		tools:     tools,
		perms:     perms,
		store:     store,
		session:   session,
		model:     model,
		maxTokens: maxTokens,
		maxTurns:  MaxTurns,
	}
}

// WithMaxTurns overrides the default iteration bound (§4.6.1,
// config.Load's Config.MaxTurns field). n <= 0 is ignored.
func (e *Engine) WithMaxTurns(n int) *Engine {
	if n > 0 {
		e.maxTurns = n
	}
	return e
}

// Snapshot returns a copy of the session's current message history, the
// read-only access external readers use instead of touching the
// engine-owned Session directly (§5 "Shared resources").
func (e *Engine) Snapshot() []types.Message {
	out := make([]types.Message, len(e.session.Messages))
	copy(out, e.session.Messages)
	return out
}

// SendMessage is the engine's one public operation (§4.6). It appends
// prompt as a user message, runs the tool-use loop to completion, and
// returns a receive-only channel of Events; the channel is closed after
// exactly one ErrorEvent or one DoneEvent. ctx is the cancel token
// (§4.6.4): its cancellation closes the LLM stream, lets any in-flight
// tool dispatch finish, seals the assistant message as incomplete, and
// ends with a normal DoneEvent{Cancelled: true}.
func (e *Engine) SendMessage(ctx context.Context, prompt string) <-chan Event {
	out := make(chan Event, 16)
	go e.runTurn(ctx, prompt, out)
	return out
}
