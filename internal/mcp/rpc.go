package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/pkg/types"
)

// JSONRPCRequest is one JSON-RPC 2.0 request or notification (ID == 0
// and omitted) framed as a single line of JSON (§4.4).
type JSONRPCRequest struct {
	JSONRPC string `json:"jsonrpc"`
	ID      int64  `json:"id,omitempty"`
	Method  string `json:"method"`
	Params  any    `json:"params,omitempty"`
}

// JSONRPCResponse is a JSON-RPC 2.0 response.
type JSONRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      int64           `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *JSONRPCError   `json:"error,omitempty"`
}

// JSONRPCError is a JSON-RPC 2.0 error object.
type JSONRPCError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    any    `json:"data,omitempty"`
}

func (e *JSONRPCError) Error() string { return e.Message }

// pendingRequests tracks in-flight requests keyed by id, each stamped
// with the time it was registered, so a sweep can drop entries that
// never received a response (§4.4: "the manager periodically drops
// entries older than a threshold"). The clock is injectable so tests
// can scale the 60s default down without sleeping.
type pendingRequests struct {
	mu      sync.Mutex
	nextID  int64
	entries map[int64]*pendingEntry
	now     func() time.Time
}

type pendingEntry struct {
	ch        chan *JSONRPCResponse
	startedAt time.Time
}

func newPendingRequests(now func() time.Time) *pendingRequests {
	if now == nil {
		now = time.Now
	}
	return &pendingRequests{entries: make(map[int64]*pendingEntry), now: now}
}

// register allocates the next request id and a one-slot response
// channel for it.
func (p *pendingRequests) register() (int64, chan *JSONRPCResponse) {
	p.mu.Lock()
	defer p.mu.Unlock()

	id := atomic.AddInt64(&p.nextID, 1)
	ch := make(chan *JSONRPCResponse, 1)
	p.entries[id] = &pendingEntry{ch: ch, startedAt: p.now()}
	return id, ch
}

// resolve delivers resp to the id's waiter, if any is still pending.
func (p *pendingRequests) resolve(id int64, resp *JSONRPCResponse) {
	p.mu.Lock()
	entry, ok := p.entries[id]
	if ok {
		delete(p.entries, id)
	}
	p.mu.Unlock()

	if ok {
		entry.ch <- resp
	}
}

// forget removes an id without delivering a response, used when the
// caller stops waiting (context cancellation).
func (p *pendingRequests) forget(id int64) {
	p.mu.Lock()
	delete(p.entries, id)
	p.mu.Unlock()
}

// sweep closes and removes every entry older than threshold, returning
// the ids it dropped. A dropped entry's channel receives a
// TransportClosed-shaped response so any still-waiting caller unblocks.
func (p *pendingRequests) sweep(threshold time.Duration) []int64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := p.now()
	var dropped []int64
	for id, entry := range p.entries {
		if now.Sub(entry.startedAt) < threshold {
			continue
		}
		entry.ch <- &JSONRPCResponse{
			ID:    id,
			Error: &JSONRPCError{Code: -32000, Message: "request abandoned: no response within threshold"},
		}
		delete(p.entries, id)
		dropped = append(dropped, id)
	}
	return dropped
}

// closeAll fails every still-pending request with TransportClosed, used
// when the underlying connection goes away.
func (p *pendingRequests) closeAll(cause error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for id, entry := range p.entries {
		entry.ch <- &JSONRPCResponse{
			ID:    id,
			Error: &JSONRPCError{Code: -32001, Message: "transport closed: " + cause.Error()},
		}
		delete(p.entries, id)
	}
}

// count reports how many requests are currently in flight (test hook).
func (p *pendingRequests) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.entries)
}

// sweepInterval and sweepThreshold are the production defaults; tests
// call pendingRequests.sweep directly against an injected clock
// (newPendingRequests) to avoid a 60-second sleep.
const (
	sweepInterval  = 15 * time.Second
	sweepThreshold = 60 * time.Second
)

// defaultCallTimeout bounds a single Call independent of the caller's
// own ctx (§5: "MCP requests carry an individual timeout (default 30s)
// enforced by the transport"). Each client stores its own copy so
// tests can shrink it instead of waiting out the production default.
const defaultCallTimeout = 30 * time.Second

// resultOrError decodes a JSON-RPC response's Result, or returns its
// Error as a classified TransportError.
func resultOrError(resp *JSONRPCResponse) (json.RawMessage, error) {
	if resp.Error != nil {
		return nil, errkind.New(types.TransportError, resp.Error)
	}
	return resp.Result, nil
}

// caller is the primitive every transport implements; listTools and
// callTool are expressed once against it so stdio and websocket clients
// share the same MCP method shapes.
type caller interface {
	Call(ctx context.Context, method string, params any) (json.RawMessage, error)
}

// protocolVersion is the MCP wire version floyd speaks.
const protocolVersion = "2024-11-05"

// initializer is a caller that can also fire notifications, needed for
// the initialize handshake's trailing "initialized" notification.
type initializer interface {
	caller
	Notify(method string, params any) error
}

// initialize runs the MCP handshake shared by every transport: an
// initialize request followed by an initialized notification, per
// §4.4.
func initialize(ctx context.Context, c initializer) error {
	params := map[string]any{
		"protocolVersion": protocolVersion,
		"clientInfo": map[string]any{
			"name":    "floyd",
			"version": "0.1.0",
		},
		"capabilities": map[string]any{},
	}
	if _, err := c.Call(ctx, "initialize", params); err != nil {
		return err
	}
	return c.Notify("notifications/initialized", nil)
}

type toolsListResult struct {
	Tools []types.ToolDescriptor `json:"tools"`
}

type toolCallParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type contentBlock struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

type toolCallResult struct {
	Content []contentBlock `json:"content"`
	IsError bool           `json:"isError"`
}

// listTools implements §4.5's "aggregates across clients" building
// block for a single client: one JSON-RPC tools/list call.
func listTools(ctx context.Context, c caller) ([]types.ToolDescriptor, error) {
	raw, err := c.Call(ctx, "tools/list", nil)
	if err != nil {
		return nil, err
	}
	var result toolsListResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, errkind.New(types.ProtocolError, err)
	}
	return result.Tools, nil
}

// callTool implements one client's tools/call dispatch, concatenating
// text content blocks into a single result string.
func callTool(ctx context.Context, c caller, name string, args map[string]any) (string, error) {
	raw, err := c.Call(ctx, "tools/call", toolCallParams{Name: name, Arguments: args})
	if err != nil {
		return "", err
	}
	var result toolCallResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return "", errkind.New(types.ProtocolError, err)
	}

	var text strings.Builder
	for _, block := range result.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if result.IsError {
		return "", errkind.New(types.ToolError, errors.New(text.String()))
	}
	return text.String(), nil
}
