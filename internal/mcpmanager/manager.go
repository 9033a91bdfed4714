// Package mcpmanager implements the MCP Client Manager (C5, §4.5): a
// named set of MCP clients, one per configured server, aggregated into
// a single tool catalogue for the Agent Engine.
package mcpmanager

import (
	"context"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/internal/mcp"
	"github.com/floydai/floyd/pkg/types"
)

// client is the subset of the concrete mcp transports the manager
// needs; mcp.StdioClient and mcp.WSClient both satisfy it.
type client interface {
	ListTools(ctx context.Context) ([]types.ToolDescriptor, error)
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
	Close() error
}

// ConnectResult summarizes one connectFromConfig call (§4.5).
type ConnectResult struct {
	Connected []string
	Failed    map[string]error
}

// Collision records one tool-name collision between two servers,
// retrievable through Diagnostics (§4.5: "the collision record is
// retrievable via a diagnostics accessor").
type Collision struct {
	Tool           string
	KeptServer     string
	RejectedServer string
}

// Manager holds the set of named MCP clients and the aggregated tool
// catalogue built from them.
type Manager struct {
	mu         sync.RWMutex
	clients    map[string]client
	toolCache  map[string][]types.ToolDescriptor // per-client, keyed by server name
	owner      map[string]string                 // tool name -> owning server name
	collisions []Collision
}

// New returns an empty Manager.
func New() *Manager {
	return &Manager{
		clients:   make(map[string]client),
		toolCache: make(map[string][]types.ToolDescriptor),
		owner:     make(map[string]string),
	}
}

// connectOne dials one server descriptor per its transport kind.
func connectOne(ctx context.Context, d types.MCPServerDescriptor) (client, error) {
	switch d.Transport {
	case types.MCPTransportStdio:
		return mcp.DialStdio(ctx, d.Name, d.Command, d.Env)
	case types.MCPTransportWebSocket:
		return mcp.DialWS(ctx, d.Name, d.URL, nil)
	default:
		return nil, errkind.Newf(types.ConfigError, "mcp: server %q has unknown transport %q", d.Name, d.Transport)
	}
}

// ConnectFromConfig connects to every enabled descriptor in parallel
// via errgroup, per SPEC_FULL.md §4.5's adoption of
// golang.org/x/sync/errgroup for "connect N things in parallel,
// collect all results". One server's failure does not abort the
// others: each connect attempt's error is collected, never returned
// from the group.
func (m *Manager) ConnectFromConfig(ctx context.Context, servers []types.MCPServerDescriptor) ConnectResult {
	type outcome struct {
		name string
		c    client
		err  error
	}

	var enabled []types.MCPServerDescriptor
	for _, d := range servers {
		if d.Enabled {
			enabled = append(enabled, d)
		}
	}
	outcomes := make([]outcome, len(enabled))

	// A group is used purely for the WaitGroup-equivalent fan-out; each
	// connect attempt uses the caller's ctx directly, so one server's
	// failure never cancels the others' in-flight dials.
	g := new(errgroup.Group)
	for i, d := range enabled {
		i, d := i, d
		g.Go(func() error {
			c, err := connectOne(ctx, d)
			outcomes[i] = outcome{name: d.Name, c: c, err: err}
			return nil
		})
	}
	_ = g.Wait()

	result := ConnectResult{Failed: make(map[string]error)}
	for _, o := range outcomes {
		if o.err != nil {
			result.Failed[o.name] = o.err
			continue
		}
		m.addClient(o.name, o.c)
		result.Connected = append(result.Connected, o.name)
	}
	m.rebuildCache(ctx)
	return result
}

func (m *Manager) addClient(name string, c client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clients[name] = c
}

// rebuildCache re-lists tools from every connected client and
// recomputes name-collision ownership. The first-registered client
// (in map iteration order over a stable name list) wins a collision;
// every subsequent claimant is logged and recorded (§4.5).
func (m *Manager) rebuildCache(ctx context.Context) {
	m.mu.Lock()
	names := make([]string, 0, len(m.clients))
	clients := make(map[string]client, len(m.clients))
	for name, c := range m.clients {
		names = append(names, name)
		clients[name] = c
	}
	m.mu.Unlock()

	cache := make(map[string][]types.ToolDescriptor, len(names))
	owner := make(map[string]string, len(names))
	var collisions []Collision

	for _, name := range names {
		tools, err := clients[name].ListTools(ctx)
		if err != nil {
			logging.Logger.Warn().
				Str("component", "mcpmanager").
				Str("server", name).
				Err(err).
				Msg("failed to list tools, excluding from aggregate catalogue")
			continue
		}
		cache[name] = tools
		for _, t := range tools {
			if existing, ok := owner[t.Name]; ok {
				collisions = append(collisions, Collision{Tool: t.Name, KeptServer: existing, RejectedServer: name})
				logging.Logger.Warn().
					Str("component", "mcpmanager").
					Str("tool", t.Name).
					Str("kept", existing).
					Str("rejected", name).
					Msg("tool name collision between MCP servers")
				continue
			}
			owner[t.Name] = name
		}
	}

	m.mu.Lock()
	m.toolCache = cache
	m.owner = owner
	m.collisions = collisions
	m.mu.Unlock()
}

// ListTools returns the aggregate tool catalogue across all connected
// clients, collisions already resolved. It takes ctx so Manager
// satisfies mcp.ToolRegistry, the facade the WebSocket server
// dispatches tools/list and tools/call through (§4.4); the cache is
// already built by rebuildCache so ctx goes unused here.
func (m *Manager) ListTools(ctx context.Context) []types.ToolDescriptor {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []types.ToolDescriptor
	for name, tools := range m.toolCache {
		for _, t := range tools {
			if m.owner[t.Name] == name {
				out = append(out, t)
			}
		}
	}
	return out
}

// CallTool dispatches to the client owning name, as recorded by the
// last rebuildCache. If that client has since disconnected, the call
// fails as ToolUnavailable and the aggregate cache is rebuilt so the
// next ListTools reflects the current connection set (§4.5).
func (m *Manager) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	m.mu.RLock()
	serverName, known := m.owner[name]
	var c client
	if known {
		c, known = m.clients[serverName]
	}
	m.mu.RUnlock()

	if !known {
		return "", errkind.Newf(types.ToolUnavailable, "mcp: tool %q has no connected owner", name)
	}

	out, err := c.CallTool(ctx, name, args)
	if err != nil && errkind.Is(err, types.TransportError) {
		m.Disconnect(serverName)
		return "", errkind.Newf(types.ToolUnavailable, "mcp: server %q disconnected while calling %q", serverName, name)
	}
	return out, err
}

// Disconnect closes the named client and rebuilds the aggregate cache
// from the remaining ones.
func (m *Manager) Disconnect(name string) {
	m.mu.Lock()
	c, ok := m.clients[name]
	if ok {
		delete(m.clients, name)
	}
	m.mu.Unlock()

	if ok {
		if err := c.Close(); err != nil {
			logging.Logger.Warn().
				Str("component", "mcpmanager").
				Str("server", name).
				Err(err).
				Msg("error closing MCP client")
		}
	}
	m.rebuildCache(context.Background())
}

// Diagnostics returns every tool-name collision observed by the most
// recent cache rebuild (§4.5).
func (m *Manager) Diagnostics() []Collision {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Collision, len(m.collisions))
	copy(out, m.collisions)
	return out
}

// Close disconnects every client.
func (m *Manager) Close() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[string]client)
	m.mu.Unlock()

	for name, c := range clients {
		if err := c.Close(); err != nil {
			logging.Logger.Warn().
				Str("component", "mcpmanager").
				Str("server", name).
				Err(err).
				Msg("error closing MCP client")
		}
	}
}
