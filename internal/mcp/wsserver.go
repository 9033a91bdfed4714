package mcp

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"

	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/pkg/types"
)

// ToolRegistry is the minimal public facade the WebSocket server
// dispatches tools/call through — it reaches the Agent Engine's tool
// registry without being granted access to its internals (§6).
type ToolRegistry interface {
	ListTools(ctx context.Context) []types.ToolDescriptor
	CallTool(ctx context.Context, name string, args map[string]any) (string, error)
}

// ServerConfig configures the inbound MCP WebSocket server.
type ServerConfig struct {
	// Addr is the listen address, default "localhost:3000" (served at
	// ws://localhost:3000 per §6).
	Addr string
}

// Server is the inbound side of the MCP WebSocket protocol: it serves
// initialize/tools/list/tools/call/agent-status to whatever external
// client dials in, routed on a chi mux grounded on the teacher's
// go-chi usage elsewhere in the REST API.
type Server struct {
	cfg      ServerConfig
	registry ToolRegistry
	upgrader websocket.Upgrader
	router   chi.Router
}

// NewServer builds a Server that serves cfg.Addr (defaulted to
// "localhost:3000") and dispatches tools/call to registry.
func NewServer(cfg ServerConfig, registry ToolRegistry) *Server {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:3000"
	}

	s := &Server{
		cfg:      cfg,
		registry: registry,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  8192,
			WriteBufferSize: 8192,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet},
	}))
	r.Get("/", s.serveWS)
	s.router = r
	return s
}

// ListenAndServe blocks serving the WebSocket endpoint until ctx is
// cancelled.
func (s *Server) ListenAndServe(ctx context.Context) error {
	httpServer := &http.Server{Addr: s.cfg.Addr, Handler: s.router}

	errCh := make(chan error, 1)
	go func() { errCh <- httpServer.ListenAndServe() }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

func (s *Server) serveWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Logger.Warn().Str("component", "mcp.wsserver").Err(err).Msg("websocket upgrade failed")
		return
	}

	conn2 := &serverConn{conn: conn, registry: s.registry}
	conn2.serve(r.Context())
}

// serverConn is one inbound connection's request/response loop. Unlike
// the client side, the server never initiates a call of its own, so it
// needs no pendingRequests map.
type serverConn struct {
	conn     *websocket.Conn
	registry ToolRegistry
}

func (c *serverConn) serve(ctx context.Context) {
	defer c.conn.Close()
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var req JSONRPCRequest
		if err := json.Unmarshal(data, &req); err != nil {
			c.reply(0, nil, &JSONRPCError{Code: -32700, Message: "parse error"})
			continue
		}
		c.handle(ctx, &req)
	}
}

func (c *serverConn) handle(ctx context.Context, req *JSONRPCRequest) {
	switch req.Method {
	case "initialize":
		c.reply(req.ID, map[string]any{
			"protocolVersion": protocolVersion,
			"serverInfo":      map[string]any{"name": "floyd", "version": "0.1.0"},
			"capabilities":    map[string]any{"tools": map[string]any{}},
		}, nil)

	case "tools/list":
		tools := c.registry.ListTools(ctx)
		c.reply(req.ID, map[string]any{"tools": tools}, nil)

	case "tools/call":
		var params toolCallParams
		if err := json.Unmarshal(mustRawParams(req.Params), &params); err != nil {
			c.reply(req.ID, nil, &JSONRPCError{Code: -32602, Message: "invalid params"})
			return
		}
		result, err := c.registry.CallTool(ctx, params.Name, params.Arguments)
		if err != nil {
			c.reply(req.ID, map[string]any{
				"content": []contentBlock{{Type: "text", Text: err.Error()}},
				"isError": true,
			}, nil)
			return
		}
		c.reply(req.ID, map[string]any{
			"content": []contentBlock{{Type: "text", Text: result}},
			"isError": false,
		}, nil)

	case "agent/status":
		c.reply(req.ID, map[string]any{"status": "ok"}, nil)

	default:
		c.reply(req.ID, nil, &JSONRPCError{Code: -32601, Message: "method not found: " + req.Method})
	}
}

func (c *serverConn) reply(id int64, result any, rpcErr *JSONRPCError) {
	resp := JSONRPCResponse{JSONRPC: "2.0", ID: id, Error: rpcErr}
	if rpcErr == nil {
		raw, err := json.Marshal(result)
		if err != nil {
			resp.Error = &JSONRPCError{Code: -32603, Message: "internal error: " + err.Error()}
		} else {
			resp.Result = raw
		}
	}

	data, err := json.Marshal(resp)
	if err != nil {
		return
	}
	_ = c.conn.WriteMessage(websocket.TextMessage, data)
}

// mustRawParams normalizes req.Params (decoded into `any` by the
// initial JSONRPCRequest unmarshal) back into JSON bytes so it can be
// re-decoded into a concrete params struct.
func mustRawParams(params any) []byte {
	data, err := json.Marshal(params)
	if err != nil {
		return []byte("{}")
	}
	return data
}
