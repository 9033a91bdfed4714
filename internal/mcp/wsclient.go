package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/pkg/types"
)

// WSClient speaks MCP over an outbound websocket connection, grounded
// on the dial/readLoop/writeLoop split in haasonsaas-nexus's
// wsControlPlane, rebuilt against pendingRequests for id-routed
// responses and a periodic sweep of abandoned calls (§4.4).
type WSClient struct {
	name string
	conn *websocket.Conn

	writeMu     sync.Mutex
	pending     *pendingRequests
	callTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
	sweepStop chan struct{}
}

// DialWS connects to url, performs the initialize handshake, and
// starts the background sweep goroutine that drops requests older
// than sweepThreshold.
func DialWS(ctx context.Context, name, url string, headers map[string]string) (*WSClient, error) {
	header := make(map[string][]string, len(headers))
	for k, v := range headers {
		header[k] = []string{v}
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, errkind.New(types.TransportError, err)
	}

	c := &WSClient{
		name:        name,
		conn:        conn,
		pending:     newPendingRequests(nil),
		callTimeout: defaultCallTimeout,
		closed:      make(chan struct{}),
		sweepStop:   make(chan struct{}),
	}
	go c.readLoop()
	go c.sweepLoop(sweepInterval, sweepThreshold)

	if err := initialize(ctx, c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

func (c *WSClient) readLoop() {
	for {
		_, data, err := c.conn.ReadMessage()
		if err != nil {
			c.pending.closeAll(fmt.Errorf("mcp: websocket server %q disconnected: %w", c.name, err))
			return
		}

		var resp JSONRPCResponse
		if err := json.Unmarshal(data, &resp); err != nil {
			logging.Logger.Warn().
				Str("component", "mcp.wsclient").
				Str("server", c.name).
				Err(err).
				Msg("dropping malformed frame from server")
			continue
		}
		c.pending.resolve(resp.ID, &resp)
	}
}

// sweepLoop periodically drops requests that never received a
// response, so a server that silently stops answering cannot leak
// goroutines blocked forever on Call.
func (c *WSClient) sweepLoop(interval, threshold time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-c.sweepStop:
			return
		case <-ticker.C:
			if dropped := c.pending.sweep(threshold); len(dropped) > 0 {
				logging.Logger.Warn().
					Str("component", "mcp.wsclient").
					Str("server", c.name).
					Int("count", len(dropped)).
					Msg("dropped requests with no response within threshold")
			}
		}
	}
}

// Call implements caller.
func (c *WSClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, errkind.Newf(types.TransportError, "mcp: websocket server %q is closed", c.name)
	default:
	}

	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	id, ch := c.pending.register()
	req := JSONRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params}
	if err := c.writeMessage(req); err != nil {
		c.pending.forget(id)
		return nil, errkind.New(types.TransportError, err)
	}

	select {
	case resp := <-ch:
		return resultOrError(resp)
	case <-ctx.Done():
		c.pending.forget(id)
		return nil, errkind.New(types.Cancelled, ctx.Err())
	}
}

// Notify sends a fire-and-forget notification.
func (c *WSClient) Notify(method string, params any) error {
	return c.writeMessage(JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *WSClient) writeMessage(msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return c.conn.WriteMessage(websocket.TextMessage, body)
}

// ListTools lists the tools this server exposes.
func (c *WSClient) ListTools(ctx context.Context) ([]types.ToolDescriptor, error) {
	return listTools(ctx, c)
}

// CallTool invokes one tool and returns its concatenated text result.
func (c *WSClient) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return callTool(ctx, c, name, args)
}

// Close tears down the connection and the sweep goroutine, failing any
// requests still in flight. Safe to call more than once.
func (c *WSClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		close(c.sweepStop)
		c.pending.closeAll(fmt.Errorf("mcp: websocket server %q closed", c.name))
		err = c.conn.Close()
	})
	return err
}
