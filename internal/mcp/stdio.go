package mcp

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"time"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/logging"
	"github.com/floydai/floyd/pkg/types"
)

// StdioClient speaks MCP over a child process's stdin/stdout, grounded
// on the teacher's StdioTransport but rebuilt against pendingRequests so
// the in-flight set is observable and sweepable (§4.4).
type StdioClient struct {
	name string
	cmd  *exec.Cmd
	in   io.WriteCloser

	writeMu     sync.Mutex
	pending     *pendingRequests
	callTimeout time.Duration

	closeOnce sync.Once
	closed    chan struct{}
}

// DialStdio spawns command with env appended to the current environment,
// performs the MCP initialize handshake, and returns a connected client.
func DialStdio(ctx context.Context, name string, command []string, env map[string]string) (*StdioClient, error) {
	if len(command) == 0 {
		return nil, errkind.Newf(types.ConfigError, "mcp: stdio server %q has an empty command", name)
	}

	cmd := exec.CommandContext(ctx, command[0], command[1:]...)
	cmd.Env = os.Environ()
	for k, v := range env {
		cmd.Env = append(cmd.Env, fmt.Sprintf("%s=%s", k, v))
	}

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errkind.New(types.TransportError, err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errkind.New(types.TransportError, err)
	}
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, errkind.New(types.TransportError, err)
	}

	c := &StdioClient{
		name:        name,
		cmd:         cmd,
		in:          stdin,
		pending:     newPendingRequests(nil),
		callTimeout: defaultCallTimeout,
		closed:      make(chan struct{}),
	}
	go c.readLoop(bufio.NewReader(stdout))

	if err := initialize(ctx, c); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// readLoop consumes newline-delimited JSON-RPC responses until stdout
// closes, which happens when the child process exits. An unexpected
// exit fails every still-pending call instead of hanging it forever.
func (c *StdioClient) readLoop(stdout *bufio.Reader) {
	for {
		line, err := stdout.ReadBytes('\n')
		if err != nil {
			c.pending.closeAll(fmt.Errorf("mcp: stdio server %q exited: %w", c.name, err))
			return
		}

		var resp JSONRPCResponse
		if err := json.Unmarshal(line, &resp); err != nil {
			logging.Logger.Warn().
				Str("component", "mcp.stdio").
				Str("server", c.name).
				Err(err).
				Msg("dropping malformed line from server stdout")
			continue
		}
		c.pending.resolve(resp.ID, &resp)
	}
}

// Call implements caller: send a request, wait for its response or for
// ctx to be cancelled, whichever comes first.
func (c *StdioClient) Call(ctx context.Context, method string, params any) (json.RawMessage, error) {
	select {
	case <-c.closed:
		return nil, errkind.Newf(types.TransportError, "mcp: stdio server %q is closed", c.name)
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

// Notify sends a fire-and-forget JSON-RPC notification (no id, no
// response wait).
func (c *StdioClient) Notify(method string, params any) error {
	return c.writeMessage(JSONRPCRequest{JSONRPC: "2.0", Method: method, Params: params})
}

func (c *StdioClient) writeMessage(msg any) error {
	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.in.Write(append(body, '\n'))
	return err
}

// ListTools lists the tools this server exposes.
func (c *StdioClient) ListTools(ctx context.Context) ([]types.ToolDescriptor, error) {
	return listTools(ctx, c)
}

// CallTool invokes one tool and returns its concatenated text result.
func (c *StdioClient) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	return callTool(ctx, c, name, args)
}

// Close terminates the child process and fails any requests still in
// flight. Safe to call more than once.
func (c *StdioClient) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.closed)
		c.pending.closeAll(fmt.Errorf("mcp: stdio server %q closed", c.name))
		c.in.Close()
		if c.cmd.Process != nil {
			err = c.cmd.Process.Kill()
		}
		_ = c.cmd.Wait()
	})
	return err
}
