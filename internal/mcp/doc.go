// Package mcp implements the Model Context Protocol's JSON-RPC 2.0
// wire format directly, rather than delegating to
// github.com/modelcontextprotocol/go-sdk: the pending-request map and
// sweep timer need to be observable and testable from outside, which a
// third-party SDK would hide behind its own connection object.
//
// # Transports
//
// Three concrete transports share the framing in rpc.go:
//
//	StdioClient - spawns a child process, speaks newline-delimited
//	              JSON over its stdin/stdout
//	WSClient    - dials out over a websocket, speaks one JSON object
//	              per text frame
//	Server      - accepts inbound websocket connections and serves a
//	              fixed method set: initialize, tools/list, tools/call,
//	              agent/status
//
// Every outbound transport implements caller, which lets listTools and
// callTool be written once and shared. Every outbound transport also
// runs the same initialize handshake before it is handed back to its
// caller.
//
// # Pending requests
//
// pendingRequests tracks in-flight calls keyed by request id. A
// request that never receives a response — because the server hung,
// or because the connection died before a reply arrived — would
// otherwise block its caller forever. WSClient sweeps pendingRequests
// on a timer, dropping entries older than 60 seconds; StdioClient
// relies on the transport itself dying (child exit) to trigger
// closeAll. Server answers each request inline and keeps no pending
// map.
//
// # Tool registry facade
//
// Server's tools/call delegates to a ToolRegistry rather than reaching
// into the agent engine's tool dispatch internals directly — the
// server only ever sees the two methods it needs.
package mcp
