package types

// MCPTransportKind selects how the Client Manager reaches an MCP server.
type MCPTransportKind string

const (
	MCPTransportStdio     MCPTransportKind = "stdio"
	MCPTransportWebSocket MCPTransportKind = "websocket"
)

// MCPServerDescriptor configures one MCP server connection, read from
// .floyd/mcp.json (§6). Command/Args/Env apply to Transport == stdio;
// URL applies to Transport == websocket.
type MCPServerDescriptor struct {
	Name      string           `json:"name"`
	Transport MCPTransportKind `json:"transport"`
	Enabled   bool             `json:"enabled"`

	Command []string          `json:"command,omitempty"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`

	URL string `json:"url,omitempty"`
}
