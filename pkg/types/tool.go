package types

import "encoding/json"

// ToolDescriptor is a tool's name, description, and argument schema, as
// handed to an LLM adapter and returned by the MCP Client Manager's
// listTools().
type ToolDescriptor struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"inputSchema"`
}
