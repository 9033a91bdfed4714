package event

import "github.com/floydai/floyd/pkg/types"

// SessionCreatedData is the data for session.created events.
type SessionCreatedData struct {
	Info *types.Session `json:"info"`
}

// SessionUpdatedData is the data for session.updated events.
type SessionUpdatedData struct {
	Info *types.Session `json:"info"`
}

// SessionDeletedData is the data for session.deleted events.
type SessionDeletedData struct {
	SessionID string `json:"sessionID"`
}

// MessageAppendedData is the data for message.appended events, fired
// once a message has been fully added to a session's history.
type MessageAppendedData struct {
	SessionID string        `json:"sessionID"`
	Message   types.Message `json:"message"`
}

// ToolStartedData is the data for tool.started events.
type ToolStartedData struct {
	SessionID string         `json:"sessionID"`
	CallID    string         `json:"callID"`
	Tool      string         `json:"tool"`
	Args      map[string]any `json:"args,omitempty"`
}

// ToolFinishedData is the data for tool.finished events.
type ToolFinishedData struct {
	SessionID string `json:"sessionID"`
	CallID    string `json:"callID"`
	Tool      string `json:"tool"`
	Output    string `json:"output,omitempty"`
	IsError   bool   `json:"isError,omitempty"`
}

// PermissionRequiredData is the data for permission.required events,
// published when the Permission Manager must block on a user decision.
type PermissionRequiredData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	Tool      string `json:"tool"`
}

// PermissionResolvedData is the data for permission.resolved events.
// Response is "once" | "session" | "always" | "reject".
type PermissionResolvedData struct {
	RequestID string `json:"requestID"`
	SessionID string `json:"sessionID"`
	Response  string `json:"response"`
}

// MCPServerConnectedData is the data for mcp.server_connected events.
type MCPServerConnectedData struct {
	Name      string `json:"name"`
	ToolCount int    `json:"toolCount"`
}

// MCPServerFailedData is the data for mcp.server_failed events.
type MCPServerFailedData struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}
