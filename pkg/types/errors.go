package types

// ErrorKind is the error taxonomy shared by every component (§7). It is
// defined here, not in internal/errkind, so that StreamEvent's error
// variant can carry it without an import cycle.
type ErrorKind string

const (
	ConfigError      ErrorKind = "config_error"
	TransportError   ErrorKind = "transport_error"
	ProtocolError    ErrorKind = "protocol_error"
	ToolParseError   ErrorKind = "tool_parse_error"
	PermissionDenied ErrorKind = "permission_denied"
	ToolError        ErrorKind = "tool_error"
	StorageError     ErrorKind = "storage_error"
	ExhaustedTurns   ErrorKind = "exhausted_turns"
	Cancelled        ErrorKind = "cancelled"
	ToolUnavailable  ErrorKind = "tool_unavailable"
)
