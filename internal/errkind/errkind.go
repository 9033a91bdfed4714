// Package errkind wraps errors with the classification every component
// uses to decide whether to recover locally or surface a failure (§7):
// ConfigError, TransportError, ProtocolError, ToolParseError,
// PermissionDenied, ToolError, StorageError, ExhaustedTurns, Cancelled.
package errkind

import (
	"errors"
	"fmt"

	"github.com/floydai/floyd/pkg/types"
)

// Error wraps an underlying cause with a Kind, satisfying errors.Is/As
// via Unwrap.
type Error struct {
	Kind  types.ErrorKind
	Cause error
}

func (e *Error) Error() string {
	if e.Cause == nil {
		return string(e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Kind, e.Cause)
}

func (e *Error) Unwrap() error { return e.Cause }

// New builds a classified error.
func New(kind types.ErrorKind, cause error) *Error {
	return &Error{Kind: kind, Cause: cause}
}

// Newf builds a classified error from a format string.
func Newf(kind types.ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Cause: fmt.Errorf(format, args...)}
}

// Is reports whether err is classified with the given kind.
func Is(err error, kind types.ErrorKind) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind == kind
	}
	return false
}

// KindOf extracts the ErrorKind from err, if any, along with whether an
// *Error was found.
func KindOf(err error) (types.ErrorKind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return "", false
}

// remedy gives the single suggested fix surfaced by Humanize, mirroring
// §7's "credential missing -> set the credential and retry" shape.
var remedy = map[types.ErrorKind]string{
	types.ConfigError:      "fix the configuration (credential, MCP entry, or provider tag) and retry",
	types.TransportError:   "check connectivity to the provider or MCP server and retry",
	types.ProtocolError:    "the adapter or transport sent a malformed event; this is not automatically retried",
	types.ToolParseError:   "the model produced unparseable tool arguments; dispatched with empty arguments",
	types.PermissionDenied: "the tool call was blocked by permission policy",
	types.ToolError:        "the tool reported a failure; see its result for detail",
	types.StorageError:     "the session failed to save; retry or check the storage directory",
	types.ExhaustedTurns:   "the turn reached its max_turns limit",
	types.Cancelled:        "the turn was cancelled",
	types.ToolUnavailable:  "the owning MCP client disconnected since the tool was listed; reconnect and retry",
}

// Humanize renders a short, actionable, stack-trace-free message for
// err, per §7's "user-visible rendering" requirement. Errors not
// wrapped by this package render with their plain Error() text.
func Humanize(err error) string {
	if err == nil {
		return ""
	}
	kind, ok := KindOf(err)
	if !ok {
		return err.Error()
	}
	cause := err.Error()
	if r, ok := remedy[kind]; ok {
		return fmt.Sprintf("%s (%s)", cause, r)
	}
	return cause
}
