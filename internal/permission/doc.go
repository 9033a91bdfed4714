// Package permission implements the Permission Manager (C2, §4.2): a
// pattern-based authorization verdict for a tool name, consulted by the
// Agent Engine before every tool call.
//
// # Rule evaluation
//
// A permission rule is a pair (glob pattern, verdict), evaluated in
// declaration order; the first matching pattern wins. If no rule
// matches, the default verdict is Ask. Patterns support "*" and
// "prefix-*" style globs via github.com/bmatcuk/doublestar/v4.
//
//	mgr := permission.New(directory, rules)
//	switch mgr.Check("shell") {
//	case types.VerdictAllow:
//	case types.VerdictDeny:
//	case types.VerdictAsk:
//	    // pause the turn, surface a resolution event
//	}
//
// # Grant scopes
//
// Grant and Deny record a verdict at one of three scopes:
//   - once: consumed by the very next Check for that tool name.
//   - session: held in memory until the process exits.
//   - always: persisted through internal/config to
//     .floyd/permissions.json, surviving process restarts.
//
// Reset removes any session or always override for a tool name,
// reverting to the original rule list (or the Ask default).
//
// The Manager only computes verdicts; it never blocks. When Check
// returns Ask, the caller is responsible for pausing its turn, emitting
// a permission.required event (PublishRequired), waiting for a
// resolution, and feeding the answer back through Grant/Deny
// (PublishResolved once resolved).
package permission
