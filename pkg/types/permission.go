package types

// Verdict is the Permission Manager's answer for a tool name.
type Verdict string

const (
	VerdictAllow Verdict = "allow"
	VerdictAsk   Verdict = "ask"
	VerdictDeny  Verdict = "deny"
)

// PermissionRule pairs a glob pattern over tool names with a verdict.
// Rules are evaluated in order; the first match wins; if nothing
// matches, the default is VerdictAsk (§3).
type PermissionRule struct {
	Pattern string  `json:"pattern"`
	Verdict Verdict `json:"verdict"`
}

// GrantScope controls how long a grant or denial recorded via the
// permission Manager's grant/deny operations remains in effect (§4.2).
type GrantScope string

const (
	ScopeOnce    GrantScope = "once"
	ScopeSession GrantScope = "session"
	ScopeAlways  GrantScope = "always"
)
