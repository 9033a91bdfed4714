// Package permission implements the Permission Manager: a pattern-based
// allow/ask/deny policy consulted before every tool call (§4.2).
//
// The Manager computes verdicts only; it never blocks waiting on a user.
// When Check returns Ask, the caller (the Agent Engine) is responsible
// for pausing the turn, surfacing a resolution event, and feeding the
// result back through Grant/Deny.
package permission

import (
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/internal/event"
	"github.com/floydai/floyd/pkg/types"
)

// Manager holds the ordered rule list plus any in-memory overrides
// granted during the life of the process.
type Manager struct {
	mu        sync.Mutex
	directory string

	// rules is the persisted, ordered (pattern, verdict) list — first
	// match wins, default is Ask (§4.2). "always" grants/denies are
	// prepended here and written back to disk.
	rules []types.PermissionRule

	// sessionOverrides last until the process exits; never persisted.
	sessionOverrides map[string]types.Verdict

	// onceOverrides are consumed by the very next Check for that tool.
	onceOverrides map[string]types.Verdict
}

// New creates a Manager over the given rule list, loaded from
// internal/config at startup. directory is where "always" grants are
// persisted (.floyd/permissions.json); it may be empty if persistence
// isn't available (e.g. headless/no-project contexts), in which case
// "always" behaves like "session".
func New(directory string, rules []types.PermissionRule) *Manager {
	return &Manager{
		directory:        directory,
		rules:            append([]types.PermissionRule(nil), rules...),
		sessionOverrides: make(map[string]types.Verdict),
		onceOverrides:    make(map[string]types.Verdict),
	}
}

// Check returns the verdict for toolName: deterministic, O(len(rules)).
// Patterns support "*" and "prefix-*" globs via doublestar.
func (m *Manager) Check(toolName string) types.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()

	if v, ok := m.onceOverrides[toolName]; ok {
		delete(m.onceOverrides, toolName)
		return v
	}
	if v, ok := m.sessionOverrides[toolName]; ok {
		return v
	}
	return m.matchRules(toolName)
}

func (m *Manager) matchRules(toolName string) types.Verdict {
	for _, rule := range m.rules {
		ok, err := doublestar.Match(rule.Pattern, toolName)
		if err != nil {
			continue // malformed pattern: skip, don't fail the whole check
		}
		if ok {
			return rule.Verdict
		}
	}
	return types.VerdictAsk
}

// Grant records an approval for toolName at the given scope.
func (m *Manager) Grant(toolName string, scope types.GrantScope) error {
	return m.record(toolName, types.VerdictAllow, scope)
}

// Deny records a denial for toolName at the given scope, symmetric with
// Grant.
func (m *Manager) Deny(toolName string, scope types.GrantScope) error {
	return m.record(toolName, types.VerdictDeny, scope)
}

func (m *Manager) record(toolName string, verdict types.Verdict, scope types.GrantScope) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	switch scope {
	case types.ScopeOnce:
		m.onceOverrides[toolName] = verdict
		return nil
	case types.ScopeSession:
		m.sessionOverrides[toolName] = verdict
		return nil
	case types.ScopeAlways:
		m.rules = prependRule(m.rules, types.PermissionRule{Pattern: toolName, Verdict: verdict})
		return m.persistLocked()
	}
	return errkind.Newf(types.ConfigError, "permission: unknown grant scope %q", scope)
}

// Reset removes any session or always override recorded for toolName,
// falling back to whatever the original rule list (or the Ask default)
// decides.
func (m *Manager) Reset(toolName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.sessionOverrides, toolName)
	delete(m.onceOverrides, toolName)

	filtered := m.rules[:0:0]
	removed := false
	for _, rule := range m.rules {
		if rule.Pattern == toolName {
			removed = true
			continue
		}
		filtered = append(filtered, rule)
	}
	m.rules = filtered

	if !removed {
		return nil
	}
	return m.persistLocked()
}

// persistLocked writes the current rule list to .floyd/permissions.json.
// Caller must hold m.mu. A Manager without a directory (e.g. a headless
// run with no project context) treats "always" as "session" instead.
func (m *Manager) persistLocked() error {
	if m.directory == "" {
		return nil
	}
	if err := config.SavePermissionRules(m.directory, m.rules); err != nil {
		return err
	}
	return nil
}

// prependRule inserts rule at the front so it takes priority over any
// broader existing rule, matching first-match-wins semantics.
func prependRule(rules []types.PermissionRule, rule types.PermissionRule) []types.PermissionRule {
	out := make([]types.PermissionRule, 0, len(rules)+1)
	out = append(out, rule)
	out = append(out, rules...)
	return out
}

// PublishRequired emits the permission.required event the Agent Engine
// raises when Check returns Ask and the turn must pause for a
// resolution (§5).
func PublishRequired(requestID, sessionID, tool string) {
	event.Publish(event.Event{
		Type: event.PermissionRequired,
		Data: event.PermissionRequiredData{RequestID: requestID, SessionID: sessionID, Tool: tool},
	})
}

// PublishResolved emits the permission.resolved event once a pause is
// answered. response is one of "once", "session", "always", "reject".
func PublishResolved(requestID, sessionID, response string) {
	event.Publish(event.Event{
		Type: event.PermissionResolved,
		Data: event.PermissionResolvedData{RequestID: requestID, SessionID: sessionID, Response: response},
	})
}
