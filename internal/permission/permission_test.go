package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/pkg/types"
)

func TestCheckDefaultsToAskWithNoRules(t *testing.T) {
	mgr := New("", nil)
	assert.Equal(t, types.VerdictAsk, mgr.Check("shell"))
}

func TestCheckFirstMatchWins(t *testing.T) {
	mgr := New("", []types.PermissionRule{
		{Pattern: "read_*", Verdict: types.VerdictAllow},
		{Pattern: "*", Verdict: types.VerdictDeny},
	})
	assert.Equal(t, types.VerdictAllow, mgr.Check("read_file"))
	assert.Equal(t, types.VerdictDeny, mgr.Check("shell"))
}

func TestGrantOnceIsConsumedBySingleCheck(t *testing.T) {
	mgr := New("", []types.PermissionRule{{Pattern: "*", Verdict: types.VerdictDeny}})
	require.NoError(t, mgr.Grant("shell", types.ScopeOnce))

	assert.Equal(t, types.VerdictAllow, mgr.Check("shell"))
	assert.Equal(t, types.VerdictDeny, mgr.Check("shell")) // consumed
}

func TestGrantSessionPersistsUntilReset(t *testing.T) {
	mgr := New("", []types.PermissionRule{{Pattern: "*", Verdict: types.VerdictDeny}})
	require.NoError(t, mgr.Grant("shell", types.ScopeSession))

	assert.Equal(t, types.VerdictAllow, mgr.Check("shell"))
	assert.Equal(t, types.VerdictAllow, mgr.Check("shell"))

	require.NoError(t, mgr.Reset("shell"))
	assert.Equal(t, types.VerdictDeny, mgr.Check("shell"))
}

func TestGrantAlwaysPersistsToDisk(t *testing.T) {
	dir := t.TempDir()
	mgr := New(dir, nil)
	require.NoError(t, mgr.Grant("shell", types.ScopeAlways))

	assert.Equal(t, types.VerdictAllow, mgr.Check("shell"))

	rules, err := config.LoadPermissionRules(dir)
	require.NoError(t, err)
	require.Len(t, rules, 1)
	assert.Equal(t, "shell", rules[0].Pattern)
	assert.Equal(t, types.VerdictAllow, rules[0].Verdict)
}

func TestDenyAlwaysTakesPriorityOverBroaderAllow(t *testing.T) {
	mgr := New("", []types.PermissionRule{{Pattern: "*", Verdict: types.VerdictAllow}})
	require.NoError(t, mgr.Deny("shell", types.ScopeAlways))

	assert.Equal(t, types.VerdictDeny, mgr.Check("shell"))
	assert.Equal(t, types.VerdictAllow, mgr.Check("read_file"))
}

func TestResetRemovesPersistedAlwaysRule(t *testing.T) {
	dir := t.TempDir()
	mgr := New(dir, nil)
	require.NoError(t, mgr.Grant("shell", types.ScopeAlways))
	require.NoError(t, mgr.Reset("shell"))

	assert.Equal(t, types.VerdictAsk, mgr.Check("shell"))

	rules, err := config.LoadPermissionRules(dir)
	require.NoError(t, err)
	assert.Empty(t, rules)
}

func TestGrantAlwaysWithNoDirectoryDoesNotError(t *testing.T) {
	mgr := New("", nil)
	require.NoError(t, mgr.Grant("shell", types.ScopeAlways))
	assert.Equal(t, types.VerdictAllow, mgr.Check("shell"))
}

func TestUnknownScopeIsConfigError(t *testing.T) {
	mgr := New("", nil)
	err := mgr.Grant("shell", types.GrantScope("bogus"))
	require.Error(t, err)
}

func TestLoadPersistedRulesOnConstruction(t *testing.T) {
	dir := t.TempDir()
	rules := []types.PermissionRule{{Pattern: "*", Verdict: types.VerdictAsk}}
	require.NoError(t, config.SavePermissionRules(dir, rules))

	loaded, err := config.LoadPermissionRules(dir)
	require.NoError(t, err)
	mgr := New(dir, loaded)
	assert.Equal(t, types.VerdictAsk, mgr.Check("anything"))

	// sanity: the file really is on disk at the documented path
	_, err = os.Stat(filepath.Join(dir, ".floyd", "permissions.json"))
	require.NoError(t, err)
}
