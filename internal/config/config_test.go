package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/floydai/floyd/pkg/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func isolateHome(t *testing.T) string {
	t.Helper()
	tmpDir := t.TempDir()
	oldHome := os.Getenv("HOME")
	oldXDGConfig := os.Getenv("XDG_CONFIG_HOME")
	os.Setenv("HOME", tmpDir)
	os.Unsetenv("XDG_CONFIG_HOME")
	t.Cleanup(func() {
		os.Setenv("HOME", oldHome)
		os.Setenv("XDG_CONFIG_HOME", oldXDGConfig)
	})
	return tmpDir
}

func TestLoadDefaultsWithNoFiles(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "anthropic", cfg.DefaultProvider)
	assert.Equal(t, 10, cfg.MaxTurns)
	assert.Equal(t, "https://api.anthropic.com", cfg.ProviderDefaults["anthropic"].BaseURL)
	assert.Empty(t, cfg.MCPServers)
	assert.Empty(t, cfg.PermissionRules)
}

func TestLoadProjectConfigOverridesGlobal(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	projectCfg := `{
		// project overrides
		"defaultModel": "claude-opus-4-20250514",
		"maxTurns": 20
	}`
	path := ProjectConfigPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(projectCfg), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "claude-opus-4-20250514", cfg.DefaultModel)
	assert.Equal(t, 20, cfg.MaxTurns)
}

func TestLoadMCPServers(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	mcpJSON := `{
  "version": "1.0",
  "servers": [
    { "name": "calc", "enabled": true,
      "transport": { "type": "stdio", "command": "floyd-calculator-mcp", "args": [] } },
    { "name": "remote", "enabled": false,
      "transport": { "type": "websocket", "url": "ws://localhost:4000" } }
  ]
}`
	path := MCPConfigPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(mcpJSON), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, cfg.MCPServers, 2)

	calc := cfg.MCPServers["calc"]
	assert.True(t, calc.Enabled)
	assert.Equal(t, types.MCPTransportStdio, calc.Transport)
	assert.Equal(t, "floyd-calculator-mcp", calc.Command[0])

	remote := cfg.MCPServers["remote"]
	assert.False(t, remote.Enabled)
	assert.Equal(t, types.MCPTransportWebSocket, remote.Transport)
	assert.Equal(t, "ws://localhost:4000", remote.URL)
}

func TestLoadMCPServersUnknownTransportIsConfigError(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	mcpJSON := `{"version":"1.0","servers":[{"name":"x","enabled":true,"transport":{"type":"carrier-pigeon"}}]}`
	path := MCPConfigPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(mcpJSON), 0644))

	_, err := Load(dir)
	require.Error(t, err)
}

func TestLoadPermissionRules(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	rulesJSON := `[
  {"pattern": "read_*", "verdict": "allow"},
  {"pattern": "shell", "verdict": "ask"},
  {"pattern": "*", "verdict": "deny"}
]`
	path := PermissionsPath(dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(rulesJSON), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	require.Len(t, cfg.PermissionRules, 3)
	assert.Equal(t, types.VerdictAllow, cfg.PermissionRules[0].Verdict)
	assert.Equal(t, types.VerdictDeny, cfg.PermissionRules[2].Verdict)
}

func TestEnvOverridesWinOverFiles(t *testing.T) {
	isolateHome(t)
	dir := t.TempDir()

	os.Setenv("FLOYD_MODEL", "gpt-4o-mini")
	os.Setenv("FLOYD_PROVIDER", "openai")
	t.Cleanup(func() {
		os.Unsetenv("FLOYD_MODEL")
		os.Unsetenv("FLOYD_PROVIDER")
	})

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", cfg.DefaultModel)
	assert.Equal(t, "openai", cfg.DefaultProvider)
}

func TestSaveAndLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "floyd.json")
	cfg := &types.Config{DefaultProvider: "anthropic", MaxTurns: 7}

	require.NoError(t, Save(cfg, path))

	isolateHome(t)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".floyd"), 0755))
	require.NoError(t, copyFile(path, ProjectConfigPath(dir)))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.MaxTurns)
}

func copyFile(src, dst string) error {
	data, err := os.ReadFile(src)
	if err != nil {
		return err
	}
	return os.WriteFile(dst, data, 0644)
}

func TestSavePermissionRulesRoundTrip(t *testing.T) {
	dir := t.TempDir()
	rules := []types.PermissionRule{
		{Pattern: "shell", Verdict: types.VerdictAsk},
		{Pattern: "*", Verdict: types.VerdictDeny},
	}
	require.NoError(t, SavePermissionRules(dir, rules))

	loaded, err := LoadPermissionRules(dir)
	require.NoError(t, err)
	assert.Equal(t, rules, loaded)
}
