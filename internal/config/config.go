// Package config provides configuration loading, merging, and path
// management for Floyd.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/pkg/types"
	"github.com/tidwall/jsonc"
)

// providerEnvVar maps a provider tag to the environment variable its
// credential is read from. The exact names are a collaborator concern
// (§6); this table is the core's default guess.
var providerEnvVar = map[string]string{
	"anthropic": "ANTHROPIC_API_KEY",
	"openai":    "OPENAI_API_KEY",
	"deepseek":  "DEEPSEEK_API_KEY",
	"glm":       "GLM_API_KEY",
}

// builtinProviderDefaults seeds the provider registry (§9, "one central
// table maps provider tag to base URL, model, max tokens").
var builtinProviderDefaults = map[string]types.ProviderDefault{
	"anthropic": {BaseURL: "https://api.anthropic.com", Model: "claude-sonnet-4-20250514", MaxTokens: 8192},
	"openai":    {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o", MaxTokens: 8192},
	"deepseek":  {BaseURL: "https://api.deepseek.com/v1", Model: "deepseek-chat", MaxTokens: 8192},
	"glm":       {BaseURL: "https://api.z.ai/v1", Model: "glm-4.6", MaxTokens: 8192},
}

// Load resolves a Config by merging, in priority order: built-in
// provider defaults, the global config file, the project config file,
// the project's MCP server list, the project's permission rules, and
// environment overrides.
func Load(directory string) (*types.Config, error) {
	cfg := &types.Config{
		ProviderDefaults: cloneProviderDefaults(),
		DefaultProvider:  "anthropic",
		MaxTurns:         10,
	}

	if err := loadConfigFile(GlobalConfigPath(), cfg); err != nil {
		return nil, err
	}
	if directory != "" {
		if err := loadConfigFile(ProjectConfigPath(directory), cfg); err != nil {
			return nil, err
		}

		servers, err := LoadMCPServers(directory)
		if err != nil {
			return nil, err
		}
		if servers != nil {
			cfg.MCPServers = make(map[string]types.MCPServerDescriptor, len(servers))
			for _, s := range servers {
				cfg.MCPServers[s.Name] = s
			}
		}

		rules, err := LoadPermissionRules(directory)
		if err != nil {
			return nil, err
		}
		cfg.PermissionRules = rules
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func cloneProviderDefaults() map[string]types.ProviderDefault {
	out := make(map[string]types.ProviderDefault, len(builtinProviderDefaults))
	for k, v := range builtinProviderDefaults {
		out[k] = v
	}
	return out
}

// loadConfigFile merges one JSONC config file into cfg. A missing file
// is not an error.
func loadConfigFile(path string, cfg *types.Config) error {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return errkind.New(types.ConfigError, err)
	}

	var file types.Config
	if err := json.Unmarshal(jsonc.ToJSON(data), &file); err != nil {
		return errkind.New(types.ConfigError, err)
	}
	mergeConfig(cfg, &file)
	return nil
}

// mergeConfig overlays source onto target, last-write-wins per field.
func mergeConfig(target, source *types.Config) {
	if source.DefaultProvider != "" {
		target.DefaultProvider = source.DefaultProvider
	}
	if source.DefaultModel != "" {
		target.DefaultModel = source.DefaultModel
	}
	if source.MaxTurns != 0 {
		target.MaxTurns = source.MaxTurns
	}
	if source.StorageDir != "" {
		target.StorageDir = source.StorageDir
	}
	for tag, d := range source.ProviderDefaults {
		if target.ProviderDefaults == nil {
			target.ProviderDefaults = make(map[string]types.ProviderDefault)
		}
		target.ProviderDefaults[tag] = d
	}
}

// applyEnvOverrides layers environment variables over the resolved
// config, the highest-precedence source.
func applyEnvOverrides(cfg *types.Config) {
	if model := os.Getenv("FLOYD_MODEL"); model != "" {
		cfg.DefaultModel = model
	}
	if provider := os.Getenv("FLOYD_PROVIDER"); provider != "" {
		cfg.DefaultProvider = provider
	}
	// Presence of a provider's credential env var doesn't change the
	// config shape (credentials aren't stored in Config — §6 leaves
	// resolution to the caller), but an unset credential for the
	// selected provider is surfaced by internal/llm at dial time.
}

// CredentialEnvVar returns the environment variable a provider tag's API
// key is read from, and whether the tag is known.
func CredentialEnvVar(tag string) (string, bool) {
	v, ok := providerEnvVar[tag]
	return v, ok
}

// APIKey resolves the credential for a provider tag from its
// environment variable. An empty result means the variable is unset or
// the tag is unknown; the caller (internal/llm) classifies that as a
// ConfigError at dial time.
func APIKey(tag string) string {
	v, ok := providerEnvVar[tag]
	if !ok {
		return ""
	}
	return os.Getenv(v)
}

// Save writes cfg as indented JSON to path, creating parent directories
// as needed.
func Save(cfg *types.Config, path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errkind.New(types.ConfigError, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return errkind.New(types.ConfigError, err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return errkind.New(types.ConfigError, err)
	}
	return nil
}
