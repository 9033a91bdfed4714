// Package config provides configuration loading, merging, and path
// management for Floyd.
//
// # Configuration Loading
//
// Load implements a layered resolution strategy, merging in priority
// order:
//
//  1. Built-in provider defaults (base URL, model, max tokens per tag)
//  2. Global config (~/.config/floyd/floyd.json)
//  3. Project config (<directory>/.floyd/floyd.json)
//  4. The project's MCP server list (.floyd/mcp.json or mcp.config.json)
//  5. The project's permission rule list (.floyd/permissions.json)
//  6. Environment variables (FLOYD_MODEL, FLOYD_PROVIDER)
//
// # Supported Format
//
// Config files are JSONC (JSON with // and /* */ comments), stripped
// with github.com/tidwall/jsonc before unmarshaling.
//
// # Path Management
//
// Paths follows the XDG Base Directory Specification:
//   - Data: ~/.local/share/floyd (XDG_DATA_HOME)
//   - Config: ~/.config/floyd (XDG_CONFIG_HOME)
//   - Cache: ~/.cache/floyd (XDG_CACHE_HOME)
//   - State: ~/.local/state/floyd (XDG_STATE_HOME)
//
// On Windows these fall back to APPDATA.
//
// # Usage
//
//	cfg, err := config.Load(".")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	paths := config.GetPaths()
//	if err := paths.EnsurePaths(); err != nil {
//	    log.Fatal(err)
//	}
package config
