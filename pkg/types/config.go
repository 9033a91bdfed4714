package types

// Config is the resolved runtime configuration assembled by
// internal/config from defaults, the global config file, the project
// config file, and environment overrides (§6).
type Config struct {
	// ProviderDefaults maps a provider tag ("anthropic", "openai",
	// "deepseek", "glm") to its connection defaults.
	ProviderDefaults map[string]ProviderDefault `json:"providerDefaults,omitempty"`

	// DefaultProvider/DefaultModel select the adapter used when a turn
	// doesn't specify one explicitly.
	DefaultProvider string `json:"defaultProvider,omitempty"`
	DefaultModel    string `json:"defaultModel,omitempty"`

	// MaxTurns bounds the tool-use loop (§4.6.1); zero means the
	// built-in default of 10.
	MaxTurns int `json:"maxTurns,omitempty"`

	// MCPServers is the set of MCP servers to connect at startup,
	// keyed by server name, read from .floyd/mcp.json (§6).
	MCPServers map[string]MCPServerDescriptor `json:"mcpServers,omitempty"`

	// PermissionRules is the ordered rule list read from
	// .floyd/permissions.json (§6 [NEW]).
	PermissionRules []PermissionRule `json:"permissionRules,omitempty"`

	// StorageDir overrides the XDG data directory sessions/permissions
	// are persisted under.
	StorageDir string `json:"storageDir,omitempty"`
}

// ProviderDefault is the connection defaults for one LLM provider tag.
type ProviderDefault struct {
	BaseURL   string `json:"baseURL,omitempty"`
	Model     string `json:"model,omitempty"`
	MaxTokens int    `json:"maxTokens,omitempty"`
}
