package llm

import (
	"github.com/floydai/floyd/internal/config"
	"github.com/floydai/floyd/internal/errkind"
	"github.com/floydai/floyd/pkg/types"
)

// anthropicShaped classifies which provider tags speak the Anthropic
// messages API rather than the OpenAI-shaped chat-completions API
// (§4.3: "two adapters" — Anthropic-shaped and OpenAI-shaped, the
// latter serving openai, deepseek, and glm via api.z.ai).
var anthropicShaped = map[string]bool{
	"anthropic": true,
}

// New resolves a Client for the given provider tag using defaults (the
// registry table assembled by internal/config.Load, §9: "one central
// table maps provider tag to base URL, model, max tokens"). Per-call
// overrides (model, max tokens) layer on top via StreamRequest, not
// here — the registry only needs enough to dial the transport.
func New(tag string, defaults map[string]types.ProviderDefault) (Client, error) {
	def, ok := defaults[tag]
	if !ok {
		return nil, errkind.Newf(types.ConfigError, "llm: unknown provider tag %q", tag)
	}

	apiKey := config.APIKey(tag)
	if apiKey == "" {
		envVar, _ := config.CredentialEnvVar(tag)
		return nil, errkind.Newf(types.ConfigError, "llm: no API key for provider %q (set %s)", tag, envVar)
	}

	if anthropicShaped[tag] {
		return newAnthropicClient(def.BaseURL, apiKey, def.Model, def.MaxTokens), nil
	}
	return newOpenAIClient(def.BaseURL, apiKey, def.Model, def.MaxTokens), nil
}
