package config

// LLMConfig contains settings for the chat completion backend.
type LLMConfig struct {
	// APIKey enables the streaming LLM path when non-empty. Without it the
	// chat orchestrator serves deterministic fallback responses.
	APIKey string

	// Model is the chat completion model identifier.
	Model string
}

// Enabled reports whether the LLM path is configured.
func (c LLMConfig) Enabled() bool {
	return c.APIKey != ""
}

// LoadLLMConfig reads LLM settings from the environment.
func LoadLLMConfig() LLMConfig {
	return LLMConfig{
		APIKey: getEnv("OPENAI_API_KEY", ""),
		Model:  getEnv("OPENAI_CHAT_MODEL", "gpt-4o-mini"),
	}
}
