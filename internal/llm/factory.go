package llm

import (
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/docverify/internal/model"
)

// NewProvider creates a new LLM provider based on configuration
func NewProvider(config Config) (Provider, error) {
	provider := strings.ToLower(config.Provider)

	switch provider {
	case "openai":
		return NewOpenAIProvider(config)

	case "anthropic", "claude":
		return NewAnthropicProvider(config)

	case "ollama":
		return NewOllamaProvider(config)

	case "":
		// No provider configured - return nil (offline mode)
		return nil, nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (supported: openai, anthropic, ollama)", config.Provider)
	}
}

// ConfigFromModel converts the loaded configuration to llm.Config.
// API keys and the Ollama URL fall back to the usual environment variables.
func ConfigFromModel(llmCfg model.LLMConfig, httpCfg model.HTTPConfig) Config {
	cfg := Config{
		Provider:    llmCfg.Provider,
		Model:       llmCfg.Model,
		APIKey:      llmCfg.APIKey,
		BaseURL:     llmCfg.BaseURL,
		Timeout:     llmCfg.Timeout,
		MaxTokens:   llmCfg.MaxTokens,
		Temperature: llmCfg.Temperature,
		MaxRetries:  llmCfg.MaxRetries,
		HTTPProxy:   httpCfg.HTTPProxy,
		HTTPSProxy:  httpCfg.HTTPSProxy,
		NoProxy:     httpCfg.NoProxy,
	}

	switch strings.ToLower(cfg.Provider) {
	case "openai":
		cfg.APIKey = pick(cfg.APIKey, os.Getenv("OPENAI_API_KEY"))
	case "anthropic", "claude":
		cfg.APIKey = pick(cfg.APIKey, os.Getenv("ANTHROPIC_API_KEY"))
	case "ollama":
		cfg.BaseURL = pick(cfg.BaseURL, os.Getenv("OLLAMA_BASE_URL"))
	}
	return cfg
}
