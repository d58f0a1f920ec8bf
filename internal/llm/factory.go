package llm

import "fmt"

const (
	// GroqBaseURL is Groq's OpenAI-compatible endpoint.
	GroqBaseURL = "https://api.groq.com/openai/v1"
	// OpenAIBaseURL is the default OpenAI endpoint.
	OpenAIBaseURL = "https://api.openai.com/v1"

	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultGroqModel      = "llama-3.3-70b-versatile"
	DefaultAnthropicModel = "claude-sonnet-4-20250514"
	DefaultGeminiModel    = "gemini-2.0-flash"
)

// ProviderConfig holds what's needed to construct an LLM client.
type ProviderConfig struct {
	Provider    string // "openai", "groq", "anthropic", "gemini"
	Model       string
	APIKey      string
	BaseURL     string   // optional: override API base URL
	Temperature *float64 // optional: sampling temperature for every call
}

// NewFromConfig creates the appropriate Client based on provider name.
// openai and groq speak the same completion protocol and differ only in base
// URL and credential, so both are served by OpenAIClient.
func NewFromConfig(cfg ProviderConfig) (Client, error) {
	switch cfg.Provider {
	case "openai":
		c := NewOpenAIClient("openai", cfg.APIKey, orDefault(cfg.Model, DefaultOpenAIModel), orDefault(cfg.BaseURL, OpenAIBaseURL))
		c.temperature = cfg.Temperature
		return c, nil
	case "groq":
		c := NewOpenAIClient("groq", cfg.APIKey, orDefault(cfg.Model, DefaultGroqModel), orDefault(cfg.BaseURL, GroqBaseURL))
		c.temperature = cfg.Temperature
		return c, nil
	case "anthropic":
		c := NewAnthropicClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		c.temperature = cfg.Temperature
		return c, nil
	case "gemini":
		c := NewGeminiClient(cfg.APIKey, cfg.Model, cfg.BaseURL)
		c.temperature = cfg.Temperature
		return c, nil
	case "":
		return nil, fmt.Errorf("no LLM provider configured (set provider in toolloop.yaml)")
	default:
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: openai, groq, anthropic, gemini)", cfg.Provider)
	}
}

// SupportedProviders lists the provider names NewFromConfig accepts.
func SupportedProviders() []string {
	return []string{"openai", "groq", "anthropic", "gemini"}
}

func orDefault(v, def string) string {
	if v == "" {
		return def
	}
	return v
}
