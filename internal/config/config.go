// Package config loads toolloop settings from built-in defaults, an optional
// YAML (or JSON) file and TOOLLOOP_* environment variables, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"

	"github.com/HexSleeves/toolloop/internal/llm"
)

const (
	// DefaultPath is the config file looked up in the working directory.
	DefaultPath = "toolloop.yaml"
	// EnvPrefix marks environment overrides; "__" separates nesting levels,
	// e.g. TOOLLOOP_AGENT__MAX_ITERATIONS=5.
	EnvPrefix = "TOOLLOOP_"
)

type Config struct {
	// Provider selects the entry of Providers used for every call.
	Provider  string                    `koanf:"provider" yaml:"provider"`
	Providers map[string]ProviderConfig `koanf:"providers" yaml:"providers"`

	Agent     AgentConfig     `koanf:"agent" yaml:"agent"`
	Tools     ToolsConfig     `koanf:"tools" yaml:"tools"`
	State     StateConfig     `koanf:"state" yaml:"state"`
	Telemetry TelemetryConfig `koanf:"telemetry" yaml:"telemetry"`
}

type ProviderConfig struct {
	Model     string `koanf:"model" yaml:"model"`
	BaseURL   string `koanf:"base_url" yaml:"base_url,omitempty"`
	APIKey    string `koanf:"api_key" yaml:"api_key,omitempty"`
	APIKeyEnv string `koanf:"api_key_env" yaml:"api_key_env"`
}

type AgentConfig struct {
	MaxIterations int           `koanf:"max_iterations" yaml:"max_iterations"`
	CallTimeout   time.Duration `koanf:"call_timeout" yaml:"call_timeout"`
	MaxRetries    int           `koanf:"max_retries" yaml:"max_retries"`
	Temperature   *float64      `koanf:"temperature" yaml:"temperature,omitempty"`
	// CompactTokens enables transcript compaction above this estimated size.
	// Zero sends the full history on every call.
	CompactTokens int `koanf:"compact_tokens" yaml:"compact_tokens"`
}

type ToolsConfig struct {
	Prices map[string]int `koanf:"prices" yaml:"prices"`
}

type StateConfig struct {
	Dir    string `koanf:"dir" yaml:"dir"`
	Record bool   `koanf:"record" yaml:"record"`
}

type TelemetryConfig struct {
	Enabled      bool   `koanf:"enabled" yaml:"enabled"`
	Exporter     string `koanf:"exporter" yaml:"exporter"`
	OTLPEndpoint string `koanf:"otlp_endpoint" yaml:"otlp_endpoint,omitempty"`
	OTLPInsecure bool   `koanf:"otlp_insecure" yaml:"otlp_insecure"`
}

func DefaultConfig() *Config {
	return &Config{
		Provider: "openai",
		Providers: map[string]ProviderConfig{
			"openai": {
				Model:     llm.DefaultOpenAIModel,
				BaseURL:   llm.OpenAIBaseURL,
				APIKeyEnv: "OPENAI_API_KEY",
			},
			"groq": {
				Model:     llm.DefaultGroqModel,
				BaseURL:   llm.GroqBaseURL,
				APIKeyEnv: "GROQ_API_KEY",
			},
			"anthropic": {
				Model:     llm.DefaultAnthropicModel,
				APIKeyEnv: "ANTHROPIC_API_KEY",
			},
			"gemini": {
				Model:     llm.DefaultGeminiModel,
				APIKeyEnv: "GEMINI_API_KEY",
			},
		},
		Agent: AgentConfig{
			MaxIterations: 10,
			CallTimeout:   60 * time.Second,
			MaxRetries:    0,
		},
		Tools: ToolsConfig{
			Prices: map[string]int{"bike": 100, "tv": 200, "laptop": 300},
		},
		State: StateConfig{
			Dir:    ".toolloop",
			Record: true,
		},
		Telemetry: TelemetryConfig{
			Exporter: "stdout",
		},
	}
}

// defaults flattens DefaultConfig into koanf keys.
func defaults() map[string]interface{} {
	d := DefaultConfig()
	m := map[string]interface{}{
		"provider":                d.Provider,
		"agent.max_iterations":    d.Agent.MaxIterations,
		"agent.call_timeout":      d.Agent.CallTimeout.String(),
		"agent.max_retries":       d.Agent.MaxRetries,
		"agent.compact_tokens":    d.Agent.CompactTokens,
		"state.dir":               d.State.Dir,
		"state.record":            d.State.Record,
		"telemetry.enabled":       d.Telemetry.Enabled,
		"telemetry.exporter":      d.Telemetry.Exporter,
		"telemetry.otlp_insecure": d.Telemetry.OTLPInsecure,
	}
	for name, p := range d.Providers {
		m["providers."+name+".model"] = p.Model
		m["providers."+name+".base_url"] = p.BaseURL
		m["providers."+name+".api_key_env"] = p.APIKeyEnv
	}
	for product, price := range d.Tools.Prices {
		m["tools.prices."+product] = price
	}
	return m
}

// Load builds the configuration. A missing file is not an error; the
// defaults and environment still apply.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	for key, v := range defaults() {
		if err := k.Set(key, v); err != nil {
			return nil, err
		}
	}

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, err
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	return &cfg, nil
}

// envKey maps TOOLLOOP_AGENT__MAX_ITERATIONS to agent.max_iterations.
func envKey(s string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, EnvPrefix)), "__", ".")
}

// Save writes the configuration as YAML.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return err
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, data, 0644)
}

// Validate rejects settings no run could succeed with.
func (c *Config) Validate() error {
	var problems []string
	if !slices.Contains(llm.SupportedProviders(), c.Provider) {
		problems = append(problems, fmt.Sprintf("unknown provider %q (supported: %s)",
			c.Provider, strings.Join(llm.SupportedProviders(), ", ")))
	}
	if c.Agent.MaxIterations <= 0 {
		problems = append(problems, "agent.max_iterations must be positive")
	}
	if c.Agent.CallTimeout < 0 {
		problems = append(problems, "agent.call_timeout must not be negative")
	}
	if c.Agent.MaxRetries < 0 {
		problems = append(problems, "agent.max_retries must not be negative")
	}
	if c.Agent.CompactTokens < 0 {
		problems = append(problems, "agent.compact_tokens must not be negative")
	}
	if t := c.Agent.Temperature; t != nil && (*t < 0 || *t > 2) {
		problems = append(problems, "agent.temperature must be between 0 and 2")
	}
	for product, price := range c.Tools.Prices {
		if price < 0 {
			problems = append(problems, fmt.Sprintf("tools.prices.%s must not be negative", product))
		}
	}
	if c.Telemetry.Enabled {
		switch c.Telemetry.Exporter {
		case "", "stdout":
		case "otlp":
			if c.Telemetry.OTLPEndpoint == "" {
				problems = append(problems, "telemetry.otlp_endpoint is required for the otlp exporter")
			}
		default:
			problems = append(problems, fmt.Sprintf("unknown telemetry exporter %q", c.Telemetry.Exporter))
		}
	}
	if len(problems) > 0 {
		sort.Strings(problems)
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Credential resolves the API key of a provider: the explicit api_key wins,
// then the environment variable named by api_key_env.
func (c *Config) Credential(provider string) string {
	p := c.Providers[provider]
	if p.APIKey != "" {
		return p.APIKey
	}
	if p.APIKeyEnv != "" {
		return os.Getenv(p.APIKeyEnv)
	}
	return ""
}

// CheckCredentials returns warnings for the selected provider. A missing key
// does not stop startup; the first call fails instead.
func (c *Config) CheckCredentials() []string {
	if c.Credential(c.Provider) != "" {
		return nil
	}
	p := c.Providers[c.Provider]
	if p.APIKeyEnv != "" {
		return []string{fmt.Sprintf("%s is not set; %s calls will fail", p.APIKeyEnv, c.Provider)}
	}
	return []string{fmt.Sprintf("no API key configured for %s; calls will fail", c.Provider)}
}

// LLMConfig builds the client settings for the selected provider.
func (c *Config) LLMConfig() llm.ProviderConfig {
	p := c.Providers[c.Provider]
	return llm.ProviderConfig{
		Provider:    c.Provider,
		Model:       p.Model,
		APIKey:      c.Credential(c.Provider),
		BaseURL:     p.BaseURL,
		Temperature: c.Agent.Temperature,
	}
}

// StatePath joins parts onto the state directory.
func (c *Config) StatePath(parts ...string) string {
	elems := append([]string{c.State.Dir}, parts...)
	return filepath.Join(elems...)
}
