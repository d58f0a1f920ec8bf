package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/HexSleeves/toolloop/internal/llm"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Provider != "openai" {
		t.Errorf("Provider = %q, want openai", cfg.Provider)
	}
	if cfg.Agent.MaxIterations != 10 {
		t.Errorf("Agent.MaxIterations = %d, want 10", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.CallTimeout != 60*time.Second {
		t.Errorf("Agent.CallTimeout = %v, want 60s", cfg.Agent.CallTimeout)
	}
	if cfg.Agent.MaxRetries != 0 {
		t.Errorf("Agent.MaxRetries = %d, want 0", cfg.Agent.MaxRetries)
	}
	if cfg.Providers["groq"].BaseURL != llm.GroqBaseURL {
		t.Errorf("groq base URL = %q", cfg.Providers["groq"].BaseURL)
	}
	if cfg.Providers["groq"].Model != "llama-3.3-70b-versatile" {
		t.Errorf("groq model = %q", cfg.Providers["groq"].Model)
	}
	if cfg.Tools.Prices["laptop"] != 300 {
		t.Errorf("laptop price = %d", cfg.Tools.Prices["laptop"])
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config invalid: %v", err)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Agent.MaxIterations != 10 || cfg.Agent.CallTimeout != time.Minute {
		t.Errorf("unexpected defaults %+v", cfg.Agent)
	}
	if cfg.Providers["openai"].APIKeyEnv != "OPENAI_API_KEY" {
		t.Errorf("openai api_key_env = %q", cfg.Providers["openai"].APIKeyEnv)
	}
	if !cfg.State.Record {
		t.Error("State.Record should default to true")
	}
	if cfg.Agent.Temperature != nil {
		t.Errorf("Temperature should be unset, got %v", *cfg.Agent.Temperature)
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolloop.yaml")
	content := `provider: groq
providers:
  groq:
    model: mixtral-8x7b
agent:
  max_iterations: 4
  call_timeout: 15s
  temperature: 0.5
tools:
  prices:
    phone: 500
`
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "groq" {
		t.Errorf("Provider = %q", cfg.Provider)
	}
	if cfg.Providers["groq"].Model != "mixtral-8x7b" {
		t.Errorf("groq model = %q", cfg.Providers["groq"].Model)
	}
	if cfg.Providers["groq"].BaseURL != llm.GroqBaseURL {
		t.Errorf("groq base URL lost when overriding model: %q", cfg.Providers["groq"].BaseURL)
	}
	if cfg.Agent.MaxIterations != 4 || cfg.Agent.CallTimeout != 15*time.Second {
		t.Errorf("agent = %+v", cfg.Agent)
	}
	if cfg.Agent.Temperature == nil || *cfg.Agent.Temperature != 0.5 {
		t.Errorf("temperature = %v", cfg.Agent.Temperature)
	}
	if cfg.Tools.Prices["phone"] != 500 || cfg.Tools.Prices["bike"] != 100 {
		t.Errorf("prices = %v", cfg.Tools.Prices)
	}
}

func TestLoadJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolloop.json")
	if err := os.WriteFile(path, []byte(`{"provider": "anthropic", "agent": {"max_retries": 2}}`), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.Agent.MaxRetries != 2 {
		t.Errorf("unexpected config %+v", cfg)
	}
}

func TestLoadInvalidFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	os.WriteFile(path, []byte("provider: [unclosed"), 0644)
	if _, err := Load(path); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "toolloop.yaml")
	os.WriteFile(path, []byte("provider: openai\nagent:\n  max_iterations: 4\n"), 0644)

	t.Setenv("TOOLLOOP_PROVIDER", "groq")
	t.Setenv("TOOLLOOP_AGENT__MAX_ITERATIONS", "7")
	t.Setenv("TOOLLOOP_AGENT__CALL_TIMEOUT", "5s")
	t.Setenv("TOOLLOOP_PROVIDERS__GROQ__API_KEY", "gsk-env")
	t.Setenv("TOOLLOOP_STATE__RECORD", "false")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "groq" {
		t.Errorf("Provider = %q, want env override groq", cfg.Provider)
	}
	if cfg.Agent.MaxIterations != 7 {
		t.Errorf("MaxIterations = %d, want 7", cfg.Agent.MaxIterations)
	}
	if cfg.Agent.CallTimeout != 5*time.Second {
		t.Errorf("CallTimeout = %v, want 5s", cfg.Agent.CallTimeout)
	}
	if cfg.Providers["groq"].APIKey != "gsk-env" {
		t.Errorf("groq api key = %q", cfg.Providers["groq"].APIKey)
	}
	if cfg.State.Record {
		t.Error("State.Record should be overridden to false")
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "toolloop.yaml")
	orig := DefaultConfig()
	orig.Provider = "groq"
	orig.Agent.MaxIterations = 3
	orig.Agent.CallTimeout = 90 * time.Second
	temp := 1.0
	orig.Agent.Temperature = &temp

	if err := orig.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, _ := os.ReadFile(path)
	if !strings.Contains(string(data), "max_iterations: 3") {
		t.Errorf("saved YAML missing max_iterations:\n%s", data)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Provider != "groq" || cfg.Agent.MaxIterations != 3 || cfg.Agent.CallTimeout != 90*time.Second {
		t.Errorf("round trip lost values: %+v", cfg.Agent)
	}
	if cfg.Agent.Temperature == nil || *cfg.Agent.Temperature != 1.0 {
		t.Errorf("temperature = %v", cfg.Agent.Temperature)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid", func(*Config) {}, ""},
		{"unknown provider", func(c *Config) { c.Provider = "mistral" }, "unknown provider"},
		{"empty provider", func(c *Config) { c.Provider = "" }, "unknown provider"},
		{"zero budget", func(c *Config) { c.Agent.MaxIterations = 0 }, "max_iterations"},
		{"negative timeout", func(c *Config) { c.Agent.CallTimeout = -time.Second }, "call_timeout"},
		{"negative retries", func(c *Config) { c.Agent.MaxRetries = -1 }, "max_retries"},
		{"negative compaction", func(c *Config) { c.Agent.CompactTokens = -1 }, "compact_tokens"},
		{"temperature", func(c *Config) { v := 3.0; c.Agent.Temperature = &v }, "temperature"},
		{"negative price", func(c *Config) { c.Tools.Prices["bike"] = -1 }, "tools.prices.bike"},
		{"otlp without endpoint", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "otlp" }, "otlp_endpoint"},
		{"unknown exporter", func(c *Config) { c.Telemetry.Enabled = true; c.Telemetry.Exporter = "zipkin" }, "exporter"},
		{"unknown exporter while disabled", func(c *Config) { c.Telemetry.Exporter = "zipkin" }, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestCredential(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk-from-env")
	t.Setenv("OPENAI_API_KEY", "")

	cfg := DefaultConfig()
	if got := cfg.Credential("groq"); got != "gsk-from-env" {
		t.Errorf("groq credential = %q", got)
	}
	if got := cfg.Credential("openai"); got != "" {
		t.Errorf("openai credential = %q, want empty", got)
	}

	p := cfg.Providers["groq"]
	p.APIKey = "explicit"
	cfg.Providers["groq"] = p
	if got := cfg.Credential("groq"); got != "explicit" {
		t.Errorf("explicit key should win, got %q", got)
	}
	if got := cfg.Credential("unknown"); got != "" {
		t.Errorf("unknown provider credential = %q", got)
	}
}

func TestCheckCredentials(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "gsk")

	cfg := DefaultConfig()
	warnings := cfg.CheckCredentials()
	if len(warnings) != 1 || !strings.Contains(warnings[0], "OPENAI_API_KEY") {
		t.Errorf("warnings = %v", warnings)
	}

	cfg.Provider = "groq"
	if w := cfg.CheckCredentials(); len(w) != 0 {
		t.Errorf("expected no warnings with GROQ_API_KEY set, got %v", w)
	}
}

func TestLLMConfig(t *testing.T) {
	t.Setenv("GROQ_API_KEY", "gsk")
	cfg := DefaultConfig()
	cfg.Provider = "groq"
	temp := 0.2
	cfg.Agent.Temperature = &temp

	pc := cfg.LLMConfig()
	if pc.Provider != "groq" || pc.APIKey != "gsk" || pc.BaseURL != llm.GroqBaseURL || pc.Model != llm.DefaultGroqModel {
		t.Errorf("unexpected provider config %+v", pc)
	}
	if pc.Temperature == nil || *pc.Temperature != 0.2 {
		t.Errorf("temperature not passed through: %v", pc.Temperature)
	}
	if _, err := llm.NewFromConfig(pc); err != nil {
		t.Errorf("NewFromConfig rejected LLMConfig: %v", err)
	}
}

func TestStatePath(t *testing.T) {
	cfg := DefaultConfig()
	cfg.State.Dir = "/tmp/state"
	if got := cfg.StatePath("toolloop.db"); got != filepath.Join("/tmp/state", "toolloop.db") {
		t.Errorf("StatePath = %q", got)
	}
}
