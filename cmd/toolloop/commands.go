package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/urfave/cli/v3"
	"golang.org/x/term"

	"github.com/HexSleeves/toolloop/internal/config"
	"github.com/HexSleeves/toolloop/internal/output"
)

// loadConfig reads the config file named by --config and applies the
// command-line overrides on top of it.
func loadConfig(cmd *cli.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd.String("config"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if p := cmd.String("provider"); p != "" {
		cfg.Provider = p
	}
	if m := cmd.String("model"); m != "" {
		if cfg.Providers == nil {
			cfg.Providers = map[string]config.ProviderConfig{}
		}
		pc := cfg.Providers[cfg.Provider]
		pc.Model = m
		cfg.Providers[cfg.Provider] = pc
	}
	if n := cmd.Int("max-iterations"); n > 0 {
		cfg.Agent.MaxIterations = n
	}
	return cfg, nil
}

// stdout returns the writer command output goes to.
func stdout(cmd *cli.Command) io.Writer {
	if w := cmd.Root().Writer; w != nil {
		return w
	}
	return os.Stdout
}

// outputMode resolves --json and --quiet. Styling is turned off when stdout
// is not a terminal.
func outputMode(cmd *cli.Command) output.Mode {
	if !isTerminal(stdout(cmd)) {
		pterm.DisableStyling()
	}
	return output.SelectMode(cmd.Bool("json"), cmd.Bool("quiet"))
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func newPrinter(cmd *cli.Command) *output.Printer {
	return output.NewPrinterWithWriter(outputMode(cmd), cmd.Bool("verbose"), stdout(cmd))
}

// newLogger returns the step logger. Loop steps go to stderr only with
// --verbose; otherwise the live view (or JSON stream) is the only output.
func newLogger(cmd *cli.Command) *log.Logger {
	if !cmd.Bool("verbose") {
		return log.New(io.Discard, "", 0)
	}
	w := cmd.Root().ErrWriter
	if w == nil {
		w = os.Stderr
	}
	return log.New(w, "", log.LstdFlags|log.Lmicroseconds)
}

func cmdInit(ctx context.Context, cmd *cli.Command) error {
	configPath := cmd.String("config")
	p := newPrinter(cmd)

	if _, err := os.Stat(configPath); err == nil {
		return fmt.Errorf("%s already exists", configPath)
	}

	cfg := config.DefaultConfig()
	if err := os.MkdirAll(cfg.State.Dir, 0755); err != nil {
		return fmt.Errorf("create %s: %w", cfg.State.Dir, err)
	}
	if err := cfg.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	p.Success("Config saved to %s", configPath)
	p.Success("State directory %s", cfg.State.Dir)
	for _, w := range cfg.CheckCredentials() {
		p.Warning("%s", w)
	}
	return nil
}

func cmdConfig(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	p := newPrinter(cmd)
	if err := cfg.Validate(); err != nil {
		p.Error("%v", err)
	}

	llmCfg := cfg.LLMConfig()
	key := "(not set)"
	if llmCfg.APIKey != "" {
		key = "(set)"
	}
	temperature := "(provider default)"
	if t := cfg.Agent.Temperature; t != nil {
		temperature = strconv.FormatFloat(*t, 'f', -1, 64)
	}
	var prices []string
	for _, name := range sortedKeys(cfg.Tools.Prices) {
		prices = append(prices, fmt.Sprintf("%s=%d", name, cfg.Tools.Prices[name]))
	}

	p.Header(fmt.Sprintf("Configuration (%s)", cmd.String("config")))
	p.KeyValue([][]string{
		{"Provider", cfg.Provider},
		{"Model", llmCfg.Model},
		{"Base URL", llmCfg.BaseURL},
		{"API Key", key},
		{"Max Iterations", strconv.Itoa(cfg.Agent.MaxIterations)},
		{"Call Timeout", cfg.Agent.CallTimeout.String()},
		{"Max Retries", strconv.Itoa(cfg.Agent.MaxRetries)},
		{"Temperature", temperature},
		{"Compact Tokens", strconv.Itoa(cfg.Agent.CompactTokens)},
		{"Prices", strings.Join(prices, ", ")},
		{"State Dir", cfg.State.Dir},
		{"Record Runs", strconv.FormatBool(cfg.State.Record)},
		{"Telemetry", telemetryLabel(cfg)},
	})
	for _, w := range cfg.CheckCredentials() {
		p.Warning("%s", w)
	}
	return nil
}

func telemetryLabel(cfg *config.Config) string {
	t := cfg.Telemetry
	switch {
	case !t.Enabled:
		return "disabled"
	case t.Exporter == "otlp":
		return "otlp " + t.OTLPEndpoint
	default:
		return t.Exporter
	}
}
