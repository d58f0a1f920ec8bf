package main

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/toolloop/internal/agent"
	"github.com/HexSleeves/toolloop/internal/bus"
	"github.com/HexSleeves/toolloop/internal/config"
	"github.com/HexSleeves/toolloop/internal/errors"
	"github.com/HexSleeves/toolloop/internal/llm"
	"github.com/HexSleeves/toolloop/internal/output"
	"github.com/HexSleeves/toolloop/internal/state"
	"github.com/HexSleeves/toolloop/internal/telemetry"
	"github.com/HexSleeves/toolloop/internal/tools"
	"github.com/HexSleeves/toolloop/internal/transcript"
	"github.com/HexSleeves/toolloop/internal/tui"
)

// newClient builds the provider client; tests replace it with a fake.
var newClient = llm.NewFromConfig

// newGateway wraps the configured provider client with the call policy.
func newGateway(cfg *config.Config, logger *log.Logger) (*llm.Gateway, error) {
	client, err := newClient(cfg.LLMConfig())
	if err != nil {
		return nil, err
	}
	return llm.NewGateway(client, llm.GatewayOptions{
		Timeout:    cfg.Agent.CallTimeout,
		MaxRetries: cfg.Agent.MaxRetries,
		Logger:     logger,
	}), nil
}

func startTelemetry(cfg *config.Config) (telemetry.ShutdownFunc, error) {
	return telemetry.Init("toolloop", version, telemetry.Config{
		Enabled:      cfg.Telemetry.Enabled,
		Exporter:     cfg.Telemetry.Exporter,
		OTLPEndpoint: cfg.Telemetry.OTLPEndpoint,
		OTLPInsecure: cfg.Telemetry.OTLPInsecure,
	})
}

func flushTelemetry(shutdown telemetry.ShutdownFunc, logger *log.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdown(ctx); err != nil {
		logger.Printf("⚠ Telemetry shutdown: %v", err)
	}
}

func cmdRun(ctx context.Context, cmd *cli.Command) error {
	prompt := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if prompt == "" {
		return fmt.Errorf("no prompt given. Usage: toolloop run <prompt>")
	}

	mode := outputMode(cmd)
	var jw *output.JSONWriter
	if mode == output.ModeJSON {
		jw = output.NewJSONWriter(stdout(cmd))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return reportError(jw, err)
	}
	if err := cfg.Validate(); err != nil {
		return reportError(jw, err)
	}

	p := output.NewPrinterWithWriter(mode, cmd.Bool("verbose"), stdout(cmd))
	logger := newLogger(cmd)
	for _, w := range cfg.CheckCredentials() {
		p.Warning("%s", w)
		logger.Printf("⚠ %s", w)
	}

	shutdown, err := startTelemetry(cfg)
	if err != nil {
		return reportError(jw, fmt.Errorf("init telemetry: %w", err))
	}
	defer flushTelemetry(shutdown, logger)

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return reportError(jw, fmt.Errorf("init LLM: %w", err))
	}
	registry := tools.NewProductTools(tools.NewCatalog(cfg.Tools.Prices))

	b := bus.New()
	if cfg.State.Record && !cmd.Bool("no-record") {
		db, err := state.OpenDB(cfg.State.Dir)
		if err != nil {
			p.Warning("Run will not be recorded: %v", err)
			logger.Printf("⚠ DB: %v", err)
		} else {
			defer db.Close()
			state.NewRecorder(db, logger).Attach(b)
		}
	}

	useTUI := cmd.Bool("tui") && mode == output.ModePlain && isTerminal(stdout(cmd))
	switch {
	case jw != nil:
		b.SubscribeAll(jw.Handle)
	case useTUI:
		// the view attaches itself in runTUI
	default:
		b.SubscribeAll(p.Handle)
	}

	opts := []agent.Option{agent.WithLogger(logger), agent.WithBus(b)}
	if cfg.Agent.CompactTokens > 0 {
		opts = append(opts, agent.WithCompactor(transcript.NewWindowCompactor(cfg.Agent.CompactTokens)))
	}
	loop := agent.New(gateway, registry, opts...)

	if useTUI {
		return runTUI(ctx, loop, b, p, prompt, cfg.Agent.MaxIterations)
	}

	res, runErr := loop.RunDetailed(ctx, prompt, cfg.Agent.MaxIterations)

	if jw != nil {
		if err := jw.WriteRunEnd(res.RunID, summarize(res, runErr)); err != nil {
			logger.Printf("⚠ JSON output: %v", err)
		}
		return runErr
	}
	if runErr != nil {
		return runErr
	}
	p.Divider()
	p.Answer(res.Answer)
	return nil
}

// runTUI runs the loop in the background while the full-screen view renders
// its events. Quitting the view early cancels the run.
func runTUI(ctx context.Context, loop *agent.Loop, b *bus.MessageBus, p *output.Printer, prompt string, maxIterations int) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	prog := tui.NewProgram(prompt, maxIterations, cancel)
	prog.Attach(b)

	type outcome struct {
		res *agent.Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := loop.RunDetailed(runCtx, prompt, maxIterations)
		done <- outcome{res, err}
	}()

	if _, err := prog.Run(); err != nil {
		cancel()
		<-done
		return fmt.Errorf("TUI error: %w", err)
	}
	out := <-done
	if out.err != nil {
		return out.err
	}
	p.Answer(out.res.Answer)
	return nil
}

// reportError puts a failure that ends the command without a run.end line
// onto the JSON stream, so a --json consumer always sees a final event.
func reportError(jw *output.JSONWriter, err error) error {
	if jw != nil {
		jw.WriteError(err.Error()) //nolint:errcheck
	}
	return err
}

// summarize turns a run outcome into the final JSON event.
func summarize(res *agent.Result, err error) output.RunSummary {
	s := output.RunSummary{
		Status:     state.StatusAnswered,
		Answer:     res.Answer,
		Iterations: res.Iterations,
	}
	switch {
	case err == nil:
	case errors.IsTimeout(err):
		s.Status = state.StatusTimeout
		s.Error = err.Error()
	default:
		s.Status = state.StatusFailed
		s.Error = err.Error()
	}
	return s
}

func cmdAsk(ctx context.Context, cmd *cli.Command) error {
	prompt := strings.TrimSpace(strings.Join(cmd.Args().Slice(), " "))
	if prompt == "" {
		return fmt.Errorf("no prompt given. Usage: toolloop ask <prompt>")
	}

	mode := outputMode(cmd)
	var jw *output.JSONWriter
	if mode == output.ModeJSON {
		jw = output.NewJSONWriter(stdout(cmd))
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return reportError(jw, err)
	}
	if cmd.IsSet("temperature") {
		t := cmd.Float("temperature")
		cfg.Agent.Temperature = &t
	}
	if err := cfg.Validate(); err != nil {
		return reportError(jw, err)
	}

	p := output.NewPrinterWithWriter(mode, cmd.Bool("verbose"), stdout(cmd))
	logger := newLogger(cmd)
	for _, w := range cfg.CheckCredentials() {
		p.Warning("%s", w)
	}

	gateway, err := newGateway(cfg, logger)
	if err != nil {
		return reportError(jw, fmt.Errorf("init LLM: %w", err))
	}

	spin := p.Spinner(fmt.Sprintf("Asking %s...", gateway.Provider()))
	out, err := llm.Ask(ctx, gateway, "", cmd.String("system"), prompt)
	if err != nil {
		spin.Fail("Request failed")
		return reportError(jw, err)
	}
	spin.Stop("Done")
	if jw != nil {
		return jw.WriteRunEnd("", output.RunSummary{
			Status: state.StatusAnswered,
			Answer: out,
		})
	}
	p.Answer(out)
	return nil
}
