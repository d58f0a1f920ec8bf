package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/urfave/cli/v3"

	"github.com/HexSleeves/toolloop/internal/config"
	"github.com/HexSleeves/toolloop/internal/errors"
	"github.com/HexSleeves/toolloop/internal/llm"
)

// fakeClient replays replies in order and repeats the last one.
type fakeClient struct {
	mu      sync.Mutex
	replies []string
	err     error
	calls   int
}

func (f *fakeClient) Provider() string { return "fake" }

func (f *fakeClient) Complete(_ context.Context, _ []llm.Message, _ string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return "", f.err
	}
	i := f.calls - 1
	if i >= len(f.replies) {
		i = len(f.replies) - 1
	}
	return f.replies[i], nil
}

// useClient swaps the provider factory for the duration of a test.
func useClient(t *testing.T, c llm.Client) {
	t.Helper()
	orig := newClient
	newClient = func(llm.ProviderConfig) (llm.Client, error) { return c, nil }
	t.Cleanup(func() { newClient = orig })
}

// writeConfig saves a default config whose state directory lives in a temp dir.
func writeConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.State.Dir = filepath.Join(dir, ".toolloop")
	path := filepath.Join(dir, "toolloop.yaml")
	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}
	return path, cfg
}

// runApp runs the CLI with args and returns what it wrote to stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(context.Background(), append([]string{"toolloop"}, args...))
	return out.String(), err
}

var bikeReplies = []string{
	"THOUGHT: I need the bike price | ACTION | get_product_price | bike",
	"THOUGHT: Now add tax | ACTION | calculate_total | 100",
	"THOUGHT: I know the total | ANSWER | The bike costs 120 with tax.",
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, exitOK},
		{"timeout", &errors.TimeoutError{Iterations: 3}, exitTimeout},
		{"wrapped timeout", fmt.Errorf("run: %w", &errors.TimeoutError{Iterations: 3}), exitTimeout},
		{"gateway", &errors.GatewayError{Provider: "openai", Err: fmt.Errorf("401")}, exitFailure},
		{"other", fmt.Errorf("boom"), exitFailure},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := exitCode(tt.err); got != tt.want {
				t.Errorf("exitCode() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestRun_QuietPrintsOnlyAnswer(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: bikeReplies})

	out, err := runApp(t, "--config", cfgPath, "--quiet", "run", "How much is a bike with tax?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := strings.TrimSpace(out); got != "The bike costs 120 with tax." {
		t.Errorf("output = %q", got)
	}
}

func TestRun_ImplicitRun(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: bikeReplies})

	out, err := runApp(t, "--config", cfgPath, "--quiet", "How", "much", "is", "a", "bike?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if !strings.Contains(out, "120") {
		t.Errorf("output = %q, want the answer", out)
	}
}

func TestRun_JSONStream(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: bikeReplies})

	out, err := runApp(t, "--config", cfgPath, "--json", "run", "How much is a bike with tax?")
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out), "\n")
	var types []string
	for _, line := range lines {
		var ev map[string]interface{}
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("invalid JSON line %q: %v", line, err)
		}
		types = append(types, ev["type"].(string))
	}
	if types[0] != "run.started" {
		t.Errorf("first event = %s, want run.started", types[0])
	}
	if last := types[len(types)-1]; last != "run.end" {
		t.Errorf("last event = %s, want run.end", last)
	}
	if !strings.Contains(out, `"status":"answered"`) {
		t.Errorf("run.end missing answered status: %s", lines[len(lines)-1])
	}
}

func TestJSONErrorEvent(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"run with unknown provider", []string{"run", "--provider", "nope", "bike?"}, `unknown provider \"nope\"`},
		{"ask with unknown provider", []string{"ask", "--provider", "nope", "hi"}, `unknown provider \"nope\"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := runApp(t, append([]string{"--config", cfgPath, "--json"}, tt.args...)...)
			if err == nil {
				t.Fatal("expected error")
			}
			var ev map[string]interface{}
			if jerr := json.Unmarshal([]byte(strings.TrimSpace(out)), &ev); jerr != nil {
				t.Fatalf("stdout is not one JSON event: %q", out)
			}
			if ev["type"] != "error" {
				t.Errorf("type = %v, want error", ev["type"])
			}
			if !strings.Contains(out, tt.want) {
				t.Errorf("error event %s missing %s", out, tt.want)
			}
		})
	}
}

func TestAsk_JSONGatewayFailure(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{err: fmt.Errorf("401 unauthorized")})

	out, err := runApp(t, "--config", cfgPath, "--json", "ask", "hi")
	if !errors.IsGateway(err) {
		t.Fatalf("err = %v, want GatewayError", err)
	}
	if !strings.Contains(out, `"type":"error"`) || !strings.Contains(out, "401 unauthorized") {
		t.Errorf("missing error event: %q", out)
	}
}

func TestRun_TimeoutExitCode(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: []string{"Let me think about it."}})

	_, err := runApp(t, "--config", cfgPath, "--quiet", "run", "--max-iterations", "2", "anything")
	if !errors.IsTimeout(err) {
		t.Fatalf("err = %v, want TimeoutError", err)
	}
	if exitCode(err) != exitTimeout {
		t.Errorf("exitCode = %d, want %d", exitCode(err), exitTimeout)
	}
}

func TestRun_GatewayFailure(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{err: fmt.Errorf("401 unauthorized")})

	_, err := runApp(t, "--config", cfgPath, "--quiet", "run", "anything")
	if !errors.IsGateway(err) {
		t.Fatalf("err = %v, want GatewayError", err)
	}
}

func TestRun_RecordsRun(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: bikeReplies})

	if _, err := runApp(t, "--config", cfgPath, "--quiet", "run", "How much is a bike with tax?"); err != nil {
		t.Fatalf("run: %v", err)
	}

	out, err := runApp(t, "--config", cfgPath, "--json", "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	var runs []map[string]interface{}
	if err := json.Unmarshal([]byte(out), &runs); err != nil {
		t.Fatalf("decode runs: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("got %d runs, want 1", len(runs))
	}
	if runs[0]["status"] != "answered" {
		t.Errorf("status = %v, want answered", runs[0]["status"])
	}

	id := runs[0]["id"].(string)
	out, err = runApp(t, "--config", cfgPath, "show", id[:8])
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	for _, want := range []string{"OBSERVATION: 100", "OBSERVATION: 120", "calculate_total", "Events"} {
		if !strings.Contains(out, want) {
			t.Errorf("show output missing %q", want)
		}
	}

	out, err = runApp(t, "--config", cfgPath, "--json", "show", id)
	if err != nil {
		t.Fatalf("show --json: %v", err)
	}
	var shown struct {
		Events int `json:"events"`
	}
	if err := json.Unmarshal([]byte(out), &shown); err != nil {
		t.Fatalf("decode show: %v", err)
	}
	if shown.Events == 0 {
		t.Error("show --json reported no recorded events")
	}

	out, err = runApp(t, "--config", cfgPath, "runs")
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if !strings.Contains(out, "Showing 1 of 1 run(s): 1 answered") {
		t.Errorf("runs footer missing:\n%s", out)
	}
}

func TestRunsFooter(t *testing.T) {
	tests := []struct {
		shown  int
		counts map[string]int
		want   string
	}{
		{1, map[string]int{"answered": 1}, "Showing 1 of 1 run(s): 1 answered"},
		{2, map[string]int{"timeout": 1, "answered": 3, "failed": 1}, "Showing 2 of 5 run(s): 3 answered, 1 failed, 1 timeout"},
	}
	for _, tt := range tests {
		if got := runsFooter(tt.shown, tt.counts); got != tt.want {
			t.Errorf("runsFooter(%d, %v) = %q, want %q", tt.shown, tt.counts, got, tt.want)
		}
	}
}

func TestRun_NoRecord(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: bikeReplies})

	if _, err := runApp(t, "--config", cfgPath, "--quiet", "run", "--no-record", "bike?"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := runApp(t, "--config", cfgPath, "runs"); err == nil {
		t.Error("runs should fail when nothing was recorded")
	}
}

func TestRun_EmptyPrompt(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	if _, err := runApp(t, "--config", cfgPath, "run"); err == nil {
		t.Error("expected error for empty prompt")
	}
}

func TestQuietAndJSONExclusive(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	_, err := runApp(t, "--config", cfgPath, "--quiet", "--json", "run", "x")
	if err == nil || !strings.Contains(err.Error(), "mutually exclusive") {
		t.Errorf("err = %v, want mutual exclusion error", err)
	}
}

func TestToolCommand(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"get_product_price", "bike"}, "100"},
		{[]string{"get_product_price", "boat"}, "not found"},
		{[]string{"calculate_total", "100"}, "120"},
		{[]string{"fly", "home"}, "Tool not found"},
	}
	for _, tt := range tests {
		t.Run(strings.Join(tt.args, " "), func(t *testing.T) {
			out, err := runApp(t, append([]string{"--config", cfgPath, "tool"}, tt.args...)...)
			if err != nil {
				t.Fatalf("tool: %v", err)
			}
			if got := strings.TrimSpace(out); got != tt.want {
				t.Errorf("output = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToolsJSON(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	out, err := runApp(t, "--config", cfgPath, "--json", "tools")
	if err != nil {
		t.Fatalf("tools: %v", err)
	}
	var names []string
	if err := json.Unmarshal([]byte(out), &names); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(names) != 2 || names[0] != "calculate_total" || names[1] != "get_product_price" {
		t.Errorf("names = %v", names)
	}
}

func TestAsk(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: []string{"Paris"}})

	out, err := runApp(t, "--config", cfgPath, "--quiet", "ask", "--system", "Be brief", "Capital of France?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if strings.TrimSpace(out) != "Paris" {
		t.Errorf("output = %q", out)
	}
}

func TestShow_UnknownRun(t *testing.T) {
	cfgPath, _ := writeConfig(t)
	useClient(t, &fakeClient{replies: bikeReplies})
	if _, err := runApp(t, "--config", cfgPath, "--quiet", "run", "bike?"); err != nil {
		t.Fatalf("run: %v", err)
	}
	if _, err := runApp(t, "--config", cfgPath, "show", "zzzz"); err == nil {
		t.Error("expected error for unknown run id")
	}
}

func TestInit(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	path := filepath.Join(dir, "toolloop.yaml")

	if _, err := runApp(t, "--config", path, "--quiet", "init"); err != nil {
		t.Fatalf("init: %v", err)
	}
	cfg, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Provider != "openai" || cfg.Agent.MaxIterations != 10 {
		t.Errorf("unexpected config: %+v", cfg)
	}
	if _, err := os.Stat(filepath.Join(dir, cfg.State.Dir)); err != nil {
		t.Errorf("state directory not created: %v", err)
	}
	if _, err := runApp(t, "--config", path, "init"); err == nil {
		t.Error("second init should refuse to overwrite")
	}
}

func TestLoadConfig_Overrides(t *testing.T) {
	cfgPath, _ := writeConfig(t)

	var seen *config.Config
	app := newApp()
	app.Writer = &bytes.Buffer{}
	app.Action = func(ctx context.Context, cmd *cli.Command) error {
		cfg, err := loadConfig(cmd)
		seen = cfg
		return err
	}
	err := app.Run(context.Background(), []string{"toolloop", "--config", cfgPath,
		"--provider", "groq", "--model", "llama-x", "--max-iterations", "3"})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if seen.Provider != "groq" || seen.Providers["groq"].Model != "llama-x" || seen.Agent.MaxIterations != 3 {
		t.Errorf("overrides not applied: provider=%s model=%s max=%d",
			seen.Provider, seen.Providers["groq"].Model, seen.Agent.MaxIterations)
	}
}
