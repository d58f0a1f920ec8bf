// Package agent drives the THOUGHT / ACTION / OBSERVATION loop: it calls the
// model, dispatches the requested tool, feeds the result back and stops at
// the first ANSWER or when the iteration budget runs out.
package agent

import (
	"context"
	"io"
	"log"

	"github.com/google/uuid"
	"github.com/mattn/go-runewidth"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/trace"

	"github.com/HexSleeves/toolloop/internal/bus"
	"github.com/HexSleeves/toolloop/internal/errors"
	"github.com/HexSleeves/toolloop/internal/llm"
	"github.com/HexSleeves/toolloop/internal/reply"
	"github.com/HexSleeves/toolloop/internal/tools"
	"github.com/HexSleeves/toolloop/internal/transcript"
)

// DefaultMaxIterations bounds a run when the caller passes a non-positive budget.
const DefaultMaxIterations = 10

const instrumentationName = "github.com/HexSleeves/toolloop/internal/agent"

// Loop runs prompts against one client and one tool registry. A Loop holds
// no per-run state and may serve several runs, each on its own goroutine.
type Loop struct {
	client       llm.Client
	registry     *tools.Registry
	model        string
	systemPrompt string
	logger       *log.Logger
	bus          *bus.MessageBus
	compactor    transcript.Compactor
	runID        string

	tracer     trace.Tracer
	iterations metric.Int64Counter
	toolCalls  metric.Int64Counter
}

// Result describes a finished run, successful or not.
type Result struct {
	RunID      string
	Answer     string
	Iterations int
	Messages   []llm.Message
}

func New(client llm.Client, registry *tools.Registry, opts ...Option) *Loop {
	l := &Loop{
		client:   client,
		registry: registry,
		tracer:   otel.Tracer(instrumentationName),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.registry == nil {
		l.registry = tools.NewRegistry()
	}
	if l.systemPrompt == "" {
		l.systemPrompt = BuildSystemPrompt(DefaultSystemPrompt, l.registry.Names())
	}
	if l.logger == nil {
		l.logger = log.New(io.Discard, "", 0)
	}

	meter := otel.Meter(instrumentationName)
	l.iterations = l.counter(meter, "toolloop.iterations", "Model calls made by agent runs")
	l.toolCalls = l.counter(meter, "toolloop.tool_calls", "Tool dispatches by tool name")
	return l
}

// counter creates a metric instrument, falling back to a no-op one.
func (l *Loop) counter(meter metric.Meter, name, desc string) metric.Int64Counter {
	c, err := meter.Int64Counter(name, metric.WithDescription(desc))
	if err != nil || c == nil {
		l.logger.Printf("⚠ Metric %s unavailable: %v", name, err)
		return noop.Int64Counter{}
	}
	return c
}

// SystemPrompt returns the prompt each run starts with.
func (l *Loop) SystemPrompt() string {
	return l.systemPrompt
}

// Run asks prompt and returns the model's answer. A non-positive
// maxIterations selects DefaultMaxIterations.
func (l *Loop) Run(ctx context.Context, prompt string, maxIterations int) (string, error) {
	res, err := l.RunDetailed(ctx, prompt, maxIterations)
	if err != nil {
		return "", err
	}
	return res.Answer, nil
}

// RunDetailed is Run returning the full transcript. The Result is non-nil
// even when err is not.
func (l *Loop) RunDetailed(ctx context.Context, prompt string, maxIterations int) (*Result, error) {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	runID := l.runID
	if runID == "" {
		runID = uuid.NewString()
	}
	model := l.model
	if model == "" {
		model = llm.ModelOf(l.client)
	}

	ctx, span := l.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.String("llm.provider", l.client.Provider()),
		attribute.String("llm.model", model),
		attribute.Int("run.max_iterations", maxIterations),
	))
	defer span.End()

	tr := transcript.New(l.systemPrompt)
	tr.User(prompt)
	res := &Result{RunID: runID}

	l.publish(runID, 0, bus.MsgRunStarted, bus.RunStarted{
		Prompt:        prompt,
		SystemPrompt:  l.systemPrompt,
		Provider:      l.client.Provider(),
		Model:         model,
		MaxIterations: maxIterations,
	})
	l.logger.Printf("🚀 Run %s | %s", runID, prompt)

	fail := func(err error) (*Result, error) {
		res.Messages = tr.Messages()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.publish(runID, res.Iterations, bus.MsgRunFailed, bus.Text{Text: err.Error()})
		return res, err
	}

	var lastReply string
	for i := 1; i <= maxIterations; i++ {
		if err := ctx.Err(); err != nil {
			l.logger.Println("⛔ Context cancelled, stopping")
			return fail(err)
		}
		res.Iterations = i
		l.logger.Printf("🔁 Turn %d/%d (~%d tokens)", i, maxIterations, tr.TokenCount())

		raw, err := l.step(ctx, i, tr)
		if err != nil {
			if ctx.Err() != nil {
				return fail(ctx.Err())
			}
			if !errors.IsGateway(err) {
				err = &errors.GatewayError{Provider: l.client.Provider(), Model: model, Err: err}
			}
			l.logger.Printf("❌ %v", err)
			return fail(err)
		}

		tr.Assistant(raw)
		lastReply = raw
		l.publish(runID, i, bus.MsgTurnReply, bus.Text{Text: raw})

		parsed, perr := reply.Parse(raw)
		var observation string
		switch {
		case perr != nil:
			l.logger.Printf("⚠ %v", perr)
			observation = reply.Observation(perr.Error() + ". " + malformedHint)

		case parsed.Kind == reply.Answer:
			res.Answer = parsed.Text
			res.Messages = tr.Messages()
			span.SetAttributes(attribute.Int("run.iterations", i))
			l.publish(runID, i, bus.MsgRunAnswer, bus.Text{Text: parsed.Text})
			l.logger.Printf("✅ Answer: %s", parsed.Text)
			return res, nil

		case parsed.Kind == reply.Action:
			observation = reply.Observation(l.dispatch(ctx, runID, i, parsed))

		default:
			l.logger.Printf("⚠ Unrecognized reply: %s", preview(raw))
			observation = reply.Observation(unrecognizedHint)
		}

		tr.User(observation)
		l.publish(runID, i, bus.MsgTurnObservation, bus.Text{Text: observation})
	}

	res.Messages = tr.Messages()
	terr := &errors.TimeoutError{Iterations: maxIterations, LastReply: lastReply}
	span.SetStatus(codes.Error, terr.Error())
	l.publish(runID, maxIterations, bus.MsgRunTimeout, bus.Text{Text: lastReply})
	l.logger.Printf("⏱ %v", terr)
	return res, terr
}

// step performs one model call on the (possibly compacted) transcript view.
func (l *Loop) step(ctx context.Context, iteration int, tr *transcript.Transcript) (string, error) {
	ctx, span := l.tracer.Start(ctx, "agent.iteration", trace.WithAttributes(
		attribute.Int("iteration", iteration),
		attribute.Int("transcript.tokens", tr.TokenCount()),
	))
	defer span.End()
	l.iterations.Add(ctx, 1)

	messages := tr.Messages()
	view := messages
	if l.compactor != nil {
		compacted, err := l.compactor.Compact(messages)
		if err != nil {
			l.logger.Printf("⚠ Compaction failed, sending full transcript: %v", err)
		} else {
			view = compacted
		}
	}

	raw, err := l.client.Complete(ctx, view, l.model)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	return raw, err
}

// dispatch runs the requested tool and returns the observation text. Tool
// failures become text so the model can correct itself.
func (l *Loop) dispatch(ctx context.Context, runID string, iteration int, p reply.Parsed) string {
	l.logger.Printf("  🔧 Tool: %s(%s)", p.Tool, p.Argument)
	l.publish(runID, iteration, bus.MsgTurnAction, bus.Action{Tool: p.Tool, Argument: p.Argument})
	l.toolCalls.Add(ctx, 1, metric.WithAttributes(attribute.String("tool", p.Tool)))

	out, err := l.registry.Dispatch(ctx, p.Tool, p.Argument)
	if err != nil {
		l.logger.Printf("  ⚠ Tool error: %v", err)
		return "Error: " + err.Error()
	}
	l.logger.Printf("  ✓ Result: %s", preview(out))
	return out
}

func (l *Loop) publish(runID string, iteration int, typ bus.MsgType, payload interface{}) {
	if l.bus == nil {
		return
	}
	l.bus.Publish(bus.Message{Type: typ, RunID: runID, Iteration: iteration, Payload: payload})
}

func preview(s string) string {
	return runewidth.Truncate(s, 200, "...")
}
