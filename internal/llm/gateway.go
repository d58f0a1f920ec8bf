package llm

import (
	"context"
	"io"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/HexSleeves/toolloop/internal/errors"
)

const tracerName = "github.com/HexSleeves/toolloop/internal/llm"

// GatewayOptions bound each completion call.
type GatewayOptions struct {
	// Timeout caps the wall-clock time of a single attempt. Zero means no cap.
	Timeout time.Duration
	// MaxRetries is the number of extra attempts on transient failures.
	MaxRetries int
	Logger     *log.Logger
}

// Gateway wraps a Client with a per-call timeout, an optional retry policy
// and tracing. Every failure it returns is a *errors.GatewayError.
// A Gateway is built once per process and is safe for concurrent use.
type Gateway struct {
	client Client
	opts   GatewayOptions
	tracer trace.Tracer
}

// NewGateway creates a Gateway around client.
func NewGateway(client Client, opts GatewayOptions) *Gateway {
	if opts.Logger == nil {
		opts.Logger = log.New(io.Discard, "", 0)
	}
	return &Gateway{
		client: client,
		opts:   opts,
		tracer: otel.Tracer(tracerName),
	}
}

func (g *Gateway) Provider() string {
	return g.client.Provider()
}

// Model returns the wrapped client's default model, if any.
func (g *Gateway) Model() string {
	return ModelOf(g.client)
}

// Complete sends the transcript to the provider. The messages slice is
// read, never modified.
func (g *Gateway) Complete(ctx context.Context, messages []Message, model string) (string, error) {
	ctx, span := g.tracer.Start(ctx, "llm.complete", trace.WithAttributes(
		attribute.String("llm.provider", g.client.Provider()),
		attribute.String("llm.model", model),
		attribute.Int("llm.messages", len(messages)),
	))
	defer span.End()

	out, err := RetryCall(ctx, g.opts.MaxRetries, g.opts.Logger, func(ctx context.Context) (string, error) {
		if g.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, g.opts.Timeout)
			defer cancel()
		}
		return g.client.Complete(ctx, messages, model)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", &errors.GatewayError{Provider: g.client.Provider(), Model: model, Err: err}
	}

	span.SetAttributes(attribute.Int("llm.reply_chars", len(out)))
	return out, nil
}
