package agent

import (
	"log"

	"github.com/HexSleeves/toolloop/internal/bus"
	"github.com/HexSleeves/toolloop/internal/transcript"
)

// Option configures a Loop.
type Option func(*Loop)

// WithModel selects the model for every call. Empty means the provider default.
func WithModel(model string) Option {
	return func(l *Loop) { l.model = model }
}

// WithSystemPrompt replaces the built-in grammar prompt.
func WithSystemPrompt(prompt string) Option {
	return func(l *Loop) { l.systemPrompt = prompt }
}

// WithLogger sets the progress logger. Nil means silent.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loop) { l.logger = logger }
}

// WithBus publishes run events to b.
func WithBus(b *bus.MessageBus) Option {
	return func(l *Loop) { l.bus = b }
}

// WithCompactor shapes the transcript view sent to the model.
func WithCompactor(c transcript.Compactor) Option {
	return func(l *Loop) { l.compactor = c }
}

// WithRunID fixes the run identifier instead of generating one per run.
func WithRunID(id string) Option {
	return func(l *Loop) { l.runID = id }
}
