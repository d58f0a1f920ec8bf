// Package llm provides a provider-agnostic interface for chat-completion calls.
package llm

import "context"

// Client is the uniform call shape over a chat-completion endpoint: the
// ordered transcript goes in, one assistant reply comes out.
// Implementations exist for OpenAI-compatible APIs (OpenAI, Groq), Anthropic
// and Gemini.
type Client interface {
	// Complete sends messages to the model and returns the assistant reply.
	// An empty model selects the client's configured default.
	Complete(ctx context.Context, messages []Message, model string) (string, error)
	// Provider names the backend ("openai", "groq", "anthropic", "gemini").
	Provider() string
}

// Ask is a one-shot completion: an optional system message followed by a
// single user message.
func Ask(ctx context.Context, c Client, model, systemPrompt, userMessage string) (string, error) {
	var messages []Message
	if systemPrompt != "" {
		messages = append(messages, Message{Role: RoleSystem, Content: systemPrompt})
	}
	messages = append(messages, Message{Role: RoleUser, Content: userMessage})
	return c.Complete(ctx, messages, model)
}

// ModelOf returns c's default model if it exposes one.
func ModelOf(c Client) string {
	if m, ok := c.(interface{ Model() string }); ok {
		return m.Model()
	}
	return ""
}
