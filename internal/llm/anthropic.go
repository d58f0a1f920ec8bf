package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/param"

	"github.com/HexSleeves/toolloop/internal/errors"
)

// AnthropicClient wraps the Anthropic SDK.
type AnthropicClient struct {
	client      *anthropic.Client
	apiKey      string
	model       string
	temperature *float64
}

func NewAnthropicClient(apiKey, model, baseURL string) *AnthropicClient {
	opts := []option.RequestOption{option.WithMaxRetries(0)}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if baseURL != "" {
		opts = append(opts, option.WithBaseURL(baseURL))
	}
	if model == "" {
		model = DefaultAnthropicModel
	}
	c := anthropic.NewClient(opts...)
	return &AnthropicClient{
		client: &c,
		apiKey: apiKey,
		model:  model,
	}
}

func (c *AnthropicClient) Provider() string {
	return "anthropic"
}

// Model returns the default model.
func (c *AnthropicClient) Model() string {
	return c.model
}

func (c *AnthropicClient) Complete(ctx context.Context, messages []Message, model string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("anthropic: missing credential")
	}
	if model == "" {
		model = c.model
	}

	system, rest := SplitSystem(messages)
	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		Messages:  toAnthropicMessages(rest),
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}
	if c.temperature != nil {
		params.Temperature = param.NewOpt(*c.temperature)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			err = classifyStatus(err, apiErr.StatusCode)
		}
		return "", fmt.Errorf("anthropic: %w", err)
	}

	var out strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			out.WriteString(block.Text)
		}
	}
	return out.String(), nil
}

func toAnthropicMessages(msgs []Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, len(msgs))
	for i, m := range msgs {
		if m.Role == RoleAssistant {
			out[i] = anthropic.NewAssistantMessage(anthropic.NewTextBlock(m.Content))
		} else {
			out[i] = anthropic.NewUserMessage(anthropic.NewTextBlock(m.Content))
		}
	}
	return out
}
