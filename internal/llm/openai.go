package llm

import (
	"context"
	"fmt"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/shared"

	"github.com/HexSleeves/toolloop/internal/errors"
)

// OpenAIClient implements Client for OpenAI-compatible chat-completion APIs.
// Works with OpenAI, Groq and any compatible endpoint.
type OpenAIClient struct {
	client      *openai.Client
	provider    string
	apiKey      string
	model       string
	baseURL     string
	temperature *float64
}

// NewOpenAIClient creates a client for an OpenAI-compatible API.
// The SDK's own retry loop is disabled; retries are the Gateway's decision.
func NewOpenAIClient(provider, apiKey, model, baseURL string) *OpenAIClient {
	if baseURL == "" {
		baseURL = OpenAIBaseURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if apiKey != "" {
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	c := openai.NewClient(opts...)

	return &OpenAIClient{
		client:   &c,
		provider: provider,
		apiKey:   apiKey,
		model:    model,
		baseURL:  baseURL,
	}
}

func (c *OpenAIClient) Provider() string {
	return c.provider
}

// Model returns the default model.
func (c *OpenAIClient) Model() string {
	return c.model
}

func (c *OpenAIClient) Complete(ctx context.Context, messages []Message, model string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("%s: missing credential", c.provider)
	}
	if model == "" {
		model = c.model
	}

	params := openai.ChatCompletionNewParams{
		Model:    shared.ChatModel(model),
		Messages: toOpenAIMessages(messages),
	}
	if c.temperature != nil {
		params.Temperature = openai.Float(*c.temperature)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			err = classifyStatus(err, apiErr.StatusCode)
		}
		return "", fmt.Errorf("%s: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: no choices in response", c.provider)
	}
	return resp.Choices[0].Message.Content, nil
}

func toOpenAIMessages(msgs []Message) []openai.ChatCompletionMessageParamUnion {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(msgs))
	for _, m := range msgs {
		switch m.Role {
		case RoleSystem:
			out = append(out, openai.SystemMessage(m.Content))
		case RoleAssistant:
			out = append(out, openai.AssistantMessage(m.Content))
		default:
			out = append(out, openai.UserMessage(m.Content))
		}
	}
	return out
}
