package llm

import (
	"context"
	"fmt"

	"google.golang.org/genai"

	"github.com/HexSleeves/toolloop/internal/errors"
)

// GeminiClient implements Client for Google's Gemini API.
type GeminiClient struct {
	client      *genai.Client
	initErr     error
	apiKey      string
	model       string
	temperature *float64
}

// NewGeminiClient creates a Gemini client. A construction failure is
// reported by the first Complete call.
func NewGeminiClient(apiKey, model, baseURL string) *GeminiClient {
	if model == "" {
		model = DefaultGeminiModel
	}
	c := &GeminiClient{apiKey: apiKey, model: model}
	if apiKey == "" {
		return c
	}
	cfg := &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	}
	if baseURL != "" {
		cfg.HTTPOptions = genai.HTTPOptions{BaseURL: baseURL}
	}
	c.client, c.initErr = genai.NewClient(context.Background(), cfg)
	return c
}

func (c *GeminiClient) Provider() string {
	return "gemini"
}

// Model returns the default model.
func (c *GeminiClient) Model() string {
	return c.model
}

func (c *GeminiClient) Complete(ctx context.Context, messages []Message, model string) (string, error) {
	if c.apiKey == "" {
		return "", fmt.Errorf("gemini: missing credential")
	}
	if c.initErr != nil {
		return "", fmt.Errorf("gemini: %w", c.initErr)
	}
	if model == "" {
		model = c.model
	}

	system, rest := SplitSystem(messages)
	cfg := &genai.GenerateContentConfig{}
	if system != "" {
		cfg.SystemInstruction = &genai.Content{Parts: []*genai.Part{{Text: system}}}
	}
	if c.temperature != nil {
		cfg.Temperature = genai.Ptr(float32(*c.temperature))
	}

	resp, err := c.client.Models.GenerateContent(ctx, model, toGeminiContents(rest), cfg)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			err = classifyStatus(err, apiErr.Code)
		}
		return "", fmt.Errorf("gemini: %w", err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates in response")
	}
	return resp.Text(), nil
}

func toGeminiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, len(msgs))
	for i, m := range msgs {
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out[i] = &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		}
	}
	return out
}
